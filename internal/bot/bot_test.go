package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"facebrasil.com.br/gamification/internal/features/ledger"
	"facebrasil.com.br/gamification/internal/notify"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*telego.SendMessageParams
}

func (s *fakeSender) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, params)
	return &telego.Message{}, nil
}

type fakeRanking struct {
	period ledger.Period
	err    error
}

func (f *fakeRanking) Leaderboard(_ context.Context, period ledger.Period, limit int) ([]ledger.LeaderboardEntry, error) {
	f.period = period
	if f.err != nil {
		return nil, f.err
	}
	entries := []ledger.LeaderboardEntry{
		{UserID: "user-aaaaaaaaaaaa", Points: 1500, Level: 4, Badges: []string{"first_read"}},
		{UserID: "user-b", Points: 1500, Level: 4},
		{UserID: "user-c", Points: 1, Level: 1},
	}
	ledger.AssignRanks(entries)
	return entries, nil
}

const community = int64(-1001)

func message(chatID int64, text string) telego.Update {
	return telego.Update{Message: &telego.Message{
		Chat: telego.Chat{ID: chatID, Type: telego.ChatTypeSupergroup},
		From: &telego.User{ID: 42, Username: "leitor"},
		Text: text,
	}}
}

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	cmd, args, ok := p.ParseCommand("/ranking@facebrasil_bot mes")
	require.True(t, ok)
	require.Equal(t, "ranking", cmd)
	require.Equal(t, []string{"mes"}, args)

	cmd, _, ok = p.ParseCommand("  !Start ")
	require.True(t, ok)
	require.Equal(t, "start", cmd)

	_, _, ok = p.ParseCommand("olá pessoal")
	require.False(t, ok)
	_, _, ok = p.ParseCommand("/")
	require.False(t, ok)
}

func TestRankingCommand(t *testing.T) {
	s := &fakeSender{}
	ranking := &fakeRanking{}
	b := newBot(nil, s, ranking, Options{CommunityChatID: community})
	defer b.rateLimiter.Close()

	b.handleUpdate(context.Background(), message(community, "/ranking mes"))

	require.Equal(t, ledger.PeriodMonthly, ranking.period)
	require.Len(t, s.sent, 1)
	text := s.sent[0].Text
	require.Contains(t, text, "Ranking do mês")
	require.Contains(t, text, "🥇 1. user-aaa…")
	require.Contains(t, text, "🥇 1. user-b")
	require.Contains(t, text, "3. user-c | 1 ponto")
	require.Equal(t, telego.ModeHTML, s.sent[0].ParseMode)
}

func TestRankingErrorReplies(t *testing.T) {
	s := &fakeSender{}
	b := newBot(nil, s, &fakeRanking{err: errors.New("db")}, Options{CommunityChatID: community})
	defer b.rateLimiter.Close()

	b.handleUpdate(context.Background(), message(community, "/ranking"))
	require.Len(t, s.sent, 1)
	require.Contains(t, s.sent[0].Text, "Não foi possível")
}

func TestIgnoresForeignChatsAndPlainText(t *testing.T) {
	s := &fakeSender{}
	b := newBot(nil, s, &fakeRanking{}, Options{CommunityChatID: community})
	defer b.rateLimiter.Close()

	b.handleUpdate(context.Background(), message(-555, "/ranking"))
	b.handleUpdate(context.Background(), message(community, "bom dia"))
	b.handleUpdate(context.Background(), telego.Update{})
	require.Empty(t, s.sent)
}

func TestRateLimitedUser(t *testing.T) {
	s := &fakeSender{}
	b := newBot(nil, s, &fakeRanking{}, Options{CommunityChatID: community, RateLimitRequests: 1})
	defer b.rateLimiter.Close()

	b.handleUpdate(context.Background(), message(community, "/start"))
	b.handleUpdate(context.Background(), message(community, "/start"))
	require.Len(t, s.sent, 1)
}

func TestNotifyFormatsEvents(t *testing.T) {
	s := &fakeSender{}
	b := newBot(nil, s, &fakeRanking{}, Options{CommunityChatID: community})
	defer b.rateLimiter.Close()
	ctx := context.Background()

	require.NoError(t, b.Notify(ctx, notify.Event{Type: notify.EventLevelUp, UserID: "u1", Level: 3, LevelName: "Colaborador"}))
	require.NoError(t, b.Notify(ctx, notify.Event{Type: notify.EventBadgeAwarded, UserID: "u1", BadgeID: "bookworm", BadgeName: "Rato de <Biblioteca>"}))
	require.NoError(t, b.Notify(ctx, notify.Event{Type: notify.EventRedeemed, UserID: "u1", OfferTitle: "Café", Facets: decimal.RequireFromString("2.5"),
		OccurredAt: time.Date(2024, 5, 15, 13, 30, 0, 0, time.UTC)}))
	require.NoError(t, b.Notify(ctx, notify.Event{Type: "unknown"}))

	require.Len(t, s.sent, 3)
	require.Equal(t, community, s.sent[0].ChatID.ID)
	require.Contains(t, s.sent[0].Text, "nível 3: <b>Colaborador</b>")
	require.Contains(t, s.sent[1].Text, "Rato de &lt;Biblioteca&gt;")
	require.Contains(t, s.sent[2].Text, "2,500 $FC")
	require.Contains(t, s.sent[2].Text, "em 15/05/2024 13:30")
}

func TestFormatRankingEmpty(t *testing.T) {
	require.Contains(t, FormatRanking(ledger.PeriodAllTime, nil), "Ainda não há pontos")
}
