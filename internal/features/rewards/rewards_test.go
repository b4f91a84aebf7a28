package rewards

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"facebrasil.com.br/gamification/internal/auth"
	"facebrasil.com.br/gamification/internal/common"
	"facebrasil.com.br/gamification/internal/httpx"
	"facebrasil.com.br/gamification/internal/notify"
)

// memStore повторяет поведение PgStore: условные списания под одной блокировкой.
type memStore struct {
	mu          sync.Mutex
	points      map[string]int64
	facets      map[string]decimal.Decimal
	offers      map[uuid.UUID]*Offer
	redemptions []*Redemption
	systemLog   []int64
}

func newMemStore() *memStore {
	return &memStore{
		points: map[string]int64{},
		facets: map[string]decimal.Decimal{},
		offers: map[uuid.UUID]*Offer{},
	}
}

func (s *memStore) Convert(_ context.Context, userID string, points int64, facets decimal.Decimal) (*ConversionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.points[userID] < points {
		return nil, common.ErrInsufficientPoints
	}
	s.points[userID] -= points
	s.facets[userID] = s.facets[userID].Add(facets)
	s.systemLog = append(s.systemLog, -points)
	return &ConversionResult{
		PointsConverted:  points,
		FacetsCredited:   facets,
		NewPointsBalance: s.points[userID],
		NewFacetsBalance: s.facets[userID],
	}, nil
}

func (s *memStore) Redeem(_ context.Context, userID string, offerID uuid.UUID, key string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, ok := s.offers[offerID]
	if !ok {
		return nil, common.ErrOfferNotFound
	}
	if key != "" {
		for _, rd := range s.redemptions {
			if rd.UserID == userID && rd.IdempotencyKey == key {
				if rd.OfferID != offerID {
					return nil, common.ErrIdempotencyConflict
				}
				return &Receipt{Redemption: rd, Offer: offer, Balance: s.facets[userID], Replayed: true}, nil
			}
		}
	}
	if !offer.IsActive {
		return nil, common.ErrOfferInactive
	}
	if s.facets[userID].LessThan(offer.FacetCost) {
		return nil, common.ErrInsufficientFacets
	}
	s.facets[userID] = s.facets[userID].Sub(offer.FacetCost)
	rd := &Redemption{
		ID: uuid.New(), UserID: userID, OfferID: offerID, OfferTitle: offer.Title,
		FacetsSpent: offer.FacetCost, IdempotencyKey: key,
	}
	s.redemptions = append(s.redemptions, rd)
	return &Receipt{Redemption: rd, Offer: offer, Balance: s.facets[userID]}, nil
}

func (s *memStore) ListActiveOffers(context.Context) ([]*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Offer
	for _, o := range s.offers {
		if o.IsActive {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) ListRedemptions(_ context.Context, userID string, limit int) ([]*Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Redemption
	for _, rd := range s.redemptions {
		if rd.UserID == userID && len(out) < limit {
			out = append(out, rd)
		}
	}
	return out, nil
}

func (s *memStore) CreateOffer(_ context.Context, o *Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[o.ID] = o
	return nil
}

func (s *memStore) SetOfferActive(_ context.Context, id uuid.UUID, active bool) (*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return nil, common.ErrOfferNotFound
	}
	o.IsActive = active
	return o, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(ev notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func addOffer(t *testing.T, svc *Service, cost string) *Offer {
	t.Helper()
	o, err := svc.CreateOffer(context.Background(), NewOffer{PartnerID: "p1", Title: "Desconto 10%", FacetCost: dec(cost), OfferType: "discount"})
	require.NoError(t, err)
	return o
}

func TestFacetsFor(t *testing.T) {
	require.True(t, FacetsFor(1000).Equal(dec("1")))
	require.True(t, FacetsFor(1500).Equal(dec("1.5")))
	require.True(t, FacetsFor(1).Equal(dec("0.001")))
	require.Equal(t, "0.250", FacetsFor(250).StringFixed(FacetScale))
}

func TestConvert(t *testing.T) {
	store := newMemStore()
	store.points["u1"] = 1000
	svc := NewService(store, nil)

	res, err := svc.Convert(context.Background(), "u1", 1000)
	require.NoError(t, err)
	require.Equal(t, int64(0), res.NewPointsBalance)
	require.True(t, res.NewFacetsBalance.Equal(dec("1")))
	require.Equal(t, []int64{-1000}, store.systemLog)
}

func TestConvertInsufficientLeavesBalances(t *testing.T) {
	store := newMemStore()
	store.points["u1"] = 999
	svc := NewService(store, nil)

	_, err := svc.Convert(context.Background(), "u1", 1000)
	require.ErrorIs(t, err, common.ErrInsufficientPoints)
	require.Equal(t, int64(999), store.points["u1"])
	require.True(t, store.facets["u1"].IsZero())
	require.Empty(t, store.systemLog)
}

func TestConvertRejectsInvalidInput(t *testing.T) {
	svc := NewService(newMemStore(), nil)

	_, err := svc.Convert(context.Background(), "u1", 0)
	require.ErrorIs(t, err, common.ErrInvalidAmount)
	_, err = svc.Convert(context.Background(), "u1", -5)
	require.ErrorIs(t, err, common.ErrInvalidAmount)
	_, err = svc.Convert(context.Background(), "", 100)
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestRedeemSequence(t *testing.T) {
	store := newMemStore()
	store.facets["u1"] = dec("100")
	pub := &recordingPublisher{}
	svc := NewService(store, pub)
	offer := addOffer(t, svc, "50")
	ctx := context.Background()

	res, err := svc.Redeem(ctx, "u1", offer.ID, "")
	require.NoError(t, err)
	require.True(t, res.NewFacetsBalance.Equal(dec("50")))

	res, err = svc.Redeem(ctx, "u1", offer.ID, "")
	require.NoError(t, err)
	require.True(t, res.NewFacetsBalance.IsZero())

	_, err = svc.Redeem(ctx, "u1", offer.ID, "")
	require.ErrorIs(t, err, common.ErrInsufficientFacets)
	require.True(t, store.facets["u1"].IsZero())

	require.Len(t, store.redemptions, 2)
	require.Len(t, pub.events, 2)
	require.Equal(t, notify.EventRedeemed, pub.events[0].Type)
	require.Equal(t, offer.Title, pub.events[0].OfferTitle)
}

func TestConcurrentRedemptionsNeverOverdraw(t *testing.T) {
	store := newMemStore()
	store.facets["u1"] = dec("30")
	svc := NewService(store, nil)
	offer := addOffer(t, svc, "30")

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Redeem(context.Background(), "u1", offer.ID, "")
		}(i)
	}
	close(start)
	wg.Wait()

	ok, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case common.CodeOf(err) == common.ErrInsufficientFacets.Code:
			insufficient++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, len(errs)-1, insufficient)
	require.True(t, store.facets["u1"].IsZero())
	require.Len(t, store.redemptions, 1)
}

func TestRedeemOfferErrors(t *testing.T) {
	store := newMemStore()
	store.facets["u1"] = dec("100")
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Redeem(ctx, "u1", uuid.New(), "")
	require.ErrorIs(t, err, common.ErrOfferNotFound)

	offer := addOffer(t, svc, "10")
	_, err = svc.SetOfferActive(ctx, offer.ID, false)
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, "u1", offer.ID, "")
	require.ErrorIs(t, err, common.ErrOfferInactive)
	require.True(t, store.facets["u1"].Equal(dec("100")))

	offers, err := svc.Offers(ctx)
	require.NoError(t, err)
	require.Empty(t, offers)
}

func TestRedeemReplay(t *testing.T) {
	store := newMemStore()
	store.facets["u1"] = dec("100")
	pub := &recordingPublisher{}
	svc := NewService(store, pub)
	offer := addOffer(t, svc, "40")
	ctx := context.Background()

	first, err := svc.Redeem(ctx, "u1", offer.ID, "r-1")
	require.NoError(t, err)
	again, err := svc.Redeem(ctx, "u1", offer.ID, "r-1")
	require.NoError(t, err)

	require.True(t, again.Replayed)
	require.Equal(t, first.RedemptionID, again.RedemptionID)
	require.True(t, store.facets["u1"].Equal(dec("60")))
	require.Len(t, pub.events, 1)
}

func TestRedeemReplayForOtherOfferConflicts(t *testing.T) {
	store := newMemStore()
	store.facets["u1"] = dec("100")
	svc := NewService(store, nil)
	first := addOffer(t, svc, "40")
	second := addOffer(t, svc, "10")
	ctx := context.Background()

	res, err := svc.Redeem(ctx, "u1", first.ID, "r-1")
	require.NoError(t, err)
	require.Contains(t, res.Message, first.Title)

	_, err = svc.Redeem(ctx, "u1", second.ID, "r-1")
	require.ErrorIs(t, err, common.ErrIdempotencyConflict)
	require.True(t, store.facets["u1"].Equal(dec("60")))
	require.Len(t, store.redemptions, 1)
}

func TestCreateOfferRejectsNonPositiveCost(t *testing.T) {
	svc := NewService(newMemStore(), nil)
	_, err := svc.CreateOffer(context.Background(), NewOffer{PartnerID: "p", Title: "t", FacetCost: dec("0"), OfferType: "x"})
	require.ErrorIs(t, err, common.ErrInvalidAmount)
	_, err = svc.CreateOffer(context.Background(), NewOffer{PartnerID: "p", Title: "t", FacetCost: dec("0.0001"), OfferType: "x"})
	require.ErrorIs(t, err, common.ErrInvalidAmount)
}

func newTestRouter(svc *Service, userID string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), userID)))
		})
	})
	NewHandler(svc).Register(r)
	return r
}

func TestHandleConvertStatuses(t *testing.T) {
	store := newMemStore()
	store.points["u1"] = 500
	router := newTestRouter(NewService(store, nil), "u1")

	cases := []struct {
		body   string
		status int
		code   string
	}{
		{`{"points_amount": 1000}`, http.StatusUnprocessableEntity, "insufficient_points"},
		{`{"points_amount": 0}`, http.StatusBadRequest, "invalid_amount"},
		{`{"points": 10}`, http.StatusBadRequest, "invalid_request"},
		{`{"points_amount": 250}`, http.StatusOK, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewBufferString(tc.body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, tc.status, rec.Code, tc.body)
		if tc.code != "" {
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tc.code, resp["error"])
		}
	}
	require.Equal(t, int64(250), store.points["u1"])
}

func TestHandleRedeemValidatesOfferID(t *testing.T) {
	router := newTestRouter(NewService(newMemStore(), nil), "u1")

	req := httptest.NewRequest(http.MethodPost, "/redeem", bytes.NewBufferString(`{"offer_id":"nope"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/redeem", bytes.NewBufferString(`{"offer_id":"`+uuid.NewString()+`"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRedeemIdempotencyConflictIs409(t *testing.T) {
	store := newMemStore()
	store.facets["u1"] = dec("100")
	svc := NewService(store, nil)
	first := addOffer(t, svc, "40")
	second := addOffer(t, svc, "10")
	router := newTestRouter(svc, "u1")

	redeem := func(offerID uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/redeem", bytes.NewBufferString(`{"offer_id":"`+offerID.String()+`"}`))
		req.Header.Set(httpx.IdempotencyHeader, "r-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, redeem(first.ID).Code)
	rec := redeem(second.ID)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), common.ErrIdempotencyConflict.Code)
}
