package admin

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"facebrasil.com.br/gamification/internal/auth"
	"facebrasil.com.br/gamification/internal/common"
)

// Облегчённые параметры, чтобы тесты не тратили 64 MB на хеш
var testParams = HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type memStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	attempts []LoginAttempt
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*Session{}}
}

func (s *memStore) CreateSession(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.IsActive = true
	s.sessions[session.SessionToken] = session
	return nil
}

func (s *memStore) FindSession(_ context.Context, token string) (*Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok || !session.IsActive {
		return nil, false, nil
	}
	return session, true, nil
}

func (s *memStore) DeactivateSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[token]; ok {
		session.IsActive = false
	}
	return nil
}

func (s *memStore) UpdateActivity(context.Context, string) error { return nil }

func (s *memStore) LogAttempt(_ context.Context, userID string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, LoginAttempt{UserID: userID, Success: success, AttemptTime: time.Now()})
	return nil
}

func (s *memStore) CountFailedAttempts(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.attempts {
		if a.UserID == userID && !a.Success && !a.AttemptTime.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, session := range s.sessions {
		if !session.IsActive || session.ExpiresAt.Before(time.Now()) {
			delete(s.sessions, token)
			n++
		}
	}
	return n, nil
}

func newService(t *testing.T, store Store) *Service {
	t.Helper()
	hash, err := HashPassword("s3nha-forte", testParams)
	require.NoError(t, err)
	return NewService(store, hash, time.Hour)
}

func TestVerifyArgon2id(t *testing.T) {
	hash, err := HashPassword("correct horse", testParams)
	require.NoError(t, err)

	require.True(t, verifyArgon2id("correct horse", hash))
	require.False(t, verifyArgon2id("wrong horse", hash))
	require.False(t, verifyArgon2id("correct horse", "not-a-hash"))
	require.False(t, verifyArgon2id("correct horse", "$argon2id$v=19$m=x$salt$hash"))
}

func TestLoginCreatesSession(t *testing.T) {
	store := newMemStore()
	svc := newService(t, store)

	res, err := svc.Login(context.Background(), "admin-1", "s3nha-forte")
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionToken)
	require.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, time.Minute)

	session, err := svc.Authorize(context.Background(), res.SessionToken)
	require.NoError(t, err)
	require.Equal(t, "admin-1", session.UserID)
}

func TestLoginLockout(t *testing.T) {
	store := newMemStore()
	svc := newService(t, store)
	ctx := context.Background()

	for i := 0; i < MaxFailedAttempts; i++ {
		_, err := svc.Login(ctx, "admin-1", "errada")
		require.ErrorIs(t, err, common.ErrWrongPassword)
	}

	// даже верный пароль отклоняется до конца окна
	_, err := svc.Login(ctx, "admin-1", "s3nha-forte")
	require.ErrorIs(t, err, common.ErrTooManyAttempts)

	// блокировка персональная
	_, err = svc.Login(ctx, "admin-2", "s3nha-forte")
	require.NoError(t, err)

	// после окна попытки снова разрешены
	svc.now = func() time.Time { return time.Now().Add(LockoutWindow + time.Minute) }
	_, err = svc.Login(ctx, "admin-1", "s3nha-forte")
	require.NoError(t, err)
}

func TestAuthorizeErrors(t *testing.T) {
	store := newMemStore()
	svc := newService(t, store)
	ctx := context.Background()

	_, err := svc.Authorize(ctx, "")
	require.ErrorIs(t, err, common.ErrNotAdmin)

	_, err = svc.Authorize(ctx, "unknown")
	require.ErrorIs(t, err, common.ErrSessionExpired)

	res, err := svc.Login(ctx, "admin-1", "s3nha-forte")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Authorize(ctx, res.SessionToken)
	require.ErrorIs(t, err, common.ErrSessionExpired)

	svc.now = time.Now
	require.NoError(t, svc.Logout(ctx, res.SessionToken))
	_, err = svc.Authorize(ctx, res.SessionToken)
	require.ErrorIs(t, err, common.ErrSessionExpired)

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func withUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

func TestRequireSessionMiddleware(t *testing.T) {
	store := newMemStore()
	svc := newService(t, store)
	h := NewHandler(svc)

	res, err := svc.Login(context.Background(), "admin-1", "s3nha-forte")
	require.NoError(t, err)

	protected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	cases := []struct {
		name   string
		user   string
		token  string
		status int
	}{
		{"valid session", "admin-1", res.SessionToken, http.StatusTeapot},
		{"no header", "admin-1", "", http.StatusForbidden},
		{"unknown token", "admin-1", "forged", http.StatusUnauthorized},
		{"other user", "reader-9", res.SessionToken, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Use(withUser(tc.user))
			r.With(h.RequireSession).Get("/admin/ping", protected)

			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			if tc.token != "" {
				req.Header.Set(SessionHeader, tc.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestHandleLogin(t *testing.T) {
	svc := newService(t, newMemStore())
	r := chi.NewRouter()
	r.Use(withUser("admin-1"))
	NewHandler(svc).Register(r)

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"password":"errada"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"password":"s3nha-forte"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "session_token")
}
