package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "user-123",
		"aud": "authenticated",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerify(t *testing.T) {
	v := NewVerifier(testSecret, "authenticated", "")

	sub, err := v.Verify(sign(t, validClaims(), jwt.SigningMethodHS256, []byte(testSecret)))
	require.NoError(t, err)
	require.Equal(t, "user-123", sub)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier(testSecret, "authenticated", "")

	wrongKey := sign(t, validClaims(), jwt.SigningMethodHS256, []byte("other"))
	_, err := v.Verify(wrongKey)
	require.Error(t, err)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	_, err = v.Verify(sign(t, expired, jwt.SigningMethodHS256, []byte(testSecret)))
	require.Error(t, err)

	noSub := validClaims()
	delete(noSub, "sub")
	_, err = v.Verify(sign(t, noSub, jwt.SigningMethodHS256, []byte(testSecret)))
	require.Error(t, err)

	wrongAud := validClaims()
	wrongAud["aud"] = "anon"
	_, err = v.Verify(sign(t, wrongAud, jwt.SigningMethodHS256, []byte(testSecret)))
	require.Error(t, err)

	noExp := validClaims()
	delete(noExp, "exp")
	_, err = v.Verify(sign(t, noExp, jwt.SigningMethodHS256, []byte(testSecret)))
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(testSecret, "", "")
	var seen string
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/gamification/balance", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"unauthorized","message":"autenticação necessária"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/gamification/balance", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, validClaims(), jwt.SigningMethodHS256, []byte(testSecret)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "user-123", seen)
}
