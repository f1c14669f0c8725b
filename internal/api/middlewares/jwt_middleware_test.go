package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTMiddleware(t *testing.T) {
	secret := "s3cret"
	var seen string
	h := JWTMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(auth string) int {
		req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	valid := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": "prof-42", "exp": time.Now().Add(time.Hour).Unix(),
	})
	assert.Equal(t, http.StatusNoContent, call("Bearer "+valid))
	assert.Equal(t, "prof-42", seen)

	legacy := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"user_id": "u-1"})
	assert.Equal(t, http.StatusNoContent, call("Bearer "+legacy))
	assert.Equal(t, "u-1", seen)

	expired := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": "x", "exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "x"})
	wrongAlg := sign(t, jwt.SigningMethodHS384, []byte(secret), jwt.MapClaims{"sub": "x"})

	for name, auth := range map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"expired":    "Bearer " + expired,
		"wrong key":  "Bearer " + wrongKey,
		"wrong alg":  "Bearer " + wrongAlg,
	} {
		assert.Equal(t, http.StatusUnauthorized, call(auth), name)
	}
}
