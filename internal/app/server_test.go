package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/coursemate/internal/config"
	"github.com/markdave123-py/coursemate/internal/core/ingestion_engine"
)

type staticAsker struct{}

func (staticAsker) Ask(context.Context, string) (string, error) { return "Paris.", nil }

type staticCount int

func (c staticCount) Count(context.Context) (int, error) { return int(c), nil }

func testRouter(secret string) http.Handler {
	cfg := &config.Config{
		CORSOrigins: []string{"https://lms.example.edu"},
		ChatTimeout: 5 * time.Second,
		JWTSecret:   secret,
	}
	p := ingestion_engine.NewPipeline(nil, nil, nil, nil, nil)
	ing := ingestion_engine.NewDocumentIngestor(p, ingestion_engine.IngestConfig{QueueSize: 4}, nil)
	return NewRouter(cfg, ing, staticAsker{}, staticCount(3), map[string]bool{"pdf": true}, nil)
}

func do(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Routes(t *testing.T) {
	h := testRouter("")

	rec := do(h, http.MethodPost, "/chatbot-api/ingest", `{"drive_link":"https://example.com/a.pdf"}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(h, http.MethodPost, "/chatbot-api/chat", `{"question":"capital of France?"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Paris.")

	rec = do(h, http.MethodGet, "/chatbot-api/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"indexed":3`)

	rec = do(h, http.MethodGet, "/chatbot-api/jobs/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodGet, "/ingest", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_IngestRequiresTokenWhenSecretSet(t *testing.T) {
	secret := "top"
	h := testRouter(secret)

	rec := do(h, http.MethodPost, "/chatbot-api/ingest", `{"drive_link":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "instructor",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	rec = do(h, http.MethodPost, "/chatbot-api/ingest", `{"drive_link":"x"}`, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// chat stays open
	rec = do(h, http.MethodPost, "/chatbot-api/chat", `{"question":"q"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := testRouter("")
	rec := do(h, http.MethodOptions, "/chatbot-api/chat", "", map[string]string{
		"Origin":                        "https://lms.example.edu",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, "https://lms.example.edu", rec.Header().Get("Access-Control-Allow-Origin"))
}
