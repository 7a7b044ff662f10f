package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/battled/internal/battle"
	"github.com/fyrsmithlabs/battled/internal/logging"
	"github.com/fyrsmithlabs/battled/internal/stats"
)

// stubScorer returns a fixed class-1 probability.
type stubScorer struct {
	p1  float64
	err error
}

func (s stubScorer) Name() string     { return "stub" }
func (s stubScorer) NumFeatures() int { return 4 }

func (s stubScorer) PredictProba([]float64) (float64, float64, error) {
	return 1 - s.p1, s.p1, s.err
}

func setupTestServer(t *testing.T, scorer stubScorer, cfg *Config) (*Server, *logging.TestLogger) {
	t.Helper()

	store, err := stats.NewMemoryStore(&stats.Snapshot{
		Columns: []string{"HP", "Attack"},
		Rows: []stats.Row{
			{Name: "Pikachu", Values: []float64{35, 55}},
			{Name: "Bulbasaur", Values: []float64{45, 49}},
		},
	})
	require.NoError(t, err)

	logger := logging.NewTestLogger()
	resolver, err := battle.NewResolver(store, scorer, logger.Logger)
	require.NoError(t, err)

	server, err := NewServer(resolver, Info{Entities: store.Len(), Model: scorer.Name()}, logger.Logger, cfg)
	require.NoError(t, err)
	return server, logger
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, _ := setupTestServer(t, stubScorer{p1: 0.5}, nil)
		assert.NotNil(t, server.echo)
		assert.Equal(t, "0.0.0.0:5000", server.Addr())
		assert.Nil(t, server.limiter)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&battle.Resolver{}, Info{}, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when predictor is nil", func(t *testing.T) {
		_, err := NewServer(nil, Info{}, logging.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "predictor cannot be nil")
	})
}

func TestHandleIndex(t *testing.T) {
	server, _ := setupTestServer(t, stubScorer{p1: 0.5}, nil)

	rec := doRequest(server, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Message)
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t, stubScorer{p1: 0.5}, nil)

	rec := doRequest(server, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Entities)
	assert.Equal(t, "stub", resp.Model)
}

func TestHandlePredict_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		p1             float64
		wantWinner     string
		wantConfidence float64
	}{
		{"first favoured", 0.85, "Pikachu", 0.85},
		{"second favoured", 0.3, "Bulbasaur", 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := setupTestServer(t, stubScorer{p1: tt.p1}, nil)

			rec := doRequest(server, http.MethodPost, "/", `{"pokemon 1": "Pikachu", "pokemon 2": "Bulbasaur"}`)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp PredictResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Pikachu", resp.First)
			assert.Equal(t, "Bulbasaur", resp.Second)
			assert.Equal(t, tt.wantWinner, resp.Winner)
			assert.InDelta(t, tt.wantConfidence, resp.Confidence, 1e-9)
		})
	}
}

func TestHandlePredict(t *testing.T) {
	t.Run("second entity wins", func(t *testing.T) {
		server, _ := setupTestServer(t, stubScorer{p1: 0.15}, nil)

		rec := doRequest(server, http.MethodPost, "/", `{"pokemon 1": "Pikachu", "pokemon 2": "Bulbasaur"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp PredictResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Pikachu", resp.First)
		assert.Equal(t, "Bulbasaur", resp.Second)
		assert.Equal(t, "Bulbasaur", resp.Winner)
		assert.InDelta(t, 0.85, resp.Confidence, 1e-9)
	})

	t.Run("first entity wins", func(t *testing.T) {
		server, _ := setupTestServer(t, stubScorer{p1: 0.72}, nil)

		rec := doRequest(server, http.MethodPost, "/", `{"pokemon 1": "Pikachu", "pokemon 2": "Bulbasaur"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp PredictResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Pikachu", resp.Winner)
		assert.InDelta(t, 0.72, resp.Confidence, 1e-9)
	})

	t.Run("response carries exactly four keys", func(t *testing.T) {
		server, _ := setupTestServer(t, stubScorer{p1: 0.5}, nil)

		rec := doRequest(server, http.MethodPost, "/", `{"pokemon 1": "Pikachu", "pokemon 2": "Bulbasaur", "extra": 1}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		assert.Len(t, raw, 4)
		assert.Equal(t, "Bulbasaur", raw["winner"])
		assert.Equal(t, 0.5, raw["confidence"])
	})

	t.Run("repeated requests agree", func(t *testing.T) {
		server, _ := setupTestServer(t, stubScorer{p1: 0.3}, nil)
		body := `{"pokemon 1": "Bulbasaur", "pokemon 2": "Pikachu"}`

		first := doRequest(server, http.MethodPost, "/", body)
		second := doRequest(server, http.MethodPost, "/", body)
		require.Equal(t, http.StatusOK, first.Code)
		assert.JSONEq(t, first.Body.String(), second.Body.String())

		var resp PredictResponse
		require.NoError(t, json.Unmarshal(first.Body.Bytes(), &resp))
		assert.Equal(t, "Pikachu", resp.Winner)
		assert.InDelta(t, 0.7, resp.Confidence, 1e-9)
	})
}

func TestHandlePredict_InvalidRequest(t *testing.T) {
	server, _ := setupTestServer(t, stubScorer{p1: 0.9}, nil)

	bodies := map[string]string{
		"missing second":   `{"pokemon 1": "Pikachu"}`,
		"missing first":    `{"pokemon 2": "Pikachu"}`,
		"empty object":     `{}`,
		"wrong key":        `{"pokemon1": "Pikachu", "pokemon2": "Bulbasaur"}`,
		"non-string value": `{"pokemon 1": 25, "pokemon 2": "Bulbasaur"}`,
		"null value":       `{"pokemon 1": null, "pokemon 2": "Bulbasaur"}`,
		"array value":      `{"pokemon 1": ["Pikachu"], "pokemon 2": "Bulbasaur"}`,
		"malformed json":   `{"pokemon 1": "Pikachu", `,
		"json array":       `["Pikachu", "Bulbasaur"]`,
		"json null":        `null`,
		"json string":      `"Pikachu"`,
		"trailing data":    `{"pokemon 1": "Pikachu", "pokemon 2": "Bulbasaur"} {}`,
		"not json":         `pokemon 1=Pikachu&pokemon 2=Bulbasaur`,
		"empty body":       ` `,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(server, http.MethodPost, "/", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid request format :(", decodeError(t, rec))
		})
	}
}

func TestHandlePredict_NotFound(t *testing.T) {
	server, _ := setupTestServer(t, stubScorer{p1: 0.9}, nil)

	bodies := map[string]string{
		"unknown first":  `{"pokemon 1": "Agumon", "pokemon 2": "Pikachu"}`,
		"unknown second": `{"pokemon 1": "Pikachu", "pokemon 2": "Agumon"}`,
		"both unknown":   `{"pokemon 1": "Agumon", "pokemon 2": "Gabumon"}`,
		"wrong case":     `{"pokemon 1": "pikachu", "pokemon 2": "Bulbasaur"}`,
		"empty name":     `{"pokemon 1": "", "pokemon 2": "Bulbasaur"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(server, http.MethodPost, "/", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Pokemon not found :(", decodeError(t, rec))
		})
	}
}

func TestHandlePredict_ScorerFailure(t *testing.T) {
	server, logger := setupTestServer(t, stubScorer{err: errors.New("model exploded")}, nil)

	rec := doRequest(server, http.MethodPost, "/", `{"pokemon 1": "Pikachu", "pokemon 2": "Bulbasaur"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "prediction failed", decodeError(t, rec))
	assert.NotEmpty(t, logger.FilterMessage("prediction failed").All())
}

func TestHandlePredict_RateLimit(t *testing.T) {
	server, _ := setupTestServer(t, stubScorer{p1: 0.9}, &Config{
		Host:      "127.0.0.1",
		Port:      5000,
		RateLimit: 0.001,
		RateBurst: 1,
	})
	body := `{"pokemon 1": "Pikachu", "pokemon 2": "Bulbasaur"}`

	rec := doRequest(server, http.MethodPost, "/", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(server, http.MethodPost, "/", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too many requests", decodeError(t, rec))

	// Only predictions are limited.
	rec = doRequest(server, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	server, _ := setupTestServer(t, stubScorer{p1: 0.5}, nil)

	rec := doRequest(server, http.MethodGet, "/pokedex", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))

	rec = doRequest(server, http.MethodPut, "/", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupTestServer(t, stubScorer{p1: 0.9}, nil)

	rec := doRequest(server, http.MethodPost, "/", `{"pokemon 1": "Pikachu", "pokemon 2": "Bulbasaur"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(server, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "battled_battle_predictions_total")
	assert.Contains(t, rec.Body.String(), "battled_battle_confidence")
}

func TestRequestID(t *testing.T) {
	server, logger := setupTestServer(t, stubScorer{p1: 0.5}, nil)

	rec := doRequest(server, http.MethodGet, "/health", "")
	id := rec.Header().Get(echo.HeaderXRequestID)
	_, err := uuid.Parse(id)
	require.NoError(t, err, "request id %q", id)

	logger.AssertField(t, "http request", "request.id", id)

	// A client-supplied ID is echoed back.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderXRequestID, "trainer-red-1")
	rec = httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	assert.Equal(t, "trainer-red-1", rec.Header().Get(echo.HeaderXRequestID))
	logger.AssertField(t, "http request", "request.id", "trainer-red-1")
}

func TestRequestLogging(t *testing.T) {
	server, logger := setupTestServer(t, stubScorer{p1: 0.5}, nil)

	doRequest(server, http.MethodPost, "/", `{"pokemon 1": "Agumon", "pokemon 2": "Pikachu"}`)

	logger.AssertField(t, "http request", "status", int64(http.StatusBadRequest))
	logger.AssertField(t, "http request", "method", http.MethodPost)
}

func TestServer_StartAndShutdown(t *testing.T) {
	server, _ := setupTestServer(t, stubScorer{p1: 0.5}, &Config{
		Host:            "127.0.0.1",
		Port:            0,
		ShutdownTimeout: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
