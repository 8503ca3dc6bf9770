package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impostor/internal/config"
)

func testConfig() *config.ServerConfig {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestSetupServer(t *testing.T) {
	srv, err := SetupServer(testConfig())
	require.NoError(t, err)
	handler := srv.Handler()

	testCases := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{"GET", "/health/live", http.StatusOK},
		{"GET", "/health/ready", http.StatusOK},
		{"GET", "/api/categories", http.StatusOK},
		{"GET", "/api/rooms/ZZZZZZ", http.StatusOK},
		{"GET", "/sse/room/ZZZZZZ", http.StatusNotFound},
		{"GET", "/room/ZZZZZZ/qr.png", http.StatusNotFound},
		{"POST", "/api/local/sessions", http.StatusCreated},
		{"GET", "/api/local/sessions/missing", http.StatusNotFound},
		{"GET", "/nothing-here", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tc.expectedCode, w.Code)
		})
	}
}

func TestEmbeddedCategoriesLoaded(t *testing.T) {
	srv, err := SetupServer(testConfig())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Categories []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Categories, 10)
	for _, c := range body.Categories {
		assert.NotEmpty(t, c.ID)
		assert.NotEmpty(t, c.Name)
	}
}

func TestSecurityMiddleware(t *testing.T) {
	srv, err := SetupServer(testConfig())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestRunStopsOnCancel(t *testing.T) {
	srv, err := SetupServer(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
