package handlers

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseReader struct {
	t     *testing.T
	lines chan string
}

// openStream connects to the room stream and feeds its lines to a channel.
func openStream(t *testing.T, srv *httptest.Server, path string) *sseReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return &sseReader{t: t, lines: lines}
}

// waitFor reads until a line contains want.
func (s *sseReader) waitFor(want string) string {
	s.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				s.t.Fatalf("stream ended before %q", want)
			}
			if strings.Contains(line, want) {
				return line
			}
		case <-timeout:
			s.t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestStreamRoom(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.setupRoom(t, 1)
	srv := newWSServer(t, e)

	stream := openStream(t, srv, "/sse/room/"+strings.ToLower(code))
	first := stream.waitFor(code)
	assert.Contains(t, first, "signals")

	e.attach("p2")
	_, err := e.h.dispatcher.JoinRoom("p2", code, "Bob")
	require.NoError(t, err)
	stream.waitFor(`"player-joined"`)
	stream.waitFor("Bob")

	require.NoError(t, e.h.dispatcher.LeaveRoom("p2"))
	require.NoError(t, e.h.dispatcher.LeaveRoom("p1"))
	stream.waitFor(`"room-closed"`)
}

func TestStreamRoomWithDatastarQuery(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.setupRoom(t, 1)
	srv := newWSServer(t, e)

	q := url.Values{"datastar": {`{"theme":"dark"}`}}
	stream := openStream(t, srv, "/sse/room/"+code+"?"+q.Encode())
	stream.waitFor(code)
}

func TestStreamRoomRejects(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.setupRoom(t, 1)
	router := testRouter(e)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown room", "/sse/room/NOPE00", http.StatusNotFound},
		{"foreign parameter", "/sse/room/" + code + "?x=1", http.StatusBadRequest},
		{"unlisted signal", "/sse/room/" + code + "?" + url.Values{"datastar": {`{"admin":true}`}}.Encode(), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRoomQR(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.setupRoom(t, 1)
	router := testRouter(e)

	w := do(t, router, http.MethodGet, "/room/"+code+"/qr.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "\x89PNG"))

	w = do(t, router, http.MethodGet, "/room/NOPE00/qr.png", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		proto string
		want  string
	}{
		{"from request", "", "", "http://game.example/join/ABC123"},
		{"forwarded proto", "", "https", "https://game.example/join/ABC123"},
		{"configured base", "https://play.example/", "", "https://play.example/join/ABC123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.cfg.Server.PublicBaseURL = tt.base

			r := httptest.NewRequest(http.MethodGet, "/room/ABC123/qr.png", nil)
			r.Host = "game.example"
			if tt.proto != "" {
				r.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			assert.Equal(t, tt.want, e.h.joinURL(r, "ABC123"))
		})
	}
}

func TestGenerateQRCode(t *testing.T) {
	png, err := generateQRCode("http://localhost:8080/join/ABC123")
	require.NoError(t, err)
	assert.Greater(t, len(png), 100)
	assert.Equal(t, "\x89PNG", string(png[:4]))
}
