package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ankur3509/GestureLab/internal/detector"
	"github.com/Ankur3509/GestureLab/internal/relay"
	"github.com/Ankur3509/GestureLab/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Health(t *testing.T) {
	r := relay.New(relay.DefaultOptions(), detector.NewMockDetector(), nil)
	s := New(Config{Source: "client", Hub: NewHub(r, nil), Relay: r})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))

		assert.Equal(t, "ok", response["status"])
		assert.Contains(t, response, "uptime")
		assert.Equal(t, "client", response["source"])
		assert.Equal(t, float64(0), response["clients"])
		assert.Equal(t, true, response["enabled"])
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "method %s", method)
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/nonexistent", "/", "/api/sessions", "/api/tracking", "/socket"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>GestureLab</body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644))

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, testContent, rec.Body.String())
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nonexistent.html", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_Tracking(t *testing.T) {
	r := relay.New(relay.DefaultOptions(), detector.NewMockDetector(), nil)
	s := New(Config{Relay: r})

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tracking", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"enabled": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled": false}`, rec.Body.String())
	assert.False(t, r.Enabled())

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tracking", nil))
	assert.JSONEq(t, `{"enabled": false}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, post(`{`).Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/tracking", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Sessions(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Sessions().Open(&store.Session{ID: "one"}))
	require.NoError(t, st.Sessions().Open(&store.Session{ID: "two"}))

	s := New(Config{Store: st})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sessions []store.Session `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Sessions, 1)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type staticSource struct{ frame []byte }

func (s staticSource) LatestJPEG() []byte { return s.frame }

func TestStreamHandler(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	ts := httptest.NewServer(NewStreamHandler(staticSource{frame: frame}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	boundary, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "--frame\r\n", boundary)

	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
	}
	body := make([]byte, len(frame))
	_, err = reader.Read(body)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(frame, body))
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewStreamHandler(staticSource{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNew(t *testing.T) {
	s := New(Config{StaticDir: "/some/path"})
	require.NotNil(t, s)
	assert.Equal(t, "/some/path", s.config.StaticDir)

	var _ http.Handler = s
}

func TestServer_ShutdownWithOpenStream(t *testing.T) {
	r := relay.New(relay.DefaultOptions(), detector.NewMockDetector(), nil)
	s := New(Config{Hub: NewHub(r, nil), Relay: r})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	// No frame has been produced yet, so the stream sits idle after its headers.
	resp, err := http.Get("http://" + ln.Addr().String() + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	case <-time.After(4 * time.Second):
		t.Fatal("Serve did not return while a stream was open")
	}
}
