package devserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfeidau/pagepack/internal/assets"
	"github.com/wolfeidau/pagepack/internal/settings"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func newTestServer(t *testing.T, dir string, mutate func(*settings.Settings)) *Server {
	t.Helper()
	s := settings.Default().WithDirname(dir)
	if mutate != nil {
		mutate(&s)
	}
	srv, err := New(s, assets.Development, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	return srv
}

func dialLiveReload(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ws, err := websocket.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+LiveReloadPath, "", ts.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestHandler_static(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "output", "index.html"), "<html>home</html>")
	writeFile(t, filepath.Join(dir, "output", "js", "index.js"), "console.log(1)")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "output", "empty"), 0o755))

	srv := newTestServer(t, dir, func(s *settings.Settings) {
		s.Dest.BasePath = "/app/"
	})
	h, err := srv.Handler()
	require.NoError(t, err)

	ts := httptest.NewServer(h)
	defer ts.Close()

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{name: "page", path: "/app/index.html", status: http.StatusOK, body: "home"},
		{name: "script", path: "/app/js/index.js", status: http.StatusOK, body: "console.log"},
		{name: "root redirects to base path", path: "/", status: http.StatusOK, body: "home"},
		{name: "missing file", path: "/app/missing.js", status: http.StatusNotFound},
		{name: "outside base path", path: "/other.js", status: http.StatusNotFound},
		{name: "directory without index", path: "/app/empty/", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				b, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				require.Contains(t, string(b), tt.body)
				require.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
			}
		})
	}
}

func TestHandler_liveReloadScript(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)
	h, err := srv.Handler()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, LiveReloadScriptPath, nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "javascript")
	require.Contains(t, w.Body.String(), LiveReloadPath)
}

func TestHandler_proxy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		_, _ = io.WriteString(w, "backend "+r.URL.Path)
	}))
	defer backend.Close()

	srv := newTestServer(t, t.TempDir(), func(s *settings.Settings) {
		s.DevServer.Proxy = map[string]string{"/api": backend.URL}
		s.DevServer.ProxyCache = true
	})
	h, err := srv.Handler()
	require.NoError(t, err)

	ts := httptest.NewServer(h)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/users")
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "backend /api/users", string(b))
}

func TestHandler_invalidProxyTarget(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), func(s *settings.Settings) {
		s.DevServer.Proxy = map[string]string{"/api": "localhost"}
	})
	_, err := srv.Handler()
	require.Error(t, err)
}

func TestMatchProxy(t *testing.T) {
	routes, err := newProxies(map[string]string{
		"/api":    "http://127.0.0.1:9000",
		"/api/v2": "http://127.0.0.1:9001",
	}, false, "", zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "/api/v2", routes[0].prefix)

	_, ok := matchProxy(routes, "/api")
	require.True(t, ok)
	_, ok = matchProxy(routes, "/apiary")
	require.False(t, ok)
	h, ok := matchProxy(routes, "/api/v2/users")
	require.True(t, ok)
	require.Equal(t, routes[0].handler, h)
}

func TestMountPath(t *testing.T) {
	tests := []struct {
		public   string
		expected string
	}{
		{public: "/", expected: "/"},
		{public: "/app", expected: "/app/"},
		{public: "app/", expected: "/app/"},
		{public: "https://cdn.example.com/app/", expected: "/"},
		{public: "//cdn.example.com/", expected: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.public, func(t *testing.T) {
			require.Equal(t, tt.expected, mountPath(tt.public))
		})
	}
}

func TestServer_watchedRoots(t *testing.T) {
	tests := []struct {
		name     string
		entryDir string
		expected []string
	}{
		{name: "default entry dir", expected: []string{"src"}},
		{name: "entry dir inside srcRoot", entryDir: "src/pages", expected: []string{"src"}},
		{name: "entry dir outside srcRoot", entryDir: "pages", expected: []string{"src", "pages"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			srv := newTestServer(t, dir, func(s *settings.Settings) {
				s.EntryDir = tt.entryDir
			})

			expected := make([]string, len(tt.expected))
			for i, p := range tt.expected {
				expected[i] = filepath.Join(dir, p)
			}
			require.Equal(t, expected, srv.watchedRoots())
		})
	}
}

func TestServer_rebuildReloadsOnlyOnChange(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "entry", "index.js")
	writeFile(t, src, "console.log('one')\n")
	writeFile(t, filepath.Join(dir, "src", "entry", "index.html"), "<html><head></head><body></body></html>")

	srv := newTestServer(t, dir, nil)
	ctx := context.Background()

	res, err := srv.Pipeline().Build(ctx)
	require.NoError(t, err)
	srv.setDigest(res.Digest)

	page, err := os.ReadFile(filepath.Join(dir, "output", "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(page), LiveReloadSnippet)

	ts := httptest.NewServer(srv.Hub())
	defer ts.Close()
	ws := dialLiveReload(t, ts)
	require.Eventually(t, func() bool { return srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	// unchanged output sends nothing
	srv.rebuild(ctx, []string{src})
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var msg string
	require.Error(t, websocket.Message.Receive(ws, &msg))

	ws = dialLiveReload(t, ts)
	require.Eventually(t, func() bool { return srv.Hub().Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	writeFile(t, src, "console.log('two')\n")
	srv.rebuild(ctx, []string{src})

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, websocket.Message.Receive(ws, &msg))
	require.Equal(t, ReloadMessage, msg)
}
