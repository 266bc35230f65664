package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/pagepack/internal/assets"
	httpmiddleware "github.com/wolfeidau/pagepack/internal/http"
	"github.com/wolfeidau/pagepack/internal/settings"
	"github.com/wolfeidau/pagepack/internal/telemetry"
)

const DefaultDebounce = 150 * time.Millisecond

type Options struct {
	// SettingsPath is watched and reloaded on change when set.
	SettingsPath string
	Host         string
	Open         bool
	Opener       Opener
	Debounce     time.Duration
	Logger       zerolog.Logger
}

// Server builds the project, serves the output and rebuilds on change.
type Server struct {
	opts     Options
	logger   zerolog.Logger
	pipeline *assets.Pipeline
	hub      *Hub

	mu       sync.Mutex
	settings settings.Settings
	paths    settings.Paths
	digest   string
}

func New(s settings.Settings, mode assets.Mode, opts Options) (*Server, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	p, err := s.Resolve()
	if err != nil {
		return nil, err
	}

	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Opener == nil {
		opts.Opener = BrowserOpener
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SettingsPath != "" {
		abs, err := filepath.Abs(opts.SettingsPath)
		if err != nil {
			return nil, err
		}
		opts.SettingsPath = abs
	}

	logger := opts.Logger.With().Str("component", "devserver").Logger()

	return &Server{
		opts:   opts,
		logger: logger,
		pipeline: assets.New(s, mode,
			assets.WithLogger(opts.Logger),
			assets.WithHeadSnippet(LiveReloadSnippet),
		),
		hub:      NewHub(logger),
		settings: s,
		paths:    p,
	}, nil
}

// Pipeline returns the pipeline used for every build.
func (s *Server) Pipeline() *assets.Pipeline {
	return s.pipeline
}

// Hub returns the live reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler routes live reload, proxied and static requests.
func (s *Server) Handler() (http.Handler, error) {
	s.mu.Lock()
	cfg := s.settings.DevServer
	basePath := s.settings.Dest.BasePath
	root := s.paths.Root
	s.mu.Unlock()

	proxies, err := newProxies(cfg.Proxy, cfg.ProxyCache, cfg.ProxyCacheDir, s.logger)
	if err != nil {
		return nil, err
	}

	mount := mountPath(settings.PublicPath(basePath, root, root))

	var static http.Handler = http.StripPrefix(strings.TrimSuffix(mount, "/"), staticHandler(root))
	static = httpmiddleware.NoCache(static)
	static = gzhttp.GzipHandler(static)
	if len(cfg.CORSOrigins) > 0 {
		static = cors.New(cors.Options{AllowedOrigins: cfg.CORSOrigins}).Handler(static)
	}

	requests := httpmiddleware.RequestLogger(s.logger)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == LiveReloadPath:
			// the websocket handshake needs the raw writer
			s.hub.ServeHTTP(w, r)
		case r.URL.Path == LiveReloadScriptPath:
			serveLiveReloadScript(w, r)
		default:
			if h, ok := matchProxy(proxies, r.URL.Path); ok {
				requests(h).ServeHTTP(w, r)
				return
			}
			if r.URL.Path+"/" == mount || (r.URL.Path == "/" && mount != "/") {
				http.Redirect(w, r, mount, http.StatusFound)
				return
			}
			if !strings.HasPrefix(r.URL.Path, mount) {
				requests(http.NotFoundHandler()).ServeHTTP(w, r)
				return
			}
			requests(static).ServeHTTP(w, r)
		}
	}), nil
}

// Run does the first build, serves until ctx is done and rebuilds on every
// change under the source root. A failed build is logged and the server
// keeps waiting for changes.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if res, err := s.pipeline.Build(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Initial build failed, waiting for changes")
	} else {
		s.setDigest(res.Digest)
	}

	handler, err := s.Handler()
	if err != nil {
		return err
	}

	s.mu.Lock()
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.settings.DevServer.Port))
	s.mu.Unlock()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		s.settings.DevServer.Port = tcp.Port
	}
	home := s.settings.HomePage(s.paths)
	s.mu.Unlock()

	srv := configureHTTPServer(ln.Addr().String(), handler)

	watcher := NewWatcher(s.watchedRoots(), s.watchedFiles(), s.opts.Debounce, s.logger, s.rebuild)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			s.logger.Error().Err(err).Msg("File watcher stopped")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Str("home", home).Msg("Dev server listening")

	if s.opts.Open {
		go openWhenReady(ctx, home, s.opts.Opener, 10*time.Second, s.logger)
	}

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("Shutting down dev server")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		s.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown dev server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// watchedRoots is srcRoot plus entryDir when it lives elsewhere.
func (s *Server) watchedRoots() []string {
	roots := []string{s.paths.SrcRoot}
	if s.paths.EntryDir != s.paths.SrcRoot && !within(s.paths.SrcRoot, s.paths.EntryDir) {
		roots = append(roots, s.paths.EntryDir)
	}
	return roots
}

func (s *Server) watchedFiles() []string {
	if s.opts.SettingsPath == "" {
		return nil
	}
	return []string{s.opts.SettingsPath}
}

// rebuild runs after a batch of changes and reloads browsers when the build
// output changed.
func (s *Server) rebuild(ctx context.Context, changed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := telemetry.GetMetrics()
	m.RebuildsTriggeredTotal.Add(ctx, 1)

	if s.opts.SettingsPath != "" && slices.Contains(changed, s.opts.SettingsPath) {
		s.reloadSettings()
	}

	res, err := s.pipeline.Build(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Rebuild failed")
		return
	}
	if res.Digest == s.digest {
		s.logger.Debug().Str("digest", res.Digest).Msg("Output unchanged, not reloading")
		return
	}
	s.digest = res.Digest

	n := s.hub.Broadcast(ReloadMessage)
	m.ReloadsBroadcastTotal.Add(ctx, int64(n))
	s.logger.Info().Int("clients", n).Int("changes", len(changed)).Str("digest", res.Digest).Msg("Reloaded browsers")
}

func (s *Server) reloadSettings() {
	ns, err := settings.Load(s.opts.SettingsPath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to reload settings, keeping previous")
		return
	}
	if ns.Alias != s.settings.Alias || ns.Dest != s.settings.Dest {
		s.logger.Warn().Msg("Output layout changed, restart the dev server to serve it")
	}
	// the running server keeps its listener and proxies
	ns.DevServer = s.settings.DevServer
	s.settings = ns
	s.pipeline.SetSettings(ns)
	s.logger.Info().Str("file", s.opts.SettingsPath).Msg("Settings reloaded")
}

func (s *Server) setDigest(digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digest = digest
}

// staticHandler serves root. Directories without an index page are not listed.
func staticHandler(root string) http.Handler {
	fileServer := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := filepath.Join(root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if _, err := os.Stat(filepath.Join(p, "index.html")); err != nil {
				http.NotFound(w, r)
				return
			}
		}
		fileServer.ServeHTTP(w, r)
	})
}

// mountPath is the URL path the output root is served under. Output published
// to another host is served from /.
func mountPath(public string) string {
	if strings.Contains(public, "://") || strings.HasPrefix(public, "//") {
		return "/"
	}
	if !strings.HasPrefix(public, "/") {
		public = "/" + public
	}
	if !strings.HasSuffix(public, "/") {
		public += "/"
	}
	return public
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
