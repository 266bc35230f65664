package devserver

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/rs/zerolog"
)

// newCachingTransport caches proxied responses that allow it. With an empty
// cacheDir the cache lives in memory.
func newCachingTransport(cacheDir string) http.RoundTripper {
	if cacheDir == "" {
		return httpcache.NewTransport(httpcache.NewMemoryCache())
	}
	return httpcache.NewTransport(diskcache.New(cacheDir))
}

type proxyRoute struct {
	prefix  string
	handler http.Handler
}

// newProxies builds one reverse proxy per path prefix, longest prefix first.
func newProxies(targets map[string]string, cache bool, cacheDir string, logger zerolog.Logger) ([]proxyRoute, error) {
	var transport http.RoundTripper
	if cache {
		transport = newCachingTransport(cacheDir)
	}

	routes := make([]proxyRoute, 0, len(targets))
	for prefix, target := range targets {
		if !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("proxy prefix %q must start with /", prefix)
		}
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy target %q: %w", target, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy target %q must be an absolute URL", target)
		}

		rp := httputil.NewSingleHostReverseProxy(u)
		if transport != nil {
			rp.Transport = transport
		}
		rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn().Err(err).Str("path", r.URL.Path).Str("target", target).Msg("Proxy request failed")
			w.WriteHeader(http.StatusBadGateway)
		}

		routes = append(routes, proxyRoute{prefix: prefix, handler: rp})
		logger.Info().Str("prefix", prefix).Str("target", target).Bool("cache", cache).Msg("Proxying requests")
	}

	sort.Slice(routes, func(i, j int) bool {
		if len(routes[i].prefix) != len(routes[j].prefix) {
			return len(routes[i].prefix) > len(routes[j].prefix)
		}
		return routes[i].prefix < routes[j].prefix
	})
	return routes, nil
}

func matchProxy(routes []proxyRoute, path string) (http.Handler, bool) {
	for _, route := range routes {
		p := strings.TrimSuffix(route.prefix, "/")
		if path == p || strings.HasPrefix(path, p+"/") || p == "" {
			return route.handler, true
		}
	}
	return nil, false
}
