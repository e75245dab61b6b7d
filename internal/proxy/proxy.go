// Package proxy implements the thin edge layer that fronts the postal
// analytics service: it forwards API calls upstream and attaches the
// configured bearer token so browser and CLI callers never hold the
// credential themselves.
package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkurti/postchat/internal"
)

// Options configure the edge proxy
type Options struct {
	Upstream string
	Tokens   internal.TokenSource
	Timeout  time.Duration
}

// hopHeaders are stripped before forwarding. Connection-scoped headers
// must not cross the proxy boundary.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// NewHandler builds the proxy router: /api/* is forwarded to the
// upstream service with the bearer token injected; /healthz answers
// locally.
func NewHandler(opts Options) (http.Handler, error) {
	upstream, err := url.Parse(opts.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url %q: %w", opts.Upstream, err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be absolute", opts.Upstream)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = internal.DefaultHTTPTimeout
	}

	rp := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = upstream.Scheme
			req.URL.Host = upstream.Host
			req.Host = upstream.Host
			// The edge strips the /api prefix; upstream routes live at /
			req.URL.Path = stripAPIPrefix(req.URL.Path)

			for _, h := range hopHeaders {
				req.Header.Del(h)
			}
			if opts.Tokens != nil {
				if token, err := opts.Tokens.Token(); err == nil && token != "" {
					req.Header.Set("Authorization", "Bearer "+token)
				}
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			internal.LogWarn("Upstream request failed: %v", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
		},
		Transport: &http.Transport{ResponseHeaderTimeout: timeout},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/api/*", rp)

	return r, nil
}

func stripAPIPrefix(path string) string {
	const prefix = "/api"
	if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
		trimmed := path[len(prefix):]
		if trimmed == "" {
			return "/"
		}
		return trimmed
	}
	return path
}
