// Package devproxy forwards front-end API calls to a local backend during
// development, stripping the API prefix on the way.
package devproxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/zqadmin/ojadmin/config"
	"github.com/zqadmin/ojadmin/pkg/logger"
)

// Proxy rewrites Prefix/* to Target/* and passes upgrade requests through.
type Proxy struct {
	prefix string
	target *url.URL
	rp     *httputil.ReverseProxy
	log    logger.Logger
}

// New validates cfg and builds the proxy.
func New(cfg config.DevProxyConfig, log logger.Logger) (*Proxy, error) {
	prefix := "/" + strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "/" {
		return nil, errors.New("proxy prefix is required")
	}

	target, err := url.Parse(strings.TrimSpace(cfg.Target))
	if err != nil {
		return nil, fmt.Errorf("invalid proxy target: %w", err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("invalid proxy target %q", cfg.Target)
	}
	if log == nil {
		log = logger.Nop()
	}

	p := &Proxy{prefix: prefix, target: target, log: log}
	p.rp = &httputil.ReverseProxy{
		Rewrite:      p.rewrite,
		ErrorHandler: p.handleError,
	}
	return p, nil
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	pr.Out.URL.Path = p.strip(pr.In.URL.Path)
	pr.Out.URL.RawPath = ""
	pr.SetURL(p.target)
	pr.SetXForwarded()
}

// strip removes the prefix from an inbound path. Callers guarantee the path
// is the prefix itself or lies below it.
func (p *Proxy) strip(path string) string {
	rest := strings.TrimPrefix(path, p.prefix)
	if rest == "" {
		return "/"
	}
	return rest
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	p.log.Error(r.Context(), "upstream request failed",
		logger.String("method", r.Method),
		logger.String("path", r.URL.Path),
		logger.String("target", p.target.String()),
		logger.Error(err),
	)
	http.Error(w, "bad gateway", http.StatusBadGateway)
}

// ServeHTTP proxies requests under the prefix and answers 404 otherwise.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != p.prefix && !strings.HasPrefix(r.URL.Path, p.prefix+"/") {
		http.NotFound(w, r)
		return
	}
	p.rp.ServeHTTP(w, r)
}

// Prefix returns the normalized path prefix.
func (p *Proxy) Prefix() string { return p.prefix }

// Target returns the upstream origin.
func (p *Proxy) Target() *url.URL { return p.target }

// Handler wraps the proxy with access logging, panic recovery and CORS for
// the configured front-end origins.
func Handler(p *Proxy, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Handle(p.prefix, p)
	r.Handle(p.prefix+"/*", p)
	return r
}
