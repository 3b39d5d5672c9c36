// Package httpx contains the HTTP delivery layer (net/http handlers) for
// the Wisp service. It maps HTTP requests to the application service while
// enforcing validation, size limits, security headers, and error
// translation. Handlers are split across files (generate.go, redeem.go,
// health.go, errors.go).
package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/haukened/wisp/internal/domain"
)

// ServicePort abstracts the subset of app.Service used by the HTTP layer.
// It is satisfied by *app.Service in production and mocked in tests.
type ServicePort interface {
	CreateSecret(ctx context.Context, secret, passphrase string) (domain.SecretID, time.Time, error)
	RedeemSecret(ctx context.Context, id, passphrase string) (string, error)
}

// Handler wires HTTP endpoints to the application service.
// It is safe for concurrent use. Zero-value is not valid; construct via New.
type Handler struct {
	Service   ServicePort
	MaxBody   int64                       // request body cap (defense-in-depth over service.MaxBytes)
	Readiness func(context.Context) error // optional readiness probe
	Metrics   http.Handler                // optional metrics snapshot endpoint

	validate *validator.Validate
}

// New returns a configured Handler.
// svc: application service port implementation.
// maxBody: maximum allowed request body size (0 disables the cap).
// readiness: optional probe function for /readyz (nil => always ready).
func New(svc ServicePort, maxBody int64, readiness func(context.Context) error) *Handler {
	return &Handler{
		Service:   svc,
		MaxBody:   maxBody,
		Readiness: readiness,
		validate:  validator.New(),
	}
}

// Router constructs and returns an http.Handler with all routes mounted and
// middleware applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate", h.handleGenerate)
	mux.HandleFunc("/secrets/", h.handleRedeem) // expect /secrets/{secret_key}
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/readyz", h.handleReady)
	if h.Metrics != nil {
		mux.Handle("/metrics", h.Metrics)
	}
	return CorrelationIDMiddleware(h.secureHeaders(mux))
}

// secureHeaders middleware adds standard security & cache control headers.
// Responses carry secrets exactly once; nothing here may ever be cached.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")
		next.ServeHTTP(w, r)
	})
}
