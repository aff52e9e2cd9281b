// Package opsserver serves the operational endpoints of long-running
// processes: /health and, when Prometheus is enabled, /metrics.
package opsserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/gallery-ai/critic/internal/observability"
)

const (
	requestIDHeader = "X-Request-ID"
	pingTimeout     = 2 * time.Second
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Params configures New. Metrics, DB and both providers are optional.
type Params struct {
	Addr           string
	Name           string
	Metrics        http.Handler
	DB             Pinger
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
}

// New returns an unstarted server for p.
func New(p Params) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health(p.DB))

	if p.Metrics != nil {
		mux.Handle("GET /metrics", p.Metrics)
	}

	otelOpts := []otelhttp.Option{
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if p.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(p.MeterProvider))
	}

	if p.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(p.TracerProvider))
	}

	name := p.Name
	if name == "" {
		name = "critic-ops"
	}

	handler := RequestID(otelhttp.NewHandler(mux, name, otelOpts...))

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 15 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         p.Addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// RequestID ensures every request carries an X-Request-ID in its context and
// response header, generating one when the client sent none.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}

		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(observability.WithRequestID(r.Context(), id)))
	})
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, "OK"

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			defer cancel()

			if err := db.Ping(ctx); err != nil {
				slog.WarnContext(r.Context(), "health check: database unreachable", "error", err)

				status, body = http.StatusServiceUnavailable, "database unavailable"
			}
		}

		w.WriteHeader(status)

		if _, err := w.Write([]byte(body)); err != nil {
			slog.Error("Failed to write health check response", "error", err)
		}
	}
}
