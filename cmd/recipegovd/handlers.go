package main

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platewise-ai/governor"
	"github.com/platewise-ai/governor/internal/logging"
	"github.com/platewise-ai/governor/internal/metrics"
	"github.com/platewise-ai/governor/internal/ratelimit"
	"github.com/platewise-ai/governor/recipes"
)

// newRouter builds the HTTP router.
func newRouter(svc *recipes.Service, reg *governor.Registry, cfg governor.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(chimiddleware.Recoverer)
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(rateLimitMiddleware(cfg.RateLimit))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/recipes/suggestions", handleSuggestions(svc))
		r.Post("/recipes/photo", handlePhoto(svc))
		r.Post("/recipes/identify", handleIdentify(svc))
		r.Get("/governor/stats", handleStats(svc, reg))
	})

	return r
}

func handleSuggestions(svc *recipes.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params recipes.SuggestParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		suggestions, err := svc.Suggest(r.Context(), params)
		if err != nil {
			writeGenerateError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
	}
}

func handlePhoto(svc *recipes.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params recipes.PhotoParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		img, err := svc.Photo(r.Context(), params)
		if err != nil {
			writeGenerateError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"image": img})
	}
}

func handleIdentify(svc *recipes.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params recipes.IdentifyParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ingredients, err := svc.Identify(r.Context(), params)
		if err != nil {
			writeGenerateError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ingredients": ingredients})
	}
}

func handleStats(svc *recipes.Service, reg *governor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"limiters": reg.Stats(),
			"caches":   svc.CacheStats(),
		})
	}
}

// writeGenerateError maps service errors to HTTP responses. Generate only
// errors for invalid params or a cancelled request, so anything that is
// not a cancellation is a 400.
func writeGenerateError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		// Client went away; the response will not be read.
		writeError(w, http.StatusRequestTimeout, "request cancelled")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// rateLimitMiddleware applies a per-client-IP token bucket ahead of the
// handlers.
func rateLimitMiddleware(cfg governor.RateLimitConfig) func(http.Handler) http.Handler {
	store := ratelimit.NewStore(cfg.RequestsPerSecond, cfg.Burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if host, _, err := net.SplitHostPort(key); err == nil {
				key = host
			}
			if !store.Allow(key) {
				metrics.RateLimitRejections.WithLabelValues("ip").Inc()
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
