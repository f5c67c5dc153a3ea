package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/roomdrop/internal/infrastructure/json"
	"github.com/hilthontt/roomdrop/internal/infrastructure/logging"
)

func (app *Application) rateLimiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.ratelimiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		if allow, retryAfter := app.ratelimiter.Allow(clientIP(r)); !allow {
			app.logger.Warn(logging.RequestResponse, logging.RateLimiting, "rate limit exceeded", map[logging.ExtraKey]any{
				logging.ClientIp: clientIP(r),
				logging.Path:     r.URL.Path,
			})
			json.WriteRateLimitError(w, int(retryAfter.Round(time.Second).Seconds()))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (app *Application) enableCors(next http.Handler) http.Handler {
	origins := app.config.HTTP.AllowedOrigins
	headers := strings.Join(app.config.HTTP.AllowedHeaders, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := allowedOrigin(origins, r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", headers)

		// allow preflight requests from the browser API
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogger records one structured line and one latency sample per request.
func (app *Application) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		took := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		app.metrics.ObserveRequest(r.Method, route, strconv.Itoa(status), took)

		app.logger.Info(logging.RequestResponse, logging.HTTPRequest, "request completed", map[logging.ExtraKey]any{
			logging.ClientIp:   clientIP(r),
			logging.Method:     r.Method,
			logging.Path:       r.URL.Path,
			logging.StatusCode: status,
			logging.Latency:    took.String(),
		})
	})
}

func allowedOrigin(allowed []string, origin string) string {
	for _, o := range allowed {
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}

// clientIP strips the port middleware.RealIP leaves on RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
