package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/roomdrop/internal/infrastructure/configs"
	"github.com/hilthontt/roomdrop/internal/infrastructure/logging"
	"github.com/hilthontt/roomdrop/internal/infrastructure/metrics"
	"github.com/hilthontt/roomdrop/internal/infrastructure/ratelimiter"
	filesHandler "github.com/hilthontt/roomdrop/internal/presentation/handler/files"
	healthHandler "github.com/hilthontt/roomdrop/internal/presentation/handler/health"
	roomHandler "github.com/hilthontt/roomdrop/internal/presentation/handler/rooms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	config        configs.Config
	roomHandler   *roomHandler.Handler
	healthHandler *healthHandler.Handler
	filesHandler  *filesHandler.Handler // nil unless the local disk store is in use
	logger        logging.Logger
	metrics       *metrics.Metrics
	ratelimiter   ratelimiter.Limiter
}

func NewApplication(
	config configs.Config,
	roomHandler *roomHandler.Handler,
	healthHandler *healthHandler.Handler,
	filesHandler *filesHandler.Handler,
	logger logging.Logger,
	metrics *metrics.Metrics,
	ratelimiter ratelimiter.Limiter,
) *Application {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Application{
		config:        config,
		roomHandler:   roomHandler,
		healthHandler: healthHandler,
		filesHandler:  filesHandler,
		logger:        logger,
		metrics:       metrics,
		ratelimiter:   ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(app.enableCors)

	requestTimeout := app.config.HTTP.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	limit := func(r chi.Router) chi.Router {
		return r.With(middleware.Timeout(requestTimeout), app.rateLimiterMiddleware)
	}

	r.Route("/api", func(r chi.Router) {
		limit(r).Post("/upload", app.roomHandler.UploadHandler)
		limit(r).Get("/download", app.roomHandler.DownloadHandler)

		r.Route("/rooms", func(r chi.Router) {
			limit(r).Post("/", app.roomHandler.CreateRoomHandler)
			limit(r).Get("/{code}", app.roomHandler.GetRoomHandler)
			limit(r).Post("/{code}/files", app.roomHandler.UploadToRoomHandler)
			limit(r).Post("/{code}/presign", app.roomHandler.PresignHandler)

			// Long-lived websocket; kept out of the request timeout.
			r.Get("/{code}/watch", app.roomHandler.WatchRoomHandler)
		})

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	r.Get("/healthz", app.healthHandler.GetHealth)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	if app.filesHandler != nil {
		r.Get("/files/*", app.filesHandler.ServeFile)
	}

	return otelhttp.NewHandler(r, "roomdrop.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (app *Application) Run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "shutdown requested", nil)

		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		logging.Path: srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		logging.Path: srv.Addr,
	})

	return nil
}
