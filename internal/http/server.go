// Package http arma el router de una réplica de serving y lo corre con
// apagado ordenado.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/tiledepot/internal/cache"
	httperrors "github.com/dropDatabas3/tiledepot/internal/http/errors"
	"github.com/dropDatabas3/tiledepot/internal/http/handlers"
	mw "github.com/dropDatabas3/tiledepot/internal/http/middlewares"
	"github.com/dropDatabas3/tiledepot/internal/metrics"
	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/routes"
)

// Options configura el router y el servidor.
type Options struct {
	Addr            string
	PublicURL       string
	AssetsDir       string
	ManifestTTL     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Version         string

	// ManifestCache nil => memoria por réplica.
	ManifestCache cache.Cache
}

// NewRouter monta health, métricas, assets y las rutas de t.
func NewRouter(t *routes.Table, opts Options) (http.Handler, error) {
	if err := metrics.Register(nil); err != nil {
		return nil, err
	}
	if err := mw.RegisterMetrics(nil); err != nil {
		return nil, err
	}
	metrics.DatasetsDiscovered.Set(float64(len(t.Datasets())))

	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithMetrics(),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	health := &handlers.Health{Table: t, Version: opts.Version, Started: time.Now()}
	r.Get("/health", health.Live)
	r.Get("/readyz", health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if opts.AssetsDir != "" {
		r.Method(http.MethodGet, "/assets/*", handlers.Assets(opts.AssetsDir, "/assets"))
	}

	routes.Mount(r, t, handlers.NewTiles(opts.PublicURL, opts.ManifestCache, opts.ManifestTTL))
	return r, nil
}

// Run sirve h hasta que ctx se cancela y después drena conexiones por hasta
// ShutdownTimeout.
func Run(ctx context.Context, h http.Handler, opts Options) error {
	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, h, opts)
}

// Serve es Run sobre un listener ya abierto.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, opts Options) error {
	log := logger.From(ctx).With(logger.Component("http"))
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	log.Info("shutting down", logger.Duration(timeout))
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
