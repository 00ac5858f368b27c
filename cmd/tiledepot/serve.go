package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	httpserver "github.com/dropDatabas3/tiledepot/internal/http"
	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/readiness"
	"github.com/dropDatabas3/tiledepot/internal/routes"
)

func (a *app) serveCmd() *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Espera el marcador Ready y sirve el árbol canónico",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			log := logger.L().With(logger.Component("serve"))
			ctx := logger.ToContext(cmd.Context(), log)

			if !noWait {
				marker, closeMarker, err := newMarker(cfg)
				if err != nil {
					return err
				}
				err = readiness.Wait(ctx, marker, waitPolicy(cfg))
				_ = closeMarker()
				if err != nil {
					var te *readiness.TimeoutError
					if errors.As(err, &te) {
						log.Error("data not ready, refusing to serve", logger.Err(err))
					}
					return err
				}
			}

			// la tabla se construye una sola vez; datasets nuevos requieren reinicio
			table, err := routes.Scan(ctx, cfg.Paths.DataDir)
			if err != nil {
				return fmt.Errorf("scan %s: %w", cfg.Paths.DataDir, err)
			}
			for _, s := range table.Skipped {
				log.Warn("skipped candidate", logger.File(s.Path), logger.String("reason", s.Reason))
			}
			if table.Empty() {
				log.Warn("no datasets discovered, serving health only", logger.File(cfg.Paths.DataDir))
			}

			opts := serverOptions(cfg)
			mc, closeCache, err := newManifestCache(cfg)
			if err != nil {
				return err
			}
			defer closeCache()
			opts.ManifestCache = mc

			h, err := httpserver.NewRouter(table, opts)
			if err != nil {
				return err
			}
			log.Info("serving",
				logger.String("addr", opts.Addr),
				logger.String("cache", cfg.Cache.Driver),
				logger.Any("datasets", table.Datasets()),
			)
			return httpserver.Run(ctx, h, opts)
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "No esperar el marcador Ready (solo desarrollo)")
	return cmd
}
