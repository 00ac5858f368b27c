package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/pipeline"
	"github.com/dropDatabas3/tiledepot/internal/readiness"
)

func (a *app) prepareCmd() *cobra.Command {
	var (
		dataset, ver string
		skipFetch    bool
		skipAssets   bool
		keepStaging  bool
	)
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Descarga, extrae y publica un dataset; escribe el marcador Ready al final",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("dataset") {
				cfg.Pipeline.Dataset = dataset
			}
			if cmd.Flags().Changed("version") {
				cfg.Pipeline.Version = ver
			}
			if skipFetch {
				cfg.Pipeline.SkipFetch = true
			}
			if skipAssets {
				cfg.Pipeline.SkipAssets = true
			}
			if keepStaging {
				cfg.Pipeline.KeepStaging = true
			}

			marker, closeMarker, err := newMarker(cfg)
			if err != nil {
				return err
			}
			defer closeMarker()
			// prepare escribe el marcador al final: un Redis caído falla antes de descargar
			if rm, ok := marker.(*readiness.RedisMarker); ok {
				if err := rm.Ping(cmd.Context()); err != nil {
					return err
				}
			}

			p, err := newPipeline(cfg, marker)
			if err != nil {
				return err
			}
			ctx := logger.ToContext(cmd.Context(), logger.L())
			rep, err := p.Run(ctx)
			if err != nil {
				return err
			}
			printPrepare(cmd, rep)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "Dataset a preparar (pisa pipeline.dataset)")
	cmd.Flags().StringVar(&ver, "version", "", "Versión o \"latest\" (pisa pipeline.version)")
	cmd.Flags().BoolVar(&skipFetch, "skip-fetch", false, "Extraer lo que ya esté en staging sin descargar")
	cmd.Flags().BoolVar(&skipAssets, "skip-assets", false, "No instalar fonts/styles/sprites")
	cmd.Flags().BoolVar(&keepStaging, "keep-staging", false, "No borrar el snapshot de staging al terminar")
	return cmd
}

func printPrepare(cmd *cobra.Command, rep pipeline.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s/%s ready=%t\n", rep.RunID, rep.Dataset, rep.Version, rep.Ready)
	for _, d := range rep.Datasets {
		fmt.Fprintf(out, "  dataset %s\n", d)
	}
	// assets no bloquean Ready pero se reportan
	for _, f := range rep.Assets.Failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "  asset failed: %v\n", f)
	}
}
