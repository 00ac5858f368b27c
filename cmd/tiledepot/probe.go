package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tiledepot/internal/config"
	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/probe"
)

func (a *app) probeCmd() *cobra.Command {
	var (
		baseURL string
		tile    string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "probe [dataset...]",
		Short: "Verifica health, manifests y un tile de muestra contra una réplica",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			pc := probe.Config{
				BaseURL:  cfg.Probe.BaseURL,
				Datasets: cfg.Probe.Datasets,
				Tile:     cfg.Probe.Tile,
				Timeout:  config.Duration(cfg.Probe.Timeout, 10*time.Second),
			}
			if baseURL != "" {
				pc.BaseURL = baseURL
			}
			if tile != "" {
				pc.Tile = tile
			}
			if len(args) > 0 {
				pc.Datasets = args
			}

			ctx := logger.ToContext(cmd.Context(), logger.L())
			res := probe.Run(ctx, pc)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				for _, c := range res.Checks {
					mark := "ok  "
					if !c.OK {
						mark = "FAIL"
					}
					fmt.Fprintf(out, "%s %-24s %3d %s", mark, c.Name, c.Status, c.URL)
					if c.Error != "" {
						fmt.Fprintf(out, " (%s)", c.Error)
					}
					fmt.Fprintln(out)
				}
			}

			if !res.OK() {
				names := make([]string, 0)
				for _, c := range res.Failed() {
					names = append(names, c.Name)
				}
				if len(names) == 0 {
					names = append(names, "no checks ran")
				}
				return fmt.Errorf("probe failed: %s", strings.Join(names, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "", "URL base de la réplica (pisa probe.base_url)")
	cmd.Flags().StringVar(&tile, "tile", "", "Tile de muestra z/x/y (default: centro del manifest)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Salida JSON")
	return cmd
}
