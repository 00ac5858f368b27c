package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tiledepot/internal/routes"
)

func (a *app) routesCmd() *cobra.Command {
	var (
		format    string
		debug     bool
		emptyTile string
	)
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Escanea el árbol canónico e imprime la tabla de rutas",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := routes.Scan(cmd.Context(), a.cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			return writeRoutes(cmd.OutOrStdout(), table, format, routes.NginxOptions{EmptyTile: emptyTile, Debug: debug})
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Formato: text|json|nginx")
	cmd.Flags().BoolVar(&debug, "debug", false, "nginx: agrega headers de debug por location")
	cmd.Flags().StringVar(&emptyTile, "empty-tile", "", "nginx: location para tiles ausentes (default @empty_tile)")
	return cmd
}

func writeRoutes(w io.Writer, t *routes.Table, format string, opts routes.NginxOptions) error {
	switch format {
	case "nginx":
		return routes.RenderNginx(w, t, opts)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case "text", "":
		for _, g := range t.Groups {
			fmt.Fprintf(w, "%s (latest %s)\n", g.Dataset, g.Latest)
			for _, rt := range g.Routes {
				fmt.Fprintf(w, "  %-40s %-16s z%d-%d  %s\n", rt.Pattern, rt.Kind, rt.MinZoom, rt.MaxZoom, rt.CacheControl)
			}
		}
		for _, s := range t.Skipped {
			fmt.Fprintf(w, "skipped %s: %s\n", s.Path, s.Reason)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (text|json|nginx)", format)
	}
}
