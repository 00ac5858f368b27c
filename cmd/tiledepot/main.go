// Command tiledepot prepara y sirve datasets de vector tiles.
//
//	tiledepot prepare   fetch + extract + assets + manifests + marcador Ready
//	tiledepot serve     espera el marcador y sirve el árbol canónico
//	tiledepot probe     verifica una réplica de punta a punta
//	tiledepot routes    imprime la tabla de rutas (text|json|nginx)
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tiledepot/internal/config"
	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
)

// version se pisa en build con -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: loading .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// app es el estado compartido entre subcomandos.
type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{configPath: envOr("TILEDEPOT_CONFIG", "")}

	root := &cobra.Command{
		Use:           "tiledepot",
		Short:         "Prepara y sirve datasets de vector tiles",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.Log.Level,
				ServiceName: "tiledepot",
				Version:     version,
			})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", a.configPath, "Archivo YAML de configuración (env TILEDEPOT_CONFIG)")

	root.AddCommand(a.prepareCmd())
	root.AddCommand(a.serveCmd())
	root.AddCommand(a.probeCmd())
	root.AddCommand(a.routesCmd())
	return root
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
