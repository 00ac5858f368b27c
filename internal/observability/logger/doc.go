// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Scoping: cada request o etapa del pipeline puede llevar su propio logger
//     con campos extra (request_id, run_id, dataset) sin crear un core nuevo.
//   - Entornos: "dev" usa consola con colores, "prod" usa JSON.
//
// # Uso
//
// En main (una vez):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "tiledepot"})
//	defer logger.Sync()
//
// En etapas del pipeline y handlers:
//
//	log := logger.From(ctx).With(logger.Dataset(id))
//	log.Info("version published", logger.Version(v))
package logger
