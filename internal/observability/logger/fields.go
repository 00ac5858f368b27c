package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field es un alias para no obligar a importar zap al armar listas de campos.
type Field = zap.Field

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

// Duration crea un campo para la duración de un request o etapa.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - PIPELINE / TILES
// =================================================================================

// RunID identifica una corrida de prepare.
func RunID(v string) zap.Field { return zap.String("run_id", v) }

// Stage es la etapa del pipeline: fetch, extract, assets, manifest, ready.
func Stage(v string) zap.Field { return zap.String("stage", v) }

// Dataset es el identificador del dataset (ej: "monaco", "planet").
func Dataset(v string) zap.Field { return zap.String("dataset", v) }

// Version es la versión del dataset (ej: "20240101_120000_pt").
func Version(v string) zap.Field { return zap.String("dataset_version", v) }

// Asset es el nombre de un asset compartido (fonts, sprites/ofm_f384, ...).
func Asset(v string) zap.Field { return zap.String("asset", v) }

// File es una ruta en disco.
func File(v string) zap.Field { return zap.String("file", v) }

// URL es una URL remota.
func URL(v string) zap.Field { return zap.String("url", v) }

// Bytes cuenta bytes transferidos o escritos.
func Bytes(v int64) zap.Field { return zap.Int64("bytes", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }

func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
