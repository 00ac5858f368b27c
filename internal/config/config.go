package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr string `yaml:"addr"`
		// URL pública usada en los templates de tiles (ej: https://tiles.example.com)
		PublicURL       string `yaml:"public_url"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Paths struct {
		// Árbol canónico: <data_dir>/<dataset>/<version>
		DataDir    string `yaml:"data_dir"`
		StagingDir string `yaml:"staging_dir"`
		AssetsDir  string `yaml:"assets_dir"`
	} `yaml:"paths"`

	Source struct {
		Kind        string `yaml:"kind"` // http | s3
		BaseURL     string `yaml:"base_url"`
		ArchiveName string `yaml:"archive_name"`
		Timeout     string `yaml:"timeout"`

		// VerifyExisting re-hashea un snapshot ya staged antes de saltear la
		// descarga. Default true.
		VerifyExisting *bool `yaml:"verify_existing"`
		S3             struct {
			Endpoint  string `yaml:"endpoint"`
			Bucket    string `yaml:"bucket"`
			Prefix    string `yaml:"prefix"`
			AccessKey string `yaml:"access_key"`
			SecretKey string `yaml:"secret_key"`
			Secure    bool   `yaml:"secure"`
		} `yaml:"s3"`
	} `yaml:"source"`

	Assets struct {
		BaseURL string   `yaml:"base_url"`
		Names   []string `yaml:"names"`
		Sprites bool     `yaml:"sprites"`
	} `yaml:"assets"`

	Pipeline struct {
		Dataset                string `yaml:"dataset"`
		Version                string `yaml:"version"`
		SkipFetch              bool   `yaml:"skip_fetch"`
		SkipExtract            bool   `yaml:"skip_extract"`
		SkipAssets             bool   `yaml:"skip_assets"`
		SkipManifest           bool   `yaml:"skip_manifest"`
		KeepStaging            bool   `yaml:"keep_staging"`
		TolerateManifestErrors bool   `yaml:"tolerate_manifest_errors"`
	} `yaml:"pipeline"`

	Readiness struct {
		Backend     string  `yaml:"backend"` // file | redis
		MarkerPath  string  `yaml:"marker_path"`
		Interval    string  `yaml:"interval"`
		MaxInterval string  `yaml:"max_interval"`
		Multiplier  float64 `yaml:"multiplier"`
		Timeout     string  `yaml:"timeout"`
		Redis       struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
			Key  string `yaml:"key"`
		} `yaml:"redis"`
	} `yaml:"readiness"`

	Cache struct {
		// memory | redis (compartido entre réplicas)
		Driver      string `yaml:"driver"`
		ManifestTTL string `yaml:"manifest_ttl"`
		Redis       struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Probe struct {
		BaseURL  string   `yaml:"base_url"`
		Datasets []string `yaml:"datasets"`
		Tile     string   `yaml:"tile"` // z/x/y, vacío => centro a minzoom
		Timeout  string   `yaml:"timeout"`
	} `yaml:"probe"`
}

// Load lee path (si no está vacío) y aplica defaults + overrides por env.
// Un path vacío arranca solo con defaults + env.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost:8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}

	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "/data/tiles"
	}
	if c.Paths.StagingDir == "" {
		c.Paths.StagingDir = "/data/staging"
	}
	if c.Paths.AssetsDir == "" {
		c.Paths.AssetsDir = "/data/assets"
	}

	if c.Source.Kind == "" {
		c.Source.Kind = "http"
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = "https://btrfs.openfreemap.com"
	}
	if c.Source.ArchiveName == "" {
		c.Source.ArchiveName = "tiles.tar.gz"
	}
	if c.Source.Timeout == "" {
		c.Source.Timeout = "6h"
	}
	if c.Source.VerifyExisting == nil {
		verify := true
		c.Source.VerifyExisting = &verify
	}

	if c.Assets.BaseURL == "" {
		c.Assets.BaseURL = "https://assets.openfreemap.com"
	}
	if c.Assets.Names == nil {
		c.Assets.Names = []string{"fonts", "styles", "natural_earth"}
		c.Assets.Sprites = true
	}

	if c.Pipeline.Dataset == "" {
		c.Pipeline.Dataset = "planet"
	}
	if c.Pipeline.Version == "" {
		c.Pipeline.Version = "latest"
	}

	if c.Readiness.Backend == "" {
		c.Readiness.Backend = "file"
	}
	if c.Readiness.MarkerPath == "" {
		c.Readiness.MarkerPath = filepath.Join(c.Paths.DataDir, ".ready")
	}
	if c.Readiness.Interval == "" {
		c.Readiness.Interval = "5s"
	}
	if c.Readiness.MaxInterval == "" {
		c.Readiness.MaxInterval = c.Readiness.Interval
	}
	if c.Readiness.Multiplier == 0 {
		c.Readiness.Multiplier = 1
	}
	if c.Readiness.Timeout == "" {
		c.Readiness.Timeout = "10m"
	}
	if c.Readiness.Redis.Addr == "" {
		c.Readiness.Redis.Addr = "localhost:6379"
	}
	if c.Readiness.Redis.Key == "" {
		c.Readiness.Redis.Key = "tiledepot:ready"
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.ManifestTTL == "" {
		c.Cache.ManifestTTL = "5m"
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = c.Readiness.Redis.Addr
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "tiledepot:manifest"
	}

	if c.Probe.BaseURL == "" {
		c.Probe.BaseURL = "http://localhost:8080"
	}
	if c.Probe.Timeout == "" {
		c.Probe.Timeout = "10s"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// getEnvFirst retorna la primera variable definida (nombre nuevo primero, alias legacy después).
func getEnvFirst(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := getEnvStr(k); ok {
			return v, true
		}
	}
	return "", false
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvFloat(key string) (float64, bool) {
	if s, ok := getEnvStr(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// applyEnvOverrides: pisa el YAML con variables de entorno. Acepta los nombres
// que usaban los scripts de deploy (AREA, BTRFS_DIR, TILES_DIR, BTRFS_CDN_URL...).
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("PUBLIC_URL"); ok {
		c.Server.PublicURL = strings.TrimRight(v, "/")
	} else if host, ok := getEnvStr("NGINX_HOST"); ok {
		// mismo criterio que el generador de nginx: https salvo localhost
		scheme := "https"
		if host == "localhost" {
			scheme = "http"
		}
		c.Server.PublicURL = scheme + "://" + host
	}

	// PATHS
	if v, ok := getEnvFirst("DATA_DIR", "TILES_DIR"); ok {
		c.Paths.DataDir = v
	}
	if v, ok := getEnvFirst("STAGING_DIR", "BTRFS_DIR"); ok {
		c.Paths.StagingDir = v
	}
	if v, ok := getEnvStr("ASSETS_DIR"); ok {
		c.Paths.AssetsDir = v
	}

	// SOURCE
	if v, ok := getEnvStr("SOURCE_KIND"); ok {
		c.Source.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvFirst("SNAPSHOT_BASE_URL", "BTRFS_CDN_URL"); ok {
		c.Source.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := getEnvStr("SNAPSHOT_ARCHIVE_NAME"); ok {
		c.Source.ArchiveName = v
	}
	if v, ok := getEnvBool("SNAPSHOT_VERIFY_EXISTING"); ok {
		c.Source.VerifyExisting = &v
	}
	if v, ok := getEnvStr("S3_ENDPOINT"); ok {
		c.Source.S3.Endpoint = v
	}
	if v, ok := getEnvStr("S3_BUCKET"); ok {
		c.Source.S3.Bucket = v
	}
	if v, ok := getEnvStr("S3_PREFIX"); ok {
		c.Source.S3.Prefix = v
	}
	if v, ok := getEnvStr("S3_ACCESS_KEY"); ok {
		c.Source.S3.AccessKey = v
	}
	if v, ok := getEnvStr("S3_SECRET_KEY"); ok {
		c.Source.S3.SecretKey = v
	}
	if v, ok := getEnvBool("S3_SECURE"); ok {
		c.Source.S3.Secure = v
	}

	// ASSETS
	if v, ok := getEnvStr("ASSETS_CDN_URL"); ok {
		c.Assets.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := getEnvCSV("ASSETS_NAMES"); ok {
		c.Assets.Names = v
	}

	// PIPELINE
	if v, ok := getEnvFirst("DATASET", "AREA"); ok {
		c.Pipeline.Dataset = v
	}
	if v, ok := getEnvStr("VERSION"); ok {
		c.Pipeline.Version = v
	}
	if v, ok := getEnvBool("SKIP_FETCH"); ok {
		c.Pipeline.SkipFetch = v
	}
	if v, ok := getEnvBool("SKIP_EXTRACT"); ok {
		c.Pipeline.SkipExtract = v
	}
	if v, ok := getEnvBool("SKIP_ASSETS"); ok {
		c.Pipeline.SkipAssets = v
	}
	if v, ok := getEnvBool("SKIP_MANIFEST"); ok {
		c.Pipeline.SkipManifest = v
	}
	if v, ok := getEnvBool("KEEP_STAGING"); ok {
		c.Pipeline.KeepStaging = v
	}

	// READINESS
	if v, ok := getEnvStr("READINESS_BACKEND"); ok {
		c.Readiness.Backend = strings.ToLower(v)
	}
	if v, ok := getEnvStr("READINESS_MARKER"); ok {
		c.Readiness.MarkerPath = v
	}
	if v, ok := getEnvStr("READINESS_INTERVAL"); ok {
		c.Readiness.Interval = v
	}
	if v, ok := getEnvStr("READINESS_MAX_INTERVAL"); ok {
		c.Readiness.MaxInterval = v
	}
	if v, ok := getEnvFloat("READINESS_MULTIPLIER"); ok {
		c.Readiness.Multiplier = v
	}
	if v, ok := getEnvStr("READINESS_TIMEOUT"); ok {
		c.Readiness.Timeout = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Readiness.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Readiness.Redis.DB = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_DRIVER"); ok {
		c.Cache.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("CACHE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}

	// PROBE
	if v, ok := getEnvStr("PROBE_BASE_URL"); ok {
		c.Probe.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := getEnvCSV("PROBE_DATASETS"); ok {
		c.Probe.Datasets = v
	}
}

// Validate valida duraciones y valores enumerados.
func (c *Config) Validate() error {
	durations := map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"source.timeout":          c.Source.Timeout,
		"readiness.interval":      c.Readiness.Interval,
		"readiness.max_interval":  c.Readiness.MaxInterval,
		"readiness.timeout":       c.Readiness.Timeout,
		"cache.manifest_ttl":      c.Cache.ManifestTTL,
		"probe.timeout":           c.Probe.Timeout,
	}
	for key, v := range durations {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", key)
		}
	}

	switch c.Source.Kind {
	case "http":
	case "s3":
		if c.Source.S3.Endpoint == "" || c.Source.S3.Bucket == "" {
			return errors.New("config: source.s3 requires endpoint and bucket")
		}
	default:
		return fmt.Errorf("config: unknown source.kind %q", c.Source.Kind)
	}

	switch c.Readiness.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("config: unknown readiness.backend %q", c.Readiness.Backend)
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache.driver %q", c.Cache.Driver)
	}
	if c.Readiness.Multiplier < 1 {
		return errors.New("config: readiness.multiplier must be >= 1")
	}

	if strings.TrimSpace(c.Pipeline.Dataset) == "" {
		return errors.New("config: pipeline.dataset is required")
	}
	return nil
}

// Duration parsea un campo ya validado. Retorna def si s está vacío.
func Duration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
		return d
	}
	return def
}
