package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dropDatabas3/tiledepot/internal/assets"
	"github.com/dropDatabas3/tiledepot/internal/cache"
	"github.com/dropDatabas3/tiledepot/internal/cache/memory"
	cacheredis "github.com/dropDatabas3/tiledepot/internal/cache/redis"
	"github.com/dropDatabas3/tiledepot/internal/config"
	"github.com/dropDatabas3/tiledepot/internal/extract"
	"github.com/dropDatabas3/tiledepot/internal/fetch"
	httpserver "github.com/dropDatabas3/tiledepot/internal/http"
	"github.com/dropDatabas3/tiledepot/internal/manifest"
	"github.com/dropDatabas3/tiledepot/internal/pipeline"
	"github.com/dropDatabas3/tiledepot/internal/readiness"
)

func newSource(cfg *config.Config) (fetch.Source, error) {
	switch cfg.Source.Kind {
	case "s3":
		s3 := cfg.Source.S3
		src, err := fetch.NewS3Source(fetch.S3Config{
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Secure:    s3.Secure,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			Archive:   cfg.Source.ArchiveName,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case "http", "":
		client := &http.Client{Timeout: config.Duration(cfg.Source.Timeout, 6*time.Hour)}
		return fetch.NewHTTPSource(cfg.Source.BaseURL, cfg.Source.ArchiveName, client), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// newMarker retorna el marcador y una función de cierre (no-op para file).
// No verifica conectividad: serve la tolera dentro de la espera acotada.
func newMarker(cfg *config.Config) (readiness.Marker, func() error, error) {
	switch cfg.Readiness.Backend {
	case "redis":
		r := cfg.Readiness.Redis
		m := readiness.NewRedisMarker(r.Addr, r.DB, r.Key)
		return m, m.Close, nil
	case "file", "":
		return readiness.NewFileMarker(cfg.Readiness.MarkerPath), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown readiness backend %q", cfg.Readiness.Backend)
	}
}

func waitPolicy(cfg *config.Config) readiness.Policy {
	d := readiness.DefaultPolicy
	return readiness.Policy{
		Interval:    config.Duration(cfg.Readiness.Interval, d.Interval),
		MaxInterval: config.Duration(cfg.Readiness.MaxInterval, d.MaxInterval),
		Multiplier:  cfg.Readiness.Multiplier,
		Timeout:     config.Duration(cfg.Readiness.Timeout, d.Timeout),
	}
}

// newManifestCache elige el backend del cache de manifests.
func newManifestCache(cfg *config.Config) (cache.Cache, func() error, error) {
	ttl := config.Duration(cfg.Cache.ManifestTTL, 5*time.Minute)
	switch cfg.Cache.Driver {
	case "redis":
		r := cfg.Cache.Redis
		c, err := cacheredis.New(r.Addr, r.DB, r.Prefix, ttl)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "memory", "":
		return memory.New(ttl), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

func serverOptions(cfg *config.Config) httpserver.Options {
	return httpserver.Options{
		Addr:            cfg.Server.Addr,
		PublicURL:       cfg.Server.PublicURL,
		AssetsDir:       cfg.Paths.AssetsDir,
		ManifestTTL:     config.Duration(cfg.Cache.ManifestTTL, 5*time.Minute),
		ReadTimeout:     config.Duration(cfg.Server.ReadTimeout, 10*time.Second),
		WriteTimeout:    config.Duration(cfg.Server.WriteTimeout, 30*time.Second),
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout, 15*time.Second),
		Version:         version,
	}
}

func newFetcher(cfg *config.Config, src fetch.Source) *fetch.Fetcher {
	f := fetch.New(src, cfg.Paths.StagingDir, cfg.Source.ArchiveName)
	f.VerifyExisting = cfg.Source.VerifyExisting == nil || *cfg.Source.VerifyExisting
	return f
}

// newPipeline arma las etapas de prepare a partir de la configuración.
func newPipeline(cfg *config.Config, marker readiness.Marker) (*pipeline.Pipeline, error) {
	src, err := newSource(cfg)
	if err != nil {
		return nil, err
	}
	p := &pipeline.Pipeline{
		Root:       cfg.Paths.DataDir,
		StagingDir: cfg.Paths.StagingDir,
		Archive:    cfg.Source.ArchiveName,
		Fetcher:    newFetcher(cfg, src),
		Extractor:  extract.New(cfg.Paths.DataDir),
		Manifests:  manifest.New(cfg.Paths.DataDir, cfg.Server.PublicURL),
		Marker:     marker,
		Opts: pipeline.Options{
			Dataset:                cfg.Pipeline.Dataset,
			Version:                cfg.Pipeline.Version,
			SkipFetch:              cfg.Pipeline.SkipFetch,
			SkipExtract:            cfg.Pipeline.SkipExtract,
			SkipAssets:             cfg.Pipeline.SkipAssets,
			SkipManifest:           cfg.Pipeline.SkipManifest,
			KeepStaging:            cfg.Pipeline.KeepStaging,
			TolerateManifestErrors: cfg.Pipeline.TolerateManifestErrors,
		},
	}
	if !cfg.Pipeline.SkipAssets {
		a := assets.New(cfg.Assets.BaseURL, cfg.Paths.AssetsDir)
		a.Names = cfg.Assets.Names
		a.Sprites = cfg.Assets.Sprites
		p.Assets = a
	}
	return p, nil
}
