// Package pipeline orquesta una corrida de prepare:
//
//	sweep → fetch → extract → assets → manifest → marcador Ready
//
// Las etapas corren en secuencia; el orden es de correctitud (extract depende
// de fetch, manifest de extract). El marcador es la última escritura de la
// corrida y solo se escribe si ninguna etapa bloqueante falló.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/tiledepot/internal/assets"
	"github.com/dropDatabas3/tiledepot/internal/extract"
	"github.com/dropDatabas3/tiledepot/internal/fetch"
	"github.com/dropDatabas3/tiledepot/internal/manifest"
	"github.com/dropDatabas3/tiledepot/internal/metrics"
	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/readiness"
	"github.com/dropDatabas3/tiledepot/internal/routes"
	"github.com/dropDatabas3/tiledepot/internal/tileset"
)

// Options son los flags de una corrida.
type Options struct {
	Dataset string
	Version string

	SkipFetch    bool
	SkipExtract  bool
	SkipAssets   bool
	SkipManifest bool

	KeepStaging            bool
	TolerateManifestErrors bool
}

// Pipeline agrupa las etapas. Assets puede ser nil (equivale a SkipAssets).
type Pipeline struct {
	Root       string
	StagingDir string
	Archive    string

	Fetcher   *fetch.Fetcher
	Extractor *extract.Extractor
	Assets    *assets.Provisioner
	Manifests *manifest.Generator
	Marker    readiness.Marker

	Opts Options
}

// Report resume una corrida.
type Report struct {
	RunID     string
	Dataset   string
	Version   string
	Fetched   *fetch.Artifact
	Extracted []extract.Result
	Assets    assets.Report
	Manifests manifest.Report
	Datasets  []string
	Ready     bool
}

// StageError indica en qué etapa abortó la corrida.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("prepare: %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Run ejecuta la corrida completa. Re-ejecutarla con los mismos inputs no
// transfiere ni extrae de nuevo.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Dataset: p.Opts.Dataset, Version: p.Opts.Version}
	log := logger.From(ctx).With(logger.RunID(rep.RunID))
	ctx = logger.ToContext(ctx, log)
	log.Info("prepare started", logger.Dataset(p.Opts.Dataset), logger.Version(p.Opts.Version))
	start := time.Now()

	if n, err := extract.Sweep(p.Root); err != nil {
		return rep, &StageError{Stage: "sweep", Err: err}
	} else if n > 0 {
		log.Warn("removed leftover temporary directories", logger.Count(n))
	}

	if err := p.stage(ctx, "fetch", p.Opts.SkipFetch, func(ctx context.Context) (string, error) {
		return p.fetch(ctx, &rep)
	}); err != nil {
		return rep, err
	}

	if err := p.stage(ctx, "extract", p.Opts.SkipExtract, func(ctx context.Context) (string, error) {
		return p.extract(ctx, &rep)
	}); err != nil {
		return rep, err
	}

	_ = p.stage(ctx, "assets", p.Opts.SkipAssets || p.Assets == nil, func(ctx context.Context) (string, error) {
		rep.Assets = p.Assets.Provision(ctx)
		if !rep.Assets.OK() {
			// best-effort: se reporta y se sigue
			log.Warn("some assets could not be provisioned", logger.Count(len(rep.Assets.Failed)), logger.Err(rep.Assets.Err()))
			return metrics.ResultFailed, nil
		}
		if len(rep.Assets.Installed) == 0 {
			return metrics.ResultSkipped, nil
		}
		return metrics.ResultDone, nil
	})

	if err := p.stage(ctx, "manifest", p.Opts.SkipManifest, func(ctx context.Context) (string, error) {
		mr, err := p.Manifests.Generate(ctx)
		rep.Manifests = mr
		if err != nil {
			return metrics.ResultFailed, err
		}
		if len(mr.Failed) > 0 {
			if !p.Opts.TolerateManifestErrors {
				return metrics.ResultFailed, mr.Err()
			}
			log.Warn("manifest errors tolerated", logger.Count(len(mr.Failed)), logger.Err(mr.Err()))
		}
		if len(mr.Written) == 0 {
			return metrics.ResultSkipped, nil
		}
		return metrics.ResultDone, nil
	}); err != nil {
		return rep, err
	}

	tbl, err := routes.Scan(ctx, p.Root)
	if err != nil {
		return rep, &StageError{Stage: "ready", Err: err}
	}
	rep.Datasets = tbl.Datasets()

	rec := readiness.Record{At: time.Now().UTC(), RunID: rep.RunID, Datasets: rep.Datasets}
	if err := p.Marker.Mark(ctx, rec); err != nil {
		return rep, &StageError{Stage: "ready", Err: err}
	}
	rep.Ready = true
	log.Info("prepare finished, data marked ready",
		logger.Count(len(rep.Datasets)),
		logger.Duration(time.Since(start)),
	)
	return rep, nil
}

// stage corre fn midiendo duración y resultado. fn retorna el label de
// resultado (done|skipped|failed).
func (p *Pipeline) stage(ctx context.Context, name string, skip bool, fn func(context.Context) (string, error)) error {
	log := logger.From(ctx).With(logger.Stage(name))
	if skip {
		log.Info("stage disabled")
		metrics.StageResults.WithLabelValues(name, metrics.ResultSkipped).Inc()
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: err}
	}

	start := time.Now()
	result, err := fn(logger.ToContext(ctx, log))
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		result = metrics.ResultFailed
	}
	metrics.StageResults.WithLabelValues(name, result).Inc()
	if err != nil {
		log.Error("stage failed", logger.Err(err))
		return &StageError{Stage: name, Err: err}
	}
	log.Info("stage finished", logger.String("result", result), logger.Duration(time.Since(start)))
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, rep *Report) (string, error) {
	version, err := p.Fetcher.Resolve(ctx, p.Opts.Dataset, p.Opts.Version)
	if err != nil {
		return metrics.ResultFailed, err
	}
	rep.Version = version

	if published(p.Root, p.Opts.Dataset, version) {
		logger.From(ctx).Info("version already published, nothing to fetch",
			logger.Dataset(p.Opts.Dataset), logger.Version(version))
		return metrics.ResultSkipped, nil
	}

	a, err := p.Fetcher.Fetch(ctx, p.Opts.Dataset, version)
	if err != nil {
		return metrics.ResultFailed, err
	}
	rep.Fetched = &a
	if a.Skipped {
		return metrics.ResultSkipped, nil
	}
	return metrics.ResultDone, nil
}

func (p *Pipeline) extract(ctx context.Context, rep *Report) (string, error) {
	// con fetch deshabilitado se publica todo lo que haya en staging
	if rep.Fetched == nil {
		if !p.Opts.SkipFetch {
			return metrics.ResultSkipped, nil
		}
		results, err := p.Extractor.ExtractAll(ctx, p.StagingDir, p.Archive)
		rep.Extracted = results
		for _, r := range results {
			if !r.Skipped {
				p.cleanStaging(ctx, fetch.StagedPath(p.StagingDir, r.Dataset, r.Version, p.Archive))
			}
		}
		if err != nil {
			return metrics.ResultFailed, err
		}
		return resultOf(results), nil
	}

	a := rep.Fetched
	res, err := p.Extractor.Extract(ctx, a.Dataset, a.Version, a.Path)
	if err != nil {
		if extract.IsExhausted(err) {
			logger.From(ctx).Error("disk exhausted during extraction, aborting run", logger.Err(err))
		}
		return metrics.ResultFailed, err
	}
	rep.Extracted = []extract.Result{res}
	p.cleanStaging(ctx, a.Path)
	return resultOf(rep.Extracted), nil
}

func (p *Pipeline) cleanStaging(ctx context.Context, archivePath string) {
	if p.Opts.KeepStaging {
		return
	}
	for _, f := range []string{archivePath, archivePath + ".sha256"} {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.From(ctx).Warn("could not remove staged file", logger.File(f), logger.Err(err))
		}
	}
	// <staging>/<dataset>/<version> y <staging>/<dataset> si quedaron vacíos
	dir := filepath.Dir(archivePath)
	for i := 0; i < 2 && dir != p.StagingDir; i++ {
		if os.Remove(dir) != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
}

func published(root, dataset, version string) bool {
	st, err := os.Stat(tileset.VersionDir(root, dataset, version))
	return err == nil && st.IsDir()
}

func resultOf(results []extract.Result) string {
	for _, r := range results {
		if !r.Skipped {
			return metrics.ResultDone
		}
	}
	return metrics.ResultSkipped
}
