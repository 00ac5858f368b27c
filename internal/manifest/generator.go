// Package manifest deriva tilejson.json de metadata.json para cada versión
// publicada. La salida es determinística: misma metadata y misma base URL
// producen los mismos bytes, y un manifest vigente no se reescribe.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/tileset"
	"github.com/dropDatabas3/tiledepot/internal/util/atomicwrite"
)

// ErrNoMetadata indica un directorio de versión sin metadata.json.
var ErrNoMetadata = errors.New("manifest: no metadata document")

// Report resume una corrida de Generate.
type Report struct {
	Written   []string // dataset/version
	Unchanged []string
	// Skipped: directorios sin metadata.json, no son versiones publicadas.
	Skipped []string
	Failed  []*ManifestError
}

// Err agrupa los fallos por versión (nil si no hubo).
func (r Report) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Generator escribe manifests bajo Root.
type Generator struct {
	Root    string
	BaseURL string
}

func New(root, baseURL string) *Generator {
	return &Generator{Root: root, BaseURL: baseURL}
}

// Generate recorre <Root>/<dataset>/<version> y escribe los manifests
// faltantes o desactualizados. El error retornado es solo de I/O sobre Root;
// los problemas por versión quedan en Report.Failed.
func (g *Generator) Generate(ctx context.Context) (Report, error) {
	log := logger.From(ctx)
	var rep Report

	datasets, err := dirs(g.Root)
	if err != nil {
		return rep, err
	}
	for _, ds := range datasets {
		versions, err := dirs(filepath.Join(g.Root, ds))
		if err != nil {
			return rep, err
		}
		for _, v := range versions {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			id := ds + "/" + v
			written, err := g.GenerateVersion(ds, v)
			switch {
			case errors.Is(err, ErrNoMetadata):
				log.Debug("directory without metadata, skipping", logger.Dataset(ds), logger.Version(v))
				rep.Skipped = append(rep.Skipped, id)
			case err != nil:
				var me *ManifestError
				if !errors.As(err, &me) {
					me = &ManifestError{Dataset: ds, Version: v, Err: err}
				}
				log.Warn("manifest generation failed", logger.Dataset(ds), logger.Version(v), logger.Err(err))
				rep.Failed = append(rep.Failed, me)
			case written:
				log.Info("manifest written", logger.Dataset(ds), logger.Version(v))
				rep.Written = append(rep.Written, id)
			default:
				rep.Unchanged = append(rep.Unchanged, id)
			}
		}
	}
	return rep, nil
}

// GenerateVersion escribe el manifest de una versión si falta o cambió.
// Retorna true si escribió. Sin metadata.json retorna ErrNoMetadata.
func (g *Generator) GenerateVersion(dataset, version string) (bool, error) {
	dir := tileset.VersionDir(g.Root, dataset, version)
	m, err := tileset.ReadMetadata(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, ErrNoMetadata
	}
	if err != nil {
		return false, &ManifestError{Dataset: dataset, Version: version, Err: err}
	}
	body, err := Encode(Build(g.BaseURL, dataset, version, m))
	if err != nil {
		return false, &ManifestError{Dataset: dataset, Version: version, Err: err}
	}

	target := filepath.Join(dir, tileset.ManifestFile)
	if cur, err := os.ReadFile(target); err == nil && bytes.Equal(cur, body) {
		return false, nil
	}
	if err := atomicwrite.AtomicWriteFile(target, body, 0o644); err != nil {
		return false, &ManifestError{Dataset: dataset, Version: version, Err: err}
	}
	return true, nil
}

func dirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !tileset.Hidden(e.Name()) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
