// Package extract publica snapshots de staging como versiones canónicas.
//
// La extracción ocurre en un directorio hermano <root>/<dataset>/.tmp-<version>-<id>
// y se publica con un único rename. Un crash antes del rename no deja
// directorio canónico; un crash después deja uno completo.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/tileset"
	"github.com/dropDatabas3/tiledepot/internal/util/atomicwrite"
)

// Result describe una versión publicada (o salteada por existir ya).
type Result struct {
	Dataset string
	Version string
	Dir     string
	Skipped bool
	Stats   Stats
}

// Extractor publica snapshots bajo Root.
type Extractor struct {
	Root string

	// beforePublish corre entre la validación y el rename. Solo tests.
	beforePublish func(tmp string) error
}

// New crea un Extractor para el árbol canónico root.
func New(root string) *Extractor {
	return &Extractor{Root: root}
}

// Extract publica archivePath como <Root>/<dataset>/<version>. Si la versión ya
// existe no hace nada.
func (e *Extractor) Extract(ctx context.Context, dataset, version, archivePath string) (Result, error) {
	log := logger.From(ctx).With(logger.Dataset(dataset), logger.Version(version))
	res := Result{Dataset: dataset, Version: version, Dir: tileset.VersionDir(e.Root, dataset, version)}

	if !tileset.ValidName(dataset) || !tileset.ValidName(version) {
		return res, newError(dataset, version, errors.New("invalid dataset or version name"))
	}

	if st, err := os.Stat(res.Dir); err == nil && st.IsDir() {
		log.Info("version already published, skipping extraction", logger.File(res.Dir))
		res.Skipped = true
		return res, nil
	}

	parent := filepath.Join(e.Root, dataset)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return res, newError(dataset, version, err)
	}
	tmp := filepath.Join(parent, tileset.TempPrefix+version+"-"+uuid.NewString())
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return res, newError(dataset, version, err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(tmp)
		}
	}()

	start := time.Now()
	st, err := e.unpack(ctx, archivePath, tmp)
	if err != nil {
		return res, newError(dataset, version, err)
	}
	res.Stats = st

	if _, err := tileset.ReadMetadata(tmp); err != nil {
		return res, newError(dataset, version, fmt.Errorf("metadata: %w", err))
	}
	if fi, err := os.Stat(filepath.Join(tmp, tileset.TilesDir)); err != nil || !fi.IsDir() {
		return res, newError(dataset, version, errors.New("snapshot has no tiles directory"))
	}

	if e.beforePublish != nil {
		if err := e.beforePublish(tmp); err != nil {
			return res, newError(dataset, version, err)
		}
	}

	if err := atomicwrite.PublishDir(tmp, res.Dir); err != nil {
		if errors.Is(err, atomicwrite.ErrExists) {
			// otra corrida publicó primero; la versión es inmutable
			res.Skipped = true
			return res, nil
		}
		return res, newError(dataset, version, err)
	}
	published = true

	log.Info("version published",
		logger.File(res.Dir),
		logger.Count(st.Files),
		logger.Bytes(st.Bytes),
		logger.Duration(time.Since(start)),
	)
	return res, nil
}

func (e *Extractor) unpack(ctx context.Context, archivePath, dst string) (Stats, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()
	return Untar(ctx, f, dst)
}

// ExtractAll publica cada snapshot presente en staging
// (<staging>/<dataset>/<version>/<archive>). Un snapshot corrupto no frena a
// los demás; disco lleno corta la corrida. El error retornado agrupa todos los
// fallos por versión.
func (e *Extractor) ExtractAll(ctx context.Context, staging, archive string) ([]Result, error) {
	var (
		results []Result
		errs    []error
	)
	datasets, err := subdirs(staging)
	if err != nil {
		return nil, err
	}
	for _, ds := range datasets {
		versions, err := subdirs(filepath.Join(staging, ds))
		if err != nil {
			return results, err
		}
		for _, v := range versions {
			p := filepath.Join(staging, ds, v, archive)
			if _, err := os.Stat(p); err != nil {
				continue
			}
			res, err := e.Extract(ctx, ds, v, p)
			if err != nil {
				if IsExhausted(err) || ctx.Err() != nil {
					return results, errors.Join(append(errs, err)...)
				}
				logger.From(ctx).Error("snapshot extraction failed, continuing",
					logger.Dataset(ds), logger.Version(v), logger.Err(err))
				errs = append(errs, err)
				continue
			}
			results = append(results, res)
		}
	}
	return results, errors.Join(errs...)
}

// Sweep borra directorios temporales que quedaron de extracciones abortadas.
// Debe correr con el pipeline detenido (al inicio de prepare).
func Sweep(root string) (int, error) {
	datasets, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, ds := range datasets {
		if !ds.IsDir() || tileset.Hidden(ds.Name()) {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(root, ds.Name()))
		if err != nil {
			return removed, err
		}
		for _, en := range entries {
			if en.IsDir() && strings.HasPrefix(en.Name(), tileset.TempPrefix) {
				if err := os.RemoveAll(filepath.Join(root, ds.Name(), en.Name())); err != nil {
					return removed, err
				}
				removed++
			}
		}
	}
	return removed, nil
}

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, en := range entries {
		if en.IsDir() && !tileset.Hidden(en.Name()) {
			out = append(out, en.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
