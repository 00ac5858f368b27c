package routes

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/tileset"
)

// Scanner descubre datasets bajo root.
type Scanner interface {
	Scan(ctx context.Context, root string) (*Table, error)
}

// ReservedNames son paths del servidor que un dataset no puede ocupar.
var ReservedNames = []string{"health", "readyz", "metrics", "assets"}

// FSScanner implementa Scanner sobre el filesystem local.
type FSScanner struct {
	Reserved []string
}

// NewScanner crea un FSScanner con los nombres reservados por defecto.
func NewScanner() *FSScanner { return &FSScanner{Reserved: ReservedNames} }

// Scan es NewScanner().Scan.
func Scan(ctx context.Context, root string) (*Table, error) {
	return NewScanner().Scan(ctx, root)
}

// Scan recorre <root>/<dataset>/<version>. Una versión se acepta solo con
// metadata.json válido y directorio tiles/. Un root inexistente da tabla vacía;
// el error se reserva para fallas de lectura de root mismo.
func (s *FSScanner) Scan(ctx context.Context, root string) (*Table, error) {
	log := logger.From(ctx).With(logger.Component("routes"))
	t := &Table{Root: root, Groups: []Group{}}

	datasets, err := readDirs(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("tile root does not exist, serving no datasets", logger.File(root))
			return t, nil
		}
		return nil, err
	}

	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dsPath := filepath.Join(root, ds)
		if !tileset.ValidName(ds) {
			t.skip(dsPath, "invalid dataset name")
			continue
		}
		if s.reserved(ds) {
			log.Warn("dataset name collides with a server path, skipping", logger.Dataset(ds))
			t.skip(dsPath, "reserved name")
			continue
		}

		versions, err := readDirs(dsPath)
		if err != nil {
			t.skip(dsPath, err.Error())
			continue
		}
		g := Group{Dataset: ds}
		for _, v := range versions {
			vPath := filepath.Join(dsPath, v)
			if !tileset.ValidName(v) || v == tileset.LatestVersion {
				t.skip(vPath, "invalid version name")
				continue
			}
			m, err := tileset.ReadMetadata(vPath)
			if err != nil {
				log.Debug("version without valid metadata, skipping", logger.Dataset(ds), logger.Version(v), logger.Err(err))
				t.skip(vPath, "metadata: "+err.Error())
				continue
			}
			if fi, err := os.Stat(filepath.Join(vPath, tileset.TilesDir)); err != nil || !fi.IsDir() {
				t.skip(vPath, "no tiles directory")
				continue
			}
			g.Versions = append(g.Versions, Version{ID: v, Dir: vPath, Metadata: m})
		}
		if len(g.Versions) == 0 {
			t.skip(dsPath, "no valid versions")
			continue
		}
		g.Latest = g.Versions[len(g.Versions)-1].ID
		g.Routes = buildRoutes(&g)
		t.Groups = append(t.Groups, g)
	}

	log.Info("route table built", logger.Count(len(t.Groups)), logger.Int("skipped", len(t.Skipped)))
	return t, nil
}

func (s *FSScanner) reserved(name string) bool {
	for _, r := range s.Reserved {
		if r == name {
			return true
		}
	}
	return false
}

func (t *Table) skip(path, reason string) {
	t.Skipped = append(t.Skipped, Skip{Path: path, Reason: reason})
}

func buildRoutes(g *Group) []Route {
	latest := g.LatestVersion()
	rs := []Route{
		{Pattern: "/" + g.Dataset, Kind: KindManifest, Version: latest.ID,
			MinZoom: latest.Metadata.MinZoom, MaxZoom: latest.Metadata.MaxZoom, CacheControl: CacheManifest},
		{Pattern: "/" + g.Dataset + "/{z}/{x}/{y}" + tileset.TileExt, Kind: KindTile, Version: latest.ID,
			MinZoom: latest.Metadata.MinZoom, MaxZoom: latest.Metadata.MaxZoom, CacheControl: CacheTile},
	}
	for _, v := range g.Versions {
		rs = append(rs,
			Route{Pattern: "/" + g.Dataset + "/" + v.ID, Kind: KindVersionManifest, Version: v.ID,
				MinZoom: v.Metadata.MinZoom, MaxZoom: v.Metadata.MaxZoom, CacheControl: CacheVersionManifest},
			Route{Pattern: "/" + g.Dataset + "/" + v.ID + "/{z}/{x}/{y}" + tileset.TileExt, Kind: KindVersionTile, Version: v.ID,
				MinZoom: v.Metadata.MinZoom, MaxZoom: v.Metadata.MaxZoom, CacheControl: CacheTile},
		)
	}
	return rs
}

// readDirs lista subdirectorios visibles, ordenados por nombre.
func readDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
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
