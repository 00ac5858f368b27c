// Package handlers implementa los endpoints del servidor de tiles.
package handlers

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/tiledepot/internal/cache"
	"github.com/dropDatabas3/tiledepot/internal/cache/memory"
	httperrors "github.com/dropDatabas3/tiledepot/internal/http/errors"
	"github.com/dropDatabas3/tiledepot/internal/manifest"
	"github.com/dropDatabas3/tiledepot/internal/metrics"
	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/routes"
)

const (
	contentTypeTile = "application/vnd.mapbox-vector-tile"
	contentTypeJSON = "application/json"
)

// Tiles sirve manifests y tiles de la tabla de rutas. Implementa
// routes.Handlers.
type Tiles struct {
	BaseURL string

	manifests cache.Cache
	loads     singleflight.Group
}

var _ routes.Handlers = (*Tiles)(nil)

// NewTiles crea el handler. c nil => cache en memoria con ttl; los manifests no
// cambian mientras el proceso corre, el TTL solo acota memoria.
func NewTiles(baseURL string, c cache.Cache, ttl time.Duration) *Tiles {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if c == nil {
		c = memory.New(ttl)
	}
	return &Tiles{
		BaseURL:   baseURL,
		manifests: c,
	}
}

// Manifest sirve tilejson.json de la versión. Si el archivo no existe (prepare
// corrió con skip_manifest) se genera en memoria desde la metadata.
func (t *Tiles) Manifest(g *routes.Group, v *routes.Version, _ routes.Route) http.Handler {
	key := g.Dataset + "/" + v.ID
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := t.manifest(key, g.Dataset, v)
		if err != nil {
			logger.From(r.Context()).Error("manifest load failed", logger.Dataset(g.Dataset), logger.Version(v.ID), logger.Err(err))
			httperrors.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(body))
	})
}

func (t *Tiles) manifest(key, dataset string, v *routes.Version) ([]byte, error) {
	if b, ok := t.manifests.Get(key); ok {
		metrics.ManifestCache.WithLabelValues("hit").Inc()
		return b, nil
	}
	metrics.ManifestCache.WithLabelValues("miss").Inc()

	out, err, _ := t.loads.Do(key, func() (any, error) {
		b, err := os.ReadFile(v.ManifestPath())
		if errors.Is(err, fs.ErrNotExist) {
			b, err = manifest.Encode(manifest.Build(t.BaseURL, dataset, v.ID, v.Metadata))
		}
		if err != nil {
			return nil, err
		}
		t.manifests.Set(key, b, 0)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// Tile sirve /{z}/{x}/{y}.pbf. Coordenadas inválidas dan 404 sin tocar disco;
// un tile válido que no existe es un tile vacío (204).
func (t *Tiles) Tile(g *routes.Group, v *routes.Version, _ routes.Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, err := v.ResolveTile(g.Dataset, chi.URLParam(r, "z"), chi.URLParam(r, "x"), chi.URLParam(r, "y"))
		if err != nil {
			metrics.TileRequests.WithLabelValues(g.Dataset, "not_found").Inc()
			logger.From(r.Context()).Debug("tile route rejected", logger.Err(err))
			httperrors.WriteError(w, err)
			return
		}

		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				metrics.TileRequests.WithLabelValues(g.Dataset, "empty").Inc()
				w.WriteHeader(http.StatusNoContent)
				return
			}
			metrics.TileRequests.WithLabelValues(g.Dataset, "error").Inc()
			httperrors.WriteError(w, err)
			return
		}
		defer f.Close()

		st, err := f.Stat()
		if err != nil {
			httperrors.WriteError(w, err)
			return
		}

		h := w.Header()
		h.Set("Content-Type", contentTypeTile)
		if gzipped(f) {
			h.Set("Content-Encoding", "gzip")
		}
		metrics.TileRequests.WithLabelValues(g.Dataset, "ok").Inc()
		http.ServeContent(w, r, "", st.ModTime(), f)
	})
}

// gzipped mira los magic bytes y deja el offset en 0.
func gzipped(f io.ReadSeeker) bool {
	var magic [2]byte
	n, _ := io.ReadFull(f, magic[:])
	_, _ = f.Seek(0, io.SeekStart)
	return n == 2 && magic[0] == 0x1f && magic[1] == 0x8b
}
