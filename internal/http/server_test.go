package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	cacheredis "github.com/dropDatabas3/tiledepot/internal/cache/redis"
	"github.com/dropDatabas3/tiledepot/internal/http/handlers"
	"github.com/dropDatabas3/tiledepot/internal/manifest"
	"github.com/dropDatabas3/tiledepot/internal/routes"
	"github.com/dropDatabas3/tiledepot/internal/tileset"
	"github.com/dropDatabas3/tiledepot/internal/tileset/tilesettest"
)

func newMonacoRouter(t *testing.T, withManifest bool) (http.Handler, string) {
	t.Helper()
	root := t.TempDir()
	tilesettest.WriteVersion(t, root, "monaco", "v1", tilesettest.MonacoFiles())
	if withManifest {
		rep, err := manifest.New(root, "https://tiles.example.com").Generate(context.Background())
		require.NoError(t, err)
		require.Len(t, rep.Written, 1)
	}
	tbl, err := routes.Scan(context.Background(), root)
	require.NoError(t, err)

	h, err := NewRouter(tbl, Options{PublicURL: "http://localhost:8080", AssetsDir: t.TempDir()})
	require.NoError(t, err)
	return h, root
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestEndToEnd_Monaco(t *testing.T) {
	h, _ := newMonacoRouter(t, true)

	rec := get(h, "/monaco")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, routes.CacheManifest, rec.Header().Get("Cache-Control"))
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var tj manifest.TileJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tj))
	require.Len(t, tj.Tiles, 1)
	require.Contains(t, tj.Tiles[0], "{z}/{x}/{y}")
	require.Equal(t, "https://tiles.example.com/monaco/v1/{z}/{x}/{y}.pbf", tj.Tiles[0])
	require.Equal(t, 0, tj.MinZoom)
	require.Equal(t, 14, tj.MaxZoom)

	rec = get(h, "/monaco/13/4264/2987.pbf")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/vnd.mapbox-vector-tile", rec.Header().Get("Content-Type"))
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	require.Equal(t, routes.CacheTile, rec.Header().Get("Cache-Control"))
	require.Equal(t, tilesettest.SampleTile, rec.Body.Bytes())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = get(h, "/monaco/v1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, routes.CacheVersionManifest, rec.Header().Get("Cache-Control"))

	rec = get(h, "/monaco/v1/14/8529/5975.pbf")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTiles_ZoomBoundaryAndEmptyTiles(t *testing.T) {
	h, _ := newMonacoRouter(t, true)

	require.Equal(t, http.StatusOK, get(h, "/monaco/14/8529/5975.pbf").Code)
	require.Equal(t, http.StatusNoContent, get(h, "/monaco/14/0/0.pbf").Code)

	for _, p := range []string{
		"/monaco/15/0/0.pbf",
		"/monaco/abc/0/0.pbf",
		"/monaco/2/4/0.pbf",
		"/monaco/v1/15/0/0.pbf",
	} {
		rec := get(h, p)
		require.Equal(t, http.StatusNotFound, rec.Code, p)
		require.Contains(t, rec.Body.String(), "TILE_NOT_FOUND", p)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"), p)
	}

	rec := get(h, "/andorra")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
}

func TestManifest_BuiltWhenFileMissing(t *testing.T) {
	h, root := newMonacoRouter(t, false)

	rec := get(h, "/monaco")
	require.Equal(t, http.StatusOK, rec.Code)
	var tj manifest.TileJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tj))
	require.Equal(t, "http://localhost:8080/monaco/v1/{z}/{x}/{y}.pbf", tj.Tiles[0])

	_, err := os.Stat(filepath.Join(root, "monaco", "v1", tileset.ManifestFile))
	require.True(t, os.IsNotExist(err), "serving nunca escribe en el árbol")

	// segunda vez sale del cache con los mismos bytes
	again := get(h, "/monaco")
	require.Equal(t, rec.Body.String(), again.Body.String())
}

func TestManifest_SharedRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	mc, err := cacheredis.New(mr.Addr(), 0, "tiledepot:manifest", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mc.Close() })

	root := t.TempDir()
	tilesettest.WriteVersion(t, root, "monaco", "v1", tilesettest.MonacoFiles())
	tbl, err := routes.Scan(context.Background(), root)
	require.NoError(t, err)
	h, err := NewRouter(tbl, Options{PublicURL: "http://localhost:8080", ManifestCache: mc})
	require.NoError(t, err)

	rec := get(h, "/monaco/v1")
	require.Equal(t, http.StatusOK, rec.Code)

	cached, err := mr.Get("tiledepot:manifest:monaco/v1")
	require.NoError(t, err)
	require.Equal(t, rec.Body.String(), cached)
}

func TestHealth(t *testing.T) {
	h, _ := newMonacoRouter(t, true)

	rec := get(h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body handlers.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, []string{"monaco"}, body.Datasets)

	require.Equal(t, http.StatusOK, get(h, "/readyz").Code)
	require.Equal(t, http.StatusOK, get(h, "/metrics").Code)
}

func TestHealth_DegradedWithoutDatasets(t *testing.T) {
	tbl, err := routes.Scan(context.Background(), t.TempDir())
	require.NoError(t, err)
	h, err := NewRouter(tbl, Options{})
	require.NoError(t, err)

	rec := get(h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"degraded"`)
	require.Contains(t, rec.Body.String(), `"datasets":[]`)

	rec = get(h, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAssets(t *testing.T) {
	assets := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(assets, "styles", "ofm"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(assets, "styles", "ofm", "style.json"), []byte(`{"version":8}`), 0o644))

	tbl, err := routes.Scan(context.Background(), t.TempDir())
	require.NoError(t, err)
	h, err := NewRouter(tbl, Options{AssetsDir: assets})
	require.NoError(t, err)

	rec := get(h, "/assets/styles/ofm/style.json")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `{"version":8}`, rec.Body.String())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	require.Equal(t, http.StatusNotFound, get(h, "/assets/styles/").Code)
}

func TestServe_GracefulShutdown(t *testing.T) {
	h, _ := newMonacoRouter(t, true)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, h, Options{ShutdownTimeout: time.Second}) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	_, err = http.Get("http://" + ln.Addr().String() + "/health")
	require.Error(t, err)
}
