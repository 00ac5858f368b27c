// Package tilesettest arma snapshots y árboles canónicos para tests.
package tilesettest

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tiledepot/internal/tileset"
)

// MonacoMetadata declara zoom 0–14 y un bbox que cubre Mónaco.
const MonacoMetadata = `{"name":"monaco","attribution":"© OpenMapTiles © OpenStreetMap contributors","bounds":"7.4090,43.7247,7.4398,43.7519","minzoom":"0","maxzoom":"14","format":"pbf"}`

// SampleTile es un tile gzip-eado mínimo (los snapshots guardan tiles comprimidos).
var SampleTile = []byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// MonacoFiles es el contenido de un snapshot de Mónaco con un tile en 13/4264/2987.
func MonacoFiles() map[string][]byte {
	return map[string][]byte{
		tileset.MetadataFile:     []byte(MonacoMetadata),
		"tiles/13/4264/2987.pbf": SampleTile,
		"tiles/14/8529/5975.pbf": SampleTile,
	}
}

// Archive arma un .tar.gz con files (ruta → contenido), en orden estable.
func Archive(t testing.TB, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		body := files[n]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     n,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// WriteArchive escribe Archive(files) en path.
func WriteArchive(t testing.TB, path string, files map[string][]byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, Archive(t, files), 0o644))
}

// WriteVersion materializa files directamente en <root>/<dataset>/<version>.
func WriteVersion(t testing.TB, root, dataset, version string, files map[string][]byte) string {
	t.Helper()
	dir := tileset.VersionDir(root, dataset, version)
	for n, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(n))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, body, 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, tileset.TilesDir), 0o755))
	return dir
}
