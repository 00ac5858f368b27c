package routes

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tiledepot/internal/tileset"
	"github.com/dropDatabas3/tiledepot/internal/tileset/tilesettest"
)

func monacoTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	tilesettest.WriteVersion(t, root, "monaco", "v1", tilesettest.MonacoFiles())
	tilesettest.WriteVersion(t, root, "monaco", "v2", tilesettest.MonacoFiles())
	tilesettest.WriteVersion(t, root, "andorra", "20240101", tilesettest.MonacoFiles())
	return root
}

func TestScan_DiscoversDatasets(t *testing.T) {
	root := monacoTree(t)

	tbl, err := Scan(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, []string{"andorra", "monaco"}, tbl.Datasets())

	g, ok := tbl.Lookup("monaco")
	require.True(t, ok)
	require.Equal(t, "v2", g.Latest)
	require.Len(t, g.Versions, 2)

	var patterns []string
	for _, r := range g.Routes {
		patterns = append(patterns, r.Pattern)
	}
	require.Equal(t, []string{
		"/monaco",
		"/monaco/{z}/{x}/{y}.pbf",
		"/monaco/v1",
		"/monaco/v1/{z}/{x}/{y}.pbf",
		"/monaco/v2",
		"/monaco/v2/{z}/{x}/{y}.pbf",
	}, patterns)
	require.Equal(t, CacheManifest, g.Routes[0].CacheControl)
	require.Equal(t, CacheTile, g.Routes[1].CacheControl)
	require.Equal(t, CacheVersionManifest, g.Routes[2].CacheControl)

	_, ok = tbl.Lookup("nope")
	require.False(t, ok)
}

func TestScan_Deterministic(t *testing.T) {
	root := monacoTree(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "monaco", "broken"), 0o755))

	first, err := Scan(context.Background(), root)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Scan(context.Background(), root)
		require.NoError(t, err)
		require.True(t, reflect.DeepEqual(first, again))
	}
}

func TestScan_ExcludesPartialVersions(t *testing.T) {
	root := t.TempDir()
	tilesettest.WriteVersion(t, root, "monaco", "v1", tilesettest.MonacoFiles())

	// tiles presentes pero sin metadata
	noMeta := tilesettest.MonacoFiles()
	delete(noMeta, tileset.MetadataFile)
	tilesettest.WriteVersion(t, root, "monaco", "v9", noMeta)

	// metadata presente pero sin tiles/
	require.NoError(t, os.MkdirAll(filepath.Join(root, "monaco", "v8"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "monaco", "v8", tileset.MetadataFile), []byte(tilesettest.MonacoMetadata), 0o644))

	// extracción en curso y staging
	tilesettest.WriteVersion(t, root, "monaco", ".tmp-v7-abc", tilesettest.MonacoFiles())
	tilesettest.WriteVersion(t, root, "_staging", "v1", tilesettest.MonacoFiles())

	// dataset entero sin versiones válidas
	onlyTiles := tilesettest.MonacoFiles()
	delete(onlyTiles, tileset.MetadataFile)
	tilesettest.WriteVersion(t, root, "ghost", "v1", onlyTiles)

	tbl, err := Scan(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, []string{"monaco"}, tbl.Datasets())

	g, _ := tbl.Lookup("monaco")
	require.Len(t, g.Versions, 1)
	require.Equal(t, "v1", g.Latest)
	_, ok := g.Version("v9")
	require.False(t, ok)
	_, ok = g.Version("v8")
	require.False(t, ok)

	var skipped []string
	for _, s := range tbl.Skipped {
		skipped = append(skipped, filepath.Base(s.Path))
	}
	require.Contains(t, skipped, "v9")
	require.Contains(t, skipped, "v8")
	require.Contains(t, skipped, "ghost")
	require.NotContains(t, skipped, ".tmp-v7-abc")
}

func TestScan_ReservedNames(t *testing.T) {
	root := t.TempDir()
	tilesettest.WriteVersion(t, root, "health", "v1", tilesettest.MonacoFiles())
	tilesettest.WriteVersion(t, root, "monaco", "v1", tilesettest.MonacoFiles())

	tbl, err := Scan(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, []string{"monaco"}, tbl.Datasets())
}

func TestScan_EmptyAndMissingRoot(t *testing.T) {
	tbl, err := Scan(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.True(t, tbl.Empty())
	require.NotNil(t, tbl.Groups)

	tbl, err = Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	require.True(t, tbl.Empty())
}

func TestResolveTile_ZoomBoundary(t *testing.T) {
	root := t.TempDir()
	tilesettest.WriteVersion(t, root, "monaco", "v1", tilesettest.MonacoFiles())
	tbl, err := Scan(context.Background(), root)
	require.NoError(t, err)
	g, ok := tbl.Lookup("monaco")
	require.True(t, ok)

	p, err := g.ResolveTile("14", "8529", "5975")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "monaco", "v1", "tiles", "14", "8529", "5975.pbf"), p)

	p, err = g.ResolveTile("0", "0", "0")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "monaco", "v1", "tiles", "0", "0", "0.pbf"), p)

	for _, tc := range []struct{ z, x, y string }{
		{"15", "0", "0"},
		{"-1", "0", "0"},
		{"abc", "0", "0"},
		{"13", "x", "0"},
		{"13", "0", "1e3"},
		{"13", "8192", "0"},
		{"1", "0", "2"},
		{"", "0", "0"},
		{"+3", "0", "0"},
	} {
		_, err := g.ResolveTile(tc.z, tc.x, tc.y)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf, "%s/%s/%s", tc.z, tc.x, tc.y)
		require.Equal(t, "monaco", nf.Dataset)
	}
}

func TestVersionLookup_Latest(t *testing.T) {
	tbl, err := Scan(context.Background(), monacoTree(t))
	require.NoError(t, err)
	g, _ := tbl.Lookup("monaco")

	v, ok := g.Version(tileset.LatestVersion)
	require.True(t, ok)
	require.Equal(t, "v2", v.ID)
	require.Equal(t, 14, v.Metadata.MaxZoom)
}
