package tileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const monacoMetadata = `{
  "name": "OpenMapTiles",
  "attribution": "<a href=\"https://www.openmaptiles.org/\">&copy; OpenMapTiles</a>",
  "bounds": "7.4090,43.7247,7.4398,43.7519",
  "center": "7.4246,43.7383,14",
  "minzoom": "0",
  "maxzoom": "14",
  "format": "pbf",
  "json": "{\"vector_layers\":[{\"id\":\"water\"}]}"
}`

func TestParseMetadata_StringForms(t *testing.T) {
	m, err := ParseMetadata([]byte(monacoMetadata))
	require.NoError(t, err)
	require.Equal(t, 0, m.MinZoom)
	require.Equal(t, 14, m.MaxZoom)
	require.Equal(t, Bounds{7.4090, 43.7247, 7.4398, 43.7519}, m.Bounds)
	require.Equal(t, []float64{7.4246, 43.7383, 14}, m.Center)
	require.Equal(t, "xyz", m.Scheme)
	require.Len(t, m.VectorLayers, 1)
}

func TestParseMetadata_NumericForms(t *testing.T) {
	m, err := ParseMetadata([]byte(`{"bounds":[-180,-85,180,85],"minzoom":2,"maxzoom":5,"scheme":"TMS"}`))
	require.NoError(t, err)
	require.Equal(t, 2, m.MinZoom)
	require.Equal(t, 5, m.MaxZoom)
	require.Equal(t, "tms", m.Scheme)
	require.Equal(t, []float64{0, 0, 2}, m.DefaultCenter())
}

func TestParseMetadata_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"missing bounds": `{"minzoom":0,"maxzoom":14}`,
		"empty bbox":     `{"bounds":[7,43,7,43],"minzoom":0,"maxzoom":14}`,
		"inverted zoom":  `{"bounds":[7,43,8,44],"minzoom":10,"maxzoom":2}`,
		"missing zoom":   `{"bounds":[7,43,8,44],"minzoom":0}`,
		"zoom too deep":  `{"bounds":[7,43,8,44],"minzoom":0,"maxzoom":31}`,
		"bad scheme":     `{"bounds":[7,43,8,44],"minzoom":0,"maxzoom":3,"scheme":"quadkey"}`,
		"bounds 3":       `{"bounds":"7,43,8","minzoom":0,"maxzoom":3}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMetadata([]byte(doc))
			require.ErrorIs(t, err, ErrInvalidMetadata)
		})
	}
}

func TestReadMetadata(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadMetadata(dir)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte(monacoMetadata), 0o644))
	m, err := ReadMetadata(dir)
	require.NoError(t, err)
	require.Equal(t, 14, m.MaxZoom)
}

func TestValidName(t *testing.T) {
	require.True(t, ValidName("monaco"))
	require.True(t, ValidName("20240101_120000_pt"))
	require.False(t, ValidName(".tmp-v1-abc"))
	require.False(t, ValidName("_tmp"))
	require.False(t, ValidName("a/b"))
	require.False(t, ValidName(""))
}
