package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "planet", c.Pipeline.Dataset)
	require.Equal(t, "latest", c.Pipeline.Version)
	require.Equal(t, "file", c.Readiness.Backend)
	require.Equal(t, filepath.Join("/data/tiles", ".ready"), c.Readiness.MarkerPath)
	require.Equal(t, []string{"fonts", "styles", "natural_earth"}, c.Assets.Names)
	require.True(t, c.Assets.Sprites)
	require.True(t, *c.Source.VerifyExisting)
	require.Equal(t, 10*time.Minute, Duration(c.Readiness.Timeout, 0))
}

func TestLoad_YAMLAndLegacyEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
paths:
  data_dir: /srv/tiles
pipeline:
  dataset: monaco
  version: 20240101_120000_pt
readiness:
  interval: 1s
  timeout: 5s
`), 0o644))

	t.Setenv("AREA", "andorra")
	t.Setenv("BTRFS_CDN_URL", "https://mirror.example.com/")
	t.Setenv("NGINX_HOST", "tiles.example.com")
	t.Setenv("SKIP_ASSETS", "true")

	c, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "andorra", c.Pipeline.Dataset)
	require.Equal(t, "20240101_120000_pt", c.Pipeline.Version)
	require.Equal(t, "https://mirror.example.com", c.Source.BaseURL)
	require.Equal(t, "https://tiles.example.com", c.Server.PublicURL)
	require.True(t, c.Pipeline.SkipAssets)
	require.Equal(t, "/srv/tiles/.ready", c.Readiness.MarkerPath)
	require.Equal(t, "1s", c.Readiness.MaxInterval)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("READINESS_TIMEOUT", "soon")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_S3RequiresBucket(t *testing.T) {
	t.Setenv("SOURCE_KIND", "s3")
	t.Setenv("S3_ENDPOINT", "minio:9000")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("S3_BUCKET", "snapshots")
	_, err = Load("")
	require.NoError(t, err)
}

func TestLoad_CacheDriver(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "memory", c.Cache.Driver)
	require.Equal(t, c.Readiness.Redis.Addr, c.Cache.Redis.Addr)
	require.Equal(t, "tiledepot:manifest", c.Cache.Redis.Prefix)

	t.Setenv("CACHE_DRIVER", "Redis")
	c, err = Load("")
	require.NoError(t, err)
	require.Equal(t, "redis", c.Cache.Driver)

	t.Setenv("CACHE_DRIVER", "memcached")
	_, err = Load("")
	require.Error(t, err)
}
