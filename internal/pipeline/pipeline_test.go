package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/tiledepot/internal/assets"
	"github.com/dropDatabas3/tiledepot/internal/extract"
	"github.com/dropDatabas3/tiledepot/internal/fetch"
	"github.com/dropDatabas3/tiledepot/internal/manifest"
	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/readiness"
	"github.com/dropDatabas3/tiledepot/internal/tileset"
	"github.com/dropDatabas3/tiledepot/internal/tileset/tilesettest"
)

const archiveName = "tiles.tar.gz"

type cdn struct {
	*httptest.Server
	archiveHits atomic.Int32
}

func newCDN(t *testing.T) *cdn {
	t.Helper()
	body := tilesettest.Archive(t, tilesettest.MonacoFiles())
	sum := sha256.Sum256(body)
	c := &cdn{}
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files.txt":
			_, _ = w.Write([]byte("areas/monaco/v0/tiles.tar.gz\nareas/monaco/v1/tiles.tar.gz\n"))
		case "/areas/monaco/v1/tiles.tar.gz":
			c.archiveHits.Add(1)
			_, _ = w.Write(body)
		case "/areas/monaco/v1/tiles.tar.gz.sha256":
			_, _ = w.Write([]byte(hex.EncodeToString(sum[:]) + "  tiles.tar.gz\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(c.Close)
	return c
}

type env struct {
	root, staging string
	marker        *readiness.FileMarker
}

func newPipeline(t *testing.T, baseURL string, opts Options) (*Pipeline, env) {
	t.Helper()
	base := t.TempDir()
	e := env{
		root:    filepath.Join(base, "tiles"),
		staging: filepath.Join(base, "staging"),
		marker:  readiness.NewFileMarker(filepath.Join(base, "tiles", ".ready")),
	}
	return &Pipeline{
		Root:       e.root,
		StagingDir: e.staging,
		Archive:    archiveName,
		Fetcher:    fetch.New(fetch.NewHTTPSource(baseURL, archiveName, nil), e.staging, archiveName),
		Extractor:  extract.New(e.root),
		Manifests:  manifest.New(e.root, "https://tiles.example.com"),
		Marker:     e.marker,
		Opts:       opts,
	}, e
}

func isReady(t *testing.T, m readiness.Marker) bool {
	t.Helper()
	ok, err := m.Ready(context.Background())
	require.NoError(t, err)
	return ok
}

func TestRun_Idempotent(t *testing.T) {
	srv := newCDN(t)
	p, e := newPipeline(t, srv.URL, Options{Dataset: "monaco", Version: tileset.LatestVersion, SkipAssets: true})
	ctx := context.Background()

	first, err := p.Run(ctx)
	require.NoError(t, err)
	require.True(t, first.Ready)
	require.Equal(t, "v1", first.Version)
	require.Equal(t, []string{"monaco"}, first.Datasets)
	require.EqualValues(t, 1, srv.archiveHits.Load())

	manifestPath := filepath.Join(e.root, "monaco", "v1", tileset.ManifestFile)
	m1, err := os.ReadFile(manifestPath)
	require.NoError(t, err)

	_, err = os.Stat(fetch.StagedPath(e.staging, "monaco", "v1", archiveName))
	require.True(t, os.IsNotExist(err), "staging se limpia tras extraer")

	second, err := p.Run(ctx)
	require.NoError(t, err)
	require.True(t, second.Ready)
	require.EqualValues(t, 1, srv.archiveHits.Load(), "la segunda corrida no descarga")
	require.Nil(t, second.Fetched)
	require.Empty(t, second.Extracted)
	require.Empty(t, second.Manifests.Written)

	m2, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	require.Equal(t, m1, m2)

	rec, err := e.marker.Read()
	require.NoError(t, err)
	require.Equal(t, first.RunID, rec.RunID, "el marcador no se resetea")
}

func TestRun_KeepStaging(t *testing.T) {
	srv := newCDN(t)
	p, e := newPipeline(t, srv.URL, Options{Dataset: "monaco", Version: "v1", SkipAssets: true, KeepStaging: true})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	_, err = os.Stat(fetch.StagedPath(e.staging, "monaco", "v1", archiveName) + ".sha256")
	require.NoError(t, err)
}

func TestRun_FetchFailureBlocksReady(t *testing.T) {
	srv := newCDN(t)
	p, e := newPipeline(t, srv.URL, Options{Dataset: "andorra", Version: "v1", SkipAssets: true})

	_, err := p.Run(context.Background())
	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "fetch", se.Stage)
	var fe *fetch.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, fetch.KindNotFound, fe.Kind)

	require.False(t, isReady(t, e.marker))
}

func TestRun_ManifestErrors(t *testing.T) {
	srv := newCDN(t)
	p, e := newPipeline(t, srv.URL, Options{Dataset: "monaco", Version: "v1", SkipAssets: true})

	bad := tilesettest.MonacoFiles()
	bad[tileset.MetadataFile] = []byte(`{"bounds":"nope"}`)
	tilesettest.WriteVersion(t, e.root, "monaco", "v0", bad)

	_, err := p.Run(context.Background())
	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "manifest", se.Stage)
	var me *manifest.ManifestError
	require.ErrorAs(t, err, &me)
	require.Equal(t, "v0", me.Version)
	require.False(t, isReady(t, e.marker))

	p.Opts.TolerateManifestErrors = true
	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.True(t, rep.Ready)
	require.Equal(t, []string{"monaco"}, rep.Datasets)
	require.True(t, isReady(t, e.marker))
}

func TestRun_AssetFailuresAreTolerated(t *testing.T) {
	srv := newCDN(t)
	p, e := newPipeline(t, srv.URL, Options{Dataset: "monaco", Version: "v1"})
	p.Assets = assets.New(srv.URL+"/assets", t.TempDir())

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.True(t, rep.Ready)
	require.False(t, rep.Assets.OK())
	require.True(t, isReady(t, e.marker))
}

func TestRun_SkipFetchPublishesStaging(t *testing.T) {
	p, e := newPipeline(t, "http://127.0.0.1:1", Options{Dataset: "monaco", Version: tileset.LatestVersion, SkipFetch: true, SkipAssets: true})
	tilesettest.WriteArchive(t, fetch.StagedPath(e.staging, "monaco", "v3", archiveName), tilesettest.MonacoFiles())
	tilesettest.WriteArchive(t, fetch.StagedPath(e.staging, "andorra", "v1", archiveName), tilesettest.MonacoFiles())

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Extracted, 2)
	require.Equal(t, []string{"andorra", "monaco"}, rep.Datasets)

	_, err = os.Stat(filepath.Join(e.staging, "monaco"))
	require.True(t, os.IsNotExist(err))
}

func TestRun_AbortedExtractionIsSwept(t *testing.T) {
	srv := newCDN(t)
	p, e := newPipeline(t, srv.URL, Options{Dataset: "monaco", Version: "v1", SkipAssets: true})
	leftover := filepath.Join(e.root, "monaco", ".tmp-v1-dead")
	require.NoError(t, os.MkdirAll(filepath.Join(leftover, "tiles"), 0o755))

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	_, err = os.Stat(leftover)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRun_CanceledContext(t *testing.T) {
	srv := newCDN(t)
	p, e := newPipeline(t, srv.URL, Options{Dataset: "monaco", Version: "v1", SkipAssets: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, isReady(t, e.marker))
	_, statErr := os.Stat(filepath.Join(e.root, "monaco", "v1"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRun_StrayVersionDirectoryWithoutMetadata(t *testing.T) {
	srv := newCDN(t)
	p, e := newPipeline(t, srv.URL, Options{Dataset: "monaco", Version: "v1", SkipAssets: true})
	require.NoError(t, os.MkdirAll(filepath.Join(e.root, "monaco", "old", tileset.TilesDir), 0o755))

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.True(t, rep.Ready)
	require.True(t, isReady(t, e.marker))
	require.Equal(t, []string{"monaco/old"}, rep.Manifests.Skipped)
	require.Empty(t, rep.Manifests.Failed)
	require.Equal(t, []string{"monaco"}, rep.Datasets)
}

func TestRun_StageFieldLoggedOnce(t *testing.T) {
	srv := newCDN(t)
	p, _ := newPipeline(t, srv.URL, Options{Dataset: "monaco", Version: "v1", SkipAssets: true})
	core, logs := observer.New(zap.DebugLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))

	_, err := p.Run(ctx)
	require.NoError(t, err)

	staged := 0
	for _, e := range logs.All() {
		n := 0
		for _, f := range e.Context {
			if f.Key == "stage" {
				n++
			}
		}
		require.LessOrEqual(t, n, 1, "entry %q", e.Message)
		staged += n
	}
	require.Positive(t, staged)
}
