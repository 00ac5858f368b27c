// Package fetch trae snapshots comprimidos de datasets a staging local.
//
// Un snapshot se escribe primero a <archivo>.part, se verifica (tamaño y
// sha256) y recién entonces se renombra a su nombre final junto a un sidecar
// <archivo>.sha256. La existencia del par archivo+sidecar implica un snapshot
// completo, por eso re-ejecutar Fetch tras un crash no vuelve a descargar.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dropDatabas3/tiledepot/internal/metrics"
	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/tileset"
	"github.com/dropDatabas3/tiledepot/internal/util/atomicwrite"
)

// Artifact es un snapshot presente en staging.
type Artifact struct {
	Dataset  string
	Version  string
	Path     string
	Checksum string
	Size     int64
	// Skipped: ya estaba en staging, no hubo transferencia.
	Skipped bool
}

// Fetcher descarga snapshots de Source a StagingDir.
type Fetcher struct {
	Source     Source
	StagingDir string
	Archive    string

	// VerifyExisting re-hashea un snapshot ya presente antes de saltear la descarga.
	VerifyExisting bool

	// FreeSpaceFactor: espacio libre requerido = factor × tamaño (comprimido +
	// descomprimido + margen). 0 deshabilita el chequeo.
	FreeSpaceFactor int64

	freeSpace func(dir string) (uint64, error)
}

// New crea un Fetcher con el chequeo de espacio por defecto (3×).
func New(src Source, stagingDir, archive string) *Fetcher {
	return &Fetcher{
		Source:          src,
		StagingDir:      stagingDir,
		Archive:         archive,
		FreeSpaceFactor: 3,
		freeSpace:       freeBytes,
	}
}

// StagedPath retorna <staging>/<dataset>/<version>/<archive>.
func StagedPath(stagingDir, dataset, version, archive string) string {
	return filepath.Join(stagingDir, dataset, version, archive)
}

// Resolve traduce "latest" a una versión concreta; cualquier otra pasa tal cual.
func (f *Fetcher) Resolve(ctx context.Context, dataset, version string) (string, error) {
	if version != "" && version != tileset.LatestVersion {
		return version, nil
	}
	v, err := f.Source.Latest(ctx, dataset)
	if err != nil {
		kind := KindNetwork
		if isNotFound(err) {
			kind = KindNotFound
		}
		return "", &FetchError{Dataset: dataset, Version: tileset.LatestVersion, Kind: kind, Err: err}
	}
	if !tileset.ValidName(v) {
		return "", &FetchError{Dataset: dataset, Version: v, Kind: KindIntegrity, Err: errors.New("invalid version name")}
	}
	return v, nil
}

// Fetch garantiza que el snapshot dataset/version esté en staging.
func (f *Fetcher) Fetch(ctx context.Context, dataset, version string) (Artifact, error) {
	log := logger.From(ctx).With(logger.Dataset(dataset))

	if !tileset.ValidName(dataset) {
		return Artifact{}, &FetchError{Dataset: dataset, Version: version, Kind: KindNotFound, Err: errors.New("invalid dataset name")}
	}
	version, err := f.Resolve(ctx, dataset, version)
	if err != nil {
		return Artifact{}, err
	}
	log = log.With(logger.Version(version))

	dst := StagedPath(f.StagingDir, dataset, version, f.Archive)
	if a, ok := f.existing(dataset, version, dst); ok {
		log.Info("snapshot already staged, skipping download", logger.File(dst))
		return a, nil
	}

	start := time.Now()
	a, err := f.download(ctx, dataset, version, dst)
	if err != nil {
		log.Error("snapshot download failed", logger.Err(err))
		return Artifact{}, err
	}
	log.Info("snapshot staged",
		logger.File(dst),
		logger.Bytes(a.Size),
		logger.Duration(time.Since(start)),
	)
	return a, nil
}

func (f *Fetcher) existing(dataset, version, dst string) (Artifact, bool) {
	st, err := os.Stat(dst)
	if err != nil || !st.Mode().IsRegular() {
		return Artifact{}, false
	}
	b, err := os.ReadFile(dst + ".sha256")
	if err != nil {
		return Artifact{}, false
	}
	sum := parseChecksum(b)
	if sum == "" {
		return Artifact{}, false
	}
	if f.VerifyExisting {
		got, err := hashFile(dst)
		if err != nil || got != sum {
			return Artifact{}, false
		}
	}
	return Artifact{Dataset: dataset, Version: version, Path: dst, Checksum: sum, Size: st.Size(), Skipped: true}, true
}

func (f *Fetcher) download(ctx context.Context, dataset, version, dst string) (a Artifact, err error) {
	fail := func(kind ErrorKind, cause error) (Artifact, error) {
		return Artifact{}, &FetchError{Dataset: dataset, Version: version, Kind: kind, Err: cause}
	}

	snap, err := f.Source.Open(ctx, dataset, version)
	if err != nil {
		if isNotFound(err) {
			return fail(KindNotFound, err)
		}
		return fail(KindNetwork, err)
	}
	defer snap.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fail(KindDisk, err)
	}
	if err := f.checkSpace(filepath.Dir(dst), snap.Size); err != nil {
		return fail(KindDisk, err)
	}

	part := dst + ".part"
	out, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fail(KindDisk, err)
	}
	// sin estado parcial en staging ante cualquier error
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(part)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), &ctxReader{ctx: ctx, r: snap.Body})
	metrics.FetchedBytes.Add(float64(n))
	if err != nil {
		if isDiskFull(err) {
			return fail(KindDisk, err)
		}
		return fail(KindNetwork, err)
	}
	if snap.Size >= 0 && n != snap.Size {
		return fail(KindIntegrity, fmt.Errorf("truncated: got %d of %d bytes", n, snap.Size))
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if snap.Checksum != "" && !strings.EqualFold(snap.Checksum, sum) {
		return fail(KindIntegrity, fmt.Errorf("checksum mismatch: want %s got %s", snap.Checksum, sum))
	}
	if snap.Checksum == "" {
		logger.From(ctx).Warn("source published no checksum, recording computed one",
			logger.Dataset(dataset), logger.Version(version))
	}

	if err = out.Sync(); err != nil {
		return fail(KindDisk, err)
	}
	if err = out.Close(); err != nil {
		return fail(KindDisk, err)
	}
	if err = os.Rename(part, dst); err != nil {
		return fail(KindDisk, err)
	}
	// el sidecar se escribe al final: archivo sin sidecar no cuenta como staged
	if err = atomicwrite.AtomicWriteFile(dst+".sha256", []byte(sum+"  "+filepath.Base(dst)+"\n"), 0o644); err != nil {
		_ = os.Remove(dst)
		return fail(KindDisk, err)
	}

	return Artifact{Dataset: dataset, Version: version, Path: dst, Checksum: sum, Size: n}, nil
}

func (f *Fetcher) checkSpace(dir string, size int64) error {
	if f.FreeSpaceFactor <= 0 || size <= 0 || f.freeSpace == nil {
		return nil
	}
	free, err := f.freeSpace(dir)
	if err != nil {
		// sin info de espacio no bloqueamos
		return nil
	}
	need := uint64(size) * uint64(f.FreeSpaceFactor)
	if free < need {
		return fmt.Errorf("not enough disk space in %s: free %d bytes, need %d", dir, free, need)
	}
	return nil
}

func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isDiskFull(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}

// ctxReader corta una copia larga cuando se cancela el contexto.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
