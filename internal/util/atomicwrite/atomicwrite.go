// Package atomicwrite provee helpers de publicación atómica en disco:
// archivos (tmp → fsync → rename) y directorios completos (rename de un
// directorio temporal hermano). Un lector concurrente ve lo viejo o lo nuevo,
// nunca un estado intermedio.
package atomicwrite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrExists se retorna cuando el destino de PublishDir ya existe.
var ErrExists = errors.New("atomicwrite: target already exists")

// AtomicWriteFile escribe data a path de forma atómica.
// Pasos: write tmp → Sync → Close → Chmod → Rename.
// Si rename falla (Windows con destino bloqueado) intenta remove+rename.
func AtomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	_ = os.Chmod(tmpPath, perm)

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %v (after remove: %v)", err, err2)
		}
	}
	return syncDir(dir)
}

// PublishDir mueve el directorio tmp a target con un único rename.
// tmp y target deben compartir directorio padre (mismo filesystem).
// Nunca pisa un target existente: retorna ErrExists.
func PublishDir(tmp, target string) error {
	if filepath.Dir(filepath.Clean(tmp)) != filepath.Dir(filepath.Clean(target)) {
		return fmt.Errorf("publish %s: temp dir %s is not a sibling", target, tmp)
	}
	if _, err := os.Lstat(target); err == nil {
		return ErrExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", target, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmp, target, err)
	}
	return syncDir(filepath.Dir(target))
}

// syncDir persiste la entrada de directorio tras un rename. Best-effort:
// algunos filesystems no soportan fsync de directorios.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}
