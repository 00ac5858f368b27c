package extract

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
)

// ErrUnsafePath: una entrada del tar apunta fuera del directorio destino.
var ErrUnsafePath = errors.New("archive entry escapes target directory")

// Stats resume lo escrito por Untar.
type Stats struct {
	Files int
	Bytes int64
}

// Untar descomprime un .tar.gz (gunzip paralelo) dentro de dst, que debe
// existir. Solo materializa directorios y archivos regulares; links y
// entradas que escapan de dst son rechazados.
func Untar(ctx context.Context, r io.Reader, dst string) (Stats, error) {
	var st Stats

	gz, err := pgzip.NewReader(r)
	if err != nil {
		return st, fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("tar: %w", err)
		}

		target, err := safeJoin(dst, hdr.Name)
		if err != nil {
			return st, err
		}
		if target == "" {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return st, err
			}
		case tar.TypeReg:
			n, err := writeFile(target, tr)
			if err != nil {
				return st, err
			}
			st.Files++
			st.Bytes += n
		case tar.TypeSymlink, tar.TypeLink:
			return st, fmt.Errorf("%w: link %s", ErrUnsafePath, hdr.Name)
		default:
			// pax headers, fifos, devices: nada que publicar
		}
	}
}

func safeJoin(dst, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(name, "./")))
	if clean == "." {
		return "", nil
	}
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(dst, clean), nil
}

func writeFile(target string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
