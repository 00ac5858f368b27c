package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// Snapshot es el stream de un archivo remoto más su integridad esperada.
type Snapshot struct {
	Body io.ReadCloser
	// Size en bytes; -1 si la fuente no lo informa.
	Size int64
	// Checksum sha256 en hex; vacío si la fuente no publica uno.
	Checksum string
}

// Source es un origen remoto de snapshots direccionable por dataset+versión.
type Source interface {
	// Latest resuelve la versión más nueva publicada para dataset.
	Latest(ctx context.Context, dataset string) (string, error)
	// Open abre el snapshot. Retorna ErrNotFound si no existe.
	Open(ctx context.Context, dataset, version string) (*Snapshot, error)
}

// objectKey arma areas/<dataset>/<version>/<archive>, el layout del CDN.
func objectKey(dataset, version, archive string) string {
	return path.Join("areas", dataset, version, archive)
}

// latestFromListing busca en un listado tipo files.txt la versión más nueva
// de dataset. Las versiones son timestamps (20240101_120000_pt) y ordenan
// lexicográficamente.
func latestFromListing(r io.Reader, dataset, archive string) (string, error) {
	prefix := "areas/" + dataset + "/"
	var versions []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimPrefix(line, "/")
		if !strings.HasPrefix(line, prefix) || !strings.HasSuffix(line, "/"+archive) {
			continue
		}
		parts := strings.Split(line, "/")
		if len(parts) != 4 || parts[2] == "" {
			continue
		}
		versions = append(versions, parts[2])
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("%w: no versions listed for %s", ErrNotFound, dataset)
	}
	sort.Strings(versions)
	return versions[len(versions)-1], nil
}

// parseChecksum acepta "hex" o el formato de sha256sum "hex  nombre".
func parseChecksum(b []byte) string {
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
