// Package tileset define el layout del árbol canónico de tiles y el documento
// de metadata de cada versión.
//
// Layout:
//
//	<root>/<dataset>/<version>/metadata.json
//	<root>/<dataset>/<version>/tilejson.json   (derivado)
//	<root>/<dataset>/<version>/tiles/{z}/{x}/{y}.pbf
package tileset

import (
	"path/filepath"
	"strings"
)

const (
	MetadataFile = "metadata.json"
	ManifestFile = "tilejson.json"
	TilesDir     = "tiles"
	TileExt      = ".pbf"

	// LatestVersion pide al fetcher resolver la versión más nueva publicada.
	LatestVersion = "latest"

	// TempPrefix marca directorios de extracción en curso. Discovery los ignora.
	TempPrefix = ".tmp-"
)

// VersionDir retorna <root>/<dataset>/<version>.
func VersionDir(root, dataset, version string) string {
	return filepath.Join(root, dataset, version)
}

// Hidden indica si un nombre de directorio nunca debe tratarse como dataset o
// versión (temporales, staging, marcadores).
func Hidden(name string) bool {
	return name == "" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// ValidName valida un identificador de dataset o versión para usarlo como
// segmento de ruta y de URL.
func ValidName(name string) bool {
	if Hidden(name) || len(name) > 128 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return name != "." && name != ".."
}
