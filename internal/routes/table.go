// Package routes descubre los datasets publicados en el árbol canónico y
// sintetiza la tabla de rutas que sirve cada réplica.
//
// No hay lista de datasets configurada: lo que está en disco con metadata
// válida se rutea, lo demás no existe para el cliente. La tabla se construye
// una vez y después es de solo lectura, por eso se comparte sin locks.
package routes

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dropDatabas3/tiledepot/internal/tileset"
)

// Kind distingue qué sirve una ruta.
type Kind string

const (
	KindManifest        Kind = "manifest"
	KindTile            Kind = "tile"
	KindVersionManifest Kind = "version_manifest"
	KindVersionTile     Kind = "version_tile"
)

// Cache-Control por tipo de respuesta.
const (
	CacheManifest        = "public, max-age=86400"
	CacheVersionManifest = "public, max-age=604800"
	CacheTile            = "public, max-age=315360000, immutable"
)

// Route es una entrada de la tabla.
type Route struct {
	Pattern      string `json:"pattern"`
	Kind         Kind   `json:"kind"`
	Version      string `json:"version"`
	MinZoom      int    `json:"minzoom"`
	MaxZoom      int    `json:"maxzoom"`
	CacheControl string `json:"cache_control"`
}

// Version es una versión publicada y aceptada por el scan.
type Version struct {
	ID       string           `json:"id"`
	Dir      string           `json:"dir"`
	Metadata tileset.Metadata `json:"metadata"`
}

func (v Version) TilesDir() string     { return filepath.Join(v.Dir, tileset.TilesDir) }
func (v Version) ManifestPath() string { return filepath.Join(v.Dir, tileset.ManifestFile) }

// Group agrupa las rutas de un dataset.
type Group struct {
	Dataset  string    `json:"dataset"`
	Versions []Version `json:"versions"`
	Latest   string    `json:"latest"`
	Routes   []Route   `json:"routes"`
}

// Skip registra un candidato descartado, solo para diagnóstico.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Table es el resultado de un scan.
type Table struct {
	Root    string  `json:"root"`
	Groups  []Group `json:"groups"`
	Skipped []Skip  `json:"skipped,omitempty"`
}

// Empty indica que no se descubrió ningún dataset.
func (t *Table) Empty() bool { return t == nil || len(t.Groups) == 0 }

// Datasets lista los IDs ruteados, ordenados.
func (t *Table) Datasets() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.Groups))
	for i := range t.Groups {
		out[i] = t.Groups[i].Dataset
	}
	return out
}

// Lookup busca el grupo de un dataset.
func (t *Table) Lookup(dataset string) (*Group, bool) {
	if t == nil {
		return nil, false
	}
	i := sort.Search(len(t.Groups), func(i int) bool { return t.Groups[i].Dataset >= dataset })
	if i < len(t.Groups) && t.Groups[i].Dataset == dataset {
		return &t.Groups[i], true
	}
	return nil, false
}

// LatestVersion retorna la versión servida en /{dataset}.
func (g *Group) LatestVersion() *Version {
	v, _ := g.Version(g.Latest)
	return v
}

// Version busca una versión por ID; "latest" resuelve a Latest.
func (g *Group) Version(id string) (*Version, bool) {
	if id == tileset.LatestVersion {
		id = g.Latest
	}
	i := sort.Search(len(g.Versions), func(i int) bool { return g.Versions[i].ID >= id })
	if i < len(g.Versions) && g.Versions[i].ID == id {
		return &g.Versions[i], true
	}
	return nil, false
}

// ResolveTile valida coordenadas contra la versión más nueva del dataset.
func (g *Group) ResolveTile(z, x, y string) (string, error) {
	v := g.LatestVersion()
	if v == nil {
		return "", &NotFoundError{Dataset: g.Dataset, Reason: "no versions"}
	}
	return v.ResolveTile(g.Dataset, z, x, y)
}

// ResolveTile convierte z/x/y (strings del path) en la ruta del archivo del
// tile. Coordenadas no numéricas, zoom fuera del rango declarado o x/y fuera
// de [0, 2^z) dan *NotFoundError sin tocar disco.
func (v *Version) ResolveTile(dataset, z, x, y string) (string, error) {
	nf := func(reason string) error {
		return &NotFoundError{Dataset: dataset, Version: v.ID, Tile: z + "/" + x + "/" + y, Reason: reason}
	}
	zi, ok := coord(z)
	if !ok {
		return "", nf("zoom is not a number")
	}
	if zi < v.Metadata.MinZoom || zi > v.Metadata.MaxZoom {
		return "", nf(fmt.Sprintf("zoom outside [%d,%d]", v.Metadata.MinZoom, v.Metadata.MaxZoom))
	}
	xi, okx := coord(x)
	yi, oky := coord(y)
	if !okx || !oky {
		return "", nf("coordinates are not numbers")
	}
	n := 1 << uint(zi)
	if xi >= n || yi >= n {
		return "", nf("coordinates outside tile grid")
	}
	return filepath.Join(v.TilesDir(), strconv.Itoa(zi), strconv.Itoa(xi), strconv.Itoa(yi)+tileset.TileExt), nil
}

// coord acepta solo dígitos decimales (sin signo) hasta el máximo zoom soportado.
func coord(s string) (int, bool) {
	if s == "" || len(s) > 10 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n >= 1<<tileset.MaxZoom {
		return 0, false
	}
	return n, true
}
