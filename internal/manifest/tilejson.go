package manifest

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/dropDatabas3/tiledepot/internal/tileset"
)

// TileJSONVersion es la versión del formato que emitimos.
const TileJSONVersion = "3.0.0"

// TileJSON es el documento servido en /{dataset} y /{dataset}/{version}.
// El orden de los campos es parte del formato (salida byte a byte estable).
type TileJSON struct {
	TileJSON     string            `json:"tilejson"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Attribution  string            `json:"attribution,omitempty"`
	Scheme       string            `json:"scheme"`
	MinZoom      int               `json:"minzoom"`
	MaxZoom      int               `json:"maxzoom"`
	Bounds       tileset.Bounds    `json:"bounds"`
	Center       []float64         `json:"center"`
	Format       string            `json:"format"`
	Tiles        []string          `json:"tiles"`
	VectorLayers []json.RawMessage `json:"vector_layers"`
}

// Build arma el TileJSON de dataset/version. baseURL es el prefijo público
// (sin barra final) de las URLs de tiles.
func Build(baseURL, dataset, version string, m tileset.Metadata) TileJSON {
	name := m.Name
	if name == "" {
		name = dataset
	}
	layers := m.VectorLayers
	if layers == nil {
		layers = []json.RawMessage{}
	}
	return TileJSON{
		TileJSON:     TileJSONVersion,
		Name:         name,
		Description:  m.Description,
		Attribution:  m.Attribution,
		Scheme:       m.Scheme,
		MinZoom:      m.MinZoom,
		MaxZoom:      m.MaxZoom,
		Bounds:       m.Bounds,
		Center:       m.DefaultCenter(),
		Format:       m.Format,
		Tiles:        []string{TileURL(baseURL, dataset, version)},
		VectorLayers: layers,
	}
}

// TileURL retorna <base>/<dataset>/<version>/{z}/{x}/{y}.pbf.
func TileURL(baseURL, dataset, version string) string {
	return strings.TrimRight(baseURL, "/") + "/" + dataset + "/" + version + "/{z}/{x}/{y}" + tileset.TileExt
}

// Encode serializa tj de forma compacta, sin escapar HTML y con salto de
// línea final.
func Encode(tj TileJSON) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
