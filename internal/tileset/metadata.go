package tileset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MaxZoom es el zoom más alto aceptado en metadata.
const MaxZoom = 30

// ErrInvalidMetadata envuelve cualquier fallo de validación de metadata.
var ErrInvalidMetadata = errors.New("invalid tile metadata")

// Bounds es un bbox WGS84 en orden west, south, east, north.
type Bounds [4]float64

// Metadata es el documento metadata.json de una versión. Acepta el formato de
// export de OpenMapTiles/MBTiles, donde bounds, center y zooms pueden venir
// como strings.
type Metadata struct {
	Name         string            `json:"name,omitempty"`
	Description  string            `json:"description,omitempty"`
	Attribution  string            `json:"attribution,omitempty"`
	Format       string            `json:"format,omitempty"`
	Scheme       string            `json:"scheme,omitempty"`
	Bounds       Bounds            `json:"bounds"`
	Center       []float64         `json:"center,omitempty"`
	MinZoom      int               `json:"minzoom"`
	MaxZoom      int               `json:"maxzoom"`
	VectorLayers []json.RawMessage `json:"vector_layers,omitempty"`
}

type rawMetadata struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Attribution  string            `json:"attribution"`
	Format       string            `json:"format"`
	Scheme       string            `json:"scheme"`
	Bounds       json.RawMessage   `json:"bounds"`
	Center       json.RawMessage   `json:"center"`
	MinZoom      json.RawMessage   `json:"minzoom"`
	MaxZoom      json.RawMessage   `json:"maxzoom"`
	VectorLayers []json.RawMessage `json:"vector_layers"`
	JSON         string            `json:"json"`
}

// ParseMetadata decodifica y valida un metadata.json.
func ParseMetadata(b []byte) (Metadata, error) {
	var raw rawMetadata
	if err := json.Unmarshal(b, &raw); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	m := Metadata{
		Name:         strings.TrimSpace(raw.Name),
		Description:  raw.Description,
		Attribution:  raw.Attribution,
		Format:       strings.TrimSpace(raw.Format),
		Scheme:       strings.ToLower(strings.TrimSpace(raw.Scheme)),
		VectorLayers: raw.VectorLayers,
	}
	if m.Scheme == "" {
		m.Scheme = "xyz"
	}
	if m.Format == "" {
		m.Format = "pbf"
	}

	nums, err := floats(raw.Bounds)
	if err != nil || len(nums) != 4 {
		return Metadata{}, fmt.Errorf("%w: bounds must have 4 numbers", ErrInvalidMetadata)
	}
	copy(m.Bounds[:], nums)

	if len(raw.Center) > 0 && string(raw.Center) != "null" {
		c, err := floats(raw.Center)
		if err != nil || len(c) < 2 {
			return Metadata{}, fmt.Errorf("%w: center", ErrInvalidMetadata)
		}
		m.Center = c
	}

	if m.MinZoom, err = zoom(raw.MinZoom); err != nil {
		return Metadata{}, fmt.Errorf("%w: minzoom: %v", ErrInvalidMetadata, err)
	}
	if m.MaxZoom, err = zoom(raw.MaxZoom); err != nil {
		return Metadata{}, fmt.Errorf("%w: maxzoom: %v", ErrInvalidMetadata, err)
	}

	// tippecanoe / openmaptiles guardan vector_layers dentro de "json"
	if len(m.VectorLayers) == 0 && strings.TrimSpace(raw.JSON) != "" {
		var inner struct {
			VectorLayers []json.RawMessage `json:"vector_layers"`
		}
		if err := json.Unmarshal([]byte(raw.JSON), &inner); err == nil {
			m.VectorLayers = inner.VectorLayers
		}
	}

	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// ReadMetadata lee y valida <dir>/metadata.json.
func ReadMetadata(dir string) (Metadata, error) {
	b, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return Metadata{}, err
	}
	return ParseMetadata(b)
}

// Validate exige un rango de zoom y un bbox no vacíos.
func (m Metadata) Validate() error {
	if m.MinZoom < 0 || m.MaxZoom > MaxZoom || m.MinZoom > m.MaxZoom {
		return fmt.Errorf("%w: zoom range [%d,%d]", ErrInvalidMetadata, m.MinZoom, m.MaxZoom)
	}
	w, s, e, n := m.Bounds[0], m.Bounds[1], m.Bounds[2], m.Bounds[3]
	for _, v := range m.Bounds {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: bounds not finite", ErrInvalidMetadata)
		}
	}
	if w < -180 || e > 180 || s < -90 || n > 90 || w >= e || s >= n {
		return fmt.Errorf("%w: bounds %v", ErrInvalidMetadata, m.Bounds)
	}
	switch m.Scheme {
	case "xyz", "tms":
	default:
		return fmt.Errorf("%w: scheme %q", ErrInvalidMetadata, m.Scheme)
	}
	return nil
}

// DefaultCenter retorna el center declarado o el centro del bbox a minzoom.
func (m Metadata) DefaultCenter() []float64 {
	if len(m.Center) >= 2 {
		return m.Center
	}
	return []float64{
		(m.Bounds[0] + m.Bounds[2]) / 2,
		(m.Bounds[1] + m.Bounds[3]) / 2,
		float64(m.MinZoom),
	}
}

// floats acepta [1,2,3] o "1,2,3".
func floats(raw json.RawMessage) ([]float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("missing")
	}
	var arr []float64
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// zoom acepta 14 o "14".
func zoom(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing")
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, err
	}
	return i, nil
}
