// Package probe verifica de punta a punta una réplica de serving: liveness,
// el manifest de cada dataset y un tile de muestra.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
)

// Config de una corrida.
type Config struct {
	BaseURL string
	// Datasets a verificar; vacío = los que reporte /health.
	Datasets []string
	// Tile "z/x/y" de muestra; vacío = el tile que contiene el center del manifest.
	Tile    string
	Timeout time.Duration
	Client  *http.Client
}

// Check es el resultado de un request.
type Check struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Status int    `json:"status"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Result agrupa todos los checks.
type Result struct {
	Checks []Check `json:"checks"`
}

// OK indica que todos los checks pasaron.
func (r Result) OK() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return len(r.Checks) > 0
}

// Failed retorna los checks fallidos.
func (r Result) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.OK {
			out = append(out, c)
		}
	}
	return out
}

type healthBody struct {
	Status   string   `json:"status"`
	Datasets []string `json:"datasets"`
}

type manifestBody struct {
	Tiles   []string  `json:"tiles"`
	MinZoom int       `json:"minzoom"`
	MaxZoom int       `json:"maxzoom"`
	Center  []float64 `json:"center"`
}

// Run ejecuta los checks en orden. Nunca retorna error: cada falla queda en su
// Check.
func Run(ctx context.Context, cfg Config) Result {
	log := logger.From(ctx).With(logger.Component("probe"))
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	p := &prober{ctx: ctx, client: client}
	var res Result

	var hb healthBody
	c := p.check("health", base+"/health", &hb, http.StatusOK)
	res.Checks = append(res.Checks, c)

	datasets := cfg.Datasets
	if len(datasets) == 0 {
		datasets = hb.Datasets
	}
	if len(datasets) == 0 {
		res.Checks = append(res.Checks, Check{Name: "datasets", URL: base + "/health", Error: "no datasets to probe"})
	}

	for _, ds := range datasets {
		var mb manifestBody
		mc := p.check("manifest "+ds, base+"/"+ds, &mb, http.StatusOK)
		if mc.OK && len(mb.Tiles) == 0 {
			mc.OK = false
			mc.Error = "manifest has no tiles template"
		}
		res.Checks = append(res.Checks, mc)

		tile := cfg.Tile
		if tile == "" {
			if !mc.OK {
				continue
			}
			tile = sampleTile(mb)
		}
		res.Checks = append(res.Checks,
			p.check("tile "+ds, base+"/"+ds+"/"+tile+".pbf", nil, http.StatusOK, http.StatusNoContent))
	}

	for _, c := range res.Checks {
		if c.OK {
			log.Debug("probe check passed", logger.String("check", c.Name), logger.Status(c.Status))
		} else {
			log.Warn("probe check failed", logger.String("check", c.Name), logger.URL(c.URL), logger.Status(c.Status), logger.String("error", c.Error))
		}
	}
	return res
}

type prober struct {
	ctx    context.Context
	client *http.Client
}

func (p *prober) check(name, url string, into any, want ...int) Check {
	c := Check{Name: name, URL: url}
	req, err := http.NewRequestWithContext(p.ctx, http.MethodGet, url, nil)
	if err != nil {
		c.Error = err.Error()
		return c
	}
	resp, err := p.client.Do(req)
	if err != nil {
		c.Error = err.Error()
		return c
	}
	defer resp.Body.Close()
	c.Status = resp.StatusCode

	for _, s := range want {
		if resp.StatusCode == s {
			c.OK = true
		}
	}
	if !c.OK {
		c.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return c
	}
	if into != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(into); err != nil {
			c.OK = false
			c.Error = "invalid JSON: " + err.Error()
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return c
}

// sampleTile elige el tile que contiene el center del manifest, con el zoom
// acotado al rango declarado.
func sampleTile(m manifestBody) string {
	if len(m.Center) < 2 {
		return fmt.Sprintf("%d/0/0", m.MinZoom)
	}
	z := m.MinZoom
	if len(m.Center) >= 3 {
		z = int(m.Center[2])
	}
	if z < m.MinZoom {
		z = m.MinZoom
	}
	if z > m.MaxZoom {
		z = m.MaxZoom
	}
	x, y := lonLatToTile(m.Center[0], m.Center[1], z)
	return fmt.Sprintf("%d/%d/%d", z, x, y)
}

// lonLatToTile convierte WGS84 a coordenadas de tile XYZ (Web Mercator).
func lonLatToTile(lon, lat float64, z int) (int, int) {
	n := math.Exp2(float64(z))
	lat = math.Max(-85.05112878, math.Min(85.05112878, lat))
	x := int(math.Floor((lon + 180) / 360 * n))
	rad := lat * math.Pi / 180
	y := int(math.Floor((1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * n))
	max := int(n) - 1
	if x > max {
		x = max
	}
	if y > max {
		y = max
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y
}
