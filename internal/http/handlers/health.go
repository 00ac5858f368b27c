package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/tiledepot/internal/http/errors"
	"github.com/dropDatabas3/tiledepot/internal/routes"
)

// HealthResponse es el cuerpo de /health.
type HealthResponse struct {
	Status   string   `json:"status"` // ok | degraded
	Datasets []string `json:"datasets"`
	Version  string   `json:"version,omitempty"`
	Uptime   string   `json:"uptime"`
}

// Health expone liveness y readiness de la réplica.
type Health struct {
	Table   *routes.Table
	Version string
	Started time.Time
}

// Live responde siempre 200 mientras el proceso sirve. Sin datasets el
// estado es "degraded".
func (h *Health) Live(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Datasets: h.Table.Datasets(),
		Version:  h.Version,
		Uptime:   time.Since(h.Started).Round(time.Second).String(),
	}
	if resp.Datasets == nil {
		resp.Datasets = []string{}
	}
	if h.Table.Empty() {
		resp.Status = "degraded"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(resp)
}

// Ready responde 200 solo si hay al menos un dataset ruteado.
func (h *Health) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Table.Empty() {
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(`{"status":"ready"}` + "\n"))
}
