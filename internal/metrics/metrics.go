// Package metrics agrupa las métricas Prometheus del pipeline de preparación
// y del proceso de serving. Viven en un paquete propio para que fetch,
// extract, routes y http puedan instrumentarse sin ciclos de import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tiledepot_prepare_stage_duration_seconds",
		Help:    "Duración de cada etapa de prepare",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 16),
	}, []string{"stage"})

	StageResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tiledepot_prepare_stage_results_total",
		Help: "Resultados por etapa: done|skipped|failed",
	}, []string{"stage", "result"})

	FetchedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tiledepot_fetch_bytes_total",
		Help: "Bytes descargados a staging",
	})

	DatasetsDiscovered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tiledepot_datasets_discovered",
		Help: "Datasets ruteados por el último scan",
	})

	ManifestCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tiledepot_manifest_cache_total",
		Help: "Lookups del cache de manifests: hit|miss",
	}, []string{"result"})

	TileRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tiledepot_tile_requests_total",
		Help: "Requests de tiles por dataset y resultado: ok|empty|not_found",
	}, []string{"dataset", "result"})
)

// Stage results.
const (
	ResultDone    = "done"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Register registra las métricas en reg (o el default si es nil).
// Ignora AlreadyRegisteredError para poder llamarse más de una vez.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		StageDuration, StageResults, FetchedBytes, DatasetsDiscovered, ManifestCache, TileRequests,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
