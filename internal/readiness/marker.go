// Package readiness implementa la compuerta Preparing→Ready entre la corrida
// de prepare y los procesos de serving.
//
// La transición es de una sola vía: Mark nunca resetea un marcador existente
// y nada en este paquete lo borra. El contenido del marcador es informativo;
// lo que cuenta es su existencia.
package readiness

import (
	"context"
	"encoding/json"
	"time"
)

// Record es lo que se guarda en el marcador.
type Record struct {
	At       time.Time `json:"at"`
	RunID    string    `json:"run_id"`
	Datasets []string  `json:"datasets,omitempty"`
}

// Marker es un backend de la compuerta.
type Marker interface {
	// Mark pasa a Ready. Idempotente: si ya estaba Ready no cambia nada.
	Mark(ctx context.Context, rec Record) error
	// Ready indica si el marcador existe.
	Ready(ctx context.Context) (bool, error)
}

// Notifier lo implementan los backends que pueden avisar cambios sin polling.
// Las señales son pistas: Wait siempre vuelve a consultar Ready.
type Notifier interface {
	Notify(ctx context.Context) (<-chan struct{}, error)
}

func encode(rec Record) ([]byte, error) {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
