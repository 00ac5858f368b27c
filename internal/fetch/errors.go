package fetch

import (
	"errors"
	"fmt"
)

// ErrorKind clasifica un FetchError para que el orquestador decida si reintenta.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindNotFound  ErrorKind = "not_found"
	KindIntegrity ErrorKind = "integrity"
	KindDisk      ErrorKind = "disk"
)

// ErrNotFound lo retornan las Sources cuando el snapshot no existe.
var ErrNotFound = errors.New("snapshot not found")

// FetchError: fallo de red o de integridad al traer un snapshot. Cuando se
// retorna, staging no contiene archivos parciales.
type FetchError struct {
	Dataset string
	Version string
	Kind    ErrorKind
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s/%s: %s: %v", e.Dataset, e.Version, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable indica si tiene sentido reintentar la corrida.
func (e *FetchError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindIntegrity
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
