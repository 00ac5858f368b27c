package extract

import (
	"errors"
	"fmt"
	"syscall"
)

// ExtractError: un snapshot no pudo publicarse como versión canónica.
//
// Exhausted=false (archivo corrupto, metadata inválida) es fatal solo para esa
// versión. Exhausted=true (disco lleno) es fatal para toda la corrida.
type ExtractError struct {
	Dataset   string
	Version   string
	Exhausted bool
	Err       error
}

func (e *ExtractError) Error() string {
	tag := "corrupt"
	if e.Exhausted {
		tag = "resource exhausted"
	}
	return fmt.Sprintf("extract %s/%s: %s: %v", e.Dataset, e.Version, tag, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// IsExhausted indica si err (o alguna causa envuelta) es un ExtractError por
// falta de recursos.
func IsExhausted(err error) bool {
	var ee *ExtractError
	return errors.As(err, &ee) && ee.Exhausted
}

func newError(dataset, version string, err error) *ExtractError {
	return &ExtractError{
		Dataset:   dataset,
		Version:   version,
		Exhausted: errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT),
		Err:       err,
	}
}
