package routes

import "fmt"

// NotFoundError: el request no corresponde a ninguna ruta válida. Es un
// resultado normal de serving, no una falla del sistema.
type NotFoundError struct {
	Dataset string
	Version string
	Tile    string
	Reason  string
}

func (e *NotFoundError) Error() string {
	target := e.Dataset
	if e.Version != "" {
		target += "/" + e.Version
	}
	if e.Tile != "" {
		target += "/" + e.Tile
	}
	return fmt.Sprintf("route not found: %s: %s", target, e.Reason)
}
