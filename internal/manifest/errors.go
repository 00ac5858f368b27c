package manifest

import "fmt"

// ManifestError: una versión cuyo manifest no pudo generarse. Afecta solo a
// esa versión.
type ManifestError struct {
	Dataset string
	Version string
	Err     error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s/%s: %v", e.Dataset, e.Version, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }
