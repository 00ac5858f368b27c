package assets

import "fmt"

// AssetError: un asset no pudo traerse. Nunca aborta la preparación.
type AssetError struct {
	Asset string
	URL   string
	Err   error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset %s (%s): %v", e.Asset, e.URL, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }
