package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPSource lee snapshots de un CDN con el layout
// <base>/areas/<dataset>/<version>/<archive>, un sidecar <archive>.sha256 y un
// listado <base>/files.txt.
type HTTPSource struct {
	BaseURL string
	Archive string
	Client  *http.Client
}

// NewHTTPSource crea una HTTPSource. client nil => http.DefaultClient.
func NewHTTPSource(baseURL, archive string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{BaseURL: strings.TrimRight(baseURL, "/"), Archive: archive, Client: client}
}

func (s *HTTPSource) url(key string) string { return s.BaseURL + "/" + key }

func (s *HTTPSource) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode/100 != 2:
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return resp, nil
}

func (s *HTTPSource) Latest(ctx context.Context, dataset string) (string, error) {
	resp, err := s.get(ctx, s.url("files.txt"))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return latestFromListing(resp.Body, dataset, s.Archive)
}

func (s *HTTPSource) Open(ctx context.Context, dataset, version string) (*Snapshot, error) {
	url := s.url(objectKey(dataset, version, s.Archive))

	// sidecar primero: si falla no abrimos el stream grande
	sum := ""
	if resp, err := s.get(ctx, url+".sha256"); err == nil {
		b, rerr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if rerr != nil {
			return nil, rerr
		}
		sum = parseChecksum(b)
	} else if !isNotFound(err) {
		return nil, err
	}

	resp, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Body: resp.Body, Size: resp.ContentLength, Checksum: sum}, nil
}
