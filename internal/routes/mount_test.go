package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type echoHandlers struct{}

func (echoHandlers) Manifest(g *Group, v *Version, rt Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("manifest " + g.Dataset + " " + v.ID))
	})
}

func (echoHandlers) Tile(g *Group, v *Version, rt Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tile " + v.ID + " " + chi.URLParam(r, "z") + "/" + chi.URLParam(r, "x") + "/" + chi.URLParam(r, "y")))
	})
}

func TestMount(t *testing.T) {
	tbl, err := Scan(context.Background(), monacoTree(t))
	require.NoError(t, err)

	r := chi.NewRouter()
	Mount(r, tbl, echoHandlers{})

	for path, want := range map[string]string{
		"/monaco":                  "manifest monaco v2",
		"/monaco/v1":               "manifest monaco v1",
		"/monaco/13/4264/2987.pbf": "tile v2 13/4264/2987",
		"/monaco/v1/1/0/1.pbf":     "tile v1 1/0/1",
		"/andorra/20240101":        "manifest andorra 20240101",
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Equal(t, want, rec.Body.String(), path)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monaco/v3", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monaco/1/2/3.png", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
