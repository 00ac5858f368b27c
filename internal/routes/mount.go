package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handlers construye el handler de cada ruta. Lo implementa internal/http.
type Handlers interface {
	Manifest(g *Group, v *Version, rt Route) http.Handler
	Tile(g *Group, v *Version, rt Route) http.Handler
}

// Mount registra en r todas las rutas de t con sus headers de respuesta.
func Mount(r chi.Router, t *Table, h Handlers) {
	if t == nil {
		return
	}
	for i := range t.Groups {
		g := &t.Groups[i]
		for _, rt := range g.Routes {
			v, ok := g.Version(rt.Version)
			if !ok {
				continue
			}
			var handler http.Handler
			switch rt.Kind {
			case KindManifest, KindVersionManifest:
				handler = h.Manifest(g, v, rt)
			case KindTile, KindVersionTile:
				handler = h.Tile(g, v, rt)
			default:
				continue
			}
			r.With(ResponseHeaders(rt)).Method(http.MethodGet, rt.Pattern, handler)
			r.With(ResponseHeaders(rt)).Method(http.MethodHead, rt.Pattern, handler)
		}
	}
}

// ResponseHeaders aplica la política de cache y CORS de la ruta.
func ResponseHeaders(rt Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Cache-Control", rt.CacheControl)
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("X-Robots-Tag", "noindex, nofollow")
			next.ServeHTTP(w, r)
		})
	}
}
