package routes

import (
	"io"
	"strconv"
	"strings"
	"text/template"
)

// NginxOptions ajusta la config generada.
type NginxOptions struct {
	// EmptyTile es el named location usado cuando el tile no existe en disco.
	EmptyTile string
	// Debug agrega x-tiledepot-debug con la ruta que respondió.
	Debug bool
}

var nginxTmpl = template.Must(template.New("nginx").Funcs(template.FuncMap{
	"zooms": zoomAlternation,
}).Parse(`# generated by tiledepot routes --format nginx; do not edit
{{- $o := .Opts }}
{{- range .Table.Groups }}
{{- $g := . }}
{{- range .Versions }}

# {{ $g.Dataset }}/{{ .ID }}
location = /{{ $g.Dataset }}/{{ .ID }} {
    alias {{ .ManifestPath }};
    expires 1w;
    default_type application/json;
    add_header Access-Control-Allow-Origin '*' always;
    add_header Cache-Control public;
    add_header X-Robots-Tag "noindex, nofollow" always;
{{- if $o.Debug }}
    add_header x-tiledepot-debug 'version manifest {{ $g.Dataset }} {{ .ID }}';
{{- end }}
}

location ~ "^/{{ $g.Dataset }}/{{ .ID }}/{{ zooms .Metadata.MinZoom .Metadata.MaxZoom }}/(\d+)/(\d+)\.pbf$" {
    root {{ .TilesDir }};
    try_files /$1/$2/$3.pbf {{ $o.EmptyTile }};
    add_header Content-Encoding gzip;
    expires 10y;
    types { application/vnd.mapbox-vector-tile pbf; }
    add_header Access-Control-Allow-Origin '*' always;
    add_header Cache-Control public;
    add_header X-Robots-Tag "noindex, nofollow" always;
{{- if $o.Debug }}
    add_header x-tiledepot-debug 'version tile {{ $g.Dataset }} {{ .ID }}';
{{- end }}
}
{{- end }}
{{- with .LatestVersion }}

# {{ $g.Dataset }} -> {{ .ID }}
location = /{{ $g.Dataset }} {
    alias {{ .ManifestPath }};
    expires 1d;
    default_type application/json;
    add_header Access-Control-Allow-Origin '*' always;
    add_header Cache-Control public;
    add_header X-Robots-Tag "noindex, nofollow" always;
{{- if $o.Debug }}
    add_header x-tiledepot-debug 'latest manifest {{ $g.Dataset }}';
{{- end }}
}

location ~ "^/{{ $g.Dataset }}/{{ zooms .Metadata.MinZoom .Metadata.MaxZoom }}/(\d+)/(\d+)\.pbf$" {
    root {{ .TilesDir }};
    try_files /$1/$2/$3.pbf {{ $o.EmptyTile }};
    add_header Content-Encoding gzip;
    expires 10y;
    types { application/vnd.mapbox-vector-tile pbf; }
    add_header Access-Control-Allow-Origin '*' always;
    add_header Cache-Control public;
    add_header X-Robots-Tag "noindex, nofollow" always;
{{- if $o.Debug }}
    add_header x-tiledepot-debug 'latest tile {{ $g.Dataset }}';
{{- end }}
}
{{- end }}
{{- end }}
`))

// RenderNginx escribe t como bloques location de nginx. Los tiles fuera del
// rango de zoom no matchean ninguna location y caen en el 404 del server.
func RenderNginx(w io.Writer, t *Table, opts NginxOptions) error {
	if opts.EmptyTile == "" {
		opts.EmptyTile = "@empty_tile"
	}
	if t == nil {
		t = &Table{}
	}
	return nginxTmpl.Execute(w, struct {
		Table *Table
		Opts  NginxOptions
	}{t, opts})
}

// zoomAlternation arma un grupo de captura que matchea exactamente los zooms
// min..max: (0|1|...|14).
func zoomAlternation(min, max int) string {
	parts := make([]string, 0, max-min+1)
	for z := min; z <= max; z++ {
		parts = append(parts, strconv.Itoa(z))
	}
	return "(" + strings.Join(parts, "|") + ")"
}
