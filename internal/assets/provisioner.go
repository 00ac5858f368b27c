// Package assets provee los recursos estáticos que acompañan a los tiles
// (fonts, styles, natural_earth y sprites). Es best-effort: un asset que falla
// queda reportado y el resto sigue.
package assets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/tiledepot/internal/extract"
	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/tileset"
	"github.com/dropDatabas3/tiledepot/internal/util/atomicwrite"
)

// DefaultNames son los assets fijos publicados como <base>/<name>/ofm.tar.gz.
var DefaultNames = []string{"fonts", "styles", "natural_earth"}

const spritesDir = "sprites"

// Report resume una corrida de Provision.
type Report struct {
	Installed []string
	Skipped   []string
	Failed    []*AssetError
}

// OK indica que no hubo fallos.
func (r Report) OK() bool { return len(r.Failed) == 0 }

// Err agrupa los fallos (nil si no hubo).
func (r Report) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Provisioner instala assets desde BaseURL en Dir.
type Provisioner struct {
	BaseURL string
	Dir     string
	Names   []string
	Sprites bool
	Client  *http.Client
}

// New crea un Provisioner con el set de assets por defecto y sprites.
func New(baseURL, dir string) *Provisioner {
	return &Provisioner{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Dir:     dir,
		Names:   DefaultNames,
		Sprites: true,
		Client:  http.DefaultClient,
	}
}

type item struct {
	name   string // nombre reportado (fonts, sprites/v4)
	url    string
	target string
	// strip: el tar trae <strip>/... y eso es lo que se publica
	strip string
}

// Provision instala cada asset faltante. Un directorio destino no vacío se
// considera instalado.
func (p *Provisioner) Provision(ctx context.Context) Report {
	log := logger.From(ctx)
	var rep Report

	items := make([]item, 0, len(p.Names)+4)
	for _, n := range p.Names {
		items = append(items, item{
			name:   n,
			url:    fmt.Sprintf("%s/%s/ofm.tar.gz", p.BaseURL, n),
			target: filepath.Join(p.Dir, n),
		})
	}
	if p.Sprites {
		sprites, err := p.listSprites(ctx)
		if err != nil {
			ae := &AssetError{Asset: spritesDir, URL: p.BaseURL + "/files.txt", Err: err}
			log.Warn("sprite listing failed", logger.Err(ae))
			rep.Failed = append(rep.Failed, ae)
		}
		for _, v := range sprites {
			items = append(items, item{
				name:   spritesDir + "/" + v,
				url:    fmt.Sprintf("%s/%s/%s.tar.gz", p.BaseURL, spritesDir, v),
				target: filepath.Join(p.Dir, spritesDir, v),
				strip:  v,
			})
		}
	}

	for _, it := range items {
		if ctx.Err() != nil {
			rep.Failed = append(rep.Failed, &AssetError{Asset: it.name, URL: it.url, Err: ctx.Err()})
			continue
		}
		if nonEmpty(it.target) {
			log.Debug("asset present, skipping", logger.Asset(it.name))
			rep.Skipped = append(rep.Skipped, it.name)
			continue
		}
		if err := p.install(ctx, it); err != nil {
			ae := &AssetError{Asset: it.name, URL: it.url, Err: err}
			log.Warn("asset download failed, continuing", logger.Asset(it.name), logger.URL(it.url), logger.Err(err))
			rep.Failed = append(rep.Failed, ae)
			continue
		}
		log.Info("asset installed", logger.Asset(it.name))
		rep.Installed = append(rep.Installed, it.name)
	}
	return rep
}

func (p *Provisioner) install(ctx context.Context, it item) error {
	parent := filepath.Dir(it.target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(parent, tileset.TempPrefix+filepath.Base(it.target)+"-"+uuid.NewString())
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	resp, err := p.get(ctx, it.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := extract.Untar(ctx, resp.Body, tmp); err != nil {
		return err
	}

	src := tmp
	if it.strip != "" {
		if fi, err := os.Stat(filepath.Join(tmp, it.strip)); err == nil && fi.IsDir() {
			src = filepath.Join(tmp, it.strip)
		}
	}
	// un destino vacío (creado a mano o por una corrida vieja) no bloquea
	_ = os.Remove(it.target)
	if src != tmp {
		return os.Rename(src, it.target)
	}
	err = atomicwrite.PublishDir(tmp, it.target)
	if errors.Is(err, atomicwrite.ErrExists) {
		return nil
	}
	return err
}

// listSprites lee <base>/files.txt y retorna las versiones sprites/<v>.tar.gz.
func (p *Provisioner) listSprites(ctx context.Context) ([]string, error) {
	resp, err := p.get(ctx, p.BaseURL+"/files.txt")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	seen := map[string]bool{}
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := strings.TrimPrefix(strings.TrimSpace(sc.Text()), "/")
		if !strings.HasPrefix(line, spritesDir+"/") || !strings.HasSuffix(line, ".tar.gz") {
			continue
		}
		v := strings.TrimSuffix(strings.TrimPrefix(line, spritesDir+"/"), ".tar.gz")
		if tileset.ValidName(v) {
			seen[v] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func (p *Provisioner) get(ctx context.Context, url string) (*http.Response, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return resp, nil
}

func nonEmpty(dir string) bool {
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()
	names, _ := f.Readdirnames(1)
	return len(names) > 0
}
