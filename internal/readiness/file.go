package readiness

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
	"github.com/dropDatabas3/tiledepot/internal/util/atomicwrite"
)

// FileMarker guarda el marcador como archivo en el volumen compartido.
type FileMarker struct {
	Path string
}

func NewFileMarker(path string) *FileMarker { return &FileMarker{Path: path} }

func (m *FileMarker) Mark(_ context.Context, rec Record) error {
	if _, err := os.Stat(m.Path); err == nil {
		return nil
	}
	b, err := encode(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return err
	}
	return atomicwrite.AtomicWriteFile(m.Path, b, 0o644)
}

func (m *FileMarker) Ready(_ context.Context) (bool, error) {
	_, err := os.Stat(m.Path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Read retorna el Record guardado.
func (m *FileMarker) Read() (Record, error) {
	var rec Record
	b, err := os.ReadFile(m.Path)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(b, &rec)
	return rec, err
}

// Notify observa el directorio del marcador y señala cuando el archivo aparece.
// El canal se cierra al cancelar ctx. No crea el directorio: si todavía no
// existe retorna error y Wait queda solo con polling.
func (m *FileMarker) Notify(ctx context.Context) (<-chan struct{}, error) {
	dir := filepath.Dir(m.Path)
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	target := filepath.Clean(m.Path)
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.From(ctx).Debug("marker watcher error", logger.File(m.Path), logger.Err(err))
			}
		}
	}()
	return out, nil
}
