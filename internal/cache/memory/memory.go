package memory

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/tiledepot/internal/cache"
)

type Mem struct{ c *gocache.Cache }

// New crea un cache en proceso. defaultTTL <= 0 => sin expiración.
func New(defaultTTL time.Duration) cache.Cache {
	if defaultTTL <= 0 {
		return &Mem{c: gocache.New(gocache.NoExpiration, 0)}
	}
	return &Mem{c: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (m *Mem) Get(k string) ([]byte, bool) {
	v, ok := m.c.Get(k)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (m *Mem) Set(k string, v []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(k, v, ttl)
}

func (m *Mem) Delete(k string) { m.c.Delete(k) }
