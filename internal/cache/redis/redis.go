package redis

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Cache es un cache.Cache sobre Redis. Las keys llevan Prefix.
type Cache struct {
	c      *rdb.Client
	prefix string
	ttl    time.Duration
	// opTimeout acota cada operación; Get/Set no reciben contexto.
	opTimeout time.Duration
}

// New conecta y hace ping. ttl es el default para Set con ttl 0.
func New(addr string, db int, prefix string, ttl time.Duration) (*Cache, error) {
	c := rdb.NewClient(&rdb.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("cache: redis ping %s: %w", addr, err)
	}
	return &Cache{c: c, prefix: prefix, ttl: ttl, opTimeout: time.Second}, nil
}

func (r *Cache) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Cache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.opTimeout)
}

func (r *Cache) Get(k string) ([]byte, bool) {
	ctx, cancel := r.ctx()
	defer cancel()
	b, err := r.c.Get(ctx, r.key(k)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *Cache) Set(k string, v []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.ttl
	}
	ctx, cancel := r.ctx()
	defer cancel()
	_ = r.c.Set(ctx, r.key(k), v, ttl).Err()
}

func (r *Cache) Delete(k string) {
	ctx, cancel := r.ctx()
	defer cancel()
	_ = r.c.Del(ctx, r.key(k)).Err()
}

func (r *Cache) Close() error { return r.c.Close() }
