package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMarker guarda el marcador como key en Redis, para despliegues donde
// los replicas no comparten un filesystem con notificaciones confiables.
type RedisMarker struct {
	client *redis.Client
	key    string
}

// NewRedisMarker no abre conexiones: quien espera con Wait trata un Redis
// caído como "todavía no listo". Quien escribe el marcador usa Ping antes.
func NewRedisMarker(addr string, db int, key string) *RedisMarker {
	return &RedisMarker{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		key:    key,
	}
}

// Ping verifica la conexión con un timeout de 5s.
func (m *RedisMarker) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("readiness: redis ping failed: %w", err)
	}
	return nil
}

// Mark usa SETNX: el primer prepare que termina fija el registro.
func (m *RedisMarker) Mark(ctx context.Context, rec Record) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	return m.client.SetNX(ctx, m.key, b, 0).Err()
}

func (m *RedisMarker) Ready(ctx context.Context) (bool, error) {
	n, err := m.client.Exists(ctx, m.key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *RedisMarker) Close() error { return m.client.Close() }
