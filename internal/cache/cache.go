// Package cache define un cache de bytes con backends intercambiables.
//
// Lo usa el servidor para los manifests: memory por réplica, o redis para
// compartirlos entre réplicas detrás del mismo balanceador. Una falla del
// backend equivale a un miss; el cache nunca es la fuente de verdad.
package cache

import "time"

// Cache guarda valores opacos por key.
type Cache interface {
	// Get retorna (nil, false) ante miss o error del backend.
	Get(k string) ([]byte, bool)
	// Set con ttl 0 usa el TTL por defecto del backend.
	Set(k string, v []byte, ttl time.Duration)
	Delete(k string)
}
