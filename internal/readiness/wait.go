package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/dropDatabas3/tiledepot/internal/observability/logger"
)

// Policy acota la espera de Wait.
type Policy struct {
	Interval    time.Duration
	MaxInterval time.Duration
	// Multiplier 1 = intervalo fijo.
	Multiplier float64
	Timeout    time.Duration
}

// DefaultPolicy: consulta cada 5s durante hasta 10 minutos.
var DefaultPolicy = Policy{Interval: 5 * time.Second, MaxInterval: 5 * time.Second, Multiplier: 1, Timeout: 10 * time.Minute}

// TimeoutError: el marcador no apareció dentro de Policy.Timeout.
type TimeoutError struct {
	Waited time.Duration
	Polls  int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("readiness: marker not present after %s (%d polls)", e.Waited.Round(time.Millisecond), e.Polls)
}

func (p Policy) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Interval
	b.MaxInterval = p.MaxInterval
	if b.MaxInterval < p.Interval {
		b.MaxInterval = p.Interval
	}
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.RandomizationFactor = 0
	// el límite lo impone Wait con su propio deadline
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Wait bloquea hasta que m esté Ready. Retorna *TimeoutError si se agota
// p.Timeout y el error de ctx si se cancela antes. Si m implementa Notifier
// sus señales adelantan la siguiente consulta.
func Wait(ctx context.Context, m Marker, p Policy) error {
	log := logger.From(ctx).With(logger.Component("readiness"))
	start := time.Now()
	deadline := time.NewTimer(p.Timeout)
	defer deadline.Stop()

	var wake <-chan struct{}
	if n, ok := m.(Notifier); ok {
		nctx, cancel := context.WithCancel(ctx)
		defer cancel()
		if ch, err := n.Notify(nctx); err == nil {
			wake = ch
		} else {
			log.Debug("marker notifications unavailable, polling only", logger.Err(err))
		}
	}

	b := p.backoff()
	polls := 0
	for {
		polls++
		ready, err := m.Ready(ctx)
		if err != nil {
			log.Warn("readiness check failed", logger.Err(err))
		}
		if ready {
			log.Info("data ready", logger.Duration(time.Since(start)), logger.Count(polls))
			return nil
		}

		if polls == 1 {
			log.Info("waiting for data preparation", logger.Duration(p.Timeout))
		}

		next := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			next.Stop()
			return ctx.Err()
		case <-deadline.C:
			next.Stop()
			// última consulta: el marcador pudo aparecer justo al vencer
			if ok, _ := m.Ready(ctx); ok {
				return nil
			}
			return &TimeoutError{Waited: time.Since(start), Polls: polls}
		case _, ok := <-wake:
			next.Stop()
			if !ok {
				wake = nil
			}
		case <-next.C:
		}
	}
}
