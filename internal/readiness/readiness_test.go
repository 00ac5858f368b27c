package readiness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

var fast = Policy{Interval: 20 * time.Millisecond, MaxInterval: 20 * time.Millisecond, Multiplier: 1, Timeout: 2 * time.Second}

func TestFileMarker_OneWay(t *testing.T) {
	m := NewFileMarker(filepath.Join(t.TempDir(), "data", ".ready"))
	ctx := context.Background()

	ready, err := m.Ready(ctx)
	require.NoError(t, err)
	require.False(t, ready)

	require.NoError(t, m.Mark(ctx, Record{RunID: "run-1", Datasets: []string{"monaco"}}))
	require.NoError(t, m.Mark(ctx, Record{RunID: "run-2"}))

	ready, err = m.Ready(ctx)
	require.NoError(t, err)
	require.True(t, ready)

	rec, err := m.Read()
	require.NoError(t, err)
	require.Equal(t, "run-1", rec.RunID, "un segundo Mark no reemplaza el registro")
	require.False(t, rec.At.IsZero())
}

func TestWait_AlreadyReady(t *testing.T) {
	m := NewFileMarker(filepath.Join(t.TempDir(), ".ready"))
	require.NoError(t, m.Mark(context.Background(), Record{RunID: "r"}))
	require.NoError(t, Wait(context.Background(), m, fast))
}

func TestWait_MarkerAppearsLater(t *testing.T) {
	m := NewFileMarker(filepath.Join(t.TempDir(), ".ready"))
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = m.Mark(context.Background(), Record{RunID: "late"})
	}()
	require.NoError(t, Wait(context.Background(), m, fast))
}

// slowMarker no notifica; obliga a Wait a depender del polling.
type slowMarker struct {
	ready atomic.Bool
	polls atomic.Int32
}

func (s *slowMarker) Mark(context.Context, Record) error { s.ready.Store(true); return nil }
func (s *slowMarker) Ready(context.Context) (bool, error) {
	s.polls.Add(1)
	return s.ready.Load(), nil
}

func TestWait_TimesOut(t *testing.T) {
	m := &slowMarker{}
	p := Policy{Interval: 100 * time.Millisecond, MaxInterval: 100 * time.Millisecond, Multiplier: 1, Timeout: 500 * time.Millisecond}

	start := time.Now()
	err := Wait(context.Background(), m, p)
	elapsed := time.Since(start)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	require.GreaterOrEqual(t, elapsed, p.Timeout)
	require.Less(t, elapsed, p.Timeout+time.Second)
	require.GreaterOrEqual(t, int(m.polls.Load()), 3)
	require.Contains(t, te.Error(), "marker not present")
}

func TestWait_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	err := Wait(ctx, &slowMarker{}, fast)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWait_ExponentialPolicy(t *testing.T) {
	m := &slowMarker{}
	p := Policy{Interval: 10 * time.Millisecond, MaxInterval: 80 * time.Millisecond, Multiplier: 2, Timeout: 300 * time.Millisecond}
	err := Wait(context.Background(), m, p)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	// 10+20+40+80+80... => bastante menos consultas que con intervalo fijo de 10ms
	require.Less(t, te.Polls, 15)
}

func TestRedisMarker(t *testing.T) {
	mr := miniredis.RunT(t)
	m := NewRedisMarker(mr.Addr(), 0, "tiledepot:ready")
	defer m.Close()
	ctx := context.Background()
	require.NoError(t, m.Ping(ctx))

	ready, err := m.Ready(ctx)
	require.NoError(t, err)
	require.False(t, ready)

	go func() {
		time.Sleep(60 * time.Millisecond)
		_ = m.Mark(ctx, Record{RunID: "first"})
	}()
	require.NoError(t, Wait(ctx, m, fast))

	require.NoError(t, m.Mark(ctx, Record{RunID: "second"}))
	v, err := mr.Get("tiledepot:ready")
	require.NoError(t, err)
	require.Contains(t, v, `"run_id":"first"`)
}

func TestRedisMarker_UnreachableIsNotReadyYet(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	m := NewRedisMarker(addr, 0, "k")
	defer m.Close()
	ctx := context.Background()
	require.Error(t, m.Ping(ctx))

	p := fast
	p.Timeout = 200 * time.Millisecond
	err := Wait(ctx, m, p)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	require.Greater(t, te.Polls, 1)
}

func TestRedisMarker_WaitsThroughOutage(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()

	m := NewRedisMarker(addr, 0, "tiledepot:ready")
	defer m.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := mr.StartAddr(addr); err != nil {
			return
		}
		_ = mr.Set("tiledepot:ready", "{}")
	}()
	t.Cleanup(mr.Close)

	require.NoError(t, Wait(context.Background(), m, fast))
}

func TestFileMarker_NotifyDoesNotCreateDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-yet")
	m := NewFileMarker(filepath.Join(dir, ".ready"))

	_, err := m.Notify(context.Background())
	require.Error(t, err)

	p := fast
	p.Timeout = 100 * time.Millisecond
	var te *TimeoutError
	require.ErrorAs(t, Wait(context.Background(), m, p), &te)

	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err), "esperar nunca escribe en el volumen")
}
