package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wildsats-api/internal/logging"
	"wildsats-api/internal/repository"
)

type gaugeRecorder struct {
	value atomic.Int64
	sets  atomic.Int32
}

func (g *gaugeRecorder) SetPlayers(n int64) {
	g.value.Store(n)
	g.sets.Add(1)
}

func TestStatsReporter_RunNow(t *testing.T) {
	repo := repository.NewMemoryPlayerRepository()
	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.UpsertLogin(context.Background(), id, "x")
		require.NoError(t, err)
	}

	gauge := &gaugeRecorder{}
	r := NewStatsReporter(repo, gauge, StatsReporterConfig{}, logging.Nop())

	n, err := r.RunNow()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(3), gauge.value.Load())
}

func TestStatsReporter_StartStop(t *testing.T) {
	gauge := &gaugeRecorder{}
	r := NewStatsReporter(repository.NewMemoryPlayerRepository(), gauge, StatsReporterConfig{Interval: 5 * time.Millisecond}, logging.Nop())

	r.Start()
	r.Start()
	assert.Eventually(t, func() bool { return gauge.sets.Load() >= 2 }, time.Second, time.Millisecond)

	r.Stop()
	r.Stop()
}
