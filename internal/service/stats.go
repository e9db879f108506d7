package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wildsats-api/internal/repository"
)

// PlayerGauge receives the periodically refreshed player count.
type PlayerGauge interface {
	SetPlayers(n int64)
}

// StatsReporterConfig holds configuration for the stats reporter.
type StatsReporterConfig struct {
	// Interval is how often stats are refreshed. Default: 1 minute
	Interval time.Duration
	// Timeout bounds a single refresh. Default: 10 seconds
	Timeout time.Duration
}

// StatsReporter periodically reads store statistics into a gauge.
type StatsReporter struct {
	repo   repository.PlayerRepository
	gauge  PlayerGauge
	config StatsReporterConfig
	logger *slog.Logger

	mu        sync.Mutex
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
}

// NewStatsReporter creates a new stats reporter.
func NewStatsReporter(repo repository.PlayerRepository, gauge PlayerGauge, config StatsReporterConfig, logger *slog.Logger) *StatsReporter {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &StatsReporter{
		repo:   repo,
		gauge:  gauge,
		config: config,
		logger: logger.With("component", "stats_reporter"),
		stopCh: make(chan struct{}),
	}
}

// Start refreshes once immediately, then on every interval.
func (s *StatsReporter) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	s.logger.Info("stats reporter started", "interval", s.config.Interval)

	go func() {
		_, _ = s.RunNow()
		s.run()
	}()
}

func (s *StatsReporter) run() {
	for {
		select {
		case <-s.ticker.C:
			_, _ = s.RunNow()
		case <-s.stopCh:
			s.logger.Info("stats reporter stopped")
			return
		}
	}
}

// RunNow refreshes the gauge and returns the player count.
func (s *StatsReporter) RunNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "stats refresh failed", "error", err)
		return 0, err
	}

	total, _ := stats["total_players"].(int64)
	s.gauge.SetPlayers(total)
	return total, nil
}

// Stop stops the reporter. Safe to call more than once.
func (s *StatsReporter) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}
