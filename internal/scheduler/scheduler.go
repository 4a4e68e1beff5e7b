// Package scheduler drives ingestion cycles on a fixed interval. Overlap
// between a scheduled cycle and a manual trigger is safe: the storage
// layer's atomic insert-if-absent makes double-processing impossible.
package scheduler

import (
	"context"
	"sync"
	"time"

	"royale-tracker/internal/config"
	"royale-tracker/internal/service"

	"github.com/rs/zerolog"
)

// CycleRunner runs one ingestion pass.
type CycleRunner interface {
	RunCycle(ctx context.Context) (service.CycleSummary, error)
}

type Scheduler struct {
	interval time.Duration
	ingest   CycleRunner
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config, ingest CycleRunner, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		interval: cfg.PollInterval,
		ingest:   ingest,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the polling loop. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	s.wg.Add(1)
	go s.run()

	s.logger.Info().Dur("interval", s.interval).Msg("ingestion scheduler started")
	return nil
}

// Stop cancels the loop and waits for any in-flight cycle to finish, or
// for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("ingestion scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runCycle()
		}
	}
}

func (s *Scheduler) runCycle() {
	start := time.Now()
	summary, err := s.ingest.RunCycle(s.ctx)
	if err != nil {
		s.logger.Error().Err(err).
			Str("cycle_id", summary.CycleID).
			Int("new_battles", summary.NewBattles).
			Msg("ingestion cycle failed, committed battles retained")
		return
	}
	s.logger.Info().
		Str("cycle_id", summary.CycleID).
		Int("new_battles", summary.NewBattles).
		Dur("duration", time.Since(start)).
		Msg("scheduled cycle finished")
}
