// Package scheduler retries on-chain finalization of approved transactions.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/internal/transactions"
)

// Finalizer is the part of the transaction engine the sweeper drives.
type Finalizer interface {
	PendingFinalization(ctx context.Context, limit int) ([]transactions.Transaction, error)
	FinalizeOnChain(ctx context.Context, id uint, actor auth.Actor, req transactions.FinalizeRequest) (*transactions.FinalizeResult, error)
}

// Config configures the finalization sweeper
type Config struct {
	// Schedule is a six-field cron expression (with seconds).
	Schedule      string
	BatchSize     int
	MaxConcurrent int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Schedule:      "0 */5 * * * *",
		BatchSize:     20,
		MaxConcurrent: 4,
	}
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Attempted int
	Finalized int
	Failed    int
}

// FinalizeSweeper periodically finalizes Government Approved transactions
// that carry a stored price and wallet address.
type FinalizeSweeper struct {
	cron      *cron.Cron
	finalizer Finalizer
	config    Config
	logger    *zap.Logger
	mu        sync.Mutex
	running   bool
	sweeping  atomic.Bool
}

func NewFinalizeSweeper(finalizer Finalizer, logger *zap.Logger, config Config) *FinalizeSweeper {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	return &FinalizeSweeper{
		cron:      cron.New(cron.WithSeconds()),
		finalizer: finalizer,
		config:    config,
		logger:    logger,
	}
}

// Start schedules sweeps until Stop is called or ctx is cancelled.
func (s *FinalizeSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("finalize sweeper already running")
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.config.Schedule, err)
	}

	s.logger.Info("Starting finalize sweeper",
		zap.String("schedule", s.config.Schedule),
		zap.Int("batch_size", s.config.BatchSize))

	s.cron.Start()
	s.running = true
	return nil
}

// Stop waits for a running sweep to finish.
func (s *FinalizeSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.logger.Info("Stopping finalize sweeper")
	<-s.cron.Stop().Done()
	s.running = false
}

// Sweep finalizes one batch. Overlapping calls are skipped.
func (s *FinalizeSweeper) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debug("Previous sweep still running")
		return res
	}
	defer s.sweeping.Store(false)

	pending, err := s.finalizer.PendingFinalization(ctx, s.config.BatchSize)
	if err != nil {
		s.logger.Error("Failed to list pending finalizations", zap.Error(err))
		return res
	}
	if len(pending) == 0 {
		return res
	}

	s.logger.Info("Finalizing approved transactions", zap.Int("count", len(pending)))

	var (
		wg        sync.WaitGroup
		finalized atomic.Int64
		failed    atomic.Int64
		sem       = make(chan struct{}, s.config.MaxConcurrent)
	)
	for _, t := range pending {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++
		sem <- struct{}{}
		wg.Add(1)

		go func(id uint) {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := s.finalizer.FinalizeOnChain(ctx, id, auth.System, transactions.FinalizeRequest{})
			if err != nil {
				failed.Add(1)
				s.logger.Warn("Finalization attempt failed",
					zap.Uint("transaction_id", id),
					zap.String("kind", string(errs.KindOf(err))),
					zap.Bool("retryable", errs.Retryable(err)),
					zap.Error(err))
				return
			}
			if !out.AlreadyFinalized {
				finalized.Add(1)
			}
		}(t.ID)
	}
	wg.Wait()

	res.Finalized = int(finalized.Load())
	res.Failed = int(failed.Load())

	s.logger.Info("Finalize sweep completed",
		zap.Int("attempted", res.Attempted),
		zap.Int("finalized", res.Finalized),
		zap.Int("failed", res.Failed))
	return res
}
