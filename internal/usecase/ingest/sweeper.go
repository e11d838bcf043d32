package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"job-ingest/internal/repository"

	"github.com/robfig/cron/v3"
)

type SweeperConfig struct {
	Schedule    string
	MaxAttempts int
	MinAge      time.Duration
	BatchSize   int
	LockTTL     time.Duration
}

func (c SweeperConfig) withDefaults() SweeperConfig {
	if strings.TrimSpace(c.Schedule) == "" {
		c.Schedule = "@every 5m"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MinAge <= 0 {
		c.MinAge = 10 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.LockTTL <= 0 {
		c.LockTTL = time.Minute
	}
	return c
}

// Locker elects one sweeper per tick when several instances share a store.
type Locker interface {
	SetIfNotExists(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

const sweepLockKey = "ingest:sweeper:lock"

// Sweeper requeues pending records whose enrichment never finished: queue
// overflow, fetch failures, crashes mid-task.
type Sweeper struct {
	store      repository.JobStore
	enricher   *Enricher
	dispatcher Dispatcher
	locker     Locker
	cfg        SweeperConfig
	cron       *cron.Cron
	now        func() time.Time
	logger     *log.Logger
}

func NewSweeper(store repository.JobStore, enricher *Enricher, dispatcher Dispatcher, locker Locker, cfg SweeperConfig, logger *log.Logger) *Sweeper {
	return &Sweeper{
		store:      store,
		enricher:   enricher,
		dispatcher: dispatcher,
		locker:     locker,
		cfg:        cfg.withDefaults(),
		cron:       cron.New(),
		now:        time.Now,
		logger:     logger,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logf("[Sweeper] run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logf("[Sweeper] started schedule=%q max_attempts=%d min_age=%s", s.cfg.Schedule, s.cfg.MaxAttempts, s.cfg.MinAge)
	return nil
}

// Stop waits for a running sweep to return.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logf("[Sweeper] stopped")
}

// RunOnce requeues one batch and reports how many tasks were accepted.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	if s.locker != nil {
		ok, err := s.locker.SetIfNotExists(ctx, sweepLockKey, "1", s.cfg.LockTTL)
		if err == nil && !ok {
			return 0, nil
		}
	}

	recs, err := s.store.ListPendingForRetry(ctx, s.now().Add(-s.cfg.MinAge), s.cfg.MaxAttempts, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	queued := 0
	for _, rec := range recs {
		t := Task{
			JobID:    rec.ID,
			UserID:   rec.UserID,
			FetchURL: rec.CanonicalURL,
			HTML:     rec.SourceHTML,
			Fallback: rec.Fields(),
		}
		if !s.dispatcher.TrySubmit(s.enricher.TaskFunc(t)) {
			s.logf("[Sweeper] queue full, stopping early queued=%d pending=%d", queued, len(recs))
			break
		}
		queued++
	}
	if len(recs) > 0 {
		s.logf("[Sweeper] requeued=%d pending=%d", queued, len(recs))
	}
	return queued, nil
}

func (s *Sweeper) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
