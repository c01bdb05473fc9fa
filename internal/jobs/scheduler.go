// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/repo"
)

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	cron *cron.Cron
	db   *gorm.DB
	now  func() time.Time
}

// New returns a scheduler bound to db. Nothing runs until Start.
func New(db *gorm.DB) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		db:   db,
		now:  time.Now,
	}
}

// RegisterIdempotencyPurge schedules removal of expired idempotency
// records. spec accepts the standard five-field syntax and descriptors
// such as "@every 1h".
func (s *Scheduler) RegisterIdempotencyPurge(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.PurgeIdempotency(context.Background()); err != nil {
			log.Error().Err(err).Str("job", "purge_idempotency").Msg("cron job failed")
		}
	})
	return err
}

// PurgeIdempotency deletes expired idempotency records once.
func (s *Scheduler) PurgeIdempotency(ctx context.Context) (int64, error) {
	start := s.now()
	n, err := repo.PurgeExpiredIdempotency(ctx, s.db, start.UTC())
	if err != nil {
		return 0, err
	}
	log.Info().
		Str("job", "purge_idempotency").
		Int64("deleted", n).
		Dur("took", time.Since(start)).
		Msg("cron job done")
	return n, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("cron started")
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	log.Info().Msg("cron stopped")
}
