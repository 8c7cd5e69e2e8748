package checkpoint

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper prunes old checkpoints on a cron schedule. Retention lives
// entirely in the store; the scheduler never consults it.
type Sweeper struct {
	store  *Store
	cron   *cron.Cron
	maxAge time.Duration
}

// NewSweeper creates a sweeper. schedule is a standard cron expression
// (e.g. "@hourly"); checkpoints older than maxAge are removed on each
// sweep.
func NewSweeper(store *Store, schedule string, maxAge time.Duration) (*Sweeper, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention age must be positive")
	}

	s := &Sweeper{
		store:  store,
		cron:   cron.New(),
		maxAge: maxAge,
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Sweeper) sweep() {
	cutoff := time.Now().Add(-s.maxAge)
	if _, err := s.store.Prune(cutoff); err != nil {
		log.Error().Err(err).Msg("Checkpoint sweep failed")
	}
}

// Start begins sweeping on the configured schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
	log.Info().Dur("max_age", s.maxAge).Msg("Checkpoint sweeper started")
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
