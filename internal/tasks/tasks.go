package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"config-watch/internal/engine"
	"config-watch/internal/log"
)

// Intents is what scheduled jobs may ask of the engine.
type Intents interface {
	Fetch(ctx context.Context, source string) error
	TestAll(ctx context.Context) error
}

type Scheduler struct {
	intents Intents
	source  string
	cron    *cron.Cron
}

func New(intents Intents, source string) *Scheduler {
	return &Scheduler{
		intents: intents,
		source:  source,
		cron:    cron.New(),
	}
}

// Schedule registers the auto fetch and auto test jobs. An empty schedule
// leaves that job off.
func (s *Scheduler) Schedule(ctx context.Context, fetchSpec, testSpec string) error {
	if fetchSpec != "" {
		if _, err := s.cron.AddFunc(fetchSpec, func() { s.AutoFetch(ctx) }); err != nil {
			return fmt.Errorf("auto fetch schedule %q: %w", fetchSpec, err)
		}
		log.Info().Str("schedule", fetchSpec).Msg("Auto fetch enabled")
	}
	if testSpec != "" {
		if _, err := s.cron.AddFunc(testSpec, func() { s.AutoTest(ctx) }); err != nil {
			return fmt.Errorf("auto test schedule %q: %w", testSpec, err)
		}
		log.Info().Str("schedule", testSpec).Msg("Auto test enabled")
	}
	return nil
}

func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// AutoFetch asks for discovery. A cycle already in flight is not an error.
func (s *Scheduler) AutoFetch(ctx context.Context) {
	report("fetch", s.intents.Fetch(ctx, s.source))
}

// AutoTest asks for a full test run.
func (s *Scheduler) AutoTest(ctx context.Context) {
	report("test_all", s.intents.TestAll(ctx))
}

func report(job string, err error) {
	switch {
	case err == nil:
		log.Info().Str("job", job).Msg("Scheduled intent posted")
	case errors.Is(err, engine.ErrBusy), errors.Is(err, engine.ErrNothingToTest):
		log.Info().Str("job", job).Str("reason", err.Error()).Msg("Scheduled intent skipped")
	case errors.Is(err, context.Canceled), errors.Is(err, engine.ErrStopped):
		log.Debug().Str("job", job).Msg("Scheduled intent after shutdown")
	default:
		log.Error().Err(err).Str("job", job).Msg("Scheduled intent failed")
	}
}
