package engine

import (
	"context"

	"config-watch/internal/log"
	"config-watch/internal/store"
)

func (e *Engine) startFetch(source string) error {
	op := &e.coord.fetch
	seq, err := op.begin()
	if err != nil {
		e.notify(LevelWarning, "Fetch already in progress")
		return err
	}
	cycle := op.cycle
	log.Info().Str("op", op.name).Str("cycle", cycle).Str("source", source).Msg("Requesting config fetch")

	e.setLoading("Fetching configs...")
	e.render()
	e.armTimeout(op, seq)

	e.spawn(func(ctx context.Context) {
		err := e.backend.FetchConfigs(ctx, source)
		e.post(func() { e.fetchAcknowledged(seq, cycle, err) })
	})
	return nil
}

func (e *Engine) fetchAcknowledged(seq uint64, cycle string, err error) {
	if !e.coord.fetch.acknowledge(seq, err) {
		log.Debug().Str("cycle", cycle).Msg("Ignoring late fetch reply")
		return
	}
	if err == nil {
		log.Debug().Str("cycle", cycle).Msg("Fetch accepted, awaiting completion")
		return
	}
	log.Error().Err(err).Str("cycle", cycle).Msg("Fetch request failed")
	e.clearLoading()
	e.failed = true
	e.notify(LevelError, "Fetch failed: %v", err)
	e.render()
}

func (e *Engine) startTestAll() error {
	op := &e.coord.testAll
	if e.store.Len() == 0 {
		e.notify(LevelWarning, "Fetch configs before testing them")
		return ErrNothingToTest
	}
	seq, err := op.begin()
	if err != nil {
		e.notify(LevelWarning, "Test run already in progress")
		return err
	}
	cycle := op.cycle
	log.Info().Str("op", op.name).Str("cycle", cycle).Int("configs_count", e.store.Len()).Msg("Requesting test run")
	e.armTimeout(op, seq)

	e.spawn(func(ctx context.Context) {
		err := e.backend.TestAll(ctx)
		e.post(func() { e.testAllAcknowledged(seq, cycle, err) })
	})
	return nil
}

func (e *Engine) testAllAcknowledged(seq uint64, cycle string, err error) {
	if !e.coord.testAll.acknowledge(seq, err) {
		log.Debug().Str("cycle", cycle).Msg("Ignoring late test run reply")
		return
	}
	if err == nil {
		log.Debug().Str("cycle", cycle).Msg("Test run accepted, awaiting completion")
		return
	}
	log.Error().Err(err).Str("cycle", cycle).Msg("Test run request failed")
	e.notify(LevelError, "Test run failed: %v", err)
}

func (e *Engine) startTestOne(id store.ID) {
	var recPtr *store.ConfigRecord
	if rec, err := e.store.Get(id); err == nil {
		recPtr = &rec
	}
	e.tracker.start(id, recPtr, e.now())
	e.view.Focus(e.tracker.snapshot())
	log.Info().Str("config_id", id.String()).Msg("Requesting single test")

	e.spawn(func(ctx context.Context) {
		err := e.backend.TestConfig(ctx, id)
		if err == nil {
			return
		}
		e.post(func() {
			log.Error().Err(err).Str("config_id", id.String()).Msg("Single test request failed")
			e.notify(LevelError, "Test failed: %v", err)
			if e.tracker.fail(id, err, e.now()) {
				e.view.Focus(e.tracker.snapshot())
			}
		})
	})
}

// reload re-reads records, then stats. Replies older than one already
// applied are dropped.
func (e *Engine) reload() {
	e.reloadSeq++
	seq := e.reloadSeq
	limit := e.opts.Limit

	e.spawn(func(ctx context.Context) {
		records, err := e.backend.ListConfigs(ctx, limit)
		e.post(func() { e.recordsLoaded(seq, records, err) })
	})
}

func (e *Engine) recordsLoaded(seq uint64, records []store.ConfigRecord, err error) {
	if err != nil {
		log.Error().Err(err).Msg("Loading configs failed")
		return
	}
	if seq < e.reloadDone {
		log.Debug().Uint64("seq", seq).Msg("Dropping stale config list")
		return
	}
	e.reloadDone = seq
	e.store.ReplaceAll(records)
	log.Info().Int("configs_count", len(records)).Msg("Configs loaded")
	e.render()
	e.reloadStats()
}

func (e *Engine) reloadStats() {
	e.statsSeq++
	seq := e.statsSeq

	e.spawn(func(ctx context.Context) {
		stats, err := e.backend.Stats(ctx)
		e.post(func() { e.statsLoaded(seq, stats, err) })
	})
}

func (e *Engine) statsLoaded(seq uint64, stats store.Stats, err error) {
	if err != nil {
		log.Error().Err(err).Msg("Loading stats failed")
		return
	}
	if seq < e.statsApplied {
		return
	}
	e.statsApplied = seq
	e.store.SetStats(stats)
	e.render()
}
