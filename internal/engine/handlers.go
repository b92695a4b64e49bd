package engine

import (
	"config-watch/internal/log"
	"config-watch/internal/push"
)

func (e *Engine) registerHandlers() {
	e.router.Handle(push.TypeConnected, e.onConnected)
	e.router.Handle(push.TypeFetchStarted, e.onFetchStarted)
	e.router.Handle(push.TypeFetchCompleted, e.onFetchCompleted)
	e.router.Handle(push.TypeFetchError, e.onFetchError)
	e.router.Handle(push.TypeTestStarted, e.onTestStarted)
	e.router.Handle(push.TypeTestProgress, e.onProgress)
	e.router.Handle(push.TypeTestCompleted, e.onTestCompleted)
	e.router.Handle(push.TypeTestError, e.onTestError)
	e.router.Handle(push.TypeSingleTestProgress, e.onProgress)
	e.router.Handle(push.TypeSingleTestCompleted, e.onSingleTestCompleted)
}

func (e *Engine) onConnected(msg push.Message) {
	log.Info().Str("message", msg.Message).Msg("Backend greeted push channel")
}

func (e *Engine) onFetchStarted(msg push.Message) {
	e.setLoading("Fetching configs...")
	e.render()
}

func (e *Engine) onFetchCompleted(msg push.Message) {
	op := &e.coord.fetch
	cycle := op.cycle
	if op.finish() {
		log.Info().Str("cycle", cycle).Int("configs_count", msg.ConfigsCount).Msg("Fetch completed")
	}
	e.clearLoading()
	e.failed = false
	e.notify(LevelSuccess, "%d configs fetched", msg.ConfigsCount)
	e.render()
	e.reload()
}

func (e *Engine) onFetchError(msg push.Message) {
	op := &e.coord.fetch
	cycle := op.cycle
	if op.finish() {
		log.Warn().Str("cycle", cycle).Str("error", msg.Error).Msg("Fetch failed remotely")
	}
	e.clearLoading()
	e.failed = true
	e.notify(LevelError, "Fetch failed: %s", msg.Error)
	e.render()
}

func (e *Engine) onTestStarted(msg push.Message) {
	e.notify(LevelInfo, "Testing %d configs", msg.ConfigsCount)
}

// onProgress narrates both single and bulk progress, for the focused id only.
func (e *Engine) onProgress(msg push.Message) {
	if e.tracker.progress(msg.ConfigID, msg.Message, e.now()) {
		e.view.Focus(e.tracker.snapshot())
	}
}

func (e *Engine) onTestCompleted(msg push.Message) {
	op := &e.coord.testAll
	cycle := op.cycle
	if op.finish() {
		log.Info().Str("cycle", cycle).Msg("Test run completed")
	}
	if msg.Stats != nil {
		e.store.SetStats(*msg.Stats)
	}
	e.notify(LevelSuccess, "Test run finished")
	e.render()
	e.reload()
}

func (e *Engine) onTestError(msg push.Message) {
	op := &e.coord.testAll
	cycle := op.cycle
	if op.finish() {
		log.Warn().Str("cycle", cycle).Str("error", msg.Error).Msg("Test run failed remotely")
	}
	e.notify(LevelError, "Test run failed: %s", msg.Error)
}

// onSingleTestCompleted applies the result whatever the focus; only the
// narration is focus-gated.
//
// The test time is the push timestamp, so a replayed push is a no-op. A push
// without one is stamped with the engine clock at receipt, and a replay of it
// moves LastTestedAt forward.
func (e *Engine) onSingleTestCompleted(msg push.Message) {
	if msg.Result == nil {
		log.Warn().Str("config_id", msg.ConfigID.String()).Msg("Test result without payload")
		return
	}
	at := msg.Time()
	if at.IsZero() {
		at = e.now()
	}
	if !e.store.Patch(msg.ConfigID, msg.Result.Status, msg.Result.Ping, at) {
		log.Debug().Str("config_id", msg.ConfigID.String()).Msg("Result for unknown config ignored")
	}
	if e.tracker.complete(msg.ConfigID, msg.Result.Status, e.now()) {
		e.view.Focus(e.tracker.snapshot())
	}
	e.render()
	e.reloadStats()
}
