package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"config-watch/internal/log"
	"config-watch/internal/push"
	"config-watch/internal/store"
)

var (
	ErrBusy          = errors.New("operation already in progress")
	ErrNothingToTest = errors.New("no configs to test, fetch configs first")
	ErrAwaitTimeout  = errors.New("timed out waiting for backend completion")
	ErrStopped       = errors.New("engine stopped")
)

const stepBuffer = 256

// Backend is the request/response side of the remote service.
type Backend interface {
	FetchConfigs(ctx context.Context, source string) error
	TestAll(ctx context.Context) error
	TestConfig(ctx context.Context, id store.ID) error
	ListConfigs(ctx context.Context, limit int) ([]store.ConfigRecord, error)
	Stats(ctx context.Context) (store.Stats, error)
}

type Options struct {
	// Source is sent with fetch intents that do not name one.
	Source string
	// Limit caps the records requested on every reload.
	Limit int
	// AwaitTimeout ends a cycle that saw no terminal push. Zero waits forever.
	AwaitTimeout time.Duration
}

// Engine owns the store and runs every state change on a single loop
// goroutine: push frames, request replies, timers and operator intents are
// all queued as steps and executed one at a time.
type Engine struct {
	store   *store.Store
	backend Backend
	view    View
	router  *push.Router
	opts    Options

	coord   *coordinator
	tracker tracker

	filter         Filter
	loading        bool
	loadingMessage string
	failed         bool
	connected      bool
	everConnected  bool
	lastFrame      Frame

	reloadSeq    uint64
	reloadDone   uint64
	statsSeq     uint64
	statsApplied uint64

	steps chan func()
	done  chan struct{}
	ctx   context.Context
	wg    sync.WaitGroup

	now   func() time.Time
	after func(d time.Duration, f func()) func() bool
}

func New(st *store.Store, backend Backend, view View, opts Options) *Engine {
	if view == nil {
		view = nopView{}
	}
	if opts.Source == "" {
		opts.Source = "all"
	}
	e := &Engine{
		store:   st,
		backend: backend,
		view:    view,
		router:  push.NewRouter(),
		opts:    opts,
		coord:   newCoordinator(),
		filter:  FilterAll,
		steps:   make(chan func(), stepBuffer),
		done:    make(chan struct{}),
		ctx:     context.Background(),
		now:     time.Now,
		after: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
	e.registerHandlers()
	return e
}

// Run executes steps until ctx is done. It loads the current records first.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	defer func() {
		close(e.done)
		e.wg.Wait()
	}()

	e.reload()
	e.render()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case step := <-e.steps:
			step()
		}
	}
}

// Deliver queues one raw push frame. It is the transport channel's sink.
func (e *Engine) Deliver(raw []byte) {
	e.post(func() {
		_ = e.router.Dispatch(raw)
	})
}

// SetConnected records a push channel transition. Reconnects trigger a
// reload so events missed while offline do not leave the view stale.
func (e *Engine) SetConnected(connected bool) {
	e.post(func() {
		e.connected = connected
		if connected {
			if e.everConnected {
				log.Info().Msg("Push channel back, reloading configs")
				e.reload()
			}
			e.everConnected = true
		}
		e.render()
	})
}

// Fetch asks the backend to rediscover configs. An empty source uses the
// configured default.
func (e *Engine) Fetch(ctx context.Context, source string) error {
	if source == "" {
		source = e.opts.Source
	}
	return e.call(ctx, func() error { return e.startFetch(source) })
}

// TestAll asks the backend to test every config.
func (e *Engine) TestAll(ctx context.Context) error {
	return e.call(ctx, e.startTestAll)
}

// TestOne focuses id and asks the backend to test it.
func (e *Engine) TestOne(ctx context.Context, id store.ID) error {
	return e.call(ctx, func() error {
		e.startTestOne(id)
		return nil
	})
}

func (e *Engine) SetFilter(ctx context.Context, filter Filter) error {
	return e.call(ctx, func() error {
		e.filter = filter
		e.render()
		return nil
	})
}

// CloseFocus ends the focus session.
func (e *Engine) CloseFocus(ctx context.Context) error {
	return e.call(ctx, func() error {
		e.tracker.close()
		e.view.Focus(e.tracker.snapshot())
		return nil
	})
}

// Reload re-reads records and stats without asking for discovery.
func (e *Engine) Reload(ctx context.Context) error {
	return e.call(ctx, func() error {
		e.reload()
		return nil
	})
}

// Frame returns the last rendered frame.
func (e *Engine) Frame(ctx context.Context) (Frame, error) {
	var f Frame
	err := e.call(ctx, func() error {
		f = e.lastFrame
		return nil
	})
	return f, err
}

func (e *Engine) FocusState(ctx context.Context) (FocusState, error) {
	var fs FocusState
	err := e.call(ctx, func() error {
		fs = e.tracker.snapshot()
		return nil
	})
	return fs, err
}

// OpStates reports the fetch and test-all machine states.
func (e *Engine) OpStates(ctx context.Context) (fetch, testAll OpState, err error) {
	err = e.call(ctx, func() error {
		fetch, testAll = e.coord.fetch.state, e.coord.testAll.state
		return nil
	})
	return fetch, testAll, err
}

func (e *Engine) post(step func()) bool {
	select {
	case e.steps <- step:
		return true
	case <-e.done:
		return false
	}
}

// call runs fn on the loop and waits for its result.
func (e *Engine) call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	step := func() { result <- fn() }
	select {
	case e.steps <- step:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs blocking work off the loop. Results must come back via post.
func (e *Engine) spawn(fn func(ctx context.Context)) {
	ctx := e.ctx
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(ctx)
	}()
}

func (e *Engine) render() {
	e.lastFrame = Frame{
		Filter:         e.filter,
		Records:        Project(e.store.Records(), e.filter),
		Stats:          e.store.Aggregate(),
		Total:          e.store.Len(),
		Loading:        e.loading,
		LoadingMessage: e.loadingMessage,
		Failed:         e.failed,
		Connected:      e.connected,
	}
	e.view.Render(e.lastFrame)
}

func (e *Engine) notify(level Level, format string, args ...any) {
	e.view.Notify(Notice{Level: level, Message: fmt.Sprintf(format, args...), At: e.now()})
}

func (e *Engine) setLoading(message string) {
	e.loading = true
	e.loadingMessage = message
	e.failed = false
}

func (e *Engine) clearLoading() {
	e.loading = false
	e.loadingMessage = ""
}

// armTimeout bounds the wait for a terminal push when AwaitTimeout is set.
func (e *Engine) armTimeout(op *operation, seq uint64) {
	if e.opts.AwaitTimeout <= 0 {
		return
	}
	op.stopTimer = e.after(e.opts.AwaitTimeout, func() {
		e.post(func() { e.expire(op, seq) })
	})
}

func (e *Engine) expire(op *operation, seq uint64) {
	cycle := op.cycle
	if !op.expire(seq) {
		return
	}
	log.Warn().Str("op", op.name).Str("cycle", cycle).Dur("timeout", e.opts.AwaitTimeout).Msg("No completion received")
	if op == &e.coord.fetch {
		e.clearLoading()
		e.failed = true
	}
	e.notify(LevelError, "%s: %v", op.name, ErrAwaitTimeout)
	e.render()
}
