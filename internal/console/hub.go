package console

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"config-watch/internal/engine"
	"config-watch/internal/log"
)

const (
	writeTimeout   = 5 * time.Second
	pendingNotices = 64
)

// Hub is the engine's view: it keeps the latest frame and focus state and
// fans updates out to websocket watchers.
//
// Frames and focus states coalesce: watchers always get the latest one, never
// a stale backlog. Notices queue in order; past pendingNotices the oldest go.
type Hub struct {
	mu           sync.Mutex
	frame        engine.Frame
	focus        engine.FocusState
	notice       *engine.Notice
	frameDirty   bool
	focusDirty   bool
	noticeQueue  []engine.Notice
	droppedCount int

	watcherMu sync.Mutex
	watchers  map[*websocket.Conn]struct{}

	wake chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		watchers: make(map[*websocket.Conn]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

func (h *Hub) Render(f engine.Frame) {
	h.mu.Lock()
	h.frame = f
	h.frameDirty = true
	h.mu.Unlock()
	h.signal()
}

func (h *Hub) Notify(n engine.Notice) {
	h.mu.Lock()
	h.notice = &n
	h.noticeQueue = append(h.noticeQueue, n)
	if over := len(h.noticeQueue) - pendingNotices; over > 0 {
		h.noticeQueue = append([]engine.Notice(nil), h.noticeQueue[over:]...)
		h.droppedCount += over
	}
	h.mu.Unlock()
	h.signal()
}

func (h *Hub) Focus(fs engine.FocusState) {
	h.mu.Lock()
	h.focus = fs
	h.focusDirty = true
	h.mu.Unlock()
	h.signal()
}

// LastNotice returns the most recent notification, if any.
func (h *Hub) LastNotice() (engine.Notice, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.notice == nil {
		return engine.Notice{}, false
	}
	return *h.notice, true
}

func (h *Hub) Watchers() int {
	h.watcherMu.Lock()
	defer h.watcherMu.Unlock()
	return len(h.watchers)
}

// signal never blocks the engine loop; one pending wake-up covers any
// number of updates.
func (h *Hub) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// drain takes everything pending and encodes it: queued notices first, then
// the latest frame and focus.
func (h *Hub) drain() [][]byte {
	h.mu.Lock()
	notices := h.noticeQueue
	h.noticeQueue = nil
	dropped := h.droppedCount
	h.droppedCount = 0
	var items []update
	for _, n := range notices {
		items = append(items, update{"notice", n})
	}
	if h.frameDirty {
		items = append(items, update{"frame", h.frame})
		h.frameDirty = false
	}
	if h.focusDirty {
		items = append(items, update{"focus", h.focus})
		h.focusDirty = false
	}
	h.mu.Unlock()

	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("Notice backlog overflowed")
	}

	msgs := make([][]byte, 0, len(items))
	for _, item := range items {
		msg, err := envelope(item.kind, item.data)
		if err != nil {
			log.Error().Err(err).Str("kind", item.kind).Msg("Encoding view update failed")
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

type update struct {
	kind string
	data any
}

func envelope(kind string, data any) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type": kind,
		"data": data,
	})
}

// Run writes pending updates to watchers until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.wake:
			for _, msg := range h.drain() {
				h.broadcast(msg)
			}
		}
	}
}

func (h *Hub) broadcast(msg []byte) {
	h.watcherMu.Lock()
	for conn := range h.watchers {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("Dropping watcher")
			delete(h.watchers, conn)
			_ = conn.Close()
		}
	}
	h.watcherMu.Unlock()
}

func (h *Hub) closeAll() {
	h.watcherMu.Lock()
	for conn := range h.watchers {
		_ = conn.Close()
		delete(h.watchers, conn)
	}
	h.watcherMu.Unlock()
}

// register sends the current state to a new watcher, then adds it to the
// broadcast set. Frame and focus are marked dirty afterwards so an update
// that raced the snapshot still reaches it.
func (h *Hub) register(conn *websocket.Conn) error {
	h.mu.Lock()
	frame, focus := h.frame, h.focus
	h.mu.Unlock()

	for _, item := range []update{{"frame", frame}, {"focus", focus}} {
		msg, err := envelope(item.kind, item.data)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}

	h.watcherMu.Lock()
	h.watchers[conn] = struct{}{}
	h.watcherMu.Unlock()

	h.mu.Lock()
	h.frameDirty = true
	h.focusDirty = true
	h.mu.Unlock()
	h.signal()
	return nil
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.watcherMu.Lock()
	delete(h.watchers, conn)
	h.watcherMu.Unlock()
	_ = conn.Close()
}

// ServeWS upgrades a watcher connection. Watchers only listen; anything they
// send is discarded.
func (h *Hub) ServeWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := h.register(conn); err != nil {
			_ = conn.Close()
			return
		}
		defer h.unregister(conn)
		log.Debug().Str("remote", r.RemoteAddr).Msg("Watcher connected")

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
