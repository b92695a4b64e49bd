package push

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"config-watch/internal/log"
)

var (
	ErrMalformed = errors.New("malformed push message")
	ErrUnhandled = errors.New("unhandled push message type")
)

type HandlerFunc func(Message)

// Router decodes push frames and dispatches them by type. It keeps no
// business state of its own.
type Router struct {
	handlers map[MessageType]HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: make(map[MessageType]HandlerFunc)}
}

// Handle registers h for t, replacing any previous handler.
func (r *Router) Handle(t MessageType, h HandlerFunc) {
	r.handlers[t] = h
}

// Dispatch decodes raw and runs the matching handler. Malformed payloads and
// unknown types are logged and dropped; the returned error is informational.
func (r *Router) Dispatch(raw []byte) error {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().Err(err).Int("bytes", len(raw)).Msg("Dropping malformed push message")
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	h, ok := r.handlers[msg.Type]
	if !ok || !msg.Type.Known() {
		log.Debug().Str("type", string(msg.Type)).Msg("Ignoring push message")
		return ErrUnhandled
	}

	log.Debug().
		Str("type", string(msg.Type)).
		Str("config_id", msg.ConfigID.String()).
		Msg("Dispatching push message")
	h(msg)
	return nil
}
