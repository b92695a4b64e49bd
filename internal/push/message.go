package push

import (
	"time"

	"config-watch/internal/store"
)

type MessageType string

const (
	TypeConnected           MessageType = "connected"
	TypeFetchStarted        MessageType = "fetch_started"
	TypeFetchCompleted      MessageType = "fetch_completed"
	TypeFetchError          MessageType = "fetch_error"
	TypeTestStarted         MessageType = "test_started"
	TypeTestProgress        MessageType = "test_progress"
	TypeTestCompleted       MessageType = "test_completed"
	TypeTestError           MessageType = "test_error"
	TypeSingleTestProgress  MessageType = "single_test_progress"
	TypeSingleTestCompleted MessageType = "single_test_completed"
)

var knownTypes = map[MessageType]struct{}{
	TypeConnected:           {},
	TypeFetchStarted:        {},
	TypeFetchCompleted:      {},
	TypeFetchError:          {},
	TypeTestStarted:         {},
	TypeTestProgress:        {},
	TypeTestCompleted:       {},
	TypeTestError:           {},
	TypeSingleTestProgress:  {},
	TypeSingleTestCompleted: {},
}

func (t MessageType) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

// Result is the outcome of one config test.
type Result struct {
	Status       store.Status `json:"status"`
	Ping         *float64     `json:"ping"`
	ResponseTime *float64     `json:"response_time,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

// Message is the push envelope. Fields beyond Type depend on the type.
type Message struct {
	Type         MessageType  `json:"type"`
	Source       string       `json:"source,omitempty"`
	ConfigsCount int          `json:"configs_count,omitempty"`
	Error        string       `json:"error,omitempty"`
	ConfigID     store.ID     `json:"config_id,omitempty"`
	Message      string       `json:"message,omitempty"`
	Stats        *store.Stats `json:"stats,omitempty"`
	Result       *Result      `json:"result,omitempty"`
	Timestamp    string       `json:"timestamp,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Time parses Timestamp; zero when absent or unparseable.
// Offset-less timestamps are read as local time.
func (m Message) Time() time.Time {
	if m.Timestamp == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, m.Timestamp, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
