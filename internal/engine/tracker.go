package engine

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"config-watch/internal/store"
)

const (
	progressStep    = 25
	progressCeiling = 90
	progressDone    = 100
)

// tracker narrates the single focused test. Events for other ids are
// dropped; concurrent focus sessions are not multiplexed.
type tracker struct {
	state FocusState
}

func (t *tracker) focused(id store.ID) bool {
	return t.state.Active && t.state.ConfigID == id
}

func (t *tracker) start(id store.ID, rec *store.ConfigRecord, now time.Time) {
	t.state = FocusState{
		ConfigID: id,
		Active:   true,
		Status:   "connecting",
		Lines:    []FocusLine{{At: now, Level: LevelInfo, Text: "starting test"}},
	}
	if rec != nil {
		t.state.Name = rec.Name
		t.state.Address = net.JoinHostPort(rec.Server, strconv.Itoa(rec.Port))
	}
}

// progress advances toward, but never reaches, completion.
func (t *tracker) progress(id store.ID, message string, now time.Time) bool {
	if !t.focused(id) {
		return false
	}
	t.state.Status = message
	if next := min(t.state.Progress+progressStep, progressCeiling); next > t.state.Progress {
		t.state.Progress = next
	}
	t.state.Lines = append(t.state.Lines, FocusLine{At: now, Level: LevelInfo, Text: message})
	return true
}

func (t *tracker) complete(id store.ID, status store.Status, now time.Time) bool {
	if !t.focused(id) {
		return false
	}
	level := LevelError
	if status == store.StatusActive {
		level = LevelSuccess
	}
	t.state.Status = fmt.Sprintf("test finished - %s", status)
	t.state.Progress = progressDone
	t.state.Lines = append(t.state.Lines, FocusLine{At: now, Level: level, Text: fmt.Sprintf("result: %s", status)})
	return true
}

func (t *tracker) fail(id store.ID, err error, now time.Time) bool {
	if !t.focused(id) {
		return false
	}
	t.state.Status = "test request failed"
	t.state.Lines = append(t.state.Lines, FocusLine{At: now, Level: LevelError, Text: err.Error()})
	return true
}

func (t *tracker) close() {
	t.state = FocusState{}
}

func (t *tracker) snapshot() FocusState {
	return t.state.clone()
}
