package console

import (
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"config-watch/internal/engine"
	"config-watch/internal/store"
)

type decoded struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func decodeAll(t *testing.T, msgs [][]byte) []decoded {
	t.Helper()
	out := make([]decoded, 0, len(msgs))
	for _, msg := range msgs {
		var d decoded
		require.NoError(t, json.Unmarshal(msg, &d))
		out = append(out, d)
	}
	return out
}

func TestBurstOfRendersKeepsLatestFrame(t *testing.T) {
	h := NewHub()
	for i := 1; i <= 70; i++ {
		h.Render(engine.Frame{Filter: engine.FilterAll, Total: i})
	}

	got := decodeAll(t, h.drain())
	require.Len(t, got, 1)
	assert.Equal(t, "frame", got[0].Type)

	var f engine.Frame
	require.NoError(t, json.Unmarshal(got[0].Data, &f))
	assert.Equal(t, 70, f.Total)

	assert.Empty(t, h.drain())
}

func TestDrainOrdersNoticesBeforeState(t *testing.T) {
	h := NewHub()
	h.Render(engine.Frame{Total: 1})
	h.Notify(engine.Notice{Level: engine.LevelInfo, Message: "first"})
	h.Focus(engine.FocusState{ConfigID: "5", Active: true, Progress: 25})
	h.Notify(engine.Notice{Level: engine.LevelSuccess, Message: "second"})
	h.Focus(engine.FocusState{ConfigID: "5", Active: true, Progress: 50})

	got := decodeAll(t, h.drain())
	require.Len(t, got, 4)
	assert.Equal(t, []string{"notice", "notice", "frame", "focus"},
		[]string{got[0].Type, got[1].Type, got[2].Type, got[3].Type})

	var fs engine.FocusState
	require.NoError(t, json.Unmarshal(got[3].Data, &fs))
	assert.Equal(t, 50, fs.Progress)
}

func TestNoticeBacklogDropsOldest(t *testing.T) {
	h := NewHub()
	for i := 0; i < pendingNotices+6; i++ {
		h.Notify(engine.Notice{Level: engine.LevelInfo, Message: fmt.Sprintf("n%d", i)})
	}

	got := decodeAll(t, h.drain())
	require.Len(t, got, pendingNotices)

	var first, last engine.Notice
	require.NoError(t, json.Unmarshal(got[0].Data, &first))
	require.NoError(t, json.Unmarshal(got[len(got)-1].Data, &last))
	assert.Equal(t, "n6", first.Message)
	assert.Equal(t, fmt.Sprintf("n%d", pendingNotices+5), last.Message)
}

func TestFrameWithPaddedIDsEncodes(t *testing.T) {
	h := NewHub()
	h.Render(engine.Frame{Records: []store.ConfigRecord{{ID: "007"}, {ID: "+5"}}})
	h.Focus(engine.FocusState{ConfigID: "007", Active: true})

	got := decodeAll(t, h.drain())
	require.Len(t, got, 2)

	var f engine.Frame
	require.NoError(t, json.Unmarshal(got[0].Data, &f))
	require.Len(t, f.Records, 2)
	assert.Equal(t, store.ID("007"), f.Records[0].ID)
	assert.Equal(t, store.ID("+5"), f.Records[1].ID)
}

func TestSignalNeverBlocks(t *testing.T) {
	h := NewHub()
	assert.NotPanics(t, func() {
		for i := 0; i < 1000; i++ {
			h.Render(engine.Frame{})
			h.Focus(engine.FocusState{})
		}
	})
	assert.Len(t, h.wake, 1)
}
