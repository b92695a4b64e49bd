package engine

import (
	"time"

	"config-watch/internal/store"
)

// View receives everything the operator should see. Calls are made from the
// engine loop and must not block.
type View interface {
	Render(Frame)
	Notify(Notice)
	Focus(FocusState)
}

// Frame is one full redraw.
type Frame struct {
	Filter         Filter               `json:"filter"`
	Records        []store.ConfigRecord `json:"records"`
	Stats          store.Stats          `json:"stats"`
	Total          int                  `json:"total"`
	Loading        bool                 `json:"loading"`
	LoadingMessage string               `json:"loading_message,omitempty"`
	Failed         bool                 `json:"failed"`
	Connected      bool                 `json:"connected"`
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a transient operator notification.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type FocusLine struct {
	At    time.Time `json:"at"`
	Level Level     `json:"level"`
	Text  string    `json:"text"`
}

// FocusState is the progress narration for the focused config.
type FocusState struct {
	ConfigID store.ID    `json:"config_id"`
	Active   bool        `json:"active"`
	Name     string      `json:"name,omitempty"`
	Address  string      `json:"address,omitempty"`
	Progress int         `json:"progress"`
	Status   string      `json:"status"`
	Lines    []FocusLine `json:"lines"`
}

func (f FocusState) clone() FocusState {
	c := f
	c.Lines = append([]FocusLine(nil), f.Lines...)
	return c
}

type nopView struct{}

func (nopView) Render(Frame)     {}
func (nopView) Notify(Notice)    {}
func (nopView) Focus(FocusState) {}
