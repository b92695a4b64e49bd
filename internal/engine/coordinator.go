package engine

import (
	"github.com/google/uuid"
)

type OpState int

const (
	Idle OpState = iota
	Requesting
	AwaitingPush
)

func (s OpState) String() string {
	switch s {
	case Requesting:
		return "requesting"
	case AwaitingPush:
		return "awaiting_push"
	default:
		return "idle"
	}
}

// operation is one Idle → Requesting → AwaitingPush → Idle machine.
// seq tells a late acknowledgement or timer from the current cycle.
type operation struct {
	name      string
	state     OpState
	seq       uint64
	cycle     string
	stopTimer func() bool
}

func (o *operation) begin() (uint64, error) {
	if o.state != Idle {
		return 0, ErrBusy
	}
	o.seq++
	o.state = Requesting
	o.cycle = uuid.NewString()
	return o.seq, nil
}

// acknowledge applies the synchronous reply of cycle seq. It reports false
// for replies that arrive after the cycle already ended.
func (o *operation) acknowledge(seq uint64, err error) bool {
	if seq != o.seq || o.state != Requesting {
		return false
	}
	if err != nil {
		o.reset()
		return true
	}
	o.state = AwaitingPush
	return true
}

// finish ends the cycle on a terminal push. It reports whether a cycle was
// in flight.
func (o *operation) finish() bool {
	if o.state == Idle {
		return false
	}
	o.reset()
	return true
}

func (o *operation) expire(seq uint64) bool {
	if seq != o.seq || o.state == Idle {
		return false
	}
	o.reset()
	return true
}

func (o *operation) reset() {
	o.state = Idle
	if o.stopTimer != nil {
		o.stopTimer()
		o.stopTimer = nil
	}
}

// coordinator owns the fetch and test-all machines; they never block each other.
type coordinator struct {
	fetch   operation
	testAll operation
}

func newCoordinator() *coordinator {
	return &coordinator{
		fetch:   operation{name: "fetch"},
		testAll: operation{name: "test_all"},
	}
}
