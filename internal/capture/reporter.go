package capture

import (
	"sync"
	"time"

	"github.com/kartoza/videosnap/internal/models"
)

// EventKind identifies a backend notification
type EventKind int

const (
	EventStarted EventKind = iota + 1
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event is a backend notification delivered to the recorder's control loop
type Event struct {
	Kind EventKind
	At   time.Time
	Err  error
}

// Reporter turns backend callbacks into at most one Started and one Finished event.
// Started always precedes Finished; a Finished without Started always carries an error.
type Reporter struct {
	mu       sync.Mutex
	started  bool
	finished bool
	events   chan Event
}

// NewReporter creates a Reporter whose sends never block
func NewReporter() *Reporter {
	return &Reporter{events: make(chan Event, 2)}
}

// Started reports that the output file is being written. Only the first call counts,
// and calls after Finished are dropped.
func (r *Reporter) Started(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.finished {
		return
	}
	r.started = true
	r.events <- Event{Kind: EventStarted, At: at}
}

// Finished reports that the output file is finalized, or that the capture failed
func (r *Reporter) Finished(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return
	}
	r.finished = true
	if !r.started && err == nil {
		err = models.ErrStartFailed
	}
	r.events <- Event{Kind: EventFinished, At: time.Now(), Err: err}
}

// Events returns the notification stream
func (r *Reporter) Events() <-chan Event {
	return r.events
}
