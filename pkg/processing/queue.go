package processing

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/mpapenbr/f1-livetiming-go/pkg/model"
)

// eventQueue is the FIFO between the decoder and its consumers.
// It may be drained from a different goroutine than the one processing.
type eventQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newEventQueue() *eventQueue {
	return &eventQueue{q: queue.New()}
}

func (e *eventQueue) push(events ...model.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range events {
		e.q.Add(ev)
	}
}

func (e *eventQueue) poll() (model.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.q.Length() == 0 {
		return model.Event{}, false
	}
	//nolint:forcetypeassert // only events are added
	return e.q.Remove().(model.Event), true
}

func (e *eventQueue) length() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.q.Length()
}
