package events

import (
	"context"
	"sync"

	"github.com/flokiorg/lngateway/logger"
)

// Queue is a subscriber that buffers events so a caller can wait for them,
// optionally filtered by event name.
type Queue struct {
	events chan *Event
	filter map[string]struct{}
	mu     sync.RWMutex
	closed bool
}

func NewQueue(bufferSize int, eventNames ...string) *Queue {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	var filter map[string]struct{}
	if len(eventNames) > 0 {
		filter = make(map[string]struct{}, len(eventNames))
		for _, name := range eventNames {
			filter[name] = struct{}{}
		}
	}
	return &Queue{
		events: make(chan *Event, bufferSize),
		filter: filter,
	}
}

func (q *Queue) ConsumeEvent(ctx context.Context, event *Event, globalProperties map[string]interface{}) {
	if q.filter != nil {
		if _, ok := q.filter[event.Event]; !ok {
			return
		}
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return
	}

	select {
	case q.events <- event:
	default:
		logger.Logger.Warn().Str("event", event.Event).Msg("Event queue full, dropping event")
	}
}

// NextEvent blocks until the next event is available or ctx is done.
func (q *Queue) NextEvent(ctx context.Context) (*Event, error) {
	select {
	case event, ok := <-q.events:
		if !ok {
			return nil, context.Canceled
		}
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending drains the buffered events without blocking.
func (q *Queue) Pending() []*Event {
	events := []*Event{}
	for {
		select {
		case event, ok := <-q.events:
			if !ok {
				return events
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.events)
	}
}
