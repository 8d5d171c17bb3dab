package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/circa10a/countdown/api"
	"github.com/circa10a/countdown/internal/timer"
)

// ErrInvalidCapacity is returned when an event log is created without room for events.
var ErrInvalidCapacity = errors.New("capacity must be greater than zero")

// EventLog keeps the most recent expiries in a ring buffer so polling clients
// can fire their alert once per expiry. It is safe for concurrent use.
type EventLog struct {
	mu    sync.RWMutex
	buf   []api.Expiry
	cap   int
	count int
	head  int // next write position
}

// NewEventLog creates an EventLog holding at most capacity expiries.
func NewEventLog(capacity int) (*EventLog, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &EventLog{
		buf: make([]api.Expiry, capacity),
		cap: capacity,
	}, nil
}

// Record appends one expiry per event, evicting the oldest when full.
func (l *EventLog) Record(at time.Time, events []timer.ExpiredEvent) []api.Expiry {
	l.mu.Lock()
	defer l.mu.Unlock()

	recorded := make([]api.Expiry, 0, len(events))
	for _, ev := range events {
		e := api.Expiry{
			ID:        uuid.New(),
			Name:      ev.Name,
			Loop:      ev.Loop,
			ExpiredAt: at,
		}
		l.buf[l.head] = e
		l.head = (l.head + 1) % l.cap
		if l.count < l.cap {
			l.count++
		}
		recorded = append(recorded, e)
	}

	return recorded
}

// List returns up to limit expiries, newest first. A limit <= 0 returns all.
func (l *EventLog) List(limit int) []api.Expiry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > l.count {
		limit = l.count
	}

	result := make([]api.Expiry, 0, limit)
	for i := 0; i < limit; i++ {
		pos := (l.head - 1 - i + l.cap) % l.cap
		result = append(result, l.buf[pos])
	}

	return result
}

// Count returns the number of stored expiries.
func (l *EventLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}
