// Package changelog implements an append-only change log with per-consumer
// monotonic cursors. A consumer has pending changes while its cursor is
// behind the log head.
package changelog

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrCursorAhead     = errors.New("changelog: commit position is beyond log head")
	ErrUnknownConsumer = errors.New("changelog: consumer not registered")
)

// Event is an opaque marker that the source changed.
type Event struct {
	Seq    uint64    `json:"seq"`
	Source string    `json:"source"`
	Rows   int       `json:"rows"`
	At     time.Time `json:"at"`
}

// ConsumerStats describes a consumer position.
type ConsumerStats struct {
	Consumer string `json:"consumer"`
	Cursor   uint64 `json:"cursor"`
	Pending  uint64 `json:"pending"`
}

// Stats describes the whole log.
type Stats struct {
	Name      string          `json:"name"`
	Head      uint64          `json:"head"`
	Retained  int             `json:"retained"`
	Consumers []ConsumerStats `json:"consumers"`
}

// Log is safe for concurrent use. Sequence numbers start at 1; a cursor
// at position n means events 1..n have been consumed.
type Log struct {
	name    string
	now     func() time.Time
	mu      sync.RWMutex
	head    uint64
	events  []Event
	cursors map[string]uint64
}

// New creates an empty log.
func New(name string) *Log {
	return &Log{
		name:    name,
		now:     time.Now,
		cursors: make(map[string]uint64),
	}
}

// WithClock overrides the timestamp source for appended events.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

func (l *Log) Name() string { return l.name }

// Append records a change and returns its sequence number.
func (l *Log) Append(source string, rows int) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.head++
	l.events = append(l.events, Event{Seq: l.head, Source: source, Rows: rows, At: l.now()})
	return l.head
}

// Head returns the sequence number of the latest event.
func (l *Log) Head() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head
}

// Register adds a consumer positioned at the start of the log, so any
// event already present counts as pending. Registering twice is a no-op.
func (l *Log) Register(consumer string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cursors[consumer]; !ok {
		l.cursors[consumer] = 0
	}
}

func (l *Log) Cursor(consumer string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.cursors[consumer]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnknownConsumer, l.name, consumer)
	}
	return c, nil
}

// HasPending reports cursor < head. Unknown consumers have nothing pending.
func (l *Log) HasPending(consumer string) bool {
	return l.PendingCount(consumer) > 0
}

func (l *Log) PendingCount(consumer string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.cursors[consumer]
	if !ok || c >= l.head {
		return 0
	}
	return l.head - c
}

// Drain returns the events after the consumer's cursor together with the
// head they end at. The cursor is not moved; call Commit once the events
// have been fully processed.
func (l *Log) Drain(consumer string) ([]Event, uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.cursors[consumer]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s/%s", ErrUnknownConsumer, l.name, consumer)
	}
	if c >= l.head {
		return nil, l.head, nil
	}

	idx := sort.Search(len(l.events), func(i int) bool { return l.events[i].Seq > c })
	out := make([]Event, len(l.events)-idx)
	copy(out, l.events[idx:])
	return out, l.head, nil
}

// Commit advances the consumer's cursor to upTo. Commits never move a
// cursor backwards; a stale commit is ignored.
func (l *Log) Commit(consumer string, upTo uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.cursors[consumer]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownConsumer, l.name, consumer)
	}
	if upTo > l.head {
		return fmt.Errorf("%w: %d > %d", ErrCursorAhead, upTo, l.head)
	}
	if upTo <= c {
		return nil
	}
	l.cursors[consumer] = upTo
	l.compact()
	return nil
}

// compact drops events every consumer has already passed. Caller holds mu.
func (l *Log) compact() {
	if len(l.cursors) == 0 || len(l.events) == 0 {
		return
	}
	low := l.head
	for _, c := range l.cursors {
		if c < low {
			low = c
		}
	}
	idx := sort.Search(len(l.events), func(i int) bool { return l.events[i].Seq > low })
	if idx == 0 {
		return
	}
	l.events = append(l.events[:0:0], l.events[idx:]...)
}

func (l *Log) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Name: l.name, Head: l.head, Retained: len(l.events)}
	for name, c := range l.cursors {
		var pending uint64
		if c < l.head {
			pending = l.head - c
		}
		s.Consumers = append(s.Consumers, ConsumerStats{Consumer: name, Cursor: c, Pending: pending})
	}
	sort.Slice(s.Consumers, func(i, j int) bool { return s.Consumers[i].Consumer < s.Consumers[j].Consumer })
	return s
}
