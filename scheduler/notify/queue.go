// Package notify batches, spools and flushes outbound attendee
// notifications with at-most-once delivery semantics.  A queue is scoped to
// one scheduling request: mutations append entries, and the queue is
// flushed exactly once after every storage mutation has committed.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/schedora/schedora/scheduler/storage"
	"github.com/schedora/schedora/scheduler/transport"
)

// Spool is a detached snapshot of a message payload.  Snapshotting before
// enqueue means a later storage mutation that relocates the calendar
// object's backing content cannot invalidate an in-flight message.
type Spool struct {
	ID string

	mu       sync.Mutex
	payload  []byte
	released bool
}

// NewSpool snapshots a payload into a fresh spool handle.
func NewSpool(payload []byte) *Spool {
	return &Spool{
		ID:      uuid.NewString(),
		payload: append([]byte(nil), payload...),
	}
}

// Payload returns the snapshotted bytes; nil after release.
func (s *Spool) Payload() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// Release frees the snapshot.  Safe to call more than once.
func (s *Spool) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = nil
	s.released = true
}

// Released reports whether the spool has been freed.
func (s *Spool) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Entry is one queued attendee notification.
type Entry struct {
	Recipients []string
	Message    *transport.Message
	// InviteRef points at the originating invite.
	InviteRef storage.ItemRef
	// Spool, when set, owns the scheduling payload; the entry sends the
	// spooled snapshot and releases it when done.
	Spool *Spool
}

func (e *Entry) outbound() *transport.Message {
	if e.Spool == nil {
		return e.Message
	}
	msg := *e.Message
	msg.ICalendar = e.Spool.Payload()
	return &msg
}

// Queue is a request-scoped notification queue.
type Queue struct {
	logger  *slog.Logger
	entries []*Entry
}

// NewQueue creates a queue logging through the given logger.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{logger: logger}
}

// Add appends an entry.
func (q *Queue) Add(e *Entry) {
	q.entries = append(q.entries, e)
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Flush sends every entry independently.  A transport failure on one entry
// is logged and never aborts the remaining entries; flush errors never
// surface to the scheduling caller.  Spool handles are released after each
// attempt.
func (q *Queue) Flush(ctx context.Context, sender transport.Transport) {
	entries := q.entries
	q.entries = nil
	for _, e := range entries {
		err := sender.Send(ctx, e.outbound(), e.Recipients)
		if e.Spool != nil {
			e.Spool.Release()
		}
		if err != nil {
			q.logger.Warn("ignoring error while sending calendar notification",
				"error", err,
				"recipients", e.Recipients,
				"invite_item", e.InviteRef.ItemID)
		}
	}
}

// Discard drops all entries without sending, releasing any spools.
func (q *Queue) Discard() {
	for _, e := range q.entries {
		if e.Spool != nil {
			e.Spool.Release()
		}
	}
	q.entries = nil
}
