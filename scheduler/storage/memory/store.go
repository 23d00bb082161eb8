// Package memory is an in-memory storage backend for testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schedora/schedora/scheduler/invite"
	"github.com/schedora/schedora/scheduler/storage"
)

// Store implements storage.Storage using in-memory maps.
type Store struct {
	mu         sync.RWMutex
	aggregates map[string]*storage.CalendarAggregate // key: mailbox/uid
	revisions  map[string]int                        // key: mailbox/uid
	moves      []Move
}

// Move records a MoveToFolder call for test assertions.
type Move struct {
	Ref    storage.ItemRef
	Folder string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		aggregates: make(map[string]*storage.CalendarAggregate),
		revisions:  make(map[string]int),
	}
}

func key(mailbox, uid string) string {
	return fmt.Sprintf("%s/%s", mailbox, uid)
}

// GetAggregate returns a deep-ish copy so callers observe the re-fetch
// semantics of a real backend.
func (s *Store) GetAggregate(_ context.Context, mailbox, uid string) (*storage.CalendarAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg, ok := s.aggregates[key(mailbox, uid)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, uid)
	}
	return copyAggregate(agg), nil
}

func (s *Store) PersistInvite(_ context.Context, mailbox string, inv *invite.Invite, folder string, opts storage.PersistOptions) (storage.PersistResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(mailbox, inv.UID)
	agg, ok := s.aggregates[k]
	if !ok {
		agg = &storage.CalendarAggregate{
			ID:         uuid.NewString(),
			UID:        inv.UID,
			Mailbox:    mailbox,
			Folder:     folder,
			Exceptions: make(map[string]*invite.Invite),
		}
		s.aggregates[k] = agg
	}
	if folder != "" {
		agg.Folder = folder
	}
	if opts.Untrash {
		agg.InTrash = false
	}
	agg.Private = inv.Class != invite.ClassPublic

	stored := inv.Clone()
	if stored.RecurrenceID != nil {
		agg.Exceptions[invite.FormatRecurrenceID(*stored.RecurrenceID)] = stored
	} else {
		agg.Master = stored
		if !opts.PreserveExisting {
			agg.Exceptions = make(map[string]*invite.Invite)
		}
	}

	s.revisions[k]++
	return storage.PersistResult{
		AggregateID: agg.ID,
		InviteID:    uuid.NewString(),
		Sequence:    inv.Sequence,
		Revision:    s.revisions[k],
	}, nil
}

func (s *Store) MoveToFolder(_ context.Context, ref storage.ItemRef, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = append(s.moves, Move{Ref: ref, Folder: folder})
	return nil
}

func (s *Store) RecordReply(_ context.Context, mailbox, uid string, rec storage.ReplyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.aggregates[key(mailbox, uid)]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, uid)
	}
	for i, existing := range agg.Replies {
		if existing.Attendee.SameAddress(rec.Attendee) && sameRecurrenceID(existing.RecurrenceID, rec.RecurrenceID) {
			agg.Replies[i] = rec
			return nil
		}
	}
	agg.Replies = append(agg.Replies, rec)
	return nil
}

// SetTrashed marks an aggregate as trashed; test hook.
func (s *Store) SetTrashed(mailbox, uid string, trashed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agg, ok := s.aggregates[key(mailbox, uid)]; ok {
		agg.InTrash = trashed
	}
}

// Moves returns the recorded MoveToFolder calls.
func (s *Store) Moves() []Move {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Move(nil), s.moves...)
}

func copyAggregate(agg *storage.CalendarAggregate) *storage.CalendarAggregate {
	dup := *agg
	if agg.Master != nil {
		dup.Master = agg.Master.Clone()
	}
	dup.Exceptions = make(map[string]*invite.Invite, len(agg.Exceptions))
	for k, exc := range agg.Exceptions {
		dup.Exceptions[k] = exc.Clone()
	}
	dup.Replies = append([]storage.ReplyRecord(nil), agg.Replies...)
	return &dup
}

func sameRecurrenceID(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
