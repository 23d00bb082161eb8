// Package storage defines the mailbox storage collaborator interface the
// scheduling engine commits calendar mutations through.  Item persistence,
// folder placement and locking primitives live behind this interface; the
// engine only sees aggregates and revisions.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/schedora/schedora/scheduler/invite"
)

var (
	// ErrNotFound is returned when no aggregate exists for a uid.
	ErrNotFound = errors.New("calendar aggregate not found")
	// ErrUnavailable is returned when the backend cannot serve the request.
	// The engine never retries on its own.
	ErrUnavailable = errors.New("storage unavailable")
)

// ItemRef identifies a stored mailbox item.
type ItemRef struct {
	Mailbox string
	ItemID  string
}

// ReplyRecord is one entry in an aggregate's reply log: the latest
// participation answer recorded for an attendee on one occurrence.
type ReplyRecord struct {
	Attendee     invite.Attendee
	Sequence     int
	DtStamp      time.Time
	RecurrenceID *time.Time
	SentBy       string
}

// CalendarAggregate is every invite revision sharing a uid: at most one
// series master plus exception instances keyed by their canonical
// recurrence-id string.
type CalendarAggregate struct {
	ID      string
	UID     string
	Mailbox string
	Folder  string

	Master     *invite.Invite
	Exceptions map[string]*invite.Invite

	Private bool
	InTrash bool

	Replies []ReplyRecord
}

// Invites returns the master (if any) followed by all exceptions.
func (agg *CalendarAggregate) Invites() []*invite.Invite {
	var out []*invite.Invite
	if agg.Master != nil {
		out = append(out, agg.Master)
	}
	for _, exc := range agg.Exceptions {
		out = append(out, exc)
	}
	return out
}

// InviteFor returns the stored revision for the given occurrence: the
// exception matching the recurrence id, or the master when rid is nil.
func (agg *CalendarAggregate) InviteFor(rid *time.Time) *invite.Invite {
	if rid == nil {
		return agg.Master
	}
	return agg.Exceptions[invite.FormatRecurrenceID(*rid)]
}

// PersistOptions qualifies a persist.
type PersistOptions struct {
	// PreserveExisting keeps sibling revisions (exceptions) intact; used
	// when persisting one exception of a series.
	PreserveExisting bool
	// Untrash moves the aggregate out of the trashed state.
	Untrash bool
	// ContentRef points at the rendered message content backing this
	// revision, when one exists.
	ContentRef *ItemRef
}

// PersistResult reports where a persisted revision landed.
type PersistResult struct {
	AggregateID string
	InviteID    string
	Sequence    int
	Revision    int
}

// Storage is the mailbox persistence collaborator.  Implementations must
// return the package sentinel errors.
type Storage interface {
	// GetAggregate fetches the calendar aggregate for a uid.
	GetAggregate(ctx context.Context, mailbox, uid string) (*CalendarAggregate, error)
	// PersistInvite commits one invite revision into a folder, creating the
	// aggregate when absent.  Persisting an exception may relocate the
	// backing storage of sibling revisions; callers re-fetch between
	// dependent persists.
	PersistInvite(ctx context.Context, mailbox string, inv *invite.Invite, folder string, opts PersistOptions) (PersistResult, error)
	// MoveToFolder relocates a stored item.
	MoveToFolder(ctx context.Context, ref ItemRef, folder string) error
	// RecordReply updates the aggregate's reply log for one attendee and
	// occurrence.
	RecordReply(ctx context.Context, mailbox, uid string, rec ReplyRecord) error
}
