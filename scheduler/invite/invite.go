// Package invite models a single versioned revision of a calendar component
// and the operations that derive new revisions from it.  An Invite is
// immutable once persisted; every modification produces a new revision for
// the same (uid, recurrence-id).
package invite

import (
	"errors"
	"time"

	"github.com/schedora/schedora/internal/address"
	"github.com/schedora/schedora/scheduler/recurrence"
)

// ErrInvalidRequest is returned when caller-supplied fields are malformed,
// missing, or contradictory.
var ErrInvalidRequest = errors.New("invalid request")

// Organizer is the scheduling-authoritative party of an invite.
type Organizer struct {
	Address     string
	DisplayName string
	// SentBy carries the acting-on-behalf-of address when the message was
	// produced by a delegate rather than the organizer account itself.
	SentBy string
}

// Attendee is one invited participant.  Identity is the case-insensitive
// address; display fields never participate in equality.
type Attendee struct {
	Address     string
	DisplayName string
	Role        Role
	PartStat    PartStat
	// RSVP is a tri-state: nil means the organizer left it unspecified,
	// which replies treat the same as requested.
	RSVP *bool
}

// SameAddress reports whether two attendees share address identity.
func (a Attendee) SameAddress(other Attendee) bool {
	return address.Equal(a.Address, other.Address)
}

// RSVPRequested reports whether the organizer asked for (or did not
// suppress) a reply from this attendee.
func (a Attendee) RSVPRequested() bool {
	return a.RSVP == nil || *a.RSVP
}

// Invite is one revision of a calendar component.
type Invite struct {
	UID      string
	Method   Method
	Kind     Kind
	Sequence int
	DtStamp  time.Time

	// RecurrenceID is set exactly on exception instances and is always
	// absent on the series master.
	RecurrenceID *time.Time
	// Recurrence is the bounded recurrence definition; legal only when
	// RecurrenceID is absent.
	Recurrence *recurrence.Definition

	Organizer *Organizer
	Attendees []Attendee

	Summary     string
	Description string
	Location    string
	Comments    []string
	Categories  []string
	Priority    string

	Start  time.Time
	End    time.Time
	AllDay bool

	Status       Status
	Class        Class
	Transparency Transparency
	FreeBusy     FreeBusy

	// Task fields.
	PercentComplete string
	Completed       time.Time

	Draft     bool
	NeverSent bool
}

// IsException reports whether this invite overrides one occurrence of a
// series.
func (inv *Invite) IsException() bool {
	return inv.RecurrenceID != nil
}

// IsRecurring reports whether this invite is a series master.
func (inv *Invite) IsRecurring() bool {
	return inv.Recurrence != nil
}

// IsOrganizedBy reports whether the given matcher covers the organizer
// address, i.e. the account owns this invite's scheduling authority.
func (inv *Invite) IsOrganizedBy(m *address.Matcher) bool {
	if inv.Organizer == nil {
		// A floating invite with no organizer behaves as self-organized.
		return true
	}
	return m.Matches(inv.Organizer.Address)
}

// IsPublic reports whether the invite has no access restriction.
func (inv *Invite) IsPublic() bool {
	return inv.Class == ClassPublic
}

// EffectiveDuration returns the temporal extent of the invite.
func (inv *Invite) EffectiveDuration() time.Duration {
	if inv.End.IsZero() || inv.Start.IsZero() {
		return 0
	}
	return inv.End.Sub(inv.Start)
}

// MatchingAttendee finds the attendee whose address the matcher covers.
func (inv *Invite) MatchingAttendee(m *address.Matcher) *Attendee {
	for i := range inv.Attendees {
		if m.Matches(inv.Attendees[i].Address) {
			return &inv.Attendees[i]
		}
	}
	return nil
}

// AttendeeByAddress finds the attendee with the given address identity.
func (inv *Invite) AttendeeByAddress(addr string) *Attendee {
	for i := range inv.Attendees {
		if address.Equal(inv.Attendees[i].Address, addr) {
			return &inv.Attendees[i]
		}
	}
	return nil
}

// AddAttendee appends an attendee unless one with the same address identity
// is already present.  Order is preserved.
func (inv *Invite) AddAttendee(at Attendee) {
	if inv.AttendeeByAddress(at.Address) != nil {
		return
	}
	inv.Attendees = append(inv.Attendees, at)
}

// NewerOrEqual reports whether this invite's (sequence, dtstamp) pair is
// at least as recent as the other revision of the same occurrence.  This is
// the conflict-precedence rule: a lower sequence always loses; at equal
// sequence the dtstamp decides.
func (inv *Invite) NewerOrEqual(other *Invite) bool {
	if inv.Sequence != other.Sequence {
		return inv.Sequence > other.Sequence
	}
	return !inv.DtStamp.Before(other.DtStamp)
}

// Clone returns a deep copy the caller may mutate into a new revision.
func (inv *Invite) Clone() *Invite {
	dup := *inv
	if inv.RecurrenceID != nil {
		rid := *inv.RecurrenceID
		dup.RecurrenceID = &rid
	}
	if inv.Recurrence != nil {
		rec := inv.Recurrence.Clone()
		dup.Recurrence = rec
	}
	if inv.Organizer != nil {
		org := *inv.Organizer
		dup.Organizer = &org
	}
	dup.Attendees = make([]Attendee, len(inv.Attendees))
	copy(dup.Attendees, inv.Attendees)
	for i, at := range inv.Attendees {
		if at.RSVP != nil {
			rsvp := *at.RSVP
			dup.Attendees[i].RSVP = &rsvp
		}
	}
	dup.Comments = append([]string(nil), inv.Comments...)
	dup.Categories = append([]string(nil), inv.Categories...)
	return &dup
}

// MakeInstance derives an exception invite for a single occurrence of a
// recurring series: the series content pinned to the occurrence instant,
// with the recurrence rule dropped and the recurrence id set.
func (inv *Invite) MakeInstance(occurrence time.Time) *Invite {
	inst := inv.Clone()
	dur := inv.EffectiveDuration()
	rid := occurrence
	inst.RecurrenceID = &rid
	inst.Recurrence = nil
	inst.Start = occurrence
	if dur > 0 {
		inst.End = occurrence.Add(dur)
	} else {
		inst.End = time.Time{}
	}
	return inst
}

// OccurrenceInstant returns the instant identifying this invite on the
// timeline: the recurrence id for exceptions, else the start.
func (inv *Invite) OccurrenceInstant() time.Time {
	if inv.RecurrenceID != nil {
		rid := *inv.RecurrenceID
		if !inv.Start.IsZero() && inv.Start.After(rid) {
			return inv.Start
		}
		return rid
	}
	return inv.Start
}

// FormatRecurrenceID renders a recurrence instant in the canonical UTC form
// used as the exception-map key.
func FormatRecurrenceID(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}
