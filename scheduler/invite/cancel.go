package invite

import (
	"fmt"
	"time"
)

// SummaryWithheld is the privacy-redacted placeholder used in place of the
// real subject when the acting account may not see private content.
const SummaryWithheld = "Appointment details withheld"

// CancelRequest describes how to derive a CANCEL invite from a source
// invite.
type CancelRequest struct {
	// ActingAddress is the account executing the cancellation.
	ActingAddress string
	// ActingIsOrganizer is true when the acting account owns the source
	// invite's scheduling authority.  Only the organizer may rev the
	// sequence.
	ActingIsOrganizer bool
	// OnBehalfOf is true when the request was made by a delegate; the
	// organizer line is then wrapped with the delegate's address.
	OnBehalfOf bool
	// AllowPrivateAccess grants visibility into private content
	// (organizer-equivalent or explicit private-access rights).
	AllowPrivateAccess bool
	// Recipients overrides the cancellation's recipient set; nil keeps the
	// source invite's attendees.
	Recipients []Attendee
	// PinnedRecurrenceID cancels a single occurrence of a series by
	// reference.  Ignored when the source is already an exception.
	PinnedRecurrenceID *time.Time
	// Comment is free text included only when content is not redacted.
	Comment string
	// IncrementSequence revs the sequence by exactly one; honored only when
	// the acting account is the organizer.
	IncrementSequence bool
	// Now stamps the cancellation; zero means the current instant.
	Now time.Time
}

// BuildCancellation derives a CANCEL-method invite from a source invite for
// some or all of its attendees.
func BuildCancellation(source *Invite, req CancelRequest) (*Invite, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: nil source invite", ErrInvalidRequest)
	}
	if source.UID == "" {
		return nil, fmt.Errorf("%w: source invite has no uid", ErrInvalidRequest)
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	cancel := &Invite{
		UID:     source.UID,
		Method:  MethodCancel,
		Kind:    source.Kind,
		Status:  StatusCancelled,
		Class:   source.Class,
		AllDay:  source.AllDay,
		DtStamp: now,
	}

	if source.Organizer != nil {
		org := *source.Organizer
		if req.OnBehalfOf && req.ActingAddress != "" {
			org.SentBy = req.ActingAddress
		}
		cancel.Organizer = &org
	}

	recipients := req.Recipients
	if recipients == nil {
		recipients = source.Attendees
	}
	for _, at := range recipients {
		cancel.AddAttendee(at)
	}

	showAll := source.IsPublic() || req.AllowPrivateAccess
	if showAll {
		cancel.Summary = source.Summary
		if req.Comment != "" {
			cancel.Comments = append(cancel.Comments, req.Comment)
		}
	} else {
		cancel.Summary = SummaryWithheld
	}

	// Pin the occurrence: an exception keeps its own recurrence id, a
	// series cancel may target one occurrence by reference.
	var pinned *time.Time
	if source.RecurrenceID != nil {
		rid := *source.RecurrenceID
		cancel.RecurrenceID = &rid
	} else if req.PinnedRecurrenceID != nil {
		rid := *req.PinnedRecurrenceID
		cancel.RecurrenceID = &rid
		pinned = &rid
	}

	// DTSTART/DTEND are optional on a cancel per the protocol, but legacy
	// clients require them.
	start := source.Start
	if pinned != nil {
		start = *pinned
	}
	if !start.IsZero() {
		cancel.Start = start
		if dur := source.EffectiveDuration(); dur > 0 {
			cancel.End = start.Add(dur)
		}
	}
	cancel.Location = source.Location

	seq := source.Sequence
	if req.IncrementSequence && req.ActingIsOrganizer {
		// Attendee-initiated cancellations never rev the sequence.
		seq++
	}
	cancel.Sequence = seq

	return cancel, nil
}
