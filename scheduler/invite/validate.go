package invite

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/schedora/schedora/scheduler/recurrence"
)

// DateTime is a caller-supplied instant that remembers whether the client
// sent a time-of-day component.  Date-only values anchor at midnight in
// their location.
type DateTime struct {
	Time    time.Time
	HasTime bool
}

// Params is the primitive field set a scheduling request supplies to build
// one invite revision.  Optional fields use mo.Option; absent values take
// the documented defaults.
type Params struct {
	UID     mo.Option[string]
	Method  mo.Option[Method]
	DtStamp mo.Option[time.Time]

	Sequence int

	RecurrenceID mo.Option[time.Time]
	Recurrence   *recurrence.Ruleset

	Organizer *Organizer
	Attendees []Attendee

	Summary     string
	Description string
	Location    string
	Comments    []string
	Categories  []string
	Priority    string

	Start    mo.Option[DateTime]
	End      mo.Option[DateTime]
	Duration mo.Option[time.Duration]
	AllDay   bool

	// Enumerated fields arrive as wire strings and are validated against
	// the closed value sets.
	Status       string
	Class        string
	Transparency string
	FreeBusy     string

	PercentComplete string
	Completed       mo.Option[time.Time]

	Draft     bool
	NeverSent bool
}

// Context restricts what a particular request is allowed to build.
type Context struct {
	Kind Kind
	// RecurrenceIDAllowed permits building an exception instance.
	RecurrenceIDAllowed bool
	// RecurrenceAllowed permits a recurrence rule on the invite.
	RecurrenceAllowed bool
	// Horizons bound open-ended recurrence rules.  Zero value uses the
	// defaults.
	Horizons recurrence.Horizons
}

// Build validates the params and produces one invite revision.
func Build(params Params, ctx Context) (*Invite, error) {
	inv := &Invite{
		Kind:        ctx.Kind,
		Sequence:    params.Sequence,
		Summary:     params.Summary,
		Description: params.Description,
		Location:    params.Location,
		Comments:    append([]string(nil), params.Comments...),
		Categories:  append([]string(nil), params.Categories...),
		Priority:    params.Priority,
	}
	if inv.Sequence < 0 {
		return nil, fmt.Errorf("%w: negative sequence", ErrInvalidRequest)
	}

	inv.UID = params.UID.OrElse("")
	if inv.UID == "" {
		inv.UID = uuid.NewString()
	}
	inv.DtStamp = params.DtStamp.OrElse(time.Now().UTC())

	if rid, ok := params.RecurrenceID.Get(); ok {
		if !ctx.RecurrenceIDAllowed {
			return nil, fmt.Errorf("%w: recurrence-id not permitted in this request", ErrInvalidRequest)
		}
		r := rid
		inv.RecurrenceID = &r
	}

	var err error
	if inv.Status, err = ParseStatus(params.Status, ctx.Kind); err != nil {
		return nil, err
	}
	if inv.Class, err = ParseClass(params.Class); err != nil {
		return nil, err
	}

	// All-day normalization, applied independently to start and end: a
	// declared all-day drops stray time components; a date-only value on a
	// non-all-day invite silently infers all-day.  Heuristic carried over
	// from the source system.
	allDay := params.AllDay
	start, hasStart := params.Start.Get()
	if hasStart {
		if allDay && start.HasTime {
			start.Time = truncateToDate(start.Time)
			start.HasTime = false
		} else if !allDay && !start.HasTime {
			allDay = true
		}
	}
	end, hasEnd := params.End.Get()
	if hasEnd {
		if allDay && end.HasTime {
			end.Time = truncateToDate(end.Time)
			end.HasTime = false
		} else if !allDay && !end.HasTime {
			allDay = true
		}
	}
	inv.AllDay = allDay
	if hasStart {
		if allDay {
			start.Time = truncateToDate(start.Time)
		}
		inv.Start = start.Time
	}
	if hasEnd {
		if allDay {
			end.Time = truncateToDate(end.Time)
			if ctx.Kind == KindEvent {
				// All-day event ends are stored exclusive: one day past the
				// client-visible inclusive end.
				end.Time = end.Time.AddDate(0, 0, 1)
			}
		}
		inv.End = end.Time
	} else if dur, ok := params.Duration.Get(); ok && hasStart {
		if dur < 0 {
			return nil, fmt.Errorf("%w: negative duration", ErrInvalidRequest)
		}
		inv.End = inv.Start.Add(dur)
	}
	if !inv.Start.IsZero() && !inv.End.IsZero() && inv.End.Before(inv.Start) {
		return nil, fmt.Errorf("%w: end precedes start", ErrInvalidRequest)
	}

	if ctx.Kind == KindEvent {
		if inv.FreeBusy, err = ParseFreeBusy(params.FreeBusy); err != nil {
			return nil, err
		}
		if inv.FreeBusy != FreeBusyUnset {
			// Intended free-busy takes precedence over transparency.
			if inv.FreeBusy == FreeBusyFree {
				inv.Transparency = TranspTransparent
			} else {
				inv.Transparency = TranspOpaque
			}
		} else {
			if inv.Transparency, err = ParseTransparency(params.Transparency); err != nil {
				return nil, err
			}
			if inv.Transparency == TranspTransparent {
				inv.FreeBusy = FreeBusyFree
			}
		}
	}

	if ctx.Kind == KindTask {
		inv.PercentComplete = params.PercentComplete
		if completed, ok := params.Completed.Get(); ok {
			inv.Completed = completed
		} else if inv.Status == StatusCompleted {
			inv.Completed = inv.DtStamp
		}
	}

	for _, at := range params.Attendees {
		if at.Address == "" {
			return nil, fmt.Errorf("%w: attendee without address", ErrInvalidRequest)
		}
		inv.AddAttendee(at)
	}
	inv.Organizer = params.Organizer

	inv.Method = params.Method.OrElse(MethodPublish)
	if inv.Method == MethodPublish && len(inv.Attendees) > 0 {
		inv.Method = MethodRequest
	}

	if params.Recurrence != nil {
		if !ctx.RecurrenceAllowed {
			return nil, fmt.Errorf("%w: recurrence rule not permitted in this request", ErrInvalidRequest)
		}
		if inv.RecurrenceID != nil {
			return nil, fmt.Errorf("%w: recurrence rule and recurrence-id are mutually exclusive", ErrInvalidRequest)
		}
		if inv.Start.IsZero() {
			// Derive the start from the end when possible.
			if inv.End.IsZero() {
				return nil, fmt.Errorf("%w: recurrence used without a resolvable start", ErrInvalidRequest)
			}
			if dur, ok := params.Duration.Get(); ok && dur > 0 {
				inv.Start = inv.End.Add(-dur)
			} else if inv.AllDay {
				inv.Start = inv.End.AddDate(0, 0, -1)
			} else {
				inv.Start = inv.End.Add(-time.Second)
			}
		}
		hz := ctx.Horizons
		if hz == (recurrence.Horizons{}) {
			hz = recurrence.DefaultHorizons()
		}
		def, err := recurrence.Build(*params.Recurrence, inv.Start, hz)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		inv.Recurrence = def
	}

	// Draft and never-sent flags are meaningless on cancellations.
	if inv.Method != MethodCancel {
		inv.Draft = params.Draft
		inv.NeverSent = params.NeverSent
	}

	return inv, nil
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
