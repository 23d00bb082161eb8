package scheduler

import (
	"fmt"
	"sort"

	"github.com/emersion/go-ical"

	"github.com/schedora/schedora/scheduler/invite"
	"github.com/schedora/schedora/scheduler/storage"
)

// AssembleSeriesNotice renders an aggregate into one scheduling payload:
// the series master first, still-active exceptions as sibling components,
// and cancelled exceptions folded into the master's recurrence definition
// as exclude-instants.  The folding happens on a clone, exactly once per
// call; the stored aggregate is never mutated.
func (e *Engine) AssembleSeriesNotice(agg *storage.CalendarAggregate, redact bool) (*ical.Calendar, error) {
	if agg == nil || agg.Master == nil {
		return nil, fmt.Errorf("%w: aggregate has no series master", ErrInvalidRequest)
	}

	master := agg.Master.Clone()

	keys := make([]string, 0, len(agg.Exceptions))
	for key := range agg.Exceptions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	components := []*invite.Invite{master}
	for _, key := range keys {
		exc := agg.Exceptions[key]
		if exc.Status == invite.StatusCancelled {
			if master.Recurrence != nil {
				// Exclude the instant the rule generates, not the
				// start a reschedule may have moved it to.
				at := exc.OccurrenceInstant()
				if exc.RecurrenceID != nil {
					at = *exc.RecurrenceID
				}
				master.Recurrence.AddExDate(at)
			}
			continue
		}
		components = append(components, exc)
	}

	return invite.Assemble(master.Method, redact, components...), nil
}
