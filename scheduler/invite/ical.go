package invite

import (
	"strconv"
	"time"

	"github.com/emersion/go-ical"
)

const prodID = "-//Schedora//Scheduling Engine//EN"

// ToComponent renders the invite as a VEVENT or VTODO component.  When
// redact is set, private content (summary, description, location, comments)
// is withheld.
func (inv *Invite) ToComponent(redact bool) *ical.Component {
	comp := ical.NewComponent(inv.Kind.String())
	comp.Props.SetText(ical.PropUID, inv.UID)
	comp.Props.SetDateTime(ical.PropDateTimeStamp, inv.DtStamp.UTC())
	comp.Props.SetText(ical.PropSequence, strconv.Itoa(inv.Sequence))
	comp.Props.SetText(ical.PropStatus, inv.Status.String())
	comp.Props.SetText(ical.PropClass, inv.Class.String())

	if redact {
		comp.Props.SetText(ical.PropSummary, SummaryWithheld)
	} else {
		if inv.Summary != "" {
			comp.Props.SetText(ical.PropSummary, inv.Summary)
		}
		if inv.Description != "" {
			comp.Props.SetText(ical.PropDescription, inv.Description)
		}
		if inv.Location != "" {
			comp.Props.SetText(ical.PropLocation, inv.Location)
		}
		for _, c := range inv.Comments {
			prop := ical.NewProp(ical.PropComment)
			prop.SetText(c)
			comp.Props.Add(prop)
		}
	}
	for _, cat := range inv.Categories {
		prop := ical.NewProp(ical.PropCategories)
		prop.SetText(cat)
		comp.Props.Add(prop)
	}
	if inv.Priority != "" {
		comp.Props.SetText(ical.PropPriority, inv.Priority)
	}

	if !inv.Start.IsZero() {
		comp.Props.Set(dateTimeProp(ical.PropDateTimeStart, inv.Start, inv.AllDay))
	}
	if !inv.End.IsZero() {
		endProp := ical.PropDateTimeEnd
		if inv.Kind == KindTask {
			endProp = ical.PropDue
		}
		comp.Props.Set(dateTimeProp(endProp, inv.End, inv.AllDay))
	}
	if inv.Kind == KindEvent {
		comp.Props.SetText(ical.PropTransparency, inv.Transparency.String())
	}
	if inv.Kind == KindTask {
		if inv.PercentComplete != "" {
			comp.Props.SetText(ical.PropPercentComplete, inv.PercentComplete)
		}
		if !inv.Completed.IsZero() {
			comp.Props.SetDateTime(ical.PropCompleted, inv.Completed.UTC())
		}
	}

	if inv.RecurrenceID != nil {
		comp.Props.Set(dateTimeProp(ical.PropRecurrenceID, *inv.RecurrenceID, inv.AllDay))
	}
	if inv.Recurrence != nil {
		if inv.Recurrence.Rule != "" {
			// Raw value: text escaping would mangle the rule's semicolons.
			prop := ical.NewProp(ical.PropRecurrenceRule)
			prop.Value = inv.Recurrence.Rule
			comp.Props.Set(prop)
		}
		for _, rd := range inv.Recurrence.RDates {
			comp.Props.Add(dateTimeProp(ical.PropRecurrenceDates, rd, inv.AllDay))
		}
		for _, ex := range inv.Recurrence.ExDates {
			comp.Props.Add(dateTimeProp(ical.PropExceptionDates, ex, inv.AllDay))
		}
	}

	if inv.Organizer != nil {
		prop := ical.NewProp(ical.PropOrganizer)
		prop.Value = "mailto:" + inv.Organizer.Address
		if inv.Organizer.DisplayName != "" {
			prop.Params.Set(ical.ParamCommonName, inv.Organizer.DisplayName)
		}
		if inv.Organizer.SentBy != "" {
			prop.Params.Set(ical.ParamSentBy, "mailto:"+inv.Organizer.SentBy)
		}
		comp.Props.Set(prop)
	}
	for _, at := range inv.Attendees {
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = "mailto:" + at.Address
		if at.DisplayName != "" {
			prop.Params.Set(ical.ParamCommonName, at.DisplayName)
		}
		prop.Params.Set(ical.ParamRole, at.Role.String())
		prop.Params.Set(ical.ParamParticipationStatus, at.PartStat.String())
		if at.RSVP != nil {
			if *at.RSVP {
				prop.Params.Set(ical.ParamRSVP, "TRUE")
			} else {
				prop.Params.Set(ical.ParamRSVP, "FALSE")
			}
		}
		comp.Props.Add(prop)
	}

	return comp
}

// ToICalendar wraps the invite in a VCALENDAR carrying the scheduling
// METHOD.
func (inv *Invite) ToICalendar(redact bool) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropMethod, inv.Method.String())
	cal.Children = append(cal.Children, inv.ToComponent(redact))
	return cal
}

// Assemble wraps several invites sharing a uid in one VCALENDAR carrying
// the scheduling METHOD: a series master followed by its exception
// components.
func Assemble(method Method, redact bool, invites ...*Invite) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropMethod, method.String())
	for _, inv := range invites {
		cal.Children = append(cal.Children, inv.ToComponent(redact))
	}
	return cal
}

func dateTimeProp(name string, t time.Time, allDay bool) *ical.Prop {
	prop := ical.NewProp(name)
	if allDay {
		prop.SetValueType(ical.ValueDate)
		prop.Value = t.Format("20060102")
	} else {
		prop.SetDateTime(t.UTC())
	}
	return prop
}
