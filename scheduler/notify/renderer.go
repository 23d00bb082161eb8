package notify

import (
	"bytes"
	"context"
	"fmt"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/schedora/schedora/scheduler/invite"
	"github.com/schedora/schedora/scheduler/transport"
)

// Template selects the notification flavor a renderer should produce.
type Template int

const (
	TemplateInvite Template = iota
	TemplateUpdate
	TemplateCancel
	TemplateReply
)

// RenderInput carries everything a renderer needs for one notification.
type RenderInput struct {
	Template Template
	Invite   *invite.Invite
	// Calendar is the fully assembled scheduling payload, series folding
	// included.  Rendered verbatim into the message.
	Calendar *ical.Calendar
	// Verb is set for reply notifications.
	Verb invite.ReplyVerb
	// ActorDisplay names who triggered the notification.
	ActorDisplay string
	// Locale is the recipient mailbox owner's locale.
	Locale string
	// Comment is an optional free-form note from the actor.
	Comment string
}

// Renderer turns scheduling decisions into transport messages.  Callers may
// plug in their own implementation to control message appearance.
type Renderer interface {
	Render(ctx context.Context, in RenderInput) (*transport.Message, error)
}

// DefaultRenderer produces plain notifications with a text part, an HTML
// alternative and the iCalendar payload attached.
type DefaultRenderer struct{}

func (DefaultRenderer) Render(_ context.Context, in RenderInput) (*transport.Message, error) {
	if in.Invite == nil {
		return nil, fmt.Errorf("render: no invite")
	}

	var subject string
	var lines []string
	switch in.Template {
	case TemplateCancel:
		subject = CancelSubject(in.Invite.Summary, in.Locale)
		lines = append(lines, fmt.Sprintf("The following meeting has been cancelled: %s", in.Invite.Summary))
	case TemplateReply:
		subject = ReplySubject(in.Verb, in.Invite.Summary, in.Locale)
		lines = append(lines, ReplyBodyLine(in.Verb, in.ActorDisplay, in.Invite.Summary, in.Locale))
	default:
		subject = in.Invite.Summary
		lines = append(lines, fmt.Sprintf("You have been invited to the following meeting: %s", in.Invite.Summary))
		if in.Invite.Location != "" {
			lines = append(lines, fmt.Sprintf("Location: %s", in.Invite.Location))
		}
	}
	if in.Comment != "" {
		lines = append(lines, "", in.Comment)
	}

	var payload []byte
	if in.Calendar != nil {
		var buf bytes.Buffer
		if err := ical.NewEncoder(&buf).Encode(in.Calendar); err != nil {
			return nil, fmt.Errorf("encode scheduling payload: %w", err)
		}
		payload = buf.Bytes()
	}

	return &transport.Message{
		ID:        uuid.NewString(),
		Subject:   subject,
		TextBody:  TextBody(subject, lines),
		HTMLBody:  HTMLBody(subject, lines),
		ICalendar: payload,
	}, nil
}
