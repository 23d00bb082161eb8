package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schedora/schedora/scheduler/invite"
)

func TestReplySubject(t *testing.T) {
	tests := []struct {
		name   string
		verb   invite.ReplyVerb
		locale string
		want   string
	}{
		{name: "accept english", verb: invite.VerbAccept, locale: "en", want: "Accepted: Standup"},
		{name: "decline english", verb: invite.VerbDecline, locale: "en-US", want: "Declined: Standup"},
		{name: "tentative german", verb: invite.VerbTentative, locale: "de_CH", want: "Vorbehaltlich: Standup"},
		{name: "accept french", verb: invite.VerbAccept, locale: "fr", want: "Accepté: Standup"},
		{name: "counter english", verb: invite.VerbCounter, locale: "en", want: "New Time Proposed: Standup"},
		{name: "decline counter english", verb: invite.VerbDeclineCounter, locale: "en", want: "New Time Declined: Standup"},
		{name: "counter german", verb: invite.VerbCounter, locale: "de", want: "Neuer Terminvorschlag: Standup"},
		{name: "unknown locale falls back to english", verb: invite.VerbAccept, locale: "zz", want: "Accepted: Standup"},
		{name: "empty locale falls back to english", verb: invite.VerbDecline, locale: "", want: "Declined: Standup"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplySubject(tt.verb, "Standup", tt.locale))
		})
	}
}

func TestCancelSubject(t *testing.T) {
	assert.Equal(t, "Cancelled: Standup", CancelSubject("Standup", "en"))
	assert.Equal(t, "Abgesagt: Standup", CancelSubject("Standup", "de"))
	assert.Equal(t, "Cancelled: Standup", CancelSubject("Standup", "xx"))
}

func TestHTMLBody(t *testing.T) {
	out := HTMLBody("Accepted: Standup", []string{"Bob has accepted.", "", "See you there"})
	assert.True(t, strings.Contains(out, "<h3>Accepted: Standup</h3>"))
	assert.True(t, strings.Contains(out, "<p>Bob has accepted.</p>"))
	assert.True(t, strings.Contains(out, "<br/>"))
}
