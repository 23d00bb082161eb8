package invite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedora/schedora/internal/address"
)

func TestNewerOrEqual(t *testing.T) {
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		seq      int
		stamp    time.Time
		otherSeq int
		otherTS  time.Time
		want     bool
	}{
		{name: "higher sequence wins", seq: 4, stamp: base, otherSeq: 3, otherTS: base.Add(time.Hour), want: true},
		{name: "lower sequence loses", seq: 3, stamp: base.Add(time.Hour), otherSeq: 4, otherTS: base, want: false},
		{name: "equal sequence newer dtstamp wins", seq: 2, stamp: base.Add(time.Minute), otherSeq: 2, otherTS: base, want: true},
		{name: "equal pair is newer-or-equal", seq: 2, stamp: base, otherSeq: 2, otherTS: base, want: true},
		{name: "equal sequence older dtstamp loses", seq: 2, stamp: base, otherSeq: 2, otherTS: base.Add(time.Minute), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Invite{Sequence: tt.seq, DtStamp: tt.stamp}
			b := &Invite{Sequence: tt.otherSeq, DtStamp: tt.otherTS}
			assert.Equal(t, tt.want, a.NewerOrEqual(b))
		})
	}
}

func TestAddAttendee_DeduplicatesByIdentity(t *testing.T) {
	inv := &Invite{}
	inv.AddAttendee(Attendee{Address: "Bob@Example.com"})
	inv.AddAttendee(Attendee{Address: "bob@example.com", DisplayName: "Bob"})
	inv.AddAttendee(Attendee{Address: "carol@example.com"})

	require.Len(t, inv.Attendees, 2)
	assert.Equal(t, "Bob@Example.com", inv.Attendees[0].Address)
	assert.Equal(t, "carol@example.com", inv.Attendees[1].Address)
}

func TestMakeInstance(t *testing.T) {
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	series := &Invite{
		UID:     "series-1",
		Kind:    KindEvent,
		Start:   start,
		End:     start.Add(time.Hour),
		Summary: "Weekly sync",
		Attendees: []Attendee{
			{Address: "bob@example.com", PartStat: PartStatNeedsAction},
		},
	}

	occ := start.AddDate(0, 0, 14)
	inst := series.MakeInstance(occ)

	require.NotNil(t, inst.RecurrenceID)
	assert.Equal(t, occ, *inst.RecurrenceID)
	assert.Nil(t, inst.Recurrence)
	assert.Equal(t, occ, inst.Start)
	assert.Equal(t, occ.Add(time.Hour), inst.End)
	assert.Equal(t, "Weekly sync", inst.Summary)

	// The series itself is untouched.
	assert.Nil(t, series.RecurrenceID)
	assert.Equal(t, start, series.Start)
}

func TestClone_Independence(t *testing.T) {
	rsvp := true
	rid := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	inv := &Invite{
		UID:          "series-1",
		RecurrenceID: &rid,
		Attendees:    []Attendee{{Address: "bob@example.com", RSVP: &rsvp}},
		Comments:     []string{"original"},
	}

	dup := inv.Clone()
	dup.Attendees[0].Address = "mallory@example.com"
	*dup.Attendees[0].RSVP = false
	*dup.RecurrenceID = rid.AddDate(0, 0, 7)
	dup.Comments[0] = "changed"

	assert.Equal(t, "bob@example.com", inv.Attendees[0].Address)
	assert.True(t, *inv.Attendees[0].RSVP)
	assert.Equal(t, rid, *inv.RecurrenceID)
	assert.Equal(t, "original", inv.Comments[0])
}

func TestIsOrganizedBy(t *testing.T) {
	m := address.NewMatcher("alice@example.com", "a.alias@example.com")

	t.Run("matches organizer address", func(t *testing.T) {
		inv := &Invite{Organizer: &Organizer{Address: "ALICE@example.com"}}
		assert.True(t, inv.IsOrganizedBy(m))
	})

	t.Run("matches through alias", func(t *testing.T) {
		inv := &Invite{Organizer: &Organizer{Address: "a.alias@example.com"}}
		assert.True(t, inv.IsOrganizedBy(m))
	})

	t.Run("no organizer means self-organized", func(t *testing.T) {
		inv := &Invite{}
		assert.True(t, inv.IsOrganizedBy(m))
	})

	t.Run("different organizer", func(t *testing.T) {
		inv := &Invite{Organizer: &Organizer{Address: "bob@example.com"}}
		assert.False(t, inv.IsOrganizedBy(m))
	})
}
