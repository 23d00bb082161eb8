package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedora/schedora/scheduler/directory"
	"github.com/schedora/schedora/scheduler/invite"
	"github.com/schedora/schedora/scheduler/storage"
)

func seedSeries(t *testing.T, f *fixture, mailbox string, seq int, stamp time.Time) *invite.Invite {
	t.Helper()
	master := baseEvent("series-1", seq, stamp, "bob@example.com")
	_, err := f.store.PersistInvite(context.Background(), mailbox, master, "Calendar", storage.PersistOptions{})
	require.NoError(t, err)
	return master
}

func TestProcessReply_CreatesExceptionForOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mailbox := "bob@example.com"
	stamp := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	seedSeries(t, f, mailbox, 0, stamp)

	rid := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	q := f.engine.NewQueue()
	res, err := f.engine.ProcessReply(ctx, ReplyRequest{
		Mailbox:       mailbox,
		ActingAddress: "bob@example.com",
		Verb:          invite.VerbAccept,
		UID:           "series-1",
		RecurrenceID:  &rid,
		Sequence:      0,
		DtStamp:       stamp,
		Queue:         q,
	})
	require.NoError(t, err)
	assert.False(t, res.Forwarded)

	agg, err := f.store.GetAggregate(ctx, mailbox, "series-1")
	require.NoError(t, err)

	// Exactly one exception, pinned to the occurrence, with the replying
	// attendee's participation updated.
	require.Len(t, agg.Exceptions, 1)
	exc := agg.Exceptions[invite.FormatRecurrenceID(rid)]
	require.NotNil(t, exc)
	require.NotNil(t, exc.RecurrenceID)
	assert.Equal(t, rid, *exc.RecurrenceID)
	assert.Equal(t, invite.PartStatAccepted, exc.Attendees[0].PartStat)
	assert.Nil(t, exc.Recurrence)

	// The series master is untouched.
	assert.Equal(t, invite.PartStatNeedsAction, agg.Master.Attendees[0].PartStat)

	// Reply log records the answer.
	require.Len(t, agg.Replies, 1)
	assert.Equal(t, "bob@example.com", agg.Replies[0].Attendee.Address)

	// Organizer notification queued; RSVP was left unspecified.
	assert.Equal(t, 1, q.Len())
	f.engine.FlushNotifications(ctx, q)
	sent := f.sender.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"alice@example.com"}, sent[0].Recipients)
	assert.Contains(t, sent[0].Message.Subject, "Accepted")
}

func TestProcessReply_OutOfDate(t *testing.T) {
	f := newFixture(t)
	stamp := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	seedSeries(t, f, "bob@example.com", 4, stamp.Add(time.Hour))

	_, err := f.engine.ProcessReply(context.Background(), ReplyRequest{
		Mailbox:       "bob@example.com",
		ActingAddress: "bob@example.com",
		Verb:          invite.VerbAccept,
		UID:           "series-1",
		Sequence:      3,
		DtStamp:       stamp,
	})
	assert.ErrorIs(t, err, ErrOutOfDate)
}

func TestProcessReply_TrashRevival(t *testing.T) {
	ctx := context.Background()
	stamp := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	t.Run("accept revives a trashed aggregate", func(t *testing.T) {
		f := newFixture(t)
		seedSeries(t, f, "bob@example.com", 0, stamp)
		f.store.SetTrashed("bob@example.com", "series-1", true)

		_, err := f.engine.ProcessReply(ctx, ReplyRequest{
			Mailbox:       "bob@example.com",
			ActingAddress: "bob@example.com",
			Verb:          invite.VerbAccept,
			UID:           "series-1",
			Sequence:      0,
			DtStamp:       stamp,
		})
		require.NoError(t, err)

		agg, err := f.store.GetAggregate(ctx, "bob@example.com", "series-1")
		require.NoError(t, err)
		assert.False(t, agg.InTrash)
	})

	t.Run("decline never revives", func(t *testing.T) {
		f := newFixture(t)
		seedSeries(t, f, "bob@example.com", 0, stamp)
		f.store.SetTrashed("bob@example.com", "series-1", true)

		_, err := f.engine.ProcessReply(ctx, ReplyRequest{
			Mailbox:       "bob@example.com",
			ActingAddress: "bob@example.com",
			Verb:          invite.VerbDecline,
			UID:           "series-1",
			Sequence:      0,
			DtStamp:       stamp,
		})
		require.NoError(t, err)

		agg, err := f.store.GetAggregate(ctx, "bob@example.com", "series-1")
		require.NoError(t, err)
		assert.True(t, agg.InTrash)
	})
}

func TestProcessReply_RSVPAndSuppression(t *testing.T) {
	ctx := context.Background()
	stamp := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	t.Run("rsvp false skips the organizer notice", func(t *testing.T) {
		f := newFixture(t)
		noRSVP := false
		master := baseEvent("series-1", 0, stamp)
		master.Attendees = []invite.Attendee{{Address: "bob@example.com", RSVP: &noRSVP}}
		_, err := f.store.PersistInvite(ctx, "bob@example.com", master, "Calendar", storage.PersistOptions{})
		require.NoError(t, err)

		q := f.engine.NewQueue()
		_, err = f.engine.ProcessReply(ctx, ReplyRequest{
			Mailbox:       "bob@example.com",
			ActingAddress: "bob@example.com",
			Verb:          invite.VerbAccept,
			UID:           "series-1",
			Sequence:      0,
			DtStamp:       stamp,
			Queue:         q,
		})
		require.NoError(t, err)
		assert.Zero(t, q.Len())
	})

	t.Run("explicit suppression wins over rsvp", func(t *testing.T) {
		f := newFixture(t)
		seedSeries(t, f, "bob@example.com", 0, stamp)

		q := f.engine.NewQueue()
		_, err := f.engine.ProcessReply(ctx, ReplyRequest{
			Mailbox:        "bob@example.com",
			ActingAddress:  "bob@example.com",
			Verb:           invite.VerbAccept,
			UID:            "series-1",
			Sequence:       0,
			DtStamp:        stamp,
			SuppressNotify: true,
			Queue:          q,
		})
		require.NoError(t, err)
		assert.Zero(t, q.Len())
	})
}

func TestProcessReply_PrivateOnBehalfOf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stamp := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	master := baseEvent("series-1", 0, stamp, "bob@example.com")
	master.Class = invite.ClassPrivate
	_, err := f.store.PersistInvite(ctx, "bob@example.com", master, "Calendar", storage.PersistOptions{})
	require.NoError(t, err)

	req := ReplyRequest{
		Mailbox:       "bob@example.com",
		ActingAddress: "assistant@example.com",
		OnBehalfOf:    "bob@example.com",
		Verb:          invite.VerbAccept,
		UID:           "series-1",
		Sequence:      0,
		DtStamp:       stamp,
	}
	_, err = f.engine.ProcessReply(ctx, req)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	req.AllowPrivateAccess = true
	_, err = f.engine.ProcessReply(ctx, req)
	assert.NoError(t, err)
}

func TestProcessReply_RemoteForward(t *testing.T) {
	f := newFixture(t)
	f.dir.AddAccount(directory.Account{Address: "bob@peer.example", Remote: true})
	stamp := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	source := baseEvent("series-1", 0, stamp, "bob@peer.example")

	res, err := f.engine.ProcessReply(context.Background(), ReplyRequest{
		Mailbox:       "shared@example.com",
		ActingAddress: "shared@example.com",
		IntendedFor:   "bob@peer.example",
		Verb:          invite.VerbTentative,
		UID:           "series-1",
		Sequence:      0,
		DtStamp:       stamp,
		Source:        source,
	})
	require.NoError(t, err)
	assert.True(t, res.Forwarded)
	require.NotNil(t, res.PeerResponse)

	// The invite is pushed before the reply is replayed.
	calls := f.sender.PeerCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "calendar.push-invite", calls[0].Op)
	assert.Equal(t, "calendar.invite-reply", calls[1].Op)
}

func TestProcessReply_CrossAccountReentry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stamp := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	f.dir.AddAccount(directory.Account{Address: "carol@example.com"})
	seedSeries(t, f, "carol@example.com", 0, stamp)

	// The invitation landed in a shared mailbox but was meant for carol;
	// the reply applies in carol's mailbox.
	_, err := f.engine.ProcessReply(ctx, ReplyRequest{
		Mailbox:       "shared@example.com",
		ActingAddress: "shared@example.com",
		IntendedFor:   "carol@example.com",
		Verb:          invite.VerbAccept,
		UID:           "series-1",
		Sequence:      0,
		DtStamp:       stamp,
	})
	require.NoError(t, err)

	agg, err := f.store.GetAggregate(ctx, "carol@example.com", "series-1")
	require.NoError(t, err)
	carol := agg.Master.AttendeeByAddress("carol@example.com")
	require.NotNil(t, carol)
	assert.Equal(t, invite.PartStatAccepted, carol.PartStat)
}

func TestProcessReply_HopCeiling(t *testing.T) {
	f := newFixture(t)
	f.dir.AddAccount(directory.Account{Address: "a@example.com", ForwardTo: "b@example.com"})
	f.dir.AddAccount(directory.Account{Address: "b@example.com", ForwardTo: "a@example.com"})

	_, err := f.engine.ProcessReply(context.Background(), ReplyRequest{
		Mailbox:       "me@example.com",
		ActingAddress: "me@example.com",
		IntendedFor:   "a@example.com",
		Verb:          invite.VerbAccept,
		UID:           "series-1",
	})
	assert.ErrorIs(t, err, ErrTooManyHops)
}

func TestProcessReply_ArchivesRepliedInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stamp := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	f.dir.AddAccount(directory.Account{
		Address:              "bob@example.com",
		ArchiveRepliedInvite: true,
	})
	seedSeries(t, f, "bob@example.com", 0, stamp)

	ref := storage.ItemRef{Mailbox: "bob@example.com", ItemID: "msg-77"}
	_, err := f.engine.ProcessReply(ctx, ReplyRequest{
		Mailbox:       "bob@example.com",
		ActingAddress: "bob@example.com",
		Verb:          invite.VerbAccept,
		UID:           "series-1",
		Sequence:      0,
		DtStamp:       stamp,
		MessageRef:    &ref,
	})
	require.NoError(t, err)

	moves := f.store.Moves()
	require.Len(t, moves, 1)
	assert.Equal(t, ref, moves[0].Ref)
	assert.Equal(t, "Trash", moves[0].Folder)
}
