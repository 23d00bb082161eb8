package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedora/schedora/scheduler/transport"
	transportmem "github.com/schedora/schedora/scheduler/transport/memory"
)

func entryTo(recipient, subject string) *Entry {
	return &Entry{
		Recipients: []string{recipient},
		Message:    &transport.Message{Subject: subject},
	}
}

func TestQueue_FlushIsolatesFailures(t *testing.T) {
	sender := transportmem.New()
	sender.FailSubjects["second"] = transport.ErrSendFailed

	q := NewQueue(nil)
	q.Add(entryTo("a@example.com", "first"))
	q.Add(entryTo("b@example.com", "second"))
	q.Add(entryTo("c@example.com", "third"))

	q.Flush(context.Background(), sender)

	sent := sender.Messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "first", sent[0].Message.Subject)
	assert.Equal(t, "third", sent[1].Message.Subject)
	assert.Zero(t, q.Len())
}

func TestQueue_FlushSendsSpooledSnapshot(t *testing.T) {
	sender := transportmem.New()
	payload := []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")

	spool := NewSpool(payload)
	entry := entryTo("a@example.com", "spooled")
	entry.Spool = spool

	// Mutating the source after enqueue must not affect the snapshot.
	payload[0] = 'X'

	q := NewQueue(nil)
	q.Add(entry)
	q.Flush(context.Background(), sender)

	sent := sender.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, byte('B'), sent[0].ICalendar[0])
	assert.True(t, spool.Released())
}

func TestQueue_SpoolReleasedEvenOnFailure(t *testing.T) {
	sender := transportmem.New()
	sender.FailSubjects["doomed"] = transport.ErrSendFailed

	spool := NewSpool([]byte("payload"))
	entry := entryTo("a@example.com", "doomed")
	entry.Spool = spool

	q := NewQueue(nil)
	q.Add(entry)
	q.Flush(context.Background(), sender)

	assert.Empty(t, sender.Messages())
	assert.True(t, spool.Released())
}

func TestQueue_DiscardReleasesWithoutSending(t *testing.T) {
	sender := transportmem.New()
	spool := NewSpool([]byte("payload"))
	entry := entryTo("a@example.com", "dropped")
	entry.Spool = spool

	q := NewQueue(nil)
	q.Add(entry)
	q.Discard()
	q.Flush(context.Background(), sender)

	assert.Empty(t, sender.Messages())
	assert.True(t, spool.Released())
	assert.Zero(t, q.Len())
}
