package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTryAgain reports that an identical send is still in flight and the
// caller should retry later.
var ErrTryAgain = errors.New("send already in progress, try again")

type pendingState int

const (
	stateNew pendingState = iota
	statePending
	stateSent
)

// SendResult is what a completed send produced.
type SendResult struct {
	MessageID string
	InviteID  string
}

type pendingRecord struct {
	token  string
	state  pendingState
	result SendResult
}

// PendingTable deduplicates concurrent identical sends.  Records are keyed
// by (mailbox, token): the first submitter with a given token performs the
// send, later submitters with the same token poll for its outcome instead
// of sending a duplicate.
type PendingTable struct {
	mu        sync.Mutex
	byMailbox map[string][]*pendingRecord

	capPerMailbox int
	pollInterval  time.Duration
	pollCeiling   time.Duration
}

// NewPendingTable builds a table.  capPerMailbox bounds remembered sends
// per mailbox; when full the oldest record is evicted.
func NewPendingTable(capPerMailbox int, pollInterval, pollCeiling time.Duration) *PendingTable {
	if capPerMailbox <= 0 {
		capPerMailbox = 5
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if pollCeiling <= 0 {
		pollCeiling = 4 * time.Second
	}
	return &PendingTable{
		byMailbox:     make(map[string][]*pendingRecord),
		capPerMailbox: capPerMailbox,
		pollInterval:  pollInterval,
		pollCeiling:   pollCeiling,
	}
}

// find returns the record for (mailbox, token), creating a new one in the
// pending state when absent.  The returned state tells the caller whether
// it owns the send.
func (t *PendingTable) find(mailbox, token string) (pendingState, *pendingRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	records := t.byMailbox[mailbox]
	for _, rec := range records {
		if rec.token == token {
			return rec.state, rec
		}
	}
	rec := &pendingRecord{token: token, state: statePending}
	if len(records) >= t.capPerMailbox {
		records = records[1:]
	}
	t.byMailbox[mailbox] = append(records, rec)
	return stateNew, rec
}

func (t *PendingTable) markSent(rec *pendingRecord, res SendResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec.state = stateSent
	rec.result = res
}

func (t *PendingTable) clear(mailbox string, rec *pendingRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	records := t.byMailbox[mailbox]
	for i, r := range records {
		if r == rec {
			t.byMailbox[mailbox] = append(records[:i], records[i+1:]...)
			return
		}
	}
}

// Submit performs send at most once per (mailbox, token).  The first caller
// with a token owns the send; concurrent callers with the same token poll
// at the table's interval up to its ceiling, then either return the owner's
// result or ErrTryAgain if the send is still in flight.  A failed send
// clears the record so a retry can own a fresh attempt.
func (t *PendingTable) Submit(ctx context.Context, mailbox, token string, send func(context.Context) (SendResult, error)) (SendResult, error) {
	state, rec := t.find(mailbox, token)

	remaining := t.pollCeiling
	for state == statePending && remaining >= 0 {
		select {
		case <-ctx.Done():
			return SendResult{}, ctx.Err()
		case <-time.After(t.pollInterval):
		}
		remaining -= t.pollInterval
		state, rec = t.find(mailbox, token)
	}

	switch state {
	case stateSent:
		return rec.result, nil
	case statePending:
		return SendResult{}, ErrTryAgain
	}

	res, err := send(ctx)
	if err != nil {
		t.clear(mailbox, rec)
		return SendResult{}, err
	}
	t.markSent(rec, res)
	return res, nil
}
