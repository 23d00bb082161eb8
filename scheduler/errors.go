// Package scheduler is the scheduling engine of a groupware server: it
// turns create, modify, cancel and reply actions on calendar events and
// tasks into correctly versioned calendar aggregates, the minimal set of
// attendee notifications implied by each change, and idempotent delivery of
// those notifications.
package scheduler

import (
	"errors"

	"github.com/schedora/schedora/scheduler/invite"
	"github.com/schedora/schedora/scheduler/notify"
	"github.com/schedora/schedora/scheduler/storage"
	"github.com/schedora/schedora/scheduler/transport"
)

// Error taxonomy exposed to callers.  Match with errors.Is; several alias
// the sentinel of the package that raises them.
var (
	// ErrInvalidRequest reports malformed, missing or contradictory fields.
	ErrInvalidRequest = invite.ErrInvalidRequest
	// ErrOutOfDate reports a stale sequence/dtstamp on a reply or modify.
	ErrOutOfDate = errors.New("invite is out of date")
	// ErrPermissionDenied reports a private-item access or must-be-organizer
	// violation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTooManyHops is the forwarding/dereference loop guard.
	ErrTooManyHops = errors.New("too many forwarding hops")
	// ErrTryAgain reports a pending-send collision past the poll ceiling.
	ErrTryAgain = notify.ErrTryAgain
	// ErrTransportFailure reports a send failure; partially recoverable.
	ErrTransportFailure = transport.ErrSendFailed
	// ErrStorageFailure reports an aggregate fetch/persist failure; not
	// retried by this engine.
	ErrStorageFailure = storage.ErrUnavailable
)
