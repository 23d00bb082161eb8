// Package transport defines the outbound delivery collaborator: rendered
// message sending and peer-server forwarding.  MIME composition and SMTP
// live behind this interface.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrSendFailed is returned when a message could not be delivered.
	// Notification-flush callers recover from it locally.
	ErrSendFailed = errors.New("transport send failed")
	// ErrPeerUnavailable is returned when a peer server cannot be reached.
	ErrPeerUnavailable = errors.New("peer server unavailable")
)

// Message is a rendered outbound message handle; the engine never looks
// inside the MIME content.
type Message struct {
	ID       string
	Subject  string
	TextBody string
	HTMLBody string
	// ICalendar is the serialized scheduling part.
	ICalendar []byte
}

// PeerRequest is an opaque operation replayed against a peer server on
// behalf of a remote account.
type PeerRequest struct {
	Op   string
	Body any
}

// PeerResponse is the peer's verbatim answer.
type PeerResponse struct {
	Body any
}

// Transport delivers messages and forwards requests to peer servers.
// Implementations own timeout and cancellation policy; the engine performs
// no retries of its own.
type Transport interface {
	Send(ctx context.Context, msg *Message, recipients []string) error
	ForwardToPeer(ctx context.Context, account string, req *PeerRequest) (*PeerResponse, error)
}
