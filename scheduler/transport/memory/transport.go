// Package memory provides an in-memory Transport for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/schedora/schedora/scheduler/transport"
)

// Sent is one delivered message with its recipient set.
type Sent struct {
	Message    *transport.Message
	Recipients []string
	// ICalendar is the payload snapshot at send time.
	ICalendar []byte
}

// Transport records every send and peer call.  Failures can be injected
// per subject or per peer op.
type Transport struct {
	mu    sync.Mutex
	sent  []Sent
	peers []*transport.PeerRequest

	// FailSubjects maps message subjects to send failures.
	FailSubjects map[string]error
	// PeerHandler answers ForwardToPeer; nil returns an empty response.
	PeerHandler func(account string, req *transport.PeerRequest) (*transport.PeerResponse, error)
}

// New creates an empty transport.
func New() *Transport {
	return &Transport{FailSubjects: make(map[string]error)}
}

func (t *Transport) Send(_ context.Context, msg *transport.Message, recipients []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err, ok := t.FailSubjects[msg.Subject]; ok {
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
	t.sent = append(t.sent, Sent{
		Message:    msg,
		Recipients: append([]string(nil), recipients...),
		ICalendar:  append([]byte(nil), msg.ICalendar...),
	})
	return nil
}

func (t *Transport) ForwardToPeer(_ context.Context, account string, req *transport.PeerRequest) (*transport.PeerResponse, error) {
	t.mu.Lock()
	t.peers = append(t.peers, req)
	handler := t.PeerHandler
	t.mu.Unlock()
	if handler != nil {
		return handler(account, req)
	}
	return &transport.PeerResponse{}, nil
}

// Messages returns every recorded send.
func (t *Transport) Messages() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sent(nil), t.sent...)
}

// PeerCalls returns every recorded peer request.
func (t *Transport) PeerCalls() []*transport.PeerRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*transport.PeerRequest(nil), t.peers...)
}
