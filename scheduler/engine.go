package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/schedora/schedora/internal/address"
	"github.com/schedora/schedora/scheduler/directory"
	"github.com/schedora/schedora/scheduler/invite"
	"github.com/schedora/schedora/scheduler/notify"
	"github.com/schedora/schedora/scheduler/recurrence"
	"github.com/schedora/schedora/scheduler/storage"
	"github.com/schedora/schedora/scheduler/transport"
)

// Engine coordinates the scheduling components against the storage,
// directory and transport collaborators.  Scheduling is request scoped;
// the only cross-request state is the pending-send table and the
// per-mailbox lock table.
type Engine struct {
	cfg      Config
	store    storage.Storage
	dir      directory.Directory
	sender   transport.Transport
	renderer notify.Renderer
	logger   *slog.Logger
	pending  *notify.PendingTable
	now      func() time.Time

	mu      sync.Mutex
	mbLocks map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRenderer replaces the default notification renderer.
func WithRenderer(r notify.Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithClock overrides the time source; test use.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine around the three collaborators.
func New(cfg Config, store storage.Storage, dir directory.Directory, sender transport.Transport, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		store:    store,
		dir:      dir,
		sender:   sender,
		renderer: notify.DefaultRenderer{},
		logger:   slog.Default(),
		pending:  notify.NewPendingTable(cfg.PendingSendCap, cfg.PendingPollInterval, cfg.PendingPollCeiling),
		now:      time.Now,
		mbLocks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// mailboxLock returns the exclusive lock serializing read-modify-write
// sequences on one mailbox.  Held only for the duration of a single
// refresh-mutate-persist sequence, never across notification flushes.
func (e *Engine) mailboxLock(mailbox string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.mbLocks[mailbox]
	if !ok {
		l = &sync.Mutex{}
		e.mbLocks[mailbox] = l
	}
	return l
}

// matcherFor builds an address matcher for addr, folding in the account's
// directory aliases when addr resolves to a local account.
func (e *Engine) matcherFor(ctx context.Context, addr string) *address.Matcher {
	acct, err := e.dir.LookupAccount(ctx, addr)
	if err != nil {
		return address.NewMatcher(addr)
	}
	return address.NewMatcher(acct.Address, acct.Aliases...)
}

// localeFor returns the account's locale, empty for external addresses.
func (e *Engine) localeFor(ctx context.Context, addr string) string {
	acct, err := e.dir.LookupAccount(ctx, addr)
	if err != nil {
		return ""
	}
	return acct.Locale
}

// NewQueue creates a request-scoped notification queue bound to the engine
// logger.  One queue per scheduling request; flush it exactly once after
// every mutation has committed.
func (e *Engine) NewQueue() *notify.Queue {
	return notify.NewQueue(e.logger)
}

// FlushNotifications sends every queued entry.  It must be called outside
// any mailbox lock; transport failures are logged per entry and never
// surface.
func (e *Engine) FlushNotifications(ctx context.Context, q *notify.Queue) {
	q.Flush(ctx, e.sender)
}

// SubmitSend performs an idempotent outbound submission for a mailbox under
// a caller-supplied token.  Concurrent submissions with the same token
// yield one send; late duplicates past the poll ceiling fail with
// ErrTryAgain.
func (e *Engine) SubmitSend(ctx context.Context, mailbox, token string, send func(context.Context) (notify.SendResult, error)) (notify.SendResult, error) {
	return e.pending.Submit(ctx, mailbox, token, send)
}

// BuildInvite validates caller-supplied fields into one invite revision,
// bounding any recurrence rule with the configured horizons.
func (e *Engine) BuildInvite(params invite.Params, vctx invite.Context) (*invite.Invite, error) {
	if vctx.Horizons == (recurrence.Horizons{}) {
		vctx.Horizons = e.cfg.horizons()
	}
	return invite.Build(params, vctx)
}

// BuildCancellation derives a CANCEL invite from a stored revision.  The
// acting account's organizer standing is resolved through the directory
// before delegating to the builder, so attendee-initiated cancellations can
// never rev the sequence.
func (e *Engine) BuildCancellation(ctx context.Context, source *invite.Invite, req invite.CancelRequest) (*invite.Invite, error) {
	m := e.matcherFor(ctx, req.ActingAddress)
	req.ActingIsOrganizer = source.IsOrganizedBy(m)
	if req.Now.IsZero() {
		req.Now = e.now()
	}
	return invite.BuildCancellation(source, req)
}

// RemovalNotice asks for cancellation notices to the attendees dropped from
// an invite.
type RemovalNotice struct {
	Mailbox       string
	ActingAddress string
	Source        *invite.Invite
	Removed       []invite.Attendee
	// AllowPrivateAccess keeps the summary visible on private content.
	AllowPrivateAccess bool
	Comment            string
	Queue              *notify.Queue
}

// NotifyRemovedAttendees queues a cancellation notice to each attendee
// removed by an edit.  Only the organizer may do this; the removal
// cancellation never revs the sequence.
func (e *Engine) NotifyRemovedAttendees(ctx context.Context, n RemovalNotice) error {
	if n.Source == nil || len(n.Removed) == 0 {
		return nil
	}
	m := e.matcherFor(ctx, n.ActingAddress)
	if !n.Source.IsOrganizedBy(m) {
		return fmt.Errorf("%w: only the organizer may notify removed attendees", ErrPermissionDenied)
	}

	cancel, err := invite.BuildCancellation(n.Source, invite.CancelRequest{
		ActingAddress:      n.ActingAddress,
		ActingIsOrganizer:  true,
		AllowPrivateAccess: n.AllowPrivateAccess || n.Source.IsPublic(),
		Recipients:         n.Removed,
		Comment:            n.Comment,
		IncrementSequence:  false,
		Now:                e.now(),
	})
	if err != nil {
		return err
	}

	redact := !n.Source.IsPublic() && !n.AllowPrivateAccess
	msg, err := e.renderer.Render(ctx, notify.RenderInput{
		Template: notify.TemplateCancel,
		Invite:   cancel,
		Calendar: cancel.ToICalendar(redact),
		Locale:   e.localeFor(ctx, n.ActingAddress),
		Comment:  n.Comment,
	})
	if err != nil {
		return err
	}

	recipients := make([]string, 0, len(n.Removed))
	for _, at := range n.Removed {
		recipients = append(recipients, at.Address)
	}
	n.Queue.Add(&notify.Entry{
		Recipients: recipients,
		Message:    msg,
		Spool:      notify.NewSpool(msg.ICalendar),
	})
	return nil
}
