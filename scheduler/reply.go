package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schedora/schedora/scheduler/directory"
	"github.com/schedora/schedora/scheduler/invite"
	"github.com/schedora/schedora/scheduler/notify"
	"github.com/schedora/schedora/scheduler/storage"
	"github.com/schedora/schedora/scheduler/transport"
)

// Folder receiving archived invitation messages.
const trashFolder = "Trash"

// Peer operations replayed during remote reply forwarding.
const (
	peerOpPushInvite  = "calendar.push-invite"
	peerOpInviteReply = "calendar.invite-reply"
)

// ReplyRequest is an attendee's answer to an invitation.
type ReplyRequest struct {
	// Mailbox is the mailbox the reply was issued in.
	Mailbox string
	// ActingAddress is the attendee answering.
	ActingAddress string
	// OnBehalfOf, when set, answers for another attendee; requires private
	// access on private content.
	OnBehalfOf string
	// AllowPrivateAccess grants visibility into private content.
	AllowPrivateAccess bool

	Verb invite.ReplyVerb

	UID          string
	RecurrenceID *time.Time
	// Sequence and DtStamp identify the revision being answered.
	Sequence int
	DtStamp  time.Time

	// Source is the invite being replied to, decoded from the invitation
	// message; used to create the aggregate when none exists and to push
	// the invite during remote forwarding.
	Source *invite.Invite
	// IntendedFor is the intended-recipient marker carried on the source
	// message when the invitation was forwarded across accounts.
	IntendedFor string
	// MessageRef locates the originating invitation message for the
	// archive step.
	MessageRef *storage.ItemRef

	// Comment is free text carried into the organizer notification.
	Comment string
	// SuppressNotify skips the organizer notification regardless of the
	// stored RSVP flag.
	SuppressNotify bool

	// Queue receives the organizer notification; nil suppresses it.
	Queue *notify.Queue
}

// ReplyResult is the outcome of a processed reply.
type ReplyResult struct {
	storage.PersistResult
	// Forwarded is set when the reply was replayed against a peer server;
	// PeerResponse then carries the peer's verbatim answer.
	Forwarded    bool
	PeerResponse *transport.PeerResponse
}

type replyState int

const (
	replyResolving replyState = iota
	replyRemoteForward
	replyLocalApply
	replyOrganizerNotify
	replyArchived
)

// ProcessReply runs an attendee reply through its state machine:
// Resolving, LocalApply, OrganizerNotify, Archived, with RemoteForward as
// the alternative branch when the invitation was intended for an account
// homed on a peer server.  Cross-account re-entry is a bounded loop; the
// hop ceiling fails with ErrTooManyHops.
func (e *Engine) ProcessReply(ctx context.Context, req ReplyRequest) (*ReplyResult, error) {
	res := &ReplyResult{}
	state := replyResolving

	var remote *directory.Account
	var applied *invite.Invite
	var actor invite.Attendee
	notifyOrganizer := false
	hops := 0

	for {
		switch state {
		case replyResolving:
			m := e.matcherFor(ctx, req.ActingAddress)
			if req.IntendedFor == "" || m.Matches(req.IntendedFor) {
				state = replyLocalApply
				continue
			}
			hops++
			if hops > e.cfg.MaxForwardHops {
				return nil, fmt.Errorf("%w: reply resolution exceeded %d hops", ErrTooManyHops, e.cfg.MaxForwardHops)
			}
			target, err := e.dir.LookupAccount(ctx, req.IntendedFor)
			if err != nil {
				if errors.Is(err, directory.ErrNotFound) {
					return nil, fmt.Errorf("%w: intended recipient %s unknown", ErrInvalidRequest, req.IntendedFor)
				}
				return nil, fmt.Errorf("resolve intended recipient %s: %w", req.IntendedFor, err)
			}
			if target.Remote {
				remote = target
				state = replyRemoteForward
				continue
			}
			// Re-enter the pipeline on the local account the invitation
			// was meant for, following any forwarding preference.
			req.Mailbox = target.Address
			req.ActingAddress = target.Address
			req.IntendedFor = target.ForwardTo

		case replyRemoteForward:
			// Push the invite into the remote mailbox first so the replay
			// finds something to apply the reply to, then replay the reply
			// and hand back the peer's answer verbatim.
			if req.Source != nil {
				if _, err := e.sender.ForwardToPeer(ctx, remote.Address, &transport.PeerRequest{
					Op:   peerOpPushInvite,
					Body: req.Source,
				}); err != nil {
					return nil, fmt.Errorf("push invite to %s: %w", remote.Address, err)
				}
			}
			fwd := req
			fwd.Mailbox = remote.Address
			fwd.IntendedFor = ""
			resp, err := e.sender.ForwardToPeer(ctx, remote.Address, &transport.PeerRequest{
				Op:   peerOpInviteReply,
				Body: fwd,
			})
			if err != nil {
				return nil, fmt.Errorf("forward reply to %s: %w", remote.Address, err)
			}
			res.Forwarded = true
			res.PeerResponse = resp
			return res, nil

		case replyLocalApply:
			var err error
			applied, actor, notifyOrganizer, err = e.applyReply(ctx, &req, res)
			if err != nil {
				return nil, err
			}
			if notifyOrganizer {
				state = replyOrganizerNotify
			} else {
				state = replyArchived
			}

		case replyOrganizerNotify:
			if err := e.queueReplyNotice(ctx, &req, applied, actor); err != nil {
				return nil, err
			}
			state = replyArchived

		case replyArchived:
			e.archiveRepliedInvite(ctx, &req)
			return res, nil
		}
	}
}

// applyReply commits the attendee's participation change under the mailbox
// lock and reports whether the organizer should be notified.
func (e *Engine) applyReply(ctx context.Context, req *ReplyRequest, res *ReplyResult) (*invite.Invite, invite.Attendee, bool, error) {
	lock := e.mailboxLock(req.Mailbox)
	lock.Lock()
	defer lock.Unlock()

	agg, err := e.store.GetAggregate(ctx, req.Mailbox, req.UID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, invite.Attendee{}, false, fmt.Errorf("fetch aggregate %s: %w", req.UID, err)
		}
		// First contact with this uid: materialize the aggregate from the
		// invitation being answered.
		if req.Source == nil {
			return nil, invite.Attendee{}, false, fmt.Errorf("%w: no invite stored for uid %s", ErrInvalidRequest, req.UID)
		}
		if _, err := e.store.PersistInvite(ctx, req.Mailbox, req.Source, "", storage.PersistOptions{}); err != nil {
			return nil, invite.Attendee{}, false, fmt.Errorf("persist incoming invite %s: %w", req.UID, err)
		}
		agg, err = e.store.GetAggregate(ctx, req.Mailbox, req.UID)
		if err != nil {
			return nil, invite.Attendee{}, false, fmt.Errorf("refetch aggregate %s: %w", req.UID, err)
		}
	}

	if agg.Private && req.OnBehalfOf != "" && !req.AllowPrivateAccess {
		return nil, invite.Attendee{}, false, fmt.Errorf("%w: private invite", ErrPermissionDenied)
	}

	revive := agg.InTrash && req.Verb != invite.VerbDecline

	stored := agg.InviteFor(req.RecurrenceID)
	ref := stored
	if ref == nil {
		ref = agg.Master
	}
	if ref != nil {
		probe := &invite.Invite{Sequence: req.Sequence, DtStamp: req.DtStamp}
		if !probe.NewerOrEqual(ref) && !revive {
			return nil, invite.Attendee{}, false, fmt.Errorf("%w: reply sequence %d against stored %d", ErrOutOfDate, req.Sequence, ref.Sequence)
		}
	}

	// Replies always land on a concrete revision: answering one occurrence
	// of a series with no exception yet synthesizes that exception first.
	var target *invite.Invite
	switch {
	case req.RecurrenceID != nil && stored == nil:
		if agg.Master == nil {
			return nil, invite.Attendee{}, false, fmt.Errorf("%w: no series master for uid %s", ErrInvalidRequest, req.UID)
		}
		target = agg.Master.MakeInstance(*req.RecurrenceID)
	case stored != nil:
		target = stored.Clone()
	default:
		return nil, invite.Attendee{}, false, fmt.Errorf("%w: nothing stored for uid %s", ErrInvalidRequest, req.UID)
	}

	replier := req.ActingAddress
	if req.OnBehalfOf != "" {
		replier = req.OnBehalfOf
	}
	m := e.matcherFor(ctx, replier)

	at := target.MatchingAttendee(m)
	rsvpWanted := true
	if at == nil {
		target.AddAttendee(invite.Attendee{Address: replier, PartStat: invite.PartStatNeedsAction})
		at = target.AttendeeByAddress(replier)
	} else {
		rsvpWanted = at.RSVPRequested()
	}
	switch req.Verb {
	case invite.VerbAccept, invite.VerbDecline, invite.VerbTentative:
		at.PartStat = req.Verb.PartStat()
	}
	actor := *at

	pres, err := e.store.PersistInvite(ctx, req.Mailbox, target, agg.Folder, storage.PersistOptions{
		PreserveExisting: true,
		Untrash:          revive,
	})
	if err != nil {
		return nil, invite.Attendee{}, false, fmt.Errorf("persist reply for %s: %w", req.UID, err)
	}
	res.PersistResult = pres

	sentBy := ""
	if req.OnBehalfOf != "" {
		sentBy = req.ActingAddress
	}
	if err := e.store.RecordReply(ctx, req.Mailbox, req.UID, storage.ReplyRecord{
		Attendee:     actor,
		Sequence:     target.Sequence,
		DtStamp:      req.DtStamp,
		RecurrenceID: req.RecurrenceID,
		SentBy:       sentBy,
	}); err != nil {
		e.logger.Warn("ignoring error recording reply", "error", err, "uid", req.UID, "attendee", actor.Address)
	}

	notifyOrganizer := rsvpWanted &&
		!req.SuppressNotify &&
		req.Queue != nil &&
		target.Organizer != nil &&
		!target.IsOrganizedBy(m)
	return target, actor, notifyOrganizer, nil
}

// queueReplyNotice builds the REPLY-method invite and hands it to the
// notification queue addressed to the organizer.
func (e *Engine) queueReplyNotice(ctx context.Context, req *ReplyRequest, applied *invite.Invite, actor invite.Attendee) error {
	reply := applied.Clone()
	reply.Method = replyMethod(req.Verb)
	reply.DtStamp = e.now()
	reply.Attendees = []invite.Attendee{actor}
	reply.Comments = nil
	if req.Comment != "" {
		reply.Comments = []string{req.Comment}
	}

	// Subject and body render in the organizer's locale when resolvable,
	// else the actor's.
	locale := e.localeFor(ctx, applied.Organizer.Address)
	if locale == "" {
		locale = e.localeFor(ctx, req.ActingAddress)
	}
	display := actor.DisplayName
	if display == "" {
		display = actor.Address
	}

	msg, err := e.renderer.Render(ctx, notify.RenderInput{
		Template:     notify.TemplateReply,
		Invite:       reply,
		Calendar:     reply.ToICalendar(false),
		Verb:         req.Verb,
		ActorDisplay: display,
		Locale:       locale,
		Comment:      req.Comment,
	})
	if err != nil {
		return fmt.Errorf("render reply notice for %s: %w", req.UID, err)
	}

	entry := &notify.Entry{
		Recipients: []string{applied.Organizer.Address},
		Message:    msg,
		Spool:      notify.NewSpool(msg.ICalendar),
	}
	if req.MessageRef != nil {
		entry.InviteRef = *req.MessageRef
	}
	req.Queue.Add(entry)
	return nil
}

// archiveRepliedInvite moves the originating invitation message to trash
// when the account preference asks for it.  Best effort; every failure is
// swallowed.
func (e *Engine) archiveRepliedInvite(ctx context.Context, req *ReplyRequest) {
	if req.MessageRef == nil {
		return
	}
	acct, err := e.dir.LookupAccount(ctx, req.ActingAddress)
	if err != nil || !acct.ArchiveRepliedInvite {
		return
	}
	if err := e.store.MoveToFolder(ctx, *req.MessageRef, trashFolder); err != nil {
		e.logger.Debug("ignoring error archiving replied invite",
			"error", err,
			"mailbox", req.Mailbox,
			"item", req.MessageRef.ItemID)
	}
}

func replyMethod(verb invite.ReplyVerb) invite.Method {
	switch verb {
	case invite.VerbCounter:
		return invite.MethodCounter
	case invite.VerbDeclineCounter:
		return invite.MethodDeclineCounter
	default:
		return invite.MethodReply
	}
}
