package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/schedora/schedora/internal/address"
	"github.com/schedora/schedora/scheduler/directory"
	"github.com/schedora/schedora/scheduler/invite"
	"github.com/schedora/schedora/scheduler/notify"
	"github.com/schedora/schedora/scheduler/storage"
)

// Removed diffs two attendee lists and returns the prior attendees no
// longer present in the updated list.  Local accounts match through their
// directory aliases.  When expandGroups is set, a nominally removed
// attendee still reachable through a group or distribution list kept in the
// updated list is excluded from the result: group rosters are consulted
// lazily with a short-circuit once the candidate set empties, local
// candidates intersect their own memberships against the kept groups, and
// remote candidates are checked against each group's direct roster only.
func (e *Engine) Removed(ctx context.Context, prior, updated []invite.Attendee, expandGroups bool) ([]invite.Attendee, error) {
	if len(prior) == 0 {
		return nil, nil
	}

	canon := func(addr string) string {
		resolved, err := e.dir.ResolveAlias(ctx, addr)
		if err != nil {
			return address.Canonical(addr)
		}
		return address.Canonical(resolved)
	}

	kept := make(map[string]struct{}, len(updated))
	for _, at := range updated {
		kept[canon(at.Address)] = struct{}{}
	}

	var candidates []invite.Attendee
	for _, at := range prior {
		if _, ok := kept[canon(at.Address)]; !ok {
			candidates = append(candidates, at)
		}
	}
	if len(candidates) == 0 || !expandGroups {
		return candidates, nil
	}

	// Collect the group addresses kept in the updated list.  The expensive
	// roster lookups below are skipped entirely when there are none.
	groups := make(map[string]struct{})
	for _, at := range updated {
		isGroup, err := e.dir.IsGroup(ctx, at.Address)
		if err != nil {
			return nil, fmt.Errorf("resolve group %s: %w", at.Address, err)
		}
		if isGroup {
			groups[canon(at.Address)] = struct{}{}
		}
	}
	if len(groups) == 0 {
		return candidates, nil
	}

	rosters := make(map[string]map[string]struct{})
	roster := func(group string) (map[string]struct{}, error) {
		if r, ok := rosters[group]; ok {
			return r, nil
		}
		members, err := e.dir.GroupMembers(ctx, group)
		if err != nil {
			return nil, fmt.Errorf("expand group %s: %w", group, err)
		}
		r := make(map[string]struct{}, len(members))
		for _, m := range members {
			r[canon(m)] = struct{}{}
		}
		rosters[group] = r
		return r, nil
	}

	var removed []invite.Attendee
	for _, cand := range candidates {
		addr := canon(cand.Address)
		acct, err := e.dir.LookupAccount(ctx, cand.Address)
		switch {
		case err == nil && !acct.Remote:
			// Local account: intersect its own memberships, indirect
			// included, against the kept groups.
			memberships, err := e.dir.AccountGroups(ctx, cand.Address)
			if err != nil {
				return nil, fmt.Errorf("memberships of %s: %w", cand.Address, err)
			}
			if intersectsGroups(memberships, groups, canon) {
				continue
			}
		case err == nil || errors.Is(err, directory.ErrNotFound):
			// Remote or external: only a direct roster entry absorbs the
			// removal.
			covered := false
			for group := range groups {
				r, err := roster(group)
				if err != nil {
					return nil, err
				}
				if _, ok := r[addr]; ok {
					covered = true
					break
				}
			}
			if covered {
				continue
			}
		default:
			return nil, fmt.Errorf("resolve account %s: %w", cand.Address, err)
		}
		removed = append(removed, cand)
	}
	return removed, nil
}

// Added returns the attendees present only in the updated list: the same
// algorithm as Removed with the arguments reversed.
func (e *Engine) Added(ctx context.Context, prior, updated []invite.Attendee, expandGroups bool) ([]invite.Attendee, error) {
	return e.Removed(ctx, updated, prior, expandGroups)
}

func intersectsGroups(memberships []string, groups map[string]struct{}, canon func(string) string) bool {
	for _, m := range memberships {
		if _, ok := groups[canon(m)]; ok {
			return true
		}
	}
	return false
}

// ReconcileRequest is one create/modify action against a mailbox.
type ReconcileRequest struct {
	Mailbox string
	Folder  string
	// Invite is the new revision, series master or exception.
	Invite *invite.Invite
	// ExpandGroups enables group-coverage absorption in the attendee diff.
	ExpandGroups bool
	// IgnorePast skips exception instances already in the past during
	// exception reconciliation.
	IgnorePast bool
	// ReplaceExceptions drops existing exceptions instead of carrying them
	// through a series master edit.
	ReplaceExceptions bool
	// Queue receives the attendee notifications implied by this edit; nil
	// suppresses notification.
	Queue *notify.Queue
	// ActingAddress is the account executing the edit.
	ActingAddress string
	// AllowPrivateAccess keeps private content visible in notices.
	AllowPrivateAccess bool
}

// ReconcileResult reports where the new revision landed and the attendee
// delta the edit produced.
type ReconcileResult struct {
	storage.PersistResult
	Added   []invite.Attendee
	Removed []invite.Attendee
}

// ReconcileAndPersist commits one invite revision: it diffs attendees
// against the stored revision, rejects stale sequences, persists under the
// mailbox lock, carries the attendee delta into sibling exceptions when a
// series master changed, and queues invite/cancel notices for the delta.
// Notifications are queued, not sent; flush the queue after the request
// commits.
//
// A storage failure during the exception carry-over aborts the remaining
// exceptions and surfaces immediately; already persisted exceptions are not
// rolled back.
func (e *Engine) ReconcileAndPersist(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	if req.Invite == nil {
		return nil, fmt.Errorf("%w: no invite", ErrInvalidRequest)
	}
	inv := req.Invite

	lock := e.mailboxLock(req.Mailbox)
	lock.Lock()

	agg, err := e.store.GetAggregate(ctx, req.Mailbox, inv.UID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		lock.Unlock()
		return nil, fmt.Errorf("fetch aggregate %s: %w", inv.UID, err)
	}

	var stored *invite.Invite
	hadExceptions := false
	if agg != nil {
		stored = agg.InviteFor(inv.RecurrenceID)
		hadExceptions = len(agg.Exceptions) > 0
	}
	if stored != nil && !inv.NewerOrEqual(stored) {
		lock.Unlock()
		return nil, fmt.Errorf("%w: sequence %d behind stored %d", ErrOutOfDate, inv.Sequence, stored.Sequence)
	}

	var oldAttendees []invite.Attendee
	if stored != nil {
		oldAttendees = stored.Attendees
	}
	removed, err := e.Removed(ctx, oldAttendees, inv.Attendees, req.ExpandGroups)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	added, err := e.Added(ctx, oldAttendees, inv.Attendees, req.ExpandGroups)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	preserve := inv.IsException() || (hadExceptions && !req.ReplaceExceptions)
	res, err := e.store.PersistInvite(ctx, req.Mailbox, inv, req.Folder, storage.PersistOptions{
		PreserveExisting: preserve,
	})
	lock.Unlock()
	if err != nil {
		return nil, fmt.Errorf("persist %s: %w", inv.UID, err)
	}

	// A master edit that changed the attendee set carries the delta into
	// every surviving exception, each under its own lock acquisition.
	if !inv.IsException() && preserve && (len(added) > 0 || len(removed) > 0) {
		if err := e.ReconcileExceptions(ctx, req.Mailbox, inv.UID, added, removed, req.IgnorePast); err != nil {
			return nil, err
		}
	}

	if req.Queue != nil {
		e.queueEditNotices(ctx, req, added, removed)
	}

	return &ReconcileResult{PersistResult: res, Added: added, Removed: removed}, nil
}

// ReconcileExceptions applies an added/removed attendee delta to every
// exception of a series, one at a time.  The aggregate is re-fetched from
// storage inside each iteration's lock window, because persisting one
// exception may relocate the backing storage of the others.  The first
// storage failure aborts the remainder; prior persists stand.
func (e *Engine) ReconcileExceptions(ctx context.Context, mailbox, uid string, added, removed []invite.Attendee, ignorePast bool) error {
	agg, err := e.store.GetAggregate(ctx, mailbox, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("fetch aggregate %s: %w", uid, err)
	}

	keys := make([]string, 0, len(agg.Exceptions))
	for key := range agg.Exceptions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	now := e.now()
	lock := e.mailboxLock(mailbox)
	for _, key := range keys {
		if err := e.reconcileOneException(ctx, lock, mailbox, uid, key, added, removed, ignorePast, now); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) reconcileOneException(ctx context.Context, lock *sync.Mutex, mailbox, uid, key string, added, removed []invite.Attendee, ignorePast bool, now time.Time) error {
	lock.Lock()
	defer lock.Unlock()

	agg, err := e.store.GetAggregate(ctx, mailbox, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("refetch aggregate %s: %w", uid, err)
	}
	exc, ok := agg.Exceptions[key]
	if !ok {
		return nil
	}

	if ignorePast && pastOccurrence(exc, now) {
		return nil
	}

	next := exc.Clone()
	hadAttendees := len(next.Attendees) > 0
	changed := false
	for _, rm := range removed {
		if dropAttendee(next, rm) {
			changed = true
		}
	}
	for _, add := range added {
		before := len(next.Attendees)
		next.AddAttendee(add)
		if len(next.Attendees) != before {
			changed = true
		}
	}
	if !changed {
		return nil
	}

	if !hadAttendees && len(next.Attendees) > 0 && next.Method == invite.MethodPublish {
		next.Method = invite.MethodRequest
	}
	next.DtStamp = now

	if _, err := e.store.PersistInvite(ctx, mailbox, next, agg.Folder, storage.PersistOptions{PreserveExisting: true}); err != nil {
		return fmt.Errorf("persist exception %s of %s: %w", key, uid, err)
	}
	return nil
}

// pastOccurrence reports whether an invite's occurrence lies before now,
// with one day of slack for all-day items.
func pastOccurrence(inv *invite.Invite, now time.Time) bool {
	cutoff := now
	if inv.AllDay {
		cutoff = cutoff.AddDate(0, 0, -1)
	}
	at := inv.OccurrenceInstant()
	return !at.IsZero() && at.Before(cutoff)
}

func dropAttendee(inv *invite.Invite, at invite.Attendee) bool {
	for i, have := range inv.Attendees {
		if have.SameAddress(at) {
			inv.Attendees = append(inv.Attendees[:i], inv.Attendees[i+1:]...)
			return true
		}
	}
	return false
}

// queueEditNotices queues the notifications an edit implies: the current
// revision to added attendees, a cancellation to removed ones.  Queue
// failures are logged and never fail the committed edit.
func (e *Engine) queueEditNotices(ctx context.Context, req ReconcileRequest, added, removed []invite.Attendee) {
	redact := !req.Invite.IsPublic() && !req.AllowPrivateAccess
	locale := e.localeFor(ctx, req.ActingAddress)

	if len(added) > 0 {
		tmpl := notify.TemplateInvite
		if req.Invite.Sequence > 0 {
			tmpl = notify.TemplateUpdate
		}
		msg, err := e.renderer.Render(ctx, notify.RenderInput{
			Template: tmpl,
			Invite:   req.Invite,
			Calendar: req.Invite.ToICalendar(redact),
			Locale:   locale,
		})
		if err != nil {
			e.logger.Warn("skipping invite notice", "error", err, "uid", req.Invite.UID)
		} else {
			req.Queue.Add(&notify.Entry{
				Recipients: attendeeAddresses(added),
				Message:    msg,
				Spool:      notify.NewSpool(msg.ICalendar),
			})
		}
	}

	if len(removed) > 0 {
		if err := e.NotifyRemovedAttendees(ctx, RemovalNotice{
			Mailbox:            req.Mailbox,
			ActingAddress:      req.ActingAddress,
			Source:             req.Invite,
			Removed:            removed,
			AllowPrivateAccess: req.AllowPrivateAccess,
			Queue:              req.Queue,
		}); err != nil {
			e.logger.Warn("skipping removal notice", "error", err, "uid", req.Invite.UID)
		}
	}
}

func attendeeAddresses(attendees []invite.Attendee) []string {
	out := make([]string, 0, len(attendees))
	for _, at := range attendees {
		out = append(out, at.Address)
	}
	return out
}
