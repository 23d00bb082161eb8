// Package directory defines the account/directory collaborator: account
// aliasing, group and distribution-list membership, and per-account
// preferences the scheduler consults.
package directory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an address does not resolve to a local
// account or group.
var ErrNotFound = errors.New("directory entry not found")

// Account is a local account as the directory sees it.
type Account struct {
	// Address is the canonical primary address.
	Address string
	Aliases []string

	DisplayName string
	Locale      string
	Timezone    string

	// ForwardTo is a mount/forward reference: invites addressed to this
	// account are actually handled by the referenced account, which may be
	// local or remote.  Dereferencing is hop-bounded.
	ForwardTo string
	// Remote marks an account homed on a peer server.
	Remote bool

	// ArchiveRepliedInvite is the preference to move an invitation message
	// to trash once it has been replied to.
	ArchiveRepliedInvite bool
}

// Directory is the account/directory collaborator.
type Directory interface {
	// LookupAccount resolves an address (primary or alias) to its local
	// account.  ErrNotFound means the address is external.
	LookupAccount(ctx context.Context, addr string) (*Account, error)
	// ResolveAlias maps an address to its canonical form; external
	// addresses map to themselves.
	ResolveAlias(ctx context.Context, addr string) (string, error)
	// IsGroup reports whether an address names a group or distribution
	// list.
	IsGroup(ctx context.Context, addr string) (bool, error)
	// GroupMembers returns a group's explicit (direct, non-recursive)
	// roster.
	GroupMembers(ctx context.Context, addr string) ([]string, error)
	// AccountGroups returns every group a local account belongs to,
	// including indirect membership and membership via alias.
	AccountGroups(ctx context.Context, addr string) ([]string, error)
	// AccountTimezone returns the account's preferred timezone.
	AccountTimezone(ctx context.Context, addr string) (*time.Location, error)
}
