// Package memory is an in-memory directory backend for testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/schedora/schedora/internal/address"
	"github.com/schedora/schedora/scheduler/directory"
)

// Directory implements directory.Directory with static maps.
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]*directory.Account // canonical address -> account
	aliases  map[string]string             // alias -> canonical address
	groups   map[string][]string           // group address -> direct roster
}

// New creates an empty in-memory directory.
func New() *Directory {
	return &Directory{
		accounts: make(map[string]*directory.Account),
		aliases:  make(map[string]string),
		groups:   make(map[string][]string),
	}
}

// AddAccount registers a local account and its aliases.
func (d *Directory) AddAccount(acct directory.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	canonical := address.Canonical(acct.Address)
	d.accounts[canonical] = &acct
	for _, alias := range acct.Aliases {
		d.aliases[address.Canonical(alias)] = canonical
	}
}

// AddGroup registers a group and its direct roster.
func (d *Directory) AddGroup(addr string, members ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[address.Canonical(addr)] = members
}

func (d *Directory) lookup(addr string) (*directory.Account, bool) {
	canonical := address.Canonical(addr)
	if target, ok := d.aliases[canonical]; ok {
		canonical = target
	}
	acct, ok := d.accounts[canonical]
	return acct, ok
}

func (d *Directory) LookupAccount(_ context.Context, addr string) (*directory.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acct, ok := d.lookup(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", directory.ErrNotFound, addr)
	}
	dup := *acct
	return &dup, nil
}

func (d *Directory) ResolveAlias(_ context.Context, addr string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if acct, ok := d.lookup(addr); ok {
		return acct.Address, nil
	}
	return address.Canonical(addr), nil
}

func (d *Directory) IsGroup(_ context.Context, addr string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.groups[address.Canonical(addr)]
	return ok, nil
}

func (d *Directory) GroupMembers(_ context.Context, addr string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	members, ok := d.groups[address.Canonical(addr)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", directory.ErrNotFound, addr)
	}
	return append([]string(nil), members...), nil
}

// AccountGroups walks the group graph so indirect membership and
// membership via alias are both covered.
func (d *Directory) AccountGroups(_ context.Context, addr string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	identities := address.Set([]string{addr})
	if acct, ok := d.lookup(addr); ok {
		identities[address.Canonical(acct.Address)] = struct{}{}
		for _, alias := range acct.Aliases {
			identities[address.Canonical(alias)] = struct{}{}
		}
	}

	var direct []string
	for group, members := range d.groups {
		for _, m := range members {
			if _, ok := identities[address.Canonical(m)]; ok {
				direct = append(direct, group)
				break
			}
		}
	}

	// Expand indirect membership: a group containing a matched group.
	seen := address.Set(direct)
	queue := append([]string(nil), direct...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for group, members := range d.groups {
			if _, ok := seen[group]; ok {
				continue
			}
			for _, m := range members {
				if address.Equal(m, current) {
					seen[group] = struct{}{}
					queue = append(queue, group)
					break
				}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	return out, nil
}

func (d *Directory) AccountTimezone(_ context.Context, addr string) (*time.Location, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acct, ok := d.lookup(addr)
	if !ok || acct.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(acct.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", acct.Timezone, err)
	}
	return loc, nil
}
