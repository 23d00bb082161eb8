// Package address provides case-insensitive email address identity helpers.
// Attendee and organizer equality throughout the scheduler is address
// identity, not display identity.
package address

import "strings"

// Canonical normalizes an address for identity comparison.
func Canonical(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Equal reports whether two addresses share the same identity.
func Equal(a, b string) bool {
	return Canonical(a) == Canonical(b)
}

// Matcher matches an address against a local account's full set of known
// addresses (primary plus aliases).
type Matcher struct {
	known map[string]struct{}
}

// NewMatcher builds a Matcher for a primary address and its aliases.
func NewMatcher(primary string, aliases ...string) *Matcher {
	known := make(map[string]struct{}, len(aliases)+1)
	if primary != "" {
		known[Canonical(primary)] = struct{}{}
	}
	for _, alias := range aliases {
		if alias != "" {
			known[Canonical(alias)] = struct{}{}
		}
	}
	return &Matcher{known: known}
}

// Matches reports whether addr is one of the account's addresses.
func (m *Matcher) Matches(addr string) bool {
	if addr == "" {
		return false
	}
	_, ok := m.known[Canonical(addr)]
	return ok
}

// Set converts a list of addresses into a canonical lookup set.
func Set(addrs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		if a != "" {
			set[Canonical(a)] = struct{}{}
		}
	}
	return set
}
