package authz

import (
	"fmt"
	"strings"
)

// Scope is the breadth at which a permission applies.
type Scope string

const (
	// ScopeOrganization applies across the actor's whole organization.
	ScopeOrganization Scope = "organization"
	// ScopeEntity applies to a single entity such as one rate or negotiation.
	ScopeEntity Scope = "entity"
)

// Key identifies a capability as a closed (action, resource, scope) triple.
// It replaces ad-hoc string concatenation so keys cannot collide or drift.
type Key struct {
	Action   string
	Resource string
	Scope    Scope
}

// String returns the canonical "action:resource:scope" form used for grant
// lookups and cache keys. It is pure and total: any Key maps to exactly one
// string.
func (k Key) String() string {
	return k.Action + ":" + k.Resource + ":" + string(k.Scope)
}

// Valid reports whether all three components are present.
func (k Key) Valid() bool {
	return k.Action != "" && k.Resource != "" && k.Scope != ""
}

// ParseKey converts the canonical string form back into a Key. Components are
// trimmed and lower-cased; all three must be non-empty.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("authz: malformed permission key %q", s)
	}
	k := Key{
		Action:   strings.TrimSpace(strings.ToLower(parts[0])),
		Resource: strings.TrimSpace(strings.ToLower(parts[1])),
		Scope:    Scope(strings.TrimSpace(strings.ToLower(parts[2]))),
	}
	if !k.Valid() {
		return Key{}, fmt.Errorf("authz: malformed permission key %q", s)
	}
	return k, nil
}
