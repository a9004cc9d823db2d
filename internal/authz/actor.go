package authz

import "context"

// Actor is the authenticated identity on whose behalf decisions are made.
// It is replaced wholesale on re-authentication; the permission set changes
// only on explicit profile refresh.
type Actor struct {
	ID             string
	OrganizationID string
	Role           string
	Permissions    map[string]struct{}
}

// NewActor builds an actor with its flat grant set preloaded.
func NewActor(id, organizationID, role string, grants []string) *Actor {
	set := make(map[string]struct{}, len(grants))
	for _, g := range grants {
		set[g] = struct{}{}
	}
	return &Actor{
		ID:             id,
		OrganizationID: organizationID,
		Role:           role,
		Permissions:    set,
	}
}

// HasGrant reports whether the actor's permission set contains the canonical key.
func (a *Actor) HasGrant(key string) bool {
	if a == nil {
		return false
	}
	_, ok := a.Permissions[key]
	return ok
}

// OrgKind distinguishes the two organization flavours of the platform.
type OrgKind string

const (
	OrgKindClient  OrgKind = "client"
	OrgKindLawFirm OrgKind = "law_firm"
)

// OrgContext is the organization the actor currently operates within.
type OrgContext struct {
	ID       string
	Kind     OrgKind
	Settings map[string]any
}

// ActorProvider supplies the current actor. A nil actor means the caller is
// unauthenticated; the resolver treats that as "no permissions", not an error.
type ActorProvider interface {
	CurrentActor(ctx context.Context) *Actor
}

// OrgProvider supplies the organization context, or nil when none is active.
type OrgProvider interface {
	CurrentOrganization(ctx context.Context) *OrgContext
}

// ActorProviderFunc adapts a function to the ActorProvider interface.
type ActorProviderFunc func(ctx context.Context) *Actor

func (f ActorProviderFunc) CurrentActor(ctx context.Context) *Actor { return f(ctx) }

// OrgProviderFunc adapts a function to the OrgProvider interface.
type OrgProviderFunc func(ctx context.Context) *OrgContext

func (f OrgProviderFunc) CurrentOrganization(ctx context.Context) *OrgContext { return f(ctx) }
