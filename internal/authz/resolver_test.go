package authz

import (
	"context"
	"testing"
)

type session struct {
	actor *Actor
	org   *OrgContext
}

func (s *session) CurrentActor(context.Context) *Actor             { return s.actor }
func (s *session) CurrentOrganization(context.Context) *OrgContext { return s.org }

func newTestResolver(t *testing.T, s *session, opts ...Option) *Resolver {
	t.Helper()
	r, err := NewResolver(s, s, opts...)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

var (
	updateRates = Key{Action: "update", Resource: "rates", Scope: ScopeOrganization}
	deleteRates = Key{Action: "delete", Resource: "rates", Scope: ScopeOrganization}
	viewRates   = Key{Action: "view", Resource: "rates", Scope: ScopeOrganization}
)

func TestKeyCanonicalForm(t *testing.T) {
	if got := updateRates.String(); got != "update:rates:organization" {
		t.Fatalf("unexpected canonical form: %s", got)
	}
	parsed, err := ParseKey(" Update : Rates : Organization ")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if parsed != updateRates {
		t.Fatalf("ParseKey mismatch: %+v", parsed)
	}
	for _, malformed := range []string{"", "update", "update:rates", "update::organization", "a:b:c:d"} {
		if _, err := ParseKey(malformed); err == nil {
			t.Fatalf("expected error for %q", malformed)
		}
	}
}

func TestHasPermissionDeniesWithoutActor(t *testing.T) {
	r := newTestResolver(t, &session{})

	if r.HasPermission(context.Background(), updateRates) {
		t.Fatal("expected deny for unauthenticated caller")
	}
	if r.HasAnyPermission(context.Background(), []Key{updateRates}) {
		t.Fatal("expected HasAnyPermission deny for unauthenticated caller")
	}
	if r.HasAllPermissions(context.Background(), []Key{updateRates}) {
		t.Fatal("expected HasAllPermissions deny for unauthenticated caller")
	}
	if r.cache.Len() != 0 {
		t.Fatalf("cache must stay empty without an actor, has %d entries", r.cache.Len())
	}
}

func TestConcreteRateScenario(t *testing.T) {
	s := &session{
		actor: NewActor("a-1", "org-1", "rate_admin", []string{"update:rates:organization"}),
		org:   &OrgContext{ID: "org-1", Kind: OrgKindLawFirm},
	}
	r := newTestResolver(t, s)
	ctx := context.Background()

	if !r.HasPermission(ctx, updateRates) {
		t.Fatal("expected update:rates:organization to be allowed")
	}
	if r.HasPermission(ctx, deleteRates) {
		t.Fatal("expected delete:rates:organization to be denied")
	}
	if r.HasAllPermissions(ctx, []Key{updateRates, deleteRates}) {
		t.Fatal("expected HasAllPermissions to be false")
	}
	if !r.HasAnyPermission(ctx, []Key{updateRates, deleteRates}) {
		t.Fatal("expected HasAnyPermission to be true")
	}
}

func TestEmptyKeyLists(t *testing.T) {
	s := &session{actor: NewActor("a-1", "org-1", "viewer", nil)}
	r := newTestResolver(t, s)

	if r.HasAnyPermission(context.Background(), nil) {
		t.Fatal("HasAnyPermission(nil) must be false")
	}
	if !r.HasAllPermissions(context.Background(), nil) {
		t.Fatal("HasAllPermissions(nil) must be vacuously true")
	}
}

func TestDecisionCachedWithoutRecomputation(t *testing.T) {
	s := &session{
		actor: NewActor("a-1", "org-1", "rate_admin", []string{updateRates.String()}),
		org:   &OrgContext{ID: "org-1", Kind: OrgKindClient},
	}
	computes := 0
	r := newTestResolver(t, s, WithOrgNarrower(func(_ *Actor, _ *OrgContext, _ Key, base bool) bool {
		computes++
		return base
	}))
	ctx := context.Background()

	r.ResetCache()
	if !r.HasPermission(ctx, updateRates) {
		t.Fatal("expected allow")
	}
	if computes != 1 {
		t.Fatalf("expected one computation, got %d", computes)
	}
	if !r.HasPermission(ctx, updateRates) {
		t.Fatal("expected cached allow")
	}
	if computes != 1 {
		t.Fatalf("second call must hit the cache, computations=%d", computes)
	}

	r.ResetCache()
	if !r.HasPermission(ctx, updateRates) {
		t.Fatal("expected allow after reset")
	}
	if computes != 2 {
		t.Fatalf("expected recomputation after ResetCache, got %d", computes)
	}
}

func TestShortCircuitEvaluation(t *testing.T) {
	s := &session{
		actor: NewActor("a-1", "org-1", "rate_admin", []string{updateRates.String()}),
		org:   &OrgContext{ID: "org-1", Kind: OrgKindLawFirm},
	}
	computes := 0
	r := newTestResolver(t, s, WithOrgNarrower(func(_ *Actor, _ *OrgContext, _ Key, base bool) bool {
		computes++
		return base
	}))
	ctx := context.Background()

	if !r.HasAnyPermission(ctx, []Key{updateRates, deleteRates}) {
		t.Fatal("expected HasAnyPermission true")
	}
	if computes != 1 {
		t.Fatalf("HasAnyPermission must stop after the first allow, computations=%d", computes)
	}

	r.ResetCache()
	computes = 0
	if r.HasAllPermissions(ctx, []Key{deleteRates, updateRates, viewRates}) {
		t.Fatal("expected HasAllPermissions false")
	}
	if computes != 1 {
		t.Fatalf("HasAllPermissions must stop after the first deny, computations=%d", computes)
	}
}

func TestNoStaleDecisionsAcrossIdentityChange(t *testing.T) {
	s := &session{
		actor: NewActor("a-1", "org-1", "rate_admin", []string{updateRates.String()}),
		org:   &OrgContext{ID: "org-1", Kind: OrgKindLawFirm},
	}
	r := newTestResolver(t, s)
	ctx := context.Background()

	if !r.HasPermission(ctx, updateRates) {
		t.Fatal("expected allow for first actor")
	}

	// A different actor must not observe cached decisions even when the
	// caller forgets to reset: entries are keyed by (actor, org) pair.
	s.actor = NewActor("a-2", "org-1", "viewer", nil)
	if r.HasPermission(ctx, updateRates) {
		t.Fatal("second actor observed a stale cached allow")
	}

	// The same actor id with a refreshed (narrowed) grant set re-resolves
	// after an explicit reset.
	s.actor = NewActor("a-1", "org-1", "viewer", nil)
	r.ResetCache()
	if r.HasPermission(ctx, updateRates) {
		t.Fatal("expected deny after grants were revoked and cache reset")
	}
}

type denyNegotiationsOverride struct {
	calls int
}

func (o *denyNegotiationsOverride) Narrow(_ *Actor, _ *OrgContext, _ Key, entity Entity, base bool) bool {
	o.calls++
	if entity.Type == "negotiation" {
		return false
	}
	return base
}

func TestEntityOverrideStrategy(t *testing.T) {
	s := &session{
		actor: NewActor("a-1", "org-1", "rate_admin", []string{updateRates.String()}),
		org:   &OrgContext{ID: "org-1", Kind: OrgKindClient},
	}
	override := &denyNegotiationsOverride{}
	r := newTestResolver(t, s, WithOverrideStrategy(override))
	ctx := context.Background()

	// Checks without an entity never consult the strategy.
	if !r.HasPermission(ctx, updateRates) {
		t.Fatal("expected base allow")
	}
	if override.calls != 0 {
		t.Fatalf("strategy consulted without an entity: %d calls", override.calls)
	}

	// Entity-qualified checks are narrowed and cached separately.
	entity := Entity{Type: "negotiation", ID: "neg-7", OwnerOrganizationID: "org-2"}
	if r.HasPermission(ctx, updateRates, WithEntity(entity)) {
		t.Fatal("expected override to deny negotiation entity")
	}
	if override.calls != 1 {
		t.Fatalf("expected one strategy call, got %d", override.calls)
	}
	if !r.HasPermission(ctx, updateRates) {
		t.Fatal("entity-qualified deny leaked into the base decision")
	}
}

func TestDefaultOverrideIsPassThrough(t *testing.T) {
	s := &session{
		actor: NewActor("a-1", "org-1", "rate_admin", []string{updateRates.String()}),
	}
	r := newTestResolver(t, s)
	entity := Entity{Type: "rate", ID: "rate-3"}
	if !r.HasPermission(context.Background(), updateRates, WithEntity(entity)) {
		t.Fatal("pass-through override must keep the base allow")
	}
}
