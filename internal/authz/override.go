package authz

// Entity references a concrete object (one rate, one negotiation) whose
// ownership or state may refine a scope-level decision.
type Entity struct {
	Type                string
	ID                  string
	OwnerOrganizationID string
}

// OverrideStrategy narrows a base decision using an entity reference. The
// product rule for entity ownership is still unresolved, so the strategy is
// pluggable: callers never change when a real rule lands.
type OverrideStrategy interface {
	Narrow(actor *Actor, org *OrgContext, key Key, entity Entity, base bool) bool
}

// PassThrough returns the base decision untouched. It is the default strategy.
type PassThrough struct{}

func (PassThrough) Narrow(_ *Actor, _ *OrgContext, _ Key, _ Entity, base bool) bool {
	return base
}
