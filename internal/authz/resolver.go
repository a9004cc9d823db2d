// Package authz answers "may the current actor perform this action on this
// resource within this scope?" and caches decisions for the lifetime of the
// (actor, organization) pair. Every failure path degrades to deny.
package authz

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 5 * time.Minute

	cacheKeySep = "\x1f"
)

// Resolver decides and caches permission checks. It holds no framework
// lifecycle of its own; the actor and organization are supplied by the
// injected providers on every call.
type Resolver struct {
	actors   ActorProvider
	orgs     OrgProvider
	override OverrideStrategy
	narrower OrgNarrower

	cacheSize int
	cacheTTL  time.Duration
	cache     *expirable.LRU[string, bool]
}

// OrgNarrower optionally refines an organization-scope decision once an
// organization context is known. Left nil, the base decision stands.
type OrgNarrower func(actor *Actor, org *OrgContext, key Key, base bool) bool

// Option configures the resolver.
type Option func(*Resolver)

// WithOverrideStrategy replaces the default pass-through entity strategy.
func WithOverrideStrategy(s OverrideStrategy) Option {
	return func(r *Resolver) {
		if s != nil {
			r.override = s
		}
	}
}

// WithOrgNarrower installs the organization-scope refinement hook.
func WithOrgNarrower(fn OrgNarrower) Option {
	return func(r *Resolver) { r.narrower = fn }
}

// WithCacheSize bounds the number of cached decisions.
func WithCacheSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.cacheSize = n
		}
	}
}

// WithCacheTTL bounds the age of cached decisions. The TTL is an operational
// bound, not the correctness mechanism: identity changes are handled by the
// composite cache key and ResetCache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// NewResolver constructs a resolver over the given providers. The actor
// provider is required; the organization provider may be nil when no
// organization context exists.
func NewResolver(actors ActorProvider, orgs OrgProvider, opts ...Option) (*Resolver, error) {
	if actors == nil {
		return nil, errors.New("authz: actor provider is required")
	}
	r := &Resolver{
		actors:    actors,
		orgs:      orgs,
		override:  PassThrough{},
		cacheSize: defaultCacheSize,
		cacheTTL:  defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = expirable.NewLRU[string, bool](r.cacheSize, nil, r.cacheTTL)
	return r, nil
}

// CheckOption refines a single check.
type CheckOption func(*checkOptions)

type checkOptions struct {
	entity *Entity
}

// WithEntity attaches an entity reference so the override strategy can narrow
// the decision.
func WithEntity(e Entity) CheckOption {
	return func(o *checkOptions) { o.entity = &e }
}

// HasPermission reports whether the current actor holds the permission. An
// absent actor resolves to false without touching the cache.
func (r *Resolver) HasPermission(ctx context.Context, key Key, opts ...CheckOption) bool {
	actor := r.actors.CurrentActor(ctx)
	if actor == nil {
		observeDecision(false)
		return false
	}
	return r.check(actor, r.currentOrg(ctx), key, gatherOptions(opts))
}

// HasAnyPermission returns true on the first key the actor holds. An empty
// list resolves to false.
func (r *Resolver) HasAnyPermission(ctx context.Context, keys []Key, opts ...CheckOption) bool {
	if len(keys) == 0 {
		return false
	}
	actor := r.actors.CurrentActor(ctx)
	if actor == nil {
		observeDecision(false)
		return false
	}
	org := r.currentOrg(ctx)
	opt := gatherOptions(opts)
	for _, key := range keys {
		if r.check(actor, org, key, opt) {
			return true
		}
	}
	return false
}

// HasAllPermissions returns false on the first key the actor lacks. An empty
// list is vacuously true.
func (r *Resolver) HasAllPermissions(ctx context.Context, keys []Key, opts ...CheckOption) bool {
	if len(keys) == 0 {
		return true
	}
	actor := r.actors.CurrentActor(ctx)
	if actor == nil {
		observeDecision(false)
		return false
	}
	org := r.currentOrg(ctx)
	opt := gatherOptions(opts)
	for _, key := range keys {
		if !r.check(actor, org, key, opt) {
			return false
		}
	}
	return true
}

// ResetCache drops every cached decision. Callers invoke it on login, logout,
// organization switch, and grant changes; the composite cache key additionally
// guarantees a new identity can never read a previous identity's entries even
// when a caller forgets.
func (r *Resolver) ResetCache() {
	r.cache.Purge()
}

func (r *Resolver) currentOrg(ctx context.Context) *OrgContext {
	if r.orgs == nil {
		return nil
	}
	return r.orgs.CurrentOrganization(ctx)
}

func (r *Resolver) check(actor *Actor, org *OrgContext, key Key, opt checkOptions) bool {
	ck := cacheKey(actor, org, key, opt.entity)
	if cached, ok := r.cache.Get(ck); ok {
		observeCacheHit()
		return cached
	}
	observeCacheMiss()

	allowed := actor.HasGrant(key.String())
	if key.Scope == ScopeOrganization && org != nil && r.narrower != nil {
		allowed = r.narrower(actor, org, key, allowed)
	}
	if opt.entity != nil {
		allowed = r.override.Narrow(actor, org, key, *opt.entity, allowed)
	}

	r.cache.Add(ck, allowed)
	observeDecision(allowed)
	return allowed
}

// cacheKey scopes every entry to the (actor, organization) pair so stale
// decisions cannot leak across identity changes. Entity-qualified checks are
// cached separately from their organization-scope base.
func cacheKey(actor *Actor, org *OrgContext, key Key, entity *Entity) string {
	orgID := ""
	if org != nil {
		orgID = org.ID
	}
	ck := actor.ID + cacheKeySep + orgID + cacheKeySep + key.String()
	if entity != nil {
		ck += cacheKeySep + entity.Type + cacheKeySep + entity.ID
	}
	return ck
}

func gatherOptions(opts []CheckOption) checkOptions {
	var o checkOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
