package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

var _ Store = (*CachedStore)(nil)

// CachedStore is a Redis read-through decorator over a Store. Reads of hot
// lookups (actors, organizations, grant sets) are cached; every write
// invalidates the affected keys so the resolver never sees grants older than
// one TTL after a directory change.
type CachedStore struct {
	Store
	redis *redis.Client
	ttl   map[string]time.Duration
}

// NewCachedStore connects to Redis and wraps the inner store. The connection
// is verified eagerly so a misconfigured address fails at startup.
func NewCachedStore(ctx context.Context, inner Store, addr, password string) (*CachedStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return newCachedStore(inner, client), nil
}

func newCachedStore(inner Store, client *redis.Client) *CachedStore {
	return &CachedStore{
		Store: inner,
		redis: client,
		ttl: map[string]time.Duration{
			"actor":  5 * time.Minute,
			"org":    15 * time.Minute,
			"grants": 1 * time.Minute,
		},
	}
}

// Close releases the Redis connection.
func (c *CachedStore) Close() error {
	return c.redis.Close()
}

func (c *CachedStore) GetActor(ctx context.Context, id string) (Actor, error) {
	key := "actor:" + id
	var actor Actor
	if c.readCached(ctx, key, &actor) {
		return actor, nil
	}
	actor, err := c.Store.GetActor(ctx, id)
	if err != nil {
		return Actor{}, err
	}
	c.writeCached(ctx, key, actor, c.ttl["actor"])
	return actor, nil
}

func (c *CachedStore) GetOrganization(ctx context.Context, id string) (Organization, error) {
	key := "org:" + id
	var org Organization
	if c.readCached(ctx, key, &org) {
		return org, nil
	}
	org, err := c.Store.GetOrganization(ctx, id)
	if err != nil {
		return Organization{}, err
	}
	c.writeCached(ctx, key, org, c.ttl["org"])
	return org, nil
}

func (c *CachedStore) ActorGrants(ctx context.Context, actorID string) ([]string, error) {
	key := "grants:" + actorID
	var grants []string
	if c.readCached(ctx, key, &grants) {
		return grants, nil
	}
	grants, err := c.Store.ActorGrants(ctx, actorID)
	if err != nil {
		return nil, err
	}
	c.writeCached(ctx, key, grants, c.ttl["grants"])
	return grants, nil
}

func (c *CachedStore) CreateActor(ctx context.Context, actor *Actor) error {
	if err := c.Store.CreateActor(ctx, actor); err != nil {
		return err
	}
	c.redis.Del(ctx, "actor:"+actor.ID)
	return nil
}

func (c *CachedStore) UpdateActorRole(ctx context.Context, actorID, role string) error {
	if err := c.Store.UpdateActorRole(ctx, actorID, role); err != nil {
		return err
	}
	c.redis.Del(ctx, "actor:"+actorID, "grants:"+actorID)
	return nil
}

func (c *CachedStore) AssignRole(ctx context.Context, a Assignment) error {
	if err := c.Store.AssignRole(ctx, a); err != nil {
		return err
	}
	c.redis.Del(ctx, "grants:"+a.ActorID)
	return nil
}

// SetRolePermissions changes grants for every actor holding the role; the
// grant keys are per-actor, so drop them all rather than track membership.
func (c *CachedStore) SetRolePermissions(ctx context.Context, roleID string, keys []string) error {
	if err := c.Store.SetRolePermissions(ctx, roleID, keys); err != nil {
		return err
	}
	c.dropByPattern(ctx, "grants:*")
	return nil
}

func (c *CachedStore) readCached(ctx context.Context, key string, out any) bool {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (c *CachedStore) writeCached(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.redis.Set(ctx, key, data, ttl)
}

func (c *CachedStore) dropByPattern(ctx context.Context, pattern string) {
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		c.redis.Del(ctx, iter.Val())
	}
}
