package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs tests and the
// zero-dependency development mode of the API server.
type MemoryStore struct {
	mu          sync.RWMutex
	orgs        map[string]Organization
	actors      map[string]Actor
	roles       map[string]Role
	rolePerms   map[string][]string
	assignments map[string][]Assignment
	tokens      map[string]RefreshToken
	audit       []AuditEntry
}

// NewInMemory constructs an empty MemoryStore.
func NewInMemory() *MemoryStore {
	return &MemoryStore{
		orgs:        make(map[string]Organization),
		actors:      make(map[string]Actor),
		roles:       make(map[string]Role),
		rolePerms:   make(map[string][]string),
		assignments: make(map[string][]Assignment),
		tokens:      make(map[string]RefreshToken),
	}
}

func (m *MemoryStore) CreateOrganization(ctx context.Context, org *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[org.ID]; ok {
		return ErrConflict
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	m.orgs[org.ID] = *org
	return nil
}

func (m *MemoryStore) GetOrganization(ctx context.Context, id string) (Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	org, ok := m.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

func (m *MemoryStore) ListOrganizations(ctx context.Context) ([]Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Organization, 0, len(m.orgs))
	for _, org := range m.orgs {
		out = append(out, org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateActor(ctx context.Context, actor *Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actors[actor.ID]; ok {
		return ErrConflict
	}
	for _, existing := range m.actors {
		if strings.EqualFold(existing.Email, actor.Email) {
			return ErrConflict
		}
	}
	if _, ok := m.orgs[actor.OrganizationID]; !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	actor.CreatedAt = now
	actor.UpdatedAt = now
	m.actors[actor.ID] = *actor
	return nil
}

func (m *MemoryStore) GetActor(ctx context.Context, id string) (Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	actor, ok := m.actors[id]
	if !ok {
		return Actor{}, ErrNotFound
	}
	return actor, nil
}

func (m *MemoryStore) FindActorByEmail(ctx context.Context, email string) (Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, actor := range m.actors {
		if strings.EqualFold(actor.Email, email) {
			return actor, nil
		}
	}
	return Actor{}, ErrNotFound
}

func (m *MemoryStore) ListActors(ctx context.Context, organizationID string) ([]Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Actor
	for _, actor := range m.actors {
		if actor.OrganizationID == organizationID {
			out = append(out, actor)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateActorRole(ctx context.Context, actorID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	actor, ok := m.actors[actorID]
	if !ok {
		return ErrNotFound
	}
	actor.Role = role
	actor.UpdatedAt = time.Now().UTC()
	m.actors[actorID] = actor
	return nil
}

func (m *MemoryStore) CreateRole(ctx context.Context, role *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.roles {
		if existing.OrganizationID == role.OrganizationID && existing.Name == role.Name {
			return ErrConflict
		}
	}
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	m.roles[role.ID] = *role
	return nil
}

func (m *MemoryStore) SetRolePermissions(ctx context.Context, roleID string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return ErrNotFound
	}
	m.rolePerms[roleID] = append([]string(nil), keys...)
	return nil
}

func (m *MemoryStore) AssignRole(ctx context.Context, a Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actors[a.ActorID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.roles[a.RoleID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.assignments[a.ActorID] {
		if existing.RoleID == a.RoleID {
			return ErrConflict
		}
	}
	a.CreatedAt = time.Now().UTC()
	m.assignments[a.ActorID] = append(m.assignments[a.ActorID], a)
	return nil
}

func (m *MemoryStore) ActorGrants(ctx context.Context, actorID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := map[string]struct{}{}
	for _, a := range m.assignments[actorID] {
		for _, key := range m.rolePerms[a.RoleID] {
			set[key] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) CreateRefreshToken(ctx context.Context, tok *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok.CreatedAt = time.Now().UTC()
	m.tokens[tok.ID] = *tok
	return nil
}

func (m *MemoryStore) FindRefreshToken(ctx context.Context, id string) (RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.tokens[id]
	if !ok {
		return RefreshToken{}, ErrNotFound
	}
	return tok, nil
}

func (m *MemoryStore) RevokeRefreshToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[id]
	if !ok {
		return ErrNotFound
	}
	tok.Revoked = true
	m.tokens[id] = tok
	return nil
}

func (m *MemoryStore) RevokeActorTokens(ctx context.Context, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, tok := range m.tokens {
		if tok.ActorID == actorID {
			tok.Revoked = true
			m.tokens[id] = tok
		}
	}
	return nil
}

func (m *MemoryStore) PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, tok := range m.tokens {
		if tok.Revoked || tok.ExpiresAt.Before(before) {
			delete(m.tokens, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MemoryStore) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	m.audit = append(m.audit, *entry)
	return nil
}

func (m *MemoryStore) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.audit[:0]
	var purged int64
	for _, entry := range m.audit {
		if entry.OccurredAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, entry)
	}
	m.audit = kept
	return purged, nil
}
