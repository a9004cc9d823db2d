package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ratebench.io/internal/authz"
	"ratebench.io/internal/catalog"
	"ratebench.io/internal/ids"
)

// Service validates inputs and combines the store with the role catalog to
// produce the effective permission sets the resolver consumes.
type Service struct {
	store   Store
	catalog *catalog.Catalog
}

// NewService constructs a Service. Both collaborators are required.
func NewService(store Store, cat *catalog.Catalog) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory: store is required")
	}
	if cat == nil {
		return nil, errors.New("directory: catalog is required")
	}
	return &Service{store: store, catalog: cat}, nil
}

func (s *Service) CreateOrganization(ctx context.Context, name, kind string, settings map[string]any) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	kind = strings.TrimSpace(strings.ToLower(kind))
	if kind != string(authz.OrgKindClient) && kind != string(authz.OrgKindLawFirm) {
		return Organization{}, fmt.Errorf("%w: unsupported organization kind %q", ErrInvalidInput, kind)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	org := Organization{ID: ids.New(), Name: name, Kind: kind, Settings: settings}
	if err := s.store.CreateOrganization(ctx, &org); err != nil {
		return Organization{}, err
	}
	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, id string) (Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.GetOrganization(ctx, id)
}

func (s *Service) ListOrganizations(ctx context.Context) ([]Organization, error) {
	return s.store.ListOrganizations(ctx)
}

func (s *Service) CreateActor(ctx context.Context, organizationID, email, passwordHash, role string) (Actor, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return Actor{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return Actor{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return Actor{}, fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	org, err := s.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return Actor{}, err
	}
	if len(s.catalog.PermissionsForRole(authz.OrgKind(org.Kind), role)) == 0 {
		return Actor{}, fmt.Errorf("%w: role %q is not defined for kind %q", ErrInvalidInput, role, org.Kind)
	}
	actor := Actor{
		ID:             ids.New(),
		OrganizationID: organizationID,
		Email:          email,
		Role:           role,
		Status:         ActorStatusActive,
		PasswordHash:   passwordHash,
	}
	if err := s.store.CreateActor(ctx, &actor); err != nil {
		return Actor{}, err
	}
	return actor, nil
}

func (s *Service) GetActor(ctx context.Context, id string) (Actor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Actor{}, fmt.Errorf("%w: actor_id is required", ErrInvalidInput)
	}
	return s.store.GetActor(ctx, id)
}

func (s *Service) FindActorByEmail(ctx context.Context, email string) (Actor, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return Actor{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.store.FindActorByEmail(ctx, email)
}

func (s *Service) ListActors(ctx context.Context, organizationID string) ([]Actor, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListActors(ctx, organizationID)
}

// UpdateActorRole switches an actor's built-in role after validating the role
// exists for the actor's organization kind.
func (s *Service) UpdateActorRole(ctx context.Context, actorID, role string) (Actor, error) {
	actorID = strings.TrimSpace(actorID)
	role = strings.TrimSpace(strings.ToLower(role))
	if actorID == "" || role == "" {
		return Actor{}, fmt.Errorf("%w: actor_id and role are required", ErrInvalidInput)
	}
	actor, err := s.store.GetActor(ctx, actorID)
	if err != nil {
		return Actor{}, err
	}
	org, err := s.store.GetOrganization(ctx, actor.OrganizationID)
	if err != nil {
		return Actor{}, err
	}
	if len(s.catalog.PermissionsForRole(authz.OrgKind(org.Kind), role)) == 0 {
		return Actor{}, fmt.Errorf("%w: role %q is not defined for kind %q", ErrInvalidInput, role, org.Kind)
	}
	if err := s.store.UpdateActorRole(ctx, actorID, role); err != nil {
		return Actor{}, err
	}
	actor.Role = role
	return actor, nil
}

func (s *Service) CreateRole(ctx context.Context, organizationID, name, description string) (Role, error) {
	organizationID = strings.TrimSpace(organizationID)
	name = strings.TrimSpace(name)
	if organizationID == "" || name == "" {
		return Role{}, fmt.Errorf("%w: organization_id and role name are required", ErrInvalidInput)
	}
	role := Role{
		ID:             ids.New(),
		OrganizationID: organizationID,
		Name:           name,
		Description:    strings.TrimSpace(description),
	}
	if err := s.store.CreateRole(ctx, &role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// SetRolePermissions replaces a custom role's grant list. Keys must be
// well-formed; the caller is responsible for resetting resolver caches.
func (s *Service) SetRolePermissions(ctx context.Context, roleID string, keys []string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(keys))
	canonical := make([]string, 0, len(keys))
	for _, raw := range keys {
		key, err := authz.ParseKey(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		k := key.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		canonical = append(canonical, k)
	}
	return s.store.SetRolePermissions(ctx, roleID, canonical)
}

func (s *Service) AssignRole(ctx context.Context, actorID, roleID string) (Assignment, error) {
	actorID = strings.TrimSpace(actorID)
	roleID = strings.TrimSpace(roleID)
	if actorID == "" || roleID == "" {
		return Assignment{}, fmt.Errorf("%w: actor_id and role_id are required", ErrInvalidInput)
	}
	actor, err := s.store.GetActor(ctx, actorID)
	if err != nil {
		return Assignment{}, err
	}
	a := Assignment{ActorID: actorID, RoleID: roleID, OrganizationID: actor.OrganizationID}
	if err := s.store.AssignRole(ctx, a); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// EffectivePermissions is the union of the actor's catalog role and any custom
// grants, deduplicated and sorted.
func (s *Service) EffectivePermissions(ctx context.Context, actorID string) ([]string, error) {
	actor, err := s.GetActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	org, err := s.store.GetOrganization(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	set := map[string]struct{}{}
	for _, p := range s.catalog.PermissionsForRole(authz.OrgKind(org.Kind), actor.Role) {
		set[p] = struct{}{}
	}
	grants, err := s.store.ActorGrants(ctx, actorID)
	if err != nil {
		return nil, err
	}
	for _, p := range grants {
		set[p] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Session resolves the actor and organization records into the in-memory pair
// the resolver operates on. Disabled actors resolve to an unauthenticated
// session.
func (s *Service) Session(ctx context.Context, actorID string) (*authz.Actor, *authz.OrgContext, error) {
	actor, err := s.GetActor(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Status != ActorStatusActive {
		return nil, nil, fmt.Errorf("%w: actor %s is %s", ErrNotFound, actorID, actor.Status)
	}
	org, err := s.store.GetOrganization(ctx, actor.OrganizationID)
	if err != nil {
		return nil, nil, err
	}
	perms, err := s.EffectivePermissions(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	return authz.NewActor(actor.ID, org.ID, actor.Role, perms),
		&authz.OrgContext{ID: org.ID, Kind: authz.OrgKind(org.Kind), Settings: org.Settings},
		nil
}

// Store exposes the underlying store for collaborators that need raw access
// (token rotation, janitor jobs).
func (s *Service) Store() Store { return s.store }
