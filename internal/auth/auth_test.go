package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ratebench.io/internal/authz"
	"ratebench.io/internal/catalog"
	"ratebench.io/internal/directory"
)

// fakeStore implements directory.Store in memory for auth tests.
type fakeStore struct {
	orgs   map[string]directory.Organization
	actors map[string]directory.Actor
	tokens map[string]directory.RefreshToken
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orgs:   map[string]directory.Organization{},
		actors: map[string]directory.Actor{},
		tokens: map[string]directory.RefreshToken{},
	}
}

func (f *fakeStore) CreateOrganization(_ context.Context, org *directory.Organization) error {
	f.orgs[org.ID] = *org
	return nil
}

func (f *fakeStore) GetOrganization(_ context.Context, id string) (directory.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return directory.Organization{}, directory.ErrNotFound
	}
	return org, nil
}

func (f *fakeStore) ListOrganizations(_ context.Context) ([]directory.Organization, error) {
	return nil, nil
}

func (f *fakeStore) CreateActor(_ context.Context, actor *directory.Actor) error {
	f.actors[actor.ID] = *actor
	return nil
}

func (f *fakeStore) GetActor(_ context.Context, id string) (directory.Actor, error) {
	actor, ok := f.actors[id]
	if !ok {
		return directory.Actor{}, directory.ErrNotFound
	}
	return actor, nil
}

func (f *fakeStore) FindActorByEmail(_ context.Context, email string) (directory.Actor, error) {
	for _, actor := range f.actors {
		if actor.Email == email {
			return actor, nil
		}
	}
	return directory.Actor{}, directory.ErrNotFound
}

func (f *fakeStore) ListActors(_ context.Context, _ string) ([]directory.Actor, error) {
	return nil, nil
}

func (f *fakeStore) UpdateActorRole(_ context.Context, _, _ string) error { return nil }

func (f *fakeStore) CreateRole(_ context.Context, _ *directory.Role) error { return nil }

func (f *fakeStore) SetRolePermissions(_ context.Context, _ string, _ []string) error { return nil }

func (f *fakeStore) AssignRole(_ context.Context, _ directory.Assignment) error { return nil }

func (f *fakeStore) ActorGrants(_ context.Context, _ string) ([]string, error) { return nil, nil }

func (f *fakeStore) CreateRefreshToken(_ context.Context, tok *directory.RefreshToken) error {
	f.tokens[tok.ID] = *tok
	return nil
}

func (f *fakeStore) FindRefreshToken(_ context.Context, id string) (directory.RefreshToken, error) {
	tok, ok := f.tokens[id]
	if !ok {
		return directory.RefreshToken{}, directory.ErrNotFound
	}
	return tok, nil
}

func (f *fakeStore) RevokeRefreshToken(_ context.Context, id string) error {
	tok, ok := f.tokens[id]
	if !ok {
		return directory.ErrNotFound
	}
	tok.Revoked = true
	f.tokens[id] = tok
	return nil
}

func (f *fakeStore) RevokeActorTokens(_ context.Context, actorID string) error {
	for id, tok := range f.tokens {
		if tok.ActorID == actorID {
			tok.Revoked = true
			f.tokens[id] = tok
		}
	}
	return nil
}

func (f *fakeStore) PurgeExpiredTokens(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) AppendAudit(_ context.Context, _ *directory.AuditEntry) error { return nil }

func (f *fakeStore) PurgeAudit(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

func seedActor(t *testing.T, store *fakeStore, password string) directory.Actor {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	org := directory.Organization{ID: "org-1", Name: "Acme", Kind: "client", Settings: map[string]any{}}
	store.orgs[org.ID] = org
	actor := directory.Actor{
		ID:             "actor-1",
		OrganizationID: org.ID,
		Email:          "n@acme.example",
		Role:           "negotiator",
		Status:         directory.ActorStatusActive,
		PasswordHash:   hash,
	}
	store.actors[actor.ID] = actor
	return actor
}

func newTestService(t *testing.T, store *fakeStore, opts ...Option) *Service {
	t.Helper()
	dir, err := directory.NewService(store, catalog.Default())
	if err != nil {
		t.Fatalf("directory.NewService: %v", err)
	}
	svc, err := NewService(dir, "test-secret", opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestLoginAndAuthenticate(t *testing.T) {
	store := newFakeStore()
	seedActor(t, store, "s3cret-pw")
	svc := newTestService(t, store)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "n@acme.example", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	pair, err := svc.Login(ctx, "N@Acme.example", "s3cret-pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if !pair.AccessExpiresAt.After(time.Now()) {
		t.Fatalf("access token already expired: %v", pair.AccessExpiresAt)
	}

	actor, org, err := svc.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if actor.ID != "actor-1" || actor.Role != "negotiator" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
	if org.ID != "org-1" || org.Kind != authz.OrgKindClient {
		t.Fatalf("unexpected org: %+v", org)
	}
	if !actor.HasGrant(catalog.PermCreateNegotiations) {
		t.Fatal("negotiator session missing catalog grant")
	}
	if actor.HasGrant(catalog.PermManageRoles) {
		t.Fatal("negotiator session must not manage roles")
	}
}

func TestAuthenticateRejectsTamperedToken(t *testing.T) {
	store := newFakeStore()
	seedActor(t, store, "s3cret-pw")
	svc := newTestService(t, store)
	ctx := context.Background()

	pair, err := svc.Login(ctx, "n@acme.example", "s3cret-pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	parts := strings.Split(pair.AccessToken, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, _, err := svc.Authenticate(ctx, tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	store := newFakeStore()
	seedActor(t, store, "s3cret-pw")

	current := time.Now().UTC()
	svc := newTestService(t, store,
		WithAccessTTL(time.Minute),
		WithClock(func() time.Time { return current }),
	)
	ctx := context.Background()

	pair, err := svc.Login(ctx, "n@acme.example", "s3cret-pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, _, err := svc.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	store := newFakeStore()
	seedActor(t, store, "s3cret-pw")
	svc := newTestService(t, store)
	ctx := context.Background()

	pair, err := svc.Login(ctx, "n@acme.example", "s3cret-pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The consumed token is revoked and cannot be replayed.
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected replay to fail, got %v", err)
	}

	if _, err := svc.Refresh(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected malformed refresh to fail, got %v", err)
	}
}

func TestLogoutRevokesAllTokens(t *testing.T) {
	store := newFakeStore()
	seedActor(t, store, "s3cret-pw")
	svc := newTestService(t, store)
	ctx := context.Background()

	pair, err := svc.Login(ctx, "n@acme.example", "s3cret-pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(ctx, "actor-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}
}

func TestSessionProvider(t *testing.T) {
	provider := SessionProvider{}
	ctx := context.Background()

	if provider.CurrentActor(ctx) != nil {
		t.Fatal("expected nil actor on bare context")
	}

	actor := authz.NewActor("actor-1", "org-1", "viewer", nil)
	org := &authz.OrgContext{ID: "org-1", Kind: authz.OrgKindClient}
	ctx = ContextWithSession(ctx, actor, org)

	if got := provider.CurrentActor(ctx); got == nil || got.ID != "actor-1" {
		t.Fatalf("unexpected actor: %+v", got)
	}
	if got := provider.CurrentOrganization(ctx); got == nil || got.Kind != authz.OrgKindClient {
		t.Fatalf("unexpected org: %+v", got)
	}
}
