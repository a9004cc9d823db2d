package client

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"ratebench.io/internal/auth"
	"ratebench.io/internal/authz"
	"ratebench.io/internal/catalog"
	"ratebench.io/internal/directory"
	"ratebench.io/internal/events"
	"ratebench.io/internal/httpapi"
)

func startServer(t *testing.T) (*httptest.Server, *directory.Service) {
	t.Helper()

	store := directory.NewInMemory()
	cat := catalog.Default()
	dir, err := directory.NewService(store, cat)
	if err != nil {
		t.Fatalf("directory service: %v", err)
	}
	authSvc, err := auth.NewService(dir, "sdk-test-secret")
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	provider := auth.SessionProvider{}
	resolver, err := authz.NewResolver(provider, provider)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	api := httpapi.New(httpapi.ReadyProbe{}, "test", authSvc, dir, cat, resolver, events.New())

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv, dir
}

func seedActor(t *testing.T, dir *directory.Service, email, password, role string) string {
	t.Helper()
	org, err := dir.CreateOrganization(context.Background(), "SDK Org", "client", nil)
	if err != nil {
		t.Fatalf("seed organization: %v", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	actor, err := dir.CreateActor(context.Background(), org.ID, email, hash, role)
	if err != nil {
		t.Fatalf("seed actor: %v", err)
	}
	return actor.ID
}

func TestClientLoginAndCheck(t *testing.T) {
	srv, dir := startServer(t)
	actorID := seedActor(t, dir, "admin@sdk.example", "sdk-password", "rate_admin")

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Login(context.Background(), "admin@sdk.example", "sdk-password"); err != nil {
		t.Fatalf("login: %v", err)
	}

	dec, err := c.Check(context.Background(), "update:rates:organization", nil)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allow, got %+v", dec)
	}

	dec, err = c.CheckAll(context.Background(), []string{
		"view:rates:organization",
		"manage:actors:organization",
	}, nil)
	if err != nil {
		t.Fatalf("check-all: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allow for check-all, got %+v", dec)
	}

	perms, err := c.EffectivePermissions(context.Background(), actorID)
	if err != nil {
		t.Fatalf("effective permissions: %v", err)
	}
	if len(perms) == 0 {
		t.Fatal("expected non-empty permission set")
	}
}

func TestClientErrorMapping(t *testing.T) {
	srv, dir := startServer(t)
	seedActor(t, dir, "viewer@sdk.example", "sdk-password", "viewer")

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	// Unauthenticated check.
	if _, err := c.Check(context.Background(), "view:rates:organization", nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if _, err := c.Login(context.Background(), "viewer@sdk.example", "wrong-password"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for bad password, got %v", err)
	}

	if _, err := c.Login(context.Background(), "viewer@sdk.example", "sdk-password"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Malformed key maps to ErrBadRequest.
	if _, err := c.Check(context.Background(), "not-a-key", nil); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestClientRefreshRotation(t *testing.T) {
	srv, dir := startServer(t)
	seedActor(t, dir, "admin@sdk.example", "sdk-password", "rate_admin")

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	pair, err := c.Login(context.Background(), "admin@sdk.example", "sdk-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := c.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := c.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on replay, got %v", err)
	}
}

func TestClientTokenSwapDuringRequests(t *testing.T) {
	srv, dir := startServer(t)
	seedActor(t, dir, "admin@sdk.example", "sdk-password", "rate_admin")

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Login(context.Background(), "admin@sdk.example", "sdk-password"); err != nil {
		t.Fatalf("login: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := c.Healthz(context.Background()); err != nil {
				t.Errorf("healthz: %v", err)
			}
		}()
		go func(n int) {
			defer wg.Done()
			c.SetToken(fmt.Sprintf("swapped-%d", n))
		}(i)
	}
	wg.Wait()
}
