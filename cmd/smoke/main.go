package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"ratebench.io/client"
)

// Smoke test against a running API: login with the seeded admin, resolve a
// handful of keys, and verify the expected outcomes.
func main() {
	addr := os.Getenv("RATEBENCH_API_URL")
	if addr == "" {
		addr = "http://localhost:8080"
	}
	email := os.Getenv("RATEBENCH_SMOKE_EMAIL")
	if email == "" {
		email = "admin@meridian.example"
	}
	password := os.Getenv("RATEBENCH_SMOKE_PASSWORD")
	if password == "" {
		password = "password"
	}

	c, err := client.New(addr, client.WithTimeout(5*time.Second))
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Healthz(ctx); err != nil {
		log.Fatalf("healthz at %s: %v", addr, err)
	}

	if _, err := c.Login(ctx, email, password); err != nil {
		log.Fatalf("login as %s: %v", email, err)
	}

	dec, err := c.Check(ctx, "update:rates:organization", nil)
	if err != nil {
		log.Fatalf("check update:rates: %v", err)
	}
	if !dec.Allowed {
		log.Fatal("seeded admin should be allowed to update rates")
	}

	dec, err = c.CheckAll(ctx, []string{
		"view:rates:organization",
		"manage:actors:organization",
	}, nil)
	if err != nil {
		log.Fatalf("check-all: %v", err)
	}
	if !dec.Allowed {
		log.Fatal("seeded admin should pass check-all over its grants")
	}

	// Empty key list semantics.
	dec, err = c.CheckAny(ctx, nil, nil)
	if err != nil {
		log.Fatalf("check-any: %v", err)
	}
	if dec.Allowed {
		log.Fatal("check-any over an empty list must deny")
	}

	fmt.Printf("smoke test passed against %s\n", addr)
}
