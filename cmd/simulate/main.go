package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ratebench.io/client"
	"ratebench.io/internal/sim"
)

// Simulate drives synthetic permission-check traffic against a running API.
// The admin account provisions the scenario personas on first run; each
// persona then logs in and fires checks drawn from the scenario.
func main() {
	log.SetFlags(0)
	var (
		addr     = flag.String("addr", envOr("RATEBENCH_API_URL", "http://localhost:8080"), "API base URL")
		email    = flag.String("admin-email", envOr("RATEBENCH_SMOKE_EMAIL", "admin@meridian.example"), "Admin email")
		password = flag.String("admin-password", envOr("RATEBENCH_SMOKE_PASSWORD", "password"), "Admin password")
		checks   = flag.Int("checks", 200, "Number of checks to run")
		seed     = flag.Int64("seed", 0, "Generator seed (0 = clock)")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	admin, err := client.New(*addr, client.WithTimeout(10*time.Second))
	if err != nil {
		log.Fatalf("client: %v", err)
	}
	if _, err := admin.Login(ctx, *email, *password); err != nil {
		log.Fatalf("admin login: %v", err)
	}

	gen := sim.NewGenerator(*seed)
	sessions := provisionPersonas(ctx, admin, gen.Personas())

	var counter sim.Counter
	for i := 0; i < *checks; i++ {
		check := gen.NextCheck()
		session, ok := sessions[check.PersonaEmail]
		if !ok {
			counter.AddError()
			continue
		}
		var entity *client.Entity
		if check.EntityType != "" {
			entity = &client.Entity{Type: check.EntityType, ID: check.EntityID}
		}
		dec, err := session.Check(ctx, check.Key, entity)
		if err != nil {
			counter.AddError()
			continue
		}
		counter.Add(dec.Allowed)
	}

	fmt.Printf("checks=%d allowed=%d denied=%d errors=%d allow_rate=%.2f\n",
		counter.Checks, counter.Allowed, counter.Denied, counter.Errors, counter.AllowRate())
}

func provisionPersonas(ctx context.Context, admin *client.Client, personas []sim.Persona) map[string]*client.Client {
	org, err := admin.CreateOrganization(ctx, "Sim Client Org", "client")
	orgID := org.ID
	if err != nil {
		// Reuse an existing simulation org by looking the personas up via
		// login below; creation conflicts are not fatal.
		log.Printf("create sim organization: %v", err)
	}

	sessions := make(map[string]*client.Client, len(personas))
	for _, p := range personas {
		if orgID != "" {
			if _, err := admin.CreateActor(ctx, orgID, p.Email, p.Password, p.Role); err != nil {
				log.Printf("create persona %s: %v", p.Email, err)
			}
		}
		c, err := client.New(admin.BaseURL(), client.WithTimeout(10*time.Second))
		if err != nil {
			log.Fatalf("persona client: %v", err)
		}
		if _, err := c.Login(ctx, p.Email, p.Password); err != nil {
			if errors.Is(err, client.ErrUnauthorized) {
				log.Printf("persona %s cannot log in, skipping: %v", p.Email, err)
				continue
			}
			log.Fatalf("persona login %s: %v", p.Email, err)
		}
		sessions[p.Email] = c
	}
	return sessions
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
