package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"ratebench.io/internal/directory"
)

// Janitor runs scheduled cleanup over the directory store: expired and
// revoked refresh tokens, and audit rows past retention.
func main() {
	log.SetFlags(0)
	var (
		dsn            = flag.String("dsn", os.Getenv("RATEBENCH_PG_DSN"), "PostgreSQL DSN")
		schedule       = flag.String("schedule", envOr("RATEBENCH_JANITOR_SCHEDULE", "@every 1h"), "Cron schedule")
		auditRetention = flag.Duration("audit-retention", 90*24*time.Hour, "Audit log retention window")
		once           = flag.Bool("once", false, "Run a single sweep and exit")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or RATEBENCH_PG_DSN")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := directory.NewPGStore(db)
	sweep := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		now := time.Now().UTC()
		tokens, err := store.PurgeExpiredTokens(ctx, now)
		if err != nil {
			log.Printf("purge tokens: %v", err)
		}
		audit, err := store.PurgeAudit(ctx, now.Add(-*auditRetention))
		if err != nil {
			log.Printf("purge audit: %v", err)
		}
		log.Printf("sweep complete: tokens=%d audit=%d", tokens, audit)
	}

	if *once {
		sweep()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, sweep); err != nil {
		log.Fatalf("invalid schedule %q: %v", *schedule, err)
	}
	c.Start()
	log.Printf("janitor running on schedule %q", *schedule)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	<-c.Stop().Done()
	log.Println("janitor stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
