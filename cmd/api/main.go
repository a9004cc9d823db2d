package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ratebench.io/internal/auth"
	"ratebench.io/internal/authz"
	"ratebench.io/internal/catalog"
	"ratebench.io/internal/config"
	"ratebench.io/internal/directory"
	"ratebench.io/internal/events"
	"ratebench.io/internal/httpapi"
	"ratebench.io/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("RATEBENCH_CONFIG"), "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Auth.Secret == "" {
		log.Fatal("missing auth secret: set auth.secret or RATEBENCH_AUTH_SECRET")
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)
	authz.RegisterMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Directory storage: PostgreSQL when a DSN is set, in-memory otherwise.
	var (
		db    *sql.DB
		store directory.Store
	)
	if cfg.Postgres.DSN != "" {
		db, err = sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = directory.NewPGStore(db)
	} else {
		log.Print("no PG DSN configured, using in-memory directory store")
		store = directory.NewInMemory()
	}

	if cfg.Redis.Addr != "" {
		cached, err := directory.NewCachedStore(ctx, store, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			log.Fatalf("redis cache: %v", err)
		}
		store = cached
	}

	// Role catalog with optional hot reload.
	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Load(cfg.Catalog.Path)
		if err != nil {
			log.Fatalf("load catalog: %v", err)
		}
		results, err := catalog.Watch(ctx, cat, cfg.Catalog.Path)
		if err != nil {
			log.Fatalf("watch catalog: %v", err)
		}
		go func() {
			for err := range results {
				if err != nil {
					log.Printf("catalog reload failed: %v", err)
				}
			}
		}()
	}

	dir, err := directory.NewService(store, cat)
	if err != nil {
		log.Fatalf("directory service: %v", err)
	}
	authSvc, err := auth.NewService(dir, cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTTL.Std()),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL.Std()),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	provider := auth.SessionProvider{}
	resolver, err := authz.NewResolver(provider, provider)
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}
	stream := events.New()

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, authSvc, dir, cat, resolver, stream,
		httpapi.WithRateLimit(cfg.Server.RateBurst, cfg.Server.RatePerSecond),
		httpapi.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := httpapi.NewGRPCServer(httpapi.ReadyProbe{DB: db})

	log.Printf("Starting ratebench-api %s on %s (grpc %s)", version, cfg.Server.Addr, cfg.Server.GRPCAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		if err := grpcSrv.Serve(lis); err != nil {
			log.Printf("grpc serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
