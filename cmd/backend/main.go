package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docvault/internal/access"
	"docvault/internal/config"
	"docvault/internal/db"
	"docvault/internal/server"
	"docvault/internal/storage"
	"docvault/internal/store"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "config_load_failed", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("service=backend msg=%q err=%v", "config_invalid", err)
		os.Exit(1)
	}

	dbConn, err := server.OpenDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "db_connect_failed", err)
		os.Exit(1)
	}
	defer func() { _ = dbConn.Close() }()

	log.Printf("service=backend msg=%q", "running_migrations")
	if err := db.RunMigrations(dbConn); err != nil {
		log.Printf("service=backend msg=%q err=%v", "migration_failed", err)
		os.Exit(1)
	}
	log.Printf("service=backend msg=%q", "migrations_complete")

	creds := store.NewPostgresIdentities(dbConn)
	catalog := store.NewPostgresCatalog(dbConn)
	grants := store.NewPostgresGrants(dbConn)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	if err := server.EnsureBootstrapAdmin(startCtx, creds); err != nil {
		log.Printf("service=backend msg=%q err=%v", "bootstrap_failed", err)
		os.Exit(1)
	}

	blobs, err := storage.NewMinio(startCtx, storage.MinioConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
	})
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "storage_connect_failed", err)
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Addr:  cfg.Addr,
		Build: server.BuildInfo{Version: version, Commit: commit},
		Auth: server.AuthConfig{
			SessionSecret: cfg.SessionSecret,
			SessionTTL:    cfg.SessionTTL,
			CookieName:    cfg.CookieName,
			Creds:         creds,
		},
		DB:             dbConn,
		Creds:          creds,
		Catalog:        catalog,
		Grants:         grants,
		Blobs:          blobs,
		Gate:           access.NewGate(grants, catalog),
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s version=%s commit=%s",
			"starting", cfg.Addr, version, commit)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}
