package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"learningmap/api/internal/app"
	"learningmap/api/internal/config"
	"learningmap/api/internal/email"
	"learningmap/api/internal/identity"
	"learningmap/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	local, err := store.NewLocalStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer local.Close()
	local.Seed = store.DefaultSeedMap

	remote := store.NewRemoteClient(cfg.RemoteBaseURL, cfg.RemoteTimeout)
	ident := identity.NewService(local, cfg.TokenSecret, cfg.SessionTTL)

	service := app.New(cfg, local, remote, ident)

	// The Postgres reference catalog is optional: without it, course
	// and template lookups fall back to built-in defaults.
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		service.WithCatalog(store.NewCatalog(db))
		log.Printf("Using PostgreSQL reference catalog")
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		service.WithMailer(mailer)
		log.Printf("Assignment notifications enabled via %s", cfg.SMTPHost)
	}

	if err := service.Bootstrap(ctx); err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Learning Map API listening on %s (mode=%s)", cfg.Addr, service.Mode())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
