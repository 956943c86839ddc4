package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clientflow.se/internal/config"
	"clientflow.se/internal/datastore"
	"clientflow.se/internal/datastore/airtable"
	"clientflow.se/internal/datastore/memory"
	"clientflow.se/internal/datastore/pg"
	"clientflow.se/internal/filestore"
	"clientflow.se/internal/httpapi"
	"clientflow.se/internal/obs"
	"clientflow.se/internal/pipeline"
	"clientflow.se/internal/registry"
	"clientflow.se/internal/render"
)

var (
	version = "1.2.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Datastore backend: Postgres when a DSN is set, the hosted base when a
	// token is set, otherwise in-memory (local development only).
	var store datastore.Store
	var pgStore *pg.Store
	switch {
	case cfg.PostgresDSN != "":
		pgStore, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open postgres: %v", err)
		}
		store = pgStore
	case cfg.Airtable.AccessToken != "":
		store = airtable.New(cfg.Airtable.AccessToken, cfg.Airtable.BaseID, cfg.Airtable.Table, cfg.Airtable.UsersTable)
	default:
		log.Print("no datastore configured, using in-memory store")
		store = memory.New()
	}

	tokens := registry.NewTokenSource(cfg.Registry.TokenURL, cfg.Registry.ClientID, cfg.Registry.ClientSecret, cfg.Registry.Scope)
	regClient := registry.NewClient(cfg.Registry.BaseURL, tokens)

	renderer := render.New(render.ChromeFactory(cfg.ChromiumPath))

	files, err := filestore.New(cfg.FileDir, cfg.FileTTL)
	if err != nil {
		log.Fatalf("filestore: %v", err)
	}
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	files.Start(cleanupCtx)

	syncer := pipeline.New(regClient, renderer, files, store, cfg.PublicBaseURL)

	api := httpapi.New(httpapi.ReadyProbe{Store: store}, version, store, regClient, syncer, files)
	api.ConfigureRateLimit(cfg.RateBurst, cfg.RatePerSec)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second, // document downloads can be slow
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting clientflow-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	cleanupCancel()
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
