package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pageforge-dev/pageforge/internal/config"
	"github.com/pageforge-dev/pageforge/internal/httpapi"
	"github.com/pageforge-dev/pageforge/internal/mutation"
	"github.com/pageforge-dev/pageforge/internal/observability"
	"github.com/pageforge-dev/pageforge/internal/persist"
	"github.com/pageforge-dev/pageforge/internal/session"
	"github.com/pageforge-dev/pageforge/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	pageStore, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("page store init failed: %v", err)
	}
	defer pageStore.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("page store: in-memory (set DATABASE_URL for postgres)")
	} else {
		log.Printf("page store: postgres")
	}

	mutator, err := mutation.NewClient(mutation.Config{
		Mode:    cfg.MutationMode,
		HTTPURL: cfg.MutationServiceURL,
		Timeout: cfg.MutationTimeout,
	})
	if err != nil {
		log.Fatalf("mutation client init failed: %v", err)
	}
	if _, ok := mutator.(*mutation.MockClient); ok {
		log.Printf("mutation service: mock (set MUTATION_SERVICE_URL for real edits)")
	} else {
		log.Printf("mutation service: %s", cfg.MutationServiceURL)
	}

	// Saves and publishes go to an external persistence service when one is
	// configured; otherwise they hit the page store hosted by this process.
	var persister session.Persister
	if strings.TrimSpace(cfg.PersistBaseURL) != "" {
		persister = persist.NewClient(cfg.PersistBaseURL)
		log.Printf("persistence: %s", cfg.PersistBaseURL)
	} else {
		persister = store.NewPersister(pageStore, cfg.PublicBaseURL)
		log.Printf("persistence: local page store")
	}

	sessions := session.NewManager(mutator, persister, metrics, cfg.SessionInactivityTimeout, cfg.HistoryByteBudget, cfg.AutosaveDebounce)
	sessions.SetExpireHook(func(e *session.Editor) {
		log.Printf("session %s expired after inactivity", e.ID())
	})

	api := httpapi.New(cfg, sessions, pageStore, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
