package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abefas/tasktracker/actions"
	"github.com/abefas/tasktracker/config"
	"github.com/abefas/tasktracker/database"
	"github.com/abefas/tasktracker/handlers"
	"github.com/abefas/tasktracker/notify"
	"github.com/abefas/tasktracker/session"
	"github.com/abefas/tasktracker/views"
)

// listCacheTTL bounds how stale a cached task list can get when another
// process changed it.
const listCacheTTL = 30 * time.Second

func configureLogging(cfg config.Config) {
	log.SetReportTimestamp(true)
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warn("Unknown log level, using info", "level", cfg.LogLevel)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		log.SetFormatter(log.JSONFormatter)
	case "logfmt":
		log.SetFormatter(log.LogfmtFormatter)
	default:
		log.SetFormatter(log.TextFormatter)
	}
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal("Invalid configuration", "err", err)
	}
	configureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, _, err := database.InitDB(ctx, cfg.BackendURL)
	if err != nil {
		log.Fatal("Failed to connect to the backend", "err", err)
	}
	defer db.Close()

	store := database.NewStore(db)
	key := []byte(cfg.BackendKey)

	cache := views.NewListCache(store, listCacheTTL)
	pages, err := views.NewRenderer()
	if err != nil {
		log.Fatal("Failed to load templates", "err", err)
	}

	h := handlers.NewHandlers(handlers.Deps{
		Actions:  actions.New(store, cache),
		Accounts: store,
		Todos:    store,
		Issuer:   session.NewIssuer(key, cfg.SecureCookies),
		List:     views.NewListView(cache),
		Pages:    pages,
		Notes:    notify.NewCenter(cfg.ToastTTL, cfg.ToastLimit),
		Pending:  views.NewPending(),
	})
	router := h.Router(session.NewGuard(key, store), cfg.SecureCookies)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Graceful shutdown failed", "err", err)
		}
	}()

	log.Info("Server listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server stopped", "err", err)
	}
	log.Info("Server stopped")
}
