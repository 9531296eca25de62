// Package main boots the Sneaker Customizer HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/catalog"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/config"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/db"
	httpapi "github.com/fairyhunter13/sneaker-customizer-service/internal/http"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/obs"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/ownership"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/pricing"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/queue"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/store"
)

func main() {
	cfg := config.Load()
	if err := obs.InitLogger(cfg.LogMode); err != nil {
		os.Stderr.WriteString("logger init: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer obs.Logger.Sync()
	obs.Logger.Info("service_starting", "db_driver", cfg.DBDriver, "owned_index_backend", cfg.OwnedIndexBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		records store.Records
		gdb     *gorm.DB
	)
	if cfg.DBDriver == "memory" {
		records = store.New()
	} else {
		var err error
		gdb, err = db.Open(cfg)
		if err != nil {
			fatal("db_open_failed", err)
		}
		defer db.Close(gdb)
		records = store.NewSQL(gdb)
	}
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := records.Ping(pingCtx); err != nil {
		obs.Logger.Warn("db_ping_failed", "error", err.Error())
	}
	cancelPing()

	idx, closeIdx, err := ownership.Open(ctx, cfg, gdb)
	if err != nil {
		fatal("ownership_index_open_failed", err)
	}
	defer closeIdx()

	rules, err := pricing.RulesFor(cfg.RulesFile)
	if err != nil {
		fatal("rules_load_failed", err)
	}
	obs.Logger.Info("pricing_rules_loaded", "count", len(rules), "file", cfg.RulesFile)

	mgr := queue.NewManager(cfg, queue.New(cfg.IndexQueueBuffer), idx)
	mgr.Start(ctx)

	svc := catalog.NewService(records, pricing.NewEngine(rules), mgr, idx)
	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	app := httpapi.NewApp(cfg, svc, mgr)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("http_server_error", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	app.StartShutdown()

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err.Error())
	}

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if !app.FinishWrites(ctxDrain) {
		obs.Logger.Warn("shutdown_writes_timeout")
	}
	m := mgr.Metrics()
	obs.Logger.Info("shutdown_drain_begin", "backlog_size", m.Backlog, "queue_depth", m.Depth)
	if drained := mgr.DrainUntil(ctxDrain); !drained {
		obs.Logger.Warn("shutdown_drain_timeout", "backlog_size", mgr.Metrics().Backlog)
	} else {
		obs.Logger.Info("shutdown_drain_complete")
	}
	mgr.Stop()
	obs.Logger.Info("service_stopped")
}

func fatal(event string, err error) {
	obs.Logger.Error(event, "error", err.Error())
	obs.Logger.Sync()
	os.Exit(1)
}
