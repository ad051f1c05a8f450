package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exchange-hub-go/internal/app"
	entitysyncdomain "exchange-hub-go/internal/domain/entitysync"
	"exchange-hub-go/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	log := logger.NewFromEnv()
	log.Info("entity_sync: starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, log)
	if err != nil {
		log.Critical("entity_sync: init failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("entity_sync: close failed", "err", err)
		}
	}()

	cfg := application.Config().EntitySync
	services := application.Services()
	opts := entitysyncdomain.BulkOptions{Limit: cfg.BatchLimit, SkipCompleted: cfg.SkipCompleted}

	pass := func() {
		if expired, err := services.Invitations.ExpireStale(ctx); err != nil {
			log.Error("entity_sync.sweep: invitation expiry failed", "err", err)
		} else if expired > 0 {
			log.Info("entity_sync.sweep: invitations expired", "count", expired)
		}
		if _, err := services.EntitySync.Bulk(ctx, opts); err != nil {
			log.Error("entity_sync.bulk: pass failed", "err", err)
		}
	}

	pass()
	if *once {
		return
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info("entity_sync: polling", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			log.Info("entity_sync: stopped")
			return
		case <-ticker.C:
			pass()
		}
	}
}
