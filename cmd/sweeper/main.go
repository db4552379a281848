// The sweeper expires stale pending trades. A scheduler enqueues the sweep
// task periodically and a worker executes it, so multiple sweeper replicas
// never run the sweep concurrently.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/swapdeck/swapdeck-api/internal/config"
	"github.com/swapdeck/swapdeck-api/internal/db"
	"github.com/swapdeck/swapdeck-api/internal/notifier"
	"github.com/swapdeck/swapdeck-api/internal/storage"
	"github.com/swapdeck/swapdeck-api/internal/trade"
	"github.com/swapdeck/swapdeck-api/internal/valuation"
)

const taskExpireStale = "trades:expire_stale"

func main() {
	cfg := config.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})

	pool, err := db.Connect(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer pool.Close()

	store := storage.New(pool)

	var events notifier.Notifier = notifier.Noop{}
	if cfg.NotifierConfig.WebhookURL != "" {
		events = notifier.NewWebhookNotifier(cfg.NotifierConfig.WebhookURL, nil)
	}

	valuer := valuation.NewDefaultEngine()
	manager := trade.NewManager(store, valuer, events, cfg.TradeConfig.PendingTTL)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	scheduler := asynq.NewScheduler(redisOpt, nil)
	schedule := fmt.Sprintf("@every %s", cfg.TradeConfig.SweepInterval)
	if _, err := scheduler.Register(schedule, asynq.NewTask(taskExpireStale, nil)); err != nil {
		logrus.WithError(err).Fatal("failed to register sweep schedule")
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"default": 1},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(taskExpireStale, func(ctx context.Context, _ *asynq.Task) error {
		return runSweep(ctx, manager)
	})

	go func() {
		if err := scheduler.Run(); err != nil {
			logrus.WithError(err).Fatal("scheduler stopped")
		}
	}()

	go func() {
		if err := srv.Run(mux); err != nil {
			logrus.WithError(err).Fatal("worker server stopped")
		}
	}()

	logrus.WithField("interval", cfg.TradeConfig.SweepInterval.String()).Info("sweeper started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	scheduler.Shutdown()
	srv.Shutdown()
}

func runSweep(ctx context.Context, manager *trade.Manager) error {
	expired, err := manager.ExpireStale(ctx, time.Now())
	if err != nil {
		return err
	}
	if expired > 0 {
		logrus.WithField("expired", expired).Info("stale trades expired")
	}
	return nil
}
