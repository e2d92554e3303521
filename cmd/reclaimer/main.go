// Standalone reservation sweeper. Deployments that prefer the sweep outside
// the API replicas run this binary instead; the shared advisory lock keeps
// both arrangements mutually exclusive.
package main

import (
	"context"
	"os"

	"github.com/vudinh158/laptop-NEW-sub001/internal/config"
	"github.com/vudinh158/laptop-NEW-sub001/internal/database"
	"github.com/vudinh158/laptop-NEW-sub001/internal/events"
	"github.com/vudinh158/laptop-NEW-sub001/internal/logging"
	"github.com/vudinh158/laptop-NEW-sub001/internal/reclaimer"
	"github.com/vudinh158/laptop-NEW-sub001/internal/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	producer := events.NewProducer(log, cfg.Kafka.Brokers, "order-reclaimer", 256)
	producer.Start(ctx)

	sweeper := reclaimer.New(db, log, producer, cfg.Reclaimer.LockKey, cfg.Reclaimer.Interval)
	if err := sweeper.Start(ctx); err != nil {
		log.Error("reclaimer start failed", "err", err)
		os.Exit(1)
	}
	log.Info("reservation sweeper running", "interval", cfg.Reclaimer.Interval)

	<-ctx.Done()
	sweeper.Stop()
	producer.WaitClosed()
	log.Info("bye")
}
