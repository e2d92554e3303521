package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/vudinh158/laptop-NEW-sub001/internal/checkout"
	"github.com/vudinh158/laptop-NEW-sub001/internal/config"
	"github.com/vudinh158/laptop-NEW-sub001/internal/database"
	"github.com/vudinh158/laptop-NEW-sub001/internal/events"
	"github.com/vudinh158/laptop-NEW-sub001/internal/httpapi"
	"github.com/vudinh158/laptop-NEW-sub001/internal/logging"
	"github.com/vudinh158/laptop-NEW-sub001/internal/payments"
	"github.com/vudinh158/laptop-NEW-sub001/internal/reclaimer"
	"github.com/vudinh158/laptop-NEW-sub001/internal/redisx"
	"github.com/vudinh158/laptop-NEW-sub001/internal/shipping"
	"github.com/vudinh158/laptop-NEW-sub001/internal/shutdown"
	"github.com/vudinh158/laptop-NEW-sub001/internal/vnpay"
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
	log.Info("database connected")

	rdb := redisx.New(cfg.Redis.Addr)
	defer rdb.Close()

	producer := events.NewProducer(log, cfg.Kafka.Brokers, "order-api", 1024)
	producer.Start(ctx)

	gateway := vnpay.New(vnpay.Config{
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		PayURL:     cfg.VNPay.PayURL,
		ReturnURL:  cfg.VNPay.ReturnURL,
	})

	svc := checkout.NewService(db, log, shipping.DefaultQuoter(), gateway, producer, cfg.Reclaimer.ReservationWindow)
	rec := payments.NewReconciler(db, log, producer)

	// The sweeper rides along in every API replica; the advisory lock makes
	// sure only one of them actually sweeps.
	sweeper := reclaimer.New(db, log, producer, cfg.Reclaimer.LockKey, cfg.Reclaimer.Interval)
	if err := sweeper.Start(ctx); err != nil {
		log.Error("reclaimer start failed", "err", err)
		os.Exit(1)
	}

	handler := httpapi.NewHandler(db, log, rdb, svc, rec, gateway)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "err", err)
	}

	sweeper.Stop()
	producer.WaitClosed()
	log.Info("bye")
}
