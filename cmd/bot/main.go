package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradebot/internal/config"
	"tradebot/internal/engine"
	"tradebot/internal/exchange"
	"tradebot/internal/exchange/binance"
	"tradebot/internal/exchange/paper"
	"tradebot/internal/executor"
	"tradebot/internal/journal"
	"tradebot/internal/logger"
	"tradebot/internal/metrics"
	"tradebot/internal/signals"
	"tradebot/internal/state"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Runtime.LogLevel,
		Format: cfg.Runtime.LogFormat,
		Output: cfg.Runtime.LogFile,
	})

	log.Info("bot starting")

	rest := binance.New(cfg.Exchange.BaseUrl, cfg.Exchange.ApiKey, cfg.Exchange.Secret, log)

	var client exchange.Client = rest
	if cfg.Executor.Mode != string(executor.ModeLive) {
		// Paper mode trades simulated fills against live market data.
		client = paper.New(rest, 10, log)
		log.Info("paper trading mode")
	}

	kill := executor.NewKillSwitch(cfg.Executor.KillSwitch)
	exec := executor.New(client, executor.Config{
		Mode:           executor.Mode(cfg.Executor.Mode),
		MaxSlippageBps: cfg.Executor.MaxSlippageBps,
		MaxRetries:     cfg.Executor.OrderRetry,
		OrderTimeout:   time.Duration(cfg.Executor.OrderTimeoutSec) * time.Second,
	}, kill, log)

	store := state.NewStore(cfg.Runtime.StateFile)

	jrnl, err := journal.Open(cfg.Runtime.JournalFile)
	if err != nil {
		log.WithError(err).Fatal("trade journal unavailable")
	}
	defer jrnl.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	m.Equity.Set(cfg.Trading.Capital)

	stream := binance.NewStream(cfg.Exchange.WSUrl, cfg.Trading.Symbols, log)
	provider := signals.New(rest, stream, cfg.Runtime.SignalFeed, log)

	eng := engine.New(cfg, exec, provider, store, jrnl, m, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := stream.Connect(ctx); err != nil {
		log.WithError(err).Warn("ticker stream unavailable, falling back to polling")
	} else {
		defer stream.Close()
		go provider.Run(ctx)
	}

	if cfg.Runtime.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Runtime.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("metrics server failed")
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	go func() {
		for ev := range eng.Events() {
			log.WithComponent("events").WithField("type", ev.Type).WithField("symbol", ev.Symbol).Debug("lifecycle event")
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := eng.Start(ctx); err != nil {
			log.WithError(err).Fatal("engine failed to start")
		}
	}()

	<-sigCh
	log.Info("shutdown requested")
	cancel()
	<-done

	liqCtx, liqCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer liqCancel()
	eng.Liquidate(liqCtx)

	log.Info("bot stopped")
}
