// Command bookwatch maintains live order books for the configured markets,
// serves them over HTTP and optionally persists them to Redis and Kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lemconn/exwire"
	"github.com/lemconn/exwire/cache"
	"github.com/lemconn/exwire/config"
	"github.com/lemconn/exwire/logger"
	"github.com/lemconn/exwire/metrics"
	"github.com/lemconn/exwire/sink"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bookwatch:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := cfg.App.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	client, err := exwire.NewClient(cfg.App.Exchange, cfg.App.ExchangeOptions(log, m)...)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.Start(ctx); err != nil {
		return err
	}
	for _, symbol := range cfg.App.Symbols {
		sub, err := client.WatchOrderBook(symbol, cfg.App.Depth)
		if err != nil {
			return fmt.Errorf("watch %s: %w", symbol, err)
		}
		defer sub.Close()
	}

	var sinks []exwire.BookSink
	if cfg.Redis.Enabled {
		rc, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		sinks = append(sinks, cache.NewSnapshotStore(rc, cfg.Redis.TTL, log).Save)
	}
	if cfg.Kafka.Enabled {
		pub := sink.NewKafkaPublisher(sink.NewWriter(cfg.Kafka), log)
		defer func() { _ = pub.Close() }()
		sinks = append(sinks, pub.Publish)
	}

	srv := &http.Server{
		Addr: cfg.App.HTTPAddr,
		Handler: newRouter(&server{
			books:   client,
			symbols: cfg.App.Symbols,
			depth:   cfg.App.Depth,
			log:     log,
		}, m.Handler()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("bookwatch starting",
		logger.NewField("exchange", client.Name()),
		logger.NewField("symbols", cfg.App.Symbols),
		logger.NewField("streaming", client.Streaming()),
		logger.NewField("addr", cfg.App.HTTPAddr),
		logger.NewField("sinks", len(sinks)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(gctx)
	})
	g.Go(func() error {
		client.PersistBooks(gctx, cfg.App.PersistTick, cfg.App.Depth, sinks...)
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("bookwatch stopped")
	return err
}
