package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aakash-soni-git/bitalino/internal/api"
	"github.com/aakash-soni-git/bitalino/internal/config"
	"github.com/aakash-soni-git/bitalino/internal/db"
	"github.com/aakash-soni-git/bitalino/internal/device"
	"github.com/aakash-soni-git/bitalino/internal/manager"
	"github.com/aakash-soni-git/bitalino/internal/plot"
	"github.com/aakash-soni-git/bitalino/internal/session"
	"github.com/aakash-soni-git/bitalino/internal/sink/csvfile"
	"github.com/aakash-soni-git/bitalino/internal/sink/influx"
	"github.com/aakash-soni-git/bitalino/internal/sink/stream"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Info("Interrupt received, stopping acquisition...")
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Configuration error", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "Starting acquisition service...")

	var dev device.Device
	if cfg.Simulate {
		slog.InfoContext(ctx, "Using simulated device")
		dev = device.NewSim(device.SimConfig{Realtime: true})
	} else {
		if cfg.Address == "" {
			slog.Error("No device address configured; set BITALINO_ADDRESS or BITALINO_SIMULATE=true")
			os.Exit(1)
		}
		slog.InfoContext(ctx, "Trying to reach device", "address", cfg.Address)
		serialDev, err := device.OpenSerial(device.SerialConfig{
			Address: cfg.Address,
			Timeout: 5 * time.Second,
		})
		if err != nil {
			slog.Error("Connection error", "error", err)
			os.Exit(1)
		}
		dev = serialDev
	}
	defer dev.Close()

	channels := make([]manager.ChannelSpec, 0, len(cfg.Channels))
	for _, ca := range cfg.Channels {
		channels = append(channels, manager.ChannelSpec{Channel: ca.Channel, Kind: ca.Kind})
	}

	registry := session.NewRegistry()
	stamp := session.Stamp(time.Now())

	mgr, err := manager.New(manager.Config{
		Device:       dev,
		Channels:     channels,
		SamplingRate: cfg.SamplingRate,
		BlockSize:    cfg.BlockSize,
		Runtime:      cfg.Runtime,
		Registry:     registry,
		Stamp:        stamp,
		LogBlocks:    cfg.LogBlocks,
	})
	if err != nil {
		slog.Error("Invalid acquisition setup", "error", err)
		os.Exit(1)
	}

	if err := mgr.Connect(ctx, cfg.PrintState); err != nil {
		os.Exit(1)
	}

	if cfg.CSVEnabled {
		csvSink, err := csvfile.New(csvfile.Config{
			Dir:    cfg.CSVDir,
			Prefix: cfg.CSVPrefix,
			Rate:   mgr.Rate(),
			Stamp:  stamp,
			Labels: mgr.Labels(),
		})
		if err != nil {
			slog.Error("Could not create session file", "error", err)
			os.Exit(1)
		}
		slog.InfoContext(ctx, "Saving session to file", "path", csvSink.Path())
		mgr.AddSink(csvSink)
	}

	if cfg.KafkaBrokers != "" {
		mgr.AddSink(stream.New(stream.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}))
	}

	if cfg.InfluxURL != "" {
		mgr.AddSink(influx.New(influx.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
			Rate:   mgr.Rate(),
		}))
	}

	if cfg.PostgresConn != "" {
		store, err := db.Init(ctx, db.Config{
			ConnString:     cfg.PostgresConn,
			MigrationsPath: cfg.PostgresMigrations,
		})
		if err != nil {
			slog.Error("Database init failed", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		if err := store.CreateSession(ctx, db.SessionRow{
			Stamp:        stamp,
			SamplingRate: mgr.Rate(),
			Labels:       mgr.Labels(),
			StartedAt:    time.Now(),
		}); err != nil {
			slog.Error("Could not register session", "error", err)
			os.Exit(1)
		}
		mgr.AddSink(&db.BlockWriter{DB: store})
	}

	if cfg.PlotEnabled {
		slog.InfoContext(ctx, "Launch plot window...")
		feeder, err := plot.StartProcess(cfg.PlotCommand, mgr.Rate(), mgr.Labels())
		if err != nil {
			slog.Error("Could not launch plotter", "error", err)
			os.Exit(1)
		}
		mgr.SetFeeder(feeder)
	}

	srv := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: api.New(api.Config{Registry: registry}).Router(),
	}
	go func() {
		slog.InfoContext(ctx, "HTTP server listening", "addr", cfg.APIAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sess, err := mgr.Run(ctx)
	if err != nil {
		slog.Error("Acquisition ended with error", "error", err)
	}
	if sess != nil {
		snap := sess.Snapshot()
		slog.Info("Session collected", "stamp", snap.Stamp, "samples", snap.Samples, "labels", snap.Labels)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
}
