package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"lanshare/internal/cli"
	"lanshare/internal/config"
	"lanshare/internal/journal"
	"lanshare/internal/session"
	"lanshare/internal/util/logger/handlers/slogpretty"
	"lanshare/internal/util/logger/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg, configPath := config.MustLoad()

	log := setupLogger(cfg.Env)

	displayName := cfg.Name
	if displayName == "" {
		displayName, _ = os.Hostname()
	}

	log.Info("starting lanshare",
		slog.String("name", displayName),
		slog.Int("discovery_port", cfg.DiscoveryPort),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChanel := make(chan os.Signal, 1)
	signal.Notify(signalChanel, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signalChanel
		log.Info("shutdown signal received", slog.Any("signal", sig))
		cancel()
	}()

	var jrnl *journal.Journal
	if cfg.JournalPath != "" {
		var err error
		jrnl, err = journal.New(journal.Config{
			Path:   cfg.JournalPath,
			Logger: log,
		})
		if err != nil {
			// The journal is diagnostics only, run without it.
			log.Error("failed to open journal", sl.Err(err))
		} else {
			defer jrnl.Close()
		}
	}

	manager := session.NewManager(session.ManagerConfig{
		DisplayName:    displayName,
		DiscoveryPort:  cfg.DiscoveryPort,
		BroadcastAddr:  cfg.BroadcastAddr,
		BeaconInterval: cfg.BeaconInterval,
	}, log, recorder(jrnl))
	defer manager.Shutdown()

	watcher, err := config.NewWatcher(configPath, func(fresh *config.Config) {
		// The name is the only setting safe to change between sessions.
		manager.SetDisplayName(fresh.Name)
	}, config.WatcherConfig{Logger: log})
	if err != nil {
		log.Warn("config watcher unavailable", sl.Err(err))
	} else {
		defer watcher.Close()
	}

	cmdContext := cli.NewAppContext(manager, jrnl, log)

	cli.CliStart(ctx, flag.Args(), cmdContext)

	log.Info("lanshare shutting down gracefully")
}

// recorder avoids handing the manager a typed nil when the journal is
// disabled.
func recorder(jrnl *journal.Journal) session.Recorder {
	if jrnl == nil {
		return nil
	}
	return jrnl
}

func setupLogger(env string) *slog.Logger {

	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
