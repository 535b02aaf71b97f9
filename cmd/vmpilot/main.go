// vmpilot serves LLM conversation turns over WebSocket. It wires the
// configured provider, chat store and tool registry into the turn
// orchestrator, starts the retention cleanup job, and runs the gateway
// until interrupted.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/drorm/vmpilot/internal/config"
	"github.com/drorm/vmpilot/internal/logger"
	"github.com/drorm/vmpilot/internal/project"
	"github.com/drorm/vmpilot/pkg/chat"
	"github.com/drorm/vmpilot/pkg/gateway"
	"github.com/drorm/vmpilot/pkg/orchestrator"
	"github.com/drorm/vmpilot/pkg/toolexec"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	workDir := flag.String("dir", "", "project working directory (default: cwd)")
	flag.Parse()

	if err := run(*configPath, *workDir); err != nil {
		fmt.Fprintf(os.Stderr, "vmpilot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, workDir string) error {
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSize,
		MaxAgeDays: cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    true,
		Redaction:  cfg.Logging.Redaction,
	})
	if err != nil {
		return err
	}
	defer log.Close()
	zl := log.Zerolog()

	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if closer, ok := store.(*chat.SQLiteStore); ok {
		defer closer.Close()
	}

	cleanup := chat.NewCleanup(store,
		time.Duration(cfg.Chat.RetentionDays)*24*time.Hour,
		cfg.Chat.CleanupSpec, zl)
	if err := cleanup.Start(); err != nil {
		return err
	}
	defer cleanup.Stop()

	proj := project.New(workDir, zl)
	watcher, err := project.NewPromptWatcher(proj, zl)
	if err != nil {
		return err
	}

	o, err := orchestrator.New(cfg,
		orchestrator.WithStore(store),
		orchestrator.WithExecutor(toolexec.New()),
		orchestrator.WithBootstrapper(proj),
		orchestrator.WithPromptSource(proj),
		orchestrator.WithProjectRoot(workDir),
		orchestrator.WithLogger(zl),
	)
	if err != nil {
		return err
	}

	// Hot-reload the project prompt once the layout exists
	if err := watcher.Start(); err != nil {
		zl.Warn().Err(err).Msg("Prompt watcher unavailable")
	} else {
		defer watcher.Stop()
	}

	if !cfg.Gateway.Enabled {
		return fmt.Errorf("gateway is disabled; enable it in the config to serve turns")
	}

	server, err := gateway.NewServer(gateway.Config{
		Host:   cfg.Gateway.Host,
		Port:   cfg.Gateway.Port,
		Runner: o,
		Logger: zl,
	})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	zl.Info().Msg("Shutting down")
	return server.Stop()
}

func openStore(cfg *config.Config) (chat.Store, error) {
	switch cfg.Chat.Backend {
	case "memory":
		return chat.NewMemoryStore(), nil
	case "sqlite":
		dataDir := cfg.DataDir
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			dataDir = filepath.Join(home, ".vmpilot")
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, err
		}
		return chat.NewSQLiteStore(filepath.Join(dataDir, "chats.db"))
	default:
		return nil, fmt.Errorf("unsupported chat backend: %s", cfg.Chat.Backend)
	}
}
