// Package main is the entry point for the routing engine server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avrouter/internal/config"
	"github.com/vyrodovalexey/avrouter/internal/engine"
	"github.com/vyrodovalexey/avrouter/internal/handler"
	"github.com/vyrodovalexey/avrouter/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	routesRoot  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg, configPath := loadConfig(flags, logger)

	registerBuiltinHandlers()

	eng, err := engine.New(cfg, handler.Default(), engine.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to initialize engine", observability.Error(err))
	}
	eng.SetBuildInfo(version, gitCommit, buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Load(ctx); err != nil {
		logger.Fatal("failed to load routes", observability.Error(err))
	}
	logger.Info("routes applied", observability.Int("bindings", len(eng.Routes())))

	watcher := startConfigWatcher(eng, configPath, logger)

	runErr := eng.Run(ctx)

	if watcher != nil {
		_ = watcher.Stop()
	}
	if err := eng.Close(); err != nil {
		logger.Error("shutdown cleanup failed", observability.Error(err))
	}
	if runErr != nil {
		logger.Fatal("server failed", observability.Error(runErr))
	}
	logger.Info("server stopped")
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("ROUTER_CONFIG_PATH", "configs/router.yaml"),
		"Path to configuration file")
	routesRoot := flag.String("routes", getEnvOrDefault("ROUTER_ROUTES_ROOT", ""),
		"Route tree root directory (overrides config)")
	logLevel := flag.String("log-level", getEnvOrDefault("ROUTER_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("ROUTER_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		routesRoot:  *routesRoot,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("avrouter version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadConfig loads the configuration file. A missing file falls back
// to defaults so the binary runs with just a routes directory. Returns
// the resolved path, empty when no file is watched.
func loadConfig(flags cliFlags, logger observability.Logger) (*config.Config, string) {
	logger.Info("starting avrouter",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	var cfg *config.Config
	configPath, err := config.ResolveConfigPath(flags.configPath)
	if err != nil {
		logger.Warn("configuration file not found, using defaults",
			observability.String("config", flags.configPath),
		)
		cfg = config.DefaultConfig()
		configPath = ""
	} else {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			logger.Fatal("failed to load configuration", observability.Error(err))
		}
	}

	if flags.routesRoot != "" {
		cfg.Routes.Root = flags.routesRoot
	}
	cfg.Log.Level = flags.logLevel
	cfg.Log.Format = flags.logFormat

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("routesRoot", cfg.Routes.Root),
		observability.String("adapter", cfg.Adapter),
		observability.Bool("watch", cfg.Routes.Watch),
	)
	return cfg, configPath
}

// startConfigWatcher reloads the engine when the configuration file
// changes. A rejected configuration keeps the previous one serving.
func startConfigWatcher(eng *engine.Engine, configPath string, logger observability.Logger) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("configuration changed, reloading")
		if reloadErr := eng.ApplyConfig(context.Background(), newCfg); reloadErr != nil {
			logger.Error("failed to apply new configuration", observability.Error(reloadErr))
		}
	}, config.WithLogger(logger))
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}
	return watcher
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
