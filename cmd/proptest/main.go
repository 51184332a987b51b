package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/proptest/internal/application"
	"github.com/eugenenazirov/proptest/internal/config"
	"github.com/eugenenazirov/proptest/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	overrides, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "proptest: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "proptest: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "proptest: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to load properties", zap.Error(err))
	}

	app.Report()

	if !cfg.Serve {
		return
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

// parseArgs turns command-line flags into configuration overrides.
func parseArgs(args []string) (*config.CLIOverrides, error) {
	kingpinApp := kingpin.New("proptest", "Loads layered property files, resolves placeholders and binds typed configuration records")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file for proptest itself").String()
	files := kingpinApp.Flag("config-file", "Property file to load (.properties, .yaml, .yml, .toml); repeatable, later files win").Short('f').Strings()
	var defaultsSet bool
	defaultsFile := kingpinApp.Flag("defaults", "Optional lowest-precedence defaults file").IsSetByUser(&defaultsSet).String()
	defines := kingpinApp.Flag("define", "System property override as key=value; repeatable").Short('D').StringMap()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	var serveSet bool
	serve := kingpinApp.Flag("serve", "Serve the read-only HTTP view after the startup report").IsSetByUser(&serveSet).Bool()
	port := kingpinApp.Flag("port", "HTTP port exposed by the read-only view").String()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter").Default("-1").Int()

	if _, err := kingpinApp.Parse(args); err != nil {
		return nil, err
	}

	overrides := &config.CLIOverrides{
		ConfigFile:       *configFile,
		Files:            *files,
		SystemProperties: *defines,
	}

	if defaultsSet {
		overrides.DefaultsFile = defaultsFile
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if serveSet {
		overrides.Serve = serve
	}

	if *port != "" {
		overrides.Port = port
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	return overrides, nil
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
