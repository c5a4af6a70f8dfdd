package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Supermagnum/gr-sleipnir-sub000/internal/config"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/crypto"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/ldpc"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/link"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/metrics"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/server"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/superframe"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "sleipnird"
	serviceVersion    = "1.0.0"

	voiceCodeName = "voice"
	authCodeName  = "auth"
)

func main() {
	configPath := pflag.StringP("config", "c", defaultConfigPath, "Path to configuration file")
	showVersion := pflag.Bool("version", false, "Print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", serviceName, serviceVersion)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without key material)
	logger.Info("Configuration loaded",
		slog.Int("udp_port", cfg.Server.UDPPort),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("max_concurrent_links", cfg.Server.MaxConcurrentLinks),
		slog.String("callsign", cfg.Link.Callsign),
		slog.Bool("signing_enabled", cfg.Link.SigningEnabled),
		slog.Bool("encryption_enabled", cfg.Link.EncryptionEnabled),
		slog.String("decoder", cfg.LDPC.Decoder),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Load LDPC matrices. A missing matrix path is a degraded but legal
	// configuration: those slots run uncoded.
	codes := ldpc.NewStore()
	voiceCode := loadCode(codes, voiceCodeName, cfg.LDPC.VoiceMatrixPath, logger)
	authCode := loadCode(codes, authCodeName, cfg.LDPC.AuthMatrixPath, logger)

	// Load key material
	cryptoCtx, err := buildCryptoContext(cfg.Crypto, logger)
	if err != nil {
		logger.Error("Failed to load key material", slog.String("error", err.Error()))
		os.Exit(1)
	}

	engineConfig := superframe.Config{
		Callsign:          cfg.Link.Callsign,
		Recipients:        cfg.Link.Recipients,
		SigningEnabled:    cfg.Link.SigningEnabled,
		EncryptionEnabled: cfg.Link.EncryptionEnabled,
		SyncFrameInterval: cfg.Link.SyncFrameInterval,
		MaxIterations:     cfg.LDPC.MaxIterations,
		Variant:           cfg.LDPC.Variant(),
	}

	// Fail fast if the configuration cannot produce a working engine.
	if _, err := superframe.NewEngine(engineConfig, voiceCode, authCode, cryptoCtx); err != nil {
		logger.Error("Invalid link configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	factory := func() (*superframe.Engine, error) {
		return superframe.NewEngine(engineConfig, voiceCode, authCode, cryptoCtx)
	}

	// Initialize link manager
	linkMgr := link.NewManager(logger, appMetrics, cfg.Server.GetLinkTimeoutDuration(),
		cfg.Server.MaxConcurrentLinks, factory)
	logger.Info("Link manager initialized",
		slog.Duration("link_timeout", cfg.Server.GetLinkTimeoutDuration()),
		slog.Int("max_concurrent_links", cfg.Server.MaxConcurrentLinks),
	)

	// Initialize UDP server
	udpServer := server.NewUDPServer(&cfg.Server, logger, linkMgr, appMetrics)
	logger.Info("UDP server initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, linkMgr, udpServer, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start UDP server
	if err := udpServer.Start(); err != nil {
		logger.Error("Failed to start UDP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("udp_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.UDPPort)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop UDP server (stop accepting new datagrams)
	if err := udpServer.Stop(); err != nil {
		logger.Error("Error stopping UDP server", slog.String("error", err.Error()))
	}

	// Stop link manager (cleanup sessions and stop background routines)
	linkMgr.Stop()

	// Get final statistics
	stats := udpServer.GetStatistics()
	logger.Info("Final server statistics",
		slog.Uint64("datagrams_received", stats.DatagramsReceived),
		slog.Uint64("datagrams_ingested", stats.DatagramsIngested),
		slog.Uint64("ingest_errors", stats.IngestErrors),
		slog.Uint64("active_links", stats.ActiveLinks),
	)

	logger.Info("Service stopped")
}

// loadCode loads one named alist matrix into the store, logging rank
// deficiencies. An empty path disables FEC for that slot class.
func loadCode(codes *ldpc.Store, name, path string, logger *slog.Logger) *ldpc.CodeEntry {
	if path == "" {
		logger.Warn("No parity-check matrix configured, running uncoded",
			slog.String("code", name),
		)
		return nil
	}

	entry, err := codes.LoadFile(name, path)
	if err != nil {
		logger.Error("Failed to load parity-check matrix",
			slog.String("code", name),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("Parity-check matrix loaded",
		slog.String("code", name),
		slog.String("path", path),
		slog.Int("n", entry.H.N),
		slog.Int("k", entry.G.K),
	)
	if entry.G.RankDeficiency > 0 {
		logger.Warn("Parity-check matrix is rank deficient, generator is best-effort",
			slog.String("code", name),
			slog.Int("rank_deficiency", entry.G.RankDeficiency),
		)
	}

	return entry
}

// buildCryptoContext loads the configured key files into a crypto context.
// Missing paths leave the corresponding capability disabled.
func buildCryptoContext(cfg config.CryptoConfig, logger *slog.Logger) (*crypto.Context, error) {
	var (
		signingKey []byte
		verifyKey  []byte
		symmetric  []byte
	)

	if cfg.SigningKeyPath != "" {
		key, err := crypto.LoadSigningKey(cfg.SigningKeyPath)
		if err != nil {
			return nil, err
		}
		signingKey = key
		logger.Info("Signing key loaded", slog.String("path", cfg.SigningKeyPath))
	}

	if cfg.VerifyKeyPath != "" {
		key, err := crypto.LoadVerifyKey(cfg.VerifyKeyPath)
		if err != nil {
			return nil, err
		}
		verifyKey = key
		logger.Info("Verify key loaded", slog.String("path", cfg.VerifyKeyPath))
	}

	if cfg.SymmetricKeyPath != "" {
		key, err := crypto.LoadSymmetricKey(cfg.SymmetricKeyPath)
		if err != nil {
			return nil, err
		}
		symmetric = key
		logger.Info("Symmetric key loaded", slog.String("path", cfg.SymmetricKeyPath))
	}

	return crypto.NewContext(signingKey, verifyKey, symmetric)
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
