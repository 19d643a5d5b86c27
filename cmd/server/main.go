package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tokendesk/internal/api"
	"tokendesk/internal/blockchain/cosmos"
	"tokendesk/internal/blockchain/evm"
	"tokendesk/internal/config"
	"tokendesk/internal/coordinator"
	"tokendesk/internal/database"
	"tokendesk/internal/ledger"
	"tokendesk/internal/service"
	"tokendesk/internal/worker"
)

const startupTimeout = 30 * time.Second

// tokenLedger is everything the service needs from a ledger backend
type tokenLedger interface {
	ledger.Client
	ledger.TokenReader
}

type backend struct {
	ledger    tokenLedger
	addresses ledger.AddressParser
	close     func()
}

func main() {
	// Initialize logger
	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting token desk service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("ledger_backend", cfg.Ledger.Backend),
		zap.Bool("audit_mirror", cfg.Database.Enabled()))

	startCtx, startCancel := context.WithTimeout(context.Background(), startupTimeout)
	defer startCancel()

	// Connect to the ledger
	be, err := newBackend(startCtx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize ledger backend", zap.Error(err))
	}
	defer be.close()

	// Optional audit mirror
	var auditor coordinator.Auditor
	if cfg.Database.Enabled() {
		db, err := database.Connect(startCtx, cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.RunMigrations(startCtx); err != nil {
			logger.Warn("Failed to run migrations (may already be applied)", zap.Error(err))
		} else {
			logger.Info("Database migrations applied successfully")
		}
		auditor = db
	}

	// Read model and coordinator
	tokenService := service.NewTokenService(be.ledger, cfg.Coordinator.DefaultDecimals, logger)
	coord := coordinator.New(coordinator.Deps{
		Ledger:    be.ledger,
		Addresses: be.addresses,
		ReadModel: tokenService,
		Auditor:   auditor,
	}, coordinator.Options{
		ClearDelay:      cfg.Coordinator.StatusClearDelay,
		DefaultDecimals: cfg.Coordinator.DefaultDecimals,
	}, logger)

	// Background token refresh
	workerManager := worker.NewManager(tokenService, cfg.Token.RefreshInterval, logger)
	workerManager.Start()

	// HTTP API
	apiHandler := api.NewHandler(coord, tokenService, workerManager, cfg.Explorer.TxURL, logger)
	router := api.SetupRouter(apiHandler, cfg.Server.AllowedOrigins, logger)

	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", serverAddr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	logger.Info("Service initialized successfully",
		zap.String("status", "ready"),
		zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("HTTP server error", zap.Error(err))
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	logger.Info("Shutting down service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop taking requests before cancelling in-flight runs
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		httpServer.Close()
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	if err := workerManager.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}

	if err := coord.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("Coordinator shutdown error", zap.Error(err))
	}

	logger.Info("Service stopped successfully")
}

func newBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.Ledger.Backend {
	case config.BackendEVM:
		client, err := evm.NewClient(ctx, &cfg.EVM, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create EVM client: %w", err)
		}
		token, err := evm.NewToken(client, common.HexToAddress(cfg.EVM.TokenAddress), cfg.EVM.ReceiptPollInterval, logger)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to bind token contract: %w", err)
		}
		logger.Info("EVM ledger initialized",
			zap.String("token", token.Address().Hex()),
			zap.String("signer", client.From().Hex()))
		return &backend{
			ledger:    token,
			addresses: token,
			close:     client.Close,
		}, nil

	case config.BackendCosmos:
		client, err := cosmos.NewClient(ctx, &cfg.Cosmos, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Cosmos client: %w", err)
		}
		token := cosmos.NewCW20(client, cfg.Cosmos.TokenContract, cfg.Cosmos.Bech32Prefix, cfg.Cosmos.PollInterval, logger)
		logger.Info("Cosmos ledger initialized",
			zap.String("contract", cfg.Cosmos.TokenContract),
			zap.String("signer", client.Sender()))
		return &backend{
			ledger:    token,
			addresses: cosmos.Addresses{Prefix: cfg.Cosmos.Bech32Prefix},
			close: func() {
				if err := client.Close(); err != nil {
					logger.Error("Error closing Cosmos client", zap.Error(err))
				}
			},
		}, nil
	}

	return nil, fmt.Errorf("unsupported ledger backend %q", cfg.Ledger.Backend)
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENV")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
