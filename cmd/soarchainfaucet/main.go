package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Soar-Robotics/SoarchainFaucet/internal/api"
	"github.com/Soar-Robotics/SoarchainFaucet/internal/blockchain"
	"github.com/Soar-Robotics/SoarchainFaucet/internal/config"
	"github.com/Soar-Robotics/SoarchainFaucet/internal/faucet"
	"github.com/Soar-Robotics/SoarchainFaucet/internal/ledger"
	"github.com/Soar-Robotics/SoarchainFaucet/internal/storage"
	"github.com/Soar-Robotics/SoarchainFaucet/internal/utils"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	logger := utils.GetLogger("faucet")

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	engine, err := faucet.NewEngine(cfg.Faucet.EngineConfig(), store, logger)
	if err != nil {
		logger.Fatalf("Failed to build faucet engine: %v", err)
	}

	// Claims are evaluated at chain time when a node is configured.
	var clock blockchain.Clock = blockchain.SystemClock{}
	if cfg.RPCEndpoint != "" {
		blockClock, err := blockchain.NewBlockClock(cfg.RPCEndpoint)
		if err != nil {
			logger.Fatalf("Failed to connect to WebSocket: %v", err)
		}
		go func() {
			logger.Println("Connected to WebSocket, following new blocks...")
			blockClock.ReadBlocks(ctx, utils.GetLogger("chain"))
		}()
		clock = blockClock
	}

	counter := api.NewOutcomeCounter()
	handler := api.NewHandler(engine, clock, cfg.Faucet.Denom, counter, utils.GetLogger("api"))
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.SetupRouter(handler, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("Starting API server on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to run API server: %v", err)
		}
	}()

	// Block until a signal is received
	<-ctx.Done()
	logger.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("API server shutdown: %v", err)
	}
	counter.PrintCounts(logger)
}

// openStore returns the postgres-backed store when a DSN is configured and an
// in-memory one otherwise. Either way the reserve is funded on first boot.
func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (faucet.Store, func()) {
	f := cfg.Faucet

	if cfg.DatabaseDSN == "" {
		logger.Println("No database configured, keeping faucet state in memory")
		l := ledger.NewMemory(map[string]uint64{f.ReserveAddress: f.InitialReserve})
		return faucet.NewMemoryStore(l), func() {}
	}

	db, err := storage.OpenPostgres(cfg.DatabaseDSN, utils.GetLogger("db"))
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf("Failed to get database handle: %v", err)
	}

	store := storage.New(db)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatalf("Failed to migrate database schema: %v", err)
	}
	seeded, err := store.Seed(ctx, f.Owner, f.ReserveAddress, f.InitialReserve)
	if err != nil {
		logger.Fatalf("Failed to seed faucet state: %v", err)
	}
	if seeded {
		logger.Printf("Funded reserve %s with %d%s", f.ReserveAddress, f.InitialReserve, f.Denom)
	}

	return store, func() { sqlDB.Close() }
}
