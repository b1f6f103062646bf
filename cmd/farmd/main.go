package main

import (
	"context"
	"os"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/0xVov5/farming/internal/bank"
	"github.com/0xVov5/farming/internal/config"
	"github.com/0xVov5/farming/internal/farm"
	"github.com/0xVov5/farming/internal/logger"
	"github.com/0xVov5/farming/internal/oracle"
	"github.com/0xVov5/farming/internal/service"
	"github.com/0xVov5/farming/internal/state"
	"github.com/0xVov5/farming/internal/types"
	"github.com/0xVov5/farming/internal/utils"
	"github.com/0xVov5/farming/internal/web"
)

const (
	CHECKPOINT_INTERVAL = 1 * time.Minute
)

// main is the entry point for the farm daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Farm Ledger Daemon Starting...")

	// --- 2. Mode Selection (with Safety Switch) ---
	// "live" persists every event and snapshot to Postgres. "sim" keeps the
	// whole ledger in memory for local experimentation. Anything else halts.
	farmdMode := os.Getenv("FARMD_MODE")
	var persist bool
	switch farmdMode {
	case "live":
		log.Warn().Msg("Initializing farmd in LIVE mode. Ledger state will be persisted.")
		persist = true
	case "sim":
		log.Info().Msg("Initializing farmd in SIM mode. Ledger state is in-memory only.")
		persist = false
	default:
		log.Fatal().Msg("FARMD_MODE is not set to 'live' or 'sim'. Halting to prevent accidental execution.")
	}

	var events farm.EventSink
	if persist {
		dbCfg := state.DBConfig{
			Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
			User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
			DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		events = state.NewEventSink()
	} else {
		events = farm.NewMemorySink()
	}

	// --- 3. Collaborator Wiring ---
	blockInterval := time.Duration(config.BlockIntervalMS) * time.Millisecond
	blocks := oracle.NewTicker(config.GenesisHeight, blockInterval)

	memBank := bank.NewMemoryBank()

	engine, err := farm.NewEngine(farm.Config{
		Store:       farm.NewStore(),
		Bank:        memBank,
		Blocks:      blocks,
		Events:      events,
		Auth:        farm.NewStaticAuthority(types.Address(config.AdminAddress)),
		RewardDenom: config.RewardDenom,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create farm engine")
	}

	// --- 4. Ledger Restore or Genesis ---
	restored := false
	if persist {
		snap, err := state.LoadLatestSnapshot()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load latest ledger snapshot")
		}
		if snap != nil {
			engine.Restore(snap.Pools, snap.Positions, snap.TotalAllocPoints, snap.TotalFunding)
			if counter, err := state.GetTotalFunding(); err != nil {
				log.Error().Err(err).Msg("Failed to read funding counter")
			} else if !counter.Equal(snap.TotalFunding) {
				// Funding receipts that landed after the snapshot was taken are
				// lost with the rest of the post-snapshot ledger; the counter
				// follows the restored state.
				log.Warn().
					Str("counter", counter.String()).
					Str("snapshot", snap.TotalFunding.String()).
					Msg("Funding counter diverged from snapshot, resyncing")
				if err := state.SetTotalFunding(snap.TotalFunding); err != nil {
					log.Error().Err(err).Msg("Failed to resync funding counter from snapshot")
				}
			}
			restored = true
			log.Info().
				Int64("snapshotId", snap.SnapshotID).
				Uint64("blockHeight", snap.BlockHeight).
				Int("pools", len(snap.Pools)).
				Int("positions", len(snap.Positions)).
				Msg("Ledger restored from snapshot")
		}
	}

	if !restored {
		if err := createGenesisPools(engine, memBank, blocks.CurrentHeight()); err != nil {
			log.Fatal().Err(err).Msg("Failed to create genesis pools")
		}
	}

	// --- 5. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, engine, blocks, persist)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting farm API server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 6. Start Checkpoint Loop ---
	svc, err := service.NewService(service.Config{
		Engine:       engine,
		Blocks:       blocks,
		SnapshotKeep: int(config.SnapshotKeep),
		Persist:      persist,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create checkpoint service")
	}

	log.Info().Str("interval", CHECKPOINT_INTERVAL.String()).Msg("Starting checkpoint loop")

	ctx := context.Background()
	svc.RunLoop(ctx, CHECKPOINT_INTERVAL)
}

// createGenesisPools registers the configured pool set and seeds the reward
// budget. Runs only on a first boot with no snapshot to restore.
func createGenesisPools(engine *farm.Engine, memBank *bank.MemoryBank, height uint64) error {
	pools, err := config.LoadGenesisPools()
	if err != nil {
		return err
	}

	admin := types.Address(config.AdminAddress)

	// Seed the admin with a reward budget and route it through FundRewards so
	// the funding counter and event log see it.
	budget := sdkmath.NewIntWithDecimal(1, 24)
	memBank.Mint(config.RewardDenom, admin, budget)
	if err := engine.FundRewards(admin, budget); err != nil {
		return err
	}

	for _, gp := range pools {
		rewardPerBlock, err := utils.ParseAmount(gp.RewardPerBlock)
		if err != nil {
			return err
		}
		pool, err := engine.CreatePool(admin, gp.StakedAsset, rewardPerBlock, height+gp.EpochLength, gp.AllocPoints)
		if err != nil {
			return err
		}
		log.Info().
			Uint64("poolId", uint64(pool.ID)).
			Str("stakedAsset", pool.StakedAsset).
			Uint64("epochEndBlock", pool.EpochEndBlock).
			Msg("Genesis pool created")
	}
	return nil
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
