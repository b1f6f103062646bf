package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// RewardDenom is the denom of the asset distributed as reward.
	RewardDenom string

	// AdminAddress is the identity allowed to run administrative calls
	// (pool creation, allocation changes, funding).
	AdminAddress string

	// GenesisHeight is the block height the oracle starts counting from.
	GenesisHeight uint64
	// BlockIntervalMS is the wall-clock milliseconds per block in live mode.
	BlockIntervalMS uint64

	// SnapshotKeep is how many ledger snapshots to retain in the database.
	SnapshotKeep uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	RewardDenom, err = getEnv("FARM_REWARD_DENOM")
	if err != nil {
		return err
	}

	AdminAddress, err = getEnv("FARM_ADMIN_ADDRESS")
	if err != nil {
		return err
	}

	GenesisHeight, err = getEnvAsUint64("FARM_GENESIS_HEIGHT")
	if err != nil {
		return err
	}

	BlockIntervalMS, err = getEnvAsUint64("FARM_BLOCK_INTERVAL_MS")
	if err != nil {
		return err
	}

	SnapshotKeep, err = getEnvAsUint64("FARM_SNAPSHOT_KEEP")
	if err != nil {
		return err
	}

	log.Debug().
		Str("RewardDenom", RewardDenom).
		Str("AdminAddress", AdminAddress).
		Uint64("GenesisHeight", GenesisHeight).
		Uint64("BlockIntervalMS", BlockIntervalMS).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
