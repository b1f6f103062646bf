/*

This file contains the genesis pool definitions for the farm daemon.

Pools listed here are created on first boot, when the database holds no
prior ledger snapshot. Later boots restore the persisted ledger and ignore
this list, so editing it never rewrites an existing deployment.

*/

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// GenesisPool describes one pool to create at first boot.
type GenesisPool struct {
	StakedAsset    string `json:"staked_asset"`
	RewardPerBlock string `json:"reward_per_block"` // base-10 integer, reward units per block
	EpochLength    uint64 `json:"epoch_length"`     // blocks from creation until epoch end
	AllocPoints    uint64 `json:"alloc_points"`
}

// DefaultGenesisPools is the baseline pool set used when FARM_GENESIS_POOLS
// is not supplied.
var DefaultGenesisPools = []GenesisPool{
	{StakedAsset: "ulp-atom-usdc", RewardPerBlock: "10", EpochLength: 1_000_000, AllocPoints: 100},
	{StakedAsset: "ulp-elys-usdc", RewardPerBlock: "25", EpochLength: 1_000_000, AllocPoints: 250},
}

// LoadGenesisPools returns the pool set from the FARM_GENESIS_POOLS env var
// (a JSON array) when present, otherwise the defaults.
func LoadGenesisPools() ([]GenesisPool, error) {
	raw, exists := os.LookupEnv("FARM_GENESIS_POOLS")
	if !exists || raw == "" {
		return DefaultGenesisPools, nil
	}
	var pools []GenesisPool
	if err := json.Unmarshal([]byte(raw), &pools); err != nil {
		return nil, fmt.Errorf("FARM_GENESIS_POOLS is not valid JSON: %w", err)
	}
	for i, p := range pools {
		if p.StakedAsset == "" {
			return nil, fmt.Errorf("FARM_GENESIS_POOLS[%d]: staked_asset is required", i)
		}
		if p.RewardPerBlock == "" {
			return nil, fmt.Errorf("FARM_GENESIS_POOLS[%d]: reward_per_block is required", i)
		}
		if p.EpochLength == 0 {
			return nil, fmt.Errorf("FARM_GENESIS_POOLS[%d]: epoch_length must be positive", i)
		}
	}
	return pools, nil
}
