// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/0xVov5/farming/internal/types"
)

// LedgerSnapshot is one full-ledger checkpoint row.
type LedgerSnapshot struct {
	SnapshotID       int64                `json:"snapshot_id"`
	CreatedAt        time.Time            `json:"created_at"`
	BlockHeight      uint64               `json:"block_height"`
	TotalAllocPoints uint64               `json:"total_alloc_points"`
	TotalFunding     sdkmath.Int          `json:"total_funding"`
	Pools            []types.Pool         `json:"pools"`
	Positions        []types.UserPosition `json:"positions"`
}

// SaveLedgerSnapshot persists a checkpoint of the whole ledger.
func SaveLedgerSnapshot(snap LedgerSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	poolsJSON, err := json.Marshal(snap.Pools)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal pools: %w", err)
	}
	positionsJSON, err := json.Marshal(snap.Positions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal positions: %w", err)
	}

	stmt := `
        INSERT INTO ledger_snapshots (
            block_height, total_alloc_points, total_funding, pools, positions
        ) VALUES ($1, $2, $3, $4, $5)
        RETURNING snapshot_id;`

	var snapshotID int64
	err = DB.QueryRow(
		stmt,
		snap.BlockHeight, snap.TotalAllocPoints, intString(snap.TotalFunding),
		poolsJSON, positionsJSON,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ledger snapshot: %w", err)
	}

	log.Info().
		Int64("snapshotId", snapshotID).
		Uint64("blockHeight", snap.BlockHeight).
		Int("pools", len(snap.Pools)).
		Int("positions", len(snap.Positions)).
		Msg("Saved ledger snapshot")
	return snapshotID, nil
}

// LoadLatestSnapshot returns the newest checkpoint, or nil if none exists yet.
func LoadLatestSnapshot() (*LedgerSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT snapshot_id, created_at, block_height, total_alloc_points,
               total_funding, pools, positions
        FROM ledger_snapshots
        ORDER BY snapshot_id DESC
        LIMIT 1;`

	var (
		snap          LedgerSnapshot
		rawFunding    string
		poolsJSON     []byte
		positionsJSON []byte
	)
	row := DB.QueryRow(query)
	err := row.Scan(&snap.SnapshotID, &snap.CreatedAt, &snap.BlockHeight,
		&snap.TotalAllocPoints, &rawFunding, &poolsJSON, &positionsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan ledger snapshot: %w", err)
	}

	if snap.TotalFunding, err = parseInt(rawFunding); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(poolsJSON, &snap.Pools); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pools: %w", err)
	}
	if err := json.Unmarshal(positionsJSON, &snap.Positions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal positions: %w", err)
	}

	log.Info().
		Int64("snapshotId", snap.SnapshotID).
		Uint64("blockHeight", snap.BlockHeight).
		Msg("Loaded ledger snapshot")
	return &snap, nil
}

// PruneSnapshots keeps the newest keep rows and deletes the rest.
func PruneSnapshots(keep int) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if keep < 1 {
		keep = 1
	}

	stmt := `
        DELETE FROM ledger_snapshots
        WHERE snapshot_id NOT IN (
            SELECT snapshot_id FROM ledger_snapshots
            ORDER BY snapshot_id DESC
            LIMIT $1
        );`

	result, err := DB.Exec(stmt, keep)
	if err != nil {
		return fmt.Errorf("failed to prune ledger snapshots: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		log.Debug().Int64("pruned", n).Msg("Pruned old ledger snapshots")
	}
	return nil
}
