// ./internal/state/event_store.go
package state

import (
	"database/sql"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/0xVov5/farming/internal/types"
)

// EventSink persists engine events into the append-only farm_events table.
// It satisfies the engine's sink interface.
type EventSink struct{}

func NewEventSink() *EventSink {
	return &EventSink{}
}

// Append inserts one event. Funding receipts additionally bump the
// funding_counter row so the cumulative total survives restarts.
func (s *EventSink) Append(event types.Event) error {
	if err := InsertEvent(event); err != nil {
		return err
	}
	if event.Kind == types.EventRewardsFunded {
		if _, err := AddFunding(event.Amount); err != nil {
			// Event row is already in; the counter will resync from the next
			// ledger snapshot.
			log.Error().Err(err).Msg("Failed to bump funding counter")
		}
	}
	return nil
}

// InsertEvent appends a single event row.
func InsertEvent(event types.Event) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO farm_events (
            event_id, kind, event_timestamp, actor, pool_id, amount,
            recipient, block_height, total_staked, acc_reward_per_share
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	_, err := DB.Exec(
		stmt,
		event.ID, string(event.Kind), event.Timestamp, event.Actor.String(),
		uint64(event.PoolID), intString(event.Amount),
		event.Recipient.String(), event.BlockHeight,
		intString(event.TotalStaked), intString(event.AccRewardPerShare),
	)
	if err != nil {
		return fmt.Errorf("failed to insert farm event: %w", err)
	}

	log.Debug().
		Str("eventId", event.ID).
		Str("kind", string(event.Kind)).
		Uint64("poolId", uint64(event.PoolID)).
		Msg("Persisted farm event")
	return nil
}

// GetRecentEvents returns the newest events first.
func GetRecentEvents(limit int) ([]types.Event, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
        SELECT event_id, kind, event_timestamp, actor, pool_id, amount,
               recipient, block_height, total_staked, acc_reward_per_share
        FROM farm_events
        ORDER BY seq DESC
        LIMIT $1;`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query farm events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetPoolEvents returns the newest events for one pool first.
func GetPoolEvents(poolID types.PoolID, limit int) ([]types.Event, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
        SELECT event_id, kind, event_timestamp, actor, pool_id, amount,
               recipient, block_height, total_staked, acc_reward_per_share
        FROM farm_events
        WHERE pool_id = $1
        ORDER BY seq DESC
        LIMIT $2;`

	rows, err := DB.Query(query, uint64(poolID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]types.Event, error) {
	var events []types.Event
	for rows.Next() {
		var (
			ev                     types.Event
			kind, actor, recipient string
			poolID, blockHeight    int64
			amount, total, acc     string
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.Timestamp, &actor, &poolID, &amount,
			&recipient, &blockHeight, &total, &acc); err != nil {
			return nil, fmt.Errorf("failed to scan farm event: %w", err)
		}
		ev.Kind = types.EventKind(kind)
		ev.Actor = types.Address(actor)
		ev.Recipient = types.Address(recipient)
		ev.PoolID = types.PoolID(poolID)
		ev.BlockHeight = uint64(blockHeight)
		var err error
		if ev.Amount, err = parseInt(amount); err != nil {
			return nil, err
		}
		if ev.TotalStaked, err = parseInt(total); err != nil {
			return nil, err
		}
		if ev.AccRewardPerShare, err = parseInt(acc); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate farm events: %w", err)
	}
	return events, nil
}

func intString(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}

func parseInt(s string) (sdkmath.Int, error) {
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to parse stored amount %q", s)
	}
	return v, nil
}
