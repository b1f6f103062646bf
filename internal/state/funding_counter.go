/*

This file manages the persistent global funding counter. The cumulative
reward funding total is stored in the database to ensure continuity across
restarts.

*/

package state

import (
	"database/sql"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// GetTotalFunding retrieves the cumulative funding total from the database.
func GetTotalFunding() (sdkmath.Int, error) {
	if DB == nil {
		return sdkmath.ZeroInt(), fmt.Errorf("database not initialized")
	}

	query := `SELECT total_funding FROM funding_counter WHERE id = 1;`

	var raw string
	row := DB.QueryRow(query)
	err := row.Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Warn().Msg("No funding counter row found, initializing to 0")
			return sdkmath.ZeroInt(), nil
		}
		return sdkmath.ZeroInt(), fmt.Errorf("failed to get funding total: %w", err)
	}

	total, err := parseInt(raw)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	log.Debug().Str("totalFunding", total.String()).Msg("Retrieved funding total")
	return total, nil
}

// AddFunding adds a funding receipt to the counter and returns the new total.
func AddFunding(amount sdkmath.Int) (sdkmath.Int, error) {
	if DB == nil {
		return sdkmath.ZeroInt(), fmt.Errorf("database not initialized")
	}
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("funding amount must be non-negative")
	}

	updateQuery := `
		UPDATE funding_counter
		SET total_funding = total_funding + $1::NUMERIC,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING total_funding;`

	var raw string
	row := DB.QueryRow(updateQuery, amount.String())
	if err := row.Scan(&raw); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to add funding: %w", err)
	}

	total, err := parseInt(raw)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	log.Info().Str("amount", amount.String()).Str("totalFunding", total.String()).Msg("Recorded funding receipt")
	return total, nil
}

// SetTotalFunding overwrites the counter, used when resyncing it from a
// ledger snapshot at boot.
func SetTotalFunding(total sdkmath.Int) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if total.IsNil() || total.IsNegative() {
		return fmt.Errorf("funding total must be non-negative")
	}

	updateQuery := `
		UPDATE funding_counter
		SET total_funding = $1::NUMERIC,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	result, err := DB.Exec(updateQuery, total.String())
	if err != nil {
		return fmt.Errorf("failed to set funding total: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when setting funding total")
	}

	log.Warn().Str("totalFunding", total.String()).Msg("Reset funding counter")
	return nil
}
