package bank

import (
	sdkmath "cosmossdk.io/math"

	"github.com/0xVov5/farming/internal/types"
)

// TransferClient defines the interface for moving assets between depositors
// and the farm's custody account. This interface abstracts away the specific
// implementation details of asset custody, allowing for different backends
// (in-memory, external settlement, simulation).
//
// The client is untrusted with respect to re-entry: the engine commits all
// ledger mutations before calling it, and any error returned here aborts the
// calling settlement operation atomically.
type TransferClient interface {
	// TransferIn pulls amount of denom from the depositor into custody.
	TransferIn(denom string, from types.Address, amount sdkmath.Int) error

	// TransferOut pays amount of denom out of custody to the recipient.
	TransferOut(denom string, to types.Address, amount sdkmath.Int) error

	// BalanceOf reports the owner's balance of denom.
	BalanceOf(denom string, owner types.Address) (sdkmath.Int, error)
}
