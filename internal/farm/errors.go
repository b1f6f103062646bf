package farm

import "errors"

var (
	ErrUnauthorized        = errors.New("farm engine: caller lacks admin authority")
	ErrDuplicatePool       = errors.New("farm engine: staked asset already has a pool")
	ErrPoolNotFound        = errors.New("farm engine: pool not found")
	ErrEpochEnded          = errors.New("farm engine: pool epoch has ended")
	ErrInvalidAmount       = errors.New("farm engine: amount must be positive")
	ErrInvalidAsset        = errors.New("farm engine: staked asset denom must not be empty")
	ErrInsufficientBalance = errors.New("farm engine: insufficient staked balance")
	ErrZeroAddress         = errors.New("farm engine: recipient is the zero address")
	ErrArithmeticOverflow  = errors.New("farm engine: value does not fit required width")
	ErrTransferFailed      = errors.New("farm engine: asset transfer failed")
	ErrAuthorityFixed      = errors.New("farm engine: authority gate does not support delegation")

	// errNegativePending marks a broken debt invariant. It is an internal
	// defect, never a valid end-user outcome.
	errNegativePending = errors.New("farm engine: negative pending reward, debt invariant violated")
)
