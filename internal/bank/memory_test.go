package bank

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/0xVov5/farming/internal/types"
)

const (
	denom               = "ulp-test"
	alice types.Address = "alice"
	bob   types.Address = "bob"
)

func TestTransferInMovesToCustody(t *testing.T) {
	b := NewMemoryBank()
	b.Mint(denom, alice, sdkmath.NewInt(100))

	require.NoError(t, b.TransferIn(denom, alice, sdkmath.NewInt(60)))

	have, err := b.BalanceOf(denom, alice)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(40), have)

	custody, err := b.BalanceOf(denom, Custody)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(60), custody)
}

func TestTransferInRejectsInsufficientFunds(t *testing.T) {
	b := NewMemoryBank()
	b.Mint(denom, alice, sdkmath.NewInt(10))

	err := b.TransferIn(denom, alice, sdkmath.NewInt(11))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing moved.
	have, err := b.BalanceOf(denom, alice)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(10), have)
}

func TestTransferOutPaysFromCustody(t *testing.T) {
	b := NewMemoryBank()
	b.Mint(denom, Custody, sdkmath.NewInt(100))

	require.NoError(t, b.TransferOut(denom, bob, sdkmath.NewInt(30)))

	have, err := b.BalanceOf(denom, bob)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(30), have)

	err = b.TransferOut(denom, bob, sdkmath.NewInt(71))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestTransferRejectsNilAmount(t *testing.T) {
	b := NewMemoryBank()

	err := b.TransferIn(denom, alice, sdkmath.Int{})
	require.ErrorIs(t, err, ErrNilAmount)
}

func TestFailNextIsOneShot(t *testing.T) {
	b := NewMemoryBank()
	b.Mint(denom, alice, sdkmath.NewInt(100))

	scripted := errors.New("scripted failure")
	b.FailNext(scripted)

	require.ErrorIs(t, b.TransferIn(denom, alice, sdkmath.NewInt(10)), scripted)
	require.NoError(t, b.TransferIn(denom, alice, sdkmath.NewInt(10)))
}

func TestBalanceOfUnknownOwnerIsZero(t *testing.T) {
	b := NewMemoryBank()

	have, err := b.BalanceOf(denom, alice)
	require.NoError(t, err)
	require.True(t, have.IsZero())
}
