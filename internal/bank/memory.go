package bank

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/0xVov5/farming/internal/types"
)

var (
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	ErrNilAmount         = errors.New("bank: amount is nil")
)

// Custody is the identity holding all assets pulled in by the farm.
const Custody types.Address = "farm-custody"

// MemoryBank is an in-process TransferClient keeping per-denom balances in a
// map. It backs the daemon's default mode and the test suites. FailNext lets
// tests script a one-shot collaborator failure to exercise the abort path.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[string]map[types.Address]sdkmath.Int
	failNext error
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		balances: make(map[string]map[types.Address]sdkmath.Int),
	}
}

// Mint credits an owner out of thin air. Fixture and genesis seeding only.
func (b *MemoryBank) Mint(denom string, owner types.Address, amount sdkmath.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(denom, owner, amount)
}

// FailNext makes the next transfer call return err instead of executing.
func (b *MemoryBank) FailNext(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = err
}

func (b *MemoryBank) TransferIn(denom string, from types.Address, amount sdkmath.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return err
	}
	if err := b.debit(denom, from, amount); err != nil {
		return err
	}
	b.credit(denom, Custody, amount)
	return nil
}

func (b *MemoryBank) TransferOut(denom string, to types.Address, amount sdkmath.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeFailure(); err != nil {
		return err
	}
	if err := b.debit(denom, Custody, amount); err != nil {
		return err
	}
	b.credit(denom, to, amount)
	return nil
}

func (b *MemoryBank) BalanceOf(denom string, owner types.Address) (sdkmath.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance(denom, owner), nil
}

func (b *MemoryBank) takeFailure() error {
	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return err
	}
	return nil
}

func (b *MemoryBank) balance(denom string, owner types.Address) sdkmath.Int {
	if ledger, ok := b.balances[denom]; ok {
		if v, ok := ledger[owner]; ok && !v.IsNil() {
			return v
		}
	}
	return sdkmath.ZeroInt()
}

func (b *MemoryBank) credit(denom string, owner types.Address, amount sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() {
		return
	}
	ledger, ok := b.balances[denom]
	if !ok {
		ledger = make(map[types.Address]sdkmath.Int)
		b.balances[denom] = ledger
	}
	ledger[owner] = b.balance(denom, owner).Add(amount)
}

func (b *MemoryBank) debit(denom string, owner types.Address, amount sdkmath.Int) error {
	if amount.IsNil() {
		return ErrNilAmount
	}
	if !amount.IsPositive() {
		return nil
	}
	have := b.balance(denom, owner)
	if have.LT(amount) {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientFunds, owner, have, denom, amount)
	}
	b.balances[denom][owner] = have.Sub(amount)
	return nil
}
