package farm

import (
	"sync"

	"github.com/0xVov5/farming/internal/types"
)

// AuthClient is the authorization collaborator consulted by administrative
// calls. Settlement operations never consult it.
type AuthClient interface {
	IsAuthorizedAdmin(caller types.Address) bool
}

// AuthorityDelegator is implemented by gates whose admin can be handed over.
type AuthorityDelegator interface {
	TransferAuthority(current, next types.Address) error
}

// StaticAuthority is a single-admin gate with delegate transfer.
type StaticAuthority struct {
	mu    sync.Mutex
	admin types.Address
}

func NewStaticAuthority(admin types.Address) *StaticAuthority {
	return &StaticAuthority{admin: admin}
}

func (a *StaticAuthority) IsAuthorizedAdmin(caller types.Address) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !caller.IsZero() && caller == a.admin
}

func (a *StaticAuthority) TransferAuthority(current, next types.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if current != a.admin {
		return ErrUnauthorized
	}
	if next.IsZero() {
		return ErrZeroAddress
	}
	a.admin = next
	return nil
}

// Admin returns the current admin identity.
func (a *StaticAuthority) Admin() types.Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.admin
}
