/*

This is a custom type for depositor and admin identities used throughout the farm ledger.

*/

package types

// Address identifies a depositor, admin or transfer counterparty. The empty
// string and the conventional all-zero hex form both count as the null identity.
type Address string

// ZeroAddress is the canonical null identity.
const ZeroAddress Address = ""

// IsZero reports whether the address is the null identity.
func (a Address) IsZero() bool {
	if a == ZeroAddress {
		return true
	}
	for i := 0; i < len(a); i++ {
		c := a[i]
		if c != '0' && c != 'x' && c != 'X' {
			return false
		}
	}
	return true
}

func (a Address) String() string {
	return string(a)
}
