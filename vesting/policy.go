package vesting

import "github.com/ethereum/go-ethereum/common"

// Policy decides whether a caller may perform administrative operations.
type Policy interface {
	Authorize(caller common.Address) error
}

// OwnerPolicy grants administration to a single owner address.
type OwnerPolicy struct {
	Owner common.Address
}

func (p OwnerPolicy) Authorize(caller common.Address) error {
	if caller != p.Owner || caller == (common.Address{}) {
		return reject(ErrUnauthorized, ReasonNotOwner)
	}
	return nil
}

// Admin is the capability required for administrative operations. It can
// only be obtained through Token.Admin, which consults the token's Policy.
type Admin struct {
	token  *Token
	caller common.Address
}

// Caller is the address the capability was issued to.
func (a *Admin) Caller() common.Address {
	return a.caller
}
