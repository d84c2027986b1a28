package domain

import "github.com/google/uuid"

// WalletStatus gates whether a wallet may place or settle orders.
type WalletStatus int

const (
	WalletActive WalletStatus = iota
	WalletInactive
	WalletSuspended
)

func (s WalletStatus) String() string {
	switch s {
	case WalletActive:
		return "active"
	case WalletInactive:
		return "inactive"
	case WalletSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Wallet is the key every order and balance entry is scoped to.
type Wallet struct {
	ID             uuid.UUID
	OwnerAccountID uuid.UUID
	Status         WalletStatus
}
