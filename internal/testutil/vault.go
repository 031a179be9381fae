package testutil

import (
	"ft-go/internal/ft"
	"ft-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() ft.Vault {
	return vault.NewMemoryVault("test-vault")
}
