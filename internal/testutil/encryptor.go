package testutil

import (
	"ft-go/internal/encryption"
	"ft-go/internal/ft"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() ft.Encryptor {
	return encryption.NewTestEncryptor()
}
