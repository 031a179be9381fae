package testutil

import (
	"testing"

	"ft-go/internal/database"
	"ft-go/internal/ft"
)

// NewTestRegistry creates a new in-memory SQLite registry with schema
// applied. The registry is automatically closed when the test completes.
func NewTestRegistry(t *testing.T) ft.Registry {
	t.Helper()

	reg, err := database.NewSQLiteRegistry(":memory:")
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}

	t.Cleanup(func() {
		reg.Close()
	})

	return reg
}
