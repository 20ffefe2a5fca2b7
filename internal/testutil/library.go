package testutil

import (
	"testing"

	"complib/internal/complib"
	"complib/internal/database"
)

// NewTestLibrary creates a new in-memory library with schema applied.
// The library is automatically closed when the test completes.
func NewTestLibrary(t *testing.T) complib.Library {
	t.Helper()

	lib, err := database.NewSQLiteLibrary(":memory:", FixedClock())
	if err != nil {
		t.Fatalf("failed to open library: %v", err)
	}

	t.Cleanup(func() {
		lib.Close()
	})

	return lib
}
