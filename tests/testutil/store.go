package testutil

import (
	"testing"

	"go.uber.org/zap"

	"github.com/dnguyen/tasktick/internal/storage"
)

// NewTestAdapter creates an in-memory storage adapter with all
// migrations applied. It automatically closes when the test completes.
func NewTestAdapter(t *testing.T) *storage.Adapter {
	t.Helper()

	a, err := storage.New(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("creating test storage adapter: %v", err)
	}

	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("closing test storage adapter: %v", err)
		}
	})

	return a
}
