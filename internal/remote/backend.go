// Package remote defines the contract with the remote task backend and
// provides an HTTP implementation of it. The sync engine consumes the
// backend purely through the Backend interface.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/dnguyen/tasktick/internal/model"
)

// AuthError indicates that authentication has failed or expired for the
// remote backend. Returned when the server answers 401.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Backend is the remote CRUD+fetch contract the sync engine depends on.
// Implementations must never return partial data alongside an error.
type Backend interface {
	// Configured reports whether a remote is set up at all. When false
	// the sync engine skips the cycle entirely.
	Configured() bool

	// FetchAll retrieves the full task collection for an owner.
	FetchAll(ctx context.Context, ownerID string) ([]model.Task, error)

	// Create pushes a never-before-synced task and returns the stored
	// copy, including any server-assigned or echoed fields.
	Create(ctx context.Context, ownerID string, t model.Task) (*model.Task, error)

	// Update pushes local edits to an existing task and returns the
	// stored copy.
	Update(ctx context.Context, t model.Task) (*model.Task, error)

	// Delete removes a task remotely.
	Delete(ctx context.Context, id string) error
}

// Unconfigured is a Backend that reports itself as not set up. Useful
// as the default wiring when the user has no remote account.
type Unconfigured struct{}

func (Unconfigured) Configured() bool { return false }

func (Unconfigured) FetchAll(context.Context, string) ([]model.Task, error) {
	return nil, errors.New("remote backend not configured")
}

func (Unconfigured) Create(context.Context, string, model.Task) (*model.Task, error) {
	return nil, errors.New("remote backend not configured")
}

func (Unconfigured) Update(context.Context, model.Task) (*model.Task, error) {
	return nil, errors.New("remote backend not configured")
}

func (Unconfigured) Delete(context.Context, string) error {
	return errors.New("remote backend not configured")
}
