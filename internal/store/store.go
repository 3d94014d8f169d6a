package store

import (
	"context"

	"github.com/nhle/mailgate/internal/model"
)

// Store is the credential registry consumed by the HTTP boundary. The
// engine itself never touches it; credentials are read per request and
// passed in. Implementations must not tear on concurrent reads and
// must apply writes atomically.
type Store interface {
	// GetCredential returns the stored credential for an address, or
	// a mailbox.NotFoundError when the account is unknown.
	GetCredential(ctx context.Context, address string) (model.Credential, error)

	// ListCredentials returns every stored credential keyed by address.
	ListCredentials(ctx context.Context) (map[string]model.Credential, error)

	// PutCredential inserts or replaces the credential for its address.
	PutCredential(ctx context.Context, cred model.Credential) error

	// DeleteCredentials removes the given addresses, reporting how
	// many were deleted and how many were unknown.
	DeleteCredentials(ctx context.Context, addresses []string) (model.DeleteResult, error)

	Close() error
}
