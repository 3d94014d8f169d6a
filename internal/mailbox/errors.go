package mailbox

import (
	"errors"
	"fmt"
)

// AuthError indicates a bad or revoked credential: the token exchange
// or the IMAP authentication handshake was rejected. It surfaces as
// unauthorized at the boundary and is never retried internally.
type AuthError struct {
	Address string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed for %s: %s", e.Address, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// NotFoundError indicates an unknown account or an absent message.
type NotFoundError struct {
	Kind string // "account" or "message"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// InvalidIDError indicates a composite message id that cannot be split
// back into a folder name and a native id.
type InvalidIDError struct {
	ID string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid message id %q", e.ID)
}

// IsInvalidID reports whether err (or any error in its chain) is an InvalidIDError.
func IsInvalidID(err error) bool {
	var idErr *InvalidIDError
	return errors.As(err, &idErr)
}

// UpstreamError indicates a transient protocol or network failure
// talking to the mailbox server.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err (or any error in its chain) is an UpstreamError.
func IsUpstream(err error) bool {
	var upErr *UpstreamError
	return errors.As(err, &upErr)
}
