package model

// Credential holds the long-lived OAuth2 material stored for one
// mailbox account. It is issued by the identity provider and is only
// ever read by the engine; tokens derived from it are never written
// back.
type Credential struct {
	// Address is the mailbox address the credential belongs to.
	Address string `json:"email"`

	// RefreshToken is the long-lived OAuth2 refresh token.
	RefreshToken string `json:"refresh_token"`

	// ClientID is the OAuth2 application (client) id the refresh
	// token was issued to.
	ClientID string `json:"client_id"`
}

// Account liveness states reported by status checks.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusUnknown  = "unknown"
)

// AccountStatus pairs an account address with its liveness state.
type AccountStatus struct {
	Address string `json:"email"`
	Status  string `json:"status"`
}

// VerificationResult is the per-account outcome of a batch credential
// verification. The aggregate call always succeeds; failures are
// carried here, one per account.
type VerificationResult struct {
	Address string `json:"email"`
	// Status is "success" or "error".
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`

	// Credential echoes the verified credential on success so callers
	// can persist it.
	Credential *Credential `json:"credentials,omitempty"`
}

// DeleteResult summarizes a batch account deletion.
type DeleteResult struct {
	Deleted  int `json:"deleted"`
	NotFound int `json:"not_found"`
}
