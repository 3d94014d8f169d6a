// Package token exchanges stored refresh credentials for short-lived
// access tokens at the identity provider.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mailgate/internal/mailbox"
	"github.com/nhle/mailgate/internal/model"
)

// requestTimeout bounds the single token-exchange round trip.
const requestTimeout = 15 * time.Second

// Broker performs the OAuth2 refresh-token grant. Each acquisition is
// a single round trip; tokens are handed to the caller and never
// persisted or logged.
type Broker struct {
	endpoint string
	scope    string
	client   *http.Client
	log      *logrus.Logger
}

// NewBroker creates a Broker for the given token endpoint and scope.
func NewBroker(endpoint, scope string, log *logrus.Logger) *Broker {
	return &Broker{
		endpoint: endpoint,
		scope:    scope,
		client:   &http.Client{Timeout: requestTimeout},
		log:      log,
	}
}

// Acquire exchanges the credential's refresh token for an access
// token. A rejected or unusable credential yields a mailbox.AuthError;
// a malformed provider response yields a mailbox.UpstreamError. There
// is no retry.
func (b *Broker) Acquire(ctx context.Context, cred model.Credential) (string, error) {
	form := url.Values{
		"client_id":     {cred.ClientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.RefreshToken},
		"scope":         {b.scope},
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, b.endpoint, strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.WithField("account", cred.Address).
			WithError(err).Warn("token exchange failed")
		return "", &mailbox.AuthError{
			Address: cred.Address,
			Message: fmt.Sprintf("token exchange: %v", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.log.WithFields(logrus.Fields{
			"account": cred.Address,
			"status":  resp.StatusCode,
		}).Warn("token endpoint rejected credential")
		return "", &mailbox.AuthError{
			Address: cred.Address,
			Message: fmt.Sprintf("token endpoint returned status %d", resp.StatusCode),
		}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", &mailbox.UpstreamError{Op: "token-exchange", Err: err}
	}

	if tokenResp.AccessToken == "" {
		return "", &mailbox.AuthError{
			Address: cred.Address,
			Message: "token response carried no access token",
		}
	}

	b.log.WithField("account", cred.Address).Info("access token obtained")
	return tokenResp.AccessToken, nil
}

// Probe is the check-only acquisition used for liveness probing: any
// failure is reported as false, never as an error.
func (b *Broker) Probe(ctx context.Context, cred model.Credential) bool {
	_, err := b.Acquire(ctx, cred)
	return err == nil
}
