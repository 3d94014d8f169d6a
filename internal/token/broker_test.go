package token

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailgate/internal/mailbox"
	"github.com/nhle/mailgate/internal/model"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

var testCred = model.Credential{
	Address:      "a@example.com",
	RefreshToken: "refresh-token-1",
	ClientID:     "client-1",
}

func TestAcquireSuccess(t *testing.T) {
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"client_id":     r.PostFormValue("client_id"),
			"grant_type":    r.PostFormValue("grant_type"),
			"refresh_token": r.PostFormValue("refresh_token"),
			"scope":         r.PostFormValue("scope"),
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-123",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	b := NewBroker(srv.URL, "mail.read offline_access", quietLog())

	token, err := b.Acquire(context.Background(), testCred)
	require.NoError(t, err)
	assert.Equal(t, "at-123", token)

	assert.Equal(t, map[string]string{
		"client_id":     "client-1",
		"grant_type":    "refresh_token",
		"refresh_token": "refresh-token-1",
		"scope":         "mail.read offline_access",
	}, gotForm)
}

func TestAcquireRejectedCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	b := NewBroker(srv.URL, "scope", quietLog())

	_, err := b.Acquire(context.Background(), testCred)
	require.Error(t, err)
	assert.True(t, mailbox.IsAuthError(err))

	var authErr *mailbox.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "a@example.com", authErr.Address)
}

func TestAcquireUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	b := NewBroker(srv.URL, "scope", quietLog())

	_, err := b.Acquire(context.Background(), testCred)
	assert.True(t, mailbox.IsAuthError(err))
}

func TestAcquireMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	b := NewBroker(srv.URL, "scope", quietLog())

	_, err := b.Acquire(context.Background(), testCred)
	require.Error(t, err)
	assert.True(t, mailbox.IsUpstream(err))
}

func TestAcquireEmptyAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	b := NewBroker(srv.URL, "scope", quietLog())

	_, err := b.Acquire(context.Background(), testCred)
	assert.True(t, mailbox.IsAuthError(err))
}

func TestProbe(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"access_token":"at-1"}`))
	}))
	defer srv.Close()

	b := NewBroker(srv.URL, "scope", quietLog())

	assert.True(t, b.Probe(context.Background(), testCred))

	status = http.StatusUnauthorized
	assert.False(t, b.Probe(context.Background(), testCred))
}
