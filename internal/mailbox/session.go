// Package mailbox is the mailbox access engine: it opens authenticated
// protocol sessions from short-lived access tokens, issues batched
// folder-scoped fetches, merges and paginates results across folders,
// and decodes message payloads into normalized text.
package mailbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mailgate/internal/model"
)

// HeaderRecord is one raw result row of a batched header fetch.
type HeaderRecord struct {
	// NativeID is the sequence number the record was fetched under.
	NativeID uint32

	// Flags holds the message flags as reported by the server.
	Flags []string

	// Header is the raw header payload (Subject/Date/From fields).
	Header []byte
}

// ProtocolSession is the set of verbs available inside a scoped
// session. Every fetch re-selects its target folder, so callers never
// depend on connection-level folder state.
type ProtocolSession interface {
	// SearchAll returns every message sequence number in the folder,
	// in server order (ascending).
	SearchAll(folder string) ([]uint32, error)

	// FetchHeaders issues one batched header fetch for the given ids
	// in the given folder, requesting Subject/Date/From plus flags.
	FetchHeaders(folder string, ids []uint32) ([]HeaderRecord, error)

	// FetchRawMessage fetches one full message. A nil payload with a
	// nil error means the message does not exist.
	FetchRawMessage(folder string, id uint32) ([]byte, error)
}

// SessionRunner provides scoped session acquisition: the session
// passed to fn is closed on every exit path.
type SessionRunner interface {
	WithSession(ctx context.Context, cred model.Credential, accessToken string, fn func(ProtocolSession) error) error
}

// SessionManager dials and authenticates protocol sessions against a
// single mailbox server, capping concurrent sessions per account.
type SessionManager struct {
	addr        string
	maxPerAcct  int
	log         *logrus.Logger
	mu          sync.Mutex
	accountSems map[string]chan struct{}
}

// NewSessionManager creates a SessionManager for host:port with the
// given per-account concurrent session cap.
func NewSessionManager(host, port string, maxPerAccount int, log *logrus.Logger) *SessionManager {
	if maxPerAccount < 1 {
		maxPerAccount = 1
	}
	return &SessionManager{
		addr:        host + ":" + port,
		maxPerAcct:  maxPerAccount,
		log:         log,
		accountSems: make(map[string]chan struct{}),
	}
}

// semFor returns the session semaphore for one account, creating it on
// first use.
func (m *SessionManager) semFor(address string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	sem, ok := m.accountSems[address]
	if !ok {
		sem = make(chan struct{}, m.maxPerAcct)
		m.accountSems[address] = sem
	}
	return sem
}

// WithSession opens one authenticated session, runs fn against it, and
// logs the session out on every exit path. Authentication rejection is
// an AuthError; dial failure is an UpstreamError. Two sequential calls
// for the same account behave as if executed on the same logical
// session because every fetch re-selects its folder.
func (m *SessionManager) WithSession(
	ctx context.Context,
	cred model.Credential,
	accessToken string,
	fn func(ProtocolSession) error,
) error {
	sem := m.semFor(cred.Address)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()

	client, err := imapclient.DialTLS(m.addr, nil)
	if err != nil {
		return &UpstreamError{Op: "dial " + m.addr, Err: err}
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := client.Authenticate(newXOAuth2Client(cred.Address, accessToken)); err != nil {
		return &AuthError{
			Address: cred.Address,
			Message: fmt.Sprintf("mailbox authentication rejected: %v", err),
		}
	}

	return fn(&session{client: client, log: m.log.WithField("account", cred.Address)})
}

// session wraps one authenticated connection.
type session struct {
	client *imapclient.Client
	log    *logrus.Entry
}

// selectFolder selects a folder read-only. Message state on the server
// is never mutated by a listing or detail fetch.
func (s *session) selectFolder(folder string) error {
	opts := &imap.SelectOptions{ReadOnly: true}
	if _, err := s.client.Select(folder, opts).Wait(); err != nil {
		return fmt.Errorf("selecting folder %s: %w", folder, err)
	}
	return nil
}

func (s *session) SearchAll(folder string) ([]uint32, error) {
	if err := s.selectFolder(folder); err != nil {
		return nil, err
	}

	data, err := s.client.Search(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching folder %s: %w", folder, err)
	}

	return data.AllSeqNums(), nil
}

func (s *session) FetchHeaders(folder string, ids []uint32) ([]HeaderRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.selectFolder(folder); err != nil {
		return nil, err
	}

	headerSection := &imap.FetchItemBodySection{
		Specifier:    imap.PartSpecifierHeader,
		HeaderFields: []string{"Subject", "Date", "From"},
		Peek:         true,
	}
	fetchOpts := &imap.FetchOptions{
		Flags:       true,
		BodySection: []*imap.FetchItemBodySection{headerSection},
	}

	fetchCmd := s.client.Fetch(imap.SeqSetNum(ids...), fetchOpts)
	defer fetchCmd.Close()

	var records []HeaderRecord
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			s.log.WithError(err).Warn("skipping unreadable fetch record")
			continue
		}

		flags := make([]string, 0, len(buf.Flags))
		for _, f := range buf.Flags {
			flags = append(flags, string(f))
		}

		records = append(records, HeaderRecord{
			NativeID: buf.SeqNum,
			Flags:    flags,
			Header:   buf.FindBodySection(headerSection),
		})
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching headers from %s: %w", folder, err)
	}

	return records, nil
}

func (s *session) FetchRawMessage(folder string, id uint32) ([]byte, error) {
	if err := s.selectFolder(folder); err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.SeqSetNum(id), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		_ = fetchCmd.Close()
		return nil, nil
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message %d from %s: %w", id, folder, err)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching message %d from %s: %w", id, folder, err)
	}

	return buf.FindBodySection(bodySection), nil
}
