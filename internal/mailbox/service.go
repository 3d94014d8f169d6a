package mailbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mailgate/internal/cache"
	"github.com/nhle/mailgate/internal/model"
)

// TokenSource turns a stored credential into a short-lived access
// token. Acquire fails with an AuthError for rejected credentials;
// Probe reports failure as a value for liveness checks.
type TokenSource interface {
	Acquire(ctx context.Context, cred model.Credential) (string, error)
	Probe(ctx context.Context, cred model.Credential) bool
}

// Service is the mailbox access engine exposed to the HTTP boundary.
type Service struct {
	tokens   TokenSource
	sessions SessionRunner
	cache    *cache.Cache
	folders  Folders
	log      *logrus.Logger
}

// NewService wires the engine from its collaborators. The cache is
// injected so tests construct isolated instances.
func NewService(
	tokens TokenSource,
	sessions SessionRunner,
	listingCache *cache.Cache,
	folders Folders,
	log *logrus.Logger,
) *Service {
	return &Service{
		tokens:   tokens,
		sessions: sessions,
		cache:    listingCache,
		folders:  folders,
		log:      log,
	}
}

// ListEmails returns one paginated, cross-folder listing page. A
// forceRefresh drops every cached page for the account before the
// lookup. Misses acquire a token, open a scoped session, and run the
// two-phase pager.
func (s *Service) ListEmails(
	ctx context.Context,
	cred model.Credential,
	view model.FolderView,
	page, pageSize int,
	forceRefresh bool,
) (*model.EmailListing, error) {
	log := s.log.WithFields(logrus.Fields{
		"account": cred.Address,
		"view":    view,
		"page":    page,
	})

	if forceRefresh {
		log.Info("force refresh, invalidating account cache")
		s.cache.InvalidateAccount(cred.Address)
	}

	if cached := s.cache.Get(cred.Address, view, page, pageSize); cached != nil {
		log.Debug("listing cache hit")
		return cached, nil
	}

	accessToken, err := s.tokens.Acquire(ctx, cred)
	if err != nil {
		return nil, err
	}

	var listing *model.EmailListing
	err = s.sessions.WithSession(ctx, cred, accessToken, func(ps ProtocolSession) error {
		listing = listPage(ps, s.folders, cred.Address, view, page, pageSize, log)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Put(listing)
	return listing, nil
}

// DualView assembles independent inbox and junk pages, each through
// the normal cache path.
func (s *Service) DualView(
	ctx context.Context,
	cred model.Credential,
	inboxPage, junkPage, pageSize int,
	forceRefresh bool,
) (*model.DualViewListing, error) {
	inbox, err := s.ListEmails(ctx, cred, model.ViewInbox, inboxPage, pageSize, forceRefresh)
	if err != nil {
		return nil, err
	}

	// The inbox listing already invalidated the account on refresh.
	junk, err := s.ListEmails(ctx, cred, model.ViewJunk, junkPage, pageSize, false)
	if err != nil {
		return nil, err
	}

	return &model.DualViewListing{
		Address:     cred.Address,
		InboxEmails: inbox.Emails,
		JunkEmails:  junk.Emails,
		InboxTotal:  inbox.TotalEmails,
		JunkTotal:   junk.TotalEmails,
	}, nil
}

// GetEmailDetail fetches and decodes one full message by composite id.
// Details are produced per request and never cached.
func (s *Service) GetEmailDetail(
	ctx context.Context,
	cred model.Credential,
	messageID string,
) (*model.EmailDetail, error) {
	ref, err := ParseCompositeID(messageID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.Acquire(ctx, cred)
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"account": cred.Address,
		"message": messageID,
	})

	var detail *model.EmailDetail
	err = s.sessions.WithSession(ctx, cred, accessToken, func(ps ProtocolSession) error {
		raw, err := ps.FetchRawMessage(ref.Folder, ref.NativeID)
		if err != nil {
			return &UpstreamError{Op: fmt.Sprintf("fetch %s", messageID), Err: err}
		}
		if raw == nil {
			return &NotFoundError{Kind: "message", ID: messageID}
		}

		d := decodeFullMessage(raw, messageID, time.Now(), log)
		detail = &d
		return nil
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

// InvalidateAccount drops every cached listing page for an account.
// Called when the account is deleted or its credential replaced.
func (s *Service) InvalidateAccount(address string) {
	s.cache.InvalidateAccount(address)
}

// CheckAccountLiveness reports whether the stored credential can still
// be exchanged for an access token. It never returns an error;
// liveness is the check-only token acquisition.
func (s *Service) CheckAccountLiveness(ctx context.Context, cred model.Credential) bool {
	return s.tokens.Probe(ctx, cred)
}

// VerifyCredential performs a hard token acquisition and discards the
// token. Used when registering an account: a rejected credential must
// surface as an AuthError rather than be silently stored.
func (s *Service) VerifyCredential(ctx context.Context, cred model.Credential) error {
	_, err := s.tokens.Acquire(ctx, cred)
	return err
}

// VerifyAccounts checks a batch of credentials, one goroutine per
// account, joining on all before returning. A failed account never
// fails the batch; each result carries its own status.
func (s *Service) VerifyAccounts(
	ctx context.Context,
	creds []model.Credential,
) []model.VerificationResult {
	results := make([]model.VerificationResult, len(creds))

	var wg sync.WaitGroup
	for i, cred := range creds {
		wg.Add(1)
		go func(i int, cred model.Credential) {
			defer wg.Done()

			if s.tokens.Probe(ctx, cred) {
				results[i] = model.VerificationResult{
					Address:    cred.Address,
					Status:     "success",
					Message:    "account verified",
					Credential: &cred,
				}
				return
			}
			results[i] = model.VerificationResult{
				Address: cred.Address,
				Status:  "error",
				Message: "failed to obtain access token, check credentials",
			}
		}(i, cred)
	}
	wg.Wait()

	return results
}

// AccountStatuses probes a batch of stored credentials in parallel and
// reports active/inactive per account. Like VerifyAccounts, the join
// waits for every probe; one slow account delays the batch but one
// failed account affects only its own entry.
func (s *Service) AccountStatuses(
	ctx context.Context,
	creds []model.Credential,
) []model.AccountStatus {
	statuses := make([]model.AccountStatus, len(creds))

	var wg sync.WaitGroup
	for i, cred := range creds {
		wg.Add(1)
		go func(i int, cred model.Credential) {
			defer wg.Done()

			status := model.StatusInactive
			if s.tokens.Probe(ctx, cred) {
				status = model.StatusActive
			}
			statuses[i] = model.AccountStatus{Address: cred.Address, Status: status}
		}(i, cred)
	}
	wg.Wait()

	return statuses
}
