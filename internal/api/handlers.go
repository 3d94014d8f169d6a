package api

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mailgate/internal/model"
)

// Page-size bounds per endpoint. The dual view fetches two pages per
// request, so its ceiling is lower.
const (
	listingPageSizeDefault = 100
	listingPageSizeMax     = 500
	dualPageSizeDefault    = 20
	dualPageSizeMax        = 100
)

type registerOutcome struct {
	Address string `json:"email"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// handleRegisterAccounts accepts either a single credential object or
// an array of them. Every credential is verified against the identity
// provider before it is stored; one rejected credential never blocks
// the rest of a batch.
func (s *Server) handleRegisterAccounts(c *fiber.Ctx) error {
	creds, err := decodeCredentials(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": err.Error()})
	}

	outcomes := make([]registerOutcome, 0, len(creds))
	for _, cred := range creds {
		if cred.Address == "" || cred.RefreshToken == "" || cred.ClientID == "" {
			outcomes = append(outcomes, registerOutcome{
				Address: cred.Address,
				Status:  "error",
				Message: "email, refresh_token and client_id are required",
			})
			continue
		}

		if err := s.engine.VerifyCredential(c.Context(), cred); err != nil {
			outcomes = append(outcomes, registerOutcome{
				Address: cred.Address,
				Status:  "error",
				Message: err.Error(),
			})
			continue
		}

		if err := s.store.PutCredential(c.Context(), cred); err != nil {
			s.log.WithError(err).WithField("account", cred.Address).
				Error("storing credential")
			outcomes = append(outcomes, registerOutcome{
				Address: cred.Address,
				Status:  "error",
				Message: "failed to store credential",
			})
			continue
		}

		outcomes = append(outcomes, registerOutcome{
			Address: cred.Address,
			Status:  "success",
			Message: "account registered",
		})
	}

	status := fiber.StatusOK
	if len(outcomes) == 1 && outcomes[0].Status == "error" {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"results": outcomes})
}

// decodeCredentials parses a body that is either one credential or a
// JSON array of credentials.
func decodeCredentials(body []byte) ([]model.Credential, error) {
	var batch []model.Credential
	if err := json.Unmarshal(body, &batch); err == nil {
		if len(batch) == 0 {
			return nil, fmt.Errorf("empty account list")
		}
		return batch, nil
	}

	var single model.Credential
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("parsing request body: %w", err)
	}
	return []model.Credential{single}, nil
}

// handleListAccounts returns the registered addresses. With
// check_status=true every account is probed in parallel and the
// response carries per-account liveness instead of plain addresses.
func (s *Server) handleListAccounts(c *fiber.Ctx) error {
	creds, err := s.store.ListCredentials(c.Context())
	if err != nil {
		return fail(c, err)
	}

	if !c.QueryBool("check_status") {
		addresses := make([]string, 0, len(creds))
		for address := range creds {
			addresses = append(addresses, address)
		}
		sort.Strings(addresses)
		return c.JSON(fiber.Map{"accounts": addresses, "total": len(addresses)})
	}

	ordered := make([]model.Credential, 0, len(creds))
	for _, cred := range creds {
		ordered = append(ordered, cred)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Address < ordered[j].Address
	})

	statuses := s.engine.AccountStatuses(c.Context(), ordered)
	active := 0
	for _, st := range statuses {
		if st.Status == model.StatusActive {
			active++
		}
	}
	return c.JSON(fiber.Map{
		"accounts": statuses,
		"total":    len(statuses),
		"active":   active,
	})
}

// handleVerifyAccounts probes a batch of credentials without storing
// anything. The response always carries one entry per submitted
// account.
func (s *Server) handleVerifyAccounts(c *fiber.Ctx) error {
	var req struct {
		Accounts []model.Credential `json:"accounts"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": fmt.Sprintf("parsing request body: %v", err),
		})
	}
	if len(req.Accounts) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "accounts list is required",
		})
	}

	results := s.engine.VerifyAccounts(c.Context(), req.Accounts)
	verified := 0
	for _, r := range results {
		if r.Status == "success" {
			verified++
		}
	}
	return c.JSON(fiber.Map{
		"results":  results,
		"total":    len(results),
		"verified": verified,
	})
}

// handleDeleteAccounts removes a batch of accounts and drops their
// cached listings.
func (s *Server) handleDeleteAccounts(c *fiber.Ctx) error {
	var req struct {
		Emails []string `json:"emails"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": fmt.Sprintf("parsing request body: %v", err),
		})
	}
	if len(req.Emails) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "emails list is required",
		})
	}

	result, err := s.store.DeleteCredentials(c.Context(), req.Emails)
	if err != nil {
		return fail(c, err)
	}
	for _, address := range req.Emails {
		s.engine.InvalidateAccount(address)
	}

	s.log.WithFields(logrus.Fields{
		"deleted":   result.Deleted,
		"not_found": result.NotFound,
	}).Info("accounts deleted")

	return c.JSON(fiber.Map{
		"deleted":   result.Deleted,
		"not_found": result.NotFound,
		"message": fmt.Sprintf("deleted %d account(s), %d not found",
			result.Deleted, result.NotFound),
	})
}

// handleListEmails serves one cross-folder listing page.
func (s *Server) handleListEmails(c *fiber.Ctx) error {
	cred, err := s.store.GetCredential(c.Context(), c.Params("address"))
	if err != nil {
		return fail(c, err)
	}

	view := model.FolderView(c.Query("folder", string(model.ViewAll)))
	if !view.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": fmt.Sprintf("unknown folder view %q, expected inbox, junk or all", view),
		})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "page must be at least 1",
		})
	}
	pageSize := c.QueryInt("page_size", listingPageSizeDefault)
	if pageSize < 1 || pageSize > listingPageSizeMax {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": fmt.Sprintf("page_size must be between 1 and %d", listingPageSizeMax),
		})
	}

	listing, err := s.engine.ListEmails(
		c.Context(), cred, view, page, pageSize, c.QueryBool("force_refresh"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(listing)
}

// handleDualView serves independently paginated inbox and junk pages
// in a single response.
func (s *Server) handleDualView(c *fiber.Ctx) error {
	cred, err := s.store.GetCredential(c.Context(), c.Params("address"))
	if err != nil {
		return fail(c, err)
	}

	inboxPage := c.QueryInt("inbox_page", 1)
	junkPage := c.QueryInt("junk_page", 1)
	if inboxPage < 1 || junkPage < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "pages must be at least 1",
		})
	}
	pageSize := c.QueryInt("page_size", dualPageSizeDefault)
	if pageSize < 1 || pageSize > dualPageSizeMax {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": fmt.Sprintf("page_size must be between 1 and %d", dualPageSizeMax),
		})
	}

	dual, err := s.engine.DualView(
		c.Context(), cred, inboxPage, junkPage, pageSize, c.QueryBool("force_refresh"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dual)
}

// handleEmailDetail serves the full content of one message addressed
// by its composite id.
func (s *Server) handleEmailDetail(c *fiber.Ctx) error {
	cred, err := s.store.GetCredential(c.Context(), c.Params("address"))
	if err != nil {
		return fail(c, err)
	}

	detail, err := s.engine.GetEmailDetail(c.Context(), cred, c.Params("messageID"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(detail)
}
