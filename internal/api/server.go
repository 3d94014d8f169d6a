// Package api is the thin HTTP boundary over the mailbox engine:
// request shaping, operator authentication, and error mapping only.
package api

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mailgate/internal/mailbox"
	"github.com/nhle/mailgate/internal/store"
)

// Server hosts the HTTP API.
type Server struct {
	app         *fiber.App
	engine      *mailbox.Service
	store       store.Store
	adminSecret string
	log         *logrus.Logger
}

// NewServer builds the fiber application with its middleware and routes.
func NewServer(engine *mailbox.Service, st store.Store, adminSecret string, log *logrus.Logger) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "mailgate",
			DisableStartupMessage: true,
		}),
		engine:      engine,
		store:       st,
		adminSecret: adminSecret,
		log:         log,
	}

	s.app.Use(recover.New())
	s.app.Use(cors.New())
	s.app.Use(s.requestID())
	s.app.Use(s.requestLogger())

	s.registerRoutes()
	return s
}

// Listen starts serving on addr and blocks until shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) registerRoutes() {
	s.app.Get("/api", s.handleStatus)

	authed := s.app.Group("", s.requireAdmin())

	authed.Post("/accounts", s.handleRegisterAccounts)
	authed.Get("/accounts", s.handleListAccounts)
	authed.Post("/accounts/verify", s.handleVerifyAccounts)
	authed.Delete("/accounts", s.handleDeleteAccounts)

	authed.Get("/emails/:address", s.handleListEmails)
	// Static segment before the message-id parameter so "dual-view"
	// never parses as a message id.
	authed.Get("/emails/:address/dual-view", s.handleDualView)
	authed.Get("/emails/:address/:messageID", s.handleEmailDetail)
}

// requestID tags every request with a uuid for log correlation.
func (s *Server) requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := uuid.NewString()
		c.Locals("request_id", id)
		c.Set("X-Request-ID", id)
		return c.Next()
	}
}

// requestLogger logs one structured line per request.
func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		s.log.WithFields(logrus.Fields{
			"request_id": c.Locals("request_id"),
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
		}).Info("request handled")
		return err
	}
}

// requireAdmin checks the shared operator secret supplied as a bearer
// token, using a constant-time comparison.
func (s *Server) requireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || s.adminSecret == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.adminSecret)) != 1 {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"detail": "invalid admin secret",
			})
		}
		return c.Next()
	}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "mailgate is running",
		"endpoints": fiber.Map{
			"register_account": "POST /accounts",
			"get_emails":       "GET /emails/:address",
			"get_email_detail": "GET /emails/:address/:message_id",
		},
	})
}

// fail maps engine errors onto HTTP statuses.
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case mailbox.IsAuthError(err):
		status = fiber.StatusUnauthorized
	case mailbox.IsNotFound(err):
		status = fiber.StatusNotFound
	case mailbox.IsInvalidID(err):
		status = fiber.StatusBadRequest
	case mailbox.IsUpstream(err):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"detail": err.Error()})
}
