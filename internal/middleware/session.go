package middleware

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/config"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/session"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const (
	ClientCookie = "sid"
	TokenCookie  = "token"

	localsStore    = "session_store"
	localsClientID = "session_client_id"

	clientCookieTTL = 365 * 24 * time.Hour
)

type VisitMarker interface {
	MarkVisit(ctx context.Context, clientID string, window time.Duration) (bool, error)
}

type VisitorCounter interface {
	IncrementVisitors(ctx context.Context) (int64, error)
}

// SessionMiddleware attaches the caller's Session Store to every request.
type SessionMiddleware struct {
	registry    *session.Registry
	visits      VisitMarker
	visitors    VisitorCounter
	visitWindow time.Duration
	authWait    time.Duration
	tokenTTL    time.Duration
	secure      bool
}

func NewSessionMiddleware(registry *session.Registry, visits VisitMarker, visitors VisitorCounter, cfg *config.Config) *SessionMiddleware {
	return &SessionMiddleware{
		registry:    registry,
		visits:      visits,
		visitors:    visitors,
		visitWindow: cfg.Session.VisitWindow,
		authWait:    cfg.Session.LoadTimeout,
		tokenTTL:    cfg.JWT.Expiry,
		secure:      cfg.Server.SecureCookies,
	}
}

// Handler issues the client id cookie, acquires the Store and waits for its
// initial auth check. After the route runs, the token cookie is brought in
// line with the Store's session.
func (m *SessionMiddleware) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		// Cookie values point into the request buffer; copy what outlives the handler.
		clientID := strings.Clone(c.Cookies(ClientCookie))
		if _, err := uuid.Parse(clientID); err != nil {
			clientID = uuid.NewString()
			c.Cookie(m.cookie(ClientCookie, clientID, clientCookieTTL))
		}
		presented := strings.Clone(c.Cookies(TokenCookie))

		store := m.registry.Acquire(clientID, presented)

		ctx, cancel := context.WithTimeout(context.Background(), m.authWait)
		if err := store.AwaitInitialAuth(ctx); err != nil {
			log.Printf("Warning: client %s: %v", clientID, err)
		}
		cancel()

		m.countVisit(clientID)

		c.Locals(localsStore, store)
		c.Locals(localsClientID, clientID)

		err := c.Next()

		if token := store.SessionToken(); token != presented {
			if token == "" {
				c.Cookie(m.cookie(TokenCookie, "", -time.Hour))
			} else {
				c.Cookie(m.cookie(TokenCookie, token, m.tokenTTL))
			}
		}
		return err
	}
}

func (m *SessionMiddleware) countVisit(clientID string) {
	if m.visits == nil || m.visitors == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, err := m.visits.MarkVisit(ctx, clientID, m.visitWindow)
	if err != nil {
		log.Printf("Warning: failed to mark visit for %s: %v", clientID, err)
		return
	}
	if !first {
		return
	}
	if _, err := m.visitors.IncrementVisitors(ctx); err != nil {
		log.Printf("Warning: failed to count visitor: %v", err)
	}
}

func (m *SessionMiddleware) cookie(name, value string, ttl time.Duration) *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
	}
	if m.secure {
		cookie.SameSite = "None"
		cookie.Secure = true
	} else {
		cookie.SameSite = "Lax"
		cookie.Secure = false
	}
	return cookie
}

// StoreFrom returns the Store attached by SessionMiddleware.
func StoreFrom(c fiber.Ctx) *session.Store {
	store, _ := c.Locals(localsStore).(*session.Store)
	return store
}

func ClientID(c fiber.Ctx) string {
	id, _ := c.Locals(localsClientID).(string)
	return id
}

// IdentityRequired rejects requests whose Store has no signed-in identity.
func IdentityRequired() fiber.Handler {
	return func(c fiber.Ctx) error {
		store := StoreFrom(c)
		if store == nil || store.Identity() == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
