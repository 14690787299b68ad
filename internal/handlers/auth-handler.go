package handlers

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/event"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/identity"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/middleware"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"

	"github.com/gofiber/fiber/v3"
)

const requestTimeout = 10 * time.Second

// GoogleFlow starts the Google consent screen.
type GoogleFlow interface {
	Enabled() bool
	NewState() string
	AuthURL(state string) string
}

// OAuthStateStore keeps issued OAuth state values, bound to the client that
// started the flow, until the callback consumes them.
type OAuthStateStore interface {
	SaveOAuthState(ctx context.Context, state, clientID string, ttl time.Duration) error
	ConsumeOAuthState(ctx context.Context, state, clientID string) (bool, error)
}

type AuthHandler struct {
	google            GoogleFlow
	states            OAuthStateStore
	events            event.Publisher
	minPasswordLength int
	stateTTL          time.Duration
	feAddress         string
}

func NewAuthHandler(google GoogleFlow, states OAuthStateStore, events event.Publisher, minPasswordLength int, stateTTL time.Duration, feAddress string) *AuthHandler {
	return &AuthHandler{
		google:            google,
		states:            states,
		events:            events,
		minPasswordLength: minPasswordLength,
		stateTTL:          stateTTL,
		feAddress:         strings.TrimRight(feAddress, "/"),
	}
}

func (h *AuthHandler) RegisterRoutes(app fiber.Router) {
	authGroup := app.Group("/public/auth")
	authGroup.Post("/register", h.Register)
	authGroup.Post("/login", h.Login)
	authGroup.Get("/google", h.GoogleRedirect)
	authGroup.Get("/google/callback", h.GoogleCallback)
	authGroup.Post("/logout", h.Logout)

	app.Get("/public/session", h.Session)
}

func (h *AuthHandler) Register(c fiber.Ctx) error {
	var registerRequest struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
		DisplayName     string `json:"displayName"`
	}

	if err := c.Bind().Body(&registerRequest); err != nil {
		authAttempts.WithLabelValues("register", "failure", "password").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := identity.ValidateRegistration(
		registerRequest.Email,
		registerRequest.Password,
		registerRequest.ConfirmPassword,
		registerRequest.DisplayName,
		h.minPasswordLength,
	); err != nil {
		authAttempts.WithLabelValues("register", "failure", "password").Inc()
		return respondError(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	store := middleware.StoreFrom(c)
	user, err := store.SignUp(ctx, registerRequest.Email, registerRequest.Password, strings.TrimSpace(registerRequest.DisplayName))
	if err != nil {
		log.Printf("Registration failed for %s: %v", registerRequest.Email, err)
		authAttempts.WithLabelValues("register", "failure", "password").Inc()
		return respondError(c, err)
	}

	authAttempts.WithLabelValues("register", "success", "password").Inc()
	h.publish(func(ctx context.Context) error {
		return h.events.PublishUserRegistered(ctx, user.UID, user.Email, user.Provider)
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User Created Successfully",
		"data": fiber.Map{
			"identity": user,
		},
	})
}

func (h *AuthHandler) Login(c fiber.Ctx) error {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind().Body(&loginRequest); err != nil {
		authAttempts.WithLabelValues("login", "failure", "password").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := identity.ValidateSignIn(loginRequest.Email, loginRequest.Password); err != nil {
		authAttempts.WithLabelValues("login", "failure", "password").Inc()
		return respondError(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	user, err := middleware.StoreFrom(c).SignIn(ctx, loginRequest.Email, loginRequest.Password)
	if err != nil {
		log.Printf("Error login with email: %s : %s", loginRequest.Email, err)
		authAttempts.WithLabelValues("login", "failure", "password").Inc()
		return respondError(c, err)
	}

	authAttempts.WithLabelValues("login", "success", "password").Inc()
	h.publish(func(ctx context.Context) error {
		return h.events.PublishUserLogin(ctx, user.UID, user.Email, user.Provider)
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "User Login Successfully",
		"data": fiber.Map{
			"identity": user,
		},
	})
}

func (h *AuthHandler) GoogleRedirect(c fiber.Ctx) error {
	if h.google == nil || !h.google.Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Google sign-in is not configured",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	state := h.google.NewState()
	if err := h.states.SaveOAuthState(ctx, state, middleware.ClientID(c), h.stateTTL); err != nil {
		log.Printf("Failed to save OAuth state: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to sign in with Google.",
		})
	}

	return c.Redirect().Status(fiber.StatusFound).To(h.google.AuthURL(state))
}

// GoogleCallback finishes the consent flow and sends the browser back to the
// front end. A user who cancelled the consent screen is returned silently.
func (h *AuthHandler) GoogleCallback(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	ok, err := h.states.ConsumeOAuthState(ctx, c.Query("state"), middleware.ClientID(c))
	if err != nil {
		log.Printf("Failed to check OAuth state: %v", err)
	}
	if !ok {
		authAttempts.WithLabelValues("login", "failure", "google").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid or expired state",
		})
	}

	code := c.Query("code")
	if c.Query("error") != "" {
		code = ""
	}

	user, err := middleware.StoreFrom(c).SignInWithExternalProvider(ctx, code)
	if err != nil {
		if models.IsDismissed(err) {
			return c.Redirect().Status(fiber.StatusFound).To(h.feAddress + "/login")
		}
		log.Printf("Google sign-in failed: %v", err)
		authAttempts.WithLabelValues("login", "failure", "google").Inc()
		return c.Redirect().Status(fiber.StatusFound).To(h.feAddress + "/login?error=" + url.QueryEscape(models.UserMessage(err)))
	}

	authAttempts.WithLabelValues("login", "success", "google").Inc()
	h.publish(func(ctx context.Context) error {
		return h.events.PublishUserLogin(ctx, user.UID, user.Email, user.Provider)
	})

	return c.Redirect().Status(fiber.StatusFound).To(h.feAddress + "/")
}

// Logout always succeeds, also for a client that is not signed in.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	middleware.StoreFrom(c).SignOut(ctx)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Signed out",
	})
}

// Session returns the caller's full Store snapshot.
func (h *AuthHandler) Session(c fiber.Ctx) error {
	snap := middleware.StoreFrom(c).Snapshot()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"phase": snap.Phase(),
			"state": snap,
		},
	})
}

// publish sends an event off the request path. Failures are only logged.
func (h *AuthHandler) publish(send func(ctx context.Context) error) {
	publishAsync(h.events, send)
}

func publishAsync(events event.Publisher, send func(ctx context.Context) error) {
	if events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			log.Printf("Failed to publish event: %v", err)
		}
	}()
}
