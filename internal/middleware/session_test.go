package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/config"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/session"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const restoreToken = "token-u1"

// fakeProvider restores u1 from restoreToken and knows nothing else.
type fakeProvider struct {
	mu       sync.Mutex
	identity *models.Identity
	token    string
	listener func(*models.Identity)
}

func newFakeProvider(token string) session.IdentityProvider {
	if token == restoreToken {
		return &fakeProvider{identity: &models.Identity{UID: "u1", Email: "ada@example.com"}, token: token}
	}
	return &fakeProvider{}
}

func (p *fakeProvider) CreateAccount(context.Context, string, string) (*models.Identity, error) {
	return nil, errors.New("not supported")
}

func (p *fakeProvider) SignIn(context.Context, string, string) (*models.Identity, error) {
	return nil, errors.New("not supported")
}

func (p *fakeProvider) SignInWithProvider(context.Context, string) (*models.Identity, error) {
	return nil, errors.New("not supported")
}

func (p *fakeProvider) UpdateProfile(context.Context, string) error {
	return errors.New("not supported")
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.identity = nil
	p.token = ""
	listener := p.listener
	p.mu.Unlock()

	if listener != nil {
		listener(nil)
	}
	return nil
}

func (p *fakeProvider) OnAuthStateChanged(fn func(*models.Identity)) func() {
	p.mu.Lock()
	p.listener = fn
	identity := p.identity
	p.mu.Unlock()
	fn(identity)
	return func() {}
}

func (p *fakeProvider) SessionToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

type emptyDocs struct{}

func (emptyDocs) Read(context.Context, string) (*models.UserDocument, error) { return nil, nil }
func (emptyDocs) Write(context.Context, string, *models.UserDocument, bool) error { return nil }
func (emptyDocs) UpdateFields(context.Context, string, map[string]any) error { return nil }
func (emptyDocs) AppendToArray(context.Context, string, string, any) error { return nil }

type fakeVisits struct {
	mu       sync.Mutex
	seen     map[string]bool
	visitors int64
}

func (f *fakeVisits) MarkVisit(_ context.Context, clientID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[clientID] {
		return false, nil
	}
	f.seen[clientID] = true
	return true, nil
}

func (f *fakeVisits) IncrementVisitors(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visitors++
	return f.visitors, nil
}

type whoami struct {
	Client string `json:"client"`
	UID    string `json:"uid"`
}

func newTestApp(t *testing.T) (*fiber.App, *session.Registry, *fakeVisits) {
	t.Helper()
	registry := session.NewRegistry(newFakeProvider, emptyDocs{}, session.Options{Location: time.UTC}, time.Hour)
	t.Cleanup(registry.Close)

	visits := &fakeVisits{seen: make(map[string]bool)}
	cfg := &config.Config{
		Session: config.SessionConfig{VisitWindow: time.Hour, LoadTimeout: time.Second},
		JWT:     config.JWTConfig{Expiry: time.Hour},
	}

	app := fiber.New()
	app.Use(NewSessionMiddleware(registry, visits, visits, cfg).Handler())
	app.Get("/whoami", func(c fiber.Ctx) error {
		uid := ""
		if id := StoreFrom(c).Identity(); id != nil {
			uid = id.UID
		}
		return c.JSON(whoami{Client: ClientID(c), UID: uid})
	})
	app.Post("/signout", func(c fiber.Ctx) error {
		StoreFrom(c).SignOut(context.Background())
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/private", func(c fiber.Ctx) error {
		return c.SendString("ok")
	}, IdentityRequired())
	return app, registry, visits
}

func doRequest(t *testing.T, app *fiber.App, method, path string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func responseCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeWhoami(t *testing.T, resp *http.Response) whoami {
	t.Helper()
	var out whoami
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	return out
}

func TestHandler_IssuesClientCookie(t *testing.T) {
	app, registry, _ := newTestApp(t)

	resp := doRequest(t, app, fiber.MethodGet, "/whoami")
	sid := responseCookie(resp, ClientCookie)
	if sid == nil {
		t.Fatal("Expected a client id cookie to be issued")
	}
	if _, err := uuid.Parse(sid.Value); err != nil {
		t.Errorf("Expected a uuid client id, got %q", sid.Value)
	}
	if !sid.HttpOnly {
		t.Error("Expected the client id cookie to be HttpOnly")
	}
	if got := decodeWhoami(t, resp); got.Client != sid.Value || got.UID != "" {
		t.Errorf("Expected anonymous client %s, got %+v", sid.Value, got)
	}
	if _, ok := registry.Lookup(sid.Value); !ok {
		t.Error("Expected a Store for the issued client id")
	}
}

func TestHandler_KeepsValidClientCookie(t *testing.T) {
	app, registry, _ := newTestApp(t)
	sid := uuid.NewString()

	for i := 0; i < 2; i++ {
		resp := doRequest(t, app, fiber.MethodGet, "/whoami", &http.Cookie{Name: ClientCookie, Value: sid})
		if c := responseCookie(resp, ClientCookie); c != nil {
			t.Errorf("Expected no new client id cookie, got %q", c.Value)
		}
		if got := decodeWhoami(t, resp); got.Client != sid {
			t.Errorf("Expected client %s, got %s", sid, got.Client)
		}
	}
	if registry.Len() != 1 {
		t.Errorf("Expected one Store, got %d", registry.Len())
	}
}

func TestHandler_ReplacesMalformedClientCookie(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp := doRequest(t, app, fiber.MethodGet, "/whoami", &http.Cookie{Name: ClientCookie, Value: "not-a-uuid"})
	sid := responseCookie(resp, ClientCookie)
	if sid == nil || sid.Value == "not-a-uuid" {
		t.Fatalf("Expected a fresh client id, got %+v", sid)
	}
}

func TestHandler_CountsEachVisitorOnce(t *testing.T) {
	app, _, visits := newTestApp(t)
	first := &http.Cookie{Name: ClientCookie, Value: uuid.NewString()}
	second := &http.Cookie{Name: ClientCookie, Value: uuid.NewString()}

	doRequest(t, app, fiber.MethodGet, "/whoami", first)
	doRequest(t, app, fiber.MethodGet, "/whoami", first)
	doRequest(t, app, fiber.MethodGet, "/whoami", second)
	doRequest(t, app, fiber.MethodGet, "/whoami", first)

	if visits.visitors != 2 {
		t.Errorf("Expected 2 visitors, got %d", visits.visitors)
	}
}

func TestHandler_RestoresIdentityFromTokenCookie(t *testing.T) {
	app, _, _ := newTestApp(t)
	sid := &http.Cookie{Name: ClientCookie, Value: uuid.NewString()}
	token := &http.Cookie{Name: TokenCookie, Value: restoreToken}

	resp := doRequest(t, app, fiber.MethodGet, "/whoami", sid, token)
	if got := decodeWhoami(t, resp); got.UID != "u1" {
		t.Errorf("Expected restored identity u1, got %q", got.UID)
	}
	if c := responseCookie(resp, TokenCookie); c != nil {
		t.Errorf("Expected the unchanged token cookie not to be rewritten, got %q", c.Value)
	}

	resp = doRequest(t, app, fiber.MethodGet, "/private", sid, token)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200 for a signed-in client, got %d", resp.StatusCode)
	}
}

func TestHandler_SignOutClearsTokenCookie(t *testing.T) {
	app, _, _ := newTestApp(t)
	sid := &http.Cookie{Name: ClientCookie, Value: uuid.NewString()}
	token := &http.Cookie{Name: TokenCookie, Value: restoreToken}

	resp := doRequest(t, app, fiber.MethodPost, "/signout", sid, token)
	cleared := responseCookie(resp, TokenCookie)
	if cleared == nil {
		t.Fatal("Expected the token cookie to be cleared")
	}
	if cleared.Value != "" || !cleared.Expires.Before(time.Now()) {
		t.Errorf("Expected an empty, expired token cookie, got value=%q expires=%s", cleared.Value, cleared.Expires)
	}

	resp = doRequest(t, app, fiber.MethodGet, "/whoami", sid)
	if got := decodeWhoami(t, resp); got.UID != "" {
		t.Errorf("Expected the client to be anonymous after signing out, got %q", got.UID)
	}
}

func TestIdentityRequired_RejectsAnonymous(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp := doRequest(t, app, fiber.MethodGet, "/private")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
}
