package identity

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"
)

const resolveTimeout = 10 * time.Second

// Client is one browser's view of the identity provider. It remembers who is
// signed in and tells listeners whenever that changes.
type Client struct {
	svc          *Service
	restoreToken string

	// notifyMu keeps listener deliveries in the order the changes happened.
	notifyMu sync.Mutex

	mu        sync.Mutex
	current   *models.Credential
	token     string
	resolved  bool
	resolving bool
	listeners map[int]func(*models.Identity)
	nextID    int
}

// NewClient opens a handle for a browser. restoreToken is the session token the
// browser presented, or "".
func (s *Service) NewClient(restoreToken string) *Client {
	return &Client{
		svc:          s,
		restoreToken: restoreToken,
		listeners:    make(map[int]func(*models.Identity)),
	}
}

func (c *Client) CreateAccount(ctx context.Context, email, password string) (*models.Identity, error) {
	cred, err := c.svc.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return c.signedIn(cred)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	cred, err := c.svc.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return c.signedIn(cred)
}

func (c *Client) SignInWithProvider(ctx context.Context, credential string) (*models.Identity, error) {
	cred, err := c.svc.SignInExternal(ctx, credential)
	if err != nil {
		return nil, err
	}
	return c.signedIn(cred)
}

// UpdateProfile sets the display name of the signed-in user and refreshes the token.
func (c *Client) UpdateProfile(ctx context.Context, displayName string) error {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current == nil {
		return models.NewIdentityError(models.CodeInvalidCredential, errors.New("no user is signed in"))
	}

	if err := c.svc.UpdateProfile(ctx, current.UID, displayName); err != nil {
		return err
	}
	updated := *current
	updated.DisplayName = displayName
	_, err := c.signedIn(&updated)
	return err
}

// SignOut forgets the signed-in user. Tokens are stateless so nothing remote can fail.
func (c *Client) SignOut(ctx context.Context) error {
	c.setCurrent(nil, "")
	return nil
}

func (c *Client) SessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// OnAuthStateChanged registers fn. The first registration resolves the restore
// token in the background; a sign-in that finishes earlier takes precedence.
// Registrations after that receive the current identity right away.
func (c *Client) OnAuthStateChanged(fn func(*models.Identity)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	resolved := c.resolved
	startResolve := !c.resolved && !c.resolving
	if startResolve {
		c.resolving = true
	}
	var current *models.Identity
	if c.current != nil {
		current = c.current.Identity()
	}
	c.mu.Unlock()

	if resolved {
		fn(current)
	}
	if startResolve {
		go c.resolve()
	}

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) resolve() {
	var cred *models.Credential
	token := ""
	if c.restoreToken != "" {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		resolved, err := c.svc.ResolveToken(ctx, c.restoreToken)
		cancel()
		if err != nil {
			log.Printf("Discarding stored session: %v", err)
		} else {
			cred = resolved
			token = c.restoreToken
		}
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return
	}
	c.resolved = true
	c.current = cred
	c.token = token
	fns, identity := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

func (c *Client) signedIn(cred *models.Credential) (*models.Identity, error) {
	token, err := c.svc.IssueToken(cred)
	if err != nil {
		return nil, err
	}
	c.setCurrent(cred, token)
	return cred.Identity(), nil
}

func (c *Client) setCurrent(cred *models.Credential, token string) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.resolved = true
	c.current = cred
	c.token = token
	fns, identity := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

func (c *Client) snapshotLocked() ([]func(*models.Identity), *models.Identity) {
	fns := make([]func(*models.Identity), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	if c.current == nil {
		return fns, nil
	}
	return fns, c.current.Identity()
}
