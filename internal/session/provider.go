package session

import (
	"context"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"
)

// IdentityProvider is one client's handle onto the identity provider.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (*models.Identity, error)
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	SignInWithProvider(ctx context.Context, credential string) (*models.Identity, error)
	UpdateProfile(ctx context.Context, displayName string) error
	SignOut(ctx context.Context) error

	// OnAuthStateChanged registers fn for every identity change. The first call
	// resolves the client's stored session and reports it exactly once.
	OnAuthStateChanged(fn func(*models.Identity)) (unsubscribe func())

	// SessionToken is the bearer token of the signed-in identity, "" when anonymous.
	SessionToken() string
}

// DocumentStore is the per-identity document boundary. Read returns (nil, nil)
// when the document does not exist.
type DocumentStore interface {
	Read(ctx context.Context, uid string) (*models.UserDocument, error)
	Write(ctx context.Context, uid string, doc *models.UserDocument, merge bool) error
	UpdateFields(ctx context.Context, uid string, fields map[string]any) error
	AppendToArray(ctx context.Context, uid, field string, value any) error
}
