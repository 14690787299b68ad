package identity

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

type CredentialStore interface {
	Insert(ctx context.Context, cred *models.Credential) error
	FindByEmail(ctx context.Context, email string) (*models.Credential, error)
	FindByID(ctx context.Context, uid string) (*models.Credential, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Credential, error)
	LinkExternal(ctx context.Context, uid, externalID string) error
	SetDisplayName(ctx context.Context, uid, displayName string) error
	TouchLogin(ctx context.Context, uid string, at time.Time) error
}

// AttemptTracker counts failed sign-ins per email inside a rolling window.
type AttemptTracker interface {
	FailedAttempts(ctx context.Context, email string) (int64, error)
	RecordFailedAttempt(ctx context.Context, email string, window time.Duration) (int64, error)
	ResetFailedAttempts(ctx context.Context, email string) error
}

// ExternalProfile is what a single-sign-on provider tells us about the user.
type ExternalProfile struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

type ExternalAuthenticator interface {
	Authenticate(ctx context.Context, code string) (*ExternalProfile, error)
}

type Options struct {
	MinPasswordLength int
	MaxFailedAttempts int
	LockoutWindow     time.Duration
	BcryptCost        int
	Now               func() time.Time
}

// Service is the identity provider: password accounts, Google accounts and session tokens.
type Service struct {
	creds    CredentialStore
	attempts AttemptTracker
	tokens   *TokenService
	external ExternalAuthenticator
	opts     Options
}

func NewService(creds CredentialStore, attempts AttemptTracker, tokens *TokenService, external ExternalAuthenticator, opts Options) *Service {
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 6
	}
	if opts.MaxFailedAttempts <= 0 {
		opts.MaxFailedAttempts = 5
	}
	if opts.LockoutWindow <= 0 {
		opts.LockoutWindow = 15 * time.Minute
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		creds:    creds,
		attempts: attempts,
		tokens:   tokens,
		external: external,
		opts:     opts,
	}
}

func internalError(err error, msg string) error {
	return models.NewIdentityError(models.CodeIdentityInternal, pkgerrors.Wrap(err, msg))
}

// CreateAccount registers a password account.
func (s *Service) CreateAccount(ctx context.Context, email, password string) (*models.Credential, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return nil, models.NewIdentityError(models.CodeInvalidEmail, nil)
	}
	if len(password) < s.opts.MinPasswordLength {
		return nil, models.NewIdentityError(models.CodeWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return nil, internalError(err, "hash password")
	}

	cred := &models.Credential{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Provider:     models.ProviderPassword,
		CreatedAt:    s.opts.Now().Unix(),
	}
	if err := s.creds.Insert(ctx, cred); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, models.NewIdentityError(models.CodeEmailAlreadyInUse, nil)
		}
		return nil, internalError(err, "create account")
	}

	log.Printf("Created account %s", cred.UID)
	return cred, nil
}

// SignIn checks a password. Repeated failures for one email lock it out for the configured window.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.Credential, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return nil, models.NewIdentityError(models.CodeInvalidEmail, nil)
	}

	failed, err := s.attempts.FailedAttempts(ctx, email)
	if err != nil {
		log.Printf("Warning: failed to read sign-in attempts for %s: %v", email, err)
	}
	if failed >= int64(s.opts.MaxFailedAttempts) {
		return nil, models.NewIdentityError(models.CodeTooManyRequests, nil)
	}

	cred, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.recordFailure(ctx, email)
			return nil, models.NewIdentityError(models.CodeUserNotFound, nil)
		}
		return nil, internalError(err, "find account")
	}

	if cred.PasswordHash == "" {
		s.recordFailure(ctx, email)
		return nil, models.NewIdentityError(models.CodeInvalidCredential, nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		s.recordFailure(ctx, email)
		return nil, models.NewIdentityError(models.CodeWrongPassword, nil)
	}

	if err := s.attempts.ResetFailedAttempts(ctx, email); err != nil {
		log.Printf("Warning: failed to reset sign-in attempts for %s: %v", email, err)
	}
	s.touch(ctx, cred.UID)
	return cred, nil
}

func (s *Service) recordFailure(ctx context.Context, email string) {
	if _, err := s.attempts.RecordFailedAttempt(ctx, email, s.opts.LockoutWindow); err != nil {
		log.Printf("Warning: failed to record sign-in attempt for %s: %v", email, err)
	}
}

func (s *Service) touch(ctx context.Context, uid string) {
	if err := s.creds.TouchLogin(ctx, uid, s.opts.Now()); err != nil {
		log.Printf("Warning: %v", err)
	}
}

// SignInExternal finishes a Google sign-in with the authorization code. An
// empty code means the user left the consent screen. First-time users get an
// account; an existing password account with the same email is linked.
func (s *Service) SignInExternal(ctx context.Context, code string) (*models.Credential, error) {
	if code == "" {
		return nil, models.NewIdentityError(models.CodePopupClosedByUser, nil)
	}
	if s.external == nil {
		return nil, models.NewIdentityError(models.CodeProviderError, errors.New("external sign-in is not configured"))
	}

	profile, err := s.external.Authenticate(ctx, code)
	if err != nil {
		return nil, models.NewIdentityError(models.CodeProviderError, err)
	}
	profile.Email = NormalizeEmail(profile.Email)

	cred, err := s.creds.FindByExternalID(ctx, profile.Subject)
	if err == nil {
		s.touch(ctx, cred.UID)
		return cred, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, internalError(err, "find external account")
	}

	cred, err = s.creds.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if !profile.EmailVerified {
			return nil, models.NewIdentityError(models.CodeEmailAlreadyInUse, nil)
		}
		if err := s.creds.LinkExternal(ctx, cred.UID, profile.Subject); err != nil {
			return nil, internalError(err, "link external account")
		}
		s.touch(ctx, cred.UID)
		return cred, nil
	case !errors.Is(err, models.ErrNotFound):
		return nil, internalError(err, "find account")
	}

	cred = &models.Credential{
		UID:         uuid.NewString(),
		Email:       profile.Email,
		DisplayName: profile.Name,
		Provider:    models.ProviderGoogle,
		ExternalID:  profile.Subject,
		CreatedAt:   s.opts.Now().Unix(),
	}
	if err := s.creds.Insert(ctx, cred); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			// Either a concurrent first sign-in with the same Google account
			// or a concurrent registration of the same email.
			existing, ferr := s.creds.FindByExternalID(ctx, profile.Subject)
			switch {
			case ferr == nil:
				return existing, nil
			case errors.Is(ferr, models.ErrNotFound):
				return nil, models.NewIdentityError(models.CodeEmailAlreadyInUse, err)
			default:
				return nil, internalError(ferr, "find external account")
			}
		}
		return nil, internalError(err, "create external account")
	}

	log.Printf("Created account %s from Google sign-in", cred.UID)
	return cred, nil
}

func (s *Service) UpdateProfile(ctx context.Context, uid, displayName string) error {
	if err := s.creds.SetDisplayName(ctx, uid, displayName); err != nil {
		return internalError(err, "update profile")
	}
	return nil
}

func (s *Service) IssueToken(cred *models.Credential) (string, error) {
	token, err := s.tokens.Issue(cred)
	if err != nil {
		return "", internalError(err, "issue token")
	}
	return token, nil
}

// ResolveToken returns the account behind a session token.
func (s *Service) ResolveToken(ctx context.Context, token string) (*models.Credential, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, models.NewIdentityError(models.CodeInvalidToken, err)
	}
	cred, err := s.creds.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewIdentityError(models.CodeInvalidToken, err)
		}
		return nil, internalError(err, "resolve token")
	}
	return cred, nil
}
