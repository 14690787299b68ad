package identity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/config"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleOAuth runs the authorization code flow against Google.
type GoogleOAuth struct {
	oauth2Config *oauth2.Config
	httpClient   *req.Client
	userInfoURL  string
}

func NewGoogleOAuth(cfg config.GoogleConfig) *GoogleOAuth {
	return &GoogleOAuth{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
		httpClient:  req.C(),
		userInfoURL: googleUserInfoURL,
	}
}

// Enabled reports whether client credentials are configured.
func (g *GoogleOAuth) Enabled() bool {
	return g.oauth2Config.ClientID != "" && g.oauth2Config.ClientSecret != ""
}

func (g *GoogleOAuth) NewState() string {
	return uuid.NewString()
}

func (g *GoogleOAuth) AuthURL(state string) string {
	return g.oauth2Config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Authenticate exchanges code for a token and fetches the Google profile.
func (g *GoogleOAuth) Authenticate(ctx context.Context, code string) (*ExternalProfile, error) {
	token, err := g.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange code")
	}

	var info googleUserInfo
	resp, err := g.httpClient.R().
		SetContext(ctx).
		SetBearerAuthToken(token.AccessToken).
		SetSuccessResult(&info).
		Get(g.userInfoURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user info")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status: %d", resp.StatusCode)
	}
	if info.ID == "" || info.Email == "" {
		return nil, errors.New("userinfo response is missing id or email")
	}

	return &ExternalProfile{
		Subject:       info.ID,
		Email:         info.Email,
		Name:          info.Name,
		EmailVerified: info.VerifiedEmail,
	}, nil
}
