package provider

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Google implements Adapter for Google's OAuth2 code flow using the
// userinfo endpoint. Google reports per-address verification, which is
// carried into the profile as-is.
type Google struct {
	config      *oauth2.Config
	userInfoURL string
	client      *http.Client
}

func NewGoogle(cfg Config) *Google {
	endpoint := endpoints.Google
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	userInfoURL := defaultGoogleUserInfoURL
	if cfg.APIBaseURL != "" {
		userInfoURL = cfg.APIBaseURL + "/oauth2/v2/userinfo"
	}

	return &Google{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		client:      &http.Client{Timeout: cfg.timeout()},
	}
}

func (g *Google) Name() string {
	return "google"
}

func (g *Google) AuthorizeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (g *Google) Exchange(ctx context.Context, code string) (string, error) {
	return exchange(ctx, g.config, g.client, code)
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *Google) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var info googleUserInfo
	raw, err := getJSON(ctx, g.client, g.userInfoURL, accessToken, &info)
	if err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("google userinfo has no id: %w", ErrExchangeFailed)
	}
	if info.Email == "" {
		return nil, ErrEmailUnavailable
	}

	return &Profile{
		ProviderUserID: info.ID,
		Email:          info.Email,
		EmailVerified:  info.VerifiedEmail,
		Name:           info.Name,
		AvatarURL:      info.Picture,
		Raw:            raw,
	}, nil
}
