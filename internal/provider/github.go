package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultGitHubAPIBaseURL = "https://api.github.com"

// GitHub implements Adapter for GitHub's OAuth2 code flow. GitHub is not
// an OIDC provider, so the profile comes from the REST API and the email
// from the dedicated emails endpoint.
type GitHub struct {
	config     *oauth2.Config
	apiBaseURL string
	client     *http.Client
}

func NewGitHub(cfg Config) *GitHub {
	endpoint := endpoints.GitHub
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	apiBaseURL := cfg.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultGitHubAPIBaseURL
	}

	return &GitHub{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"user:email"},
			Endpoint:     endpoint,
		},
		apiBaseURL: apiBaseURL,
		client:     &http.Client{Timeout: cfg.timeout()},
	}
}

func (g *GitHub) Name() string {
	return "github"
}

func (g *GitHub) AuthorizeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

func (g *GitHub) Exchange(ctx context.Context, code string) (string, error) {
	return exchange(ctx, g.config, g.client, code)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHub) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var user githubUser
	raw, err := getJSON(ctx, g.client, g.apiBaseURL+"/user", accessToken, &user)
	if err != nil {
		return nil, fmt.Errorf("github user: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("github user has no id: %w", ErrExchangeFailed)
	}

	var emails []githubEmail
	if _, err := getJSON(ctx, g.client, g.apiBaseURL+"/user/emails", accessToken, &emails); err != nil {
		return nil, fmt.Errorf("github emails: %w", err)
	}

	email, err := selectGitHubEmail(emails)
	if err != nil {
		return nil, err
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &Profile{
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Email:          email,
		EmailVerified:  true,
		Name:           name,
		AvatarURL:      user.AvatarURL,
		Raw:            raw,
	}, nil
}

// selectGitHubEmail picks the address that is both primary and verified.
// An account without one cannot be safely linked by email, so the login
// fails instead of falling back to an unverified address.
func selectGitHubEmail(emails []githubEmail) (string, error) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", ErrEmailUnavailable
}
