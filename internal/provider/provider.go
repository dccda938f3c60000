package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Adapter normalizes one external identity provider's authorize, code
// exchange, and profile fetch flow. Adding a provider means adding an
// implementation, not changing the callers.
type Adapter interface {
	// Name returns the provider identifier (e.g. "github").
	Name() string

	// AuthorizeURL builds the provider authorization URL with the given
	// one-time state token embedded.
	AuthorizeURL(state string) string

	// Exchange trades an authorization code for the provider's access
	// token. Authorization codes are single-use, so a failed exchange is
	// never retried.
	Exchange(ctx context.Context, code string) (string, error)

	// FetchProfile retrieves and normalizes the provider's user info.
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}

// Profile is the normalized shape of a provider's user info.
type Profile struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	AvatarURL      string
	Raw            json.RawMessage
}

var (
	// ErrExchangeFailed is returned when the provider rejects the code
	// exchange or responds with a malformed body.
	ErrExchangeFailed = errors.New("provider code exchange failed")

	// ErrUnavailable is returned when the provider cannot be reached
	// within the request timeout.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrEmailUnavailable is returned when the provider holds no usable
	// verified email for the user.
	ErrEmailUnavailable = errors.New("provider returned no verified email")
)

const defaultTimeout = 10 * time.Second

// Config holds the settings shared by all adapters. Empty endpoint URLs
// fall back to the provider's well-known endpoints; tests point them at
// local fakes.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	Timeout      time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

// httpContext binds the adapter's bounded-timeout client into the context
// so the oauth2 package uses it for the token exchange.
func httpContext(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// exchange runs the oauth2 code-for-token exchange and classifies failures
// into the adapter error taxonomy.
func exchange(ctx context.Context, cfg *oauth2.Config, client *http.Client, code string) (string, error) {
	token, err := cfg.Exchange(httpContext(ctx, client), code)
	if err != nil {
		return "", classifyExchangeError(err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response: %w", ErrExchangeFailed)
	}
	return token.AccessToken, nil
}

func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("token endpoint returned %d: %w", retrieveErr.Response.StatusCode, ErrExchangeFailed)
	}
	if isTimeout(err) {
		return fmt.Errorf("token endpoint unreachable: %w", ErrUnavailable)
	}
	return fmt.Errorf("%v: %w", err, ErrExchangeFailed)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// getJSON performs an authorized GET against a provider API and decodes
// the JSON body, returning the raw payload alongside.
func getJSON(ctx context.Context, client *http.Client, url, accessToken string, out any) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("profile endpoint unreachable: %w", ErrUnavailable)
		}
		return nil, fmt.Errorf("profile request failed: %w", ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile response: %w", ErrUnavailable)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile endpoint returned %d: %w", resp.StatusCode, ErrExchangeFailed)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", ErrExchangeFailed)
	}

	return body, nil
}
