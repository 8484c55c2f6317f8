package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"reelsmith/internal/config"
	"reelsmith/internal/services"
)

// Authenticator yields a short-lived access token.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
}

// OAuthAuthenticator exchanges a long-lived refresh token for access tokens
// and caches each one until it expires.
type OAuthAuthenticator struct {
	oauth        oauth2.Config
	refreshToken string
	httpClient   *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

// NewOAuthAuthenticator builds an authenticator from publish configuration.
// A nil httpClient uses the default client.
func NewOAuthAuthenticator(cfg config.Publish, httpClient *http.Client) *OAuthAuthenticator {
	return &OAuthAuthenticator{
		oauth: oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		refreshToken: strings.TrimSpace(cfg.RefreshToken),
		httpClient:   httpClient,
	}
}

// Token returns a valid access token. Missing or rejected credentials are
// ErrAuth and must not be retried with the same credential.
func (a *OAuthAuthenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token.Valid() {
		return a.token.AccessToken, nil
	}
	var missing []string
	if a.oauth.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if a.oauth.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if a.refreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	if len(missing) > 0 {
		return "", services.Wrap(services.ErrAuth, stageName, "authenticate", "missing credentials: "+strings.Join(missing, ", "), nil)
	}

	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	token, err := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: a.refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		switch {
		case errors.As(err, &retrieveErr):
			msg := fmt.Sprintf("credential rejected (http %d)", retrieveErr.Response.StatusCode)
			if retrieveErr.ErrorCode != "" {
				msg += ": " + retrieveErr.ErrorCode
			}
			return "", services.Wrap(services.ErrAuth, stageName, "authenticate", msg, err)
		case errors.Is(err, context.DeadlineExceeded):
			return "", services.WrapTimeout(services.ErrAuth, stageName, "authenticate", "token endpoint did not respond", err)
		default:
			return "", services.Wrap(services.ErrAuth, stageName, "authenticate", "token exchange failed", err)
		}
	}
	if token.AccessToken == "" {
		return "", services.Wrap(services.ErrAuth, stageName, "authenticate", "token endpoint returned no access token", nil)
	}
	a.token = token
	return token.AccessToken, nil
}

// StaticToken is an Authenticator that always returns the same token.
type StaticToken string

// Token returns the token, or ErrAuth when it is empty.
func (t StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", services.Wrap(services.ErrAuth, stageName, "authenticate", "empty access token", nil)
	}
	return string(t), nil
}
