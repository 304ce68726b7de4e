package outlook

import (
	"context"
	"fmt"

	"plansync/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// calendarScopes are requested on every token grant. offline_access keeps
// refresh tokens rolling.
var calendarScopes = []string{
	"offline_access",
	"https://graph.microsoft.com/Calendars.ReadWrite",
	"https://graph.microsoft.com/MailboxSettings.ReadWrite",
}

func oauthConfig(cfg config.OutlookConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     microsoft.AzureADEndpoint(cfg.TenantID),
		Scopes:       calendarScopes,
	}
}

// Session exchanges a stored refresh token for an authorized session. The
// exchange happens eagerly so a revoked credential surfaces here, where the
// caller can treat it as "not connected", instead of on the first API call.
// The minted access token is cached by the token source and re-minted as it
// expires.
func (c *Client) Session(ctx context.Context, refreshToken string) (*Session, error) {
	seed := &oauth2.Token{RefreshToken: refreshToken}
	tokens := c.oauth.TokenSource(ctx, seed)
	if _, err := tokens.Token(); err != nil {
		return nil, fmt.Errorf("failed to exchange refresh token: %w", err)
	}
	return &Session{
		client: c,
		tokens: tokens,
	}, nil
}

// StaticSession binds the client to a pre-minted access token. Useful for
// one-off tooling and tests; production flows go through Session.
func (c *Client) StaticSession(accessToken string) *Session {
	return &Session{
		client: c,
		tokens: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}),
	}
}
