// Package keycloak implements the OpenID Connect authorization-code flow
// against a Keycloak realm.
package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"gymdesk/internal/domain/identity"
)

// Config identifies the realm and the client registered in it.
type Config struct {
	// RealmURL is the issuer, e.g. https://sso.example.com/realms/gym.
	RealmURL     string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// PostLogoutRedirectURL is where the provider sends the browser after logout.
	PostLogoutRedirectURL string
	// SigningMethods restricts accepted token algorithms. Empty means RS256.
	SigningMethods []string
}

// Enabled reports whether enough configuration is present to use the provider.
func (c Config) Enabled() bool {
	return c.RealmURL != "" && c.ClientID != ""
}

// ErrNoAccessToken is returned when the token endpoint omits the access token.
var ErrNoAccessToken = errors.New("token response has no access token")

// Provider talks to one Keycloak realm.
type Provider struct {
	cfg     Config
	oauth   oauth2.Config
	keyfunc jwt.Keyfunc
	issuer  string
}

// New creates a Provider and starts the background JWKS refresh. The JWKS
// refresh stops when ctx is cancelled.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled() {
		return nil, errors.New("keycloak: realm URL and client ID are required")
	}
	certs := strings.TrimRight(cfg.RealmURL, "/") + "/protocol/openid-connect/certs"
	k, err := keyfunc.NewDefaultCtx(ctx, []string{certs})
	if err != nil {
		return nil, fmt.Errorf("keycloak jwks: %w", err)
	}
	return NewWithKeyfunc(cfg, k.Keyfunc), nil
}

// NewWithKeyfunc creates a Provider that verifies signatures with kf.
func NewWithKeyfunc(cfg Config, kf jwt.Keyfunc) *Provider {
	realm := strings.TrimRight(cfg.RealmURL, "/")
	return &Provider{
		cfg:     cfg,
		keyfunc: kf,
		issuer:  realm,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  realm + "/protocol/openid-connect/auth",
				TokenURL: realm + "/protocol/openid-connect/token",
			},
		},
	}
}

// AuthCodeURL returns the login redirect for state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("keycloak exchange: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, ErrNoAccessToken
	}
	return tok, nil
}

// Refresh returns tok unchanged while it is valid, otherwise a refreshed token.
func (p *Provider) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	fresh, err := p.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("keycloak refresh: %w", err)
	}
	return fresh, nil
}

// Verify checks the signature, issuer and expiry of raw and decodes its claims.
// POST: returned claims passed identity.Claims.Validate
func (p *Provider) Verify(raw string) (*identity.Claims, error) {
	claims := &identity.Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, p.keyfunc,
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods(p.methods()),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return claims, nil
}

func (p *Provider) methods() []string {
	if len(p.cfg.SigningMethods) > 0 {
		return p.cfg.SigningMethods
	}
	return []string{"RS256"}
}

// EndSessionURL returns the provider logout URL.
func (p *Provider) EndSessionURL(idTokenHint string) string {
	q := url.Values{}
	q.Set("client_id", p.cfg.ClientID)
	if p.cfg.PostLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", p.cfg.PostLogoutRedirectURL)
	}
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	return p.issuer + "/protocol/openid-connect/logout?" + q.Encode()
}
