package orchestrators

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"gymdesk/internal/domain/identity"
	"gymdesk/internal/domain/session"
)

// IdentityProvider is the OIDC surface used at sign-in and refresh.
// keycloak.Provider satisfies it.
type IdentityProvider interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
	Verify(raw string) (*identity.Claims, error)
}

var (
	ErrStateMismatch = errors.New("login state does not match")
	ErrMissingCode   = errors.New("authorization code is missing")
)

// OIDCLoginInput carries the callback parameters.
type OIDCLoginInput struct {
	Code          string
	State         string
	ExpectedState string // from the state cookie
	ProviderError string // "error" query parameter, if the provider refused
}

// OIDCLoginDeps holds dependencies for OIDCLogin.
type OIDCLoginDeps struct {
	Provider IdentityProvider
	Sessions SessionSaver
	Events   AuthEventRecorder
	NewToken func() (string, error)
	Now      func() time.Time
}

// ExecuteOIDCLogin completes the authorization-code flow and opens a session.
// PRE: the browser returned from the provider with code and state
// POST: a session holding the upstream tokens is stored and returned
func ExecuteOIDCLogin(ctx context.Context, input OIDCLoginInput, deps OIDCLoginDeps) (session.Session, error) {
	if input.ProviderError != "" {
		authEvent(deps.Events, "oidc_refused", "reason", input.ProviderError)
		return session.Session{}, fmt.Errorf("identity provider: %s", input.ProviderError)
	}
	if input.ExpectedState == "" || subtle.ConstantTimeCompare([]byte(input.State), []byte(input.ExpectedState)) != 1 {
		authEvent(deps.Events, "oidc_state_mismatch")
		return session.Session{}, ErrStateMismatch
	}
	if input.Code == "" {
		return session.Session{}, ErrMissingCode
	}

	tok, err := deps.Provider.Exchange(ctx, input.Code)
	if err != nil {
		authEvent(deps.Events, "oidc_exchange_failed", "error", err)
		return session.Session{}, err
	}
	claims, err := deps.Provider.Verify(tok.AccessToken)
	if err != nil {
		authEvent(deps.Events, "oidc_token_rejected", "error", err)
		return session.Session{}, err
	}
	if err := claims.Validate(); err != nil {
		authEvent(deps.Events, "oidc_token_rejected", "error", err)
		return session.Session{}, err
	}

	token, err := deps.NewToken()
	if err != nil {
		return session.Session{}, err
	}
	user := identity.UserFromClaims(claims)
	sess := session.New(token, user, deps.Now())
	applyTokens(&sess, tok)
	if err := deps.Sessions.Save(ctx, sess); err != nil {
		return session.Session{}, err
	}

	authEvent(deps.Events, "login_success", "email", user.Email, "role", user.Role, "method", "oidc")
	return sess, nil
}

// RefreshSessionDeps holds dependencies for RefreshSession.
type RefreshSessionDeps struct {
	Provider IdentityProvider
	Events   AuthEventRecorder
}

// ExecuteRefreshSession renews the upstream tokens of s through the oauth2
// token source. The caller persists the result.
// PRE: s.RefreshToken is non-empty
// POST: returned session carries the new tokens and refreshed identity claims
func ExecuteRefreshSession(ctx context.Context, s session.Session, deps RefreshSessionDeps) (session.Session, error) {
	old := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		// Force the token source to hit the refresh grant.
		Expiry: time.Unix(1, 0),
	}
	tok, err := deps.Provider.Refresh(ctx, old)
	if err != nil {
		return session.Session{}, err
	}
	claims, err := deps.Provider.Verify(tok.AccessToken)
	if err != nil {
		return session.Session{}, err
	}
	user := identity.UserFromClaims(claims)
	s.Role = user.Role
	s.Name = user.Name
	s.TenantID = user.TenantID
	applyTokens(&s, tok)

	authEvent(deps.Events, "token_refreshed", "user_id", s.UserID)
	return s, nil
}

func applyTokens(s *session.Session, tok *oauth2.Token) {
	s.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		s.RefreshToken = tok.RefreshToken
	}
	if idt, ok := tok.Extra("id_token").(string); ok && idt != "" {
		s.IDToken = idt
	}
	s.TokenExpiry = tok.Expiry
}
