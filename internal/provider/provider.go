// Package provider contains the mail provider integrations. Each provider
// implements the same small capability surface so the fetch pass can stay
// provider-agnostic; dispatch happens by registry lookup, never by branching
// on provider names.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
)

// ErrIncompleteTokens is returned when a token endpoint responds without a
// usable access/refresh pair.
var ErrIncompleteTokens = errors.New("token response missing access or refresh token")

// TokenSet is the result of a token-endpoint exchange.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	IDToken      string
}

// ExpiryUTC returns the access token expiry instant relative to now.
func (t *TokenSet) ExpiryUTC(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// MailProvider is the capability surface a mail provider must offer to
// participate in the fetch pipeline.
type MailProvider interface {
	// Name returns the provider tag stored on connected accounts.
	Name() string

	// RefreshCredential exchanges a refresh token for a fresh token pair.
	RefreshCredential(ctx context.Context, refreshToken string) (*TokenSet, error)

	// ListUnreadSince fetches unread messages received at or after since.
	ListUnreadSince(ctx context.Context, accessToken string, since time.Time) ([]models.Mail, error)
}

// Registry resolves providers by name.
type Registry struct {
	providers map[string]MailProvider
}

// NewRegistry creates a registry holding the given providers.
func NewRegistry(providers ...MailProvider) *Registry {
	r := &Registry{providers: make(map[string]MailProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (MailProvider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
