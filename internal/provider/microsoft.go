package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"golang.org/x/oauth2"
)

const (
	microsoftTokenURL     = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	microsoftAuthorizeURL = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	microsoftGraphURL     = "https://graph.microsoft.com"

	// Graph pages at most this many messages per list call.
	mailPageSize = 250

	microsoftScopes = "https://graph.microsoft.com/Mail.Read Mail.ReadWrite MailboxSettings.Read offline_access openid profile email"
)

// MicrosoftConfig holds the OAuth app registration for the Microsoft provider.
type MicrosoftConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// TokenURL and GraphURL override the live endpoints in tests.
	TokenURL string
	GraphURL string
}

// Microsoft talks to the Microsoft identity platform and the Graph mail API.
type Microsoft struct {
	httpClient *http.Client
	cfg        MicrosoftConfig
	oauth      *oauth2.Config
	logger     *slog.Logger
}

// NewMicrosoft creates the Microsoft mail provider.
func NewMicrosoft(cfg MicrosoftConfig, httpClient *http.Client, logger *slog.Logger) *Microsoft {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = microsoftTokenURL
	}
	if cfg.GraphURL == "" {
		cfg.GraphURL = microsoftGraphURL
	}

	return &Microsoft{
		httpClient: httpClient,
		cfg:        cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       strings.Split(microsoftScopes, " "),
			Endpoint: oauth2.Endpoint{
				AuthURL:  microsoftAuthorizeURL,
				TokenURL: cfg.TokenURL,
			},
		},
		logger: logger,
	}
}

// Name implements MailProvider
func (m *Microsoft) Name() string {
	return models.ProviderMicrosoft
}

// ConsentURL builds the authorization URL a user visits to connect their
// mailbox. The state value is round-tripped through the callback.
func (m *Microsoft) ConsentURL(state string) string {
	return m.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// Exchange trades an authorization code for a token set.
func (m *Microsoft) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	token, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	set := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    int(time.Until(token.Expiry).Seconds()),
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		set.IDToken = idToken
	}
	if set.AccessToken == "" || set.RefreshToken == "" {
		return nil, ErrIncompleteTokens
	}
	return set, nil
}

// tokenResponse is the identity platform token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	IDToken      string `json:"id_token"`
}

// RefreshCredential implements MailProvider. The request shape is the plain
// OAuth refresh-token grant, form-encoded with the Graph scopes.
func (m *Microsoft) RefreshCredential(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}
	if m.cfg.ClientID == "" || m.cfg.ClientSecret == "" {
		return nil, fmt.Errorf("missing Microsoft client configuration")
	}

	form := url.Values{
		"scope":         {microsoftScopes},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token refresh failed with status %d: %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		return nil, ErrIncompleteTokens
	}

	return &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    token.ExpiresIn,
		IDToken:      token.IDToken,
	}, nil
}

// mailListResponse is the Graph message list payload, trimmed to the fields
// the pipeline consumes.
type mailListResponse struct {
	Value []struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		WebLink string `json:"webLink"`
	} `json:"value"`
}

// ListUnreadSince implements MailProvider using the Graph inbox list endpoint
// with an OData filter on read state and received time.
func (m *Microsoft) ListUnreadSince(ctx context.Context, accessToken string, since time.Time) ([]models.Mail, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	filter := fmt.Sprintf("isRead eq false and receivedDateTime ge %s",
		since.UTC().Format("2006-01-02T15:04:05Z"))

	endpoint := fmt.Sprintf("%s/v1.0/me/mailFolders/inbox/messages?$filter=%s&$top=%d",
		m.cfg.GraphURL, url.QueryEscape(filter), mailPageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build mail list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mail list request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read mail list response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mail list failed with status %d: %s", resp.StatusCode, string(body))
	}

	var list mailListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode mail list response: %w", err)
	}

	mails := make([]models.Mail, 0, len(list.Value))
	for _, msg := range list.Value {
		mails = append(mails, models.Mail{
			ID:      msg.ID,
			Subject: msg.Subject,
			Body:    msg.Body.Content,
			Link:    msg.WebLink,
			Source:  models.ProviderMicrosoft,
		})
	}
	return mails, nil
}

// Identity is the subset of id_token claims used to set up a connected
// account.
type Identity struct {
	Sub   string
	Name  string
	Email string
}

// IdentityFromIDToken extracts the provider identity from an id_token. The
// token arrived over the TLS token-endpoint response, so its claims are read
// without signature verification, matching how the consent flow uses them.
func IdentityFromIDToken(idToken string) (*Identity, error) {
	if idToken == "" {
		return nil, fmt.Errorf("id_token is required")
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse id_token: %w", err)
	}

	id := &Identity{}
	if sub, ok := claims["sub"].(string); ok {
		id.Sub = sub
	}
	if name, ok := claims["name"].(string); ok {
		id.Name = name
	}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	} else if preferred, ok := claims["preferred_username"].(string); ok {
		id.Email = preferred
	}

	if id.Sub == "" {
		return nil, fmt.Errorf("id_token missing sub claim")
	}
	if id.Email == "" {
		return nil, fmt.Errorf("id_token missing email claim")
	}
	return id, nil
}
