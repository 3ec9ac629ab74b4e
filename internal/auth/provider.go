package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// RefreshTokenCookie carries the provider refresh token
	RefreshTokenCookie = "refresh_token"
	// CodeVerifierCookie holds the PKCE verifier set when the login flow began
	CodeVerifierCookie = "code_verifier"

	refreshTokenMaxAge = 30 * 24 * 60 * 60
)

// ErrCodeExchange wraps every failed code exchange
var ErrCodeExchange = errors.New("code exchange failed")

// Session is the token pair returned by the auth provider
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	User         SessionUser `json:"user"`
}

// SessionUser is the identity attached to a Session
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type providerError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

// ProviderClient talks to the hosted auth provider's token endpoint
type ProviderClient struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewProviderClient creates a client for the provider at baseURL
func NewProviderClient(baseURL, anonKey string, timeout time.Duration, logger *slog.Logger) *ProviderClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("apikey", anonKey).
		SetHeader("Content-Type", "application/json")

	return &ProviderClient{http: client, logger: logger}
}

// ExchangeCode trades a PKCE authorization code for a session
func (p *ProviderClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Session, error) {
	var (
		session Session
		perr    providerError
	)

	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "pkce").
		SetBody(map[string]string{
			"auth_code":     code,
			"code_verifier": codeVerifier,
		}).
		SetResult(&session).
		SetError(&perr).
		Post("/auth/v1/token")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodeExchange, err)
	}

	if resp.IsError() {
		p.logger.Warn("Auth provider rejected code",
			slog.Int("status", resp.StatusCode()),
			slog.String("error", perr.Error),
			slog.String("description", perr.ErrorDescription+perr.Msg),
		)
		return nil, fmt.Errorf("%w: status %d", ErrCodeExchange, resp.StatusCode())
	}

	if session.AccessToken == "" || session.User.ID == "" {
		return nil, fmt.Errorf("%w: incomplete session", ErrCodeExchange)
	}

	return &session, nil
}

// SetSessionCookies stores the session on the browser and clears the PKCE
// verifier
func SetSessionCookies(w http.ResponseWriter, s *Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    s.AccessToken,
		Path:     "/",
		MaxAge:   s.ExpiresIn,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	if s.RefreshToken != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     RefreshTokenCookie,
			Value:    s.RefreshToken,
			Path:     "/",
			MaxAge:   refreshTokenMaxAge,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.SetCookie(w, &http.Cookie{
		Name:   CodeVerifierCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
