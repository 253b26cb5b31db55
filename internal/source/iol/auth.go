package iol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// tokenLifetime is how long a bearer token is trusted before a refresh. The
// broker issues 15-minute tokens; one minute of slack avoids using a token
// that expires mid-request.
const tokenLifetime = 14 * time.Minute

// Authenticator performs the OAuth password/refresh-token handshake against
// the broker's /token endpoint and hands out domain.Session values.
type Authenticator struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewAuthenticator creates an Authenticator for the given credentials.
func NewAuthenticator(baseURL, username, password string, timeout time.Duration) *Authenticator {
	return &Authenticator{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
	}
}

// tokenResponse is the JSON shape of the /token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login performs the initial password grant and returns a fresh session.
func (a *Authenticator) Login(ctx context.Context) (domain.Session, error) {
	form := url.Values{
		"username":   {a.username},
		"password":   {a.password},
		"grant_type": {"password"},
	}
	return a.requestToken(ctx, form)
}

// Refresh exchanges a session's refresh token for a new one. Callers should
// fall back to Login when Refresh fails.
func (a *Authenticator) Refresh(ctx context.Context, session domain.Session) (domain.Session, error) {
	if session.RefreshToken == "" {
		return domain.Session{}, fmt.Errorf("iol: refresh: no refresh token: %w", domain.ErrUnauthenticated)
	}
	form := url.Values{
		"refresh_token": {session.RefreshToken},
		"grant_type":    {"refresh_token"},
	}
	return a.requestToken(ctx, form)
}

func (a *Authenticator) requestToken(ctx context.Context, form url.Values) (domain.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Session{}, fmt.Errorf("iol: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return domain.Session{}, fmt.Errorf("iol: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Session{}, fmt.Errorf("iol: token request: status %d: %s: %w",
			resp.StatusCode, string(body), domain.ErrUnauthenticated)
	}

	var data tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.Session{}, fmt.Errorf("iol: decode token response: %w", err)
	}
	if data.AccessToken == "" {
		return domain.Session{}, fmt.Errorf("iol: empty access token: %w", domain.ErrUnauthenticated)
	}

	return domain.Session{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresAt:    time.Now().Add(tokenLifetime),
	}, nil
}
