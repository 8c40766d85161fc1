// Package quota fetches per-resource quota state from the Cloud Code API.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/j-veylop/antigravity-quota-history/internal/logger"
)

const (
	// Google OAuth token endpoint
	googleOAuthURL = "https://oauth2.googleapis.com/token"

	// UserInfo endpoint
	userInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

	// refreshTokenPrefix marks long-lived Google refresh tokens.
	refreshTokenPrefix = "1//"
)

// ErrEmptyToken is returned when a call needs a token and none was given.
var ErrEmptyToken = errors.New("token is empty")

// TokenResponse represents the OAuth token response from Google.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// CachedToken represents a cached access token with expiration.
type CachedToken struct {
	ExpiresAt   time.Time
	AccessToken string
}

// IsValid checks if the cached token is still valid.
func (t *CachedToken) IsValid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	// Add 5 minute buffer before expiration
	return time.Now().Add(5 * time.Minute).Before(t.ExpiresAt)
}

// IsRefreshToken reports whether token is a refresh token rather than an
// access token.
func IsRefreshToken(token string) bool {
	return strings.HasPrefix(token, refreshTokenPrefix)
}

// RefreshAccessToken exchanges a refresh token for a new access token.
func RefreshAccessToken(ctx context.Context, client *http.Client, refreshToken, clientID, clientSecret string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh: %w", ErrEmptyToken)
	}

	data := url.Values{}
	data.Set("client_id", clientID)
	data.Set("client_secret", clientSecret)
	data.Set("refresh_token", refreshToken)
	data.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleOAuthURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, status, err := do(clientOrDefault(client), req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("token refresh failed (status %d): %s", status, string(body))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	return &tokenResp, nil
}

// UserInfo is the part of the Google profile used to identify an account.
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// FetchUserInfo retrieves user information from Google.
func FetchUserInfo(ctx context.Context, client *http.Client, accessToken string) (*UserInfo, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("userinfo: %w", ErrEmptyToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	body, status, err := do(clientOrDefault(client), req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed (status %d): %s", status, string(body))
	}

	var userInfo UserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", err)
	}

	return &userInfo, nil
}

// do sends req and returns the full body and status code.
func do(client *http.Client, req *http.Request) ([]byte, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func clientOrDefault(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: 30 * time.Second}
	}
	return client
}
