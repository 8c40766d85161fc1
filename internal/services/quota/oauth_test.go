package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// MockRoundTripper implements http.RoundTripper for testing
type MockRoundTripper struct {
	RoundTripFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.RoundTripFunc(req)
}

func jsonResponse(status int, v any) *http.Response {
	body, _ := json.Marshal(v)
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body))}
}

func textResponse(status int, s string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(s))}
}

func TestRefreshAccessToken(t *testing.T) {
	tests := []struct {
		name         string
		refreshToken string
		transport    http.RoundTripper
		wantErr      bool
	}{
		{
			name:         "Success",
			refreshToken: "valid",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					if err := req.ParseForm(); err != nil {
						return nil, err
					}
					if req.PostForm.Get("grant_type") != "refresh_token" {
						return textResponse(400, "bad grant"), nil
					}
					return jsonResponse(200, TokenResponse{AccessToken: "new"}), nil
				},
			},
			wantErr: false,
		},
		{
			name:         "EmptyToken",
			refreshToken: "",
			wantErr:      true,
		},
		{
			name:         "HTTPError",
			refreshToken: "valid",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					return nil, errors.New("net error")
				},
			},
			wantErr: true,
		},
		{
			name:         "StatusError",
			refreshToken: "valid",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					return textResponse(400, "bad request"), nil
				},
			},
			wantErr: true,
		},
		{
			name:         "JSONError",
			refreshToken: "valid",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					return textResponse(200, "invalid json"), nil
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &http.Client{Transport: tt.transport}
			if tt.transport == nil {
				client = nil
			}
			_, err := RefreshAccessToken(context.Background(), client, tt.refreshToken, "cid", "csec")
			if (err != nil) != tt.wantErr {
				t.Errorf("RefreshAccessToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRefreshAccessToken_EmptyTokenSentinel(t *testing.T) {
	_, err := RefreshAccessToken(context.Background(), nil, "", "cid", "csec")
	if !errors.Is(err, ErrEmptyToken) {
		t.Errorf("error = %v, want ErrEmptyToken", err)
	}
}

func TestFetchUserInfo(t *testing.T) {
	tests := []struct {
		name        string
		accessToken string
		transport   http.RoundTripper
		wantEmail   string
		wantErr     bool
	}{
		{
			name:        "Success",
			accessToken: "valid",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					if req.Header.Get("Authorization") != "Bearer valid" {
						return textResponse(401, "no auth"), nil
					}
					return jsonResponse(200, UserInfo{Email: "test@example.com"}), nil
				},
			},
			wantEmail: "test@example.com",
		},
		{
			name:        "EmptyToken",
			accessToken: "",
			wantErr:     true,
		},
		{
			name:        "HTTPError",
			accessToken: "valid",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					return nil, errors.New("net error")
				},
			},
			wantErr: true,
		},
		{
			name:        "StatusError",
			accessToken: "valid",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					return textResponse(400, "bad request"), nil
				},
			},
			wantErr: true,
		},
		{
			name:        "JSONError",
			accessToken: "valid",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					return textResponse(200, "bad json"), nil
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &http.Client{Transport: tt.transport}
			if tt.transport == nil {
				client = nil
			}
			info, err := FetchUserInfo(context.Background(), client, tt.accessToken)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FetchUserInfo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && info.Email != tt.wantEmail {
				t.Errorf("Email = %q, want %q", info.Email, tt.wantEmail)
			}
		})
	}
}

func TestCachedToken_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		token *CachedToken
		want  bool
	}{
		{"Nil", nil, false},
		{"EmptyAccess", &CachedToken{}, false},
		{"Expired", &CachedToken{AccessToken: "t", ExpiresAt: time.Now().Add(-1 * time.Minute)}, false},
		{"Valid", &CachedToken{AccessToken: "t", ExpiresAt: time.Now().Add(10 * time.Minute)}, true},
		{"BufferEdge", &CachedToken{AccessToken: "t", ExpiresAt: time.Now().Add(4 * time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.IsValid(); got != tt.want {
				t.Errorf("CachedToken.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRefreshToken(t *testing.T) {
	if !IsRefreshToken("1//0abc") {
		t.Error("1// prefix should be a refresh token")
	}
	if IsRefreshToken("ya29.abc") {
		t.Error("ya29. prefix is an access token")
	}
}
