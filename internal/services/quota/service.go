package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/j-veylop/antigravity-quota-history/internal/logger"
	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

var (
	// Cloud Code endpoints, tried in order.
	antigravityEndpoints = []string{
		"https://cloudcode-pa.googleapis.com",
		"https://daily-cloudcode-pa.sandbox.googleapis.com",
	}

	antigravityHeaders = map[string]string{
		"User-Agent":        "antigravity/1.11.5 windows/amd64",
		"X-Goog-Api-Client": "google-cloud-sdk vscode_cloudshelleditor/0.1",
		"Client-Metadata":   `{"ideType":"IDE_UNSPECIFIED","platform":"PLATFORM_UNSPECIFIED","pluginType":"GEMINI"}`,
	}
)

// defaultProjectID is used when loadCodeAssist does not report a project.
const defaultProjectID = "bamboo-precept-lgxtn"

var (
	// ErrNoToken is returned for accounts without any usable token.
	ErrNoToken = errors.New("account has no token")
	// ErrUnauthorized is returned when the API rejects the access token.
	ErrUnauthorized = errors.New("unauthorized: access token may be expired")
)

// Config holds configuration for the quota service.
type Config struct {
	HTTPClient   *http.Client
	ClientID     string
	ClientSecret string
	// Timeout bounds one whole Fetch, token refresh included.
	Timeout time.Duration
	// RetryBackoff is the first delay between token refresh attempts.
	RetryBackoff time.Duration
	MaxRetries   int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Second,
		RetryBackoff: 500 * time.Millisecond,
		MaxRetries:   3,
	}
}

// Service fetches quota for accounts and caches refreshed access tokens.
type Service struct {
	client     *http.Client
	tokenCache map[string]*CachedToken
	now        func() time.Time
	config     Config
	mu         sync.RWMutex
}

// New creates a new quota service.
func New(config Config) *Service {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}

	return &Service{
		client:     clientOrDefault(config.HTTPClient),
		tokenCache: make(map[string]*CachedToken),
		now:        time.Now,
		config:     config,
	}
}

// Fetch returns the current quota of acc. The call is bounded by the
// configured timeout on top of ctx.
func (s *Service) Fetch(ctx context.Context, acc models.Account) (*models.AccountQuota, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	accessToken, err := s.AccessToken(ctx, acc)
	if err != nil {
		return nil, err
	}

	projectID, tierID := acc.ProjectID, ""
	if info, err := loadCodeAssist(ctx, s.client, accessToken); err != nil {
		logger.Debug("loadCodeAssist failed", "account", acc.ID, "error", err)
	} else {
		if projectID == "" {
			projectID = info.ProjectID
		}
		tierID = info.tierID()
	}
	if projectID == "" {
		projectID = defaultProjectID
	}

	resp, err := FetchModels(ctx, s.client, accessToken, projectID)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.forgetToken(acc)
		}
		return nil, err
	}

	now := s.now()
	resources := resp.Resources()
	return &models.AccountQuota{
		LastUpdated: now,
		Tier:        string(ResolveTier(tierID, resources, now)),
		Resources:   resources,
	}, nil
}

// UserInfo resolves the Google identity behind an access token.
func (s *Service) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	return FetchUserInfo(ctx, s.client, accessToken)
}

// AccessToken returns a valid access token for the account, refreshing if needed.
func (s *Service) AccessToken(ctx context.Context, acc models.Account) (string, error) {
	refreshToken := acc.RefreshToken
	if refreshToken == "" && IsRefreshToken(acc.AccessToken) {
		refreshToken = acc.AccessToken
	}

	if refreshToken == "" {
		if acc.AccessToken == "" {
			return "", fmt.Errorf("%s: %w", acc.ID, ErrNoToken)
		}
		return acc.AccessToken, nil
	}

	s.mu.RLock()
	cached, ok := s.tokenCache[refreshToken]
	s.mu.RUnlock()

	if ok && cached.IsValid() {
		return cached.AccessToken, nil
	}

	var tokenResp *TokenResponse
	var err error

	// Retry with exponential backoff
	backoff := s.config.RetryBackoff
	for i := range s.config.MaxRetries {
		tokenResp, err = RefreshAccessToken(ctx, s.client, refreshToken, s.config.ClientID, s.config.ClientSecret)
		if err == nil {
			break
		}

		if i < s.config.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("failed to refresh token: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	s.mu.Lock()
	s.tokenCache[refreshToken] = &CachedToken{
		AccessToken: tokenResp.AccessToken,
		ExpiresAt:   s.now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}
	s.mu.Unlock()

	return tokenResp.AccessToken, nil
}

func (s *Service) forgetToken(acc models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokenCache, acc.RefreshToken)
	delete(s.tokenCache, acc.AccessToken)
}

// CachedTokens returns the number of cached access tokens.
func (s *Service) CachedTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokenCache)
}

type codeAssistTier struct {
	ID string `json:"id"`
}

// codeAssistInfo is the part of the loadCodeAssist response we use.
type codeAssistInfo struct {
	CurrentTier *codeAssistTier `json:"currentTier"`
	PaidTier    *codeAssistTier `json:"paidTier"`
	ProjectID   string          `json:"cloudaicompanionProject"`
}

// tierID prefers the paid tier over the current one.
func (c *codeAssistInfo) tierID() string {
	if c.PaidTier != nil && c.PaidTier.ID != "" {
		return c.PaidTier.ID
	}
	if c.CurrentTier != nil {
		return c.CurrentTier.ID
	}
	return ""
}

func loadCodeAssist(ctx context.Context, client *http.Client, accessToken string) (*codeAssistInfo, error) {
	payload := `{"metadata":{"ideType":"ANTIGRAVITY"}}`
	body, err := post(ctx, client, "/v1internal:loadCodeAssist", accessToken, payload)
	if err != nil {
		return nil, err
	}

	var info codeAssistInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse loadCodeAssist response: %w", err)
	}
	return &info, nil
}

// modelQuotaInfo is the quota block of one model.
type modelQuotaInfo struct {
	RemainingFraction *float64 `json:"remainingFraction"`
	ResetTime         string   `json:"resetTime"`
}

// FetchModelsResponse represents the response from fetchAvailableModels API.
type FetchModelsResponse struct {
	Models map[string]struct {
		QuotaInfo   *modelQuotaInfo `json:"quotaInfo"`
		DisplayName string          `json:"displayName"`
	} `json:"models"`
}

// Resources maps the tracked models to resource quotas, ordered for display.
// Untracked models are skipped. A missing quota block counts as 0%.
func (r *FetchModelsResponse) Resources() []models.ResourceQuota {
	resources := make([]models.ResourceQuota, 0, len(r.Models))
	seen := make(map[string]bool)

	for _, id := range slices.Sorted(maps.Keys(r.Models)) {
		name, ok := models.ResourceDisplayName(id)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true

		rq := models.ResourceQuota{Name: name}
		if qi := r.Models[id].QuotaInfo; qi != nil {
			if qi.RemainingFraction != nil {
				rq.Percentage = *qi.RemainingFraction * 100
			}
			if qi.ResetTime != "" {
				resetTime, err := time.Parse(time.RFC3339, qi.ResetTime)
				if err != nil {
					logger.Warn("invalid reset time", "model", id, "value", qi.ResetTime)
				} else {
					rq.ResetAt = models.ResetAtPtr(resetTime.Unix())
				}
			}
		}
		resources = append(resources, rq)
	}

	models.SortResources(resources)
	return resources
}

// FetchModels retrieves model quotas for a project from the Cloud Code API.
func FetchModels(ctx context.Context, client *http.Client, accessToken, projectID string) (*FetchModelsResponse, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("fetch models: %w", ErrEmptyToken)
	}

	payload, err := json.Marshal(map[string]string{"project": projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode quota request: %w", err)
	}

	body, err := post(ctx, client, "/v1internal:fetchAvailableModels", accessToken, string(payload))
	if err != nil {
		return nil, err
	}

	var modelsResp FetchModelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("failed to parse quota response: %w", err)
	}
	return &modelsResp, nil
}

// post tries each endpoint in turn until one answers 200. A 401 stops
// immediately since every endpoint would reject the token.
func post(ctx context.Context, client *http.Client, path, accessToken, payload string) ([]byte, error) {
	client = clientOrDefault(client)
	var lastErr error

	for _, endpoint := range antigravityEndpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+path, strings.NewReader(payload))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}

		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")
		for k, v := range antigravityHeaders {
			req.Header.Set(k, v)
		}

		body, status, err := do(client, req)
		if err != nil {
			lastErr = fmt.Errorf("request to %s failed: %w", endpoint, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if status == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}

		if status != http.StatusOK {
			lastErr = fmt.Errorf("request to %s failed (status %d): %s", endpoint, status, string(body))
			continue
		}

		return body, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no endpoint answered %s", path)
}
