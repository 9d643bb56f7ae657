package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/connectry/connectry/pkg/domain"
)

// Config holds the token endpoint settings for one vendor.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// EndpointRefresher exchanges a refresh token for a new access token using a
// form-encoded POST against the vendor's token endpoint.
type EndpointRefresher struct {
	config     Config
	httpClient *http.Client

	now func() time.Time
}

func NewEndpointRefresher(config Config) *EndpointRefresher {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &EndpointRefresher{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

type tokenEndpointResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken performs the refresh call. The returned token carries an
// absolute expiry recomputed from expires_in; when the endpoint does not
// rotate the refresh token, the prior one is retained.
func (r *EndpointRefresher) RefreshToken(ctx context.Context, req domain.RefreshRequest) (domain.TokenData, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", r.config.ClientID)
	form.Set("client_secret", r.config.ClientSecret)
	form.Set("refresh_token", req.RefreshToken)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to create token refresh request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return domain.TokenData{}, fmt.Errorf("token refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to read token refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.TokenData{}, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResponse tokenEndpointResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to parse token refresh response: %w", err)
	}

	if tokenResponse.AccessToken == "" {
		return domain.TokenData{}, fmt.Errorf("token endpoint returned no access token")
	}

	token := domain.TokenData{
		AccessToken:  tokenResponse.AccessToken,
		TokenType:    tokenResponse.TokenType,
		Scope:        tokenResponse.Scope,
		RefreshToken: tokenResponse.RefreshToken,
	}

	if tokenResponse.ExpiresIn > 0 {
		token.ExpiresAt = r.now().Add(time.Duration(tokenResponse.ExpiresIn) * time.Second)
	}

	if token.RefreshToken == "" {
		token.RefreshToken = req.RefreshToken
	}

	return token, nil
}
