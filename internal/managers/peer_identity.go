package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/connectry/connectry/pkg/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// PeerTokenFetcher obtains an access token for a foreign identity from
// another connector's endpoint.
type PeerTokenFetcher interface {
	FetchPeerToken(ctx context.Context, peerVendorID string) (domain.TokenData, error)
}

// HTTPPeerTokenFetcherConfig configures the HTTP peer lookup. The bearer
// credential presented to the peer is a short-lived JWT minted for this
// connector's own identity.
type HTTPPeerTokenFetcherConfig struct {
	// EndpointBaseURL is the peer connector's base URL.
	EndpointBaseURL string

	// ConnectorID identifies this connector in the minted bearer token.
	ConnectorID string

	// SigningKey is the shared HMAC key for signing the bearer token.
	SigningKey []byte

	// BearerTTL bounds the minted token's validity. Defaults to one minute.
	BearerTTL time.Duration

	Timeout time.Duration
}

type HTTPPeerTokenFetcher struct {
	config     HTTPPeerTokenFetcherConfig
	httpClient *http.Client

	now func() time.Time
}

func NewHTTPPeerTokenFetcher(config HTTPPeerTokenFetcherConfig) *HTTPPeerTokenFetcher {
	if config.BearerTTL <= 0 {
		config.BearerTTL = time.Minute
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPPeerTokenFetcher{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

type peerTokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Scope       string    `json:"scope"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// FetchPeerToken calls the peer connector's token endpoint. The result is
// returned verbatim; classification and retry are the caller's concern.
func (f *HTTPPeerTokenFetcher) FetchPeerToken(ctx context.Context, peerVendorID string) (domain.TokenData, error) {
	bearer, err := f.mintBearerToken(peerVendorID)
	if err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to mint peer bearer token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/identities/%s/token", f.config.EndpointBaseURL, url.PathEscape(peerVendorID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to create peer token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.TokenData{}, fmt.Errorf("peer token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to read peer token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.TokenData{}, fmt.Errorf("peer token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResponse peerTokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to parse peer token response: %w", err)
	}

	return domain.TokenData{
		AccessToken: tokenResponse.AccessToken,
		TokenType:   tokenResponse.TokenType,
		Scope:       tokenResponse.Scope,
		ExpiresAt:   tokenResponse.ExpiresAt,
	}, nil
}

func (f *HTTPPeerTokenFetcher) mintBearerToken(peerVendorID string) (string, error) {
	now := f.now()

	claims := jwt.RegisteredClaims{
		Issuer:    f.config.ConnectorID,
		Subject:   f.config.ConnectorID,
		Audience:  jwt.ClaimStrings{peerVendorID},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(f.config.BearerTTL)),
		ID:        xid.New().String(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.config.SigningKey)
}
