package domain

import (
	"time"
)

// CredentialStatus is the lifecycle state of a vendor user's credential record.
type CredentialStatus string

const (
	CredentialStatusAuthenticated CredentialStatus = "authenticated"
	CredentialStatusRefreshing    CredentialStatus = "refreshing"
	CredentialStatusRefreshError  CredentialStatus = "refresh_error"
	CredentialStatusRefreshFailed CredentialStatus = "refresh_failed"
)

// TokenData holds the access token material stored inside a credential record.
type TokenData struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
}

// HasExpiry reports whether the token carries an absolute expiry instant.
func (t TokenData) HasExpiry() bool {
	return !t.ExpiresAt.IsZero()
}

// ExpiredAt reports whether the token should be treated as expired at the given
// instant. A token with no expiry never expires. The safety buffer shifts the
// effective expiry earlier so callers never hand out a token about to lapse.
func (t TokenData) ExpiredAt(now time.Time, safetyBuffer time.Duration) bool {
	if !t.HasExpiry() {
		return false
	}
	return !t.ExpiresAt.Add(-safetyBuffer).After(now)
}

// CredentialRecord is the persisted state for one vendor user's credential.
// It is mutated only by the token lifecycle manager.
type CredentialRecord struct {
	VendorUserID       string           `json:"vendor_user_id"`
	Status             CredentialStatus `json:"status"`
	Token              TokenData        `json:"token"`
	LastRefreshStarted time.Time        `json:"last_refresh_started,omitempty"`
	RefreshErrorCount  int              `json:"refresh_error_count"`
	LastRefreshError   string           `json:"last_refresh_error,omitempty"`
}

// IdentityLink maps a secondary vendor identity to the primary credential
// record that owns the actual token.
type IdentityLink struct {
	PeerVendorID string `json:"peer_vendor_id"`
	VendorUserID string `json:"vendor_user_id"`
}
