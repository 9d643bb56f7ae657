package managers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/connectry/connectry/pkg/domain"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrReauthorizationRequired marks a record that cannot be used again
	// until the user re-authorizes out of band. Sticky: callers must not
	// retry through it.
	ErrReauthorizationRequired = errors.New("unauthorized, reauthorization required")

	// ErrRefreshTokenMissing marks a record whose token expired but carries
	// no refresh token. Structurally unrecoverable, so it fails immediately
	// instead of entering a refresh loop that can never succeed.
	ErrRefreshTokenMissing = errors.New("credential has no refresh token")

	// ErrRefreshWaitExhausted is returned when polling for a concurrent
	// refresher ran out of attempts without observing a usable record.
	ErrRefreshWaitExhausted = errors.New("timed out waiting for concurrent token refresh")
)

// RefreshAttemptError is the transient failure surfaced while the record is
// still below its refresh error limit. The scheduler is expected to resubmit.
type RefreshAttemptError struct {
	Attempt int
	Limit   int
	Cause   error
}

func (e *RefreshAttemptError) Error() string {
	return fmt.Sprintf("token refresh failed, attempt %d of %d: %v", e.Attempt, e.Limit, e.Cause)
}

func (e *RefreshAttemptError) Unwrap() error {
	return e.Cause
}

// TokenLifecycleConfig tunes the credential state machine.
type TokenLifecycleConfig struct {
	// SafetyBuffer shifts the effective token expiry earlier so a token is
	// never handed out moments before it lapses.
	SafetyBuffer time.Duration

	// LockTimeout bounds how long one invocation may own a refresh before
	// another invocation is allowed to take over. The lock is advisory: a
	// crashed refresher must not wedge the record forever.
	LockTimeout time.Duration

	// RefreshErrorLimit is the consecutive-failure count past which the
	// record becomes refresh_failed.
	RefreshErrorLimit int

	// Polling settings for waiting on a concurrent refresher.
	PollAttempts     int
	PollInitialDelay time.Duration
	PollMultiplier   float64
}

func DefaultTokenLifecycleConfig() TokenLifecycleConfig {
	return TokenLifecycleConfig{
		SafetyBuffer:      30 * time.Second,
		LockTimeout:       30 * time.Second,
		RefreshErrorLimit: 5,
		PollAttempts:      5,
		PollInitialDelay:  100 * time.Millisecond,
		PollMultiplier:    1.2,
	}
}

// TokenLifecycleManagerDependencies wires the manager's collaborators.
type TokenLifecycleManagerDependencies struct {
	RecordStore domain.CredentialRecordStore
	Refresher   domain.TokenRefresher
	PeerFetcher PeerTokenFetcher
	Config      TokenLifecycleConfig
}

// TokenLifecycleManager owns the credential state machine for vendor user
// records: validity check, refresh, concurrent-refresh coordination, and
// failure escalation. Records are shared across independent invocations, so
// all coordination is the time-boxed advisory lock plus last-write-wins
// persistence; two invocations that read an expired record before either
// writes the refreshing status can still both refresh. That race is accepted.
var _ domain.TokenSource = (*TokenLifecycleManager)(nil)

type TokenLifecycleManager struct {
	store       domain.CredentialRecordStore
	refresher   domain.TokenRefresher
	peerFetcher PeerTokenFetcher
	config      TokenLifecycleConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewTokenLifecycleManager(deps TokenLifecycleManagerDependencies) *TokenLifecycleManager {
	config := deps.Config
	if config == (TokenLifecycleConfig{}) {
		config = DefaultTokenLifecycleConfig()
	}

	return &TokenLifecycleManager{
		store:       deps.RecordStore,
		refresher:   deps.Refresher,
		peerFetcher: deps.PeerFetcher,
		config:      config,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// EnsureAccessToken returns a valid access token for the vendor user,
// refreshing the stored credential when needed.
func (m *TokenLifecycleManager) EnsureAccessToken(ctx context.Context, vendorUserID string) (domain.TokenData, error) {
	record, _, err := m.store.GetRecord(ctx, vendorUserID)
	if err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to load credential record for %s: %w", vendorUserID, err)
	}

	return m.ensureFromRecord(ctx, record)
}

// EnsurePeerAccessToken fetches a token from another connector's endpoint on
// behalf of a foreign identity. Failures are reported as-is; this manager
// does not retry peer lookups.
func (m *TokenLifecycleManager) EnsurePeerAccessToken(ctx context.Context, peerVendorID string) (domain.TokenData, error) {
	if m.peerFetcher == nil {
		return domain.TokenData{}, fmt.Errorf("no peer token fetcher configured")
	}

	return m.peerFetcher.FetchPeerToken(ctx, peerVendorID)
}

// EnsureLinkedAccessToken resolves a secondary vendor identity through its
// identity link and ensures the primary record's token.
func (m *TokenLifecycleManager) EnsureLinkedAccessToken(ctx context.Context, peerVendorID string) (domain.TokenData, error) {
	link, err := m.store.GetIdentityLink(ctx, peerVendorID)
	if err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to resolve identity link for %s: %w", peerVendorID, err)
	}

	return m.EnsureAccessToken(ctx, link.VendorUserID)
}

func (m *TokenLifecycleManager) ensureFromRecord(ctx context.Context, record domain.CredentialRecord) (domain.TokenData, error) {
	now := m.now()

	switch {
	case record.Status == domain.CredentialStatusAuthenticated && !record.Token.ExpiredAt(now, m.config.SafetyBuffer):
		return record.Token, nil

	case record.Status == domain.CredentialStatusRefreshFailed:
		return domain.TokenData{}, fmt.Errorf("credential for %s is unusable after %d refresh failures: %w",
			record.VendorUserID, record.RefreshErrorCount, ErrReauthorizationRequired)

	case record.Status == domain.CredentialStatusRefreshing && record.LastRefreshStarted.Add(m.config.LockTimeout).After(now):
		return m.waitForConcurrentRefresh(ctx, record.VendorUserID)

	default:
		// authenticated with an expired token, refresh_error, or a
		// refreshing record whose lock has timed out.
		return m.refresh(ctx, record)
	}
}

func (m *TokenLifecycleManager) refresh(ctx context.Context, record domain.CredentialRecord) (domain.TokenData, error) {
	logger := domain.LoggerFromContext(ctx)

	if record.Token.RefreshToken == "" {
		return domain.TokenData{}, fmt.Errorf("cannot refresh credential for %s: %w",
			record.VendorUserID, ErrRefreshTokenMissing)
	}

	record.Status = domain.CredentialStatusRefreshing
	record.LastRefreshStarted = m.now()

	if _, err := m.store.PutRecord(ctx, record); err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to persist refreshing status for %s: %w", record.VendorUserID, err)
	}

	logger.Debug().
		Str("vendor_user_id", record.VendorUserID).
		Msg("refreshing access token")

	token, err := m.refresher.RefreshToken(ctx, domain.RefreshRequest{
		VendorUserID: record.VendorUserID,
		RefreshToken: record.Token.RefreshToken,
	})
	if err != nil {
		return m.recordRefreshFailure(ctx, record, err)
	}

	record.Token = token
	record.Status = domain.CredentialStatusAuthenticated
	record.RefreshErrorCount = 0
	record.LastRefreshError = ""

	if _, err := m.store.PutRecord(ctx, record); err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to persist refreshed token for %s: %w", record.VendorUserID, err)
	}

	logger.Info().
		Str("vendor_user_id", record.VendorUserID).
		Time("expires_at", token.ExpiresAt).
		Msg("access token refreshed")

	return token, nil
}

func (m *TokenLifecycleManager) recordRefreshFailure(ctx context.Context, record domain.CredentialRecord, cause error) (domain.TokenData, error) {
	logger := domain.LoggerFromContext(ctx)

	record.RefreshErrorCount++
	record.LastRefreshError = cause.Error()

	if record.RefreshErrorCount > m.config.RefreshErrorLimit {
		record.Status = domain.CredentialStatusRefreshFailed

		if _, err := m.store.PutRecord(ctx, record); err != nil {
			return domain.TokenData{}, fmt.Errorf("failed to persist refresh_failed status for %s: %w", record.VendorUserID, err)
		}

		logger.Error().
			Err(cause).
			Str("vendor_user_id", record.VendorUserID).
			Int("refresh_error_count", record.RefreshErrorCount).
			Msg("refresh error limit exceeded, credential marked unusable")

		return domain.TokenData{}, fmt.Errorf("refresh error limit exceeded for %s: %w",
			record.VendorUserID, ErrReauthorizationRequired)
	}

	record.Status = domain.CredentialStatusRefreshError

	if _, err := m.store.PutRecord(ctx, record); err != nil {
		return domain.TokenData{}, fmt.Errorf("failed to persist refresh_error status for %s: %w", record.VendorUserID, err)
	}

	logger.Warn().
		Err(cause).
		Str("vendor_user_id", record.VendorUserID).
		Int("refresh_error_count", record.RefreshErrorCount).
		Msg("token refresh failed")

	return domain.TokenData{}, &RefreshAttemptError{
		Attempt: record.RefreshErrorCount,
		Limit:   m.config.RefreshErrorLimit,
		Cause:   cause,
	}
}

// waitForConcurrentRefresh polls the record while another invocation is
// presumed to be refreshing it, backing off multiplicatively between reads.
func (m *TokenLifecycleManager) waitForConcurrentRefresh(ctx context.Context, vendorUserID string) (domain.TokenData, error) {
	delays := backoff.NewExponentialBackOff()
	delays.InitialInterval = m.config.PollInitialDelay
	delays.Multiplier = m.config.PollMultiplier
	delays.RandomizationFactor = 0
	delays.MaxInterval = m.config.LockTimeout
	delays.Reset()

	for attempt := 0; attempt < m.config.PollAttempts; attempt++ {
		if err := m.sleep(ctx, delays.NextBackOff()); err != nil {
			return domain.TokenData{}, err
		}

		record, _, err := m.store.GetRecord(ctx, vendorUserID)
		if err != nil {
			return domain.TokenData{}, fmt.Errorf("failed to re-read credential record for %s: %w", vendorUserID, err)
		}

		switch record.Status {
		case domain.CredentialStatusAuthenticated:
			return record.Token, nil

		case domain.CredentialStatusRefreshFailed:
			return domain.TokenData{}, fmt.Errorf("credential for %s is unusable: %w", vendorUserID, ErrReauthorizationRequired)

		case domain.CredentialStatusRefreshError:
			return domain.TokenData{}, fmt.Errorf("concurrent refresh for %s failed: %s", vendorUserID, record.LastRefreshError)
		}
	}

	return domain.TokenData{}, fmt.Errorf("credential for %s: %w", vendorUserID, ErrRefreshWaitExhausted)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
