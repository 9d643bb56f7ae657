package managers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/connectry/connectry/internal/storage"
	"github.com/connectry/connectry/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type managerFixture struct {
	manager      *TokenLifecycleManager
	store        *storage.MemoryRecordStore
	refreshCalls *int
	now          time.Time
}

func newManagerFixture(t *testing.T, config TokenLifecycleConfig, refresh domain.TokenRefresherFunc) *managerFixture {
	t.Helper()

	store := storage.NewMemoryRecordStore()
	calls := 0

	countingRefresh := domain.TokenRefresherFunc(func(ctx context.Context, req domain.RefreshRequest) (domain.TokenData, error) {
		calls++
		if refresh == nil {
			t.Fatal("unexpected refresh call")
		}
		return refresh(ctx, req)
	})

	manager := NewTokenLifecycleManager(TokenLifecycleManagerDependencies{
		RecordStore: store,
		Refresher:   countingRefresh,
		Config:      config,
	})

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return now }
	manager.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	return &managerFixture{
		manager:      manager,
		store:        store,
		refreshCalls: &calls,
		now:          now,
	}
}

func (f *managerFixture) putRecord(t *testing.T, record domain.CredentialRecord) {
	t.Helper()

	_, err := f.store.PutRecord(context.Background(), record)
	require.NoError(t, err)
}

func (f *managerFixture) getRecord(t *testing.T, vendorUserID string) domain.CredentialRecord {
	t.Helper()

	record, _, err := f.store.GetRecord(context.Background(), vendorUserID)
	require.NoError(t, err)

	return record
}

func TestEnsureAccessToken_FastPath(t *testing.T) {
	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), nil)

	cached := domain.TokenData{
		AccessToken:  "cached-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    fixture.now.Add(10 * time.Minute),
	}
	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID: "user-1",
		Status:       domain.CredentialStatusAuthenticated,
		Token:        cached,
	})

	token, err := fixture.manager.EnsureAccessToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, cached, token)
	assert.Equal(t, 0, *fixture.refreshCalls)
}

func TestEnsureAccessToken_NoExpiryNeverRefreshes(t *testing.T) {
	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), nil)

	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID: "user-1",
		Status:       domain.CredentialStatusAuthenticated,
		Token:        domain.TokenData{AccessToken: "forever-token"},
	})

	token, err := fixture.manager.EnsureAccessToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "forever-token", token.AccessToken)
}

func TestEnsureAccessToken_WithinSafetyBufferRefreshes(t *testing.T) {
	fresh := domain.TokenData{AccessToken: "fresh", RefreshToken: "next-refresh"}

	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), func(ctx context.Context, req domain.RefreshRequest) (domain.TokenData, error) {
		return fresh, nil
	})

	// Expiry is 10s away: inside the 30s safety buffer, treated as expired.
	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID: "user-1",
		Status:       domain.CredentialStatusAuthenticated,
		Token: domain.TokenData{
			AccessToken:  "stale",
			RefreshToken: "refresh-token",
			ExpiresAt:    fixture.now.Add(10 * time.Second),
		},
	})

	token, err := fixture.manager.EnsureAccessToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)
	assert.Equal(t, 1, *fixture.refreshCalls)
}

func TestEnsureAccessToken_RefreshSuccess(t *testing.T) {
	fresh := domain.TokenData{
		AccessToken:  "fresh-token",
		RefreshToken: "rotated-refresh",
		ExpiresAt:    time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC),
	}

	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), func(ctx context.Context, req domain.RefreshRequest) (domain.TokenData, error) {
		assert.Equal(t, "user-1", req.VendorUserID)
		assert.Equal(t, "old-refresh", req.RefreshToken)
		return fresh, nil
	})

	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID:      "user-1",
		Status:            domain.CredentialStatusAuthenticated,
		RefreshErrorCount: 2,
		LastRefreshError:  "previous failure",
		Token: domain.TokenData{
			AccessToken:  "expired-token",
			RefreshToken: "old-refresh",
			ExpiresAt:    fixture.now.Add(-time.Minute),
		},
	})

	token, err := fixture.manager.EnsureAccessToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, fresh, token)
	assert.Equal(t, 1, *fixture.refreshCalls)

	record := fixture.getRecord(t, "user-1")
	assert.Equal(t, domain.CredentialStatusAuthenticated, record.Status)
	assert.Equal(t, 0, record.RefreshErrorCount)
	assert.Empty(t, record.LastRefreshError)
	assert.Equal(t, fresh, record.Token)
	assert.Equal(t, fixture.now, record.LastRefreshStarted)
}

func TestEnsureAccessToken_RefreshFailureBelowLimit(t *testing.T) {
	cause := errors.New("token endpoint returned status 500")

	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), func(ctx context.Context, req domain.RefreshRequest) (domain.TokenData, error) {
		return domain.TokenData{}, cause
	})

	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID: "user-1",
		Status:       domain.CredentialStatusRefreshError,
		Token: domain.TokenData{
			AccessToken:  "expired-token",
			RefreshToken: "refresh-token",
			ExpiresAt:    fixture.now.Add(-time.Minute),
		},
		RefreshErrorCount: 1,
	})

	_, err := fixture.manager.EnsureAccessToken(context.Background(), "user-1")

	var attemptErr *RefreshAttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, 2, attemptErr.Attempt)
	assert.Equal(t, 5, attemptErr.Limit)
	assert.ErrorIs(t, err, cause)

	record := fixture.getRecord(t, "user-1")
	assert.Equal(t, domain.CredentialStatusRefreshError, record.Status)
	assert.Equal(t, 2, record.RefreshErrorCount)
	assert.Equal(t, cause.Error(), record.LastRefreshError)
}

func TestEnsureAccessToken_RefreshFailurePastLimit(t *testing.T) {
	config := DefaultTokenLifecycleConfig()
	config.RefreshErrorLimit = 2

	fixture := newManagerFixture(t, config, func(ctx context.Context, req domain.RefreshRequest) (domain.TokenData, error) {
		return domain.TokenData{}, errors.New("still broken")
	})

	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID:      "user-1",
		Status:            domain.CredentialStatusRefreshError,
		RefreshErrorCount: 2,
		Token: domain.TokenData{
			AccessToken:  "expired-token",
			RefreshToken: "refresh-token",
			ExpiresAt:    fixture.now.Add(-time.Minute),
		},
	})

	_, err := fixture.manager.EnsureAccessToken(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrReauthorizationRequired)
	assert.Equal(t, 1, *fixture.refreshCalls)

	record := fixture.getRecord(t, "user-1")
	assert.Equal(t, domain.CredentialStatusRefreshFailed, record.Status)
	assert.Equal(t, 3, record.RefreshErrorCount)

	// The failed status is sticky: no further refresh attempts happen.
	_, err = fixture.manager.EnsureAccessToken(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrReauthorizationRequired)
	assert.Equal(t, 1, *fixture.refreshCalls)
}

func TestEnsureAccessToken_MissingRefreshToken(t *testing.T) {
	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), nil)

	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID: "user-1",
		Status:       domain.CredentialStatusAuthenticated,
		Token: domain.TokenData{
			AccessToken: "expired-token",
			ExpiresAt:   fixture.now.Add(-time.Minute),
		},
	})

	_, err := fixture.manager.EnsureAccessToken(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrRefreshTokenMissing)

	// The record is untouched: no refreshing status was persisted.
	record := fixture.getRecord(t, "user-1")
	assert.Equal(t, domain.CredentialStatusAuthenticated, record.Status)
}

func TestEnsureAccessToken_RecordNotFound(t *testing.T) {
	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), nil)

	_, err := fixture.manager.EnsureAccessToken(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestEnsureAccessToken_WaitsForConcurrentRefresh(t *testing.T) {
	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), nil)

	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID:       "user-1",
		Status:             domain.CredentialStatusRefreshing,
		LastRefreshStarted: fixture.now.Add(-time.Second),
		Token:              domain.TokenData{RefreshToken: "refresh-token"},
	})

	var delays []time.Duration
	fixture.manager.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 2 {
			// The concurrent refresher finishes while we wait.
			fixture.putRecord(t, domain.CredentialRecord{
				VendorUserID: "user-1",
				Status:       domain.CredentialStatusAuthenticated,
				Token: domain.TokenData{
					AccessToken: "refreshed-elsewhere",
					ExpiresAt:   fixture.now.Add(time.Hour),
				},
			})
		}
		return nil
	}

	token, err := fixture.manager.EnsureAccessToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "refreshed-elsewhere", token.AccessToken)
	assert.Equal(t, 0, *fixture.refreshCalls)

	// Poll delays grow by the configured multiplier.
	require.Len(t, delays, 2)
	assert.Equal(t, 100*time.Millisecond, delays[0])
	assert.Equal(t, 120*time.Millisecond, delays[1])
}

func TestEnsureAccessToken_ConcurrentRefreshFails(t *testing.T) {
	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), nil)

	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID:       "user-1",
		Status:             domain.CredentialStatusRefreshing,
		LastRefreshStarted: fixture.now.Add(-time.Second),
		Token:              domain.TokenData{RefreshToken: "refresh-token"},
	})

	fixture.manager.sleep = func(ctx context.Context, d time.Duration) error {
		fixture.putRecord(t, domain.CredentialRecord{
			VendorUserID:     "user-1",
			Status:           domain.CredentialStatusRefreshError,
			LastRefreshError: "endpoint down",
			Token:            domain.TokenData{RefreshToken: "refresh-token"},
		})
		return nil
	}

	_, err := fixture.manager.EnsureAccessToken(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint down")
	assert.Equal(t, 0, *fixture.refreshCalls)
}

func TestEnsureAccessToken_ConcurrentRefreshExhaustsPolling(t *testing.T) {
	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), nil)

	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID:       "user-1",
		Status:             domain.CredentialStatusRefreshing,
		LastRefreshStarted: fixture.now.Add(-time.Second),
		Token:              domain.TokenData{RefreshToken: "refresh-token"},
	})

	sleeps := 0
	fixture.manager.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}

	_, err := fixture.manager.EnsureAccessToken(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrRefreshWaitExhausted)
	assert.Equal(t, DefaultTokenLifecycleConfig().PollAttempts, sleeps)
}

func TestEnsureAccessToken_StaleLockTakeover(t *testing.T) {
	fresh := domain.TokenData{AccessToken: "taken-over", RefreshToken: "refresh-token"}

	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), func(ctx context.Context, req domain.RefreshRequest) (domain.TokenData, error) {
		return fresh, nil
	})

	// The previous refresher stamped the lock well past the timeout; it is
	// presumed crashed and the record is taken over.
	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID:       "user-1",
		Status:             domain.CredentialStatusRefreshing,
		LastRefreshStarted: fixture.now.Add(-5 * time.Minute),
		Token:              domain.TokenData{RefreshToken: "refresh-token"},
	})

	token, err := fixture.manager.EnsureAccessToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "taken-over", token.AccessToken)
	assert.Equal(t, 1, *fixture.refreshCalls)
}

func TestEnsureLinkedAccessToken(t *testing.T) {
	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), nil)

	fixture.putRecord(t, domain.CredentialRecord{
		VendorUserID: "primary-user",
		Status:       domain.CredentialStatusAuthenticated,
		Token:        domain.TokenData{AccessToken: "primary-token"},
	})

	err := fixture.store.PutIdentityLink(context.Background(), domain.IdentityLink{
		PeerVendorID: "secondary-identity",
		VendorUserID: "primary-user",
	})
	require.NoError(t, err)

	token, err := fixture.manager.EnsureLinkedAccessToken(context.Background(), "secondary-identity")
	require.NoError(t, err)
	assert.Equal(t, "primary-token", token.AccessToken)

	_, err = fixture.manager.EnsureLinkedAccessToken(context.Background(), "unknown-identity")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

type stubPeerFetcher struct {
	token domain.TokenData
	err   error
	calls int
}

func (s *stubPeerFetcher) FetchPeerToken(ctx context.Context, peerVendorID string) (domain.TokenData, error) {
	s.calls++
	return s.token, s.err
}

func TestEnsurePeerAccessToken(t *testing.T) {
	fixture := newManagerFixture(t, DefaultTokenLifecycleConfig(), nil)

	fetcher := &stubPeerFetcher{token: domain.TokenData{AccessToken: "peer-token"}}
	fixture.manager.peerFetcher = fetcher

	token, err := fixture.manager.EnsurePeerAccessToken(context.Background(), "peer-vendor")
	require.NoError(t, err)
	assert.Equal(t, "peer-token", token.AccessToken)
	assert.Equal(t, 1, fetcher.calls)

	// Peer failures come back verbatim, without retry.
	fetcher.err = errors.New("peer unreachable")
	_, err = fixture.manager.EnsurePeerAccessToken(context.Background(), "peer-vendor")
	assert.EqualError(t, err, "peer unreachable")
	assert.Equal(t, 2, fetcher.calls)
}
