package domain

import (
	"context"
)

// RefreshRequest carries everything a refresher needs to obtain a new token.
type RefreshRequest struct {
	VendorUserID string
	RefreshToken string
}

// TokenRefresher exchanges a refresh token for fresh token material. The
// returned token must carry a recomputed absolute expiry and must retain the
// prior refresh token when the endpoint does not issue a replacement.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, req RefreshRequest) (TokenData, error)
}

// TokenRefresherFunc adapts a plain function to the TokenRefresher interface.
type TokenRefresherFunc func(ctx context.Context, req RefreshRequest) (TokenData, error)

func (f TokenRefresherFunc) RefreshToken(ctx context.Context, req RefreshRequest) (TokenData, error) {
	return f(ctx, req)
}
