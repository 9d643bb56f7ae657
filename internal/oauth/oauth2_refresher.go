package oauth

import (
	"context"
	"fmt"

	"github.com/connectry/connectry/pkg/domain"

	"golang.org/x/oauth2"
)

// OAuth2Refresher adapts golang.org/x/oauth2 for vendors with standard token
// endpoints. Kept alongside EndpointRefresher for integrations that already
// hand out oauth2 endpoint definitions.
type OAuth2Refresher struct {
	config *oauth2.Config
}

func NewOAuth2Refresher(clientID, clientSecret, tokenURL string) *OAuth2Refresher {
	return &OAuth2Refresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: tokenURL,
			},
		},
	}
}

func (r *OAuth2Refresher) RefreshToken(ctx context.Context, req domain.RefreshRequest) (domain.TokenData, error) {
	source := r.config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: req.RefreshToken,
	})

	refreshed, err := source.Token()
	if err != nil {
		return domain.TokenData{}, fmt.Errorf("oauth2 token refresh failed: %w", err)
	}

	token := domain.TokenData{
		AccessToken:  refreshed.AccessToken,
		TokenType:    refreshed.TokenType,
		ExpiresAt:    refreshed.Expiry,
		RefreshToken: refreshed.RefreshToken,
	}

	if scope, ok := refreshed.Extra("scope").(string); ok {
		token.Scope = scope
	}

	if token.RefreshToken == "" {
		token.RefreshToken = req.RefreshToken
	}

	return token, nil
}
