package domain

import (
	"context"
	"errors"
)

// ErrCapabilityNotSupported is returned when a connector was composed without
// the requested capability.
var ErrCapabilityNotSupported = errors.New("connector capability not supported")

// TokenSource hands out a valid access token for a vendor user, refreshing it
// when needed. Implemented by the token lifecycle manager.
type TokenSource interface {
	EnsureAccessToken(ctx context.Context, vendorUserID string) (TokenData, error)
	EnsurePeerAccessToken(ctx context.Context, peerVendorID string) (TokenData, error)
}

// ConnectionDescription summarizes how a connector reaches its vendor.
type ConnectionDescription struct {
	Name    string   `json:"name"`
	BaseURL string   `json:"base_url"`
	Scopes  []string `json:"scopes,omitempty"`
}

// Capability interfaces composed into a connector. Connectors declare only
// the capabilities they implement; composition happens by injection rather
// than by deriving connector subtypes at runtime.
type (
	ConnectionDescriber interface {
		DescribeConnection(ctx context.Context) (ConnectionDescription, error)
	}

	HealthChecker interface {
		CheckHealth(ctx context.Context) error
	}

	PermissionTester interface {
		TestPermissions(ctx context.Context, scopes []string) error
	}
)

// ConnectorDeps is the dependency set injected into every connector.
type ConnectorDeps struct {
	TokenSource TokenSource
	RecordStore CredentialRecordStore
}

// Connector composes the capability implementations for one vendor
// integration. Nil capabilities report ErrCapabilityNotSupported.
type Connector struct {
	Name string

	describer ConnectionDescriber
	health    HealthChecker
	perms     PermissionTester
}

type ConnectorOption func(*Connector)

func WithConnectionDescriber(d ConnectionDescriber) ConnectorOption {
	return func(c *Connector) {
		c.describer = d
	}
}

func WithHealthChecker(h HealthChecker) ConnectorOption {
	return func(c *Connector) {
		c.health = h
	}
}

func WithPermissionTester(p PermissionTester) ConnectorOption {
	return func(c *Connector) {
		c.perms = p
	}
}

func NewConnector(name string, options ...ConnectorOption) *Connector {
	connector := &Connector{
		Name: name,
	}

	for _, option := range options {
		option(connector)
	}

	return connector
}

func (c *Connector) DescribeConnection(ctx context.Context) (ConnectionDescription, error) {
	if c.describer == nil {
		return ConnectionDescription{}, ErrCapabilityNotSupported
	}

	return c.describer.DescribeConnection(ctx)
}

func (c *Connector) CheckHealth(ctx context.Context) error {
	if c.health == nil {
		return ErrCapabilityNotSupported
	}

	return c.health.CheckHealth(ctx)
}

func (c *Connector) TestPermissions(ctx context.Context, scopes []string) error {
	if c.perms == nil {
		return ErrCapabilityNotSupported
	}

	return c.perms.TestPermissions(ctx, scopes)
}
