package acmecrm

import (
	"context"
	"fmt"

	"github.com/connectry/connectry/pkg/clients/vendorapi"
	"github.com/connectry/connectry/pkg/domain"
	"github.com/connectry/connectry/pkg/retry"
)

const connectorName = "acme_crm"

// ConnectorDependencies wires the Acme CRM connector for one vendor user.
type ConnectorDependencies struct {
	TokenSource  domain.TokenSource
	VendorUserID string
	BaseURL      string
	Tracker      *retry.Tracker
}

// AcmeCRMConnector is a thin consumer of the resilient request engine: every
// call goes through the vendor API client with a token ensured by the
// lifecycle manager just before the request leaves.
type AcmeCRMConnector struct {
	client       *vendorapi.Client
	baseURL      string
	vendorUserID string
}

func NewAcmeCRMConnector(deps ConnectorDependencies) (*AcmeCRMConnector, *domain.Connector, error) {
	if deps.TokenSource == nil {
		return nil, nil, fmt.Errorf("token source is required")
	}

	tokenProvider := vendorapi.TokenProviderFunc(func(ctx context.Context) (string, error) {
		token, err := deps.TokenSource.EnsureAccessToken(ctx, deps.VendorUserID)
		if err != nil {
			return "", err
		}
		return token.AccessToken, nil
	})

	client := vendorapi.NewClient(deps.Tracker,
		vendorapi.WithBaseURL(deps.BaseURL),
		vendorapi.WithTokenProvider(tokenProvider),
		vendorapi.WithHeader("X-Acme-Client", "connectry"),
	)

	connector := &AcmeCRMConnector{
		client:       client,
		baseURL:      deps.BaseURL,
		vendorUserID: deps.VendorUserID,
	}

	composed := domain.NewConnector(connectorName,
		domain.WithConnectionDescriber(connector),
		domain.WithHealthChecker(connector),
		domain.WithPermissionTester(connector),
	)

	return connector, composed, nil
}

func (c *AcmeCRMConnector) DescribeConnection(ctx context.Context) (domain.ConnectionDescription, error) {
	return domain.ConnectionDescription{
		Name:    connectorName,
		BaseURL: c.baseURL,
		Scopes:  []string{"contacts:read", "contacts:write"},
	}, nil
}

func (c *AcmeCRMConnector) CheckHealth(ctx context.Context) error {
	return c.client.GetJSON(ctx, "/v1/ping", nil)
}

func (c *AcmeCRMConnector) TestPermissions(ctx context.Context, scopes []string) error {
	var result struct {
		GrantedScopes []string `json:"granted_scopes"`
	}

	if err := c.client.GetJSON(ctx, "/v1/permissions", &result); err != nil {
		return err
	}

	granted := make(map[string]bool, len(result.GrantedScopes))
	for _, scope := range result.GrantedScopes {
		granted[scope] = true
	}

	for _, scope := range scopes {
		if !granted[scope] {
			return fmt.Errorf("missing scope %q for vendor user %s", scope, c.vendorUserID)
		}
	}

	return nil
}

// Contact is one CRM contact record.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (c *AcmeCRMConnector) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	var contact Contact
	if err := c.client.GetJSON(ctx, "/v1/contacts/"+contactID, &contact); err != nil {
		return nil, fmt.Errorf("failed to get contact %s: %w", contactID, err)
	}

	return &contact, nil
}

func (c *AcmeCRMConnector) CreateContact(ctx context.Context, contact Contact) (*Contact, error) {
	var created Contact
	if err := c.client.PostJSON(ctx, "/v1/contacts", contact, &created); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	return &created, nil
}

func (c *AcmeCRMConnector) UpdateContact(ctx context.Context, contact Contact) (*Contact, error) {
	var updated Contact
	if err := c.client.PatchJSON(ctx, "/v1/contacts/"+contact.ID, contact, &updated); err != nil {
		return nil, fmt.Errorf("failed to update contact %s: %w", contact.ID, err)
	}

	return &updated, nil
}
