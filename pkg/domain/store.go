package domain

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned by stores when no record exists for a key.
var ErrRecordNotFound = errors.New("credential record not found")

// Revision is an opaque tag identifying one version of a stored record.
// The store gives no compare-and-swap guarantee; writes are last-write-wins.
type Revision string

// CredentialRecordStore is the durable key/value storage for credential
// records and identity links, keyed by stable vendor user identifiers.
type CredentialRecordStore interface {
	GetRecord(ctx context.Context, vendorUserID string) (CredentialRecord, Revision, error)
	PutRecord(ctx context.Context, record CredentialRecord) (Revision, error)
	DeleteRecord(ctx context.Context, vendorUserID string) error
	ListRecordIDs(ctx context.Context) ([]string, error)

	GetIdentityLink(ctx context.Context, peerVendorID string) (IdentityLink, error)
	PutIdentityLink(ctx context.Context, link IdentityLink) error
	DeleteIdentityLink(ctx context.Context, peerVendorID string) error
}
