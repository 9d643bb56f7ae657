package storage

// Store keys are structured strings so records for different concerns never
// collide in a shared keyspace.
const (
	credentialKeyPrefix   = "connectry:credentials:"
	identityLinkKeyPrefix = "connectry:identitylinks:"
)

func CredentialRecordKey(vendorUserID string) string {
	return credentialKeyPrefix + vendorUserID
}

func IdentityLinkKey(peerVendorID string) string {
	return identityLinkKeyPrefix + peerVendorID
}
