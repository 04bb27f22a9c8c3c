package models

// VaultIdentity is the resolved identity of an authenticated caller.
// It is attached to the request context by the auth middleware before any
// vault operation runs.
type VaultIdentity struct {
	// VaultID is the vault namespace the credential owns.
	VaultID string `json:"vaultId"`

	// Name is the caller-supplied label recorded at provisioning.
	Name string `json:"name"`

	// Credential is the bearer secret the request was authenticated with.
	// It is required to derive the vault encryption key and is never
	// serialized.
	Credential string `json:"-"`
}

// CredentialRecord is the persisted value stored under the hashed credential.
type CredentialRecord struct {
	VaultID string `json:"vaultId"`
	Name    string `json:"name"`
}

// Valid reports whether all required fields are present.
func (c CredentialRecord) Valid() bool {
	return c.VaultID != "" && c.Name != ""
}

// ProvisionRequest is the body accepted by the provisioning endpoint.
// APIKey is a pointer so that an explicitly supplied empty value can be told
// apart from an absent one.
type ProvisionRequest struct {
	Name   string  `json:"name,omitempty"`
	APIKey *string `json:"apiKey,omitempty"`
}

// ProvisionResult is returned once to the caller; the credential cannot be
// retrieved again afterwards.
type ProvisionResult struct {
	VaultID string `json:"vaultId"`
	APIKey  string `json:"apiKey"`
}
