// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps API tokens out of the config file. Config values of
// the form keyring://service/key are replaced with the stored secret at load
// time.
package secrets

// Service is the keyring service balcao stores its own secrets under.
const Service = "balcao"

// Well-known key names written by `balcao init`.
const (
	KeyTinyToken       = "tiny-token"
	KeyWppconnectToken = "wppconnect-token"
	KeyWebhookSecret   = "webhook-secret"
)

// ProviderKey is the key name for an LLM provider's API key.
func ProviderKey(provider string) string {
	return provider + "-api-key"
}

// Store provides secret storage.
type Store interface {
	Store(service, key, value string) error
	// Retrieve returns a CodeSecretNotFound error for unknown keys.
	Retrieve(service, key string) (string, error)
	// Delete returns a CodeSecretNotFound error for unknown keys.
	Delete(service, key string) error
	List(service string) ([]string, error)
}
