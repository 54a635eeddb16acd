// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"log/slog"
	"strings"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/spf13/viper"
)

const keyringScheme = "keyring://"

// URI builds a keyring://service/key reference.
func URI(service, key string) string {
	return keyringScheme + service + "/" + key
}

// IsKeyringURI reports whether value uses the keyring:// scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI splits keyring://service/key.
func ParseKeyringURI(uri string) (service, key string, err error) {
	rest, ok := strings.CutPrefix(uri, keyringScheme)
	if !ok {
		return "", "", balcaoerr.Errorf(balcaoerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}
	service, key, ok = strings.Cut(rest, "/")
	if !ok || service == "" || key == "" {
		return "", "", balcaoerr.Errorf(balcaoerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// ResolveKeyringURI returns the secret a keyring URI points at. Other values
// are returned unchanged.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}
	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}
	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", balcaoerr.Wrapf(err, balcaoerr.CodeSecretResolveFailure, "resolving %q", value)
	}
	return secret, nil
}

// ResolveViperSecrets replaces every keyring:// string in v with its secret
// and returns how many were resolved. Failures are logged and the URI is left
// in place, so the consumer reports a useful error when it uses the value.
func ResolveViperSecrets(v *viper.Viper, store Store) int {
	resolved := 0
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}
		secret, err := ResolveKeyringURI(store, val)
		if err != nil {
			slog.Warn("keyring reference not resolved",
				"config_key", key,
				"error", err,
			)
			continue
		}
		v.Set(key, secret)
		resolved++
	}
	return resolved
}
