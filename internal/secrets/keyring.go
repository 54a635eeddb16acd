// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/zalando/go-keyring"
)

// go-keyring cannot enumerate keys, so each service keeps a JSON list of its
// key names under this extra entry.
const indexKey = "::index"

// KeyringStore implements Store on the OS keyring (Keychain, Secret Service
// or Windows Credential Manager).
type KeyringStore struct{}

var _ Store = (*KeyringStore)(nil)

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkRef(op, service, key string) error {
	switch {
	case service == "":
		return balcaoerr.Errorf(balcaoerr.CodeSecretInvalidInput, "secret %s: service must not be empty", op)
	case key == "":
		return balcaoerr.Errorf(balcaoerr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	case key == indexKey:
		return balcaoerr.Errorf(balcaoerr.CodeSecretInvalidInput, "secret %s: key %q is reserved", op, key)
	}
	return nil
}

func notFound(service, key string) error {
	return balcaoerr.Errorf(balcaoerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkRef("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return balcaoerr.Wrapf(err, balcaoerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	keys, err := s.List(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return s.saveIndex(service, append(keys, key))
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkRef("retrieve", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", notFound(service, key)
	case err != nil:
		return "", balcaoerr.Wrapf(err, balcaoerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return notFound(service, key)
	case err != nil:
		return balcaoerr.Wrapf(err, balcaoerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}

	keys, err := s.List(service)
	if err != nil {
		return err
	}
	return s.saveIndex(service, slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}

// List returns the key names stored under service, in insertion order.
func (s *KeyringStore) List(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexKey)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, balcaoerr.Wrapf(err, balcaoerr.CodeSecretListFailure, "loading key index for %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, balcaoerr.Wrapf(err, balcaoerr.CodeSecretListFailure, "decoding key index for %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) saveIndex(service string, keys []string) error {
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("removing empty key index failed", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return balcaoerr.Wrapf(err, balcaoerr.CodeSecretListFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return balcaoerr.Wrapf(err, balcaoerr.CodeSecretListFailure, "saving key index for %s", service)
	}
	return nil
}
