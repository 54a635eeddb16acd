// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/sigil-dev/balcao/internal/secrets"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/spf13/viper"
)

// isolate gives a test its own HOME and a fresh global Viper so config
// discovery and bootstrap never touch the developer's files.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{"PORT", "TINY_API_TOKEN", "GEMINI_API_KEY"} {
		t.Setenv(name, "")
	}
	viper.Reset()
	t.Cleanup(viper.Reset)
}

// runCmd executes the root command with args and returns stdout. Stdin is
// never a terminal.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	stdout := new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(new(bytes.Buffer))
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

// serveGateway starts a fake gateway and points the CLI HTTP clients at it.
// It returns the host:port to pass as --address.
func serveGateway(t *testing.T, h http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	oldDefault, oldChat := defaultHTTPClient, chatHTTPClient
	defaultHTTPClient, chatHTTPClient = srv.Client(), srv.Client()
	t.Cleanup(func() { defaultHTTPClient, chatHTTPClient = oldDefault, oldChat })

	return strings.TrimPrefix(srv.URL, "http://")
}

// closedAddress refuses connections.
const closedAddress = "127.0.0.1:1"

// mockSecretStore is an in-memory secrets.Store keyed by name; the service
// is recorded but not used for lookup.
type mockSecretStore struct {
	data     map[string]string
	services []string
	failOn   string
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Store(service, key, value string) error {
	if key == m.failOn {
		return balcaoerr.New(balcaoerr.CodeSecretStoreFailure, "keyring locked")
	}
	m.services = append(m.services, service)
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", balcaoerr.New(balcaoerr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return balcaoerr.New(balcaoerr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func (m *mockSecretStore) List(_ string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

func useSecretStore(t *testing.T, store secrets.Store) {
	t.Helper()
	orig := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = orig })
}
