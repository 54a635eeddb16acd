// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider

import (
	"context"
	"io"
	"net/http"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// Name identifies a supported provider.
type Name string

const (
	NameGoogle    Name = "google"
	NameOpenAI    Name = "openai"
	NameAnthropic Name = "anthropic"
)

// Names lists the built-in providers in the order the init wizard offers them.
var Names = []Name{NameGoogle, NameOpenAI, NameAnthropic}

// DefaultModels maps each provider to the model used when none is configured.
var DefaultModels = map[Name]string{
	NameGoogle:    "gemini-2.0-flash",
	NameOpenAI:    "gpt-4o-mini",
	NameAnthropic: "claude-3-5-haiku-latest",
}

func modelsEndpoint(name Name, key string) (string, map[string]string, error) {
	switch name {
	case NameAnthropic:
		return "https://api.anthropic.com/v1/models", map[string]string{
			"x-api-key":         key,
			"anthropic-version": "2023-06-01",
		}, nil
	case NameOpenAI:
		return "https://api.openai.com/v1/models", map[string]string{
			"Authorization": "Bearer " + key,
		}, nil
	case NameGoogle:
		// The Generative Language API only accepts the key as a query parameter.
		return "https://generativelanguage.googleapis.com/v1/models?key=" + key, nil, nil
	default:
		return "", nil, balcaoerr.Errorf(balcaoerr.CodeProviderRequestInvalid, "unknown provider: %s", name)
	}
}

// ValidateKey checks key against the provider's list-models endpoint.
func ValidateKey(ctx context.Context, client *http.Client, name Name, key string) error {
	url, headers, err := modelsEndpoint(name, key)
	if err != nil {
		return err
	}
	return validateAt(ctx, client, name, url, headers)
}

// ValidateKeyWithURL is ValidateKey against an explicit endpoint.
func ValidateKeyWithURL(ctx context.Context, client *http.Client, name Name, key, url string) error {
	_, headers, err := modelsEndpoint(name, key)
	if err != nil {
		return err
	}
	return validateAt(ctx, client, name, url, headers)
}

func validateAt(ctx context.Context, client *http.Client, name Name, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return balcaoerr.Errorf(balcaoerr.CodeProviderRequestInvalid, "building validation request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return balcaoerr.Errorf(balcaoerr.CodeProviderUpstreamFailure, "validating %s key: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return balcaoerr.Errorf(balcaoerr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", name, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return balcaoerr.Errorf(balcaoerr.CodeProviderUpstreamFailure, "%s validation failed (HTTP %d)", name, resp.StatusCode)
	}
	return nil
}
