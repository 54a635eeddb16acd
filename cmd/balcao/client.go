// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// defaultHTTPClient is used by every gateway command. Tests point it at
// httptest servers.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// chatHTTPClient waits for a full dialogue turn, which may include an LLM
// call and a catalog search.
var chatHTTPClient = &http.Client{
	Timeout: 2 * time.Minute,
}

// gatewayClient talks to a running balcao gateway.
type gatewayClient struct {
	baseURL string
	http    *http.Client
}

func newGatewayClient(addr string) *gatewayClient {
	return &gatewayClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET and decodes the JSON response into dest.
func (c *gatewayClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return requestError(err)
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeResponse(resp, dest)
}

// postJSON sends body as JSON and decodes the response into dest.
func (c *gatewayClient) postJSON(path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return balcaoerr.Errorf(balcaoerr.CodeCLIInputInvalid, "encoding request: %v", err)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return requestError(err)
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeResponse(resp, dest)
}

func requestError(err error) error {
	if isDialError(err) {
		return balcaoerr.New(balcaoerr.CodeCLIGatewayNotRunning, "gateway is not running (connection refused)")
	}
	return balcaoerr.Errorf(balcaoerr.CodeCLIRequestFailure, "request failed: %v", err)
}

func decodeResponse(resp *http.Response, dest any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return balcaoerr.Errorf(balcaoerr.CodeCLIRequestFailure,
			"gateway returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return balcaoerr.Errorf(balcaoerr.CodeCLIResponseInvalid, "invalid response: %v", err)
	}
	return nil
}

// isDialError reports whether err is a failure to connect.
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
