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

	"github.com/spf13/cobra"

	"github.com/sigil-dev/cardhost/internal/server"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// defaultAddress matches the default networking.listen.
const defaultAddress = "127.0.0.1:18790"

// defaultHTTPClient is the package-level HTTP client used by gateway commands.
// Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 10 * time.Second,
}

// gatewayClient provides HTTP access to a running cardhost gateway.
type gatewayClient struct {
	baseURL string
	http    *http.Client
	caller  string
}

// newGatewayClient creates a client targeting the given host:port address.
func newGatewayClient(addr string) *gatewayClient {
	return &gatewayClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

func addAddressFlag(cmd *cobra.Command) {
	cmd.Flags().String("address", defaultAddress, "gateway address (host:port)")
}

func clientFor(cmd *cobra.Command) *gatewayClient {
	addr, _ := cmd.Flags().GetString("address")
	return newGatewayClient(addr)
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *gatewayClient) getJSON(path string, dest any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return cherr.Errorf(cherr.CodeCLIRequestFailure, "building request: %w", err)
	}
	return c.do(req, dest)
}

// postJSON sends body as JSON and decodes the JSON response into dest.
func (c *gatewayClient) postJSON(path string, body, dest any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return cherr.Errorf(cherr.CodeCLIRequestFailure, "encoding request: %w", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return cherr.Errorf(cherr.CodeCLIRequestFailure, "building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, dest)
}

func (c *gatewayClient) do(req *http.Request, dest any) error {
	if c.caller != "" {
		req.Header.Set(server.CallerHeader, c.caller)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return cherr.New(cherr.CodeCLIGatewayNotRunning, "gateway is not running (connection refused)")
		}
		return cherr.Errorf(cherr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return cherr.Errorf(cherr.CodeCLIRequestFailure, "gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return cherr.Errorf(cherr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
