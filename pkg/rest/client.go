// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package rest is a client for dtnd's RESTful application agent.
//
// Unlike the UNIX agent, the REST agent has no push channel: received Bundles
// are collected by the daemon and fetched by polling with the UUID returned
// by Register.
package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
)

// DefaultTimeout per HTTP request.
const DefaultTimeout = 60 * time.Second

// Error is returned for a non-200 status or an error reported by the agent.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("REST agent: %d: %s", e.StatusCode, e.Message)
}

// Registration identifies a client at the REST agent.
type Registration struct {
	EndpointID bpv7.EndpointID `json:"endpoint_id"`
	UUID       string          `json:"uuid"`
}

// Client of a REST agent, e.g., "http://localhost:8080/rest".
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     log.FieldLogger
}

// NewClient for the REST agent at baseURL. A nil logger selects logrus'
// standard logger.
func NewClient(baseURL string, timeout time.Duration, logger log.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithField("rest", baseURL),
	}
}

// post a JSON request and decode the JSON response into resp.
func (c *Client) post(ctx context.Context, path string, req, resp interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return &Error{StatusCode: httpResp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return fmt.Errorf("decoding %s response failed: %w", path, err)
	}
	return nil
}

// Register an EndpointID. The returned UUID authenticates all further requests.
func (c *Client) Register(ctx context.Context, eid bpv7.EndpointID) (reg Registration, err error) {
	var resp RegisterResponse
	if err = c.post(ctx, "/register", RegisterRequest{EndpointId: eid.String()}, &resp); err != nil {
		return
	} else if resp.Error != "" {
		err = &Error{StatusCode: http.StatusOK, Message: resp.Error}
		return
	}

	reg = Registration{EndpointID: eid, UUID: resp.UUID}
	c.logger.WithField("endpoint", eid).Info("Registered at REST agent")
	return
}

// Unregister a UUID.
func (c *Client) Unregister(ctx context.Context, uuid string) error {
	var resp UnregisterResponse
	if err := c.post(ctx, "/unregister", UnregisterRequest{UUID: uuid}, &resp); err != nil {
		return err
	} else if resp.Error != "" {
		return &Error{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return nil
}

// Fetch all pending Bundles for a UUID.
func (c *Client) Fetch(ctx context.Context, uuid string) ([]Bundle, error) {
	var resp FetchResponse
	if err := c.post(ctx, "/fetch", FetchRequest{UUID: uuid}, &resp); err != nil {
		return nil, err
	} else if resp.Error != "" {
		return nil, &Error{StatusCode: http.StatusOK, Message: resp.Error}
	}

	c.logger.WithField("bundles", len(resp.Bundles)).Debug("Fetched bundles from REST agent")
	return resp.Bundles, nil
}

// Send a Bundle from the registered EndpointID. The payload is transmitted
// base64 encoded.
func (c *Client) Send(ctx context.Context, reg Registration, destination bpv7.EndpointID, payload []byte, lifetime time.Duration) error {
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}

	req := BuildRequest{
		UUID: reg.UUID,
		Args: map[string]interface{}{
			"source":                 reg.EndpointID.String(),
			"destination":            destination.String(),
			"creation_timestamp_now": 1,
			"lifetime":               lifetime.String(),
			"payload_block":          base64.StdEncoding.EncodeToString(payload),
		},
	}

	var resp BuildResponse
	if err := c.post(ctx, "/build", req, &resp); err != nil {
		return err
	} else if resp.Error != "" {
		return &Error{StatusCode: http.StatusOK, Message: resp.Error}
	}

	c.logger.WithFields(log.Fields{
		"source":      reg.EndpointID,
		"destination": destination,
		"size":        len(payload),
	}).Info("Sent bundle via REST agent")
	return nil
}
