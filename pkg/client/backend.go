// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// BackendClient inspects and restarts the backend process.
type BackendClient struct {
	c *Client
}

// Status returns the backend's current status.
func (b *BackendClient) Status(ctx context.Context) (*BackendStatus, error) {
	data, err := b.c.get(ctx, "/api/v1/backend")
	if err != nil {
		return nil, err
	}
	return parseStatus(data)
}

// Restart restarts the backend with the stored configuration. On a launch
// failure the resulting status is returned along with the error.
func (b *BackendClient) Restart(ctx context.Context) (*BackendStatus, error) {
	data, err := b.c.post(ctx, "/api/v1/backend/restart")
	if err != nil {
		if isNull(data) {
			return nil, err
		}
		st, perr := parseStatus(data)
		if perr != nil {
			return nil, err
		}
		return st, err
	}
	return parseStatus(data)
}

// Logs returns the last n lines of backend output, oldest first. n <= 0
// lets the host choose.
func (b *BackendClient) Logs(ctx context.Context, n int) ([]string, error) {
	path := "/api/v1/backend/logs"
	if n > 0 {
		path += "?" + url.Values{"lines": {strconv.Itoa(n)}}.Encode()
	}
	data, err := b.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("failed to parse backend logs: %w", err)
	}
	return lines, nil
}

func parseStatus(data json.RawMessage) (*BackendStatus, error) {
	var st BackendStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse backend status: %w", err)
	}
	return &st, nil
}
