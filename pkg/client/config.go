// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ConfigClient reads and saves the host configuration.
type ConfigClient struct {
	c *Client
}

// Get returns the stored configuration.
func (s *ConfigClient) Get(ctx context.Context) (*Configuration, error) {
	data, err := s.c.get(ctx, "/api/v1/config")
	if err != nil {
		return nil, err
	}

	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Save replaces the stored configuration and restarts the backend.
//
// If the configuration was stored but the backend failed to launch, the
// stored configuration is returned together with an *APIError whose Code
// is [CodeLaunch].
func (s *ConfigClient) Save(ctx context.Context, cfg Configuration) (*Configuration, error) {
	return s.put(ctx, cfg)
}

// Update changes only the given fields, keyed by their JSON names. The host
// replaces the whole record on save, so Update reads the stored
// configuration and sends it back with fields applied. Fields not given keep
// their stored values. A save made by another client between the read and
// the write is overwritten.
func (s *ConfigClient) Update(ctx context.Context, fields map[string]interface{}) (*Configuration, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var merged map[string]interface{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	return s.put(ctx, merged)
}

func (s *ConfigClient) put(ctx context.Context, body interface{}) (*Configuration, error) {
	data, err := s.c.sendJSON(ctx, http.MethodPut, "/api/v1/config", body)
	var apiErr *APIError
	if err != nil && !(errors.As(err, &apiErr) && !isNull(data)) {
		return nil, err
	}

	var cfg Configuration
	if perr := json.Unmarshal(data, &cfg); perr != nil {
		return nil, fmt.Errorf("failed to parse config: %w", perr)
	}
	return &cfg, err
}
