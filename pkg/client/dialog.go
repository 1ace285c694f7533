// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// DialogClient opens native dialogs on the host.
type DialogClient struct {
	c *Client
}

// SelectDirectory asks the user to pick a directory. It returns nil when the
// dialog was cancelled. The call blocks until the user answers.
func (d *DialogClient) SelectDirectory(ctx context.Context) (*string, error) {
	data, err := d.c.post(ctx, "/api/v1/dialog/select-directory")
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return nil, nil
	}

	var path string
	if err := json.Unmarshal(data, &path); err != nil {
		return nil, fmt.Errorf("failed to parse path: %w", err)
	}
	return &path, nil
}
