// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package dialog shows native dialogs on behalf of the UI.
package dialog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ncruces/zenity"
)

// Picker asks the user to choose a directory.
type Picker interface {
	// SelectDirectory returns the chosen absolute path, or "" and
	// ok == false when the user cancelled.
	SelectDirectory(ctx context.Context) (path string, ok bool, err error)
}

// NativePicker uses the platform's own directory chooser.
type NativePicker struct {
	Title string
	// Start is the directory the dialog opens in. Empty uses the platform default.
	Start string
}

// NewNativePicker creates a picker with the given dialog title.
func NewNativePicker(title string) *NativePicker {
	return &NativePicker{Title: title}
}

// SelectDirectory blocks until the user picks a directory, cancels, or ctx
// is done.
func (p *NativePicker) SelectDirectory(ctx context.Context) (string, bool, error) {
	opts := []zenity.Option{
		zenity.Directory(),
		zenity.Context(ctx),
	}
	if p.Title != "" {
		opts = append(opts, zenity.Title(p.Title))
	}
	if p.Start != "" {
		opts = append(opts, zenity.Filename(p.Start))
	}

	path, err := zenity.SelectFile(opts...)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("directory dialog: %w", err)
	}
	if path == "" {
		return "", false, nil
	}
	return path, true, nil
}

// StaticPicker returns a fixed answer. Used for headless hosts and tests.
type StaticPicker struct {
	Path string // empty means cancelled
	Err  error
}

func (p StaticPicker) SelectDirectory(ctx context.Context) (string, bool, error) {
	if p.Err != nil {
		return "", false, p.Err
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	return p.Path, p.Path != "", nil
}
