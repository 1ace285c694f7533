// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wingedpig/easyrag/internal/config"
	"github.com/wingedpig/easyrag/pkg/client"
)

// Environment variables read by the tool.
const (
	envAPI   = "EASYRAG_API"
	envToken = "EASYRAG_TOKEN"
)

const defaultAPI = "http://127.0.0.1:8765"

// cli holds the global flags shared by every subcommand.
type cli struct {
	out     io.Writer
	apiURL  string
	token   string
	dataDir string
	output  string
	timeout time.Duration
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "easyrag-ctl",
		Short: "Control a running EasyRAG host",
		Long: `easyrag-ctl talks to the EasyRAG host's command channel.

The host writes its bearer token to <data_dir>/bridge.token on first start.
The token is read from --token, then $EASYRAG_TOKEN, then that file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch c.output {
			case "table", "json", "yaml":
				return nil
			}
			return fmt.Errorf("invalid --output %q, must be one of: table, json, yaml", c.output)
		},
	}
	root.SetOut(out)

	api := os.Getenv(envAPI)
	if api == "" {
		api = defaultAPI
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.apiURL, "url", api, "Host command channel URL ($"+envAPI+")")
	flags.StringVar(&c.token, "token", "", "Bearer token ($"+envToken+")")
	flags.StringVar(&c.dataDir, "data-dir", "", "Host data directory holding bridge.token")
	flags.StringVarP(&c.output, "output", "o", "table", "Output format: table, json or yaml")
	flags.DurationVar(&c.timeout, "timeout", 30*time.Second, "Request timeout")

	root.AddCommand(
		newConfigCmd(c),
		newSelectDirCmd(c),
		newBackendCmd(c),
		newEventsCmd(c),
		newCapabilitiesCmd(c),
		newUICmd(c),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(c.out, "easyrag-ctl %s\n", version)
			},
		},
	)
	return root
}

// client builds an API client, resolving the token on first use.
func (c *cli) client() (*client.Client, error) {
	token, err := c.resolveToken()
	if err != nil {
		return nil, err
	}
	return client.New(c.apiURL, client.WithToken(token), client.WithTimeout(c.timeout)), nil
}

func (c *cli) resolveToken() (string, error) {
	if c.token != "" {
		return c.token, nil
	}
	if env := os.Getenv(envToken); env != "" {
		return env, nil
	}

	dir := c.dataDir
	if dir == "" {
		dir = os.Getenv(config.EnvDataDir)
	}
	if dir == "" {
		dir = config.DefaultDataDir("EasyRAG")
	}
	path := filepath.Join(dir, "bridge.token")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("no token: %s does not exist (is the host running?)", path)
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// render writes v as JSON or YAML when requested, otherwise calls table.
func (c *cli) render(v interface{}, table func(w io.Writer)) error {
	switch c.output {
	case "json":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Round-trip through JSON so YAML keys match the API's field names.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(c.out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}
	table(c.out)
	return nil
}
