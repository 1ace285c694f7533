// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wingedpig/easyrag/pkg/client"
)

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the stored configuration",
	}

	var showSecrets bool
	get := &cobra.Command{
		Use:   "get",
		Short: "Show the stored configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.client()
			if err != nil {
				return err
			}
			cfg, err := api.Config.Get(cmd.Context())
			if err != nil {
				return err
			}
			if !showSecrets {
				redact(cfg)
			}
			return c.render(cfg, func(w io.Writer) { printConfig(w, cfg) })
		},
	}
	get.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print API keys in full")

	var (
		deepseekKey string
		qwenKey     string
		kbRoot      string
		port        string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change configuration fields and restart the backend",
		Long: `Change configuration fields and restart the backend.

Only the flags given are changed; the rest of the stored configuration is
read first and sent back unchanged. An empty --kb-root returns the knowledge
base to the application-managed location.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]interface{}{}
			flags := cmd.Flags()
			if flags.Changed("deepseek-key") {
				fields["deepseekApiKey"] = deepseekKey
			}
			if flags.Changed("qwen-key") {
				fields["qwenApiKey"] = qwenKey
			}
			if flags.Changed("kb-root") {
				fields["kbRootPath"] = kbRoot
			}
			if flags.Changed("port") {
				fields["apiPort"] = port
			}
			if len(fields) == 0 {
				return errors.New("nothing to set; see --help")
			}

			api, err := c.client()
			if err != nil {
				return err
			}
			cfg, err := api.Config.Update(cmd.Context(), fields)
			if cfg == nil {
				return describe(err)
			}
			redact(cfg)
			if rerr := c.render(cfg, func(w io.Writer) { printConfig(w, cfg) }); rerr != nil {
				return rerr
			}
			if err != nil {
				return fmt.Errorf("configuration saved, but %w", describe(err))
			}
			return nil
		},
	}
	set.Flags().StringVar(&deepseekKey, "deepseek-key", "", "DeepSeek API key")
	set.Flags().StringVar(&qwenKey, "qwen-key", "", "Qwen API key")
	set.Flags().StringVar(&kbRoot, "kb-root", "", "Knowledge base root directory")
	set.Flags().StringVar(&port, "port", "", "Backend port (empty for the default)")

	cmd.AddCommand(get, set)
	return cmd
}

func newSelectDirCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "select-dir",
		Short: "Open the host's directory picker and print the choice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.client()
			if err != nil {
				return err
			}
			path, err := api.Dialog.SelectDirectory(cmd.Context())
			if err != nil {
				return err
			}
			return c.render(path, func(w io.Writer) {
				if path == nil {
					fmt.Fprintln(w, "(cancelled)")
					return
				}
				fmt.Fprintln(w, *path)
			})
		},
	}
}

func newBackendCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Inspect or restart the backend",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the backend status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.client()
			if err != nil {
				return err
			}
			st, err := api.Backend.Status(cmd.Context())
			if err != nil {
				return err
			}
			return c.render(st, func(w io.Writer) { printStatus(w, st) })
		},
	}

	restart := &cobra.Command{
		Use:   "restart",
		Short: "Restart the backend with the stored configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.client()
			if err != nil {
				return err
			}
			st, err := api.Backend.Restart(cmd.Context())
			if st != nil {
				if rerr := c.render(st, func(w io.Writer) { printStatus(w, st) }); rerr != nil {
					return rerr
				}
			}
			return describe(err)
		},
	}

	var lines int
	logs := &cobra.Command{
		Use:   "logs",
		Short: "Show recent backend output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.client()
			if err != nil {
				return err
			}
			output, err := api.Backend.Logs(cmd.Context(), lines)
			if err != nil {
				return err
			}
			return c.render(output, func(w io.Writer) {
				for _, line := range output {
					fmt.Fprintln(w, line)
				}
			})
		},
	}
	logs.Flags().IntVarP(&lines, "lines", "n", 100, "Number of lines")

	cmd.AddCommand(status, restart, logs)
	return cmd
}

// openURL opens a URL in the user's browser. Tests replace it.
var openURL = openBrowser

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}
	return cmd.Start()
}

func newUICmd(c *cli) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the UI in a browser",
		Long: `Open the UI in a browser.

The URL carries a single-use launch ticket that the UI exchanges for the
bearer token. It expires after a few minutes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.client()
			if err != nil {
				return err
			}
			ticket, err := api.Session.NewTicket(cmd.Context())
			if err != nil {
				return err
			}
			if printOnly {
				fmt.Fprintln(c.out, ticket.URL)
				return nil
			}
			if err := openURL(ticket.URL); err != nil {
				return fmt.Errorf("open browser: %w (run with --print and open the URL yourself)", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the URL instead of opening it")
	return cmd
}

func newEventsCmd(c *cli) *cobra.Command {
	var (
		limit int
		types []string
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent host events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.client()
			if err != nil {
				return err
			}
			events, err := api.Events.List(cmd.Context(), &client.ListOptions{Limit: limit, Types: types})
			if err != nil {
				return err
			}
			return c.render(events, func(w io.Writer) { printEvents(w, events) })
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of events")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Event type or pattern, e.g. backend.*")
	return cmd
}

func newCapabilitiesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List the commands the host allows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.client()
			if err != nil {
				return err
			}
			commands, err := api.Capabilities(cmd.Context())
			if err != nil {
				return err
			}
			return c.render(commands, func(w io.Writer) {
				for _, name := range commands {
					fmt.Fprintln(w, name)
				}
			})
		},
	}
}

// describe expands validation errors with their rejected fields.
func describe(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != client.CodeValidation {
		return err
	}
	fields := apiErr.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + fields[name]
	}
	return fmt.Errorf("%s (%s)", apiErr.Message, strings.Join(parts, "; "))
}

func redact(cfg *client.Configuration) {
	cfg.DeepseekAPIKey = mask(cfg.DeepseekAPIKey)
	cfg.QwenAPIKey = mask(cfg.QwenAPIKey)
}

func mask(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printConfig(w io.Writer, cfg *client.Configuration) {
	kb := cfg.KBRootPath
	if kb == "" {
		kb = "(default)"
	}
	fmt.Fprintf(w, "%-16s %s\n", "deepseekApiKey", orDash(cfg.DeepseekAPIKey))
	fmt.Fprintf(w, "%-16s %s\n", "qwenApiKey", orDash(cfg.QwenAPIKey))
	fmt.Fprintf(w, "%-16s %s\n", "kbRootPath", kb)
	fmt.Fprintf(w, "%-16s %d\n", "apiPort", cfg.APIPort)
}

func printStatus(w io.Writer, st *client.BackendStatus) {
	pid := "-"
	if st.PID > 0 {
		pid = fmt.Sprint(st.PID)
	}
	port := "-"
	if st.Port > 0 {
		port = fmt.Sprint(st.Port)
	}
	fmt.Fprintf(w, "%-10s %-8s %-6s %-12s %s\n", "STATE", "PID", "PORT", "MODE", "ERROR")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%-10s %-8s %-6s %-12s %s\n", st.State, pid, port, orDash(st.Mode), orDash(st.Error))
}

func printEvents(w io.Writer, events []client.Event) {
	fmt.Fprintf(w, "%-20s %-26s %s\n", "TIME", "TYPE", "DETAILS")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, evt := range events {
		keys := make([]string, 0, len(evt.Payload))
		for k := range evt.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, evt.Payload[k])
		}
		fmt.Fprintf(w, "%-20s %-26s %s\n",
			evt.Timestamp.Local().Format("2006-01-02 15:04:05"),
			evt.Type,
			strings.Join(parts, " "),
		)
	}
}
