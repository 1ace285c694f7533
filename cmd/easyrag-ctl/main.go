// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// easyrag-ctl is a command-line tool for controlling a running EasyRAG host.
package main

import (
	"fmt"
	"os"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
