// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"bytes"
	"strings"
	"sync"
)

const (
	defaultLogBufferSize = 1000
	maxLineLen           = 1024 * 1024
)

// LogBuffer is a thread-safe ring buffer of backend output lines.
type LogBuffer struct {
	mu       sync.RWMutex
	lines    []string
	capacity int
	size     int
	head     int // next write position
}

// NewLogBuffer creates a new log buffer with the given capacity.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = defaultLogBufferSize
	}
	return &LogBuffer{
		lines:    make([]string, capacity),
		capacity: capacity,
	}
}

// Write adds a single line to the buffer.
func (b *LogBuffer) Write(line string) {
	if len(line) > maxLineLen {
		line = line[:maxLineLen] + "... [truncated]"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines[b.head] = line
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Lines returns the last n lines from the buffer, oldest first.
func (b *LogBuffer) Lines(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.size == 0 {
		return []string{}
	}
	if n > b.size {
		n = b.size
	}

	result := make([]string, n)
	// head points to next write position, so most recent is at head-1
	start := (b.head - n + b.capacity) % b.capacity
	for i := 0; i < n; i++ {
		result[i] = b.lines[(start+i)%b.capacity]
	}
	return result
}

// lineWriter splits a byte stream into lines for a LogBuffer. A partial
// trailing line is held until the next newline or Flush.
type lineWriter struct {
	mu  sync.Mutex
	buf *LogBuffer
	acc []byte
}

func newLineWriter(buf *LogBuffer) *lineWriter {
	return &lineWriter{buf: buf}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.acc = append(w.acc, p...)
	for {
		i := bytes.IndexByte(w.acc, '\n')
		if i < 0 {
			break
		}
		w.buf.Write(strings.TrimSuffix(string(w.acc[:i]), "\r"))
		w.acc = w.acc[i+1:]
	}
	if len(w.acc) > maxLineLen {
		w.buf.Write(string(w.acc))
		w.acc = nil
	}
	return len(p), nil
}

// Flush writes any buffered partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.acc) > 0 {
		w.buf.Write(strings.TrimSuffix(string(w.acc), "\r"))
		w.acc = nil
	}
}
