// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogBuffer_WriteAndLines(t *testing.T) {
	buf := NewLogBuffer(5)
	buf.Write("line 1")
	buf.Write("line 2")
	buf.Write("line 3")

	assert.Equal(t, []string{"line 2", "line 3"}, buf.Lines(2))
	assert.Equal(t, []string{"line 1", "line 2", "line 3"}, buf.Lines(10))
}

func TestLogBuffer_RingWrap(t *testing.T) {
	buf := NewLogBuffer(3)
	for i := 1; i <= 5; i++ {
		buf.Write(fmt.Sprintf("line %d", i))
	}

	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, buf.Lines(3))
	assert.Len(t, buf.Lines(10), 3)
}

func TestLogBuffer_Empty(t *testing.T) {
	buf := NewLogBuffer(0)
	assert.Empty(t, buf.Lines(10))

	buf.Write("x")
	assert.Equal(t, []string{"x"}, buf.Lines(1))
	assert.Empty(t, buf.Lines(0))
	assert.Empty(t, buf.Lines(-1))
}

func TestLineWriter_SplitsLines(t *testing.T) {
	buf := NewLogBuffer(10)
	w := newLineWriter(buf)

	w.Write([]byte("first\nsec"))
	w.Write([]byte("ond\r\nthi"))
	assert.Equal(t, []string{"first", "second"}, buf.Lines(10))

	w.Flush()
	assert.Equal(t, []string{"first", "second", "thi"}, buf.Lines(10))
}
