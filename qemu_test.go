// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVMNameFromCommandLine_Found(t *testing.T) {
	cmdline := []string{"qemu-system-x86_64", "-name", "guest=fedora33,debug-threads=on"}
	name, ok := ExtractVMNameFromCommandLine(cmdline)
	require.True(t, ok)
	assert.Equal(t, "fedora33", name)
}

func TestExtractVMNameFromCommandLine_NoGuestToken(t *testing.T) {
	cmdline := []string{"qemu-system-x86_64", "-name", "somethingelse"}
	_, ok := ExtractVMNameFromCommandLine(cmdline)
	assert.False(t, ok)
}

func TestExtractVMNameFromCommandLine_NoTrailingComma(t *testing.T) {
	cmdline := []string{"guest=justaname"}
	name, ok := ExtractVMNameFromCommandLine(cmdline)
	require.True(t, ok)
	assert.Equal(t, "justaname", name)
}
