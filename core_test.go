// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeCPUInfo = `processor	: 0
vendor_id	: GenuineIntel
physical id	: 0
core id		: 0

processor	: 1
vendor_id	: GenuineIntel
physical id	: 0
core id		: 1

processor	: 2
vendor_id	: GenuineIntel
physical id	: 1
core id		: 0
`

func writeFakeCPUInfo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cpuinfo")
	require.NoError(t, os.WriteFile(path, []byte(fakeCPUInfo), 0o644))
	return path
}

func TestGenerateCPUCores(t *testing.T) {
	path := writeFakeCPUInfo(t)
	cores, err := generateCPUCores(path)
	require.NoError(t, err)
	require.Len(t, cores, 3)

	assert.Equal(t, 0, cores[0].ID)
	pkg, ok := cores[0].PhysicalPackageID()
	require.True(t, ok)
	assert.Equal(t, 0, pkg)

	pkg, ok = cores[2].PhysicalPackageID()
	require.True(t, ok)
	assert.Equal(t, 1, pkg)
}

func TestCPUCore_PhysicalPackageID_Missing(t *testing.T) {
	c := NewCPUCore(0, map[string]string{})
	_, ok := c.PhysicalPackageID()
	assert.False(t, ok)
}
