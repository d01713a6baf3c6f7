// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"testing"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestCPUStat_TotalActiveTicks(t *testing.T) {
	s := CPUStat{
		User:      10,
		Nice:      2,
		System:    5,
		Idle:      100,
		Iowait:    floatPtr(3),
		Guest:     floatPtr(1),
		GuestNice: floatPtr(1),
	}
	assert.Equal(t, 19.0, s.TotalActiveTicks())
}

func TestCPUStat_Sub_OptionalFieldsRequireBoth(t *testing.T) {
	a := CPUStat{User: 100, Iowait: floatPtr(10)}
	b := CPUStat{User: 40, Iowait: nil}
	diff := a.Sub(b)
	assert.Equal(t, 60.0, diff.User)
	assert.Nil(t, diff.Iowait)
}

func TestCPUStat_Sub_BothPresent(t *testing.T) {
	a := CPUStat{User: 100, Iowait: floatPtr(10)}
	b := CPUStat{User: 40, Iowait: floatPtr(3)}
	diff := a.Sub(b)
	require.NotNil(t, diff.Iowait)
	assert.Equal(t, 7.0, *diff.Iowait)
}

func TestCPUStatBuffer_DiffNeedsTwoSamples(t *testing.T) {
	b := newCPUStatBuffer(1024)
	_, ok := b.diff()
	assert.False(t, ok)

	b.push(CPUStat{User: 10})
	_, ok = b.diff()
	assert.False(t, ok)

	b.push(CPUStat{User: 25})
	d, ok := b.diff()
	require.True(t, ok)
	assert.Equal(t, 15.0, d.User)
}

func TestCpuStatFromProcfs_ScalesBackToTicks(t *testing.T) {
	raw := procfs.CPUStat{User: 1.0, Nice: 0.5, System: 0.25, Idle: 2.0}
	s := cpuStatFromProcfs(raw, 100)
	assert.Equal(t, 100.0, s.User)
	assert.Equal(t, 50.0, s.Nice)
	assert.Equal(t, 25.0, s.System)
	assert.Equal(t, 200.0, s.Idle)
}

func TestTicksPerSecond_DefaultsTo100(t *testing.T) {
	t.Setenv("CLK_TCK", "")
	assert.Equal(t, 100.0, ticksPerSecond())
}

func TestTicksPerSecond_HonoursEnvOverride(t *testing.T) {
	t.Setenv("CLK_TCK", "250")
	assert.Equal(t, 250.0, ticksPerSecond())
}
