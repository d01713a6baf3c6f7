// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUSocket_SafeAddDomain_Idempotent(t *testing.T) {
	s := NewCPUSocket(0, "/irrelevant", 1024, 1024)
	d1 := NewDomain(1, "core", "/irrelevant", 1024)
	d2 := NewDomain(1, "core-duplicate", "/irrelevant", 1024)

	s.safeAddDomain(d1)
	s.safeAddDomain(d2)

	domains := s.Domains()
	require.Len(t, domains, 1)
	assert.Equal(t, "core", domains[0].Name)
}

func TestCPUSocket_State_Transitions(t *testing.T) {
	dir := t.TempDir()
	path := writeCounter(t, dir, "energy_uj", "0\n")
	s := NewCPUSocket(0, path, 1024, 1024)
	assert.Equal(t, SocketEmpty, s.State())

	require.NoError(t, s.refreshRecord())
	assert.Equal(t, SocketHasRecord, s.State())

	s.refreshStats(map[int]CPUStat{})
	assert.Equal(t, SocketWarm, s.State())
}

func TestCPUSocket_PowerDiff(t *testing.T) {
	dir := t.TempDir()
	path := writeCounter(t, dir, "energy_uj", "0\n")
	s := NewCPUSocket(0, path, 1024, 1024)

	setFakeClock()
	defer unsetFakeClock()

	require.NoError(t, s.refreshRecord())
	fakeClock.Add(time.Second)
	require.NoError(t, os.WriteFile(path, []byte("2000000\n"), 0o644))
	require.NoError(t, s.refreshRecord())

	r, ok := s.powerDiff()
	require.True(t, ok)
	assert.Equal(t, "2000000", r.Value)
}

func TestCPUSocket_RefreshStats_SumsAcrossCores(t *testing.T) {
	s := NewCPUSocket(0, "/irrelevant", 1024, 1024)
	s.addCore(NewCPUCore(0, nil))
	s.addCore(NewCPUCore(1, nil))

	iowaitA, iowaitB := 1.0, 2.0
	s.refreshStats(map[int]CPUStat{
		0: {User: 10, Nice: 1, System: 2, Idle: 50, Iowait: &iowaitA},
		1: {User: 20, Nice: 2, System: 4, Idle: 60, Iowait: &iowaitB},
	})

	diffBefore := s.statBuf.len()
	assert.Equal(t, 1, diffBefore)

	latest, ok := s.statBuf.latest()
	require.True(t, ok)
	assert.Equal(t, 30.0, latest.User)
	assert.Equal(t, 3.0, latest.Nice)
	require.NotNil(t, latest.Iowait)
	assert.Equal(t, 3.0, *latest.Iowait)
	assert.Nil(t, latest.Steal)
}

func TestCPUSocket_RefreshStats_OptionalFieldsRequireAllCores(t *testing.T) {
	s := NewCPUSocket(0, "/irrelevant", 1024, 1024)
	s.addCore(NewCPUCore(0, nil))
	s.addCore(NewCPUCore(1, nil))

	steal := 5.0
	s.refreshStats(map[int]CPUStat{
		0: {User: 10, Steal: &steal},
		1: {User: 20}, // no Steal reported
	})

	latest, ok := s.statBuf.latest()
	require.True(t, ok)
	assert.Nil(t, latest.Steal)
}
