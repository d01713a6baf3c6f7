// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugSensor_Probe_AlwaysAvailable(t *testing.T) {
	s := NewDebugSensor(1024, t.TempDir(), 0, 1000)
	avail, err := s.Probe()
	require.NoError(t, err)
	assert.Equal(t, Available, avail)
}

func TestDebugSensor_GenerateTopology_FixedShape(t *testing.T) {
	s := NewDebugSensor(1024, t.TempDir(), 0, 1000)
	topo, err := s.GenerateTopology()
	require.NoError(t, err)

	sockets := topo.Sockets()
	require.Len(t, sockets, 1)
	assert.Equal(t, 1234, sockets[0].ID)

	domains := sockets[0].Domains()
	require.Len(t, domains, 1)
	assert.Equal(t, 4321, domains[0].ID)
	assert.Equal(t, "debug domain", domains[0].Name)
}

func TestDebugSensor_RefreshAdvancesIndependently(t *testing.T) {
	s := NewDebugSensor(1024, t.TempDir(), 0, 1000)
	topo, err := s.GenerateTopology()
	require.NoError(t, err)
	socket := topo.Sockets()[0]
	domain := socket.Domains()[0]

	require.NoError(t, socket.refreshRecord())
	require.NoError(t, domain.refreshRecord())
	require.NoError(t, socket.refreshRecord())
	require.NoError(t, domain.refreshRecord())

	socketLatest, ok := socket.recordBuf.latest()
	require.True(t, ok)
	domainLatest, ok := domain.buffer.latest()
	require.True(t, ok)
	assert.Equal(t, "2000", socketLatest.Value)
	assert.Equal(t, "2000", domainLatest.Value)
}
