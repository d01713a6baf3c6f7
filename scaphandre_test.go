// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WithSensor_BuildsMeterFromTopology(t *testing.T) {
	sensor := NewDebugSensor(1024, t.TempDir(), 0, 1000)

	m, err := New(WithSensor(sensor), WithMaxRecordsPerPID(3))
	require.NoError(t, err)
	require.NotNil(t, m.Topology)

	sockets := m.Topology.Sockets()
	require.Len(t, sockets, 1)
	assert.Equal(t, 1234, sockets[0].ID)
}

func TestMeter_Refresh_AdvancesBuffers(t *testing.T) {
	sensor := NewDebugSensor(1024, t.TempDir(), 0, 1000)
	m, err := New(WithSensor(sensor))
	require.NoError(t, err)

	require.NoError(t, m.Refresh())
	require.NoError(t, m.Refresh())

	snap := m.Snapshot(5, 1)
	require.NotNil(t, snap.HostPowerMicrowatts)
	assert.Equal(t, 1, snap.SocketCount)
}
