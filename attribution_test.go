// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestTopology wires just enough of a Topology for attribution
// tests: a pre-seeded global record buffer and CPUStat buffer, bypassing
// sensor discovery and procfs entirely.
func buildTestTopology(recordValues []uint64, statDeltaTicks float64) *Topology {
	topo := &Topology{
		sockets:   make(map[int]*CPUSocket),
		Tracker:   NewProcessTracker(5),
		recordBuf: newRecordBuffer(1 << 15),
		statBuf:   newCPUStatBuffer(1 << 15),
	}
	now := time.Unix(1000, 0)
	for i, v := range recordValues {
		r := NewRecord(now.Add(time.Duration(i)*time.Second), strconv.FormatUint(v, 10), MicroJoule)
		topo.recordBuf.push(r)
	}
	topo.statBuf.push(CPUStat{User: 0})
	topo.statBuf.push(CPUStat{User: statDeltaTicks})
	return topo
}

func TestAttribution_ProcessPowerMicrowatts_WorkedExample(t *testing.T) {
	// host power 10,000,000 uW; host ticks = 100 active ticks * 100
	// ticks-per-second = 10,000; process delta 25 ticks -> ratio 0.0025.
	topo := buildTestTopology([]uint64{0, 10000000}, 100)
	topo.Tracker.addProcessRecord(ProcessRecord{PID: 42, UTime: 0, StartTime: 1, Timestamp: time.Unix(1000, 0)})
	topo.Tracker.addProcessRecord(ProcessRecord{PID: 42, UTime: 25, StartTime: 1, Timestamp: time.Unix(1001, 0)})

	power, ok := processPowerMicrowatts(topo, 42)
	require.True(t, ok)
	assert.Equal(t, uint64(25000), power)
}

func TestAttribution_ProcessCPUPercent(t *testing.T) {
	topo := buildTestTopology([]uint64{0, 10000000}, 100)
	topo.Tracker.addProcessRecord(ProcessRecord{PID: 42, UTime: 0, StartTime: 1, Timestamp: time.Unix(1000, 0)})
	topo.Tracker.addProcessRecord(ProcessRecord{PID: 42, UTime: 25, StartTime: 1, Timestamp: time.Unix(1001, 0)})

	pct, ok := processCPUPercent(topo, 42)
	require.True(t, ok)
	assert.Equal(t, 0.25, pct)
}

func TestAttribution_FewerThanTwoProcessRecords(t *testing.T) {
	topo := buildTestTopology([]uint64{0, 10000000}, 100)
	topo.Tracker.addProcessRecord(ProcessRecord{PID: 7, UTime: 5, StartTime: 1, Timestamp: time.Unix(1000, 0)})

	_, ok := processPowerMicrowatts(topo, 7)
	assert.False(t, ok)
}

func TestAttribution_NegativeDeltaYieldsNone(t *testing.T) {
	topo := buildTestTopology([]uint64{0, 10000000}, 100)
	topo.Tracker.addProcessRecord(ProcessRecord{PID: 7, UTime: 50, StartTime: 1, Timestamp: time.Unix(1000, 0)})
	topo.Tracker.addProcessRecord(ProcessRecord{PID: 7, UTime: 10, StartTime: 1, Timestamp: time.Unix(1001, 0)})

	_, ok := processPowerMicrowatts(topo, 7)
	assert.False(t, ok)
}

func TestAttribution_NoHostPowerYieldsNone(t *testing.T) {
	// Only one energy reading buffered: no host power differential yet.
	topo := buildTestTopology([]uint64{0}, 100)
	topo.Tracker.addProcessRecord(ProcessRecord{PID: 7, UTime: 0, StartTime: 1, Timestamp: time.Unix(1000, 0)})
	topo.Tracker.addProcessRecord(ProcessRecord{PID: 7, UTime: 25, StartTime: 1, Timestamp: time.Unix(1001, 0)})

	_, ok := processPowerMicrowatts(topo, 7)
	assert.False(t, ok)
}

func TestAttribution_UnknownPIDYieldsNone(t *testing.T) {
	topo := buildTestTopology([]uint64{0, 10000000}, 100)
	_, ok := processPowerMicrowatts(topo, 9999)
	assert.False(t, ok)
}
