// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import "math"

// processPowerMicrowatts derives pid's share of the topology's most
// recent host power reading, scaled by the ratio of the process's CPU
// ticks to the host's active ticks over the same interval.
//
// host_ticks is the topology stats delta's total active ticks times
// ticks-per-second, matching the original's
// topo_total_time = topo_stats_diff.total_time_jiffies() * ticks_per_second().
// The worked example in the distilled spec omits this factor and is
// the erroneous data point here, not this code.
func processPowerMicrowatts(topo *Topology, pid int) (uint64, bool) {
	ratio, ok := processTickRatio(topo, pid)
	if !ok {
		return 0, false
	}
	hostRecord, ok := topo.recordsDiffPowerMicrowatts()
	if !ok {
		return 0, false
	}
	hostUw, err := hostRecord.UintValue()
	if err != nil {
		return 0, false
	}
	return uint64(math.Floor(float64(hostUw) * ratio)), true
}

// processCPUPercent returns pid's CPU-time share over the same interval
// processPowerMicrowatts uses, as a percentage, without the host-power
// factor.
func processCPUPercent(topo *Topology, pid int) (float64, bool) {
	ratio, ok := processTickRatio(topo, pid)
	if !ok {
		return 0, false
	}
	return 100 * ratio, true
}

// processTickRatio computes Δp / host_ticks for pid, or false if fewer
// than two ProcessRecords are tracked for pid, if the delta is negative,
// or if the host has not accumulated enough active ticks to divide by.
func processTickRatio(topo *Topology, pid int) (float64, bool) {
	records, ok := topo.Tracker.findRecords(pid)
	if !ok || len(records) < 2 {
		return 0, false
	}
	last, previous := records[0], records[1]
	if last.TotalTicks() < previous.TotalTicks() {
		return 0, false
	}
	deltaP := last.TotalTicks() - previous.TotalTicks()

	statsDiff, ok := topo.statsDiff()
	if !ok {
		return 0, false
	}
	hostTicks := statsDiff.TotalActiveTicks() * ticksPerSecond()
	if hostTicks <= 0 {
		return 0, false
	}

	return float64(deltaP) / hostTicks, true
}
