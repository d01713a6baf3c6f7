// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"sort"
	"strconv"

	"github.com/prometheus/procfs"

	"github.com/hubblo-org/scaphandre/internal/log"
)

// Topology is the root aggregate: every CPUSocket discovered at startup,
// the process tracker, and the host-wide record/CPUStat history that
// sums/aggregates the per-socket ones.
type Topology struct {
	fs procfs.FS

	sockets     map[int]*CPUSocket
	socketOrder []int

	Tracker *ProcessTracker

	recordBuf *recordBuffer
	statBuf   *cpuStatBuffer
}

// procfsPathOverride lets tests point newProcfsFS at a fixture directory
// instead of the real /proc.
var procfsPathOverride string

// newProcfsFS opens the default /proc mount, or procfsPathOverride when set.
func newProcfsFS() (procfs.FS, error) {
	if procfsPathOverride != "" {
		return procfs.NewFS(procfsPathOverride)
	}
	return procfs.NewDefaultFS()
}

// NewTopology constructs an empty Topology over the given procfs mount,
// with global history buffers bounded by the given budgets.
func NewTopology(fs procfs.FS, recordBudgetKibibytes, statBudgetKibibytes uint16, maxRecordsPerPID int) *Topology {
	return &Topology{
		fs:        fs,
		sockets:   make(map[int]*CPUSocket),
		Tracker:   NewProcessTracker(maxRecordsPerPID),
		recordBuf: newRecordBuffer(recordBudgetKibibytes),
		statBuf:   newCPUStatBuffer(statBudgetKibibytes),
	}
}

// safeAddSocket registers s under its id if no socket with that id is
// already present. Calling it twice with the same id is a no-op the
// second time.
func (t *Topology) safeAddSocket(s *CPUSocket) {
	if _, exists := t.sockets[s.ID]; exists {
		return
	}
	t.sockets[s.ID] = s
	t.socketOrder = append(t.socketOrder, s.ID)
}

// Sockets returns the topology's sockets in discovery order.
func (t *Topology) Sockets() []*CPUSocket {
	out := make([]*CPUSocket, 0, len(t.socketOrder))
	for _, id := range t.socketOrder {
		out = append(out, t.sockets[id])
	}
	return out
}

// DomainNames returns the sorted list of all distinct domain names across
// every socket.
func (t *Topology) DomainNames() []string {
	seen := make(map[string]struct{})
	for _, s := range t.Sockets() {
		for _, d := range s.Domains() {
			seen[d.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// refresh runs one full metering tick: per-socket record and stat
// refresh (including each socket's domains), a process-tracker sweep,
// the global energy record derived from the sockets' latest readings,
// and the global CPU-stat read from the kernel aggregate line. Each step
// trims its own buffer; a failure in one socket or domain does not abort
// the others.
func (t *Topology) refresh() error {
	stats, statsErr := t.fs.Stat()

	for _, s := range t.Sockets() {
		if err := s.refreshRecord(); err != nil {
			log.Warnf("socket %d: counter read failed: %v", s.ID, err)
		}
		if statsErr == nil {
			s.refreshStats(perCPUTicks(stats))
		}
		for _, d := range s.Domains() {
			if err := d.refreshRecord(); err != nil {
				log.Warnf("socket %d domain %q: counter read failed: %v", s.ID, d.Name, err)
			}
		}
	}

	if err := t.Tracker.refresh(t.fs, timeNowFn()); err != nil {
		return err
	}

	var total uint64
	for _, s := range t.Sockets() {
		if v, ok := s.latestEnergyValue(); ok {
			total += v
		}
	}
	t.recordBuf.push(NewRecord(timeNowFn(), strconv.FormatUint(total, 10), MicroJoule))

	if statsErr == nil {
		t.statBuf.push(cpuStatFromProcfs(stats.CPUTotal, ticksPerSecond()))
	}

	return nil
}

// perCPUTicks adapts procfs's per-CPU stat map (keyed by logical CPU
// number, in seconds) into this package's tick-based CPUStat map.
func perCPUTicks(stats procfs.Stat) map[int]CPUStat {
	hz := ticksPerSecond()
	out := make(map[int]CPUStat, len(stats.CPU))
	for cpu, s := range stats.CPU {
		out[int(cpu)] = cpuStatFromProcfs(s, hz)
	}
	return out
}

// recordsDiffPowerMicrowatts derives the topology-wide microwatt Record
// from the two most recently buffered global energy readings.
func (t *Topology) recordsDiffPowerMicrowatts() (Record, bool) {
	return recordBufferPowerDiff(t.recordBuf)
}

// statsDiff returns the elementwise subtraction of the topology's two
// most recent global CPUStats.
func (t *Topology) statsDiff() (CPUStat, bool) {
	return t.statBuf.diff()
}

func (t *Topology) records() []Record {
	return t.recordBuf.all()
}

// Snapshot builds the read-only view an Exporter consumes for one tick:
// host power/energy, per-socket/per-domain breakdowns, the n top
// consumers, and self-observation counters. selfPID is the calling
// process's own PID, used to report its own CPU share.
func (t *Topology) Snapshot(n int, selfPID int) Snapshot {
	snap := Snapshot{
		Sockets:             make(map[int]SocketView, len(t.sockets)),
		SocketCount:         len(t.sockets),
		TrackedProcessCount: len(t.Tracker.getAlivePIDs()),
		RecordBufferLen:     t.recordBuf.len(),
		StatBufferLen:       t.statBuf.len(),
	}

	if hostRecord, ok := t.recordsDiffPowerMicrowatts(); ok {
		if v, err := hostRecord.UintValue(); err == nil {
			snap.HostPowerMicrowatts = &v
		}
	}
	if latest, ok := t.recordBuf.latest(); ok {
		v := latest.Value
		snap.HostEnergyMicrojoules = &v
	}

	for _, s := range t.Sockets() {
		view := SocketView{Domains: make(map[string]DomainView, len(s.Domains()))}
		if latest, ok := s.recordBuf.latest(); ok {
			view.EnergyUj = latest.Value
		}
		if diff, ok := s.powerDiff(); ok {
			if v, err := diff.UintValue(); err == nil {
				view.PowerUw = &v
			}
		}
		for _, d := range s.Domains() {
			dv := DomainView{}
			if latest, ok := d.buffer.latest(); ok {
				dv.EnergyUj = latest.Value
			}
			if diff, ok := d.powerDiff(); ok {
				if v, err := diff.UintValue(); err == nil {
					dv.PowerUw = &v
				}
			}
			view.Domains[d.Name] = dv
		}
		snap.Sockets[s.ID] = view
	}

	for _, consumer := range t.Tracker.getTopConsumers(n) {
		view := TopConsumerView{
			PID:     consumer.Process.PID,
			Exe:     consumer.Process.Exe,
			CmdLine: consumer.Process.CmdLine,
		}
		if power, ok := processPowerMicrowatts(t, consumer.Process.PID); ok {
			view.PowerUw = power
		}
		if pct, ok := processCPUPercent(t, consumer.Process.PID); ok {
			view.CPUPercent = pct
		}
		snap.TopConsumers = append(snap.TopConsumers, view)
	}

	if pct, ok := processCPUPercent(t, selfPID); ok {
		snap.SelfCPUPercent = &pct
	}
	if records, ok := t.Tracker.findRecords(selfPID); ok && len(records) > 0 {
		rss := records[0].RSSBytes
		snap.SelfRSSBytes = &rss
	}

	return snap
}
