// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"sort"
	"time"

	"github.com/prometheus/procfs"
)

// ProcessRecord is one CPU-time snapshot for a single process, taken at a
// wall-clock instant, along with enough identity to detect PID reuse and
// enough metadata to label attribution output without a second lookup.
type ProcessRecord struct {
	PID       int
	UTime     uint64
	STime     uint64
	StartTime uint64
	Timestamp time.Time
	CmdLine   []string
	Exe       string
	RSSBytes  uint64
}

// TotalTicks is the CPU time this record represents, in ticks.
func (p ProcessRecord) TotalTicks() uint64 {
	return p.UTime + p.STime
}

// processRecordFromProcfs builds a ProcessRecord from a procfs.Proc's stat
// line. CmdLine/Exe lookups are best-effort: a process that has already
// exited between enumeration and this read yields empty strings rather
// than failing the whole sample.
func processRecordFromProcfs(proc procfs.Proc, timestamp time.Time) (ProcessRecord, error) {
	stat, err := proc.Stat()
	if err != nil {
		return ProcessRecord{}, &ProcessVanishedError{PID: proc.PID}
	}
	cmdline, _ := proc.CmdLine()
	exe, _ := proc.Executable()
	return ProcessRecord{
		PID:       proc.PID,
		UTime:     uint64(stat.UTime),
		STime:     uint64(stat.STime),
		StartTime: uint64(stat.Starttime),
		Timestamp: timestamp,
		CmdLine:   cmdline,
		Exe:       exe,
		RSSBytes:  uint64(stat.ResidentMemory()),
	}, nil
}

// defaultMaxRecordsPerPID bounds the per-PID history kept by a
// ProcessTracker.
const defaultMaxRecordsPerPID = 5

// processHistory is one PID's newest-first bounded sequence of records.
type processHistory struct {
	records []ProcessRecord
}

// ProcessTracker retains a bounded, per-PID history of CPU-time snapshots
// used by the attribution functions to compute CPU-time deltas.
type ProcessTracker struct {
	byPID            map[int]*processHistory
	maxRecordsPerPID int
}

// NewProcessTracker builds a tracker bounding each PID's history to
// maxRecordsPerPID records. A non-positive value falls back to
// defaultMaxRecordsPerPID.
func NewProcessTracker(maxRecordsPerPID int) *ProcessTracker {
	if maxRecordsPerPID <= 0 {
		maxRecordsPerPID = defaultMaxRecordsPerPID
	}
	return &ProcessTracker{
		byPID:            make(map[int]*processHistory),
		maxRecordsPerPID: maxRecordsPerPID,
	}
}

// addProcessRecord inserts r at the front of its PID's sequence, evicting
// from the tail beyond maxRecordsPerPID. If the most recent record for
// this PID has a different StartTime, the PID has been reused by a new
// process; the sequence is reset to contain only r instead of being
// silently merged with the old process's history.
func (t *ProcessTracker) addProcessRecord(r ProcessRecord) {
	h, ok := t.byPID[r.PID]
	if !ok {
		h = &processHistory{}
		t.byPID[r.PID] = h
	}
	if len(h.records) > 0 && h.records[0].StartTime != r.StartTime {
		h.records = nil
	}
	h.records = append([]ProcessRecord{r}, h.records...)
	if len(h.records) > t.maxRecordsPerPID {
		h.records = h.records[:t.maxRecordsPerPID]
	}
}

// getAlivePIDs returns every PID with at least one buffered record.
func (t *ProcessTracker) getAlivePIDs() []int {
	pids := make([]int, 0, len(t.byPID))
	for pid, h := range t.byPID {
		if len(h.records) > 0 {
			pids = append(pids, pid)
		}
	}
	sort.Ints(pids)
	return pids
}

// getAliveProcesses returns the newest record for every tracked PID.
func (t *ProcessTracker) getAliveProcesses() []ProcessRecord {
	out := make([]ProcessRecord, 0, len(t.byPID))
	for _, pid := range t.getAlivePIDs() {
		out = append(out, t.byPID[pid].records[0])
	}
	return out
}

// findRecords returns the newest-first sequence of records for pid, if
// any are tracked.
func (t *ProcessTracker) findRecords(pid int) ([]ProcessRecord, bool) {
	h, ok := t.byPID[pid]
	if !ok || len(h.records) == 0 {
		return nil, false
	}
	out := make([]ProcessRecord, len(h.records))
	copy(out, h.records)
	return out, true
}

// TopConsumer pairs a process identity with the tick delta attribution
// ranks it by.
type TopConsumer struct {
	Process    ProcessRecord
	DeltaTicks uint64
}

// getTopConsumers returns up to n processes ordered by descending CPU-time
// delta between their two newest records. PIDs with fewer than two
// records, or whose delta would be negative (indicating a PID reuse that
// slipped through without a reset), are skipped. Ties break by smaller
// PID.
func (t *ProcessTracker) getTopConsumers(n int) []TopConsumer {
	candidates := make([]TopConsumer, 0, len(t.byPID))
	for _, h := range t.byPID {
		if len(h.records) < 2 {
			continue
		}
		last := h.records[0]
		previous := h.records[1]
		if last.TotalTicks() < previous.TotalTicks() {
			continue
		}
		candidates = append(candidates, TopConsumer{
			Process:    last,
			DeltaTicks: last.TotalTicks() - previous.TotalTicks(),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DeltaTicks != candidates[j].DeltaTicks {
			return candidates[i].DeltaTicks > candidates[j].DeltaTicks
		}
		return candidates[i].Process.PID < candidates[j].Process.PID
	})
	if n >= 0 && n < len(candidates) {
		candidates = candidates[:n]
	}
	return candidates
}

// cleanTerminatedProcessRecordsVectors drops the histories of PIDs that
// are absent from alivePIDs.
func (t *ProcessTracker) cleanTerminatedProcessRecordsVectors(alivePIDs map[int]struct{}) {
	for pid := range t.byPID {
		if _, ok := alivePIDs[pid]; !ok {
			delete(t.byPID, pid)
		}
	}
}

// refresh enumerates every live process via fs and records a snapshot for
// each one that is still readable, then sweeps histories for PIDs that
// vanished since the previous refresh.
func (t *ProcessTracker) refresh(fs procfs.FS, timestamp time.Time) error {
	procs, err := fs.AllProcs()
	if err != nil {
		return err
	}
	alive := make(map[int]struct{}, len(procs))
	for _, proc := range procs {
		alive[proc.PID] = struct{}{}
		record, err := processRecordFromProcfs(proc, timestamp)
		if err != nil {
			continue
		}
		t.addProcessRecord(record)
	}
	t.cleanTerminatedProcessRecordsVectors(alive)
	return nil
}
