// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"strconv"
)

// SocketState reflects how much history a CPUSocket has accumulated.
// power_diff/stats_diff only return a value once a socket reaches Warm
// and a second refresh has produced two records and two stats; the
// buffers themselves enforce that (recordBufferPowerDiff/cpuStatBuffer.diff
// both require two samples), so State is purely observational.
type SocketState int

const (
	SocketEmpty SocketState = iota
	SocketHasRecord
	SocketHasStats
	SocketWarm
)

// CPUSocket is one physical socket: its power domains, its logical
// cores, its own microjoule counter and its own record/CPUStat history.
type CPUSocket struct {
	ID            int
	CounterUjPath string
	read          counterReader
	domains       map[int]*Domain
	domainOrder   []int
	cores         []CPUCore
	recordBuf     *recordBuffer
	statBuf       *cpuStatBuffer
}

// NewCPUSocket constructs a CPUSocket reading its counter from
// counterUjPath, with empty domain/core lists and empty history buffers
// bounded by the given budgets.
func NewCPUSocket(id int, counterUjPath string, recordBudgetKibibytes, statBudgetKibibytes uint16) *CPUSocket {
	return NewCPUSocketWithReader(id, counterUjPath, fileCounterReader(counterUjPath), recordBudgetKibibytes, statBudgetKibibytes)
}

// NewCPUSocketWithReader is like NewCPUSocket but takes an arbitrary
// counter reader, used by the MSR sensor.
func NewCPUSocketWithReader(id int, counterUjPath string, read counterReader, recordBudgetKibibytes, statBudgetKibibytes uint16) *CPUSocket {
	return &CPUSocket{
		ID:            id,
		CounterUjPath: counterUjPath,
		read:          read,
		domains:       make(map[int]*Domain),
		recordBuf:     newRecordBuffer(recordBudgetKibibytes),
		statBuf:       newCPUStatBuffer(statBudgetKibibytes),
	}
}

// safeAddDomain registers d under its id if no domain with that id is
// already present. Calling it twice with the same id is a no-op the
// second time.
func (s *CPUSocket) safeAddDomain(d *Domain) {
	if _, exists := s.domains[d.ID]; exists {
		return
	}
	s.domains[d.ID] = d
	s.domainOrder = append(s.domainOrder, d.ID)
}

// Domains returns the socket's domains in registration order.
func (s *CPUSocket) Domains() []*Domain {
	out := make([]*Domain, 0, len(s.domainOrder))
	for _, id := range s.domainOrder {
		out = append(out, s.domains[id])
	}
	return out
}

// addCore appends c to the socket's core list.
func (s *CPUSocket) addCore(c CPUCore) {
	s.cores = append(s.cores, c)
}

// Cores returns the socket's logical cores.
func (s *CPUSocket) Cores() []CPUCore {
	return s.cores
}

// State reports the socket's history-accumulation state.
func (s *CPUSocket) State() SocketState {
	hasRecord := s.recordBuf.len() > 0
	hasStats := s.statBuf.len() > 0
	switch {
	case hasRecord && hasStats:
		return SocketWarm
	case hasRecord:
		return SocketHasRecord
	case hasStats:
		return SocketHasStats
	default:
		return SocketEmpty
	}
}

// refreshRecord reads the socket-level microjoule counter, exactly like
// Domain.refreshRecord.
func (s *CPUSocket) refreshRecord() error {
	value, timestamp, err := s.read()
	if err != nil {
		return &CounterReadFailedError{Path: s.CounterUjPath, Err: err}
	}
	s.recordBuf.push(NewRecord(timestamp, value, MicroJoule))
	return nil
}

// refreshStats builds a CPUStat by summing the supplied per-core stats
// (keyed by CPUCore.ID), pushes it onto the socket's stat buffer, and
// trims. iowait/irq/softirq are summed treating an absent field as zero;
// steal/guest/guest_nice remain optional, present only if every
// contributing core reported them.
func (s *CPUSocket) refreshStats(perCPU map[int]CPUStat) {
	var sum CPUStat
	anySteal, anyGuest, anyGuestNice := true, true, true
	var steal, guest, guestNice float64
	for _, core := range s.cores {
		cs, ok := perCPU[core.ID]
		if !ok {
			continue
		}
		sum.User += cs.User
		sum.Nice += cs.Nice
		sum.System += cs.System
		sum.Idle += cs.Idle

		iowait := orZero(cs.Iowait)
		irq := orZero(cs.IRQ)
		softirq := orZero(cs.SoftIRQ)
		if sum.Iowait == nil {
			sum.Iowait = new(float64)
		}
		if sum.IRQ == nil {
			sum.IRQ = new(float64)
		}
		if sum.SoftIRQ == nil {
			sum.SoftIRQ = new(float64)
		}
		*sum.Iowait += iowait
		*sum.IRQ += irq
		*sum.SoftIRQ += softirq

		if cs.Steal == nil {
			anySteal = false
		} else {
			steal += *cs.Steal
		}
		if cs.Guest == nil {
			anyGuest = false
		} else {
			guest += *cs.Guest
		}
		if cs.GuestNice == nil {
			anyGuestNice = false
		} else {
			guestNice += *cs.GuestNice
		}
	}
	if anySteal && len(s.cores) > 0 {
		sum.Steal = &steal
	}
	if anyGuest && len(s.cores) > 0 {
		sum.Guest = &guest
	}
	if anyGuestNice && len(s.cores) > 0 {
		sum.GuestNice = &guestNice
	}
	s.statBuf.push(sum)
}

// powerDiff derives this socket's microwatt Record from its two most
// recent buffered energy readings.
func (s *CPUSocket) powerDiff() (Record, bool) {
	return recordBufferPowerDiff(s.recordBuf)
}

// statsDiff returns the elementwise subtraction of the socket's two most
// recent CPUStats.
func (s *CPUSocket) statsDiff() (CPUStat, bool) {
	return s.statBuf.diff()
}

func (s *CPUSocket) records() []Record {
	return s.recordBuf.all()
}

func (s *CPUSocket) latestEnergyValue() (uint64, bool) {
	r, ok := s.recordBuf.latest()
	if !ok {
		return 0, false
	}
	v, err := r.UintValue()
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s *CPUSocket) String() string {
	return "socket " + strconv.Itoa(s.ID)
}
