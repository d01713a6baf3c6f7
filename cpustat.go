// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"os"
	"strconv"

	"github.com/prometheus/procfs"
)

// ticksPerSecond returns the kernel's scheduler quantum rate. It honours a
// CLK_TCK environment override for tests and otherwise assumes the common
// default of 100, since reading it authoritatively requires cgo.
func ticksPerSecond() float64 {
	if v, err := strconv.Atoi(os.Getenv("CLK_TCK")); err == nil && v > 0 {
		return float64(v)
	}
	return 100
}

// CPUStat is one CPU-time snapshot expressed in ticks. iowait/irq/softirq
// and steal/guest/guest_nice are optional because not every kernel or
// container boundary reports them; a nil pointer means "not reported" as
// opposed to zero.
type CPUStat struct {
	User      float64
	Nice      float64
	System    float64
	Idle      float64
	Iowait    *float64
	IRQ       *float64
	SoftIRQ   *float64
	Steal     *float64
	Guest     *float64
	GuestNice *float64
}

func orZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// TotalActiveTicks returns the portion of this snapshot spent doing
// useful work: user + nice + system + guest + guest_nice. idle, iowait,
// irq, softirq and steal are excluded.
func (s CPUStat) TotalActiveTicks() float64 {
	return s.User + s.Nice + s.System + orZero(s.Guest) + orZero(s.GuestNice)
}

// Sub returns the elementwise difference s - other. Optional fields
// subtract only when both sides report them; otherwise the result field
// is nil.
func (s CPUStat) Sub(other CPUStat) CPUStat {
	return CPUStat{
		User:      s.User - other.User,
		Nice:      s.Nice - other.Nice,
		System:    s.System - other.System,
		Idle:      s.Idle - other.Idle,
		Iowait:    subOptional(s.Iowait, other.Iowait),
		IRQ:       subOptional(s.IRQ, other.IRQ),
		SoftIRQ:   subOptional(s.SoftIRQ, other.SoftIRQ),
		Steal:     subOptional(s.Steal, other.Steal),
		Guest:     subOptional(s.Guest, other.Guest),
		GuestNice: subOptional(s.GuestNice, other.GuestNice),
	}
}

func subOptional(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := *a - *b
	return &d
}

// cpuStatSize is the fixed per-element byte cost used by the shared
// trim law (spec.md §4.7); see recordSize for why it need only be stable,
// not an exact sizeof.
const cpuStatSize = 80

// cpuStatBuffer is a newest-last history of CPUStat snapshots sharing the
// same byte-budget/hysteresis trim law as recordBuffer.
type cpuStatBuffer struct {
	stats           []CPUStat
	budgetKibibytes uint16
}

func newCPUStatBuffer(budgetKibibytes uint16) *cpuStatBuffer {
	return &cpuStatBuffer{budgetKibibytes: budgetKibibytes}
}

func (b *cpuStatBuffer) push(s CPUStat) {
	b.stats = append(b.stats, s)
	b.trim()
}

func (b *cpuStatBuffer) trim() {
	if len(b.stats) == 0 {
		return
	}
	n := trimCount(len(b.stats), cpuStatSize, b.budgetKibibytes)
	if n > 0 {
		b.stats = b.stats[n:]
	}
}

func (b *cpuStatBuffer) latest() (CPUStat, bool) {
	if len(b.stats) == 0 {
		return CPUStat{}, false
	}
	return b.stats[len(b.stats)-1], true
}

func (b *cpuStatBuffer) previous() (CPUStat, bool) {
	if len(b.stats) < 2 {
		return CPUStat{}, false
	}
	return b.stats[len(b.stats)-2], true
}

// diff returns the elementwise subtraction of the two most recent
// snapshots (last - previous), or false if fewer than two are buffered.
func (b *cpuStatBuffer) diff() (CPUStat, bool) {
	last, ok := b.latest()
	if !ok {
		return CPUStat{}, false
	}
	prev, ok := b.previous()
	if !ok {
		return CPUStat{}, false
	}
	return last.Sub(prev), true
}

func (b *cpuStatBuffer) len() int {
	return len(b.stats)
}

// cpuStatFromProcfs adapts a procfs.CPUStat (reported in seconds, already
// normalized by the kernel's tick rate) back into tick counts, matching
// this package's tick-based data model. procfs does not distinguish
// "field absent" from "field reported as zero", so every field is treated
// as present.
func cpuStatFromProcfs(s procfs.CPUStat, hz float64) CPUStat {
	iowait := s.Iowait * hz
	irq := s.IRQ * hz
	softirq := s.SoftIRQ * hz
	steal := s.Steal * hz
	guest := s.Guest * hz
	guestNice := s.GuestNice * hz
	return CPUStat{
		User:      s.User * hz,
		Nice:      s.Nice * hz,
		System:    s.System * hz,
		Idle:      s.Idle * hz,
		Iowait:    &iowait,
		IRQ:       &irq,
		SoftIRQ:   &softirq,
		Steal:     &steal,
		Guest:     &guest,
		GuestNice: &guestNice,
	}
}
