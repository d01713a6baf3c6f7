// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"fmt"
	"strconv"
	"time"
)

// counterReader yields one raw energy-counter reading (as a trimmed
// decimal microjoule string) and the instant it was taken. The default
// reader reads a sysfs energy_uj file; the MSR sensor installs one that
// reads and scales a raw machine-specific register instead, so the rest
// of the Domain/CPUSocket/Topology refresh machinery stays identical
// across sensor variants.
type counterReader func() (string, time.Time, error)

func fileCounterReader(path string) counterReader {
	return func() (string, time.Time, error) {
		content, timestamp, err := readFileWithTimestamp(path)
		if err != nil {
			return "", time.Time{}, err
		}
		return string(content), timestamp, nil
	}
}

// Domain is a single RAPL-style sub-region of a socket (package, core,
// uncore, dram, ...) backed by one microjoule counter and its own
// bounded record history.
type Domain struct {
	ID            int
	Name          string
	CounterUjPath string
	read          counterReader
	buffer        *recordBuffer
}

// NewDomain constructs a Domain reading its counter from counterUjPath,
// with an empty record buffer bounded by budgetKibibytes.
func NewDomain(id int, name, counterUjPath string, budgetKibibytes uint16) *Domain {
	return NewDomainWithReader(id, name, counterUjPath, fileCounterReader(counterUjPath), budgetKibibytes)
}

// NewDomainWithReader is like NewDomain but takes an arbitrary reader,
// used by the MSR sensor to back a Domain with a register read instead
// of a sysfs file read. CounterUjPath is kept for display/debugging even
// when the reader doesn't use it.
func NewDomainWithReader(id int, name, counterUjPath string, read counterReader, budgetKibibytes uint16) *Domain {
	return &Domain{
		ID:            id,
		Name:          name,
		CounterUjPath: counterUjPath,
		read:          read,
		buffer:        newRecordBuffer(budgetKibibytes),
	}
}

// refreshRecord reads the counter, pushes a new MicroJoule Record
// timestamped at the current instant, and trims the buffer. A read
// failure is reported rather than panicking, leaving the buffer
// unchanged for this tick.
func (d *Domain) refreshRecord() error {
	value, timestamp, err := d.read()
	if err != nil {
		return &CounterReadFailedError{Path: d.CounterUjPath, Err: err}
	}
	d.buffer.push(NewRecord(timestamp, value, MicroJoule))
	return nil
}

// powerDiff computes the MicroWatt Record derived from the two most
// recently buffered readings. It returns false if fewer than two
// readings exist, if the values failed to parse, or if the counter
// appears to have wrapped (the newer reading is smaller). Two equal
// readings yield a 0 microwatt Record.
func (d *Domain) powerDiff() (Record, bool) {
	return recordBufferPowerDiff(d.buffer)
}

// records returns a copy of the buffered history, oldest first.
func (d *Domain) records() []Record {
	return d.buffer.all()
}

// recordBufferPowerDiff implements the §4.2/§4.4 power-differential law
// shared by Domain, CPUSocket and Topology: given the two most recent
// buffered Records, derive a MicroWatt Record from the energy delta over
// the elapsed wall-clock time. A counter value that decreased (a wrap or
// reset) yields "no reading" rather than a negative or nonsensical delta;
// an unchanged value yields 0 microwatts.
func recordBufferPowerDiff(b *recordBuffer) (Record, bool) {
	last, ok := b.latest()
	if !ok {
		return Record{}, false
	}
	previous, ok := b.previous()
	if !ok {
		return Record{}, false
	}

	lastValue, err := last.UintValue()
	if err != nil {
		return Record{}, false
	}
	previousValue, err := previous.UintValue()
	if err != nil {
		return Record{}, false
	}
	if previousValue > lastValue {
		return Record{}, false
	}

	elapsedSeconds := last.Timestamp.Sub(previous.Timestamp).Seconds()
	if elapsedSeconds <= 0 {
		return NewRecord(last.Timestamp, "0", MicroWatt), true
	}

	deltaUj := float64(lastValue - previousValue)
	microwatts := uint64(deltaUj / elapsedSeconds)
	return NewRecord(last.Timestamp, strconv.FormatUint(microwatts, 10), MicroWatt), true
}

func (d *Domain) String() string {
	return fmt.Sprintf("domain %d (%s) at %s", d.ID, d.Name, d.CounterUjPath)
}
