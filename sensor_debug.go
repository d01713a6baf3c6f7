// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"strconv"
	"time"

	"github.com/prometheus/procfs"
)

// DebugSensor is an in-memory fake with no platform dependencies: it
// always reports Available and builds a single socket/domain pair whose
// counter reader returns a fixed, always-increasing value. Tests use it
// to exercise Topology/Socket/Domain refresh behaviour without real
// sysfs or MSR access.
type DebugSensor struct {
	bufferPerSocketMaxKbytes uint16
	procfsPath               string
	startValue               uint64
	increment                uint64
}

// NewDebugSensor builds a DebugSensor whose socket and domain counters
// both start at startValue and advance by increment on every read, each
// tracked independently.
func NewDebugSensor(bufferPerSocketMaxKbytes uint16, procfsPath string, startValue, increment uint64) *DebugSensor {
	return &DebugSensor{
		bufferPerSocketMaxKbytes: bufferPerSocketMaxKbytes,
		procfsPath:               procfsPath,
		startValue:               startValue,
		increment:                increment,
	}
}

// debugCounter is a simple monotonically-advancing reader used by both
// the socket-level and domain-level debug counters, independently seeded.
type debugCounter struct {
	value     uint64
	increment uint64
}

func (c *debugCounter) next() (string, time.Time, error) {
	c.value += c.increment
	return strconv.FormatUint(c.value, 10), timeNowFn(), nil
}

// Probe always reports Available: the debug sensor has no platform
// dependency to fail on.
func (s *DebugSensor) Probe() (Availability, error) {
	return Available, nil
}

// GenerateTopology builds a single socket (id 1234) with a single
// "debug domain" (id 4321), matching the shape of the fixed fake socket
// used elsewhere in this domain's test fixtures.
func (s *DebugSensor) GenerateTopology() (*Topology, error) {
	fs, err := procfs.NewFS(s.procfsPath)
	if err != nil {
		return nil, &CounterUnavailableError{Reason: err.Error()}
	}
	topo := NewTopology(fs, s.bufferPerSocketMaxKbytes, s.bufferPerSocketMaxKbytes, defaultMaxRecordsPerPID)

	socketCounter := &debugCounter{value: s.startValue, increment: s.increment}
	domainCounter := &debugCounter{value: s.startValue, increment: s.increment}

	socket := NewCPUSocketWithReader(1234, "debug socket uj_counter", socketCounter.next, s.bufferPerSocketMaxKbytes, s.bufferPerSocketMaxKbytes)
	topo.safeAddSocket(socket)
	socket.safeAddDomain(NewDomainWithReader(4321, "debug domain", "debug domain uj_counter", domainCounter.next, s.bufferPerSocketMaxKbytes))

	return topo, nil
}
