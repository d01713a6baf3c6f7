// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"fmt"

	"github.com/hubblo-org/scaphandre/internal/log"
)

const (
	defaultBufferPerSocketMaxKbytes  uint16 = 1024
	defaultBufferPerDomainMaxKbytes  uint16 = 1024
	defaultBufferGlobalStatMaxKbytes uint16 = 1024
)

// meterBuilder enables piecewise construction of a Meter. Implements
// the functional options pattern.
type meterBuilder struct {
	sensor           Sensor
	maxRecordsPerPID int

	bufferPerSocketMaxKbytes  uint16
	bufferPerDomainMaxKbytes  uint16
	bufferGlobalStatMaxKbytes uint16
}

// Option configures a Meter built by New.
type Option func(*meterBuilder)

// WithSensor overrides the default platform sensor. Without this
// option, New selects the powercap sensor, falling back to MSR if
// powercap's Probe reports Unavailable.
func WithSensor(s Sensor) Option {
	return func(b *meterBuilder) {
		b.sensor = s
	}
}

// WithLogger installs l as the package-wide logger used by every
// component under this module.
func WithLogger(l log.Logger) Option {
	return func(b *meterBuilder) {
		log.SetLogger(l)
	}
}

// WithMaxRecordsPerPID overrides the per-process history depth kept by
// the process tracker of the sensor New builds by default. A Sensor
// supplied through WithSensor keeps its own setting.
func WithMaxRecordsPerPID(n int) Option {
	return func(b *meterBuilder) {
		b.maxRecordsPerPID = n
	}
}

// WithBufferBudgetKB sets the byte budget, in kibibytes, applied to
// every record/stat buffer of the sensor New builds by default:
// per-socket, per-domain and the global stats history alike. A Sensor
// supplied through WithSensor keeps its own budgets.
func WithBufferBudgetKB(kb uint16) Option {
	return func(b *meterBuilder) {
		b.bufferPerSocketMaxKbytes = kb
		b.bufferPerDomainMaxKbytes = kb
		b.bufferGlobalStatMaxKbytes = kb
	}
}

// Meter is the top-level handle on a running metering session: a
// Topology populated by whichever Sensor proved available at New time.
type Meter struct {
	Topology *Topology
}

// New probes for an available Sensor (the one supplied via WithSensor,
// or the host's native one otherwise) and uses it to populate a
// Topology. It returns a CounterUnavailableError-wrapping error if no
// sensor is usable on this host.
func New(opts ...Option) (*Meter, error) {
	b := &meterBuilder{
		maxRecordsPerPID:          defaultMaxRecordsPerPID,
		bufferPerSocketMaxKbytes:  defaultBufferPerSocketMaxKbytes,
		bufferPerDomainMaxKbytes:  defaultBufferPerDomainMaxKbytes,
		bufferGlobalStatMaxKbytes: defaultBufferGlobalStatMaxKbytes,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.sensor == nil {
		b.sensor = NewPowercapSensor(b.bufferPerSocketMaxKbytes, b.bufferPerDomainMaxKbytes, b.bufferGlobalStatMaxKbytes, b.maxRecordsPerPID)
		if avail, err := b.sensor.Probe(); err != nil || avail != Available {
			log.Warnf("powercap sensor unavailable, falling back to msr: %v", err)
			b.sensor = NewMsrSensor(b.bufferPerSocketMaxKbytes, b.bufferPerDomainMaxKbytes, b.bufferGlobalStatMaxKbytes, b.maxRecordsPerPID)
		}
	}

	if avail, err := b.sensor.Probe(); avail != Available {
		return nil, fmt.Errorf("no usable power sensor on this host: %w", err)
	}

	topo, err := b.sensor.GenerateTopology()
	if err != nil {
		return nil, fmt.Errorf("failed to generate topology: %w", err)
	}

	log.Infof("topology generated: %d socket(s), domains %v", len(topo.Sockets()), topo.DomainNames())

	return &Meter{Topology: topo}, nil
}

// Refresh runs one metering tick over the Meter's Topology.
func (m *Meter) Refresh() error {
	return m.Topology.refresh()
}

// Snapshot returns the Exporter-facing view of the Meter's current
// state. See Topology.Snapshot for field semantics.
func (m *Meter) Snapshot(topConsumers int, selfPID int) Snapshot {
	return m.Topology.Snapshot(topConsumers, selfPID)
}
