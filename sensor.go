// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

// Availability is the result of a Sensor's startup probe.
type Availability int

const (
	Unavailable Availability = iota
	Available
)

// Sensor is a platform adapter: it discovers a host's power-measurement
// topology and produces an initialized Topology with empty history
// buffers. Concrete variants exist for the Linux powercap sysfs tree, for
// direct MSR reads, and an in-memory fake used by tests.
type Sensor interface {
	// Probe reports whether this platform exposes the counters the
	// sensor needs, without allocating a Topology.
	Probe() (Availability, error)
	// GenerateTopology enumerates sockets, domains and cores and
	// returns a populated Topology with empty buffers.
	GenerateTopology() (*Topology, error)
}

// defaultCPUInfoPath is the conventional location of the kernel's
// per-logical-processor info, used to build CPUCore entries.
const defaultCPUInfoPath = "/proc/cpuinfo"

// assignCoresToSockets attaches each discovered core to the socket whose
// id matches the core's "physical id" attribute. Cores whose socket
// hasn't been registered (or that carry no physical id at all) are
// skipped, matching the sysfs variant's behaviour of only tracking
// sockets it found counters for.
func assignCoresToSockets(topo *Topology, cores []CPUCore) {
	for _, core := range cores {
		pkg, ok := core.PhysicalPackageID()
		if !ok {
			continue
		}
		for _, s := range topo.Sockets() {
			if s.ID == pkg {
				s.addCore(core)
				break
			}
		}
	}
}
