// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	msrDevicePath         = "/dev/cpu/%d/msr"
	msrRaplPowerUnit      = 0x606
	msrPkgEnergyStatus    = 0x611
	msrDramEnergyStatus   = 0x619
	msrPP0EnergyStatus    = 0x639
	energyStatusUnitMask  = 0x1F00
	energyStatusUnitShift = 8
)

// msrPackage is one physical package's MSR-backed reading context: the
// representative logical CPU to read registers from, and the energy
// unit (joules per LSB of the energy-status registers) decoded once
// from MSR_RAPL_POWER_UNIT at discovery time.
type msrPackage struct {
	id             int
	representative int
	energyUnitJ    float64
}

// MsrSensor discovers topology by reading Intel RAPL energy-status MSRs
// directly through /dev/cpu/<n>/msr, for platforms or kernels where the
// powercap sysfs tree isn't exposed.
type MsrSensor struct {
	bufferPerSocketMaxKbytes  uint16
	bufferPerDomainMaxKbytes  uint16
	bufferGlobalStatMaxKbytes uint16
	maxRecordsPerPID          int
}

// NewMsrSensor builds an MsrSensor with the given buffer budgets.
func NewMsrSensor(bufferPerSocketMaxKbytes, bufferPerDomainMaxKbytes, bufferGlobalStatMaxKbytes uint16, maxRecordsPerPID int) *MsrSensor {
	return &MsrSensor{
		bufferPerSocketMaxKbytes:  bufferPerSocketMaxKbytes,
		bufferPerDomainMaxKbytes:  bufferPerDomainMaxKbytes,
		bufferGlobalStatMaxKbytes: bufferGlobalStatMaxKbytes,
		maxRecordsPerPID:          maxRecordsPerPID,
	}
}

// Probe reports Available if cpu 0's MSR device can be opened for
// reading, which on Linux requires both the msr kernel module and
// CAP_SYS_RAWIO (or root).
func (s *MsrSensor) Probe() (Availability, error) {
	path := fmt.Sprintf(msrDevicePath, 0)
	f, err := os.Open(path)
	if err != nil {
		return Unavailable, &CounterUnavailableError{Reason: err.Error()}
	}
	f.Close()
	return Available, nil
}

// GenerateTopology enumerates one package per distinct physical id found
// in /proc/cpuinfo, probes each package's MSR_RAPL_POWER_UNIT register
// concurrently (a bounded, synchronous fan-out completed before this
// call returns — it does not violate the single-threaded refresh model,
// since no background work survives past GenerateTopology), and wires a
// package-energy domain backed by MSR_PKG_ENERGY_STATUS for each one.
func (s *MsrSensor) GenerateTopology() (*Topology, error) {
	if avail, err := s.Probe(); avail != Available {
		return nil, err
	}

	cores, err := generateCPUCores(defaultCPUInfoPath)
	if err != nil {
		return nil, &CounterUnavailableError{Reason: err.Error()}
	}

	representative := make(map[int]int)
	for _, core := range cores {
		pkg, ok := core.PhysicalPackageID()
		if !ok {
			continue
		}
		if _, seen := representative[pkg]; !seen {
			representative[pkg] = core.ID
		}
	}

	packages := make([]*msrPackage, 0, len(representative))
	for pkg, cpu := range representative {
		packages = append(packages, &msrPackage{id: pkg, representative: cpu})
	}

	group := new(errgroup.Group)
	for _, pkg := range packages {
		pkg := pkg
		group.Go(func() error {
			unit, err := readMSR(pkg.representative, msrRaplPowerUnit)
			if err != nil {
				return err
			}
			pkg.energyUnitJ = energyUnitJoules(unit)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, &CounterUnavailableError{Reason: err.Error()}
	}

	fs, err := newProcfsFS()
	if err != nil {
		return nil, &CounterUnavailableError{Reason: err.Error()}
	}
	topo := NewTopology(fs, s.bufferPerSocketMaxKbytes, s.bufferGlobalStatMaxKbytes, s.maxRecordsPerPID)

	for _, pkg := range packages {
		pkg := pkg
		path := fmt.Sprintf(msrDevicePath, pkg.representative)
		socket := NewCPUSocketWithReader(pkg.id, path,
			msrCounterReader(pkg, msrPkgEnergyStatus),
			s.bufferPerSocketMaxKbytes, s.bufferGlobalStatMaxKbytes)
		topo.safeAddSocket(socket)
		socket.safeAddDomain(NewDomainWithReader(0, "package", path,
			msrCounterReader(pkg, msrPkgEnergyStatus), s.bufferPerDomainMaxKbytes))
		socket.safeAddDomain(NewDomainWithReader(1, "dram", path,
			msrCounterReader(pkg, msrDramEnergyStatus), s.bufferPerDomainMaxKbytes))
		socket.safeAddDomain(NewDomainWithReader(2, "core", path,
			msrCounterReader(pkg, msrPP0EnergyStatus), s.bufferPerDomainMaxKbytes))
	}

	assignCoresToSockets(topo, cores)

	return topo, nil
}

// msrCounterReader builds a counterReader that reads offset from pkg's
// representative CPU's MSR device and scales the raw register value
// into a cumulative microjoule count using the package's energy unit.
func msrCounterReader(pkg *msrPackage, offset int64) counterReader {
	return func() (string, time.Time, error) {
		raw, err := readMSR(pkg.representative, offset)
		if err != nil {
			return "", time.Time{}, err
		}
		microjoules := uint64(float64(raw) * pkg.energyUnitJ * 1e6)
		return strconv.FormatUint(microjoules, 10), timeNowFn(), nil
	}
}

// energyUnitJoules decodes the energy-status unit field (bits 8:12) of
// MSR_RAPL_POWER_UNIT: joules per LSB of an energy-status register is
// 1 / 2^ESU.
func energyUnitJoules(raplPowerUnit uint64) float64 {
	esu := (raplPowerUnit & energyStatusUnitMask) >> energyStatusUnitShift
	return 1.0 / float64(uint64(1)<<esu)
}

// readMSR reads the 8-byte little-endian register at offset from the
// given logical CPU's MSR device.
func readMSR(cpu int, offset int64) (uint64, error) {
	path := fmt.Sprintf(msrDevicePath, cpu)
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, 8)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return 0, fmt.Errorf("reading msr %#x on cpu %d: %w", offset, cpu, err)
	}
	return binary.LittleEndian.Uint64(buf), nil
}
