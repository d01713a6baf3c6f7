// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scaphandre

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const powercapBasePath = "/sys/class/powercap"

var domainFolderPattern = regexp.MustCompile(`^intel-rapl:(\d+):(\d+)$`)

// PowercapSensor discovers topology through the Linux powercap sysfs
// tree rooted at /sys/class/powercap, the kernel's native exposure of
// Intel RAPL-style counters.
type PowercapSensor struct {
	basePath                  string
	bufferPerSocketMaxKbytes  uint16
	bufferPerDomainMaxKbytes  uint16
	bufferGlobalStatMaxKbytes uint16
	maxRecordsPerPID          int
}

// NewPowercapSensor builds a PowercapSensor rooted at the conventional
// sysfs powercap path.
func NewPowercapSensor(bufferPerSocketMaxKbytes, bufferPerDomainMaxKbytes, bufferGlobalStatMaxKbytes uint16, maxRecordsPerPID int) *PowercapSensor {
	return &PowercapSensor{
		basePath:                  powercapBasePath,
		bufferPerSocketMaxKbytes:  bufferPerSocketMaxKbytes,
		bufferPerDomainMaxKbytes:  bufferPerDomainMaxKbytes,
		bufferGlobalStatMaxKbytes: bufferGlobalStatMaxKbytes,
		maxRecordsPerPID:          maxRecordsPerPID,
	}
}

// Probe reports Available if the intel_rapl kernel modules that expose
// the powercap counters are loaded.
func (s *PowercapSensor) Probe() (Availability, error) {
	loaded, err := raplModulesLoaded("/proc/modules")
	if err != nil {
		return Unavailable, &CounterUnavailableError{Reason: err.Error()}
	}
	if !loaded {
		return Unavailable, &CounterUnavailableError{Reason: "intel_rapl_msr/intel_rapl_common kernel modules not found"}
	}
	return Available, nil
}

// raplModulesLoaded scans a /proc/modules-formatted file for either of
// the two module names that expose RAPL counters through powercap.
func raplModulesLoaded(modulesPath string) (bool, error) {
	f, err := os.Open(modulesPath)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "intel_rapl_msr" || fields[0] == "intel_rapl_common" {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// GenerateTopology scans basePath for intel-rapl:<socket>:<domain>
// directories, registering one socket per distinct <socket> and one
// domain per <socket>:<domain> pair, then attaches CPU cores from
// /proc/cpuinfo.
func (s *PowercapSensor) GenerateTopology() (*Topology, error) {
	if avail, err := s.Probe(); avail != Available {
		return nil, err
	}

	fs, err := newProcfsFS()
	if err != nil {
		return nil, &CounterUnavailableError{Reason: err.Error()}
	}
	topo := NewTopology(fs, s.bufferPerSocketMaxKbytes, s.bufferGlobalStatMaxKbytes, s.maxRecordsPerPID)

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, &CounterUnavailableError{Reason: err.Error()}
	}

	for _, entry := range entries {
		m := domainFolderPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		socketID, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		domainID, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}

		socket, ok := topo.sockets[socketID]
		if !ok {
			socket = NewCPUSocket(socketID, filepath.Join(s.basePath, fmt.Sprintf("intel-rapl:%d", socketID), "energy_uj"), s.bufferPerSocketMaxKbytes, s.bufferGlobalStatMaxKbytes)
			topo.safeAddSocket(socket)
		}

		namePath := filepath.Join(s.basePath, entry.Name(), "name")
		nameBytes, err := readFile(namePath)
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(nameBytes))
		counterPath := filepath.Join(s.basePath, entry.Name(), "energy_uj")
		socket.safeAddDomain(NewDomain(domainID, name, counterPath, s.bufferPerDomainMaxKbytes))
	}

	cores, err := generateCPUCores(defaultCPUInfoPath)
	if err == nil {
		assignCoresToSockets(topo, cores)
	}

	return topo, nil
}
