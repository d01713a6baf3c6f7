// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	scaphandre "github.com/hubblo-org/scaphandre"
)

// stdoutExporter prints one line per socket/domain and per top
// consumer for every tick, plus a host summary line. It is the
// simplest possible scaphandre.Exporter and exists so the CLI has
// working output without depending on a metrics backend.
type stdoutExporter struct {
	out io.Writer
}

func (e *stdoutExporter) Export(snapshot scaphandre.Snapshot) error {
	host := "unknown"
	if snapshot.HostPowerMicrowatts != nil {
		host = fmt.Sprintf("%d uW", *snapshot.HostPowerMicrowatts)
	}
	fmt.Fprintf(e.out, "host: %s power, %d socket(s), %d process(es) tracked\n",
		host, snapshot.SocketCount, snapshot.TrackedProcessCount)

	for _, id := range sortedSocketIDs(snapshot.Sockets) {
		view := snapshot.Sockets[id]
		power := "unknown"
		if view.PowerUw != nil {
			power = fmt.Sprintf("%d uW", *view.PowerUw)
		}
		fmt.Fprintf(e.out, "  socket %d: %s, %d uJ cumulative\n", id, power, mustUint(view.EnergyUj))

		for _, name := range sortedDomainNames(view.Domains) {
			dv := view.Domains[name]
			dpower := "unknown"
			if dv.PowerUw != nil {
				dpower = fmt.Sprintf("%d uW", *dv.PowerUw)
			}
			fmt.Fprintf(e.out, "    domain %s: %s\n", name, dpower)
		}
	}

	for _, c := range snapshot.TopConsumers {
		fmt.Fprintf(e.out, "  pid %d (%s): %d uW, %.2f%% cpu\n", c.PID, c.Exe, c.PowerUw, c.CPUPercent)
	}

	if snapshot.SelfCPUPercent != nil {
		rss := "unknown"
		if snapshot.SelfRSSBytes != nil {
			rss = fmt.Sprintf("%d bytes", *snapshot.SelfRSSBytes)
		}
		fmt.Fprintf(e.out, "  self: %.2f%% cpu, rss %s\n", *snapshot.SelfCPUPercent, rss)
	}

	return nil
}

func sortedSocketIDs(sockets map[int]scaphandre.SocketView) []int {
	ids := make([]int, 0, len(sockets))
	for id := range sockets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func sortedDomainNames(domains map[string]scaphandre.DomainView) []string {
	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mustUint(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}
