// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package version

import (
	"fmt"
	"strings"
)

// Set via LDFLAGS -X.
var (
	LibName = "scaphandre"
	Version = "unknown"
	Branch  = ""
	Commit  = ""
)

func GetFullVersion() string {
	var parts = []string{LibName}

	if Version != "" {
		parts = append(parts, Version)
	} else {
		parts = append(parts, "unknown")
	}

	if Branch != "" || Commit != "" {
		if Branch == "" {
			Branch = "unknown"
		}
		if Commit == "" {
			Commit = "unknown"
		}
		git := fmt.Sprintf("(git: %s@%s)", Branch, Commit)
		parts = append(parts, git)
	}

	return strings.Join(parts, " ")
}
