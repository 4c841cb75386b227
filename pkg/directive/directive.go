// SPDX-License-Identifier: Apache-2.0

// Package directive extracts waypoint: directives from the leading
// comment block of a migration script.
package directive

import (
	"strings"
)

const prefix = "-- waypoint:"

// Raw is a single parsed directive line: its name, the comma-separated,
// trimmed argument list, and the untouched remainder of the line (useful
// for directives like require/ensure whose single "argument" is a guard
// expression that may itself contain commas).
type Raw struct {
	Name string
	Args []string
	Rest string
}

// Parse scans the leading comment block of body (consecutive lines that are
// either blank or start with "--") and returns every "-- waypoint:<name>
// <args>" directive found, stopping at the first non-empty, non-comment
// line.
func Parse(body string) []Raw {
	var directives []Raw

	lines := strings.Split(body, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "--") {
			break
		}
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}

		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		name, args, _ := strings.Cut(rest, " ")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		var argList []string
		for _, a := range strings.Split(args, ",") {
			a = strings.TrimSpace(a)
			if a != "" {
				argList = append(argList, a)
			}
		}

		directives = append(directives, Raw{Name: name, Args: argList, Rest: strings.TrimSpace(args)})
	}

	return directives
}
