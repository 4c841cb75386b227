// SPDX-License-Identifier: Apache-2.0

package migration

import (
	"fmt"
	"strings"

	"github.com/waypointdb/waypoint/pkg/directive"
)

// parseDirectives converts the raw "-- waypoint:" comment lines found in a
// script body into a Directives value.
func parseDirectives(body string) (Directives, error) {
	var d Directives

	for _, raw := range directive.Parse(body) {
		switch raw.Name {
		case "depends":
			for _, a := range raw.Args {
				a = strings.TrimPrefix(strings.TrimSpace(a), "V")
				v, err := ParseVersion(a)
				if err != nil {
					return Directives{}, fmt.Errorf("waypoint:depends: %w", err)
				}
				d.Depends = append(d.Depends, v)
			}
		case "env":
			for _, a := range raw.Args {
				d.Env = append(d.Env, strings.ToLower(strings.TrimSpace(a)))
			}
		case "require":
			if raw.Rest != "" {
				d.Require = append(d.Require, raw.Rest)
			}
		case "ensure":
			if raw.Rest != "" {
				d.Ensure = append(d.Ensure, raw.Rest)
			}
		case "safety-override":
			d.SafetyOverride = true
		}
	}

	return d, nil
}

// MatchesEnv reports whether the script's env directive (if any) permits
// running in the given environment. An empty env directive list means the
// script runs in every environment. Comparison is case-insensitive.
func (d Directives) MatchesEnv(env string) bool {
	if len(d.Env) == 0 {
		return true
	}
	env = strings.ToLower(env)
	for _, e := range d.Env {
		if e == env {
			return true
		}
	}
	return false
}
