// SPDX-License-Identifier: Apache-2.0

// Package migration holds the core data model for resolved migration
// scripts: versions, kinds, directives and the filename grammar that
// derives them.
package migration

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a dotted-numeric migration version such as "1", "1.0" or
// "2.1.3". It is parsed into a sequence of non-negative integers for
// ordering purposes.
//
// Trailing-zero normalization: "1" and "1.0" are considered equal, matching
// the behaviour of the reference implementation this engine's directory
// layout is modeled on. A version string always round-trips through String
// in its normalized (trailing-zeros-stripped) form.
type Version struct {
	raw  string
	segs []int
}

// ParseVersion parses a dotted-numeric version string.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimPrefix(s, "V")
	s = strings.TrimPrefix(s, "v")
	if s == "" {
		return Version{}, fmt.Errorf("version: empty version string")
	}

	parts := strings.Split(s, ".")
	segs := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("version: invalid component %q in %q", p, s)
		}
		segs[i] = n
	}

	return Version{raw: s, segs: normalize(segs)}, nil
}

// MustParseVersion is like ParseVersion but panics on error. Intended for
// tests and compile-time constants.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// normalize strips trailing zero components, but always keeps at least one
// component so "0" parses to [0] rather than [].
func normalize(segs []int) []int {
	end := len(segs)
	for end > 1 && segs[end-1] == 0 {
		end--
	}
	return segs[:end]
}

// String renders the normalized dotted form, e.g. Version{1,0} -> "1".
func (v Version) String() string {
	parts := make([]string, len(v.segs))
	for i, s := range v.segs {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ".")
}

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater than
// other, comparing the integer sequences lexicographically after
// trailing-zero normalization. Missing trailing components compare as 0.
func (v Version) Compare(other Version) int {
	n := len(v.segs)
	if len(other.segs) > n {
		n = len(other.segs)
	}
	for i := 0; i < n; i++ {
		var a, b int
		if i < len(v.segs) {
			a = v.segs[i]
		}
		if i < len(other.segs) {
			b = other.segs[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (v Version) Equal(other Version) bool  { return v.Compare(other) == 0 }
func (v Version) Less(other Version) bool   { return v.Compare(other) < 0 }
func (v Version) LessEq(other Version) bool { return v.Compare(other) <= 0 }

// IsZero reports whether v is the zero value (never produced by
// ParseVersion; used as a sentinel for "no version").
func (v Version) IsZero() bool { return v.segs == nil }

// SortVersions sorts versions ascending in place.
func SortVersions(vs []Version) {
	// insertion sort: migration lists are small, and this keeps the
	// ordering stable for equal versions.
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && vs[j].Less(vs[j-1]); j-- {
			vs[j], vs[j-1] = vs[j-1], vs[j]
		}
	}
}
