// SPDX-License-Identifier: Apache-2.0

// Package placeholder substitutes ${key} tokens in script bodies.
package placeholder

import (
	"fmt"
	"sort"
	"strings"
)

// NotFoundError is returned when a script references an unknown
// placeholder key.
type NotFoundError struct {
	Key       string
	KnownKeys []string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("placeholder %q not found; known placeholders: %s", e.Key, strings.Join(e.KnownKeys, ", "))
}

// Builtins are the placeholders that are always defined, regardless of
// user-supplied values.
type Builtins struct {
	Schema    string
	User      string
	Database  string
	Filename  string
	Timestamp string
}

// Substitute replaces every ${key} token in body with the value of key
// looked up case-insensitively in values, merged with the builtins. Matches
// inside dollar-quoted regions ($$...$$ or $tag$...$tag$) are left
// untouched. An unknown key returns a NotFoundError listing every known
// key.
func Substitute(body string, values map[string]string, builtins Builtins) (string, error) {
	merged := make(map[string]string, len(values)+5)
	for k, v := range values {
		merged[strings.ToLower(k)] = v
	}
	merged["waypoint:schema"] = builtins.Schema
	merged["waypoint:user"] = builtins.User
	merged["waypoint:database"] = builtins.Database
	merged["waypoint:filename"] = builtins.Filename
	merged["waypoint:timestamp"] = builtins.Timestamp

	known := make([]string, 0, len(merged))
	for k := range merged {
		known = append(known, k)
	}
	sort.Strings(known)

	var out strings.Builder
	i := 0
	n := len(body)

	for i < n {
		if end, ok := dollarQuoteAt(body, i); ok {
			out.WriteString(body[i:end])
			i = end
			continue
		}

		if body[i] == '$' && i+1 < n && body[i+1] == '{' {
			close := strings.IndexByte(body[i+2:], '}')
			if close != -1 {
				key := body[i+2 : i+2+close]
				val, ok := merged[strings.ToLower(key)]
				if !ok {
					return "", NotFoundError{Key: key, KnownKeys: known}
				}
				out.WriteString(val)
				i = i + 2 + close + 1
				continue
			}
		}

		out.WriteByte(body[i])
		i++
	}

	return out.String(), nil
}

// dollarQuoteAt reports whether body[i] begins a dollar-quoted block and,
// if so, returns the index just past its end.
func dollarQuoteAt(body string, i int) (int, bool) {
	if body[i] != '$' {
		return 0, false
	}

	j := i + 1
	tagStart := j
	for j < len(body) {
		c := body[j]
		if c == '$' {
			tag := body[i : j+1]
			closeIdx := strings.Index(body[j+1:], tag)
			if closeIdx == -1 {
				return len(body), true
			}
			return j + 1 + closeIdx + len(tag), true
		}
		isTagChar := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (j > tagStart && c >= '0' && c <= '9')
		if !isTagChar {
			return 0, false
		}
		j++
	}
	return 0, false
}
