// SPDX-License-Identifier: Apache-2.0

// Package checksum computes the stable CRC32 checksum used to detect
// whether an on-disk migration script has changed since it was applied.
package checksum

import (
	"hash/crc32"
	"strings"
)

// Of returns the checksum of a script body. Line endings are normalized
// (CRLF -> LF) and a single trailing newline is stripped before hashing, so
// that checking a file out on a different platform, or an editor adding a
// final newline, does not change the checksum. The algorithm is fixed for
// life: changing it invalidates every checksum already stored in a
// schema_history table.
func Of(body string) int32 {
	normalized := normalize(body)
	return int32(crc32.ChecksumIEEE([]byte(normalized)))
}

func normalize(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.TrimSuffix(body, "\n")
	return body
}
