// SPDX-License-Identifier: Apache-2.0

package testutils

// Postgres SQLSTATE condition names, for tests asserting that a safety
// block or guard failure surfaces the underlying constraint violation.
const (
	CheckViolationErrorCode   string = "check_violation"
	FKViolationErrorCode      string = "foreign_key_violation"
	NotNullViolationErrorCode string = "not_null_violation"
	UniqueViolationErrorCode  string = "unique_violation"
)
