// SPDX-License-Identifier: Apache-2.0

// Package sqlsegment splits a SQL script into its top-level statements,
// treating ';' as a statement delimiter except where it appears inside a
// string literal, a comment, or a dollar-quoted block. Every other
// SQL-aware component in this module (the DDL classifier, the safety
// analyzer, batch pre-validation) depends on this segmenter being correct.
package sqlsegment

import "strings"

// Split returns the non-empty, trimmed top-level statements of sql. The
// delimiter ';' is treated literally inside:
//   - single-quoted strings, with '' as the escape for an embedded quote
//   - E-strings (E'...'), with \ as the escape character
//   - line comments (-- ... end of line)
//   - block comments (/* ... */), which nest
//   - dollar-quoted blocks ($$...$$ or $tag$...$tag$)
//
// Segmentation is byte-level: it never looks ahead further than is needed
// to recognize the start of one of the above regions.
func Split(sql string) []string {
	var statements []string
	var current strings.Builder

	i := 0
	n := len(sql)
	blockCommentDepth := 0

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			statements = append(statements, s)
		}
		current.Reset()
	}

	for i < n {
		c := sql[i]

		// Block comment (nesting).
		if blockCommentDepth == 0 && c == '/' && i+1 < n && sql[i+1] == '*' {
			blockCommentDepth++
			current.WriteString("/*")
			i += 2
			continue
		}
		if blockCommentDepth > 0 {
			if c == '/' && i+1 < n && sql[i+1] == '*' {
				blockCommentDepth++
				current.WriteString("/*")
				i += 2
				continue
			}
			if c == '*' && i+1 < n && sql[i+1] == '/' {
				blockCommentDepth--
				current.WriteString("*/")
				i += 2
				continue
			}
			current.WriteByte(c)
			i++
			continue
		}

		// Line comment.
		if c == '-' && i+1 < n && sql[i+1] == '-' {
			end := strings.IndexByte(sql[i:], '\n')
			if end == -1 {
				current.WriteString(sql[i:])
				i = n
			} else {
				current.WriteString(sql[i : i+end+1])
				i += end + 1
			}
			continue
		}

		// E-string.
		if (c == 'E' || c == 'e') && i+1 < n && sql[i+1] == '\'' {
			end := i + 2
			for end < n {
				if sql[end] == '\\' && end+1 < n {
					end += 2
					continue
				}
				if sql[end] == '\'' {
					end++
					break
				}
				end++
			}
			current.WriteString(sql[i:end])
			i = end
			continue
		}

		// Single-quoted string, '' escape.
		if c == '\'' {
			end := i + 1
			for end < n {
				if sql[end] == '\'' {
					if end+1 < n && sql[end+1] == '\'' {
						end += 2
						continue
					}
					end++
					break
				}
				end++
			}
			current.WriteString(sql[i:end])
			i = end
			continue
		}

		// Dollar-quoted block: $$ ... $$ or $tag$ ... $tag$.
		if c == '$' {
			if tagEnd, ok := findDollarTagEnd(sql, i); ok {
				tag := sql[i : tagEnd+1]
				closeIdx := strings.Index(sql[tagEnd+1:], tag)
				var end int
				if closeIdx == -1 {
					end = n
				} else {
					end = tagEnd + 1 + closeIdx + len(tag)
				}
				current.WriteString(sql[i:end])
				i = end
				continue
			}
		}

		if c == ';' {
			flush()
			i++
			continue
		}

		current.WriteByte(c)
		i++
	}

	flush()

	return statements
}

// findDollarTagEnd finds the index of the closing '$' of a dollar-quote
// opening tag starting at sql[start] (which must be '$'). The tag body
// (between the two '$'s) must be empty or a valid identifier
// ([A-Za-z_][A-Za-z0-9_]*).
func findDollarTagEnd(sql string, start int) (int, bool) {
	i := start + 1
	if i < len(sql) && sql[i] == '$' {
		return i, true
	}
	tagStart := i
	for i < len(sql) {
		c := sql[i]
		isTagChar := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > tagStart && c >= '0' && c <= '9')
		if c == '$' {
			if i > tagStart {
				return i, true
			}
			return 0, false
		}
		if !isTagChar {
			return 0, false
		}
		i++
	}
	return 0, false
}
