// SPDX-License-Identifier: Apache-2.0

package migration

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/waypointdb/waypoint/pkg/checksum"
)

// filenameGrammar matches V<version>__<description>.sql,
// R__<description>.sql and U<version>__<description>.sql.
var filenameGrammar = regexp.MustCompile(`^([VUR])([0-9]+(?:\.[0-9]+)*)?__([^.]+)\.sql$`)

// Hook phase filenames, recognized verbatim and excluded from scanning.
var hookFilenames = map[string]bool{
	"beforeMigrate.sql":      true,
	"afterMigrate.sql":       true,
	"beforeEachMigrate.sql":  true,
	"afterEachMigrate.sql":   true,
}

// Scan walks every configured location recursively, classifies each .sql
// file, and returns the resulting ResolvedMigrations (never including hook
// scripts). Scanning is deterministic: files are returned grouped by kind,
// versioned and undo files sorted by version and repeatables by filename,
// and duplicate versioned/undo versions
// abort the scan with a DuplicateVersionError.
func Scan(dirs []fs.FS) ([]*ResolvedMigration, error) {
	var all []*ResolvedMigration

	for _, dir := range dirs {
		files, err := listSQLFiles(dir)
		if err != nil {
			return nil, err
		}

		for _, name := range files {
			base := filepath.Base(name)
			if hookFilenames[base] {
				continue
			}

			m, ok, err := parseFile(dir, name)
			if err != nil {
				return nil, err
			}
			if !ok {
				// A name outside the V/U/R grammar is a helper file: ignore.
				continue
			}
			all = append(all, m)
		}
	}

	if err := checkDuplicateVersions(all); err != nil {
		return nil, err
	}

	sortResolved(all)

	return all, nil
}

func listSQLFiles(dir fs.FS) ([]string, error) {
	var files []string
	err := fs.WalkDir(dir, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".sql") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func parseFile(dir fs.FS, path string) (*ResolvedMigration, bool, error) {
	base := filepath.Base(path)
	groups := filenameGrammar.FindStringSubmatch(base)

	if groups == nil {
		// Files starting with V/U/R that don't match the grammar are
		// rejected; anything else is silently ignored (may be a helper
		// file).
		if len(base) > 0 && strings.ContainsRune("VUR", rune(base[0])) {
			return nil, false, InvalidFilenameError{Filename: path}
		}
		return nil, false, nil
	}

	kindLetter, versionStr, description := groups[1], groups[2], groups[3]

	var kind Kind
	var version Version
	switch kindLetter {
	case "V":
		kind = KindVersioned
		if versionStr == "" {
			return nil, false, InvalidFilenameError{Filename: path}
		}
		v, err := ParseVersion(versionStr)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", path, err)
		}
		version = v
	case "U":
		kind = KindUndo
		if versionStr == "" {
			return nil, false, InvalidFilenameError{Filename: path}
		}
		v, err := ParseVersion(versionStr)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", path, err)
		}
		version = v
	case "R":
		kind = KindRepeatable
		if versionStr != "" {
			return nil, false, InvalidFilenameError{Filename: path}
		}
	}

	body, err := fs.ReadFile(dir, path)
	if err != nil {
		return nil, false, err
	}

	directives, err := parseDirectives(string(body))
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}

	return &ResolvedMigration{
		Kind:           kind,
		Version:        version,
		Description:    strings.ReplaceAll(description, "_", " "),
		ScriptFilename: path,
		Checksum:       checksum.Of(string(body)),
		SQL:            string(body),
		Directives:     directives,
	}, true, nil
}

// VersionFromFilename extracts the normalized version string of a
// V<version>__<description>.sql filename, or "" if name isn't a versioned
// migration filename. It is used by pkg/conflict to compare version numbers
// across git branches without a full Scan.
func VersionFromFilename(name string) string {
	groups := filenameGrammar.FindStringSubmatch(name)
	if groups == nil || groups[1] != "V" || groups[2] == "" {
		return ""
	}
	v, err := ParseVersion(groups[2])
	if err != nil {
		return ""
	}
	return v.String()
}

func checkDuplicateVersions(all []*ResolvedMigration) error {
	seen := make(map[string]string) // "kind:version" -> filename
	for _, m := range all {
		if m.Kind == KindRepeatable {
			continue
		}
		key := fmt.Sprintf("%s:%s", m.Kind, m.Version.String())
		if first, ok := seen[key]; ok {
			return DuplicateVersionError{
				Version: m.Version.String(),
				First:   first,
				Second:  m.ScriptFilename,
			}
		}
		seen[key] = m.ScriptFilename
	}
	return nil
}

func sortResolved(all []*ResolvedMigration) {
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.HasVersion() {
			return a.Version.Less(b.Version)
		}
		return a.ScriptFilename < b.ScriptFilename
	})
}

// LoadHook looks for filename (e.g. "beforeMigrate.sql") across dirs, in
// order, and returns a ResolvedMigration wrapping its body, or nil if no
// location defines it. Hook files are excluded from Scan and have no
// version or kind-specific directives beyond what parseDirectives yields.
func LoadHook(dirs []fs.FS, filename string) (*ResolvedMigration, error) {
	for _, dir := range dirs {
		data, err := fs.ReadFile(dir, filename)
		if err != nil {
			continue
		}
		body := string(data)
		directives, err := parseDirectives(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		return &ResolvedMigration{
			Kind:           KindRepeatable,
			Description:    filename,
			ScriptFilename: filename,
			Checksum:       checksum.Of(body),
			SQL:            body,
			Directives:     directives,
		}, nil
	}
	return nil, nil
}

// FindUndo returns the undo script pairing with version v, if any was
// scanned.
func FindUndo(all []*ResolvedMigration, v Version) *ResolvedMigration {
	for _, m := range all {
		if m.Kind == KindUndo && m.Version.Equal(v) {
			return m
		}
	}
	return nil
}

// Versioned filters all to just the versioned scripts, ascending order.
func Versioned(all []*ResolvedMigration) []*ResolvedMigration {
	var out []*ResolvedMigration
	for _, m := range all {
		if m.Kind == KindVersioned {
			out = append(out, m)
		}
	}
	return out
}

// Repeatables filters all to just the repeatable scripts, scan order.
func Repeatables(all []*ResolvedMigration) []*ResolvedMigration {
	var out []*ResolvedMigration
	for _, m := range all {
		if m.Kind == KindRepeatable {
			out = append(out, m)
		}
	}
	return out
}
