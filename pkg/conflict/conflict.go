// SPDX-License-Identifier: Apache-2.0

// Package conflict detects migration conflicts between git branches without
// requiring a database connection: version-number collisions, and two
// branches touching the same table/column (spec.md §5/§6, "conflicts").
package conflict

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/waypointdb/waypoint/pkg/ddl"
	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/sqlsegment"
)

// Type categorizes a detected conflict.
type Type int

const (
	VersionCollision Type = iota
	SemanticConflict
)

func (t Type) String() string {
	switch t {
	case VersionCollision:
		return "Version Collision"
	case SemanticConflict:
		return "Semantic Conflict"
	default:
		return "Unknown"
	}
}

// Conflict is a single detected conflict between two branches' added files.
type Conflict struct {
	Type        Type
	Description string
	Files       []string
}

// Report is the result of comparing the files added on HEAD against the
// files added on a base branch.
type Report struct {
	Conflicts   []Conflict
	HasConflict bool
	BaseBranch  string
}

// FileReader loads a migration file's contents by the path git reported it
// at, relative to the repository root.
type FileReader func(path string) (string, error)

// Check compares the migration scripts added on HEAD against those added on
// baseBranch (both computed via `git diff --name-only --diff-filter=A`) and
// reports version collisions and semantic (same table/column) conflicts.
// An added file counts as a migration if its path starts with one of
// locations or its name starts with V or R and ends in .sql.
func Check(baseBranch string, locations []string, readFile FileReader) (Report, error) {
	currentFiles, err := gitAddedFiles(baseBranch, "HEAD")
	if err != nil {
		return Report{}, err
	}
	baseFiles, err := gitAddedFiles("HEAD", baseBranch)
	if err != nil {
		return Report{}, err
	}

	currentMigrations := filterMigrationFiles(currentFiles, locations)
	baseMigrations := filterMigrationFiles(baseFiles, locations)

	var conflicts []Conflict

	currentVersions := extractVersions(currentMigrations)
	baseVersions := extractVersions(baseMigrations)
	for version, currentFile := range currentVersions {
		if baseFile, ok := baseVersions[version]; ok {
			conflicts = append(conflicts, Conflict{
				Type:        VersionCollision,
				Description: fmt.Sprintf("Version V%s exists on both branches with different files", version),
				Files:       []string{currentFile, baseFile},
			})
		}
	}

	for _, currentFile := range currentMigrations {
		for _, baseFile := range baseMigrations {
			c, ok := CheckSemanticConflict(currentFile, baseFile, readFile)
			if ok {
				conflicts = append(conflicts, c)
			}
		}
	}

	return Report{
		Conflicts:   conflicts,
		HasConflict: len(conflicts) > 0,
		BaseBranch:  baseBranch,
	}, nil
}

func gitAddedFiles(from, to string) ([]string, error) {
	cmd := exec.Command("git", "diff", "--name-only", "--diff-filter=A", fmt.Sprintf("%s...%s", from, to))
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}

	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

func filterMigrationFiles(files, locations []string) []string {
	var out []string
	for _, f := range files {
		name := filepath.Base(f)
		inLocation := false
		for _, loc := range locations {
			if strings.HasPrefix(f, loc) {
				inLocation = true
				break
			}
		}
		looksLikeMigration := (strings.HasPrefix(name, "V") || strings.HasPrefix(name, "R")) && strings.HasSuffix(name, ".sql")
		if inLocation || looksLikeMigration {
			out = append(out, f)
		}
	}
	return out
}

func extractVersions(files []string) map[string]string {
	versions := make(map[string]string)
	for _, f := range files {
		name := filepath.Base(f)
		if v := migration.VersionFromFilename(name); v != "" {
			versions[v] = f
		}
	}
	return versions
}

// CheckSemanticConflict reports whether fileA and fileB (read via readFile)
// touch the same table or table.column, independent of version numbers.
func CheckSemanticConflict(fileA, fileB string, readFile FileReader) (Conflict, bool) {
	sqlA, errA := readFile(fileA)
	sqlB, errB := readFile(fileB)
	if errA != nil || errB != nil {
		return Conflict{}, false
	}

	targetsA := operationTargets(sqlA)
	targetsB := operationTargets(sqlB)

	var overlaps []string
	for t := range targetsA {
		if targetsB[t] {
			overlaps = append(overlaps, t)
		}
	}
	if len(overlaps) == 0 {
		return Conflict{}, false
	}

	return Conflict{
		Type:        SemanticConflict,
		Description: fmt.Sprintf("Both files modify the same object(s): %s", strings.Join(overlaps, ", ")),
		Files:       []string{fileA, fileB},
	}, true
}

func operationTargets(sql string) map[string]bool {
	targets := make(map[string]bool)
	for _, stmt := range sqlsegment.Split(sql) {
		op := ddl.Classify(stmt)
		switch op.Kind {
		case ddl.KindAddColumn, ddl.KindDropColumn, ddl.KindAlterColumnType:
			targets[op.Table+"."+op.Column] = true
		case ddl.KindCreateTable:
			targets[op.Table] = true
		}
	}
	return targets
}
