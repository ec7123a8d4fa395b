// Package blockerlog persists blocker records to the project's blocker log
// file, with template rendering, record counting, and rotation.
package blockerlog

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrPathOutsideRoot is returned when a destination path escapes the
	// project root. This is a security error and must propagate loudly: it
	// indicates misconfiguration or an attack attempt, never a condition to
	// silently fall back from.
	ErrPathOutsideRoot = errors.New("destination path escapes project root")

	// ErrEmptyProjectRoot is returned when no project root is configured.
	ErrEmptyProjectRoot = errors.New("project root is required")
)

// ResolveWithinRoot resolves destination against projectRoot and verifies
// containment via the relative path, not string prefixes: "/proj-evil" must
// not pass for a root of "/proj".
func ResolveWithinRoot(destination, projectRoot string) (string, error) {
	if projectRoot == "" {
		return "", ErrEmptyProjectRoot
	}

	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", errors.Wrap(err, "resolving project root")
	}

	resolved := filepath.Clean(destination)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return "", errors.Wrapf(ErrPathOutsideRoot, "%q", destination)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrPathOutsideRoot, "%q", destination)
	}

	return resolved, nil
}
