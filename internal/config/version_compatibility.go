package config

import (
	"github.com/Masterminds/semver"

	"github.com/sailbuild/sail/internal/errs"
)

// CheckToolVersionCompatible validates that the tool version recorded in a
// cached incremental-compiler state is still compatible with the
// currently-running tool's version constraint. A TypeScript-compile leaf
// (and similar long-lived-state tools) rejects the cached state - forcing
// a full rebuild - whenever this returns false, per the incremental-state
// trust rules.
func CheckToolVersionCompatible(currentVersion string, recordedVersion string, constraint string) (bool, error) {
	if constraint == "" {
		return currentVersion == recordedVersion, nil
	}

	recorded, err := semver.NewVersion(recordedVersion)
	if err != nil {
		return false, errs.Config("recorded tool version %q is not valid semver", recordedVersion)
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, errs.Config("tool version constraint %q is not valid", constraint)
	}
	return c.Check(recorded), nil
}
