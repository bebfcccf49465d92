package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// CheckConstraint checks that the running engine satisfies constraint, e.g.
// ">= 0.3.0" or "^0.4". An empty constraint always passes.
func CheckConstraint(constraint string) error {
	return CheckVersionConstraint(Version, constraint)
}

// CheckVersionConstraint checks engineVersion against constraint.
//
// Rules:
//   - An empty constraint is satisfied by every version
//   - A "main" engine version (development build) skips the check
//   - A leading 'v' on the engine version is ignored
func CheckVersionConstraint(engineVersion, constraint string) error {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersionConstraint, err, "invalid version constraint '%s'", constraint)
	}

	engineVersion = strings.TrimPrefix(engineVersion, "v")

	// Skip version check for "main" (development builds)
	if engineVersion == "main" {
		return nil
	}

	v, err := semver.NewVersion(engineVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersionConstraint, err, "invalid engine version '%s'", engineVersion)
	}

	if !c.Check(v) {
		return errors.Newf(errors.ErrCodeInvalidVersionConstraint, "engine version %s does not satisfy '%s'", v, constraint)
	}

	return nil
}
