// Package hostcompat checks that the host process speaks a compatible protocol
// version before the bridge is put into service.
package hostcompat

import (
	"fmt"
	"regexp"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const constraintLogPrefix = "hostcompat:constraint"

var majorOnlyRegex = regexp.MustCompile(`^\d+$`)

// IsMajorOnly checks if a constraint is a major-only specifier (e.g., "2").
func IsMajorOnly(constraint string) bool {
	return majorOnlyRegex.MatchString(constraint)
}

// ParseConstraint parses a semver constraint. A major-only constraint "N"
// means any N.x.y release.
func ParseConstraint(constraint string) (*masterminds.Constraints, error) {
	c := strings.TrimSpace(constraint)
	if c == "" {
		return nil, fmt.Errorf("%s - empty constraint", constraintLogPrefix)
	}
	if IsMajorOnly(c) {
		c = "^" + c
	}
	parsed, err := masterminds.NewConstraint(c)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid constraint %q: %w", constraintLogPrefix, constraint, err)
	}
	return parsed, nil
}

// Satisfies reports whether version satisfies constraint. Invalid input never
// satisfies.
func Satisfies(version, constraint string) bool {
	c, err := ParseConstraint(constraint)
	if err != nil {
		return false
	}
	v, err := masterminds.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return false
	}
	return c.Check(v)
}
