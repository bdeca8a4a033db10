package doc

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a document revision identifier in "major.minor" form.
// The zero value renders as "1.0"; the first saved revision is "1.1".
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	if v.Major == 0 {
		return "1.0"
	}
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// IsZero reports whether the document has never been saved.
func (v Version) IsZero() bool {
	return v.Major == 0
}

// Next returns the next minor revision, seeding "1.1" for a new document.
func (v Version) Next() Version {
	if v.Major == 0 {
		return Version{Major: 1, Minor: 1}
	}
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// NextMajor returns the next major revision with the minor part reset.
func (v Version) NextMajor() Version {
	if v.Major == 0 {
		return Version{Major: 1, Minor: 1}
	}
	return Version{Major: v.Major + 1, Minor: 1}
}

// Before reports strict revision order.
func (v Version) Before(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Version{}, fmt.Errorf("invalid version %q (expected major.minor)", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid major version in %q", s)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Version{}, fmt.Errorf("invalid minor version in %q", s)
	}
	return Version{Major: major, Minor: minor}, nil
}
