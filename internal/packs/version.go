package packs

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a semantic version such as 1.19.3. The zero Version is invalid
// and sorts before every valid version.
type Version struct {
	canonical string // "v1.19.3"
}

// ParseVersion accepts "1.19.3", "v1.19.3", and the "1.20" shorthand.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	v := s
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	return Version{canonical: semver.Canonical(v)}, nil
}

func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or +1.
func (v Version) Compare(other Version) int {
	return semver.Compare(v.canonical, other.canonical)
}

func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

func (v Version) IsZero() bool { return v.canonical == "" }

func (v Version) String() string {
	return strings.TrimPrefix(v.canonical, "v")
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Version) UnmarshalText(bs []byte) error {
	parsed, err := ParseVersion(string(bs))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
