package migration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion indicates a version string is not a dotted sequence of digits.
var ErrInvalidVersion = errors.New("invalid migration version")

// Version is a dotted numeric migration version such as "3", "1.2" or "20240101120000".
// The zero value sorts before every parsed version.
type Version struct {
	parts []uint64
}

// ParseVersion parses a dotted numeric version. Leading zeros are ignored, so
// "001" and "1" are the same version, as are "1.0" and "1".
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty", ErrInvalidVersion)
	}

	fields := strings.Split(s, ".")
	parts := make([]uint64, 0, len(fields))

	for _, f := range fields {
		if f == "" || strings.TrimLeft(f, "0123456789") != "" {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}

		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q: %w", ErrInvalidVersion, s, err)
		}

		parts = append(parts, n)
	}

	// Trailing zero components do not change ordering; drop them so the
	// canonical form is unique.
	for len(parts) > 1 && parts[len(parts)-1] == 0 {
		parts = parts[:len(parts)-1]
	}

	return Version{parts: parts}, nil
}

// CanonicalVersion returns the canonical spelling of a stored version, so
// "001" and "1.0" both become "1". Strings that do not parse are returned
// unchanged.
func CanonicalVersion(s string) string {
	v, err := ParseVersion(s)
	if err != nil {
		return s
	}

	return v.String()
}

// MustParseVersion is like ParseVersion but panics on error. Intended for tests
// and package-level fixtures.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}

	return v
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal to or after other.
func (v Version) Compare(other Version) int {
	n := max(len(v.parts), len(other.parts))

	for i := 0; i < n; i++ {
		a, b := v.component(i), other.component(i)

		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}

	return 0
}

// Equal reports whether both versions denote the same position in the order.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return len(v.parts) == 0
}

// String returns the canonical form, which is also what the schema history stores.
func (v Version) String() string {
	if v.IsZero() {
		return ""
	}

	strs := make([]string, len(v.parts))
	for i, p := range v.parts {
		strs[i] = strconv.FormatUint(p, 10)
	}

	return strings.Join(strs, ".")
}

func (v Version) component(i int) uint64 {
	if i < len(v.parts) {
		return v.parts[i]
	}

	return 0
}
