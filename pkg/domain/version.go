package domain

import (
	"regexp"
	"strconv"
)

// versionPattern is the wire format of the optimistic-lock token: one to
// three ASCII digits wrapped in double quotes, e.g. `"0"` or `"42"`.
var versionPattern = regexp.MustCompile(`^"(\d{1,3})"$`)

// ParseVersion decodes an optimistic-lock token. Any shape other than
// `"<1-3 digits>"` yields a VersionInvalidError.
func ParseVersion(token string) (int, error) {
	m := versionPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, &VersionInvalidError{Token: token}
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &VersionInvalidError{Token: token}
	}
	return v, nil
}

// FormatVersion renders a version number in its quoted wire format,
// suitable for ETag and If-Match headers.
func FormatVersion(v int) string {
	return `"` + strconv.Itoa(v) + `"`
}
