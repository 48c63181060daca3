package namespace

import (
	"strings"
	"unicode/utf8"

	"github.com/marmos91/simfs/pkg/fault"
)

// MaxNameLen is the maximum length of any item name.
const MaxNameLen = 255

// invalidPathChars is the fixed set of characters rejected anywhere in a path.
var invalidPathChars = func() string {
	var b strings.Builder
	b.WriteString("\"<>|")
	for c := rune(0); c < 32; c++ {
		b.WriteRune(c)
	}
	return b.String()
}()

// invalidFileNameChars is the fixed set of characters rejected in a single
// name. It is a superset of invalidPathChars.
var invalidFileNameChars = invalidPathChars + ":*?\\/"

// Normalize returns the canonical form of a name: trimmed and upper-cased.
// Sibling uniqueness, user matching and lock owners all compare through it.
func Normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// NamesEqual reports whether two names are equal after normalization.
func NamesEqual(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// ValidateName checks a directory, file or system name.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fault.New(fault.ErrValidation, "name cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLen {
		return fault.WithPath(fault.ErrValidation,
			"name exceeds 255 characters", string([]rune(trimmed)[:32])+"...")
	}
	if strings.ContainsAny(trimmed, invalidPathChars) {
		return fault.WithPath(fault.ErrValidation, "name contains invalid path characters", trimmed)
	}
	if strings.ContainsAny(trimmed, invalidFileNameChars) {
		return fault.WithPath(fault.ErrValidation, "name contains invalid file name characters", trimmed)
	}
	return nil
}

// ValidateVolumeName checks a volume name ("C:" .. "Z:").
func ValidateVolumeName(name string) error {
	if !IsVolumeName(strings.TrimSpace(name)) {
		return fault.WithPath(fault.ErrValidation,
			"volume name must be a letter from C to Z followed by ':'", name)
	}
	return nil
}
