package namespace

import (
	"strings"
)

// Separator is the separator used when building paths.
const Separator = `\`

const separators = `\/`

// IsVolumeName reports whether s is exactly one letter C-Z (any case)
// followed by ':'.
func IsVolumeName(s string) bool {
	if len(s) != 2 || s[1] != ':' {
		return false
	}
	c := s[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	return c >= 'C' && c <= 'Z'
}

// IsAbsolute reports whether path begins with a volume name.
func IsAbsolute(path string) bool {
	p := strings.TrimSpace(path)
	return len(p) >= 2 && IsVolumeName(p[:2])
}

// Combine joins a relative path onto base. An absolute relative path is
// returned unchanged. Both parts are trimmed of separators and joined with a
// single separator; two empty parts give an empty string.
func Combine(base, relative string) string {
	if IsAbsolute(relative) {
		return relative
	}
	b := strings.Trim(strings.TrimSpace(base), separators)
	r := strings.Trim(strings.TrimSpace(relative), separators)
	switch {
	case b == "":
		return r
	case r == "":
		return b
	default:
		return b + Separator + r
	}
}

// SplitPath returns the non-empty, non-blank segments of path.
func SplitPath(path string) []string {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '\\' || r == '/'
	})
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		segments = append(segments, strings.TrimSpace(part))
	}
	return segments
}

// JoinPath joins segments with the separator.
func JoinPath(segments ...string) string {
	return strings.Join(segments, Separator)
}
