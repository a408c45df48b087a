package utils

import (
	"strconv"
	"strings"
	"time"
)

// FormatInt renders an integer field value.
func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// ParseInt parses an integer field value. Empty means zero.
func ParseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// FormatBool renders a boolean field value as "true" or "false".
func FormatBool(v bool) string {
	return strconv.FormatBool(v)
}

// ParseBool accepts "1"/"0" and "true"/"false" in any case. Empty means false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true
	default:
		return false
	}
}

// FormatTime renders an optional instant in UTC RFC 3339; nil renders empty.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ParseTime is the inverse of FormatTime.
func ParseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
