package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// shortLen is the number of characters shown by Short.
const shortLen = 8

// New returns a fresh transaction ID.
func New() string {
	return uuid.NewString()
}

// Parse validates a transaction ID and returns it in canonical form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid transaction ID %q: %w", s, err)
	}
	return u.String(), nil
}

// Short returns the display prefix of an ID.
// "0b6f3c1e-..." -> "0b6f3c1e"
func Short(s string) string {
	if len(s) <= shortLen {
		return s
	}
	return s[:shortLen]
}

// Split parses a comma-separated list of IDs, preserving order and
// dropping blanks and repeats.
func Split(values []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}
