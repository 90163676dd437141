package util

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxDisplayNameLength is the longest finger name the sensor bridge stores.
const MaxDisplayNameLength = 32

// CleanDisplayName trims whitespace and control characters and caps the
// length. An empty result falls back to "Finger <id>".
func CleanDisplayName(name string, id int) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	runes := []rune(name)
	if len(runes) > MaxDisplayNameLength {
		name = strings.TrimSpace(string(runes[:MaxDisplayNameLength]))
	}
	if name == "" {
		return fmt.Sprintf("Finger %d", id)
	}
	return name
}
