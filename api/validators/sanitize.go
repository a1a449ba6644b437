package validators

import "strings"

// SanitizeString trims surrounding whitespace and caps the value at maxLen
// bytes. Notification titles and messages pass through here before storage.
func SanitizeString(input string, maxLen int) string {
	out := strings.TrimSpace(input)
	if maxLen > 0 && len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}
