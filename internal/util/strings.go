// Package util provides small shared helpers used across the odoogate library.
package util

// SafeTruncate truncates s to maxLen bytes without panicking. It is used when
// logging token prefixes, where only the first few characters may be shown.
// A negative maxLen yields an empty string.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
