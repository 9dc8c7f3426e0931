package utils

// Truncate returns s truncated to maxLen bytes, with "..." appended when
// truncated. Non-positive maxLen returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
