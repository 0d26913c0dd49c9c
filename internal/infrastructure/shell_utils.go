package infrastructure

import "strings"

// shellSpecialChars are characters with a meaning to POSIX shells
const shellSpecialChars = " \t\n\r'\"$`\\!*?[](){}|;<>&~#%="

// ShellQuote quotes s for display in a copy-pasteable command line.
// Process spawning never goes through a shell; this is for logs only.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, shellSpecialChars) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// FormatCommandLine renders binary and args as a single quoted command line
func FormatCommandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, ShellQuote(binary))
	for _, arg := range args {
		parts = append(parts, ShellQuote(arg))
	}
	return strings.Join(parts, " ")
}
