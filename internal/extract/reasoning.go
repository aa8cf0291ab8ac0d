package extract

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?(</think>|$)`)

// StripReasoning removes <think> blocks, including an unterminated trailing
// one, and trims the result.
func StripReasoning(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}
