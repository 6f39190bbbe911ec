package runner

import (
	"fmt"
	"regexp"
	"strings"

	"finch/internal/tools"
)

// DefaultMaxToolResultBytes caps tool output before it is fed back to the
// model. Financial statement payloads rarely exceed it.
const DefaultMaxToolResultBytes = 64 * 1024

// nullResult is fed back for a duplicate call that was already handled.
const nullResult = "null"

type secretPattern struct {
	name string
	re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"assignment", regexp.MustCompile(`(?i)(API_KEY|SECRET|TOKEN|PASSWORD|PRIVATE[._]KEY)\s*[=:]\s*['"]?(\S{8,})`)},
	{"bearer", regexp.MustCompile(`(?i)Bearer\s+([A-Za-z0-9\-._~+/]{20,}=*)`)},
	{"openai", regexp.MustCompile(`sk-[A-Za-z0-9_\-]{20,}`)},
	{"tavily", regexp.MustCompile(`tvly-[A-Za-z0-9_\-]{16,}`)},
	{"google", regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)},
}

var blobPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"base64", regexp.MustCompile(`data:[a-zA-Z0-9+/=\-]+;base64,[A-Za-z0-9+/=]{64,}`)},
	{"hex", regexp.MustCompile(`[0-9a-fA-F]{256,}`)},
}

// RedactSecrets masks credentials that third-party payloads sometimes echo
// back, keeping a short prefix for debugging.
func RedactSecrets(s string) string {
	for _, p := range secretPatterns {
		s = p.re.ReplaceAllStringFunc(s, func(m string) string {
			if p.name == "assignment" {
				if i := strings.IndexAny(m, "=:"); i >= 0 {
					return m[:i+1] + " " + mask(strings.Trim(strings.TrimSpace(m[i+1:]), `'"`))
				}
			}
			if p.name == "bearer" {
				if key, val, ok := strings.Cut(m, " "); ok {
					return key + " " + mask(val)
				}
			}
			return mask(m)
		})
	}
	return s
}

func mask(s string) string {
	if len(s) <= 4 {
		return "[REDACTED]"
	}
	return s[:4] + "...[REDACTED]"
}

// TruncateToolResult shrinks content to roughly maxBytes. Inline binary
// blobs go first; if that is not enough the middle is cut.
func TruncateToolResult(content string, maxBytes int) string {
	if maxBytes <= 0 || len(content) <= maxBytes {
		return content
	}
	for _, p := range blobPatterns {
		content = p.re.ReplaceAllStringFunc(content, func(m string) string {
			return fmt.Sprintf("[%s data removed, %d bytes]", p.label, len(m))
		})
		if len(content) <= maxBytes {
			return content
		}
	}

	keep := maxBytes * 2 / 5
	cut := len(content) - 2*keep
	return content[:keep] + fmt.Sprintf("\n\n[... %d bytes truncated ...]\n\n", cut) + content[len(content)-keep:]
}

// modelContent renders a tool result for the next model step.
func modelContent(r *tools.ToolResult, maxBytes int) string {
	if r == nil {
		return nullResult
	}
	return TruncateToolResult(RedactSecrets(r.String()), maxBytes)
}
