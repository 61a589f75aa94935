package aggregator

import (
	"strconv"
	"strings"
)

// ApproxLowerBound parses a bucket label to its numeric lower bound:
// "0" -> 0, ">N[K|M]" -> N scaled, "a-b" -> a, otherwise the leading
// number. Open-below labels ("<100K") and unparseable labels map to 0.
// The result is a lossy, conservative estimate and must never be treated
// as an exact value.
func ApproxLowerBound(label string) int64 {
	label = strings.TrimSpace(label)
	if label == "" || label == "unknown" {
		return 0
	}
	if strings.HasPrefix(label, "<") {
		return 0
	}
	if strings.HasPrefix(label, ">") {
		return parseScaled(label[1:])
	}
	if i := strings.IndexByte(label, '-'); i > 0 {
		return parseScaled(label[:i])
	}
	return parseScaled(label)
}

// parseScaled reads a leading number with an optional K/M suffix; trailing
// units ("ms", "s", "MB") are ignored.
func parseScaled(s string) int64 {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	switch {
	case strings.HasPrefix(s[end:], "K"):
		return n * 1_000
	case strings.HasPrefix(s[end:], "M") && !strings.HasPrefix(s[end:], "MB"):
		return n * 1_000_000
	}
	return n
}
