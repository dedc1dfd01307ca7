package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	spaceRunRe = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	digitsRe   = regexp.MustCompile(`\d+`)
	numberRe   = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// CleanText collapses horizontal whitespace and runs of blank lines.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spaceRunRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// OneLine collapses all whitespace, newlines included, to single spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Prefix returns at most n runes of s.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// DatePrefix keeps the YYYY-MM-DD head of a timestamp.
func DatePrefix(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// DigitsOnly drops every non-digit.
func DigitsOnly(s string) string {
	return strings.Join(digitsRe.FindAllString(s, -1), "")
}

// ParseCount reads the first number in s, ignoring thousands separators.
func ParseCount(s string) (int, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	m, _, _ = strings.Cut(strings.ReplaceAll(m, ",", ""), ".")
	n, err := strconv.Atoi(m)
	return n, err == nil
}

// ParseFloat reads the first decimal number in s.
func ParseFloat(s string) (float64, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	return f, err == nil
}

// FormatWon renders an amount as "N,NNN원".
func FormatWon(amount int) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.Itoa(amount)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "원"
	if neg {
		return "-" + out
	}
	return out
}

// HTTPSURL normalizes protocol-relative and plain-http image links.
// Other schemes yield "".
func HTTPSURL(u string) string {
	u = strings.TrimSpace(u)
	switch {
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "https://"):
		return u
	case strings.HasPrefix(u, "http://"):
		return "https://" + strings.TrimPrefix(u, "http://")
	default:
		return ""
	}
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

// StripTags removes markup and collapses whitespace.
func StripTags(s string) string {
	return OneLine(tagRe.ReplaceAllString(s, ""))
}

// Truncate shortens s to n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return Prefix(s, n) + "..."
}
