// Package textnorm normalizes crawled legal text and recognizes the
// line-level structural markers (Chương, Mục, Điều and numbered clauses).
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Line is one line of normalized text.
type Line struct {
	Num  int    // 1-based
	Raw  string // normalized source line
	Text string // display form with markdown decoration removed
}

// Blank reports whether the line carries no visible text.
func (l Line) Blank() bool { return l.Text == "" }

// Normalize converts raw text to NFC, unifies line endings and trims
// trailing whitespace from every line. Input without visible text yields "".
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	s := norm.NFC.String(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\ufeff", "")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	s = strings.Trim(strings.Join(lines, "\n"), "\n")
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

// Lines splits normalized text into numbered lines.
func Lines(text string) []Line {
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	out := make([]Line, len(raw))
	for i, r := range raw {
		out[i] = Line{Num: i + 1, Raw: r, Text: Clean(r)}
	}
	return out
}

var (
	headingPrefix = regexp.MustCompile(`^\s*#+\s*`)
	mdEscape      = regexp.MustCompile(`\\([\\.\-*_#()\[\]!+>])`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// Clean strips the markdown the HTML converter leaves behind: heading
// hashes, emphasis stars, surrounding underscores and backslash escapes.
func Clean(s string) string {
	s = headingPrefix.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, `\*`, "\x00")
	s = strings.ReplaceAll(s, "*", "")
	s = strings.ReplaceAll(s, "\x00", `\*`)
	s = mdEscape.ReplaceAllString(s, "$1")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "_")
	return strings.TrimSpace(s)
}

// CollapseSpace replaces every whitespace run with a single space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// JoinText joins the display form of lines, dropping leading and trailing
// blank lines.
func JoinText(lines []Line) string {
	start, end := 0, len(lines)
	for start < end && lines[start].Blank() {
		start++
	}
	for end > start && lines[end-1].Blank() {
		end--
	}
	var b strings.Builder
	for i := start; i < end; i++ {
		if i > start {
			b.WriteByte('\n')
		}
		b.WriteString(lines[i].Text)
	}
	return b.String()
}

// quote variants folded to '"' before counting.
var quoteFolder = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"«", `"`, "»", `"`, "″", `"`,
)

// QuoteDelta counts the quotation characters on a line.
func QuoteDelta(s string) int {
	return strings.Count(quoteFolder.Replace(s), `"`)
}

// FirstSentence returns the text up to the first sentence terminator.
func FirstSentence(s string) string {
	s = CollapseSpace(s)
	for i, r := range s {
		if r != '.' && r != ';' && r != ':' {
			continue
		}
		next := i + 1
		if next >= len(s) || s[next] == ' ' {
			s = s[:i]
			break
		}
	}
	const max = 200
	if r := []rune(s); len(r) > max {
		s = strings.TrimSpace(string(r[:max]))
	}
	return strings.TrimSpace(s)
}
