package textnorm

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jackzampolin/vbpl/internal/legal"
)

// Marker is a structural opener found at the start of a line.
type Marker struct {
	Kind    legal.Kind
	Label   string // "Chương II", "Mục 1", "Điều 7a", "3"
	Ordinal int
	Suffix  string // letter suffix of inserted articles ("a" in "Điều 7a")
	Rest    string // text after the label on the same line
}

var (
	// Crawled text sometimes drops the space after the label word ("Điều1.").
	chapterRe = regexp.MustCompile(`^(?i:chương)\s*([IVXLCDM]+)(?:$|[\s.:\-–—]+(.*)$)`)
	sectionRe = regexp.MustCompile(`^(?i:mục)\s*(\d+)(?:$|[\s.:\-–—]+(.*)$)`)
	articleRe = regexp.MustCompile(`^(?i:điều)\s*(\d+)([a-zđ]?)\s*(?:$|[.:]\s*(.*)$)`)
	// A digit directly after the dot is a decimal ("1.5"); after a space it
	// is clause text ("2. 30 ngày").
	clauseRe  = regexp.MustCompile(`^(\d{1,3})\s*[.)](?:$|\s+(.*)$|([^\d\s].*)$)`)
)

// DetectMarker identifies the structural opener on a line, if any. CLAUSE
// markers are reported too; callers decide where they apply.
func DetectMarker(l Line) (Marker, bool) {
	t := l.Text
	if t == "" {
		return Marker{}, false
	}
	if m := chapterRe.FindStringSubmatch(t); m != nil {
		n, ok := RomanToInt(m[1])
		if !ok {
			return Marker{}, false
		}
		return Marker{
			Kind:    legal.KindChapter,
			Label:   legal.KindChapter.Prefix() + " " + m[1],
			Ordinal: n,
			Rest:    strings.TrimSpace(m[2]),
		}, true
	}
	if m := sectionRe.FindStringSubmatch(t); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Marker{}, false
		}
		return Marker{
			Kind:    legal.KindSection,
			Label:   legal.KindSection.Prefix() + " " + m[1],
			Ordinal: n,
			Rest:    strings.TrimSpace(m[2]),
		}, true
	}
	if m := articleRe.FindStringSubmatch(t); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Marker{}, false
		}
		return Marker{
			Kind:    legal.KindArticle,
			Label:   legal.KindArticle.Prefix() + " " + m[1] + m[2],
			Ordinal: n,
			Suffix:  m[2],
			Rest:    strings.TrimSpace(m[3]),
		}, true
	}
	return DetectClause(l)
}

// DetectClause matches a leading "N." or "N)" clause number.
func DetectClause(l Line) (Marker, bool) {
	m := clauseRe.FindStringSubmatch(l.Text)
	if m == nil {
		return Marker{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return Marker{}, false
	}
	return Marker{
		Kind:    legal.KindClause,
		Label:   m[1],
		Ordinal: n,
		Rest:    strings.TrimSpace(m[2] + m[3]),
	}, true
}

var romanValues = map[byte]int{
	'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000,
}

// RomanToInt parses an upper- or lower-case Roman numeral. Non-canonical
// forms such as "IIII" or "IC" are rejected.
func RomanToInt(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	total := 0
	for i := 0; i < len(s); i++ {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0, false
		}
		if i+1 < len(s) && romanValues[s[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	if total <= 0 || IntToRoman(total) != s {
		return 0, false
	}
	return total, true
}

var romanTable = []struct {
	v int
	s string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// IntToRoman renders n (1..3999) as an upper-case Roman numeral.
func IntToRoman(n int) string {
	if n <= 0 || n >= 4000 {
		return ""
	}
	var b strings.Builder
	for _, e := range romanTable {
		for n >= e.v {
			b.WriteString(e.s)
			n -= e.v
		}
	}
	return b.String()
}
