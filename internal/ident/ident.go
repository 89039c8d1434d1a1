// Package ident derives stable ASCII identifiers for structural nodes.
package ident

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/textnorm"
)

// Vietnamese letters folded to their base letter. Precomposed forms are
// mapped directly so stacked tone marks never survive as stray combining
// characters.
var foldGroups = map[rune]string{
	'a': "àáảãạăằắẳẵặâầấẩẫậ",
	'e': "èéẻẽẹêềếểễệ",
	'i': "ìíỉĩị",
	'o': "òóỏõọôồốổỗộơờớởỡợ",
	'u': "ùúủũụưừứửữự",
	'y': "ỳýỷỹỵ",
	'd': "đ",
}

var foldMap = func() map[rune]rune {
	m := make(map[rune]rune)
	for base, variants := range foldGroups {
		for _, r := range variants {
			m[r] = base
		}
	}
	return m
}()

func foldRune(r rune) rune {
	if b, ok := foldMap[r]; ok {
		return b
	}
	return r
}

// Fold lowercases s and strips Vietnamese diacritics.
func Fold(s string) string {
	t := transform.Chain(
		norm.NFC,
		runes.Map(unicode.ToLower),
		runes.Map(foldRune),
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

var (
	nonWord    = regexp.MustCompile(`[^\w\s]`)
	whitespace = regexp.MustCompile(`\s+`)
	digitsOnly = regexp.MustCompile(`^\d+$`)
)

var kindPrefixes = func() []string {
	var out []string
	for _, k := range []legal.Kind{legal.KindChapter, legal.KindSection, legal.KindArticle, legal.KindClause} {
		out = append(out, Fold(k.Prefix()))
	}
	return out
}()

// Slug folds a node label into its local identifier:
//
//	"Chương II" -> "chuong-2"
//	"Điều 13"   -> "dieu-13"
//	"3"         -> "khoan-3"
func Slug(label string) string {
	s := Fold(label)
	s = nonWord.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if s == "" {
		return ""
	}
	if digitsOnly.MatchString(s) {
		n, _ := strconv.Atoi(s)
		return Fold(legal.KindClause.Prefix()) + "-" + strconv.Itoa(n)
	}
	if !strings.Contains(s, " ") {
		for _, p := range kindPrefixes {
			if rest, ok := strings.CutPrefix(s, p); ok && rest != "" {
				return p + "-" + rest
			}
		}
		return s
	}

	words := strings.Split(s, " ")
	if words[0] == Fold(legal.KindChapter.Prefix()) && len(words) > 1 {
		if n, ok := textnorm.RomanToInt(words[1]); ok {
			words[1] = strconv.Itoa(n)
		}
	}
	return strings.Join(words, "-")
}

// Synthesize builds a scoped id from a label and the ids of its ancestors,
// nearest first.
func Synthesize(label string, ancestors ...string) string {
	parts := []string{Slug(label)}
	for _, a := range ancestors {
		if a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, "_")
}

// Assign sets ID on every node of the forest. Each id chains the parent's
// full id, so "Điều 13" under "Mục 1" under "Chương II" becomes
// "dieu-13_muc-1_chuong-2". Sibling collisions get a numeric suffix.
func Assign(forest legal.Forest) {
	assignLevel(forest, "")
}

func assignLevel(nodes []*legal.Node, parentID string) {
	seen := make(map[string]int, len(nodes))
	for _, n := range nodes {
		local := Slug(n.Label)
		if c := seen[local]; c > 0 {
			seen[local] = c + 1
			local += "-" + strconv.Itoa(c+1)
		} else {
			seen[local] = 1
		}
		id := local
		if parentID != "" {
			id += "_" + parentID
		}
		n.ID = id
		assignLevel(n.Children, id)
	}
}
