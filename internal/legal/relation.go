package legal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// RelationType is the legal effect an article has on a target article.
type RelationType int

const (
	Amends RelationType = iota + 1
	Replaces
	Repeals
	Suspends
	Guides
)

// RelationTypes lists every relation type in display order.
var RelationTypes = []RelationType{Amends, Replaces, Repeals, Suspends, Guides}

var relationNames = map[RelationType]string{
	Amends:   "AMENDS",
	Replaces: "REPLACES",
	Repeals:  "REPEALS",
	Suspends: "SUSPENDS",
	Guides:   "GUIDES",
}

// Vietnamese labels used on the classifier wire.
var relationLabels = map[RelationType]string{
	Amends:   "Sửa đổi, bổ sung",
	Replaces: "Thay thế",
	Repeals:  "Bãi bỏ",
	Suspends: "Đình chỉ việc thi hành",
	Guides:   "Hướng dẫn, quy định",
}

// Graph edge labels and flat payload keys.
var relationEdgeLabels = map[RelationType]string{
	Amends:   "SUA_DOI_BO_SUNG",
	Replaces: "THAY_THE",
	Repeals:  "BAI_BO",
	Suspends: "DINH_CHI",
	Guides:   "HUONG_DAN_QUY_DINH",
}

func (t RelationType) String() string {
	if s, ok := relationNames[t]; ok {
		return s
	}
	return fmt.Sprintf("RelationType(%d)", int(t))
}

// Label is the Vietnamese display string.
func (t RelationType) Label() string { return relationLabels[t] }

// EdgeLabel is the upper-case ASCII label used for graph edges.
func (t RelationType) EdgeLabel() string { return relationEdgeLabels[t] }

// PayloadKey is the lower-case ASCII key used in flat metadata payloads.
func (t RelationType) PayloadKey() string { return strings.ToLower(relationEdgeLabels[t]) }

// ParseRelationLabel maps a Vietnamese display string back to its type.
func ParseRelationLabel(s string) (RelationType, bool) {
	s = strings.TrimSpace(s)
	for t, l := range relationLabels {
		if l == s {
			return t, true
		}
	}
	return 0, false
}

// ParseRelationType accepts String() names and edge labels.
func ParseRelationType(s string) (RelationType, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for t, name := range relationNames {
		if name == s || relationEdgeLabels[t] == s {
			return t, true
		}
	}
	return 0, false
}

func (t RelationType) MarshalText() ([]byte, error) {
	if _, ok := relationNames[t]; !ok {
		return nil, fmt.Errorf("unknown relation type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *RelationType) UnmarshalText(b []byte) error {
	parsed, ok := ParseRelationType(string(b))
	if !ok {
		return fmt.Errorf("unknown relation type %q", string(b))
	}
	*t = parsed
	return nil
}

// Scope tells whether an edge stays inside its source document.
type Scope int

const (
	Self Scope = iota + 1
	External
)

func (s Scope) String() string {
	switch s {
	case Self:
		return "SELF"
	case External:
		return "EXTERNAL"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

func (s Scope) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Scope) UnmarshalText(b []byte) error {
	switch string(b) {
	case "SELF":
		*s = Self
	case "EXTERNAL":
		*s = External
	default:
		return fmt.Errorf("unknown scope %q", string(b))
	}
	return nil
}

// Edge is a directed relationship between two articles.
type Edge struct {
	SourceArticleID string       `json:"source_article_id"`
	Type            RelationType `json:"relation_type"`
	TargetArticleID string       `json:"target_article_id"`
	Scope           Scope        `json:"scope"`
}

// Relations holds the target article ids per relation type.
type Relations struct {
	Amends   []string `json:"amends"`
	Replaces []string `json:"replaces"`
	Repeals  []string `json:"repeals"`
	Suspends []string `json:"suspends"`
	Guides   []string `json:"guides"`
}

func (r *Relations) slot(t RelationType) *[]string {
	switch t {
	case Amends:
		return &r.Amends
	case Replaces:
		return &r.Replaces
	case Repeals:
		return &r.Repeals
	case Suspends:
		return &r.Suspends
	case Guides:
		return &r.Guides
	}
	return nil
}

// Get returns the targets recorded for t.
func (r *Relations) Get(t RelationType) []string {
	if s := r.slot(t); s != nil {
		return *s
	}
	return nil
}

// Add appends id under t unless it is already present. It reports whether
// the id was added.
func (r *Relations) Add(t RelationType, id string) bool {
	s := r.slot(t)
	if s == nil {
		return false
	}
	for _, existing := range *s {
		if existing == id {
			return false
		}
	}
	*s = append(*s, id)
	return true
}

// Len is the total number of targets across all types.
func (r *Relations) Len() int {
	n := 0
	for _, t := range RelationTypes {
		n += len(r.Get(t))
	}
	return n
}

// Normalize replaces nil slices with empty ones so JSON output always
// carries five arrays.
func (r *Relations) Normalize() {
	for _, t := range RelationTypes {
		if s := r.slot(t); *s == nil {
			*s = []string{}
		}
	}
}

// ArticleID builds the document-scoped article identifier.
func ArticleID(documentID string, number int) string {
	return documentID + "_" + strconv.Itoa(number)
}

// SplitArticleID parses "{document_id}_{number}[suffix]". A letter suffix
// such as the "a" of "7a" is dropped. ok is false when the id carries no
// article number.
func SplitArticleID(id string) (documentID string, number int, ok bool) {
	id = strings.TrimSpace(id)
	i := strings.LastIndex(id, "_")
	if i <= 0 || i == len(id)-1 {
		return "", 0, false
	}
	documentID, rest := id[:i], id[i+1:]

	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return "", 0, false
	}
	for _, r := range rest[end:] {
		if !unicode.IsLetter(r) {
			return "", 0, false
		}
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return documentID, n, true
}

// CanonicalArticleID returns the id with any letter suffix removed.
func CanonicalArticleID(id string) (string, bool) {
	doc, n, ok := SplitArticleID(id)
	if !ok {
		return "", false
	}
	return ArticleID(doc, n), true
}
