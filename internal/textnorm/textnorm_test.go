package textnorm

import (
	"testing"

	"github.com/jackzampolin/vbpl/internal/legal"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \n\t\r\n  ", ""},
		{"crlf and trailing spaces", "Điều 1.  \r\nNội dung\t\r\n", "Điều 1.\nNội dung"},
		{"nbsp folded", "Điều\u00a01.", "Điều 1."},
		// "e" + combining circumflex + combining acute composes to "ế".
		{"nfc", "Nghe\u0302\u0301", "Ngh\u1ebf"},
		{"leading blank lines trimmed", "\n\nĐiều 1.", "Điều 1."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "# Chương I  \r\n**Điều 1. Phạm vi**\r\n1\\. Nội dung  "
	once := Normalize(in)
	if twice := Normalize(once); twice != once {
		t.Errorf("Normalize not idempotent: %q then %q", once, twice)
	}
}

func TestLines(t *testing.T) {
	if got := Lines(""); got != nil {
		t.Fatalf("Lines(\"\") = %v, want nil", got)
	}

	lines := Lines("# Chương III\n**Điều 14. Hiệu lực**\n1\\. Nghị định này\n")
	if len(lines) != 4 {
		t.Fatalf("len(Lines()) = %d, want 4", len(lines))
	}
	want := []string{"Chương III", "Điều 14. Hiệu lực", "1. Nghị định này", ""}
	for i, w := range want {
		if lines[i].Text != w {
			t.Errorf("line %d Text = %q, want %q", i+1, lines[i].Text, w)
		}
		if lines[i].Num != i+1 {
			t.Errorf("line %d Num = %d", i+1, lines[i].Num)
		}
	}
	if lines[1].Raw != "**Điều 14. Hiệu lực**" {
		t.Errorf("Raw = %q, want original markdown", lines[1].Raw)
	}
}

func TestDetectMarker(t *testing.T) {
	tests := []struct {
		text    string
		ok      bool
		kind    legal.Kind
		label   string
		ordinal int
		rest    string
	}{
		{"Chương II", true, legal.KindChapter, "Chương II", 2, ""},
		{"CHƯƠNG IV QUY ĐỊNH CHUNG", true, legal.KindChapter, "Chương IV", 4, "QUY ĐỊNH CHUNG"},
		{"Chương IIII", false, 0, "", 0, ""},
		{"Chương trình hành động", false, 0, "", 0, ""},
		{"Mục 1. QUẢN LÝ", true, legal.KindSection, "Mục 1", 1, "QUẢN LÝ"},
		{"Mục tiêu của chính sách", false, 0, "", 0, ""},
		{"Điều 13. Phạm vi điều chỉnh", true, legal.KindArticle, "Điều 13", 13, "Phạm vi điều chỉnh"},
		{"ĐIỀU 2: Đối tượng", true, legal.KindArticle, "Điều 2", 2, "Đối tượng"},
		{"Điều 7a. Bổ sung", true, legal.KindArticle, "Điều 7a", 7, "Bổ sung"},
		{"Điều 5", true, legal.KindArticle, "Điều 5", 5, ""},
		{"Điều1. Phạm vi", true, legal.KindArticle, "Điều 1", 1, "Phạm vi"},
		{"ChươngI", true, legal.KindChapter, "Chương I", 1, ""},
		{"Mục2. Tổ chức", true, legal.KindSection, "Mục 2", 2, "Tổ chức"},
		{"Điều 12 Nghị định này quy định", false, 0, "", 0, ""},
		{"1. Chính sách là", true, legal.KindClause, "1", 1, "Chính sách là"},
		{"2) Trường hợp", true, legal.KindClause, "2", 2, "Trường hợp"},
		{"2. 30 ngày kể từ", true, legal.KindClause, "2", 2, "30 ngày kể từ"},
		{"3.Thời hạn", true, legal.KindClause, "3", 3, "Thời hạn"},
		{"1.5 triệu đồng", false, 0, "", 0, ""},
		{"2021. Năm", false, 0, "", 0, ""},
		{"a) Điểm", false, 0, "", 0, ""},
		{"", false, 0, "", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			m, ok := DetectMarker(Line{Text: tt.text})
			if ok != tt.ok {
				t.Fatalf("DetectMarker(%q) ok = %v, want %v", tt.text, ok, tt.ok)
			}
			if !ok {
				return
			}
			if m.Kind != tt.kind || m.Label != tt.label || m.Ordinal != tt.ordinal || m.Rest != tt.rest {
				t.Errorf("DetectMarker(%q) = %+v, want kind=%v label=%q ordinal=%d rest=%q",
					tt.text, m, tt.kind, tt.label, tt.ordinal, tt.rest)
			}
		})
	}
}

func TestRomanToInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"I", 1, true},
		{"IV", 4, true},
		{"ix", 9, true},
		{"XIV", 14, true},
		{"XL", 40, true},
		{"MCMXCIV", 1994, true},
		{"IIII", 0, false},
		{"IC", 0, false},
		{"ABC", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := RomanToInt(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("RomanToInt(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestQuoteDelta(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"không có ngoặc", 0},
		{`"Điều 5. Nội dung`, 1},
		{"“1. Chính sách là”", 2},
		{"«trích dẫn» và „khác‟", 4},
	}
	for _, tt := range tests {
		if got := QuoteDelta(tt.in); got != tt.want {
			t.Errorf("QuoteDelta(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFirstSentence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Nghị định này quy định chi tiết. Câu thứ hai.", "Nghị định này quy định chi tiết"},
		{"Trong Nghị định này, các từ ngữ dưới đây được hiểu như sau: a) ...", "Trong Nghị định này, các từ ngữ dưới đây được hiểu như sau"},
		{"Mức phạt 1.5 triệu đồng", "Mức phạt 1.5 triệu đồng"},
		{"  nhiều   khoảng   trắng  ", "nhiều khoảng trắng"},
	}
	for _, tt := range tests {
		if got := FirstSentence(tt.in); got != tt.want {
			t.Errorf("FirstSentence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
