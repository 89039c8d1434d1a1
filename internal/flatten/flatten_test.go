package flatten

import (
	"strings"
	"testing"

	"github.com/jackzampolin/vbpl/internal/ident"
	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/segment"
)

func TestFlatten(t *testing.T) {
	text := strings.Join([]string{
		"Chương I",
		"QUY ĐỊNH CHUNG",
		"Điều 1. Phạm vi",
		"Nội dung.",
		"Chương II",
		"TỔ CHỨC",
		"Mục 1. BỘ MÁY",
		"Điều 2. Cơ cấu",
		"1. Khoản một.",
		"2. Khoản hai.",
	}, "\n")
	forest := segment.Segment(text)
	ident.Assign(forest)

	info := legal.DocumentInfo{DocumentID: "123456"}
	got := Flatten(info, forest)
	if len(got) != 2 {
		t.Fatalf("Flatten() returned %d articles, want 2", len(got))
	}

	first := got[0]
	if first.ID != "123456_1" || first.DocumentID != "123456" {
		t.Errorf("first = %s/%s", first.DocumentID, first.ID)
	}
	if first.Chapter == nil || *first.Chapter != "Chương I: QUY ĐỊNH CHUNG" {
		t.Errorf("first.Chapter = %v", first.Chapter)
	}
	if first.Section != nil {
		t.Errorf("first.Section = %q, want nil", *first.Section)
	}

	second := got[1]
	if second.ID != "123456_2" {
		t.Errorf("second.ID = %q", second.ID)
	}
	if second.Section == nil || *second.Section != "Mục 1: BỘ MÁY" {
		t.Errorf("second.Section = %v", second.Section)
	}
	if second.NodeID != "dieu-2_muc-1_chuong-2" {
		t.Errorf("second.NodeID = %q", second.NodeID)
	}
	if len(second.Clauses) != 2 {
		t.Errorf("second clauses = %d, want 2", len(second.Clauses))
	}
}

func TestFlatten_ArticlesOnly(t *testing.T) {
	forest := segment.Segment("Điều 1. A\nNội dung.\nĐiều 2. B\nNội dung.")
	got := Flatten(legal.DocumentInfo{DocumentID: "d"}, forest)
	if len(got) != 2 {
		t.Fatalf("Flatten() returned %d articles, want 2", len(got))
	}
	for _, a := range got {
		if a.Chapter != nil || a.Section != nil {
			t.Errorf("%s: chapter/section should be nil", a.ID)
		}
	}
}

func TestFlatten_Empty(t *testing.T) {
	if got := Flatten(legal.DocumentInfo{DocumentID: "d"}, nil); len(got) != 0 {
		t.Errorf("Flatten(nil) = %v, want empty", got)
	}
}

func TestHeading(t *testing.T) {
	if got := Heading(&legal.Node{Label: "Chương III"}); got != "Chương III" {
		t.Errorf("Heading() = %q", got)
	}
	if got := Heading(&legal.Node{Label: "Mục 2", Title: "KẾ HOẠCH"}); got != "Mục 2: KẾ HOẠCH" {
		t.Errorf("Heading() = %q", got)
	}
}
