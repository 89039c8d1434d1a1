package output

import (
	"bytes"
	"strings"
	"testing"
)

type textKind int

func (k textKind) MarshalText() ([]byte, error) { return []byte("ARTICLE"), nil }

type sample struct {
	ID       string            `json:"id"`
	Kind     textKind          `json:"kind"`
	Ordinal  int               `json:"ordinal"`
	Number   string            `json:"number"`
	Targets  []string          `json:"targets"`
	Chapter  *string           `json:"chapter"`
	Extra    map[string]string `json:"extra,omitempty"`
	internal string
}

func TestTo(t *testing.T) {
	data := sample{ID: "100_1", Ordinal: 1, Number: "13", Targets: []string{}, internal: "x"}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := To(&buf, FormatJSON, data); err != nil {
			t.Fatalf("To() error = %v", err)
		}
		want := `{
  "id": "100_1",
  "kind": "ARTICLE",
  "ordinal": 1,
  "number": "13",
  "targets": [],
  "chapter": null
}
`
		if buf.String() != want {
			t.Errorf("To() =\n%s\nwant\n%s", buf.String(), want)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := To(&buf, FormatYAML, data); err != nil {
			t.Fatalf("To() error = %v", err)
		}
		want := `id: "100_1"
kind: ARTICLE
ordinal: 1
number: "13"
targets: []
chapter: null
`
		if buf.String() != want {
			t.Errorf("To() =\n%s\nwant\n%s", buf.String(), want)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := To(&bytes.Buffer{}, Format("xml"), data); err == nil {
			t.Error("To() error = nil for unknown format")
		}
	})
}

func TestTo_YAMLMultiline(t *testing.T) {
	var buf bytes.Buffer
	if err := To(&buf, FormatYAML, map[string]string{"content": "Điều 1. Phạm vi\nNghị định này quy định"}); err != nil {
		t.Fatalf("To() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Nghị định này quy định") {
		t.Errorf("To() lost content: %s", buf.String())
	}
}

func TestSetFormat(t *testing.T) {
	t.Cleanup(func() { SetFormat("") })

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"", DefaultFormat, false},
		{"xml", DefaultFormat, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			SetFormat("")
			err := SetFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if GetFormat() != tt.want {
				t.Errorf("GetFormat() = %q, want %q", GetFormat(), tt.want)
			}
		})
	}
}
