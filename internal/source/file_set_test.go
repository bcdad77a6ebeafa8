package source

import (
	"testing"
)

func TestFileSetAddAndLookup(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("kernel.ir", []byte("func @k() {\n  return\n}\n"), FileVirtual)

	f := fs.Get(id)
	if f == nil {
		t.Fatalf("Get(%d) returned nil", id)
	}
	if f.Path != "kernel.ir" {
		t.Errorf("path = %q, want kernel.ir", f.Path)
	}
	got, ok := fs.Lookup("kernel.ir")
	if !ok || got != id {
		t.Errorf("Lookup = (%d, %v), want (%d, true)", got, ok, id)
	}
}

func TestFileSetPosition(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("m.ir", []byte("abc\ndef\n"), FileVirtual)

	cases := []struct {
		offset uint32
		line   uint32
		col    uint32
	}{
		{0, 1, 1},
		{2, 1, 3},
		{4, 2, 1},
		{6, 2, 3},
	}
	for _, c := range cases {
		lc, ok := fs.Position(id, c.offset)
		if !ok {
			t.Fatalf("Position(%d) failed", c.offset)
		}
		if lc.Line != c.line || lc.Col != c.col {
			t.Errorf("Position(%d) = %d:%d, want %d:%d", c.offset, lc.Line, lc.Col, c.line, c.col)
		}
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 10, End: 20}
	b := Span{File: 1, Start: 5, End: 15}
	got := a.Cover(b)
	if got.Start != 5 || got.End != 20 {
		t.Errorf("Cover = %v, want 1:5-20", got)
	}

	other := Span{File: 2, Start: 0, End: 100}
	if got := a.Cover(other); got != a {
		t.Errorf("Cover across files should be a no-op, got %v", got)
	}
}
