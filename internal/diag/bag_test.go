package diag

import (
	"testing"

	"github.com/xujh333/triton-shared/internal/source"
)

func TestBagLimitAndErrors(t *testing.T) {
	b := NewBag(2)
	sp := source.Span{File: 0, Start: 0, End: 4}

	if !b.Add(NewWarning(PtrUnsupportedOp, sp, "cannot derive strides")) {
		t.Fatalf("first Add rejected")
	}
	if !b.Add(NewError(LowUnresolvedAccess, sp, "access left unresolved")) {
		t.Fatalf("second Add rejected")
	}
	if b.Add(NewError(LowBadElemType, sp, "overflow")) {
		t.Errorf("Add beyond cap should return false")
	}
	if !b.HasErrors() {
		t.Errorf("HasErrors = false, want true")
	}
	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2", b.Len())
	}
}

func TestBagSortDeterministic(t *testing.T) {
	b := NewBag(8)
	b.Add(NewWarning(PtrUnresolvedState, source.Span{File: 1, Start: 20, End: 24}, "late"))
	b.Add(NewError(LowUnresolvedAccess, source.Span{File: 0, Start: 5, End: 9}, "early"))
	b.Add(NewWarning(PtrUnsupportedOp, source.Span{File: 0, Start: 5, End: 9}, "same span warning"))
	b.Sort()

	items := b.Items()
	if items[0].Primary.File != 0 || items[0].Severity != SevError {
		t.Errorf("expected error at file 0 first, got %+v", items[0])
	}
	if items[2].Primary.File != 1 {
		t.Errorf("expected file 1 last, got %+v", items[2])
	}
}

func TestCodeBands(t *testing.T) {
	for code, want := range map[Code]string{
		UnknownCode:           "DIAG0000",
		ParseSyntax:           "PARSE1001",
		ConvStructuralFailure: "CONV3001",
		PtrRankMismatch:       "PTR4002",
		LowBadMaskShape:       "LOWER5002",
	} {
		if got := code.String(); got != want {
			t.Errorf("Code(%d).String() = %q, want %q", uint16(code), got, want)
		}
	}
}

func TestDedupReporter(t *testing.T) {
	b := NewBag(8)
	r := NewDedupReporter(BagReporter{Bag: b})
	sp := source.Span{File: 0, Start: 1, End: 2}

	ReportWarning(r, PtrUnsupportedOp, sp, "unsupported arithmetic")
	ReportWarning(r, PtrUnsupportedOp, sp, "unsupported arithmetic")
	ReportWarning(r, PtrUnsupportedOp, sp, "different message")

	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2 after dedup", b.Len())
	}
}
