package irparse

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xujh333/triton-shared/internal/diag"
	"github.com/xujh333/triton-shared/internal/ir"
	"github.com/xujh333/triton-shared/internal/source"
)

func parseString(t *testing.T, src string) (*ir.Module, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	bag := diag.NewBag(64)
	m, err := Parse(fs, "test.ir", []byte(src), diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("parse: %v\ndiagnostics: %+v", err, bag.Items())
	}
	return m, bag
}

func TestParseRoundTrip(t *testing.T) {
	src := strings.Join([]string{
		"func @kernel(%arg0: ptr<f32>, %arg1: i32) {",
		"  %0 = make_range {start = 0, end = 1024} : tensor<1024 x i32>",
		"  %1 = splat %arg0 : tensor<1024 x ptr<f32>>",
		"  %2 = addptr %1, %0 : tensor<1024 x ptr<f32>>",
		"  %3 = load %2 : tensor<1024 x f32>",
		"  store %2, %3",
		"  return",
		"}",
		"",
	}, "\n")
	m, _ := parseString(t, src)
	if err := ir.Verify(m); err != nil {
		t.Fatalf("verify: %v", err)
	}

	out := ir.DumpString(m)
	back, _ := parseString(t, out)
	if diff := cmp.Diff(out, ir.DumpString(back)); diff != "" {
		t.Fatalf("round trip diverges (-first +second):\n%s", diff)
	}
}

func TestParseForLoop(t *testing.T) {
	src := strings.Join([]string{
		"func @loop(%arg0: i32) {",
		"  %0, %1 = for {lo = 0, hi = 4, step = 1} iter(%arg0, %arg0) {",
		"    ^(%iv: index, %a: i32, %b: i32):",
		"      %s = addi %a, %b : i32",
		"      yield %s, %a",
		"  } : i32, i32",
		"  return",
		"}",
	}, "\n")
	m, _ := parseString(t, src)
	if err := ir.Verify(m); err != nil {
		t.Fatalf("verify: %v", err)
	}
	f := m.FuncByName("loop")
	fors := f.FindOps(ir.OpFor)
	if len(fors) != 1 {
		t.Fatalf("expected one for, got %d", len(fors))
	}
	op := f.OpAt(fors[0])
	if len(op.Ints) != 3 || op.Ints[1] != 4 {
		t.Fatalf("loop bounds decoded wrong: %v", op.Ints)
	}
	if len(op.Operands) != 2 || len(op.Results) != 2 {
		t.Fatalf("iter arity decoded wrong")
	}
}

func TestParseStridedPtrAttrs(t *testing.T) {
	src := strings.Join([]string{
		"func @k(%arg0: ptr<f32>, %arg1: index) {",
		"  %0 = make_strided_ptr {offset = 16, strides = [4, ?]} %arg0, %arg1 : ptr<f32>",
		"  return",
		"}",
	}, "\n")
	m, _ := parseString(t, src)
	f := m.FuncByName("k")
	ops := f.FindOps(ir.OpMakeStridedPtr)
	if len(ops) != 1 {
		t.Fatalf("expected one make_strided_ptr")
	}
	_, offset, strides := ir.StridedPtrInfo(f.OpAt(ops[0]))
	if !offset.IsStatic() || offset.Static != 16 {
		t.Fatalf("offset = %v", offset)
	}
	if len(strides) != 2 || strides[0].Static != 4 || strides[1].IsStatic() {
		t.Fatalf("strides = %v", strides)
	}
}

func TestParseReinterpretCast(t *testing.T) {
	src := strings.Join([]string{
		"func @k(%arg0: memref<? x f32>, %arg1: index) {",
		"  %0 = reinterpret_cast {offset = ?, sizes = [8], strides = [1]} %arg0, %arg1 : memref<8 x f32, strided>",
		"  %1 = to_tensor %0 : tensor<8 x f32>",
		"  return",
		"}",
	}, "\n")
	m, _ := parseString(t, src)
	f := m.FuncByName("k")
	ops := f.FindOps(ir.OpReinterpretCast)
	_, offset, sizes, strides := ir.ReinterpretInfo(f.OpAt(ops[0]))
	if offset.IsStatic() {
		t.Fatalf("offset should be dynamic")
	}
	if len(sizes) != 1 || sizes[0].Static != 8 {
		t.Fatalf("sizes = %v", sizes)
	}
	if len(strides) != 1 || strides[0].Static != 1 {
		t.Fatalf("strides = %v", strides)
	}
}

func TestParseCmpPredicate(t *testing.T) {
	src := strings.Join([]string{
		"func @k(%arg0: tensor<16 x i32>) {",
		`  %0 = cmpi {pred = "slt"} %arg0, %arg0 : tensor<16 x i1>`,
		"  return",
		"}",
	}, "\n")
	m, _ := parseString(t, src)
	f := m.FuncByName("k")
	op := f.OpAt(f.FindOps(ir.OpCmpI)[0])
	if ir.CmpPred(op.Ints[0]) != ir.CmpSLT {
		t.Fatalf("predicate = %v", ir.CmpPred(op.Ints[0]))
	}
}

func TestParseReportsUnknownOp(t *testing.T) {
	fs := source.NewFileSet()
	bag := diag.NewBag(64)
	src := "func @k() {\n  frobnicate\n  return\n}\n"
	if _, err := Parse(fs, "bad.ir", []byte(src), diag.BagReporter{Bag: bag}); err == nil {
		t.Fatalf("expected error")
	}
	if !hasCode(bag, diag.ParseUnknownOp) {
		t.Fatalf("expected ParseUnknownOp, got %+v", bag.Items())
	}
}

func TestParseReportsUndefinedValue(t *testing.T) {
	fs := source.NewFileSet()
	bag := diag.NewBag(64)
	src := "func @k() {\n  %0 = splat %missing : tensor<4 x i32>\n  return\n}\n"
	if _, err := Parse(fs, "bad.ir", []byte(src), diag.BagReporter{Bag: bag}); err == nil {
		t.Fatalf("expected error")
	}
	if !hasCode(bag, diag.ParseUndefValue) {
		t.Fatalf("expected ParseUndefValue, got %+v", bag.Items())
	}
}

func TestParseReportsBadType(t *testing.T) {
	fs := source.NewFileSet()
	bag := diag.NewBag(64)
	src := "func @k(%arg0: q37) {\n  return\n}\n"
	if _, err := Parse(fs, "bad.ir", []byte(src), diag.BagReporter{Bag: bag}); err == nil {
		t.Fatalf("expected error")
	}
	if !hasCode(bag, diag.ParseBadType) {
		t.Fatalf("expected ParseBadType, got %+v", bag.Items())
	}
}

func TestParseSyntaxError(t *testing.T) {
	fs := source.NewFileSet()
	bag := diag.NewBag(64)
	if _, err := Parse(fs, "bad.ir", []byte("func oops"), diag.BagReporter{Bag: bag}); err == nil {
		t.Fatalf("expected error")
	}
	if !hasCode(bag, diag.ParseSyntax) {
		t.Fatalf("expected ParseSyntax, got %+v", bag.Items())
	}
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}
