package ir

import (
	"strings"
	"testing"

	"github.com/xujh333/triton-shared/internal/source"
)

func TestVerifyUseBeforeDef(t *testing.T) {
	m := NewModule("test")
	b := m.Types.Builtins()
	f := NewFunc("bad")
	m.Funcs = append(m.Funcs, f)

	bld := NewBuilder(f)
	one := bld.ConstInt(b.I32, 1, source.NoSpan)
	sum := bld.AddI(one, one, b.I32, source.NoSpan)
	bld.Return(source.NoSpan)

	// Swap the two ops so the addi reads its operand before it exists.
	ops := f.RegionAt(f.Body).Ops
	ops[0], ops[1] = ops[1], ops[0]
	_ = sum

	err := Verify(m)
	if err == nil || !strings.Contains(err.Error(), "before definition") {
		t.Fatalf("expected use-before-def error, got %v", err)
	}
}

func TestVerifyMissingTerminator(t *testing.T) {
	m := NewModule("test")
	f := NewFunc("bad")
	m.Funcs = append(m.Funcs, f)
	bld := NewBuilder(f)
	bld.ConstInt(m.Types.Builtins().I32, 0, source.NoSpan)

	err := Verify(m)
	if err == nil || !strings.Contains(err.Error(), "must end with return") {
		t.Fatalf("expected terminator error, got %v", err)
	}
}

func TestVerifyForShape(t *testing.T) {
	m := NewModule("test")
	b := m.Types.Builtins()
	f := NewFunc("bad")
	m.Funcs = append(m.Funcs, f)

	bld := NewBuilder(f)
	init := bld.ConstInt(b.I32, 0, source.NoSpan)

	// Body region missing the induction variable parameter.
	body := f.NewRegion()
	acc := f.AddParam(body, b.I32, source.NoSpan)
	ip := bld.InsertPoint()
	bld.SetRegionEnd(body)
	bld.Yield([]ValueID{acc}, source.NoSpan)
	bld.SetInsertPoint(ip)
	bld.For(0, 4, 1, []ValueID{init}, body, []TypeID{b.I32}, source.NoSpan)
	bld.Return(source.NoSpan)

	err := Verify(m)
	if err == nil || !strings.Contains(err.Error(), "induction var") {
		t.Fatalf("expected for-shape error, got %v", err)
	}
}

func TestVerifyYieldArity(t *testing.T) {
	m := NewModule("test")
	b := m.Types.Builtins()
	f := NewFunc("bad")
	m.Funcs = append(m.Funcs, f)

	bld := NewBuilder(f)
	init := bld.ConstInt(b.I32, 0, source.NoSpan)
	body := f.NewRegion()
	f.AddParam(body, b.Index, source.NoSpan)
	f.AddParam(body, b.I32, source.NoSpan)
	ip := bld.InsertPoint()
	bld.SetRegionEnd(body)
	bld.Yield(nil, source.NoSpan)
	bld.SetInsertPoint(ip)
	bld.For(0, 4, 1, []ValueID{init}, body, []TypeID{b.I32}, source.NoSpan)
	bld.Return(source.NoSpan)

	err := Verify(m)
	if err == nil || !strings.Contains(err.Error(), "yield carries 0 values") {
		t.Fatalf("expected yield arity error, got %v", err)
	}
}

func TestVerifyAncestorScopeVisible(t *testing.T) {
	m := NewModule("test")
	b := m.Types.Builtins()
	f := NewFunc("ok")
	m.Funcs = append(m.Funcs, f)

	bld := NewBuilder(f)
	outer := bld.ConstInt(b.I32, 3, source.NoSpan)
	init := bld.ConstInt(b.I32, 0, source.NoSpan)

	body := f.NewRegion()
	f.AddParam(body, b.Index, source.NoSpan)
	acc := f.AddParam(body, b.I32, source.NoSpan)
	ip := bld.InsertPoint()
	bld.SetRegionEnd(body)
	// References a value defined in the enclosing region.
	next := bld.AddI(acc, outer, b.I32, source.NoSpan)
	bld.Yield([]ValueID{next}, source.NoSpan)
	bld.SetInsertPoint(ip)
	bld.For(0, 4, 1, []ValueID{init}, body, []TypeID{b.I32}, source.NoSpan)
	bld.Return(source.NoSpan)

	if err := Verify(m); err != nil {
		t.Fatalf("ancestor-scope use should verify: %v", err)
	}
}

func TestVerifyLoweredFlagsLeftovers(t *testing.T) {
	m := NewModule("test")
	b := m.Types.Builtins()
	f := NewFunc("bad")
	m.Funcs = append(m.Funcs, f)
	ptrT := m.Types.Ptr(b.F32)
	base := f.AddParam(f.Body, ptrT, source.NoSpan)

	bld := NewBuilder(f)
	bld.BridgeCast([]ValueID{base}, []TypeID{ptrT}, source.NoSpan)
	bld.Return(source.NoSpan)

	err := VerifyLowered(m)
	if err == nil {
		t.Fatalf("expected lowering contract violations")
	}
	msg := err.Error()
	for _, want := range []string{"leftover bridging cast", "pointer-typed parameter", "pointer-typed result"} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in %q", want, msg)
		}
	}
}

func TestVerifyLoweredAcceptsCleanModule(t *testing.T) {
	m := NewModule("test")
	b := m.Types.Builtins()
	f := NewFunc("ok")
	m.Funcs = append(m.Funcs, f)
	memT := m.Types.Memref([]int64{DynamicDim}, b.F32, false)
	mem := f.AddParam(f.Body, memT, source.NoSpan)

	bld := NewBuilder(f)
	view := bld.ReinterpretCast(mem, StaticFold(0), []Fold{StaticFold(8)}, []Fold{StaticFold(1)},
		m.Types.Memref([]int64{8}, b.F32, true), source.NoSpan)
	bld.ToTensor(view, m.Types.Tensor([]int64{8}, b.F32), source.NoSpan)
	bld.Return(source.NoSpan)

	if err := VerifyLowered(m); err != nil {
		t.Fatalf("clean module flagged: %v", err)
	}
}
