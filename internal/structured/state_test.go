package structured

import (
	"testing"

	"github.com/xujh333/triton-shared/internal/ir"
)

func TestRangedState(t *testing.T) {
	s := Ranged(ir.StaticFold(0), 1024, ir.StaticFold(1))
	if s.Rank() != 1 || s.Dims[0] != 1024 {
		t.Fatalf("shape = %v", s.Dims)
	}
	if s.HasBase() || s.IsGather() {
		t.Fatalf("range contribution must have neither base nor offset tensor")
	}
	if s.Class() != ClassUnresolved {
		t.Fatalf("baseless state classifies as %v", s.Class())
	}
}

func TestExpandDim(t *testing.T) {
	s := Ranged(ir.StaticFold(0), 16, ir.StaticFold(4))
	out, err := s.ExpandDim(0)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(out.Dims) != 2 || out.Dims[0] != 1 || out.Dims[1] != 16 {
		t.Fatalf("dims = %v", out.Dims)
	}
	if !out.Strides[0].IsStatic() || out.Strides[0].Static != 0 {
		t.Fatalf("inserted stride = %v", out.Strides[0])
	}
	if out.Strides[1].Static != 4 {
		t.Fatalf("original stride moved: %v", out.Strides)
	}
	// The receiver is unchanged: states are values.
	if s.Rank() != 1 {
		t.Fatalf("receiver mutated")
	}
}

func TestBroadcastZeroesStretchedStrides(t *testing.T) {
	s := Ranged(ir.StaticFold(0), 16, ir.StaticFold(1))
	s, err := s.ExpandDim(1)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	out, err := s.BroadcastTo([]int64{16, 8})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if out.Strides[0].Static != 1 || out.Strides[1].Static != 0 {
		t.Fatalf("strides = %v", out.Strides)
	}
	if _, err := s.BroadcastTo([]int64{4, 8}); err == nil {
		t.Fatalf("expected error for non-unit stretch")
	}
}

func TestSplatTo(t *testing.T) {
	s := Scalar(ir.StaticFold(12))
	out, err := s.SplatTo([]int64{32})
	if err != nil {
		t.Fatalf("splat: %v", err)
	}
	if out.Offset.Static != 12 || out.Strides[0].Static != 0 {
		t.Fatalf("splatted state = %v", out)
	}
	if _, err := out.SplatTo([]int64{4}); err == nil {
		t.Fatalf("splat of a ranked state must fail")
	}
}

func TestClassification(t *testing.T) {
	base := ir.ValueID(3)
	strided := State{Base: base, Offset: ir.StaticFold(0), Strides: []ir.Fold{ir.StaticFold(4)},
		Dims: []int64{1024}, OffsetTensor: ir.NoValueID}
	if strided.Class() != ClassStrided {
		t.Fatalf("class = %v", strided.Class())
	}
	g := Gather(base, ir.ValueID(7), []int64{256})
	if g.Class() != ClassGather {
		t.Fatalf("class = %v", g.Class())
	}
	if g.String() == "" || strided.String() == "" {
		t.Fatalf("String should describe the state")
	}
}
