package structured

import (
	"fmt"

	"github.com/xujh333/triton-shared/internal/ir"
	"github.com/xujh333/triton-shared/internal/source"
)

// FoldToIndex materializes a fold as an index-typed value, emitting a
// constant or an index_cast as needed.
func FoldToIndex(b *ir.Builder, types *ir.Interner, f ir.Fold, sp source.Span) ir.ValueID {
	idx := types.Builtins().Index
	if f.IsStatic() {
		return b.ConstInt(idx, f.Static, sp)
	}
	if b.F.TypeOf(f.Val) == idx {
		return f.Val
	}
	return b.IndexCast(f.Val, idx, sp)
}

// FoldToI32 materializes a fold as an i32 value for offset-tensor arithmetic.
func FoldToI32(b *ir.Builder, types *ir.Interner, f ir.Fold, sp source.Span) ir.ValueID {
	i32 := types.Builtins().I32
	if f.IsStatic() {
		return b.ConstInt(i32, f.Static, sp)
	}
	if b.F.TypeOf(f.Val) == i32 {
		return f.Val
	}
	return b.IndexCast(f.Val, i32, sp)
}

// FoldAdd returns a+c, emitting index arithmetic only when both sides are
// dynamic or mixed.
func FoldAdd(b *ir.Builder, types *ir.Interner, a, c ir.Fold, sp source.Span) ir.Fold {
	switch {
	case a.IsStatic() && c.IsStatic():
		return ir.StaticFold(a.Static + c.Static)
	case a.IsStatic() && a.Static == 0:
		return c
	case c.IsStatic() && c.Static == 0:
		return a
	}
	idx := types.Builtins().Index
	va := FoldToIndex(b, types, a, sp)
	vc := FoldToIndex(b, types, c, sp)
	return ir.ValueFold(b.AddI(va, vc, idx, sp))
}

// FoldMul returns a*c with the same static short-circuits.
func FoldMul(b *ir.Builder, types *ir.Interner, a, c ir.Fold, sp source.Span) ir.Fold {
	switch {
	case a.IsStatic() && c.IsStatic():
		return ir.StaticFold(a.Static * c.Static)
	case a.IsStatic() && a.Static == 0, c.IsStatic() && c.Static == 0:
		return ir.StaticFold(0)
	case a.IsStatic() && a.Static == 1:
		return c
	case c.IsStatic() && c.Static == 1:
		return a
	}
	idx := types.Builtins().Index
	va := FoldToIndex(b, types, a, sp)
	vc := FoldToIndex(b, types, c, sp)
	return ir.ValueFold(b.MulI(va, vc, idx, sp))
}

// EmitOffsets materializes a state's per-element offsets as an i32 tensor of
// the state's shape: offset + sum_i(index_i * strides[i]). Gather states
// return their offset tensor as-is.
func EmitOffsets(b *ir.Builder, types *ir.Interner, st State, sp source.Span) (ir.ValueID, error) {
	if st.IsGather() {
		return st.OffsetTensor, nil
	}
	if st.Rank() == 0 {
		return ir.NoValueID, fmt.Errorf("structured: scalar state has no offset tensor")
	}
	i32 := types.Builtins().I32
	full := types.Tensor(st.Dims, i32)

	acc := b.Splat(FoldToI32(b, types, st.Offset, sp), full, sp)
	for dim, stride := range st.Strides {
		if stride.IsStatic() && stride.Static == 0 {
			continue
		}
		n := st.Dims[dim]
		line := b.MakeRange(0, n, types.Tensor([]int64{n}, i32), sp)
		scaled := b.MulI(line, b.Splat(FoldToI32(b, types, stride, sp), types.Tensor([]int64{n}, i32), sp),
			types.Tensor([]int64{n}, i32), sp)

		grown := scaled
		if st.Rank() > 1 {
			// Grow the 1-D contribution to the full rank with unit axes,
			// then stretch them.
			shape := []int64{n}
			for axis := 0; axis < st.Rank(); axis++ {
				if axis == dim {
					continue
				}
				shape = insertAt(shape, axis, 1)
				grown = b.ExpandDims(grown, int64(axis), types.Tensor(shape, i32), sp)
			}
			grown = b.Broadcast(grown, full, sp)
		}
		acc = b.AddI(acc, grown, full, sp)
	}
	return acc, nil
}
