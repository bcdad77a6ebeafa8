package rewrite

import (
	"github.com/xujh333/triton-shared/internal/ir"
	"github.com/xujh333/triton-shared/internal/source"
)

// TupleFor returns the stage-1 composite type for a pointer-like type: the
// original type, a scalar index offset, and one index stride per dimension.
func TupleFor(types *ir.Interner, t ir.TypeID) ir.TypeID {
	idx := types.Builtins().Index
	elems := []ir.TypeID{t, idx}
	for i := 0; i < types.Rank(t); i++ {
		elems = append(elems, idx)
	}
	return types.Tuple(elems...)
}

// NewTupleStage builds the 1-to-1 stage: every pointer-like type becomes a
// tuple of {pointer, offset, strides}, bridged both ways with casts so
// control-flow signatures stay single-valued.
func NewTupleStage(types *ir.Interner) *TypeConverter {
	return &TypeConverter{
		Types: types,
		Convert: func(t ir.TypeID) ([]ir.TypeID, bool) {
			if types.IsPtrLike(t) {
				return []ir.TypeID{TupleFor(types, t)}, true
			}
			return []ir.TypeID{t}, true
		},
		MaterializeTarget: func(b *ir.Builder, orig ir.ValueID, to []ir.TypeID, sp source.Span) []ir.ValueID {
			_, res := b.BridgeCast([]ir.ValueID{orig}, to, sp)
			return res
		},
		MaterializeSource: func(b *ir.Builder, leaves []ir.ValueID, to ir.TypeID, sp source.Span) ir.ValueID {
			_, res := b.BridgeCast(leaves, []ir.TypeID{to}, sp)
			return res[0]
		},
	}
}

// NewFlattenStage builds the 1-to-N stage: stage-1 tuples flatten into their
// leaves. Where a converted position consumes a tuple built by a stage-1
// cast from a pointer value, the target materialization plants a
// get_structured_state placeholder on that pointer instead of another cast,
// so pointer analysis later finds the decomposition site.
func NewFlattenStage(types *ir.Interner) *TypeConverter {
	return &TypeConverter{
		Types: types,
		Convert: func(t ir.TypeID) ([]ir.TypeID, bool) {
			leaves := types.FlattenTuple(t)
			if len(leaves) == 0 {
				return nil, false
			}
			return leaves, true
		},
		MaterializeTarget: func(b *ir.Builder, orig ir.ValueID, to []ir.TypeID, sp source.Span) []ir.ValueID {
			if def := b.F.DefOf(orig); def != nil && def.Kind == ir.OpBridgeCast &&
				len(def.Operands) == 1 && types.IsPtrLike(b.F.TypeOf(def.Operands[0])) {
				_, res := b.GetState(def.Operands[0], to, sp)
				return res
			}
			_, res := b.BridgeCast([]ir.ValueID{orig}, to, sp)
			return res
		},
		MaterializeSource: func(b *ir.Builder, leaves []ir.ValueID, to ir.TypeID, sp source.Span) ir.ValueID {
			_, res := b.BridgeCast(leaves, []ir.TypeID{to}, sp)
			return res[0]
		},
	}
}
