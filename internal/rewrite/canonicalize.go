package rewrite

import (
	"github.com/xujh333/triton-shared/internal/ir"
)

// Canonicalize runs structural simplification to a fixpoint: bridging-cast
// pair folding, then dead-code elimination of erasable ops with no remaining
// uses. Loads and placeholders are not erasable; the pipeline relies on that
// when simplifying between conversion stages.
func Canonicalize(f *ir.Func) {
	for {
		changed := foldCastPairs(f)
		if eraseDeadOps(f) {
			changed = true
		}
		if !changed {
			return
		}
	}
}

// eraseDeadOps removes erasable ops whose results are all unused. One sweep;
// returns whether anything was removed.
func eraseDeadOps(f *ir.Func) bool {
	changed := false
	// Walk in reverse program order so chains die in one sweep.
	var order []ir.OpID
	f.Walk(func(id ir.OpID, op *ir.Op) ir.WalkAction {
		order = append(order, id)
		return ir.WalkContinue
	})
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		op := f.OpAt(id)
		if op.Kind == ir.OpErased || !op.Kind.Erasable() {
			continue
		}
		live := false
		for _, res := range op.Results {
			if f.HasUses(res) {
				live = true
				break
			}
		}
		if !live {
			f.EraseOp(id)
			changed = true
		}
	}
	return changed
}

// foldCastPairs cancels bridging casts that invert one another:
//
//   - a cast whose operands are exactly the results of another cast, with
//     result types matching that cast's operand types, forwards the original
//     operands;
//   - a single-operand, single-result cast fed by another cast forwards the
//     feeding cast's leading operand when the types line up (the decomposed
//     form keeps the original pointer as its first leaf).
//
// Returns whether anything changed.
func foldCastPairs(f *ir.Func) bool {
	changed := false
	for _, id := range f.FindOps(ir.OpBridgeCast) {
		op := f.OpAt(id)
		if op.Kind != ir.OpBridgeCast {
			continue
		}
		feeder := feedingCast(f, op)
		if feeder == nil {
			continue
		}
		if forwardFullInverse(f, op, feeder) || forwardLeadingLeaf(f, op, feeder) {
			f.EraseOp(id)
			changed = true
		}
	}
	return changed
}

// feedingCast returns the bridge cast defining every operand of op, or nil.
func feedingCast(f *ir.Func, op *ir.Op) *ir.Op {
	var feeder *ir.Op
	for _, v := range op.Operands {
		def := f.DefOf(v)
		if def == nil || def.Kind != ir.OpBridgeCast {
			return nil
		}
		if feeder == nil {
			feeder = def
		} else if feeder != def {
			return nil
		}
	}
	return feeder
}

func forwardFullInverse(f *ir.Func, op, feeder *ir.Op) bool {
	if len(op.Operands) != len(feeder.Results) || len(op.Results) != len(feeder.Operands) {
		return false
	}
	for i, v := range op.Operands {
		if v != feeder.Results[i] {
			return false
		}
	}
	for i, res := range op.Results {
		if f.TypeOf(res) != f.TypeOf(feeder.Operands[i]) {
			return false
		}
	}
	for i, res := range op.Results {
		f.ReplaceAllUses(res, feeder.Operands[i])
	}
	return true
}

func forwardLeadingLeaf(f *ir.Func, op, feeder *ir.Op) bool {
	if len(op.Operands) != 1 || len(op.Results) != 1 || len(feeder.Operands) == 0 {
		return false
	}
	lead := feeder.Operands[0]
	if f.TypeOf(op.Results[0]) != f.TypeOf(lead) {
		return false
	}
	f.ReplaceAllUses(op.Results[0], lead)
	return true
}
