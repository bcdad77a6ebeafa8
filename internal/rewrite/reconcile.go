package rewrite

import (
	"github.com/xujh333/triton-shared/internal/ir"
)

// Reconcile removes bridging casts without running general DCE, so it is
// safe between placeholder insertion and pointer analysis: cast pairs are
// folded to a fixpoint and casts with no remaining uses are dropped.
// Returns the bridging casts that could not be eliminated; the caller
// decides whether leftovers are fatal.
func Reconcile(f *ir.Func) []ir.OpID {
	for {
		changed := foldCastPairs(f)
		if eraseDeadCasts(f) {
			changed = true
		}
		if !changed {
			break
		}
	}
	return f.FindOps(ir.OpBridgeCast)
}

func eraseDeadCasts(f *ir.Func) bool {
	changed := false
	for _, id := range f.FindOps(ir.OpBridgeCast) {
		op := f.OpAt(id)
		if op.Kind != ir.OpBridgeCast {
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
