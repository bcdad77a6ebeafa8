package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/xujh333/triton-shared/internal/ir"
)

// CheckArenaInvariants runs structural checks the verifier does not repeat on
// every pass boundary:
// 1) every live op is attached to exactly one region
// 2) operand and result IDs stay inside the value arena
// 3) every value's recorded def actually lists it as a result
// 4) region op lists hold no erased ops
func CheckArenaInvariants(f *ir.Func) error {
	if f == nil {
		return fmt.Errorf("nil function")
	}
	nvals, err := safecast.Conv[int32](len(f.Values))
	if err != nil {
		return fmt.Errorf("value arena overflow: %w", err)
	}

	attached := make(map[ir.OpID]int)
	for r := range f.Regions {
		for _, id := range f.Regions[r].Ops {
			op := f.OpAt(id)
			if op == nil {
				return fmt.Errorf("region %d: op %d out of arena", r, id)
			}
			if op.Kind == ir.OpErased {
				return fmt.Errorf("region %d: erased op %d still attached", r, id)
			}
			attached[id]++
		}
	}
	for id, n := range attached {
		if n != 1 {
			return fmt.Errorf("op %d attached to %d regions", id, n)
		}
	}

	inRange := func(v ir.ValueID) bool { return v.IsValid() && int32(v) < nvals }
	for id := range f.Ops {
		op := f.OpAt(ir.OpID(id))
		if op.Kind == ir.OpErased {
			continue
		}
		for _, v := range op.Operands {
			if !inRange(v) {
				return fmt.Errorf("op %d: operand v%d out of arena", id, v)
			}
		}
		for _, v := range op.Results {
			if !inRange(v) {
				return fmt.Errorf("op %d: result v%d out of arena", id, v)
			}
		}
	}

	for i := range f.Values {
		def := f.Values[i].Def
		if !def.IsValid() {
			continue // region parameter
		}
		op := f.OpAt(def)
		if op == nil {
			return fmt.Errorf("v%d: def op %d out of arena", i, def)
		}
		if op.Kind == ir.OpErased {
			continue // detached results are tolerated until reclaimed
		}
		found := false
		for _, res := range op.Results {
			if res == ir.ValueID(i) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("v%d: def op %d does not list it as a result", i, def)
		}
	}
	return nil
}

// CheckModuleInvariants applies CheckArenaInvariants to every function.
func CheckModuleInvariants(m *ir.Module) error {
	if m == nil {
		return fmt.Errorf("nil module")
	}
	for _, f := range m.Funcs {
		if err := CheckArenaInvariants(f); err != nil {
			return fmt.Errorf("function %s: %w", f.Name, err)
		}
	}
	return nil
}
