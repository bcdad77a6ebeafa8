package ir

import (
	"errors"
	"fmt"
)

// Verify checks module invariants: arena integrity, def-before-use through
// nested regions, terminator placement and basic per-op shape rules.
func Verify(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := verifyFunc(f, m.Types); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

// VerifyFunc checks a single function against the same invariants as Verify.
func VerifyFunc(f *Func, types *Interner) error {
	return verifyFunc(f, types)
}

func verifyFunc(f *Func, types *Interner) error {
	var errs []error

	v := &verifier{f: f, types: types, inScope: make(map[ValueID]bool)}
	if err := v.verifyRegion(f.Body, nil); err != nil {
		errs = append(errs, err)
	}

	for i := range f.Values {
		if f.Values[i].Type == NoTypeID {
			errs = append(errs, fmt.Errorf("v%d: missing type", i))
		}
	}
	return errors.Join(errs...)
}

type verifier struct {
	f       *Func
	types   *Interner
	inScope map[ValueID]bool
}

func (v *verifier) verifyRegion(r RegionID, parent *Op) error {
	region := v.f.RegionAt(r)
	if region == nil {
		return fmt.Errorf("region %d: missing", r)
	}
	var errs []error

	declared := make([]ValueID, 0, len(region.Params))
	declare := func(val ValueID) {
		v.inScope[val] = true
		declared = append(declared, val)
	}
	for _, p := range region.Params {
		if v.f.ValueAt(p) == nil {
			errs = append(errs, fmt.Errorf("region %d: invalid param v%d", r, p))
			continue
		}
		declare(p)
	}

	for i, id := range region.Ops {
		op := v.f.OpAt(id)
		if op == nil {
			errs = append(errs, fmt.Errorf("region %d: missing op %d", r, id))
			continue
		}
		if op.Kind == OpErased {
			errs = append(errs, fmt.Errorf("region %d: erased op %d still attached", r, id))
			continue
		}
		for _, operand := range op.Operands {
			if v.f.ValueAt(operand) == nil {
				errs = append(errs, fmt.Errorf("op %d (%s): invalid operand v%d", id, op.Kind, operand))
				continue
			}
			if !v.inScope[operand] {
				errs = append(errs, fmt.Errorf("op %d (%s): use of v%d before definition", id, op.Kind, operand))
			}
		}
		if op.Kind.IsTerminator() && i != len(region.Ops)-1 {
			errs = append(errs, fmt.Errorf("op %d (%s): terminator not at end of region", id, op.Kind))
		}
		if err := v.verifyOpShape(id, op); err != nil {
			errs = append(errs, err)
		}
		for _, res := range op.Results {
			if v.f.ValueAt(res) == nil {
				errs = append(errs, fmt.Errorf("op %d (%s): invalid result v%d", id, op.Kind, res))
				continue
			}
			declare(res)
		}
		for _, nested := range op.Regions {
			if err := v.verifyRegion(nested, op); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := v.verifyTerminator(r, region, parent); err != nil {
		errs = append(errs, err)
	}

	for _, val := range declared {
		delete(v.inScope, val)
	}
	return errors.Join(errs...)
}

func (v *verifier) verifyTerminator(r RegionID, region *Region, parent *Op) error {
	if len(region.Ops) == 0 {
		return fmt.Errorf("region %d: empty region", r)
	}
	last := v.f.OpAt(region.Ops[len(region.Ops)-1])
	switch {
	case parent == nil:
		if last.Kind != OpReturn {
			return fmt.Errorf("region %d: body must end with return, got %s", r, last.Kind)
		}
	case parent.Kind == OpGrid:
		if last.Kind != OpGridYield {
			return fmt.Errorf("region %d: grid region must end with grid.yield, got %s", r, last.Kind)
		}
	default:
		if last.Kind != OpYield {
			return fmt.Errorf("region %d: %s region must end with yield, got %s", r, parent.Kind, last.Kind)
		}
		if len(last.Operands) != len(parent.Results) {
			return fmt.Errorf("region %d: yield carries %d values, %s produces %d",
				r, len(last.Operands), parent.Kind, len(parent.Results))
		}
	}
	return nil
}

func (v *verifier) verifyOpShape(id OpID, op *Op) error {
	switch op.Kind {
	case OpConstInt, OpConstBool:
		if len(op.Ints) != 1 {
			return fmt.Errorf("op %d (%s): expected one integer payload", id, op.Kind)
		}
	case OpMakeRange:
		if len(op.Ints) != 2 || op.Ints[1] < op.Ints[0] {
			return fmt.Errorf("op %d (make_range): malformed bounds", id)
		}
	case OpFor:
		if len(op.Ints) != 3 {
			return fmt.Errorf("op %d (for): expected lo/hi/step", id)
		}
		if len(op.Regions) != 1 {
			return fmt.Errorf("op %d (for): expected one body region", id)
		}
		body := v.f.RegionAt(op.Regions[0])
		if body == nil || len(body.Params) != len(op.Operands)+1 {
			return fmt.Errorf("op %d (for): body params must be induction var plus one per iter value", id)
		}
		if len(op.Results) != len(op.Operands) {
			return fmt.Errorf("op %d (for): result count %d does not match iter count %d",
				id, len(op.Results), len(op.Operands))
		}
	case OpIf:
		if len(op.Regions) != 2 {
			return fmt.Errorf("op %d (if): expected then and else regions", id)
		}
		if len(op.Operands) != 1 {
			return fmt.Errorf("op %d (if): expected a single condition", id)
		}
	case OpGrid:
		if len(op.Regions) != 1 {
			return fmt.Errorf("op %d (grid): expected one body region", id)
		}
		body := v.f.RegionAt(op.Regions[0])
		if body == nil || len(body.Params) != len(op.Operands) {
			return fmt.Errorf("op %d (grid): body params must match inputs plus output", id)
		}
	case OpMakeStridedPtr:
		if len(op.Ints) == 0 || len(op.Operands) == 0 {
			return fmt.Errorf("op %d (make_strided_ptr): missing base or offset", id)
		}
	case OpReinterpretCast:
		if len(op.Ints) == 0 || len(op.Ints)-1 != len(op.Ints2) {
			return fmt.Errorf("op %d (reinterpret_cast): size/stride rank mismatch", id)
		}
	case OpStore:
		if len(op.Operands) < 2 {
			return fmt.Errorf("op %d (store): expected pointer and value", id)
		}
	case OpLoad:
		if len(op.Operands) < 1 {
			return fmt.Errorf("op %d (load): expected pointer", id)
		}
	}
	return nil
}

// VerifyLowered checks the post-pipeline contract: no pointer-typed values
// remain live, and no bridging casts or placeholders survived.
func VerifyLowered(m *Module) error {
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		for r := range f.Regions {
			for _, p := range f.Regions[r].Params {
				if m.Types.IsPtrLike(f.TypeOf(p)) {
					errs = append(errs, fmt.Errorf("function %s: region %d: pointer-typed parameter survived lowering",
						f.Name, r))
				}
			}
		}
		f.Walk(func(id OpID, op *Op) WalkAction {
			switch op.Kind {
			case OpBridgeCast:
				errs = append(errs, fmt.Errorf("function %s: op %d: leftover bridging cast", f.Name, id))
			case OpGetState:
				errs = append(errs, fmt.Errorf("function %s: op %d: leftover placeholder", f.Name, id))
			}
			for _, res := range op.Results {
				if m.Types.IsPtrLike(f.TypeOf(res)) {
					errs = append(errs, fmt.Errorf("function %s: op %d (%s): pointer-typed result survived lowering",
						f.Name, id, op.Kind))
				}
			}
			return WalkContinue
		})
	}
	return errors.Join(errs...)
}
