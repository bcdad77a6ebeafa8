// Package ptranalysis derives structured-access descriptors from the
// arithmetic defining pointer values, rewrites addptr sites into descriptor
// ops, and resolves the placeholders planted by the flattening stage.
package ptranalysis

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/xujh333/triton-shared/internal/diag"
	"github.com/xujh333/triton-shared/internal/ir"
	"github.com/xujh333/triton-shared/internal/source"
	"github.com/xujh333/triton-shared/internal/structured"
)

// Result carries the per-value descriptor table out of the analysis. Loads
// and stores look their pointer operands up here during lowering.
type Result struct {
	States     map[ir.ValueID]structured.State
	Unresolved int
}

// Run analyzes one function in program order. Unresolvable patterns produce
// warnings through rep and leave the affected values without a state; they
// never abort the analysis.
func Run(m *ir.Module, f *ir.Func, rep diag.Reporter) *Result {
	a := &analysis{
		types:  m.Types,
		f:      f,
		bld:    ir.NewBuilder(f),
		rep:    rep,
		states: make(map[ir.ValueID]structured.State),
	}
	for _, p := range f.Params() {
		if a.types.IsPtr(f.TypeOf(p)) {
			a.states[p] = structured.State{Base: p, Offset: ir.StaticFold(0), OffsetTensor: ir.NoValueID}
		}
	}
	a.walkRegion(f.Body)
	return &Result{States: a.states, Unresolved: a.unresolved}
}

type analysis struct {
	types      *ir.Interner
	f          *ir.Func
	bld        *ir.Builder
	rep        diag.Reporter
	states     map[ir.ValueID]structured.State
	unresolved int
}

func (a *analysis) warn(code diag.Code, sp source.Span, format string, args ...any) {
	diag.ReportWarning(a.rep, code, sp, fmt.Sprintf(format, args...))
}

// stateOf returns the descriptor for a value, synthesizing the trivial state
// for values the walk has not tagged: an integer scalar is its own offset, a
// scalar pointer is a zero-offset base, and an integer tensor is its own
// per-element offset tensor (the value computes exactly those offsets).
func (a *analysis) stateOf(v ir.ValueID) (structured.State, bool) {
	if st, ok := a.states[v]; ok {
		return st, true
	}
	t, ok := a.types.Lookup(a.f.TypeOf(v))
	if !ok {
		return structured.State{}, false
	}
	switch t.Kind {
	case ir.KindInt, ir.KindIndex:
		return structured.Scalar(ir.ValueFold(v)), true
	case ir.KindPtr:
		return structured.State{Base: v, Offset: ir.StaticFold(0), OffsetTensor: ir.NoValueID}, true
	case ir.KindTensor:
		elem, ok := a.types.Lookup(t.Elem)
		if !ok || (elem.Kind != ir.KindInt && elem.Kind != ir.KindIndex) {
			return structured.State{}, false
		}
		return structured.Gather(ir.NoValueID, v, t.Dims), true
	default:
		return structured.State{}, false
	}
}

func (a *analysis) walkRegion(r ir.RegionID) {
	region := a.f.RegionAt(r)
	snapshot := make([]ir.OpID, len(region.Ops))
	copy(snapshot, region.Ops)

	for _, id := range snapshot {
		op := a.f.OpAt(id)
		if op == nil || op.Kind == ir.OpErased {
			continue
		}
		switch op.Kind {
		case ir.OpConstInt:
			a.states[op.Results[0]] = structured.Scalar(ir.StaticFold(op.Ints[0]))
		case ir.OpIndexCast:
			if st, ok := a.states[op.Operands[0]]; ok {
				a.states[op.Results[0]] = st
			}
		case ir.OpMakeRange:
			start, end := op.Ints[0], op.Ints[1]
			a.states[op.Results[0]] = structured.Ranged(ir.StaticFold(start), end-start, ir.StaticFold(1))
		case ir.OpSplat:
			a.visitSplat(op)
		case ir.OpExpandDims:
			a.visitExpandDims(op)
		case ir.OpBroadcast:
			a.visitBroadcast(op)
		case ir.OpAddI:
			a.visitAddI(id, op)
		case ir.OpMulI:
			a.visitMulI(id, op)
		case ir.OpAddPtr:
			a.visitAddPtr(id)
		case ir.OpGetState:
			a.resolvePlaceholder(id)
		case ir.OpFor:
			a.seedLoop(op)
			a.walkRegion(op.Regions[0])
		case ir.OpIf:
			a.walkRegion(op.Regions[0])
			a.walkRegion(op.Regions[1])
		}
	}
}

func (a *analysis) visitSplat(op *ir.Op) {
	st, ok := a.stateOf(op.Operands[0])
	if !ok || st.Rank() != 0 || st.IsGather() {
		return
	}
	dims := a.dimsOf(op.Results[0])
	out, err := st.SplatTo(dims)
	if err != nil {
		return
	}
	a.states[op.Results[0]] = out
}

func (a *analysis) visitExpandDims(op *ir.Op) {
	st, ok := a.states[op.Operands[0]]
	if !ok {
		return
	}
	out, err := st.ExpandDim(int(op.Ints[0]))
	if err != nil {
		a.warn(diag.PtrRankMismatch, op.Span, "expand_dims: %v", err)
		return
	}
	a.states[op.Results[0]] = out
}

func (a *analysis) visitBroadcast(op *ir.Op) {
	st, ok := a.states[op.Operands[0]]
	if !ok {
		return
	}
	out, err := st.BroadcastTo(a.dimsOf(op.Results[0]))
	if err != nil {
		a.warn(diag.PtrRankMismatch, op.Span, "broadcast: %v", err)
		return
	}
	a.states[op.Results[0]] = out
}

// visitAddI adds two offset contributions. Any non-affine side demotes the
// result to its own tensor value, which computes the sum anyway.
func (a *analysis) visitAddI(id ir.OpID, op *ir.Op) {
	res := op.Results[0]
	ls, lok := a.stateOf(op.Operands[0])
	rs, rok := a.stateOf(op.Operands[1])
	if !lok || !rok || ls.IsGather() || rs.IsGather() || !ls.SameShape(rs) {
		return // stateOf synthesizes the gather fallback at use sites
	}
	a.bld.SetInsertBefore(id)
	out := ls
	out.Offset = structured.FoldAdd(a.bld, a.types, ls.Offset, rs.Offset, op.Span)
	out.Strides = make([]ir.Fold, len(ls.Strides))
	for i := range ls.Strides {
		out.Strides[i] = structured.FoldAdd(a.bld, a.types, ls.Strides[i], rs.Strides[i], op.Span)
	}
	a.states[res] = out
}

// visitMulI handles scaling by a scalar-invariant factor; anything else
// stays a plain tensor value.
func (a *analysis) visitMulI(id ir.OpID, op *ir.Op) {
	ls, lok := a.stateOf(op.Operands[0])
	rs, rok := a.stateOf(op.Operands[1])
	if !lok || !rok {
		return
	}
	tensor, scalar := ls, rs
	if !isInvariant(scalar) {
		tensor, scalar = rs, ls
	}
	if !isInvariant(scalar) || tensor.IsGather() {
		return
	}
	a.bld.SetInsertBefore(id)
	k := scalar.Offset
	out := tensor
	out.Offset = structured.FoldMul(a.bld, a.types, tensor.Offset, k, op.Span)
	out.Strides = make([]ir.Fold, len(tensor.Strides))
	for i := range tensor.Strides {
		out.Strides[i] = structured.FoldMul(a.bld, a.types, tensor.Strides[i], k, op.Span)
	}
	a.states[op.Results[0]] = out
}

// visitAddPtr combines a pointer state with an offset state and rewrites the
// site into make_strided_ptr / make_gather_ptr.
func (a *analysis) visitAddPtr(id ir.OpID) {
	op := a.f.OpAt(id)
	sp := op.Span
	res := op.Results[0]
	resT := a.f.TypeOf(res)

	ps, ok := a.stateOf(op.Operands[0])
	if !ok || !ps.HasBase() {
		a.warn(diag.PtrUnsupportedOp, sp, "addptr: pointer operand has no analyzable origin")
		return
	}
	os, ok := a.stateOf(op.Operands[1])
	if !ok {
		a.warn(diag.PtrUnsupportedOp, sp, "addptr: offset operand is not an integer expression")
		return
	}
	if ps.Rank() != os.Rank() && os.Rank() != 0 {
		a.warn(diag.PtrRankMismatch, sp, "addptr: rank %d pointer with rank %d offsets", ps.Rank(), os.Rank())
		return
	}

	a.bld.SetInsertBefore(id)
	ns, err := a.combine(ps, os, sp)
	if err != nil {
		a.warn(diag.PtrUnsupportedOp, sp, "addptr: %v", err)
		return
	}

	var repl ir.ValueID
	if ns.IsGather() {
		repl = a.bld.MakeGatherPtr(ns.Base, ns.OffsetTensor, resT, sp)
	} else {
		repl = a.bld.MakeStridedPtr(ns.Base, ns.Offset, ns.Strides, resT, sp)
	}
	a.f.ReplaceAllUses(res, repl)
	a.f.EraseOp(id)
	a.states[repl] = ns
}

// combine forms the state of base-pointer-plus-offsets. Affine sides add
// fold-wise; a gather side forces materialized per-element offsets.
func (a *analysis) combine(ps, os structured.State, sp source.Span) (structured.State, error) {
	if !ps.IsGather() && !os.IsGather() {
		out := ps
		out.Offset = structured.FoldAdd(a.bld, a.types, ps.Offset, os.Offset, sp)
		if os.Rank() != 0 {
			out.Strides = make([]ir.Fold, len(ps.Strides))
			for i := range ps.Strides {
				out.Strides[i] = structured.FoldAdd(a.bld, a.types, ps.Strides[i], os.Strides[i], sp)
			}
		}
		return out, nil
	}
	if ps.IsGather() {
		return structured.State{}, errors.New("gather pointer recombination is not supported")
	}

	offsets, err := structured.EmitOffsets(a.bld, a.types, os, sp)
	if err != nil {
		return structured.State{}, errors.Wrap(err, "materializing offsets")
	}
	if hasAffinePart(ps) {
		affine := ps
		affine.Base = ir.NoValueID
		own, err := structured.EmitOffsets(a.bld, a.types, affine, sp)
		if err != nil {
			return structured.State{}, errors.Wrap(err, "materializing pointer offsets")
		}
		// The gather tensor sets the element width; widen the affine side to
		// match when needed.
		elem := a.types.Elem(a.f.TypeOf(offsets))
		full := a.types.Tensor(os.Dims, elem)
		if a.types.Elem(a.f.TypeOf(own)) != elem {
			own = a.bld.IndexCast(own, full, sp)
		}
		offsets = a.bld.AddI(own, offsets, full, sp)
	}
	return structured.Gather(ps.Base, offsets, os.Dims), nil
}

// isInvariant reports a state whose value is the same in every element: a
// scalar, or a splat (all strides statically zero).
func isInvariant(st structured.State) bool {
	if st.IsGather() {
		return false
	}
	for _, s := range st.Strides {
		if !s.IsStatic() || s.Static != 0 {
			return false
		}
	}
	return true
}

func hasAffinePart(st structured.State) bool {
	if !st.Offset.IsStatic() || st.Offset.Static != 0 {
		return true
	}
	for _, s := range st.Strides {
		if !s.IsStatic() || s.Static != 0 {
			return true
		}
	}
	return false
}

// resolvePlaceholder replaces a get_structured_state with a descriptor op
// plus index-typed offset/stride leaves.
func (a *analysis) resolvePlaceholder(id ir.OpID) {
	op := a.f.OpAt(id)
	sp := op.Span
	st, ok := a.stateOf(op.Operands[0])
	if !ok || !st.HasBase() {
		a.unresolved++
		a.warn(diag.PtrUnresolvedState, sp, "structured state of pointer cannot be resolved")
		return
	}
	if st.IsGather() {
		a.unresolved++
		a.warn(diag.PtrLoopCarriedDynamic, sp,
			"per-element offset tensors cannot flow through structured control flow")
		return
	}
	if len(op.Results) != 2+st.Rank() {
		a.unresolved++
		a.warn(diag.PtrRankMismatch, sp, "placeholder expects %d leaves, state has rank %d",
			len(op.Results), st.Rank())
		return
	}

	a.bld.SetInsertBefore(id)
	ptr := a.bld.MakeStridedPtr(st.Base, st.Offset, st.Strides, a.f.TypeOf(op.Results[0]), sp)
	leaves := []ir.ValueID{ptr, structured.FoldToIndex(a.bld, a.types, st.Offset, sp)}
	for _, s := range st.Strides {
		leaves = append(leaves, structured.FoldToIndex(a.bld, a.types, s, sp))
	}
	results := append([]ir.ValueID(nil), op.Results...)
	for i, res := range results {
		a.f.ReplaceAllUses(res, leaves[i])
	}
	a.f.EraseOp(id)
	a.states[ptr] = st
}

// seedLoop tags loop-carried descriptor leaves: the flattening stage turned
// each carried pointer into consecutive {ptr, offset, strides...} slots, so
// body parameters and loop results get states anchored to the init state's
// base with the carried offset/stride values.
func (a *analysis) seedLoop(op *ir.Op) {
	body := a.f.RegionAt(op.Regions[0])
	i := 0
	for i < len(op.Operands) {
		init := op.Operands[i]
		t := a.f.TypeOf(init)
		if !a.types.IsPtrLike(t) {
			i++
			continue
		}
		rank := a.types.Rank(t)
		group := 2 + rank
		if i+group > len(op.Operands) || !a.indexLeaves(op.Operands[i+1:i+group]) {
			a.warn(diag.PtrRankMismatch, op.Span, "loop-carried pointer without its offset/stride leaves")
			i++
			continue
		}
		initSt, ok := a.stateOf(init)
		if !ok || !initSt.HasBase() || initSt.IsGather() {
			// The placeholder feeding this init already warned.
			i += group
			continue
		}

		seed := func(leaves []ir.ValueID) {
			st := structured.State{
				Base:         initSt.Base,
				Offset:       ir.ValueFold(leaves[1]),
				Dims:         initSt.Dims,
				OffsetTensor: ir.NoValueID,
			}
			for _, s := range leaves[2:group] {
				st.Strides = append(st.Strides, ir.ValueFold(s))
			}
			a.states[leaves[0]] = st
		}
		seed(body.Params[1+i : 1+i+group])
		seed(op.Results[i : i+group])
		i += group
	}
}

func (a *analysis) indexLeaves(vals []ir.ValueID) bool {
	idx := a.types.Builtins().Index
	for _, v := range vals {
		if a.f.TypeOf(v) != idx {
			return false
		}
	}
	return true
}

func (a *analysis) dimsOf(v ir.ValueID) []int64 {
	t, ok := a.types.Lookup(a.f.TypeOf(v))
	if !ok {
		return nil
	}
	return t.Dims
}
