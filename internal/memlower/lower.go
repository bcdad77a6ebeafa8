// Package memlower rewrites load and store ops over resolved access
// descriptors into memref-level forms: a scalar buffer view, a bulk strided
// view, or an elementwise grid for masked and fully-dynamic accesses.
package memlower

import (
	"github.com/pkg/errors"

	"github.com/xujh333/triton-shared/internal/diag"
	"github.com/xujh333/triton-shared/internal/ir"
	"github.com/xujh333/triton-shared/internal/source"
	"github.com/xujh333/triton-shared/internal/structured"
)

// Stats counts access sites by outcome. Skipped sites keep their original op
// and a warning describes why.
type Stats struct {
	Lowered int
	Skipped int
}

// Run lowers every load and store in f whose pointer operand has a resolved
// descriptor in states. Failures are reported per site and never abort the
// remaining sites.
func Run(m *ir.Module, f *ir.Func, states map[ir.ValueID]structured.State, rep diag.Reporter) Stats {
	l := &lowerer{
		types:  m.Types,
		f:      f,
		bld:    ir.NewBuilder(f),
		states: states,
		rep:    rep,
	}
	var st Stats
	sites := append(f.FindOps(ir.OpLoad), f.FindOps(ir.OpStore)...)
	for _, id := range sites {
		if l.site(id) {
			st.Lowered++
		} else {
			st.Skipped++
		}
	}
	return st
}

type lowerer struct {
	types  *ir.Interner
	f      *ir.Func
	bld    *ir.Builder
	states map[ir.ValueID]structured.State
	rep    diag.Reporter
}

// access gathers the decoded pieces of one load/store site.
type access struct {
	id    ir.OpID
	op    *ir.Op
	store bool
	ptr   ir.ValueID
	value ir.ValueID // stores only
	mask  ir.ValueID
	state structured.State
	elem  ir.TypeID
	span  source.Span
}

func (l *lowerer) site(id ir.OpID) bool {
	op := l.f.OpAt(id)
	if op == nil || op.Kind == ir.OpErased {
		return true
	}
	a := access{
		id:    id,
		op:    op,
		store: op.Kind == ir.OpStore,
		ptr:   op.Operands[0],
		value: ir.NoValueID,
		mask:  ir.NoValueID,
		span:  op.Span,
	}
	maskAt := 1
	if a.store {
		a.value = op.Operands[1]
		maskAt = 2
	}
	if len(op.Operands) > maskAt {
		a.mask = op.Operands[maskAt]
	}

	st, ok := l.states[a.ptr]
	if !ok || !st.HasBase() {
		diag.ReportWarning(l.rep, diag.LowUnresolvedAccess, a.span,
			"access has no resolved descriptor")
		return false
	}
	a.state = st
	a.elem = l.types.PointeeElem(l.f.TypeOf(a.ptr))

	if err := l.checkShapes(&a); err != nil {
		return false
	}

	l.bld.SetInsertBefore(id)
	switch {
	case st.Rank() == 0:
		l.scalar(&a)
	case !st.IsGather() && !a.mask.IsValid():
		l.bulkStrided(&a)
	default:
		if !l.grid(&a) {
			return false
		}
	}
	l.f.EraseOp(id)
	return true
}

// checkShapes validates the mask against the access shape and, for loads,
// the result element type against the pointee.
func (l *lowerer) checkShapes(a *access) error {
	if a.mask.IsValid() {
		if a.state.Rank() == 0 {
			diag.ReportWarning(l.rep, diag.LowBadMaskShape, a.span, "mask on a scalar access")
			return errors.New("mask on scalar access")
		}
		mt, ok := l.types.Lookup(l.f.TypeOf(a.mask))
		if !ok || mt.Kind != ir.KindTensor || !sameDims(mt.Dims, a.state.Dims) ||
			mt.Elem != l.types.Builtins().Bool {
			diag.ReportWarning(l.rep, diag.LowBadMaskShape, a.span,
				"mask shape does not match the accessed tensor")
			return errors.New("bad mask shape")
		}
	}
	if !a.store && a.state.Rank() > 0 {
		if got := l.types.Elem(l.f.TypeOf(a.op.Results[0])); got != a.elem {
			diag.ReportWarning(l.rep, diag.LowBadFallbackType, a.span,
				"loaded element type does not match the buffer element type")
			return errors.New("element type mismatch")
		}
	}
	return nil
}

// scalar is case 1: a one-element view at the computed offset and a single
// memory instruction.
func (l *lowerer) scalar(a *access) {
	one := []ir.Fold{ir.StaticFold(1)}
	memT := l.types.Memref([]int64{1}, a.elem, false)
	view := l.bld.ReinterpretCast(a.state.Base, a.state.Offset, one, one, memT, a.span)
	c0 := l.bld.ConstInt(l.types.Builtins().Index, 0, a.span)
	if a.store {
		l.bld.MemStore(a.value, view, []ir.ValueID{c0}, a.span)
		return
	}
	v := l.bld.MemLoad(view, []ir.ValueID{c0}, a.elem, a.span)
	l.f.ReplaceAllUses(a.op.Results[0], v)
}

// bulkStrided is case 2: one strided view over the whole tensor. Loads
// materialize the tensor in bulk; stores walk the dimensions outer to inner
// and issue one scalar store per element.
func (l *lowerer) bulkStrided(a *access) {
	st := a.state
	sizes := make([]ir.Fold, len(st.Dims))
	for i, d := range st.Dims {
		sizes[i] = ir.StaticFold(d)
	}
	memT := l.types.Memref(st.Dims, a.elem, true)
	view := l.bld.ReinterpretCast(st.Base, st.Offset, sizes, st.Strides, memT, a.span)

	if !a.store {
		t := l.bld.ToTensor(view, l.f.TypeOf(a.op.Results[0]), a.span)
		l.f.ReplaceAllUses(a.op.Results[0], t)
		return
	}

	idx := l.types.Builtins().Index
	idxs := make([]ir.ValueID, st.Rank())
	var nest func(dim int)
	nest = func(dim int) {
		if dim == st.Rank() {
			v := l.bld.Extract(a.value, idxs, a.elem, a.span)
			l.bld.MemStore(v, view, idxs, a.span)
			return
		}
		body := l.f.NewRegion()
		idxs[dim] = l.f.AddParam(body, idx, a.span)
		outer := l.bld.InsertPoint()
		l.bld.SetRegionEnd(body)
		nest(dim + 1)
		l.bld.Yield(nil, a.span)
		l.bld.SetInsertPoint(outer)
		l.bld.For(0, st.Dims[dim], 1, nil, body, nil, a.span)
	}
	nest(0)
}

// grid is cases 3 and 4: per-element address computation through an
// elementwise grid, with the mask guarding each element when present.
func (l *lowerer) grid(a *access) bool {
	st := a.state
	masked := a.mask.IsValid()
	if masked && !a.store && !l.zeroable(a.elem) {
		diag.ReportWarning(l.rep, diag.LowBadElemType, a.span,
			"element type has no zero value for masked-out lanes")
		return false
	}

	offs, err := structured.EmitOffsets(l.bld, l.types, st, a.span)
	if err != nil {
		diag.ReportWarning(l.rep, diag.LowUnresolvedAccess, a.span,
			errors.Wrap(err, "materializing element offsets").Error())
		return false
	}

	b := l.types.Builtins()
	// The materialized offsets can reach past element-count bounds (strides
	// over 1, data-dependent gathers), so the flat view stays unsized.
	one := []ir.Fold{ir.StaticFold(1)}
	memT := l.types.Memref([]int64{ir.DynamicDim}, a.elem, false)
	view := l.bld.ReinterpretCast(st.Base, ir.StaticFold(0),
		[]ir.Fold{ir.StaticFold(ir.DynamicDim)}, one, memT, a.span)

	inputs := []ir.ValueID{offs}
	if masked {
		inputs = append(inputs, a.mask)
	}
	var init ir.ValueID
	if a.store {
		inputs = append(inputs, a.value)
		init = l.bld.EmptyTensor(l.f.TypeOf(a.value), a.span)
	} else {
		init = l.bld.EmptyTensor(l.f.TypeOf(a.op.Results[0]), a.span)
	}

	body := l.f.NewRegion()
	offE := l.f.AddParam(body, l.types.Elem(l.f.TypeOf(offs)), a.span)
	maskE := ir.NoValueID
	if masked {
		maskE = l.f.AddParam(body, b.Bool, a.span)
	}
	valE := ir.NoValueID
	if a.store {
		valE = l.f.AddParam(body, a.elem, a.span)
	}
	l.f.AddParam(body, a.elem, a.span) // running output element

	outer := l.bld.InsertPoint()
	l.bld.SetRegionEnd(body)
	idx := l.bld.IndexCast(offE, b.Index, a.span)
	switch {
	case a.store && masked:
		then := l.f.NewRegion()
		els := l.f.NewRegion()
		at := l.bld.InsertPoint()
		l.bld.SetRegionEnd(then)
		l.bld.MemStore(valE, view, []ir.ValueID{idx}, a.span)
		l.bld.Yield(nil, a.span)
		l.bld.SetRegionEnd(els)
		l.bld.Yield(nil, a.span)
		l.bld.SetInsertPoint(at)
		l.bld.If(maskE, then, els, nil, a.span)
		l.bld.GridYield(valE, a.span)
	case a.store:
		l.bld.MemStore(valE, view, []ir.ValueID{idx}, a.span)
		l.bld.GridYield(valE, a.span)
	case masked:
		then := l.f.NewRegion()
		els := l.f.NewRegion()
		at := l.bld.InsertPoint()
		l.bld.SetRegionEnd(then)
		loaded := l.bld.MemLoad(view, []ir.ValueID{idx}, a.elem, a.span)
		l.bld.Yield([]ir.ValueID{loaded}, a.span)
		l.bld.SetRegionEnd(els)
		l.bld.Yield([]ir.ValueID{l.zeroValue(a.elem, a.span)}, a.span)
		l.bld.SetInsertPoint(at)
		_, picked := l.bld.If(maskE, then, els, []ir.TypeID{a.elem}, a.span)
		l.bld.GridYield(picked[0], a.span)
	default:
		l.bld.GridYield(l.bld.MemLoad(view, []ir.ValueID{idx}, a.elem, a.span), a.span)
	}
	l.bld.SetInsertPoint(outer)

	resT := l.f.TypeOf(init)
	out := l.bld.Grid(inputs, init, body, resT, a.span)
	if !a.store {
		l.f.ReplaceAllUses(a.op.Results[0], out)
	}
	return true
}

func (l *lowerer) zeroable(t ir.TypeID) bool {
	k, ok := l.types.Lookup(t)
	if !ok {
		return false
	}
	switch k.Kind {
	case ir.KindInt, ir.KindIndex, ir.KindFloat, ir.KindBool:
		return true
	default:
		return false
	}
}

func (l *lowerer) zeroValue(t ir.TypeID, sp source.Span) ir.ValueID {
	switch l.types.MustLookup(t).Kind {
	case ir.KindFloat:
		return l.bld.ConstFloat(t, 0, sp)
	case ir.KindBool:
		return l.bld.ConstBool(t, false, sp)
	default:
		return l.bld.ConstInt(t, 0, sp)
	}
}

// RetypePointers rewrites every surviving pointer-like value type into a
// dynamically-sized memref over the pointee element. Values still attached to
// unlowered source ops keep their type so their sites stay diagnosable.
func RetypePointers(types *ir.Interner, f *ir.Func) {
	skip := make(map[ir.ValueID]bool)
	f.Walk(func(id ir.OpID, op *ir.Op) ir.WalkAction {
		switch op.Kind {
		case ir.OpLoad, ir.OpStore, ir.OpAddPtr, ir.OpGetState:
			for _, v := range op.Operands {
				skip[v] = true
			}
			for _, v := range op.Results {
				skip[v] = true
			}
		}
		return ir.WalkContinue
	})
	for i := range f.Values {
		v := ir.ValueID(i)
		if skip[v] {
			continue
		}
		t := f.Values[i].Type
		if !types.IsPtrLike(t) {
			continue
		}
		elem := types.PointeeElem(t)
		f.Values[i].Type = types.Memref([]int64{ir.DynamicDim}, elem, false)
	}
}

func sameDims(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
