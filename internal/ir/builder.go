package ir

import (
	"github.com/xujh333/triton-shared/internal/source"
)

// InsertPoint addresses a position inside a region's op list.
type InsertPoint struct {
	Region RegionID
	Index  int
}

// Builder emits operations into a function at a movable insertion point.
type Builder struct {
	F  *Func
	at InsertPoint
}

// NewBuilder returns a builder appending to the end of the function body.
func NewBuilder(f *Func) *Builder {
	return &Builder{F: f, at: InsertPoint{Region: f.Body, Index: len(f.Regions[f.Body].Ops)}}
}

// InsertPoint returns the current insertion point.
func (b *Builder) InsertPoint() InsertPoint {
	return b.at
}

// SetInsertPoint restores a saved insertion point.
func (b *Builder) SetInsertPoint(ip InsertPoint) {
	b.at = ip
}

// SetRegionEnd moves the insertion point to the end of a region.
func (b *Builder) SetRegionEnd(r RegionID) {
	b.at = InsertPoint{Region: r, Index: len(b.F.Regions[r].Ops)}
}

// SetInsertBefore moves the insertion point directly before an op.
func (b *Builder) SetInsertBefore(id OpID) {
	r, i := b.F.RegionOf(id)
	if r.IsValid() {
		b.at = InsertPoint{Region: r, Index: i}
	}
}

// SetInsertAfter moves the insertion point directly after an op.
func (b *Builder) SetInsertAfter(id OpID) {
	r, i := b.F.RegionOf(id)
	if r.IsValid() {
		b.at = InsertPoint{Region: r, Index: i + 1}
	}
}

// Emit appends the op at the insertion point, allocating one result value
// per entry of resultTypes. Returns the op and its results.
func (b *Builder) Emit(op Op, resultTypes []TypeID) (OpID, []ValueID) {
	id := b.F.newOp(op)
	slot := b.F.OpAt(id)
	for _, t := range resultTypes {
		slot.Results = append(slot.Results, b.F.NewValue(t, id, op.Span))
	}

	region := b.F.RegionAt(b.at.Region)
	if b.at.Index < 0 || b.at.Index > len(region.Ops) {
		b.at.Index = len(region.Ops)
	}
	region.Ops = append(region.Ops, NoOpID)
	copy(region.Ops[b.at.Index+1:], region.Ops[b.at.Index:])
	region.Ops[b.at.Index] = id
	b.at.Index++

	return id, b.F.OpAt(id).Results
}

// Typed emit helpers ---------------------------------------------------------

func (b *Builder) ConstInt(t TypeID, v int64, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpConstInt, Ints: []int64{v}, Span: span}, []TypeID{t})
	return res[0]
}

func (b *Builder) ConstFloat(t TypeID, v float64, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpConstFloat, Float: v, Span: span}, []TypeID{t})
	return res[0]
}

func (b *Builder) ConstBool(t TypeID, v bool, span source.Span) ValueID {
	n := int64(0)
	if v {
		n = 1
	}
	_, res := b.Emit(Op{Kind: OpConstBool, Ints: []int64{n}, Span: span}, []TypeID{t})
	return res[0]
}

func (b *Builder) MakeRange(start, end int64, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpMakeRange, Ints: []int64{start, end}, Span: span}, []TypeID{resType})
	return res[0]
}

func (b *Builder) Splat(v ValueID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpSplat, Operands: []ValueID{v}, Span: span}, []TypeID{resType})
	return res[0]
}

func (b *Builder) Broadcast(v ValueID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpBroadcast, Operands: []ValueID{v}, Span: span}, []TypeID{resType})
	return res[0]
}

func (b *Builder) ExpandDims(v ValueID, axis int64, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpExpandDims, Operands: []ValueID{v}, Ints: []int64{axis}, Span: span}, []TypeID{resType})
	return res[0]
}

func (b *Builder) AddI(lhs, rhs ValueID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpAddI, Operands: []ValueID{lhs, rhs}, Span: span}, []TypeID{resType})
	return res[0]
}

func (b *Builder) MulI(lhs, rhs ValueID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpMulI, Operands: []ValueID{lhs, rhs}, Span: span}, []TypeID{resType})
	return res[0]
}

func (b *Builder) CmpI(pred CmpPred, lhs, rhs ValueID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpCmpI, Operands: []ValueID{lhs, rhs}, Ints: []int64{int64(pred)}, Span: span}, []TypeID{resType})
	return res[0]
}

func (b *Builder) IndexCast(v ValueID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpIndexCast, Operands: []ValueID{v}, Span: span}, []TypeID{resType})
	return res[0]
}

func (b *Builder) AddPtr(ptr, offset ValueID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpAddPtr, Operands: []ValueID{ptr, offset}, Span: span}, []TypeID{resType})
	return res[0]
}

// Load emits a load; pass NoValueID for an unmasked access.
func (b *Builder) Load(ptr, mask ValueID, resType TypeID, span source.Span) ValueID {
	operands := []ValueID{ptr}
	if mask.IsValid() {
		operands = append(operands, mask)
	}
	_, res := b.Emit(Op{Kind: OpLoad, Operands: operands, Span: span}, []TypeID{resType})
	return res[0]
}

// Store emits a store; pass NoValueID for an unmasked access.
func (b *Builder) Store(ptr, value, mask ValueID, span source.Span) OpID {
	operands := []ValueID{ptr, value}
	if mask.IsValid() {
		operands = append(operands, mask)
	}
	id, _ := b.Emit(Op{Kind: OpStore, Operands: operands, Span: span}, nil)
	return id
}

// For emits a loop with static bounds. The body region must already exist and
// start with the induction variable parameter followed by one parameter per
// iter value.
func (b *Builder) For(lo, hi, step int64, inits []ValueID, body RegionID, resultTypes []TypeID, span source.Span) (OpID, []ValueID) {
	return b.Emit(Op{
		Kind:     OpFor,
		Operands: inits,
		Regions:  []RegionID{body},
		Ints:     []int64{lo, hi, step},
		Span:     span,
	}, resultTypes)
}

// If emits a two-armed conditional with the given regions.
func (b *Builder) If(cond ValueID, then, els RegionID, resultTypes []TypeID, span source.Span) (OpID, []ValueID) {
	return b.Emit(Op{
		Kind:     OpIf,
		Operands: []ValueID{cond},
		Regions:  []RegionID{then, els},
		Span:     span,
	}, resultTypes)
}

func (b *Builder) Yield(vals []ValueID, span source.Span) OpID {
	id, _ := b.Emit(Op{Kind: OpYield, Operands: vals, Span: span}, nil)
	return id
}

func (b *Builder) Return(span source.Span) OpID {
	id, _ := b.Emit(Op{Kind: OpReturn, Span: span}, nil)
	return id
}

func (b *Builder) GetState(ptr ValueID, resultTypes []TypeID, span source.Span) (OpID, []ValueID) {
	return b.Emit(Op{Kind: OpGetState, Operands: []ValueID{ptr}, Span: span}, resultTypes)
}

// MakeStridedPtr emits a resolved affine-strided descriptor.
func (b *Builder) MakeStridedPtr(base ValueID, offset Fold, strides []Fold, resType TypeID, span source.Span) ValueID {
	statics, dyn := encodeFolds(append([]Fold{offset}, strides...))
	_, res := b.Emit(Op{
		Kind:     OpMakeStridedPtr,
		Operands: append([]ValueID{base}, dyn...),
		Ints:     statics,
		Span:     span,
	}, []TypeID{resType})
	return res[0]
}

// MakeGatherPtr emits a resolved fully-dynamic descriptor carrying an
// explicit per-element offset tensor.
func (b *Builder) MakeGatherPtr(base, offsets ValueID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpMakeGatherPtr, Operands: []ValueID{base, offsets}, Span: span}, []TypeID{resType})
	return res[0]
}

// BridgeCast emits a representation-bridging cast. Reconciliation removes
// every one of these before the pipeline finishes.
func (b *Builder) BridgeCast(operands []ValueID, resultTypes []TypeID, span source.Span) (OpID, []ValueID) {
	return b.Emit(Op{Kind: OpBridgeCast, Operands: operands, Span: span}, resultTypes)
}

// ReinterpretCast emits a bounded buffer view over base.
func (b *Builder) ReinterpretCast(base ValueID, offset Fold, sizes, strides []Fold, resType TypeID, span source.Span) ValueID {
	offStatics, offDyn := encodeFolds([]Fold{offset})
	sizeStatics, sizeDyn := encodeFolds(sizes)
	strideStatics, strideDyn := encodeFolds(strides)

	operands := []ValueID{base}
	operands = append(operands, offDyn...)
	operands = append(operands, sizeDyn...)
	operands = append(operands, strideDyn...)

	_, res := b.Emit(Op{
		Kind:     OpReinterpretCast,
		Operands: operands,
		Ints:     append(offStatics, strideStatics...),
		Ints2:    sizeStatics,
		Span:     span,
	}, []TypeID{resType})
	return res[0]
}

func (b *Builder) MemLoad(mem ValueID, indices []ValueID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpMemLoad, Operands: append([]ValueID{mem}, indices...), Span: span}, []TypeID{resType})
	return res[0]
}

func (b *Builder) MemStore(value, mem ValueID, indices []ValueID, span source.Span) OpID {
	id, _ := b.Emit(Op{Kind: OpMemStore, Operands: append([]ValueID{value, mem}, indices...), Span: span}, nil)
	return id
}

func (b *Builder) ToTensor(mem ValueID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpToTensor, Operands: []ValueID{mem}, Span: span}, []TypeID{resType})
	return res[0]
}

func (b *Builder) EmptyTensor(resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpEmptyTensor, Span: span}, []TypeID{resType})
	return res[0]
}

func (b *Builder) Extract(tensor ValueID, indices []ValueID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{Kind: OpExtract, Operands: append([]ValueID{tensor}, indices...), Span: span}, []TypeID{resType})
	return res[0]
}

// Grid emits an elementwise grid over the inputs. The region receives one
// element parameter per input plus one for the output, and must end with
// grid.yield.
func (b *Builder) Grid(inputs []ValueID, init ValueID, body RegionID, resType TypeID, span source.Span) ValueID {
	_, res := b.Emit(Op{
		Kind:     OpGrid,
		Operands: append(append([]ValueID{}, inputs...), init),
		Regions:  []RegionID{body},
		Span:     span,
	}, []TypeID{resType})
	return res[0]
}

func (b *Builder) GridYield(v ValueID, span source.Span) OpID {
	id, _ := b.Emit(Op{Kind: OpGridYield, Operands: []ValueID{v}, Span: span}, nil)
	return id
}
