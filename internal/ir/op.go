package ir

import (
	"fmt"

	"github.com/xujh333/triton-shared/internal/source"
)

// OpKind enumerates operation kinds in the IR.
type OpKind uint8

const (
	OpInvalid OpKind = iota
	// OpErased marks arena slots whose operation was removed from its region.
	OpErased

	// Constants and elementwise arithmetic.
	OpConstInt   // Ints[0] = value
	OpConstFloat // Float = value
	OpConstBool  // Ints[0] = 0|1
	OpMakeRange  // Ints = [start, end); result tensor<(end-start) x i32>
	OpSplat      // scalar -> tensor of result shape
	OpBroadcast  // tensor -> tensor, size-1 dims stretched
	OpExpandDims // Ints[0] = axis
	OpAddI
	OpMulI
	OpCmpI // Ints[0] = CmpPred
	OpIndexCast

	// Pointer-level operations.
	OpAddPtr // (ptr-like, int offsets) -> ptr-like
	OpLoad   // (ptr-like [, mask]) -> value
	OpStore  // (ptr-like, value [, mask])

	// Structured control flow.
	OpFor    // Ints = [lo, hi, step]; operands = iter inits; Regions[0] body
	OpIf     // operands[0] = cond; Regions = [then, else]
	OpYield  // terminator of for/if regions
	OpReturn // function terminator

	// Structured pointer decomposition.
	OpGetState       // placeholder: operand = pointer value, results = leaves
	OpMakeStridedPtr // Ints = static offset+strides (DynamicValue -> operand)
	OpMakeGatherPtr  // operands = [base, offset tensor]

	// Representation bridging and memory.
	OpBridgeCast      // N operands -> M results, reconciled away
	OpReinterpretCast // Ints = static offset+strides, Ints2 = static sizes
	OpMemLoad         // (memref, indices...)
	OpMemStore        // (value, memref, indices...)
	OpToTensor        // memref -> tensor
	OpEmptyTensor     // -> uninitialized tensor
	OpExtract         // (tensor, indices...) -> element
	OpGrid            // elementwise grid; operands = inputs... + init
	OpGridYield       // terminator of grid region

	opKindCount
)

// CmpPred enumerates integer comparison predicates.
type CmpPred int64

const (
	CmpEQ CmpPred = iota
	CmpNE
	CmpSLT
	CmpSLE
	CmpSGT
	CmpSGE
)

func (p CmpPred) String() string {
	switch p {
	case CmpEQ:
		return "eq"
	case CmpNE:
		return "ne"
	case CmpSLT:
		return "slt"
	case CmpSLE:
		return "sle"
	case CmpSGT:
		return "sgt"
	case CmpSGE:
		return "sge"
	default:
		return fmt.Sprintf("pred(%d)", int64(p))
	}
}

// CmpPredFromString parses a predicate name.
func CmpPredFromString(s string) (CmpPred, bool) {
	switch s {
	case "eq":
		return CmpEQ, true
	case "ne":
		return CmpNE, true
	case "slt":
		return CmpSLT, true
	case "sle":
		return CmpSLE, true
	case "sgt":
		return CmpSGT, true
	case "sge":
		return CmpSGE, true
	default:
		return 0, false
	}
}

// Op is a single operation in the arena. Operands and results reference the
// owning function's value arena; nested regions reference its region arena.
type Op struct {
	Kind     OpKind
	Operands []ValueID
	Results  []ValueID
	Regions  []RegionID
	Span     source.Span

	// Per-kind integer payloads; see the OpKind constants for meaning.
	Ints  []int64
	Ints2 []int64
	Float float64
}

type opInfo struct {
	name       string
	hasRegions bool
	terminator bool
	// erasable operations can be dropped by the canonicalizer when their
	// results are unused. Loads stay: dead-load elimination belongs to a
	// later pipeline, and placeholders stay because they have no effect on
	// purpose.
	erasable bool
}

var opTable = [opKindCount]opInfo{
	OpInvalid:         {name: "invalid"},
	OpErased:          {name: "erased"},
	OpConstInt:        {name: "const.int", erasable: true},
	OpConstFloat:      {name: "const.float", erasable: true},
	OpConstBool:       {name: "const.bool", erasable: true},
	OpMakeRange:       {name: "make_range", erasable: true},
	OpSplat:           {name: "splat", erasable: true},
	OpBroadcast:       {name: "broadcast", erasable: true},
	OpExpandDims:      {name: "expand_dims", erasable: true},
	OpAddI:            {name: "addi", erasable: true},
	OpMulI:            {name: "muli", erasable: true},
	OpCmpI:            {name: "cmpi", erasable: true},
	OpIndexCast:       {name: "index_cast", erasable: true},
	OpAddPtr:          {name: "addptr", erasable: true},
	OpLoad:            {name: "load"},
	OpStore:           {name: "store"},
	OpFor:             {name: "for", hasRegions: true},
	OpIf:              {name: "if", hasRegions: true},
	OpYield:           {name: "yield", terminator: true},
	OpReturn:          {name: "return", terminator: true},
	OpGetState:        {name: "get_structured_state"},
	OpMakeStridedPtr:  {name: "make_strided_ptr", erasable: true},
	OpMakeGatherPtr:   {name: "make_gather_ptr", erasable: true},
	OpBridgeCast:      {name: "bridge_cast", erasable: true},
	OpReinterpretCast: {name: "reinterpret_cast", erasable: true},
	OpMemLoad:         {name: "memref.load"},
	OpMemStore:        {name: "memref.store"},
	OpToTensor:        {name: "to_tensor"},
	OpEmptyTensor:     {name: "tensor.empty", erasable: true},
	OpExtract:         {name: "extract", erasable: true},
	OpGrid:            {name: "grid", hasRegions: true},
	OpGridYield:       {name: "grid.yield", terminator: true},
}

var opKindByName = func() map[string]OpKind {
	m := make(map[string]OpKind, int(opKindCount))
	for k := OpKind(0); k < opKindCount; k++ {
		if name := opTable[k].name; name != "" && k != OpInvalid && k != OpErased {
			m[name] = k
		}
	}
	return m
}()

func (k OpKind) String() string {
	if k < opKindCount {
		return opTable[k].name
	}
	return fmt.Sprintf("OpKind(%d)", uint8(k))
}

// OpKindByName resolves a textual op name.
func OpKindByName(name string) (OpKind, bool) {
	k, ok := opKindByName[name]
	return k, ok
}

// HasRegions reports whether the kind owns nested regions.
func (k OpKind) HasRegions() bool {
	return k < opKindCount && opTable[k].hasRegions
}

// IsTerminator reports whether the kind terminates a region.
func (k OpKind) IsTerminator() bool {
	return k < opKindCount && opTable[k].terminator
}

// Erasable reports whether an unused instance may be dropped by the
// canonicalizer.
func (k OpKind) Erasable() bool {
	return k < opKindCount && opTable[k].erasable
}
