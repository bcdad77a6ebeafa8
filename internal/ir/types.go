package ir

import (
	"fmt"
	"math"
)

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// DynamicDim marks a dimension whose extent is unknown at compile time.
// Only memref types may carry dynamic dimensions; tensors in this IR are
// fully static.
const DynamicDim int64 = -1

// DynamicValue is the sentinel inside a static offset/size/stride list that
// says "this entry is supplied by an SSA operand instead".
const DynamicValue int64 = math.MinInt64

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindIndex
	KindPtr
	KindTensor
	KindMemref
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindIndex:
		return "index"
	case KindPtr:
		return "ptr"
	case KindTensor:
		return "tensor"
	case KindMemref:
		return "memref"
	case KindTuple:
		return "tuple"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats in bits.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Width   Width    // numeric primitives
	Elem    TypeID   // ptr/tensor/memref element
	Dims    []int64  // tensor/memref shape
	Elems   []TypeID // tuple members
	Strided bool     // memref carries an offset+strides layout
}

// MakeInt describes a signed integer of the given width.
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakePtr describes a pointer to an element type.
func MakePtr(elem TypeID) Type {
	return Type{Kind: KindPtr, Elem: elem}
}

// MakeTensor describes a static-shaped tensor.
func MakeTensor(dims []int64, elem TypeID) Type {
	return Type{Kind: KindTensor, Elem: elem, Dims: dims}
}

// MakeMemref describes a buffer view. Strided views carry a dynamic offset
// plus per-dimension strides resolved at runtime.
func MakeMemref(dims []int64, elem TypeID, strided bool) Type {
	return Type{Kind: KindMemref, Elem: elem, Dims: dims, Strided: strided}
}

// MakeTuple describes a tuple of member types.
func MakeTuple(elems []TypeID) Type {
	return Type{Kind: KindTuple, Elems: elems}
}
