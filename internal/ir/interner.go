package ir

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Bool    TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
	F16     TypeID
	F32     TypeID
	F64     TypeID
	Index   TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
type Interner struct {
	types    []Type
	index    map[string]TypeID
	builtins Builtins
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[string]TypeID, 64),
	}
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.I8 = in.Intern(MakeInt(Width8))
	in.builtins.I16 = in.Intern(MakeInt(Width16))
	in.builtins.I32 = in.Intern(MakeInt(Width32))
	in.builtins.I64 = in.Intern(MakeInt(Width64))
	in.builtins.F16 = in.Intern(MakeFloat(Width16))
	in.builtins.F32 = in.Intern(MakeFloat(Width32))
	in.builtins.F64 = in.Intern(MakeFloat(Width64))
	in.builtins.Index = in.Intern(Type{Kind: KindIndex})
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[typeKey(t)] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if int(id) >= len(in.types) {
		return Type{}, false
	}
	t := in.types[id]
	if t.Kind == KindInvalid {
		return Type{}, false
	}
	return t, true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("ir: invalid TypeID")
	}
	return tt
}

// Len returns the number of interned descriptors, including the invalid slot.
func (in *Interner) Len() int {
	return len(in.types)
}

// Export returns a copy of every interned descriptor, in ID order. Used by
// the snapshot codec; RestoreInterner rebuilds the interner from it.
func (in *Interner) Export() []Type {
	out := make([]Type, len(in.types))
	copy(out, in.types)
	return out
}

// RestoreInterner rebuilds an interner from exported descriptors. The first
// entry must be the invalid sentinel.
func RestoreInterner(descs []Type) (*Interner, error) {
	if len(descs) == 0 || descs[0].Kind != KindInvalid {
		return nil, fmt.Errorf("ir: malformed type table")
	}
	in := NewInterner()
	for i, d := range descs {
		if i < in.Len() {
			// Builtins are re-interned by NewInterner; positions must agree.
			if typeKey(in.types[i]) != typeKey(d) {
				return nil, fmt.Errorf("ir: type table mismatch at %d", i)
			}
			continue
		}
		in.internRaw(d)
	}
	return in, nil
}

// Shorthand constructors -----------------------------------------------------

// Ptr interns a pointer-to-elem type.
func (in *Interner) Ptr(elem TypeID) TypeID {
	return in.Intern(MakePtr(elem))
}

// Tensor interns a static tensor type.
func (in *Interner) Tensor(dims []int64, elem TypeID) TypeID {
	return in.Intern(MakeTensor(dims, elem))
}

// Memref interns a buffer-view type.
func (in *Interner) Memref(dims []int64, elem TypeID, strided bool) TypeID {
	return in.Intern(MakeMemref(dims, elem, strided))
}

// Tuple interns a tuple type.
func (in *Interner) Tuple(elems ...TypeID) TypeID {
	return in.Intern(MakeTuple(elems))
}

// Queries --------------------------------------------------------------------

// IsPtr reports whether id is a scalar pointer type.
func (in *Interner) IsPtr(id TypeID) bool {
	t, ok := in.Lookup(id)
	return ok && t.Kind == KindPtr
}

// IsPtrLike reports whether id is a pointer or a tensor of pointers.
func (in *Interner) IsPtrLike(id TypeID) bool {
	t, ok := in.Lookup(id)
	if !ok {
		return false
	}
	if t.Kind == KindPtr {
		return true
	}
	if t.Kind == KindTensor {
		elem, ok := in.Lookup(t.Elem)
		return ok && elem.Kind == KindPtr
	}
	return false
}

// IsIntOrIndex reports whether id is an integer or index type.
func (in *Interner) IsIntOrIndex(id TypeID) bool {
	t, ok := in.Lookup(id)
	return ok && (t.Kind == KindInt || t.Kind == KindIndex)
}

// Rank returns the number of dimensions for shaped types, 0 otherwise.
func (in *Interner) Rank(id TypeID) int {
	t, ok := in.Lookup(id)
	if !ok {
		return 0
	}
	return len(t.Dims)
}

// Elem returns the element type of a ptr/tensor/memref, or NoTypeID.
func (in *Interner) Elem(id TypeID) TypeID {
	t, ok := in.Lookup(id)
	if !ok {
		return NoTypeID
	}
	return t.Elem
}

// PointeeElem resolves the pointee element type of a pointer or a tensor of
// pointers: ptr<f32> -> f32, tensor<N x ptr<f32>> -> f32.
func (in *Interner) PointeeElem(id TypeID) TypeID {
	t, ok := in.Lookup(id)
	if !ok {
		return NoTypeID
	}
	if t.Kind == KindTensor {
		t, ok = in.Lookup(t.Elem)
		if !ok {
			return NoTypeID
		}
	}
	if t.Kind != KindPtr {
		return NoTypeID
	}
	return t.Elem
}

// FlattenTuple expands nested tuples into their scalar/tensor leaves.
// Non-tuple types flatten to themselves.
func (in *Interner) FlattenTuple(id TypeID) []TypeID {
	t, ok := in.Lookup(id)
	if !ok {
		return nil
	}
	if t.Kind != KindTuple {
		return []TypeID{id}
	}
	var out []TypeID
	for _, e := range t.Elems {
		out = append(out, in.FlattenTuple(e)...)
	}
	return out
}

// String renders a type in the textual-IR syntax.
func (in *Interner) String(id TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return "!invalid"
	}
	switch t.Kind {
	case KindBool:
		return "i1"
	case KindInt:
		return fmt.Sprintf("i%d", t.Width)
	case KindFloat:
		return fmt.Sprintf("f%d", t.Width)
	case KindIndex:
		return "index"
	case KindPtr:
		return fmt.Sprintf("ptr<%s>", in.String(t.Elem))
	case KindTensor, KindMemref:
		var sb strings.Builder
		if t.Kind == KindTensor {
			sb.WriteString("tensor<")
		} else {
			sb.WriteString("memref<")
		}
		for _, d := range t.Dims {
			if d == DynamicDim {
				sb.WriteString("? x ")
			} else {
				fmt.Fprintf(&sb, "%d x ", d)
			}
		}
		sb.WriteString(in.String(t.Elem))
		if t.Strided {
			sb.WriteString(", strided")
		}
		sb.WriteString(">")
		return sb.String()
	case KindTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = in.String(e)
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	default:
		return "!invalid"
	}
}

func typeKey(t Type) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d:%d:%d:%v", t.Kind, t.Width, t.Elem, t.Strided)
	for _, d := range t.Dims {
		fmt.Fprintf(&sb, ":%d", d)
	}
	for _, e := range t.Elems {
		fmt.Fprintf(&sb, ";%d", e)
	}
	return sb.String()
}
