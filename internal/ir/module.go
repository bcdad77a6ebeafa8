package ir

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/xujh333/triton-shared/internal/source"
)

// Module is one program unit: a set of functions sharing a type interner.
// The pipeline assumes exclusive ownership of the module for the duration of
// a run.
type Module struct {
	Name  string
	Types *Interner
	Funcs []*Func
}

// NewModule creates an empty module with a fresh type interner.
func NewModule(name string) *Module {
	return &Module{Name: name, Types: NewInterner()}
}

// FuncByName returns the named function, or nil.
func (m *Module) FuncByName(name string) *Func {
	for _, f := range m.Funcs {
		if f != nil && f.Name == name {
			return f
		}
	}
	return nil
}

// Value is one SSA value in a function's arena. Values defined by region
// parameters have Def == NoOpID.
type Value struct {
	Type TypeID
	Def  OpID
	Span source.Span
}

// Region holds an ordered list of operations plus its parameters (loop
// induction variables, grid element arguments).
type Region struct {
	Params []ValueID
	Ops    []OpID
}

// Func owns the arenas for its values, operations and regions. Regions[Body]
// is the function body; its params are the function parameters.
type Func struct {
	Name string
	Span source.Span

	Values  []Value
	Ops     []Op
	Regions []Region
	Body    RegionID
}

// NewFunc creates a function with an empty body region.
func NewFunc(name string) *Func {
	f := &Func{Name: name}
	f.Body = f.NewRegion()
	return f
}

// Params returns the function's parameter values.
func (f *Func) Params() []ValueID {
	return f.Regions[f.Body].Params
}

// NewValue allocates a value in the arena.
func (f *Func) NewValue(t TypeID, def OpID, span source.Span) ValueID {
	raw, err := safecast.Conv[int32](len(f.Values))
	if err != nil {
		panic(fmt.Errorf("ir: value id overflow: %w", err))
	}
	f.Values = append(f.Values, Value{Type: t, Def: def, Span: span})
	return ValueID(raw)
}

// NewRegion allocates an empty region.
func (f *Func) NewRegion() RegionID {
	raw, err := safecast.Conv[int32](len(f.Regions))
	if err != nil {
		panic(fmt.Errorf("ir: region id overflow: %w", err))
	}
	f.Regions = append(f.Regions, Region{})
	return RegionID(raw)
}

// AddParam appends a parameter value to a region and returns it.
func (f *Func) AddParam(r RegionID, t TypeID, span source.Span) ValueID {
	v := f.NewValue(t, NoOpID, span)
	f.Regions[r].Params = append(f.Regions[r].Params, v)
	return v
}

// ValueAt returns the arena slot for a value.
func (f *Func) ValueAt(v ValueID) *Value {
	if !v.IsValid() || int(v) >= len(f.Values) {
		return nil
	}
	return &f.Values[v]
}

// OpAt returns the arena slot for an operation.
func (f *Func) OpAt(o OpID) *Op {
	if !o.IsValid() || int(o) >= len(f.Ops) {
		return nil
	}
	return &f.Ops[o]
}

// RegionAt returns the arena slot for a region.
func (f *Func) RegionAt(r RegionID) *Region {
	if !r.IsValid() || int(r) >= len(f.Regions) {
		return nil
	}
	return &f.Regions[r]
}

// TypeOf returns a value's type, or NoTypeID.
func (f *Func) TypeOf(v ValueID) TypeID {
	if val := f.ValueAt(v); val != nil {
		return val.Type
	}
	return NoTypeID
}

// DefOf returns the operation defining a value, or nil for region params.
func (f *Func) DefOf(v ValueID) *Op {
	val := f.ValueAt(v)
	if val == nil || !val.Def.IsValid() {
		return nil
	}
	return f.OpAt(val.Def)
}

// newOp appends an op to the arena without attaching it to a region.
func (f *Func) newOp(op Op) OpID {
	raw, err := safecast.Conv[int32](len(f.Ops))
	if err != nil {
		panic(fmt.Errorf("ir: op id overflow: %w", err))
	}
	f.Ops = append(f.Ops, op)
	return OpID(raw)
}

// ReplaceAllUses rewrites every operand reference to old into new, across
// every region of the function.
func (f *Func) ReplaceAllUses(old, new ValueID) {
	if old == new {
		return
	}
	for i := range f.Ops {
		op := &f.Ops[i]
		if op.Kind == OpErased {
			continue
		}
		for j, v := range op.Operands {
			if v == old {
				op.Operands[j] = new
			}
		}
	}
}

// HasUses reports whether any live operation consumes the value.
func (f *Func) HasUses(v ValueID) bool {
	for i := range f.Ops {
		op := &f.Ops[i]
		if op.Kind == OpErased {
			continue
		}
		for _, o := range op.Operands {
			if o == v {
				return true
			}
		}
	}
	return false
}

// EraseOp detaches an operation from its region and marks the arena slot
// erased. The op's results must be use-free.
func (f *Func) EraseOp(id OpID) {
	op := f.OpAt(id)
	if op == nil || op.Kind == OpErased {
		return
	}
	for r := range f.Regions {
		ops := f.Regions[r].Ops
		for i, o := range ops {
			if o == id {
				f.Regions[r].Ops = append(ops[:i:i], ops[i+1:]...)
				break
			}
		}
	}
	op.Kind = OpErased
	op.Operands = nil
	op.Regions = nil
}

// RegionOf returns the region containing the op and its index in it.
func (f *Func) RegionOf(id OpID) (RegionID, int) {
	for r := range f.Regions {
		for i, o := range f.Regions[r].Ops {
			if o == id {
				raw, err := safecast.Conv[int32](r)
				if err != nil {
					panic(fmt.Errorf("ir: region id overflow: %w", err))
				}
				return RegionID(raw), i
			}
		}
	}
	return NoRegionID, -1
}
