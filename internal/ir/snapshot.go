package ir

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/xujh333/triton-shared/internal/source"
)

// Snapshot is the serialized form of a module. The arenas are flat slices of
// plain data, so the module round-trips through msgpack without losing
// identity of values, ops or regions.
type Snapshot struct {
	Schema uint16         `msgpack:"schema"`
	Name   string         `msgpack:"name"`
	Types  []TypeDesc     `msgpack:"types"`
	Funcs  []FuncSnapshot `msgpack:"funcs"`
}

// TypeDesc mirrors Type with exported msgpack tags.
type TypeDesc struct {
	Kind    uint8    `msgpack:"kind"`
	Width   uint8    `msgpack:"width"`
	Elem    uint32   `msgpack:"elem"`
	Dims    []int64  `msgpack:"dims,omitempty"`
	Elems   []uint32 `msgpack:"elems,omitempty"`
	Strided bool     `msgpack:"strided,omitempty"`
}

// FuncSnapshot mirrors Func.
type FuncSnapshot struct {
	Name    string           `msgpack:"name"`
	Values  []ValueSnapshot  `msgpack:"values"`
	Ops     []OpSnapshot     `msgpack:"ops"`
	Regions []RegionSnapshot `msgpack:"regions"`
	Body    int32            `msgpack:"body"`
}

// ValueSnapshot mirrors Value. Spans are dropped: a restored module reports
// diagnostics without positions, which is acceptable for cache replay.
type ValueSnapshot struct {
	Type uint32 `msgpack:"type"`
	Def  int32  `msgpack:"def"`
}

// OpSnapshot mirrors Op.
type OpSnapshot struct {
	Kind     uint8   `msgpack:"kind"`
	Operands []int32 `msgpack:"operands,omitempty"`
	Results  []int32 `msgpack:"results,omitempty"`
	Regions  []int32 `msgpack:"regions,omitempty"`
	Ints     []int64 `msgpack:"ints,omitempty"`
	Ints2    []int64 `msgpack:"ints2,omitempty"`
	Float    float64 `msgpack:"float,omitempty"`
}

// RegionSnapshot mirrors Region.
type RegionSnapshot struct {
	Params []int32 `msgpack:"params,omitempty"`
	Ops    []int32 `msgpack:"ops,omitempty"`
}

// SnapshotSchema is bumped whenever the snapshot layout changes, so stale
// cache entries are rejected instead of misdecoded.
const SnapshotSchema uint16 = 1

// EncodeModule serializes a module with msgpack.
func EncodeModule(m *Module) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("ir: nil module")
	}
	snap := Snapshot{Schema: SnapshotSchema, Name: m.Name}

	for _, t := range m.Types.Export() {
		desc := TypeDesc{
			Kind:    uint8(t.Kind),
			Width:   uint8(t.Width),
			Elem:    uint32(t.Elem),
			Dims:    t.Dims,
			Strided: t.Strided,
		}
		for _, e := range t.Elems {
			desc.Elems = append(desc.Elems, uint32(e))
		}
		snap.Types = append(snap.Types, desc)
	}

	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		fs := FuncSnapshot{Name: f.Name, Body: int32(f.Body)}
		for _, v := range f.Values {
			fs.Values = append(fs.Values, ValueSnapshot{Type: uint32(v.Type), Def: int32(v.Def)})
		}
		for _, op := range f.Ops {
			fs.Ops = append(fs.Ops, OpSnapshot{
				Kind:     uint8(op.Kind),
				Operands: valueIDs(op.Operands),
				Results:  valueIDs(op.Results),
				Regions:  regionIDs(op.Regions),
				Ints:     op.Ints,
				Ints2:    op.Ints2,
				Float:    op.Float,
			})
		}
		for _, r := range f.Regions {
			fs.Regions = append(fs.Regions, RegionSnapshot{Params: valueIDs(r.Params), Ops: opIDs(r.Ops)})
		}
		snap.Funcs = append(snap.Funcs, fs)
	}
	return msgpack.Marshal(&snap)
}

// DecodeModule rebuilds a module from EncodeModule's output.
func DecodeModule(data []byte) (*Module, error) {
	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("ir: decode snapshot: %w", err)
	}
	if snap.Schema != SnapshotSchema {
		return nil, fmt.Errorf("ir: snapshot schema %d, want %d", snap.Schema, SnapshotSchema)
	}

	descs := make([]Type, 0, len(snap.Types))
	for _, d := range snap.Types {
		t := Type{
			Kind:    Kind(d.Kind),
			Width:   Width(d.Width),
			Elem:    TypeID(d.Elem),
			Dims:    d.Dims,
			Strided: d.Strided,
		}
		for _, e := range d.Elems {
			t.Elems = append(t.Elems, TypeID(e))
		}
		descs = append(descs, t)
	}
	types, err := RestoreInterner(descs)
	if err != nil {
		return nil, err
	}

	m := &Module{Name: snap.Name, Types: types}
	for _, fs := range snap.Funcs {
		f := &Func{Name: fs.Name, Body: RegionID(fs.Body)}
		for _, v := range fs.Values {
			f.Values = append(f.Values, Value{Type: TypeID(v.Type), Def: OpID(v.Def), Span: source.NoSpan})
		}
		for _, op := range fs.Ops {
			f.Ops = append(f.Ops, Op{
				Kind:     OpKind(op.Kind),
				Operands: toValueIDs(op.Operands),
				Results:  toValueIDs(op.Results),
				Regions:  toRegionIDs(op.Regions),
				Ints:     op.Ints,
				Ints2:    op.Ints2,
				Float:    op.Float,
				Span:     source.NoSpan,
			})
		}
		for _, r := range fs.Regions {
			f.Regions = append(f.Regions, Region{Params: toValueIDs(r.Params), Ops: toOpIDs(r.Ops)})
		}
		if int(f.Body) >= len(f.Regions) {
			return nil, fmt.Errorf("ir: snapshot function %s: body region out of range", f.Name)
		}
		m.Funcs = append(m.Funcs, f)
	}
	return m, nil
}

func valueIDs(vs []ValueID) []int32 {
	out := make([]int32, len(vs))
	for i, v := range vs {
		out[i] = int32(v)
	}
	return out
}

func toValueIDs(vs []int32) []ValueID {
	out := make([]ValueID, len(vs))
	for i, v := range vs {
		out[i] = ValueID(v)
	}
	return out
}

func opIDs(vs []OpID) []int32 {
	out := make([]int32, len(vs))
	for i, v := range vs {
		out[i] = int32(v)
	}
	return out
}

func toOpIDs(vs []int32) []OpID {
	out := make([]OpID, len(vs))
	for i, v := range vs {
		out[i] = OpID(v)
	}
	return out
}

func regionIDs(vs []RegionID) []int32 {
	out := make([]int32, len(vs))
	for i, v := range vs {
		out[i] = int32(v)
	}
	return out
}

func toRegionIDs(vs []int32) []RegionID {
	out := make([]RegionID, len(vs))
	for i, v := range vs {
		out[i] = RegionID(v)
	}
	return out
}
