// Package structured defines the access descriptor produced by pointer
// analysis: how a scalar pointer or a tensor of pointers maps onto a buffer.
package structured

import (
	"fmt"
	"strings"

	"github.com/xujh333/triton-shared/internal/ir"
)

// Class partitions descriptors by how their addresses are computed.
type Class uint8

const (
	// ClassUnresolved marks states the analysis could not derive. They must
	// not reach lowering.
	ClassUnresolved Class = iota
	// ClassStrided covers accesses expressible as
	// base + offset + sum_i(index_i * strides[i]).
	ClassStrided
	// ClassGather covers accesses carrying an explicit per-element offset
	// tensor with no per-dimension stride structure.
	ClassGather
)

func (c Class) String() string {
	switch c {
	case ClassStrided:
		return "strided"
	case ClassGather:
		return "gather"
	default:
		return "unresolved"
	}
}

// State is the structured-access descriptor. It is a value object: pointer
// arithmetic produces new states, never mutates existing ones. A state
// without a base describes a pure offset contribution (integer tensors and
// scalars on the way to becoming pointer offsets).
type State struct {
	// Base is the buffer handle, NoValueID for offset-only states.
	Base ir.ValueID
	// Offset is the scalar base offset in elements.
	Offset ir.Fold
	// Strides holds one entry per dimension for the affine-strided case.
	Strides []ir.Fold
	// Dims is the static shape of the access; empty for scalars.
	Dims []int64
	// OffsetTensor is the materialized per-element offset tensor for the
	// gather case. When set, Strides carries no meaning.
	OffsetTensor ir.ValueID
}

// Scalar returns a rank-0 offset-only state.
func Scalar(offset ir.Fold) State {
	return State{Base: ir.NoValueID, Offset: offset, OffsetTensor: ir.NoValueID}
}

// Ranged returns a rank-1 offset-only state covering [start, start+n) with
// the given stride, the shape make_range produces.
func Ranged(start ir.Fold, n int64, stride ir.Fold) State {
	return State{
		Base:         ir.NoValueID,
		Offset:       start,
		Strides:      []ir.Fold{stride},
		Dims:         []int64{n},
		OffsetTensor: ir.NoValueID,
	}
}

// Gather returns a state addressed by an explicit offset tensor.
func Gather(base ir.ValueID, offsets ir.ValueID, dims []int64) State {
	return State{
		Base:         base,
		Offset:       ir.StaticFold(0),
		Dims:         dims,
		OffsetTensor: offsets,
	}
}

// Rank returns the number of dimensions.
func (s State) Rank() int {
	return len(s.Dims)
}

// HasBase reports whether the state is anchored to a buffer.
func (s State) HasBase() bool {
	return s.Base.IsValid()
}

// IsGather reports whether addresses come from a per-element tensor.
func (s State) IsGather() bool {
	return s.OffsetTensor.IsValid()
}

// Class classifies a resolved state. States without a base are contributions,
// not accesses, and classify as unresolved.
func (s State) Class() Class {
	switch {
	case !s.HasBase():
		return ClassUnresolved
	case s.IsGather():
		return ClassGather
	default:
		return ClassStrided
	}
}

// ExpandDim returns the state with a unit dimension of stride zero inserted
// at axis, matching expand_dims on the value it describes.
func (s State) ExpandDim(axis int) (State, error) {
	if s.IsGather() {
		return State{}, fmt.Errorf("structured: cannot expand dims of a gather state")
	}
	if axis < 0 || axis > len(s.Dims) {
		return State{}, fmt.Errorf("structured: expand axis %d out of range for rank %d", axis, len(s.Dims))
	}
	out := s
	out.Dims = insertAt(s.Dims, axis, 1)
	out.Strides = insertFoldAt(s.Strides, axis, ir.StaticFold(0))
	return out, nil
}

// BroadcastTo stretches unit dimensions to the target shape. A stretched
// dimension's stride becomes zero: every element along it shares one address.
func (s State) BroadcastTo(dims []int64) (State, error) {
	if s.IsGather() {
		return State{}, fmt.Errorf("structured: cannot broadcast a gather state")
	}
	if len(dims) != len(s.Dims) {
		return State{}, fmt.Errorf("structured: broadcast rank %d to %d", len(s.Dims), len(dims))
	}
	out := s
	out.Dims = append([]int64(nil), dims...)
	out.Strides = append([]ir.Fold(nil), s.Strides...)
	for i, d := range s.Dims {
		switch {
		case d == dims[i]:
		case d == 1:
			out.Strides[i] = ir.StaticFold(0)
		default:
			return State{}, fmt.Errorf("structured: cannot broadcast dim %d from %d to %d", i, d, dims[i])
		}
	}
	return out, nil
}

// SplatTo lifts a rank-0 state to the target shape with all strides zero.
func (s State) SplatTo(dims []int64) (State, error) {
	if s.Rank() != 0 || s.IsGather() {
		return State{}, fmt.Errorf("structured: splat source must be a plain scalar state")
	}
	out := s
	out.Dims = append([]int64(nil), dims...)
	out.Strides = make([]ir.Fold, len(dims))
	for i := range out.Strides {
		out.Strides[i] = ir.StaticFold(0)
	}
	return out, nil
}

// SameShape reports whether two states describe tensors of identical shape.
func (s State) SameShape(o State) bool {
	if len(s.Dims) != len(o.Dims) {
		return false
	}
	for i := range s.Dims {
		if s.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

func (s State) String() string {
	var sb strings.Builder
	sb.WriteString(s.Class().String())
	if s.HasBase() {
		fmt.Fprintf(&sb, " base=v%d", s.Base)
	}
	if s.IsGather() {
		fmt.Fprintf(&sb, " offsets=v%d", s.OffsetTensor)
	} else {
		fmt.Fprintf(&sb, " offset=%s strides=[", s.Offset)
		for i, st := range s.Strides {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(st.String())
		}
		sb.WriteString("]")
	}
	return sb.String()
}

func insertAt(xs []int64, i int, v int64) []int64 {
	out := make([]int64, 0, len(xs)+1)
	out = append(out, xs[:i]...)
	out = append(out, v)
	return append(out, xs[i:]...)
}

func insertFoldAt(xs []ir.Fold, i int, v ir.Fold) []ir.Fold {
	out := make([]ir.Fold, 0, len(xs)+1)
	out = append(out, xs[:i]...)
	out = append(out, v)
	return append(out, xs[i:]...)
}
