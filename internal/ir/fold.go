package ir

import "fmt"

// Fold is an offset/size/stride entry that is either a compile-time constant
// or an SSA value. Mixed static/dynamic lists are encoded on ops as a static
// int list using DynamicValue sentinels, with the dynamic entries appended to
// the operand list in order.
type Fold struct {
	Val    ValueID
	Static int64
}

// StaticFold wraps a compile-time constant.
func StaticFold(n int64) Fold {
	return Fold{Val: NoValueID, Static: n}
}

// ValueFold wraps an SSA value.
func ValueFold(v ValueID) Fold {
	return Fold{Val: v, Static: DynamicValue}
}

// IsStatic reports whether the entry is a compile-time constant.
func (of Fold) IsStatic() bool {
	return !of.Val.IsValid()
}

func (of Fold) String() string {
	if of.IsStatic() {
		return fmt.Sprintf("%d", of.Static)
	}
	return "?"
}

// encodeFolds splits entries into a static list (DynamicValue sentinel for
// operand-backed entries) and the operands backing them.
func encodeFolds(folds []Fold) (statics []int64, operands []ValueID) {
	statics = make([]int64, 0, len(folds))
	for _, of := range folds {
		if of.IsStatic() {
			statics = append(statics, of.Static)
		} else {
			statics = append(statics, DynamicValue)
			operands = append(operands, of.Val)
		}
	}
	return statics, operands
}

// decodeFolds re-associates a static list with its dynamic operands.
// Returns the decoded entries and the number of operands consumed.
func decodeFolds(statics []int64, operands []ValueID) ([]Fold, int) {
	out := make([]Fold, 0, len(statics))
	used := 0
	for _, s := range statics {
		if s == DynamicValue {
			if used < len(operands) {
				out = append(out, ValueFold(operands[used]))
			} else {
				out = append(out, ValueFold(NoValueID))
			}
			used++
			continue
		}
		out = append(out, StaticFold(s))
	}
	return out, used
}

// StridedPtrInfo decodes a make_strided_ptr op into base pointer, scalar base
// offset and per-dimension strides.
func StridedPtrInfo(op *Op) (base ValueID, offset Fold, strides []Fold) {
	if op == nil || op.Kind != OpMakeStridedPtr || len(op.Operands) == 0 || len(op.Ints) == 0 {
		return NoValueID, StaticFold(0), nil
	}
	base = op.Operands[0]
	folds, _ := decodeFolds(op.Ints, op.Operands[1:])
	return base, folds[0], folds[1:]
}

// ReinterpretInfo decodes a reinterpret_cast op into base, offset, sizes and
// strides. Dynamic operand order is offset, then sizes, then strides.
func ReinterpretInfo(op *Op) (base ValueID, offset Fold, sizes, strides []Fold) {
	if op == nil || op.Kind != OpReinterpretCast || len(op.Operands) == 0 || len(op.Ints) == 0 {
		return NoValueID, StaticFold(0), nil, nil
	}
	base = op.Operands[0]
	rest := op.Operands[1:]
	offFolds, used := decodeFolds(op.Ints[:1], rest)
	offset = offFolds[0]
	rest = rest[used:]
	sizes, used = decodeFolds(op.Ints2, rest)
	rest = rest[used:]
	strides, _ = decodeFolds(op.Ints[1:], rest)
	return base, offset, sizes, strides
}
