// Package rewrite implements the staged type-conversion engine: structural
// signature rewriting with materialization hooks, plus the canonicalizer and
// bridging-cast reconciliation used between stages.
package rewrite

import (
	"fmt"

	"github.com/xujh333/triton-shared/internal/ir"
	"github.com/xujh333/triton-shared/internal/source"
)

// TypeConverter drives one conversion stage. Convert maps a type to its
// converted form: one type for 1-to-1 stages, several for flattening stages.
// Returning the input type unchanged marks it legal as-is.
type TypeConverter struct {
	Types *ir.Interner

	// Convert returns the converted types, or ok=false when the type cannot
	// be converted at all (a fatal, structural failure).
	Convert func(t ir.TypeID) (out []ir.TypeID, ok bool)

	// MaterializeTarget builds converted values from an original-typed value,
	// emitting at the builder's insertion point. Used where converted
	// positions (loop inits, yields) consume values still in the old shape.
	MaterializeTarget func(b *ir.Builder, orig ir.ValueID, to []ir.TypeID, sp source.Span) []ir.ValueID

	// MaterializeSource rebuilds an original-typed value from converted
	// leaves, for uses not yet rewritten.
	MaterializeSource func(b *ir.Builder, leaves []ir.ValueID, to ir.TypeID, sp source.Span) ir.ValueID

	// ConvertEntryParams additionally rewrites the function's own parameter
	// list. The pipeline leaves kernel signatures alone; see the final
	// retyping in memlower.
	ConvertEntryParams bool
}

// identity reports whether the conversion leaves t unchanged.
func (tc *TypeConverter) identity(t ir.TypeID) (bool, error) {
	out, ok := tc.Convert(t)
	if !ok {
		return false, fmt.Errorf("rewrite: type %s cannot be converted", tc.Types.String(t))
	}
	return len(out) == 1 && out[0] == t, nil
}

// ApplyStructuralConversion rewrites every structural type position of f:
// for-loop iteration signatures (inits, body params, results, yields), if
// results and their yields, and optionally the entry parameters. The pass is
// atomic: it pre-scans every position and fails before touching the function
// if any type cannot be converted.
func ApplyStructuralConversion(f *ir.Func, tc *TypeConverter) error {
	if err := prescan(f, tc); err != nil {
		return err
	}

	b := ir.NewBuilder(f)
	if tc.ConvertEntryParams {
		convertRegionParams(f, b, tc, f.Body, 0)
	}

	// Snapshot: conversion inserts ops but region-owning ops keep their IDs.
	var structural []ir.OpID
	f.Walk(func(id ir.OpID, op *ir.Op) ir.WalkAction {
		if op.Kind == ir.OpFor || op.Kind == ir.OpIf {
			structural = append(structural, id)
		}
		return ir.WalkContinue
	})
	for _, id := range structural {
		switch f.OpAt(id).Kind {
		case ir.OpFor:
			convertFor(f, b, tc, id)
		case ir.OpIf:
			convertIf(f, b, tc, id)
		}
	}
	return nil
}

// prescan walks every structural position and checks convertibility without
// mutating anything.
func prescan(f *ir.Func, tc *TypeConverter) error {
	check := func(t ir.TypeID) error {
		_, err := tc.identity(t)
		return err
	}
	if tc.ConvertEntryParams {
		for _, p := range f.Params() {
			if err := check(f.TypeOf(p)); err != nil {
				return err
			}
		}
	}
	var failed error
	f.Walk(func(id ir.OpID, op *ir.Op) ir.WalkAction {
		switch op.Kind {
		case ir.OpFor, ir.OpIf:
			for _, r := range op.Results {
				if err := check(f.TypeOf(r)); err != nil {
					failed = err
					return ir.WalkStop
				}
			}
			if op.Kind == ir.OpFor {
				for _, init := range op.Operands {
					if err := check(f.TypeOf(init)); err != nil {
						failed = err
						return ir.WalkStop
					}
				}
			}
		}
		return ir.WalkContinue
	})
	return failed
}

// convertRegionParams rewrites a region's parameter list from skip onward.
// Converted parameters are replaced by their leaf parameters; the original
// value is rebuilt at the top of the region for not-yet-rewritten uses.
func convertRegionParams(f *ir.Func, b *ir.Builder, tc *TypeConverter, r ir.RegionID, skip int) []ir.ValueID {
	region := f.RegionAt(r)
	oldParams := append([]ir.ValueID(nil), region.Params...)

	newParams := append([]ir.ValueID(nil), oldParams[:skip]...)
	type bridge struct {
		old    ir.ValueID
		leaves []ir.ValueID
	}
	var bridges []bridge

	for _, p := range oldParams[skip:] {
		t := f.TypeOf(p)
		same, _ := tc.identity(t)
		if same {
			newParams = append(newParams, p)
			continue
		}
		out, _ := tc.Convert(t)
		sp := f.ValueAt(p).Span
		leaves := make([]ir.ValueID, 0, len(out))
		for _, lt := range out {
			leaves = append(leaves, f.NewValue(lt, ir.NoOpID, sp))
		}
		newParams = append(newParams, leaves...)
		bridges = append(bridges, bridge{old: p, leaves: leaves})
	}
	region.Params = newParams

	if len(bridges) > 0 {
		b.SetInsertPoint(ir.InsertPoint{Region: r, Index: 0})
		for _, br := range bridges {
			sp := f.ValueAt(br.old).Span
			src := tc.MaterializeSource(b, br.leaves, f.TypeOf(br.old), sp)
			f.ReplaceAllUses(br.old, src)
		}
	}
	return newParams
}

// convertValues splices a value list: identity entries pass through,
// converted entries are materialized into their leaves at the builder's
// insertion point.
func convertValues(f *ir.Func, b *ir.Builder, tc *TypeConverter, vals []ir.ValueID) []ir.ValueID {
	out := make([]ir.ValueID, 0, len(vals))
	for _, v := range vals {
		t := f.TypeOf(v)
		same, _ := tc.identity(t)
		if same {
			out = append(out, v)
			continue
		}
		to, _ := tc.Convert(t)
		out = append(out, tc.MaterializeTarget(b, v, to, f.ValueAt(v).Span)...)
	}
	return out
}

// convertResults replaces an op's result list. Converted results become leaf
// values; the original result is rebuilt right after the op.
func convertResults(f *ir.Func, b *ir.Builder, tc *TypeConverter, id ir.OpID) {
	op := f.OpAt(id)
	oldResults := append([]ir.ValueID(nil), op.Results...)

	newResults := make([]ir.ValueID, 0, len(oldResults))
	type bridge struct {
		old    ir.ValueID
		leaves []ir.ValueID
	}
	var bridges []bridge
	for _, res := range oldResults {
		t := f.TypeOf(res)
		same, _ := tc.identity(t)
		if same {
			newResults = append(newResults, res)
			continue
		}
		to, _ := tc.Convert(t)
		sp := f.ValueAt(res).Span
		leaves := make([]ir.ValueID, 0, len(to))
		for _, lt := range to {
			leaves = append(leaves, f.NewValue(lt, id, sp))
		}
		newResults = append(newResults, leaves...)
		bridges = append(bridges, bridge{old: res, leaves: leaves})
	}
	op.Results = newResults

	if len(bridges) > 0 {
		b.SetInsertAfter(id)
		for _, br := range bridges {
			sp := f.ValueAt(br.old).Span
			src := tc.MaterializeSource(b, br.leaves, f.TypeOf(br.old), sp)
			f.ReplaceAllUses(br.old, src)
			// The op no longer lists the original as a result; detach it.
			f.ValueAt(br.old).Def = ir.NoOpID
		}
	}
}

// convertYield rewrites the terminating yield of a region.
func convertYield(f *ir.Func, b *ir.Builder, tc *TypeConverter, r ir.RegionID) {
	region := f.RegionAt(r)
	if len(region.Ops) == 0 {
		return
	}
	last := region.Ops[len(region.Ops)-1]
	term := f.OpAt(last)
	if term.Kind != ir.OpYield {
		return
	}
	b.SetInsertBefore(last)
	converted := convertValues(f, b, tc, append([]ir.ValueID(nil), term.Operands...))
	f.OpAt(last).Operands = converted
}

func convertFor(f *ir.Func, b *ir.Builder, tc *TypeConverter, id ir.OpID) {
	op := f.OpAt(id)
	body := op.Regions[0]

	b.SetInsertBefore(id)
	newInits := convertValues(f, b, tc, f.OpAt(id).Operands)
	f.OpAt(id).Operands = newInits

	// Body params: induction variable stays, iter params convert.
	convertRegionParams(f, b, tc, body, 1)
	convertYield(f, b, tc, body)
	convertResults(f, b, tc, id)
}

func convertIf(f *ir.Func, b *ir.Builder, tc *TypeConverter, id ir.OpID) {
	op := f.OpAt(id)
	for _, r := range op.Regions {
		convertYield(f, b, tc, r)
	}
	convertResults(f, b, tc, id)
}
