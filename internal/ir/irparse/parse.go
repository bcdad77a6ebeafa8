// Package irparse reads the textual IR emitted by ir.DumpModule back into a
// module. It exists for tests and for replaying dumped pipeline stages, so
// it is strict: anything the printer would not produce is a diagnostic.
package irparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/xujh333/triton-shared/internal/diag"
	"github.com/xujh333/triton-shared/internal/ir"
	"github.com/xujh333/triton-shared/internal/source"
)

var parser = participle.MustBuild[fileAST](
	participle.Lexer(irLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(8),
)

// Parse reads textual IR into a fresh module. The source is registered in fs
// so diagnostic spans resolve to line/column positions. Diagnostics go to
// rep; a non-nil error means the module is unusable.
func Parse(fs *source.FileSet, path string, src []byte, rep diag.Reporter) (*ir.Module, error) {
	file := source.NoFileID
	if fs != nil {
		file = fs.Add(path, src, source.FileVirtual)
	}

	ast, err := parser.ParseBytes(path, src)
	if err != nil {
		sp := source.Span{File: file}
		if perr, ok := err.(participle.Error); ok {
			off := uint32(perr.Position().Offset)
			sp = source.Span{File: file, Start: off, End: off + 1}
		}
		diag.ReportError(rep, diag.ParseSyntax, sp, err.Error())
		return nil, fmt.Errorf("irparse: %s: %w", path, err)
	}

	b := &builder{
		m:    ir.NewModule(moduleName(path)),
		rep:  rep,
		file: file,
	}
	for _, fn := range ast.Funcs {
		b.buildFunc(fn)
	}
	if b.errs > 0 {
		return nil, fmt.Errorf("irparse: %s: %d errors", path, b.errs)
	}
	return b.m, nil
}

func moduleName(path string) string {
	name := path
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".ir")
}

type builder struct {
	m    *ir.Module
	f    *ir.Func
	bld  *ir.Builder
	rep  diag.Reporter
	file source.FileID
	errs int

	scopes []map[string]ir.ValueID
}

func (b *builder) errorf(sp source.Span, code diag.Code, format string, args ...any) {
	b.errs++
	diag.ReportError(b.rep, code, sp, fmt.Sprintf(format, args...))
}

func (b *builder) span(off, n int) source.Span {
	start := uint32(off)
	return source.Span{File: b.file, Start: start, End: start + uint32(n)}
}

func (b *builder) pushScope() {
	b.scopes = append(b.scopes, make(map[string]ir.ValueID))
}

func (b *builder) popScope() {
	b.scopes = b.scopes[:len(b.scopes)-1]
}

func (b *builder) define(name string, v ir.ValueID) {
	b.scopes[len(b.scopes)-1][name] = v
}

func (b *builder) resolve(name string, sp source.Span) ir.ValueID {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if v, ok := b.scopes[i][name]; ok {
			return v
		}
	}
	b.errorf(sp, diag.ParseUndefValue, "use of undefined value %s", name)
	return ir.NoValueID
}

func (b *builder) buildFunc(fn *funcAST) {
	b.f = ir.NewFunc(strings.TrimPrefix(fn.Name, "@"))
	b.f.Span = b.span(fn.Pos.Offset, len(fn.Name))
	b.m.Funcs = append(b.m.Funcs, b.f)

	b.scopes = nil
	b.pushScope()
	for _, p := range fn.Params {
		v := b.f.AddParam(b.f.Body, b.resolveType(p.Type), b.span(p.Pos.Offset, len(p.Name)))
		b.define(p.Name, v)
	}

	b.bld = ir.NewBuilder(b.f)
	for _, op := range fn.Body {
		b.buildOp(op)
	}
	b.popScope()
}

func (b *builder) buildOp(a *opAST) {
	sp := b.span(a.Pos.Offset, len(a.Name))
	kind, ok := ir.OpKindByName(a.Name)
	if !ok {
		b.errorf(sp, diag.ParseUnknownOp, "unknown operation %q", a.Name)
		return
	}

	if len(a.Results) != len(a.Types) {
		b.errorf(sp, diag.ParseArityMismatch,
			"%s declares %d results but %d result types", a.Name, len(a.Results), len(a.Types))
		return
	}
	resultTypes := make([]ir.TypeID, 0, len(a.Types))
	for _, t := range a.Types {
		resultTypes = append(resultTypes, b.resolveType(t))
	}

	refs := a.Args
	if kind == ir.OpFor {
		refs = a.Iter
	}
	operands := make([]ir.ValueID, 0, len(refs))
	for _, r := range refs {
		operands = append(operands, b.resolve(r, sp))
	}

	op := ir.Op{Kind: kind, Operands: operands, Span: sp}
	if !b.decodeAttrs(&op, a, sp) {
		return
	}

	ip := b.bld.InsertPoint()
	for _, r := range a.Regions {
		op.Regions = append(op.Regions, b.buildRegion(r))
	}
	b.bld.SetInsertPoint(ip)

	_, results := b.bld.Emit(op, resultTypes)
	for i, name := range a.Results {
		b.define(name, results[i])
	}
}

func (b *builder) buildRegion(r *regionAST) ir.RegionID {
	id := b.f.NewRegion()
	b.pushScope()
	for _, p := range r.Params {
		v := b.f.AddParam(id, b.resolveType(p.Type), b.span(p.Pos.Offset, len(p.Name)))
		b.define(p.Name, v)
	}
	b.bld.SetRegionEnd(id)
	for _, op := range r.Ops {
		b.buildOp(op)
	}
	b.popScope()
	return id
}

// decodeAttrs fills the per-kind payload from the attribute block. Reports
// and returns false on malformed input.
func (b *builder) decodeAttrs(op *ir.Op, a *opAST, sp source.Span) bool {
	attrs := make(map[string]*attrValueAST)
	if a.Attrs != nil {
		for _, e := range a.Attrs.Entries {
			attrs[e.Key] = e.Value
		}
	}
	need := func(keys ...string) bool {
		for _, k := range keys {
			if attrs[k] == nil {
				b.errorf(sp, diag.ParseSyntax, "%s: missing attribute %q", a.Name, k)
				return false
			}
		}
		return true
	}

	switch op.Kind {
	case ir.OpConstInt, ir.OpConstBool:
		if !need("value") {
			return false
		}
		v, ok := b.attrInt(attrs["value"], sp)
		if !ok {
			return false
		}
		op.Ints = []int64{v}
	case ir.OpConstFloat:
		if !need("value") {
			return false
		}
		v, ok := b.attrFloat(attrs["value"], sp)
		if !ok {
			return false
		}
		op.Float = v
	case ir.OpMakeRange:
		if !need("start", "end") {
			return false
		}
		start, ok1 := b.attrInt(attrs["start"], sp)
		end, ok2 := b.attrInt(attrs["end"], sp)
		if !ok1 || !ok2 {
			return false
		}
		op.Ints = []int64{start, end}
	case ir.OpExpandDims:
		if !need("axis") {
			return false
		}
		axis, ok := b.attrInt(attrs["axis"], sp)
		if !ok {
			return false
		}
		op.Ints = []int64{axis}
	case ir.OpCmpI:
		if !need("pred") {
			return false
		}
		name := ""
		if attrs["pred"].Str != nil {
			name = strings.Trim(*attrs["pred"].Str, `"`)
		}
		pred, ok := ir.CmpPredFromString(name)
		if !ok {
			b.errorf(sp, diag.ParseSyntax, "cmpi: unknown predicate %q", name)
			return false
		}
		op.Ints = []int64{int64(pred)}
	case ir.OpFor:
		if !need("lo", "hi", "step") {
			return false
		}
		lo, ok1 := b.attrInt(attrs["lo"], sp)
		hi, ok2 := b.attrInt(attrs["hi"], sp)
		step, ok3 := b.attrInt(attrs["step"], sp)
		if !ok1 || !ok2 || !ok3 {
			return false
		}
		op.Ints = []int64{lo, hi, step}
	case ir.OpMakeStridedPtr:
		if !need("offset", "strides") {
			return false
		}
		off, ok := b.attrStatic(attrs["offset"], sp)
		if !ok {
			return false
		}
		strides, ok := b.attrStaticList(attrs["strides"], sp)
		if !ok {
			return false
		}
		op.Ints = append([]int64{off}, strides...)
	case ir.OpReinterpretCast:
		if !need("offset", "sizes", "strides") {
			return false
		}
		off, ok := b.attrStatic(attrs["offset"], sp)
		if !ok {
			return false
		}
		sizes, ok := b.attrStaticList(attrs["sizes"], sp)
		if !ok {
			return false
		}
		strides, ok := b.attrStaticList(attrs["strides"], sp)
		if !ok {
			return false
		}
		op.Ints = append([]int64{off}, strides...)
		op.Ints2 = sizes
	default:
		if len(attrs) > 0 {
			b.errorf(sp, diag.ParseSyntax, "%s takes no attributes", a.Name)
			return false
		}
	}
	return true
}

func (b *builder) attrInt(v *attrValueAST, sp source.Span) (int64, bool) {
	if v.Num == nil {
		b.errorf(sp, diag.ParseSyntax, "expected integer attribute")
		return 0, false
	}
	n, err := strconv.ParseInt(*v.Num, 10, 64)
	if err != nil {
		b.errorf(sp, diag.ParseSyntax, "bad integer %q", *v.Num)
		return 0, false
	}
	return n, true
}

func (b *builder) attrFloat(v *attrValueAST, sp source.Span) (float64, bool) {
	if v.Num == nil {
		b.errorf(sp, diag.ParseSyntax, "expected float attribute")
		return 0, false
	}
	f, err := strconv.ParseFloat(*v.Num, 64)
	if err != nil {
		b.errorf(sp, diag.ParseSyntax, "bad float %q", *v.Num)
		return 0, false
	}
	return f, true
}

// attrStatic decodes an offset/size/stride entry: a literal integer, or "?"
// for an entry backed by an operand.
func (b *builder) attrStatic(v *attrValueAST, sp source.Span) (int64, bool) {
	if v.Dyn {
		return ir.DynamicValue, true
	}
	return b.attrInt(v, sp)
}

func (b *builder) attrStaticList(v *attrValueAST, sp source.Span) ([]int64, bool) {
	if v.List == nil && !v.Dyn && v.Num == nil {
		b.errorf(sp, diag.ParseSyntax, "expected list attribute")
		return nil, false
	}
	out := make([]int64, 0, len(v.List))
	for _, e := range v.List {
		n, ok := b.attrStatic(e, sp)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func (b *builder) resolveType(t *typeAST) ir.TypeID {
	if t == nil {
		return ir.NoTypeID
	}
	sp := b.span(t.Pos.Offset, 1)
	switch {
	case t.Shaped != nil:
		dims := make([]int64, 0, len(t.Shaped.Dims))
		for _, d := range t.Shaped.Dims {
			if d == "?" {
				dims = append(dims, ir.DynamicDim)
				continue
			}
			n, err := strconv.ParseInt(d, 10, 64)
			if err != nil || n < 0 {
				b.errorf(sp, diag.ParseBadType, "bad dimension %q", d)
				return ir.NoTypeID
			}
			dims = append(dims, n)
		}
		elem := b.resolveType(t.Shaped.Elem)
		if t.Shaped.Kind == "memref" {
			return b.m.Types.Memref(dims, elem, t.Shaped.Strided)
		}
		if t.Shaped.Strided {
			b.errorf(sp, diag.ParseBadType, "tensors cannot be strided")
			return ir.NoTypeID
		}
		return b.m.Types.Tensor(dims, elem)
	case t.Ptr != nil:
		return b.m.Types.Ptr(b.resolveType(t.Ptr.Elem))
	case t.Tuple != nil:
		elems := make([]ir.TypeID, 0, len(t.Tuple.Elems))
		for _, e := range t.Tuple.Elems {
			elems = append(elems, b.resolveType(e))
		}
		return b.m.Types.Tuple(elems...)
	case t.Prim != nil:
		return b.resolvePrim(*t.Prim, sp)
	default:
		b.errorf(sp, diag.ParseBadType, "empty type")
		return ir.NoTypeID
	}
}

func (b *builder) resolvePrim(name string, sp source.Span) ir.TypeID {
	bt := b.m.Types.Builtins()
	switch name {
	case "i1":
		return bt.Bool
	case "i8":
		return bt.I8
	case "i16":
		return bt.I16
	case "i32":
		return bt.I32
	case "i64":
		return bt.I64
	case "f16":
		return bt.F16
	case "f32":
		return bt.F32
	case "f64":
		return bt.F64
	case "index":
		return bt.Index
	default:
		b.errorf(sp, diag.ParseBadType, "unknown type %q", name)
		return ir.NoTypeID
	}
}
