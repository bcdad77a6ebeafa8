package ir

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DumpModule writes the textual form of a module. The output is
// deterministic and parses back through irparse.
func DumpModule(w io.Writer, m *Module) error {
	if w == nil || m == nil {
		return nil
	}
	for i, f := range m.Funcs {
		if f == nil {
			continue
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := DumpFunc(w, f, m.Types); err != nil {
			return err
		}
	}
	return nil
}

// DumpString renders a module to a string.
func DumpString(m *Module) string {
	var sb strings.Builder
	_ = DumpModule(&sb, m)
	return sb.String()
}

// DumpFunc writes the textual form of one function.
func DumpFunc(w io.Writer, f *Func, types *Interner) error {
	if w == nil || f == nil {
		return nil
	}
	p := &printer{w: w, f: f, types: types, names: make(map[ValueID]string)}

	params := make([]string, 0, len(f.Params()))
	for _, v := range f.Params() {
		params = append(params, fmt.Sprintf("%s: %s", p.name(v), types.String(f.TypeOf(v))))
	}
	fmt.Fprintf(w, "func @%s(%s) {\n", f.Name, strings.Join(params, ", "))
	p.printRegionOps(f.Body, 1)
	fmt.Fprintf(w, "}\n")
	return nil
}

type printer struct {
	w     io.Writer
	f     *Func
	types *Interner
	names map[ValueID]string
	next  int
}

func (p *printer) name(v ValueID) string {
	if n, ok := p.names[v]; ok {
		return n
	}
	n := "%" + strconv.Itoa(p.next)
	p.next++
	p.names[v] = n
	return n
}

func (p *printer) printRegionOps(r RegionID, depth int) {
	region := p.f.RegionAt(r)
	if region == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	for _, id := range region.Ops {
		op := p.f.OpAt(id)
		if op == nil || op.Kind == OpErased {
			continue
		}
		fmt.Fprintf(p.w, "%s%s\n", indent, p.formatOp(op, depth))
	}
}

func (p *printer) formatOp(op *Op, depth int) string {
	var sb strings.Builder

	if len(op.Results) > 0 {
		names := make([]string, len(op.Results))
		for i, v := range op.Results {
			names[i] = p.name(v)
		}
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString(" = ")
	}
	sb.WriteString(op.Kind.String())

	if attrs := p.formatAttrs(op); attrs != "" {
		sb.WriteString(" ")
		sb.WriteString(attrs)
	}

	operands := make([]string, len(op.Operands))
	for i, v := range op.Operands {
		operands[i] = p.name(v)
	}
	switch {
	case op.Kind == OpFor:
		if len(operands) > 0 {
			sb.WriteString(" iter(" + strings.Join(operands, ", ") + ")")
		}
	case len(operands) > 0:
		sb.WriteString(" " + strings.Join(operands, ", "))
	}

	for _, r := range op.Regions {
		sb.WriteString(" ")
		sb.WriteString(p.formatRegion(r, depth))
	}

	if len(op.Results) > 0 {
		types := make([]string, len(op.Results))
		for i, v := range op.Results {
			types[i] = p.types.String(p.f.TypeOf(v))
		}
		sb.WriteString(" : " + strings.Join(types, ", "))
	}
	return sb.String()
}

func (p *printer) formatRegion(r RegionID, depth int) string {
	region := p.f.RegionAt(r)
	var sb strings.Builder
	indent := strings.Repeat("  ", depth)

	params := make([]string, 0, len(region.Params))
	for _, v := range region.Params {
		params = append(params, fmt.Sprintf("%s: %s", p.name(v), p.types.String(p.f.TypeOf(v))))
	}
	sb.WriteString("{\n")
	fmt.Fprintf(&sb, "%s^(%s):\n", indent, strings.Join(params, ", "))
	for _, id := range region.Ops {
		op := p.f.OpAt(id)
		if op == nil || op.Kind == OpErased {
			continue
		}
		fmt.Fprintf(&sb, "%s  %s\n", indent, p.formatOp(op, depth+1))
	}
	sb.WriteString(indent + "}")
	return sb.String()
}

func (p *printer) formatAttrs(op *Op) string {
	switch op.Kind {
	case OpConstInt, OpConstBool:
		return fmt.Sprintf("{value = %d}", op.Ints[0])
	case OpConstFloat:
		return fmt.Sprintf("{value = %s}", formatFloat(op.Float))
	case OpMakeRange:
		return fmt.Sprintf("{start = %d, end = %d}", op.Ints[0], op.Ints[1])
	case OpExpandDims:
		return fmt.Sprintf("{axis = %d}", op.Ints[0])
	case OpCmpI:
		return fmt.Sprintf("{pred = %q}", CmpPred(op.Ints[0]).String())
	case OpFor:
		return fmt.Sprintf("{lo = %d, hi = %d, step = %d}", op.Ints[0], op.Ints[1], op.Ints[2])
	case OpMakeStridedPtr:
		return fmt.Sprintf("{offset = %s, strides = %s}",
			formatStatic(op.Ints[0]), formatStaticList(op.Ints[1:]))
	case OpReinterpretCast:
		return fmt.Sprintf("{offset = %s, sizes = %s, strides = %s}",
			formatStatic(op.Ints[0]), formatStaticList(op.Ints2), formatStaticList(op.Ints[1:]))
	default:
		return ""
	}
}

func formatStatic(v int64) string {
	if v == DynamicValue {
		return "?"
	}
	return strconv.FormatInt(v, 10)
}

func formatStaticList(vs []int64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatStatic(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
