package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xujh333/triton-shared/internal/diag"
	"github.com/xujh333/triton-shared/internal/ir"
	"github.com/xujh333/triton-shared/internal/ir/irparse"
	"github.com/xujh333/triton-shared/internal/source"
	"github.com/xujh333/triton-shared/internal/testkit"
)

func parseKernel(t *testing.T, lines ...string) *ir.Module {
	t.Helper()
	fs := source.NewFileSet()
	bag := diag.NewBag(64)
	src := strings.Join(lines, "\n") + "\n"
	m, err := irparse.Parse(fs, "kernel.ir", []byte(src), diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("parse: %v\ndiagnostics: %+v", err, bag.Items())
	}
	return m
}

func mustRun(t *testing.T, m *ir.Module, opts Options) *Result {
	t.Helper()
	res, err := Run(m, opts)
	if err != nil {
		t.Fatalf("pipeline: %v\ndiagnostics: %+v", err, res.Bag.Items())
	}
	if err := testkit.CheckModuleInvariants(res.Module); err != nil {
		t.Fatalf("arena invariants: %v", err)
	}
	return res
}

func TestStridedLoadLowersToSingleView(t *testing.T) {
	m := parseKernel(t,
		"func @kernel(%p: ptr<f32>) {",
		"  %r = make_range {start = 0, end = 1024} : tensor<1024 x i32>",
		"  %c = const.int {value = 4} : i32",
		"  %s = splat %c : tensor<1024 x i32>",
		"  %o = muli %r, %s : tensor<1024 x i32>",
		"  %ps = splat %p : tensor<1024 x ptr<f32>>",
		"  %a = addptr %ps, %o : tensor<1024 x ptr<f32>>",
		"  %v = load %a : tensor<1024 x f32>",
		"  store %a, %v",
		"  return",
		"}")

	res := mustRun(t, m, DefaultOptions())
	if res.SiteErrs != nil {
		t.Fatalf("partial lowering: %v", res.SiteErrs)
	}
	if res.Stats.Lowered != 2 {
		t.Fatalf("stats = %+v, want 2 lowered sites", res.Stats)
	}
	f := res.Module.Funcs[0]
	rcs := f.FindOps(ir.OpReinterpretCast)
	if len(rcs) != 2 {
		t.Fatalf("want a view per access, got %d\n%s", len(rcs), ir.DumpString(res.Module))
	}
	for _, id := range rcs {
		_, _, _, strides := ir.ReinterpretInfo(f.OpAt(id))
		if len(strides) != 1 || !strides[0].IsStatic() || strides[0].Static != 4 {
			t.Errorf("view strides = %v, want [4]", strides)
		}
	}
	if n := f.CountOps(ir.OpGrid); n != 0 {
		t.Errorf("unmasked strided access must not need a grid")
	}
	if err := ir.VerifyLowered(res.Module); err != nil {
		t.Fatalf("lowering contract: %v", err)
	}
}

func TestMaskedLoadZeroFillsUpperHalf(t *testing.T) {
	m := parseKernel(t,
		"func @kernel(%p: ptr<f32>) {",
		"  %r = make_range {start = 0, end = 1024} : tensor<1024 x i32>",
		"  %c = const.int {value = 512} : i32",
		"  %lim = splat %c : tensor<1024 x i32>",
		"  %mask = cmpi {pred = \"slt\"} %r, %lim : tensor<1024 x i1>",
		"  %ps = splat %p : tensor<1024 x ptr<f32>>",
		"  %a = addptr %ps, %r : tensor<1024 x ptr<f32>>",
		"  %v = load %a, %mask : tensor<1024 x f32>",
		"  return",
		"}")

	res := mustRun(t, m, DefaultOptions())
	if res.SiteErrs != nil {
		t.Fatalf("partial lowering: %v", res.SiteErrs)
	}
	f := res.Module.Funcs[0]
	if n := f.CountOps(ir.OpGrid); n != 1 {
		t.Fatalf("grid count = %d\n%s", n, ir.DumpString(res.Module))
	}
	if n := f.CountOps(ir.OpIf); n != 1 {
		t.Fatalf("mask guard missing")
	}
	if n := f.CountOps(ir.OpConstFloat); n != 1 {
		t.Errorf("masked-out lanes need a float zero, got %d const.float", n)
	}
}

func TestDynamicOffsetsLowerToGatherGrid(t *testing.T) {
	m := parseKernel(t,
		"func @kernel(%p: ptr<f32>) {",
		"  %r = make_range {start = 0, end = 256} : tensor<256 x i32>",
		"  %sq = muli %r, %r : tensor<256 x i32>",
		"  %one = const.float {value = 1} : f32",
		"  %vals = splat %one : tensor<256 x f32>",
		"  %ps = splat %p : tensor<256 x ptr<f32>>",
		"  %a = addptr %ps, %sq : tensor<256 x ptr<f32>>",
		"  store %a, %vals",
		"  return",
		"}")

	res := mustRun(t, m, DefaultOptions())
	if res.SiteErrs != nil {
		t.Fatalf("partial lowering: %v", res.SiteErrs)
	}
	f := res.Module.Funcs[0]
	if n := f.CountOps(ir.OpGrid); n != 1 {
		t.Fatalf("grid count = %d\n%s", n, ir.DumpString(res.Module))
	}
	if n := f.CountOps(ir.OpMemStore); n != 1 {
		t.Errorf("mem.store count = %d", n)
	}
	if n := f.CountOps(ir.OpIf); n != 0 {
		t.Errorf("unmasked gather store must not be guarded")
	}
}

func TestLoopCarriedPointerLowersEndToEnd(t *testing.T) {
	m := parseKernel(t,
		"func @kernel(%p: ptr<f32>) {",
		"  %z = const.int {value = 0} : i32",
		"  %p0 = addptr %p, %z : ptr<f32>",
		"  %r = for {lo = 0, hi = 4, step = 1} iter(%p0) {",
		"  ^(%i: index, %q: ptr<f32>):",
		"    %v = load %q : f32",
		"    %c4 = const.int {value = 4} : i32",
		"    %q2 = addptr %q, %c4 : ptr<f32>",
		"    yield %q2",
		"  } : ptr<f32>",
		"  %last = load %r : f32",
		"  return",
		"}")

	res := mustRun(t, m, DefaultOptions())
	if res.SiteErrs != nil {
		t.Fatalf("partial lowering: %v\ndiagnostics: %+v", res.SiteErrs, res.Bag.Items())
	}
	if res.Stats.Lowered != 2 {
		t.Fatalf("stats = %+v, want both loads lowered", res.Stats)
	}
	f := res.Module.Funcs[0]
	if n := f.CountOps(ir.OpBridgeCast) + f.CountOps(ir.OpGetState); n != 0 {
		t.Fatalf("%d scaffolding ops left\n%s", n, ir.DumpString(res.Module))
	}
	if err := ir.VerifyLowered(res.Module); err != nil {
		t.Fatalf("lowering contract: %v\n%s", err, ir.DumpString(res.Module))
	}
}

func TestUnanalyzableAccessIsSoftFailure(t *testing.T) {
	m := parseKernel(t,
		"func @kernel(%a: tensor<16 x ptr<f32>>) {",
		"  %v = load %a : tensor<16 x f32>",
		"  return",
		"}")

	res := mustRun(t, m, DefaultOptions())
	if res.SiteErrs == nil {
		t.Fatalf("want a combined site error")
	}
	if res.Stats.Skipped != 1 {
		t.Fatalf("stats = %+v", res.Stats)
	}
	if !res.Bag.HasWarnings() {
		t.Fatalf("expected warnings in the bag")
	}

	// Strict mode promotes the same outcome to a run failure.
	strict := DefaultOptions()
	strict.StrictSites = true
	m2 := parseKernel(t,
		"func @kernel(%a: tensor<16 x ptr<f32>>) {",
		"  %v = load %a : tensor<16 x f32>",
		"  return",
		"}")
	if _, err := Run(m2, strict); err == nil {
		t.Fatalf("strict mode should fail")
	}
}

func TestRepeatedSiteWarningsCollapse(t *testing.T) {
	m := ir.NewModule("test")
	b := m.Types.Builtins()
	f := ir.NewFunc("kernel")
	m.Funcs = append(m.Funcs, f)
	ptrs := f.AddParam(f.Body, m.Types.Tensor([]int64{16}, m.Types.Ptr(b.F32)), source.NoSpan)

	bld := ir.NewBuilder(f)
	resT := m.Types.Tensor([]int64{16}, b.F32)
	bld.Load(ptrs, ir.NoValueID, resT, source.NoSpan)
	bld.Load(ptrs, ir.NoValueID, resT, source.NoSpan)
	bld.Return(source.NoSpan)

	res := mustRun(t, m, DefaultOptions())
	if res.Stats.Skipped != 2 {
		t.Fatalf("stats = %+v, want both sites kept", res.Stats)
	}
	warnings := 0
	for _, d := range res.Bag.Items() {
		if d.Severity == diag.SevWarning {
			warnings++
		}
	}
	if warnings != 1 {
		t.Fatalf("identical warnings not collapsed: got %d", warnings)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	opts.CacheEnabled = true
	opts.CacheDir = t.TempDir()

	kernel := []string{
		"func @kernel(%p: ptr<f32>) {",
		"  %r = make_range {start = 0, end = 64} : tensor<64 x i32>",
		"  %ps = splat %p : tensor<64 x ptr<f32>>",
		"  %a = addptr %ps, %r : tensor<64 x ptr<f32>>",
		"  %v = load %a : tensor<64 x f32>",
		"  return",
		"}",
	}
	first := mustRun(t, parseKernel(t, kernel...), opts)
	if first.FromCache {
		t.Fatalf("first run must miss")
	}
	second := mustRun(t, parseKernel(t, kernel...), opts)
	if !second.FromCache {
		t.Fatalf("second run must hit the cache")
	}
	if got, want := ir.DumpString(second.Module), ir.DumpString(first.Module); got != want {
		t.Fatalf("cached module differs:\n%s\nwant:\n%s", got, want)
	}
}

func TestOptionsFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.toml")
	content := "cache_enabled = true\nmax_diagnostics = 32\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	o, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !o.CacheEnabled || o.MaxDiagnostics != 32 {
		t.Fatalf("options = %+v", o)
	}

	t.Setenv("TRITON_SHARED_CACHE", "0")
	t.Setenv("TRITON_SHARED_CACHE_DIR", dir)
	o, err = LoadOptions(path)
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if o.CacheEnabled {
		t.Errorf("env must override cache_enabled")
	}
	if o.CacheDir != dir {
		t.Errorf("cache dir = %q, want %q", o.CacheDir, dir)
	}
}

func TestPhaseTimingsAreRecorded(t *testing.T) {
	m := parseKernel(t,
		"func @kernel(%p: ptr<f32>) {",
		"  %v = load %p : f32",
		"  return",
		"}")
	res := mustRun(t, m, DefaultOptions())
	if len(res.Timings.Phases) == 0 {
		t.Fatalf("no phases recorded")
	}
	names := make(map[string]bool)
	for _, p := range res.Timings.Phases {
		names[p.Name] = true
	}
	for _, want := range []string{"verify-input", "decompose kernel", "analyze kernel", "lower kernel", "verify-output"} {
		if !names[want] {
			t.Errorf("missing phase %q in %v", want, res.Timings.Phases)
		}
	}
}
