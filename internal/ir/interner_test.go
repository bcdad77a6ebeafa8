package ir

import "testing"

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.I32 == NoTypeID || b.F32 == NoTypeID || b.Index == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	i32, _ := in.Lookup(b.I32)
	if i32.Kind != KindInt || i32.Width != Width32 {
		t.Fatalf("expected i32 descriptor, got %v/%v", i32.Kind, i32.Width)
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	p1 := in.Ptr(in.Builtins().F32)
	p2 := in.Ptr(in.Builtins().F32)
	if p1 != p2 {
		t.Fatalf("pointer types should be deduplicated")
	}
	t1 := in.Tensor([]int64{1024}, in.Builtins().I32)
	t2 := in.Tensor([]int64{1024}, in.Builtins().I32)
	if t1 != t2 {
		t.Fatalf("tensor types should be deduplicated")
	}
}

func TestStridedAffectsIdentity(t *testing.T) {
	in := NewInterner()
	plain := in.Memref([]int64{16}, in.Builtins().F32, false)
	strided := in.Memref([]int64{16}, in.Builtins().F32, true)
	if plain == strided {
		t.Fatalf("strided and contiguous memrefs must differ")
	}
}

func TestPointeeElem(t *testing.T) {
	in := NewInterner()
	f32 := in.Builtins().F32
	ptr := in.Ptr(f32)
	tens := in.Tensor([]int64{8, 8}, ptr)
	if got := in.PointeeElem(ptr); got != f32 {
		t.Fatalf("PointeeElem(ptr<f32>) = %s", in.String(got))
	}
	if got := in.PointeeElem(tens); got != f32 {
		t.Fatalf("PointeeElem(tensor of ptr) = %s", in.String(got))
	}
	if got := in.PointeeElem(f32); got != NoTypeID {
		t.Fatalf("PointeeElem(f32) should be invalid, got %s", in.String(got))
	}
}

func TestFlattenTuple(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	ptr := in.Ptr(b.F32)
	tup := in.Tuple(ptr, b.Index, b.Index)
	leaves := in.FlattenTuple(tup)
	if len(leaves) != 3 || leaves[0] != ptr || leaves[1] != b.Index {
		t.Fatalf("unexpected leaves %v", leaves)
	}
	if got := in.FlattenTuple(b.I32); len(got) != 1 || got[0] != b.I32 {
		t.Fatalf("non-tuple should flatten to itself, got %v", got)
	}
}

func TestTypeRendering(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	cases := []struct {
		id   TypeID
		want string
	}{
		{b.Bool, "i1"},
		{b.Index, "index"},
		{in.Ptr(b.F32), "ptr<f32>"},
		{in.Tensor([]int64{1024}, b.I32), "tensor<1024 x i32>"},
		{in.Tensor([]int64{4, DynamicDim}, b.F32), "tensor<4 x ? x f32>"},
		{in.Memref([]int64{16}, b.F32, true), "memref<16 x f32, strided>"},
		{in.Tuple(in.Ptr(b.F32), b.Index), "tuple<ptr<f32>, index>"},
	}
	for _, tc := range cases {
		if got := in.String(tc.id); got != tc.want {
			t.Errorf("String(%d) = %q, want %q", tc.id, got, tc.want)
		}
	}
}
