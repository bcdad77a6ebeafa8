package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vmihailenco/msgpack/v5"
)

func TestSnapshotRoundTrip(t *testing.T) {
	m, _ := buildStridedLoad(t)

	data, err := EncodeModule(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeModule(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Name != m.Name {
		t.Fatalf("module name: got %q, want %q", back.Name, m.Name)
	}
	if err := Verify(back); err != nil {
		t.Fatalf("restored module fails verification: %v", err)
	}
	if diff := cmp.Diff(DumpString(m), DumpString(back)); diff != "" {
		t.Fatalf("restored module differs (-orig +restored):\n%s", diff)
	}
}

func TestSnapshotRejectsWrongSchema(t *testing.T) {
	m, _ := buildStridedLoad(t)
	data, err := EncodeModule(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		t.Fatalf("raw decode: %v", err)
	}
	snap.Schema = SnapshotSchema + 1
	bad, err := msgpack.Marshal(&snap)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if _, err := DecodeModule(bad); err == nil {
		t.Fatalf("expected schema mismatch error")
	}
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	if _, err := DecodeModule([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatalf("expected decode error")
	}
}
