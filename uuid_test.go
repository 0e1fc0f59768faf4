package gatt

import (
	"bytes"
	"testing"
)

func TestUUID16(t *testing.T) {
	want := MustParseUUID("00001800-0000-1000-8000-00805f9b34fb")
	if got := UUID16(0x1800); !got.Equal(want) {
		t.Errorf("UUID16(0x1800): got %s, want %s", got, want)
	}
	if v, ok := UUID16(0x1800).Short(); !ok || v != 0x1800 {
		t.Errorf("Short(): got (%x, %v), want (0x1800, true)", v, ok)
	}
}

func TestUUIDAppendLE(t *testing.T) {
	cases := []struct {
		u    UUID
		want []byte
	}{
		{UUID16(0x1800), []byte{0x00, 0x18}},
		{UUID16(0x2A00), []byte{0x00, 0x2A}},
	}
	for _, tt := range cases {
		got := tt.u.AppendLE(nil)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("AppendLE(%s): got %x, want %x", tt.u, got, tt.want)
		}
		back, err := uuidFromBytesLE(got)
		if err != nil {
			t.Fatalf("uuidFromBytesLE(%x): %v", got, err)
		}
		if !back.Equal(tt.u) {
			t.Errorf("round trip %s: got %s", tt.u, back)
		}
	}
}

func TestUUID128RoundTrip(t *testing.T) {
	long := MustParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	if long.Len() != 16 {
		t.Fatalf("Len(): got %d, want 16", long.Len())
	}
	wire := long.AppendLE(nil)
	if len(wire) != 16 {
		t.Fatalf("AppendLE length: got %d, want 16", len(wire))
	}
	back, err := uuidFromBytesLE(wire)
	if err != nil {
		t.Fatalf("uuidFromBytesLE: %v", err)
	}
	if !back.Equal(long) {
		t.Errorf("round trip: got %s, want %s", back, long)
	}
}

func TestUUIDNotShortForm(t *testing.T) {
	long := MustParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	if long.IsShortForm() {
		t.Errorf("IsShortForm(): got true for a genuinely 128-bit uuid")
	}
}
