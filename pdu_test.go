package gatt

import (
	"bytes"
	"testing"
)

func TestEncodeReadByTypeReqRoundTrip(t *testing.T) {
	want := UUID16(0x2803)
	pdu := EncodeReadByTypeReq(0x0001, 0xFFFF, want)

	if got := Opcode(pdu); got != opReadByTypeReq {
		t.Fatalf("opcode: got %#x, want %#x", got, opReadByTypeReq)
	}
	start := uint16(pdu[1]) | uint16(pdu[2])<<8
	end := uint16(pdu[3]) | uint16(pdu[4])<<8
	if start != 0x0001 || end != 0xFFFF {
		t.Fatalf("range: got (%#x, %#x)", start, end)
	}
	got, err := uuidFromBytesLE(pdu[5:])
	if err != nil {
		t.Fatalf("uuidFromBytesLE: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("uuid: got %s, want %s", got, want)
	}
}

func TestDecodeReadByGroupTypeResponse(t *testing.T) {
	// element_size=6 -> 2-byte uuid, one element {0x0001,0xFFFF,0x1800}
	pdu := []byte{opReadByGroupResp, 6, 0x01, 0x00, 0xFF, 0xFF, 0x00, 0x18}
	r, err := decodeReadByGroupTypeResponse(pdu)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n := r.NumElements(); n != 1 {
		t.Fatalf("NumElements: got %d, want 1", n)
	}
	if r.StartHandle(0) != 0x0001 || r.EndHandle(0) != 0xFFFF {
		t.Fatalf("handles: got (%#x, %#x)", r.StartHandle(0), r.EndHandle(0))
	}
	u, err := uuidFromBytesLE(r.Value(0))
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}
	if !u.Equal(UUID16(0x1800)) {
		t.Fatalf("uuid: got %s", u)
	}
}

func TestDecodeReadByGroupTypeResponseBadLength(t *testing.T) {
	pdu := []byte{opReadByGroupResp, 6, 0x01, 0x00, 0xFF} // truncated
	if _, err := decodeReadByGroupTypeResponse(pdu); err == nil {
		t.Fatalf("expected error for truncated response")
	}
}

func TestGATTCharacteristicDeclarationShortAndLong(t *testing.T) {
	short, err := decodeCharacteristicDeclaration([]byte{0x02, 0x04, 0x00, 0x00, 0x2A})
	if err != nil {
		t.Fatalf("short decl: %v", err)
	}
	if short.Flags() != 0x02 {
		t.Fatalf("flags: got %#x", short.Flags())
	}
	if short.ValueHandle() != 0x0004 {
		t.Fatalf("value handle: got %#x", short.ValueHandle())
	}
	u, err := short.UUID()
	if err != nil || !u.Equal(UUID16(0x2A00)) {
		t.Fatalf("uuid: got %s, err %v", u, err)
	}

	_, err = decodeCharacteristicDeclaration(make([]byte, 10))
	if err == nil {
		t.Fatalf("expected error for illegal element width")
	}
}

func TestDecodeErrorResponse(t *testing.T) {
	pdu := []byte{opError, opReadByGroupReq, 0x01, 0x00, ecodeAttrNotFound}
	e, err := decodeErrorResponse(pdu)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.RequestOpcode() != opReadByGroupReq {
		t.Fatalf("request opcode: got %#x", e.RequestOpcode())
	}
	if e.Handle() != 0x0001 {
		t.Fatalf("handle: got %#x", e.Handle())
	}
	if e.ErrorCode() != ecodeAttrNotFound {
		t.Fatalf("error code: got %#x", e.ErrorCode())
	}
}

func TestHandleValueNotification(t *testing.T) {
	pdu := []byte{opHandleNotify, 0x10, 0x00, 0x2A, 0x01}
	n, err := decodeHandleValue(pdu)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.Handle() != 0x0010 {
		t.Fatalf("handle: got %#x", n.Handle())
	}
	if !bytes.Equal(n.Value(), []byte{0x2A, 0x01}) {
		t.Fatalf("value: got %x", n.Value())
	}
}

func TestEncodeHandleValueConfirm(t *testing.T) {
	if got := EncodeHandleValueConfirm(); !bytes.Equal(got, []byte{opHandleCnf}) {
		t.Fatalf("got %x", got)
	}
}
