package gatt

import "testing"

func TestPeripheralDiscoverServicesSynchronous(t *testing.T) {
	h := newTestHandler()
	p := NewPeripheral(NewStreamTransport(h), BDAddr{})
	defer p.Close()

	go func() {
		<-h.writec // initial READ_BY_GROUP_REQ
		h.readc <- []byte{opReadByGroupResp, 6, 0x01, 0x00, 0xFF, 0xFF, 0x00, 0x18}
	}()

	svcs, err := p.DiscoverServices()
	if err != nil {
		t.Fatalf("DiscoverServices: %v", err)
	}
	if len(svcs) != 1 || !svcs[0].UUID.Equal(UUID16(0x1800)) {
		t.Fatalf("services: got %+v", svcs)
	}
}

func TestPeripheralReadCharacteristic(t *testing.T) {
	h := newTestHandler()
	p := NewPeripheral(NewStreamTransport(h), BDAddr{})
	defer p.Close()

	c := &Characteristic{Flags: CharRead, ValueHandle: 0x0009}

	go func() {
		<-h.writec // READ_REQ
		h.readc <- append([]byte{opReadResp}, []byte("count: 1")...)
	}()

	v, err := p.ReadCharacteristic(c)
	if err != nil {
		t.Fatalf("ReadCharacteristic: %v", err)
	}
	if string(v) != "count: 1" {
		t.Fatalf("value: got %q", v)
	}
}
