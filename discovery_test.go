package gatt

import (
	"bytes"
	"testing"
)

// testHandler is a fake connected endpoint backed by channels, in the
// style of the channel-driven fakes this codebase's test suites use in
// place of a mocking library: the test goroutine feeds bytes on readc as
// if they arrived from the peer, and drains writec to see what the
// StateMachine sent.
type testHandler struct {
	readc  chan []byte
	writec chan []byte
}

func newTestHandler() *testHandler {
	return &testHandler{readc: make(chan []byte, 8), writec: make(chan []byte, 8)}
}

func (t *testHandler) Read(b []byte) (int, error) {
	r := <-t.readc
	return copy(b, r), nil
}

func (t *testHandler) Write(b []byte) (int, error) {
	cp := append([]byte(nil), b...)
	t.writec <- cp
	return len(b), nil
}

func (t *testHandler) Close() error { return nil }

func newTestMachine(t *testing.T) (*StateMachine, *testHandler) {
	t.Helper()
	h := newTestHandler()
	sm := NewStateMachine(NewStreamTransport(h))
	return sm, h
}

// Scenario 1: single primary service, then terminator via end_handle ==
// 0xFFFF with no further ATTR_NOT_FOUND needed.
func TestScenarioSinglePrimaryService(t *testing.T) {
	sm, h := newTestMachine(t)
	var got []*PrimaryService
	sm.onServicesRead = func(svcs []*PrimaryService) { got = svcs }

	if err := sm.ReadPrimaryServices(); err != nil {
		t.Fatalf("ReadPrimaryServices: %v", err)
	}
	<-h.writec // consume the initial request

	h.readc <- []byte{opReadByGroupResp, 6, 0x01, 0x00, 0xFF, 0xFF, 0x00, 0x18}
	if err := sm.Pump(); err != nil {
		t.Fatalf("Pump: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("services: got %d, want 1", len(got))
	}
	if got[0].StartHandle != 1 || got[0].EndHandle != 0xFFFF {
		t.Fatalf("handles: got (%#x, %#x)", got[0].StartHandle, got[0].EndHandle)
	}
	if !got[0].UUID.Equal(UUID16(0x1800)) {
		t.Fatalf("uuid: got %s", got[0].UUID)
	}
	if sm.Phase() != Idle {
		t.Fatalf("phase: got %s, want Idle", sm.Phase())
	}
}

// Scenario 2: two pages, one service on the first and the second request
// answered by ATTR_NOT_FOUND.
func TestScenarioTwoPageTermination(t *testing.T) {
	sm, h := newTestMachine(t)
	done := false
	sm.onServicesRead = func([]*PrimaryService) { done = true }

	if err := sm.ReadPrimaryServices(); err != nil {
		t.Fatalf("ReadPrimaryServices: %v", err)
	}
	<-h.writec

	h.readc <- []byte{opReadByGroupResp, 6, 0x01, 0x00, 0x0B, 0x00, 0x00, 0x18}
	if err := sm.Pump(); err != nil {
		t.Fatalf("Pump (page 1): %v", err)
	}
	next := <-h.writec
	wantNext := EncodeReadByGroupTypeReq(0x000C, invalidHandle, attrPrimaryServiceUUID)
	if !bytes.Equal(next, wantNext) {
		t.Fatalf("next request: got %x, want %x", next, wantNext)
	}

	h.readc <- []byte{opError, opReadByGroupReq, 0x0C, 0x00, ecodeAttrNotFound}
	if err := sm.Pump(); err != nil {
		t.Fatalf("Pump (terminator): %v", err)
	}
	if !done {
		t.Fatalf("onServicesRead was not fired")
	}
	if len(sm.Services()) != 1 {
		t.Fatalf("services: got %d, want 1", len(sm.Services()))
	}
}

// Scenario 3: an illegal characteristic-declaration element size is a
// DecodeError; mixed widths cannot occur within one frame since a single
// response advertises exactly one element_size.
func TestScenarioIllegalElementSize(t *testing.T) {
	sm, h := newTestMachine(t)
	if err := sm.FindAllCharacteristics(); err != nil {
		t.Fatalf("FindAllCharacteristics: %v", err)
	}
	<-h.writec

	// element_size = 6 leaves a 4-byte declaration value, neither 5 nor 19.
	h.readc <- []byte{opReadByTypeResp, 6, 0x03, 0x00, 0x02, 0x04, 0x00, 0x00}
	err := sm.Pump()
	if err == nil {
		t.Fatalf("expected DecodeError")
	}
	gerr, ok := err.(*Error)
	if !ok || gerr.Kind != DecodeError {
		t.Fatalf("got %v, want DecodeError", err)
	}
	if sm.Phase() != Idle {
		t.Fatalf("phase after error: got %s, want Idle", sm.Phase())
	}
}

// Scenario 4: a notification arriving mid-discovery is dispatched inline
// without disturbing the outstanding request, then the expected response
// is processed normally.
func TestScenarioNotificationDuringDiscovery(t *testing.T) {
	sm, h := newTestMachine(t)
	svc := &PrimaryService{StartHandle: 1, EndHandle: 0xFFFF}
	target := &Characteristic{FirstHandle: 2, LastHandle: 0xFFFF, ValueHandle: 0x0010}
	svc.Characteristics = append(svc.Characteristics, target)
	sm.services = append(sm.services, svc)

	var notified []byte
	target.OnValue(func(p []byte) { notified = append([]byte(nil), p...) })

	if err := sm.FindAllCharacteristics(); err != nil {
		t.Fatalf("FindAllCharacteristics: %v", err)
	}
	<-h.writec

	h.readc <- []byte{opHandleNotify, 0x10, 0x00, 0x2A, 0x01}
	if err := sm.Pump(); err != nil {
		t.Fatalf("Pump (notify): %v", err)
	}
	if !bytes.Equal(notified, []byte{0x2A, 0x01}) {
		t.Fatalf("notified payload: got %x", notified)
	}
	if sm.Phase() != FindAllCharacteristics {
		t.Fatalf("phase disturbed by notification: got %s", sm.Phase())
	}

	// Now the expected response arrives and is processed as if nothing
	// had happened.
	h.readc <- []byte{opError, opReadByTypeReq, 0x01, 0x00, ecodeAttrNotFound}
	if err := sm.Pump(); err != nil {
		t.Fatalf("Pump (terminator): %v", err)
	}
	if sm.Phase() != Idle {
		t.Fatalf("phase: got %s, want Idle", sm.Phase())
	}
}

// Scenario 5: an indication is confirmed with HANDLE_VALUE_CONFIRM after
// the callback runs, before any other outbound byte.
func TestScenarioIndicationConfirmation(t *testing.T) {
	sm, h := newTestMachine(t)
	svc := &PrimaryService{StartHandle: 1, EndHandle: 0xFFFF}
	target := &Characteristic{FirstHandle: 2, LastHandle: 0xFFFF, ValueHandle: 0x0010}
	svc.Characteristics = append(svc.Characteristics, target)
	sm.services = append(sm.services, svc)

	h.readc <- []byte{opHandleInd, 0x10, 0x00, 0x00}
	if err := sm.Pump(); err != nil {
		t.Fatalf("Pump (indicate): %v", err)
	}
	confirm := <-h.writec
	if !bytes.Equal(confirm, []byte{opHandleCnf}) {
		t.Fatalf("confirmation: got %x, want %x", confirm, []byte{opHandleCnf})
	}
}

// Scenario 6: enabling indicate writes the CCC bitmask and, on WRITE_RESP,
// caches the value and fires the callback.
func TestScenarioSubscribe(t *testing.T) {
	sm, h := newTestMachine(t)
	c := &Characteristic{Flags: CharIndicate, CCCHandle: 0x0011}

	var fired *Characteristic
	sm.onWriteResponse = func(ch *Characteristic) { fired = ch }

	if err := sm.EnableNotifyIndicate(c, false, true); err != nil {
		t.Fatalf("EnableNotifyIndicate: %v", err)
	}
	req := <-h.writec
	want := EncodeWriteReq(0x0011, []byte{0x02, 0x00})
	if !bytes.Equal(req, want) {
		t.Fatalf("write request: got %x, want %x", req, want)
	}

	h.readc <- []byte{opWriteResp}
	if err := sm.Pump(); err != nil {
		t.Fatalf("Pump (write resp): %v", err)
	}
	if c.CCCLastKnownValue != 0x0002 {
		t.Fatalf("CCCLastKnownValue: got %#x, want 0x0002", c.CCCLastKnownValue)
	}
	if fired != c {
		t.Fatalf("onWriteResponse did not fire with the target characteristic")
	}
}

func TestEnableNotifyIndicateRejectsUnadvertisedProperty(t *testing.T) {
	sm, h := newTestMachine(t)
	c := &Characteristic{Flags: 0, CCCHandle: 0x0011}

	err := sm.EnableNotifyIndicate(c, true, false)
	gerr, ok := err.(*Error)
	if !ok || gerr.Kind != ProtocolMisuse {
		t.Fatalf("got %v, want ProtocolMisuse", err)
	}
	select {
	case b := <-h.writec:
		t.Fatalf("expected no bytes sent, got %x", b)
	default:
	}
}

func TestPhaseEntryRejectedWhileNotIdle(t *testing.T) {
	sm, h := newTestMachine(t)
	if err := sm.ReadPrimaryServices(); err != nil {
		t.Fatalf("ReadPrimaryServices: %v", err)
	}
	<-h.writec

	err := sm.FindAllCharacteristics()
	gerr, ok := err.(*Error)
	if !ok || gerr.Kind != InvalidState {
		t.Fatalf("got %v, want InvalidState", err)
	}
}

func TestProtocolDesyncOnMismatchedOpcode(t *testing.T) {
	sm, h := newTestMachine(t)
	if err := sm.ReadPrimaryServices(); err != nil {
		t.Fatalf("ReadPrimaryServices: %v", err)
	}
	<-h.writec

	// FIND_INFO_RESP where READ_BY_GROUP_RESP was expected.
	h.readc <- []byte{opFindInfoResp, 1, 0x01, 0x00, 0x00, 0x28}
	err := sm.Pump()
	gerr, ok := err.(*Error)
	if !ok || gerr.Kind != ProtocolDesync {
		t.Fatalf("got %v, want ProtocolDesync", err)
	}
	if sm.Phase() != Idle {
		t.Fatalf("phase after desync: got %s, want Idle", sm.Phase())
	}
}

func TestCharacteristicChainingRewritesLastHandle(t *testing.T) {
	sm, h := newTestMachine(t)
	sm.services = append(sm.services, &PrimaryService{StartHandle: 1, EndHandle: 0x000A})

	if err := sm.FindAllCharacteristics(); err != nil {
		t.Fatalf("FindAllCharacteristics: %v", err)
	}
	<-h.writec

	// Two characteristic declarations at handles 2 and 5, both 16-bit
	// UUIDs (element_size=7): handle(2), flags, value_handle(2), uuid16(2).
	pdu := []byte{opReadByTypeResp, 7,
		0x02, 0x00, 0x02, 0x03, 0x00, 0x00, 0x2A,
		0x05, 0x00, 0x02, 0x06, 0x00, 0x01, 0x2A,
	}
	h.readc <- pdu
	if err := sm.Pump(); err != nil {
		t.Fatalf("Pump: %v", err)
	}

	svc := sm.services[0]
	if len(svc.Characteristics) != 2 {
		t.Fatalf("characteristics: got %d, want 2", len(svc.Characteristics))
	}
	first, second := svc.Characteristics[0], svc.Characteristics[1]
	if first.LastHandle != second.FirstHandle-1 {
		t.Fatalf("chaining: first.LastHandle=%#x, second.FirstHandle-1=%#x", first.LastHandle, second.FirstHandle-1)
	}
	if second.LastHandle != svc.EndHandle {
		t.Fatalf("last characteristic LastHandle: got %#x, want service EndHandle %#x", second.LastHandle, svc.EndHandle)
	}
}
