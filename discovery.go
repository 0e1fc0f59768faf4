package gatt

import "github.com/sirupsen/logrus"

// Phase is the current step of the GATT Discovery State Machine.
type Phase int

const (
	// Idle accepts a phase-entry call. No request is outstanding.
	Idle Phase = iota
	// ReadingPrimaryService pages through READ_BY_GROUP_RESP.
	ReadingPrimaryService
	// FindAllCharacteristics pages through READ_BY_TYPE_RESP interpreted
	// as characteristic declarations.
	FindAllCharacteristics
	// GetClientCharacteristicConfiguration pages through READ_BY_TYPE_RESP
	// interpreted as CCC descriptor reads.
	GetClientCharacteristicConfiguration
	// AwaitingWriteResponse awaits a single WRITE_RESP after enabling
	// notify/indicate or writing a characteristic value.
	AwaitingWriteResponse
	// ReadingCharacteristicValue awaits a single READ_RESP after an
	// on-demand characteristic value read.
	ReadingCharacteristicValue
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case ReadingPrimaryService:
		return "ReadingPrimaryService"
	case FindAllCharacteristics:
		return "FindAllCharacteristics"
	case GetClientCharacteristicConfiguration:
		return "GetClientCharacteristicConfiguration"
	case AwaitingWriteResponse:
		return "AwaitingWriteResponse"
	case ReadingCharacteristicValue:
		return "ReadingCharacteristicValue"
	default:
		return "Unknown"
	}
}

// noRequest is the sentinel value of lastRequest while Idle.
const noRequest = -1

// StateMachine is the GATT Discovery State Machine plus the Subscription
// Controller layered on it. It is single-threaded and cooperative: the
// only blocking call anywhere in it is the Recv inside Pump. Everything
// else runs to completion synchronously.
type StateMachine struct {
	transport Transport
	log       logrus.FieldLogger
	scratch   []byte

	phase            Phase
	lastRequest      int
	nextHandleToRead uint16
	pendingChar      *Characteristic

	services []*PrimaryService

	onServicesRead         func([]*PrimaryService)
	onCharacteristicsFound func([]*PrimaryService)
	onCCCRead              func([]*PrimaryService)
	onWriteResponse        func(*Characteristic)
	onReadResponse         func(*Characteristic, []byte)
	onNotifyOrIndicate     func(*Characteristic, []byte)
}

// Option configures a StateMachine at construction time.
type Option func(*StateMachine)

// WithLogger overrides the default logger, logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(sm *StateMachine) { sm.log = l }
}

// WithScratchSize overrides the receive buffer size; it must be at least
// defaultMTU.
func WithScratchSize(n int) Option {
	return func(sm *StateMachine) {
		if n >= defaultMTU {
			sm.scratch = make([]byte, n)
		}
	}
}

// OnServicesRead registers the callback fired when read_primary_services
// completes.
func OnServicesRead(f func([]*PrimaryService)) Option {
	return func(sm *StateMachine) { sm.onServicesRead = f }
}

// OnCharacteristicsFound registers the callback fired when
// find_all_characteristics completes.
func OnCharacteristicsFound(f func([]*PrimaryService)) Option {
	return func(sm *StateMachine) { sm.onCharacteristicsFound = f }
}

// OnCCCRead registers the callback fired when
// get_client_characteristic_configuration completes.
func OnCCCRead(f func([]*PrimaryService)) Option {
	return func(sm *StateMachine) { sm.onCCCRead = f }
}

// OnWriteResponse registers the callback fired when a WRITE_RESP arrives
// during AwaitingWriteResponse.
func OnWriteResponse(f func(*Characteristic)) Option {
	return func(sm *StateMachine) { sm.onWriteResponse = f }
}

// OnReadResponse registers the callback fired when a READ_RESP arrives
// during ReadingCharacteristicValue.
func OnReadResponse(f func(*Characteristic, []byte)) Option {
	return func(sm *StateMachine) { sm.onReadResponse = f }
}

// OnNotifyOrIndicate registers the fallback callback for a
// notification/indication whose characteristic has no per-entry callback
// bound via Characteristic.OnValue.
func OnNotifyOrIndicate(f func(*Characteristic, []byte)) Option {
	return func(sm *StateMachine) { sm.onNotifyOrIndicate = f }
}

// NewStateMachine constructs a StateMachine over transport, Idle, with an
// empty attribute database.
func NewStateMachine(transport Transport, opts ...Option) *StateMachine {
	sm := &StateMachine{
		transport:   transport,
		log:         logrus.StandardLogger(),
		scratch:     make([]byte, scratchBufferSize),
		phase:       Idle,
		lastRequest: noRequest,
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// Services returns the primary services discovered so far. The slice and
// its contents are owned by the StateMachine; do not mutate it.
func (sm *StateMachine) Services() []*PrimaryService { return sm.services }

// Phase returns the current phase.
func (sm *StateMachine) Phase() Phase { return sm.phase }

func (sm *StateMachine) reset() {
	sm.phase = Idle
	sm.lastRequest = noRequest
	sm.nextHandleToRead = 0
	sm.pendingChar = nil
}

func (sm *StateMachine) fail(kind ErrorKind, err error) *Error {
	sm.reset()
	e := newError(kind, err)
	sm.log.WithFields(logrus.Fields{"kind": kind.String()}).Warn("gatt: discovery failed")
	return e
}

func (sm *StateMachine) failPeer(attCode uint8) *Error {
	sm.reset()
	e := newPeerError(attCode)
	sm.log.WithFields(logrus.Fields{"att_code": attCode}).Warn("gatt: peer error")
	return e
}

func (sm *StateMachine) send(pdu []byte) error {
	sm.log.WithFields(logrus.Fields{"opcode": Opcode(pdu), "len": len(pdu)}).Debug("gatt: send pdu")
	if err := sm.transport.Send(pdu); err != nil {
		return &Error{Kind: TransportFailed, Err: err}
	}
	return nil
}

// --- Phase-entry operations ---

// ReadPrimaryServices begins the primary-service discovery phase.
func (sm *StateMachine) ReadPrimaryServices() error {
	if sm.phase != Idle {
		return newError(InvalidState, nil)
	}
	pdu := EncodeReadByGroupTypeReq(1, invalidHandle, attrPrimaryServiceUUID)
	if err := sm.send(pdu); err != nil {
		return err
	}
	sm.phase = ReadingPrimaryService
	sm.lastRequest = opReadByGroupReq
	sm.nextHandleToRead = 1
	sm.log.Debug("gatt: read_primary_services")
	return nil
}

// FindAllCharacteristics begins the characteristic-discovery phase.
func (sm *StateMachine) FindAllCharacteristics() error {
	if sm.phase != Idle {
		return newError(InvalidState, nil)
	}
	pdu := EncodeReadByTypeReq(1, invalidHandle, attrCharacteristicUUID)
	if err := sm.send(pdu); err != nil {
		return err
	}
	sm.phase = FindAllCharacteristics
	sm.lastRequest = opReadByTypeReq
	sm.nextHandleToRead = 1
	sm.log.Debug("gatt: find_all_characteristics")
	return nil
}

// GetClientCharacteristicConfiguration begins the CCC-discovery phase.
func (sm *StateMachine) GetClientCharacteristicConfiguration() error {
	if sm.phase != Idle {
		return newError(InvalidState, nil)
	}
	pdu := EncodeReadByTypeReq(1, invalidHandle, attrClientCharacteristicConfigUUID)
	if err := sm.send(pdu); err != nil {
		return err
	}
	sm.phase = GetClientCharacteristicConfiguration
	sm.lastRequest = opReadByTypeReq
	sm.nextHandleToRead = 1
	sm.log.Debug("gatt: get_client_characteristic_configuration")
	return nil
}

// EnableNotifyIndicate writes the CCC bitmask (indicate<<1 | notify) to c's
// CCC descriptor. c must advertise the requested properties and must have
// a known CCC handle (from a prior GetClientCharacteristicConfiguration
// run), or this returns ProtocolMisuse without sending any bytes.
func (sm *StateMachine) EnableNotifyIndicate(c *Characteristic, notify, indicate bool) error {
	if sm.phase != Idle {
		return newError(InvalidState, nil)
	}
	if c.CCCHandle == 0 {
		return newError(ProtocolMisuse, nil)
	}
	if notify && c.Flags&CharNotify == 0 {
		return newError(ProtocolMisuse, nil)
	}
	if indicate && c.Flags&CharIndicate == 0 {
		return newError(ProtocolMisuse, nil)
	}

	bitmask := uint16(0)
	if notify {
		bitmask |= cccNotifyFlag
	}
	if indicate {
		bitmask |= cccIndicateFlag
	}
	value := []byte{byte(bitmask), byte(bitmask >> 8)}
	pdu := EncodeWriteReq(c.CCCHandle, value)
	if err := sm.send(pdu); err != nil {
		return err
	}
	// Optimistic caching per the Subscription Controller: if the write is
	// later rejected, this value is stale and the caller must retry.
	c.CCCLastKnownValue = bitmask
	sm.phase = AwaitingWriteResponse
	sm.lastRequest = opWriteReq
	sm.pendingChar = c
	sm.log.WithFields(logrus.Fields{"handle": c.CCCHandle, "bitmask": bitmask}).Debug("gatt: enable_notify_indicate")
	return nil
}

// WriteCharacteristicValue writes value to c's value handle with response.
func (sm *StateMachine) WriteCharacteristicValue(c *Characteristic, value []byte) error {
	if sm.phase != Idle {
		return newError(InvalidState, nil)
	}
	if c.Flags&CharWrite == 0 {
		return newError(ProtocolMisuse, nil)
	}
	pdu := EncodeWriteReq(c.ValueHandle, value)
	if err := sm.send(pdu); err != nil {
		return err
	}
	sm.phase = AwaitingWriteResponse
	sm.lastRequest = opWriteReq
	sm.pendingChar = c
	return nil
}

// ReadCharacteristicValue issues an on-demand read of c's value handle.
func (sm *StateMachine) ReadCharacteristicValue(c *Characteristic) error {
	if sm.phase != Idle {
		return newError(InvalidState, nil)
	}
	if c.Flags&CharRead == 0 {
		return newError(ProtocolMisuse, nil)
	}
	pdu := EncodeReadReq(c.ValueHandle)
	if err := sm.send(pdu); err != nil {
		return err
	}
	sm.phase = ReadingCharacteristicValue
	sm.lastRequest = opReadReq
	sm.pendingChar = c
	return nil
}

// Pump receives and dispatches exactly one PDU. It is the only blocking
// call in the StateMachine. Callers drive it once per readable event on
// the transport.
func (sm *StateMachine) Pump() error {
	raw, err := sm.transport.Recv(sm.scratch)
	if err != nil {
		return &Error{Kind: TransportFailed, Err: err}
	}
	sm.log.WithFields(logrus.Fields{"bytes": raw}).Trace("gatt: recv pdu")
	return sm.dispatch(raw)
}

// dispatch is pump()'s pure reducer core: (state, inbound pdu) -> (new
// state, outbound pdu?, callbacks). The I/O (Recv above, Send inside) is
// the only impure part; everything else here is synchronous bookkeeping.
func (sm *StateMachine) dispatch(pdu []byte) error {
	opcode := Opcode(pdu)

	// Unsolicited traffic is demultiplexed ahead of opcode validation and
	// never changes phase, regardless of what phase we're in.
	if opcode == opHandleNotify || opcode == opHandleInd {
		return sm.dispatchNotifyOrIndicate(pdu, opcode == opHandleInd)
	}

	if opcode == opError {
		e, err := decodeErrorResponse(pdu)
		if err != nil {
			return sm.fail(DecodeError, err)
		}
		if e.RequestOpcode() != byte(sm.lastRequest) {
			return sm.fail(ProtocolDesync, nil)
		}
		return sm.dispatchError(e)
	}

	if int(opcode) != sm.lastRequest+1 {
		return sm.fail(ProtocolDesync, nil)
	}

	switch sm.phase {
	case ReadingPrimaryService:
		return sm.dispatchReadPrimaryService(pdu)
	case FindAllCharacteristics:
		return sm.dispatchFindAllCharacteristics(pdu)
	case GetClientCharacteristicConfiguration:
		return sm.dispatchGetCCC(pdu)
	case AwaitingWriteResponse:
		return sm.dispatchWriteResponse(pdu)
	case ReadingCharacteristicValue:
		return sm.dispatchReadResponse(pdu)
	default:
		return sm.fail(ProtocolDesync, nil)
	}
}

func (sm *StateMachine) dispatchNotifyOrIndicate(pdu []byte, indication bool) error {
	n, err := decodeHandleValue(pdu)
	if err != nil {
		return sm.fail(DecodeError, err)
	}
	c := findCharacteristicByValueHandle(sm.services, n.Handle())
	payload := n.Value()
	switch {
	case c != nil && c.onValue != nil:
		c.onValue(payload)
	case sm.onNotifyOrIndicate != nil:
		sm.onNotifyOrIndicate(c, payload)
	}
	if indication {
		if err := sm.send(EncodeHandleValueConfirm()); err != nil {
			return err
		}
	}
	return nil
}

func (sm *StateMachine) dispatchError(e ErrorResponse) error {
	isDiscoveryPhase := sm.phase == ReadingPrimaryService ||
		sm.phase == FindAllCharacteristics ||
		sm.phase == GetClientCharacteristicConfiguration
	if isDiscoveryPhase && e.ErrorCode() == ecodeAttrNotFound {
		return sm.completePhaseOnTerminator()
	}
	return sm.failPeer(e.ErrorCode())
}

// completePhaseOnTerminator fires the completion callback for whichever
// discovery phase is active and resets to Idle. It is used both for the
// ATTR_NOT_FOUND terminator and for the "last end_handle == 0xFFFF"
// boundary case, which are equivalent phase-complete signals.
func (sm *StateMachine) completePhaseOnTerminator() error {
	phase := sm.phase
	svcs := sm.services
	sm.reset()
	switch phase {
	case ReadingPrimaryService:
		sm.log.WithFields(logrus.Fields{"services": len(svcs)}).Debug("gatt: read_primary_services complete")
		if sm.onServicesRead != nil {
			sm.onServicesRead(svcs)
		}
	case FindAllCharacteristics:
		sm.log.WithFields(logrus.Fields{"characteristics": countCharacteristics(svcs)}).Debug("gatt: find_all_characteristics complete")
		if sm.onCharacteristicsFound != nil {
			sm.onCharacteristicsFound(svcs)
		}
	case GetClientCharacteristicConfiguration:
		sm.log.Debug("gatt: get_client_characteristic_configuration complete")
		if sm.onCCCRead != nil {
			sm.onCCCRead(svcs)
		}
	}
	return nil
}

func countCharacteristics(svcs []*PrimaryService) int {
	n := 0
	for _, s := range svcs {
		n += len(s.Characteristics)
	}
	return n
}

func (sm *StateMachine) dispatchReadPrimaryService(pdu []byte) error {
	r, err := decodeReadByGroupTypeResponse(pdu)
	if err != nil {
		return sm.fail(DecodeError, err)
	}
	n := r.NumElements()
	var lastEnd uint16
	for i := 0; i < n; i++ {
		u, err := uuidFromBytesLE(r.Value(i))
		if err != nil {
			return sm.fail(DecodeError, err)
		}
		s := &PrimaryService{
			StartHandle: r.StartHandle(i),
			EndHandle:   r.EndHandle(i),
			UUID:        u,
		}
		sm.services = append(sm.services, s)
		lastEnd = s.EndHandle
	}
	if lastEnd == invalidHandle {
		return sm.completePhaseOnTerminator()
	}
	sm.nextHandleToRead = lastEnd + 1
	pdu2 := EncodeReadByGroupTypeReq(sm.nextHandleToRead, invalidHandle, attrPrimaryServiceUUID)
	return sm.send(pdu2)
}

func (sm *StateMachine) dispatchFindAllCharacteristics(pdu []byte) error {
	r, err := decodeReadByTypeResponse(pdu)
	if err != nil {
		return sm.fail(DecodeError, err)
	}
	// Each element is the 2-byte handle plus a 5-byte (16-bit UUID) or
	// 19-byte (128-bit UUID) declaration value.
	if es := r.ElementSize(); es != 2+5 && es != 2+19 {
		return sm.fail(DecodeError, nil)
	}
	n := r.NumElements()
	var lastHandle uint32
	for i := 0; i < n; i++ {
		h := r.Handle(i)
		decl, err := decodeCharacteristicDeclaration(r.Value(i))
		if err != nil {
			return sm.fail(DecodeError, err)
		}
		si := findServiceIndex(sm.services, h)
		if si == notFound {
			return sm.fail(ProtocolDesync, nil)
		}
		u, err := decl.UUID()
		if err != nil {
			return sm.fail(DecodeError, err)
		}
		svc := sm.services[si]
		c := &Characteristic{
			UUID:        u,
			Flags:       decl.Flags(),
			ValueHandle: decl.ValueHandle(),
			FirstHandle: h,
			LastHandle:  svc.EndHandle,
		}
		svc.appendCharacteristic(c)
		lastHandle = uint32(h)
	}
	next := lastHandle + 1
	if next > uint32(invalidHandle) {
		return sm.completePhaseOnTerminator()
	}
	sm.nextHandleToRead = uint16(next)
	pdu2 := EncodeReadByTypeReq(sm.nextHandleToRead, invalidHandle, attrCharacteristicUUID)
	return sm.send(pdu2)
}

func (sm *StateMachine) dispatchGetCCC(pdu []byte) error {
	r, err := decodeReadByTypeResponse(pdu)
	if err != nil {
		return sm.fail(DecodeError, err)
	}
	if r.ElementSize() != 4 {
		return sm.fail(DecodeError, nil)
	}
	n := r.NumElements()
	var lastHandle uint32
	for i := 0; i < n; i++ {
		h := r.Handle(i)
		ccc, err := decodeCCCValue(r.Value(i))
		if err != nil {
			return sm.fail(DecodeError, err)
		}
		si := findServiceIndex(sm.services, h)
		if si == notFound {
			return sm.fail(ProtocolDesync, nil)
		}
		ci := findCharacteristicIndex(sm.services[si].Characteristics, h)
		if ci == notFound {
			return sm.fail(ProtocolDesync, nil)
		}
		c := sm.services[si].Characteristics[ci]
		c.CCCHandle = h
		c.CCCLastKnownValue = ccc.Value()
		lastHandle = uint32(h)
	}
	next := lastHandle + 1
	if next > uint32(invalidHandle) {
		return sm.completePhaseOnTerminator()
	}
	sm.nextHandleToRead = uint16(next)
	pdu2 := EncodeReadByTypeReq(sm.nextHandleToRead, invalidHandle, attrClientCharacteristicConfigUUID)
	return sm.send(pdu2)
}

func (sm *StateMachine) dispatchWriteResponse(pdu []byte) error {
	if Opcode(pdu) != opWriteResp {
		return sm.fail(ProtocolDesync, nil)
	}
	c := sm.pendingChar
	sm.reset()
	if sm.onWriteResponse != nil {
		sm.onWriteResponse(c)
	}
	return nil
}

func (sm *StateMachine) dispatchReadResponse(pdu []byte) error {
	rr, err := decodeReadResponse(pdu)
	if err != nil {
		return sm.fail(DecodeError, err)
	}
	c := sm.pendingChar
	sm.reset()
	if sm.onReadResponse != nil {
		sm.onReadResponse(c, []byte(rr))
	}
	return nil
}
