// Package hci opens a raw Linux Bluetooth HCI socket in HCI_CHANNEL_USER
// mode, brings the controller up, and dials one LE peripheral by address.
// It stops at the ACL transport: L2CAP fragmentation and reassembly live
// in the sibling internal/l2cap package, which this package's WriteACLFragment and
// RegisterACLHandler methods exist to serve.
package hci

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// device is the minimal surface a transport needs; the production
// implementation is *socket.
type device interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
}

// HCI owns one HCI_CHANNEL_USER device and demultiplexes everything the
// controller sends: command completions, connection events, and inbound
// ACL data.
type HCI struct {
	dev device
	log logrus.FieldLogger

	mu      sync.Mutex
	pending map[opcode]chan commandCompleteEP

	connMu         sync.Mutex
	pendingConnect chan uint16
	handlers       map[uint16]func(payload []byte, continued bool)

	credits chan struct{}

	closed chan struct{}
}

// Option configures an HCI before Open returns it.
type Option func(*HCI)

// WithLogger attaches a structured logger for HCI-level tracing.
func WithLogger(l logrus.FieldLogger) Option { return func(h *HCI) { h.log = l } }

// Open binds devID (as reported by `hciconfig`, typically 0) in
// HCI_CHANNEL_USER mode and runs the controller reset sequence.
func Open(devID int, opts ...Option) (*HCI, error) {
	sock, err := openSocket(devID)
	if err != nil {
		return nil, fmt.Errorf("hci: open device %d: %w", devID, err)
	}
	return newHCI(sock, opts...)
}

func newHCI(dev device, opts ...Option) (*HCI, error) {
	h := &HCI{
		dev:      dev,
		log:      logrus.StandardLogger(),
		pending:  map[opcode]chan commandCompleteEP{},
		handlers: map[uint16]func(payload []byte, continued bool){},
		credits:  make(chan struct{}, 14),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.mainLoop()
	if err := h.initController(); err != nil {
		h.dev.Close()
		return nil, err
	}
	return h, nil
}

// initController runs the same bring-up sequence a BlueZ-managed adapter
// runs on power-on, since HCI_CHANNEL_USER bypasses BlueZ entirely and
// nothing else will run it for us.
func (h *HCI) initController() error {
	seq := []cmdParam{
		reset{},
		setEventMask{eventMask: 0x3dbff807fffbffff},
		leSetEventMask{leEventMask: 0x000000000000001f},
		writeSimplePairingMode{mode: 1},
		writeLEHostSupported{leSupportedHost: 1, simultaneousLEHost: 0},
		writeInquiryMode{mode: 2},
		writePageScanType{typ: 1},
		writeInquiryScanType{typ: 1},
		writeClassOfDevice{classOfDevice: [3]byte{0x40, 0x02, 0x04}},
		writePageTimeout{timeout: 0x2000},
		writeDefaultLinkPolicy{settings: 0x5},
		hostBufferSize{aclDataPacketLength: 0x1000, syncDataPacketLength: 0xff, totalNumACLDataPackets: 0x0014, totalNumSyncDataPackets: 0x000a},
	}
	for _, cp := range seq {
		if _, err := h.sendCommand(cp); err != nil {
			return fmt.Errorf("hci: init command %#04x: %w", cp.opcode(), err)
		}
	}
	return nil
}

func (h *HCI) sendCommand(cp cmdParam) (commandCompleteEP, error) {
	ch := make(chan commandCompleteEP, 1)
	h.mu.Lock()
	h.pending[cp.opcode()] = ch
	h.mu.Unlock()

	if _, err := h.dev.Write(marshalCommand(cp)); err != nil {
		return commandCompleteEP{}, err
	}
	select {
	case ep := <-ch:
		return ep, nil
	case <-h.closed:
		return commandCompleteEP{}, fmt.Errorf("hci: device closed while awaiting %#04x", cp.opcode())
	}
}

// Connect issues LE Create Connection for addr and blocks until the
// controller reports LE Connection Complete for it, returning the
// resulting connection handle.
func (h *HCI) Connect(addr [6]byte, addrType uint8) (uint16, error) {
	cp := leCreateConn{
		scanInterval:       0x0004,
		scanWindow:         0x0004,
		initiatorFilter:    0x00,
		peerAddressType:    addrType,
		peerAddress:        addr,
		ownAddressType:     0x00,
		connIntervalMin:    0x0006,
		connIntervalMax:    0x0006,
		connLatency:        0x0000,
		supervisionTimeout: 0x000a,
		minimumCELength:    0x0000,
		maximumCELength:    0x0000,
	}
	waiter := make(chan uint16, 1)
	h.connMu.Lock()
	h.pendingConnect = waiter
	h.connMu.Unlock()

	if _, err := h.dev.Write(marshalCommand(cp)); err != nil {
		return 0, err
	}
	select {
	case handle := <-waiter:
		return handle, nil
	case <-h.closed:
		return 0, fmt.Errorf("hci: device closed while connecting")
	}
}

// CancelConnect aborts an in-flight LE Create Connection.
func (h *HCI) CancelConnect() error {
	_, err := h.sendCommand(leCreateConnCancel{})
	return err
}

// Disconnect tears down an established ACL connection.
func (h *HCI) Disconnect(handle uint16) error {
	_, err := h.sendCommand(disconnect{connectionHandle: handle, reason: 0x13})
	return err
}

// RegisterACLHandler installs fn to receive every ACL fragment addressed
// to handle. continued reports the L2CAP continuation flag, letting the
// caller (internal/l2cap) drive its own reassembly.
func (h *HCI) RegisterACLHandler(handle uint16, fn func(payload []byte, continued bool)) {
	h.connMu.Lock()
	h.handlers[handle] = fn
	h.connMu.Unlock()
}

func (h *HCI) UnregisterACLHandler(handle uint16) {
	h.connMu.Lock()
	delete(h.handlers, handle)
	h.connMu.Unlock()
}

// FragmentSize is the maximum ACL payload this device will accept per
// fragment, conservative enough to fit the default LE data length.
const FragmentSize = 27

// WriteACLFragment sends one ACL data fragment for handle, blocking on a
// completed-packet credit if the controller's buffer is full.
func (h *HCI) WriteACLFragment(handle uint16, payload []byte, continued bool) error {
	select {
	case h.credits <- struct{}{}:
	case <-h.closed:
		return fmt.Errorf("hci: device closed")
	}
	flags := uint16(0)
	if continued {
		flags = 0x1
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(typACLDataPkt)
	binary.Write(buf, binary.LittleEndian, handle&0x0fff|flags<<12)
	binary.Write(buf, binary.LittleEndian, uint16(len(payload)))
	buf.Write(payload)
	_, err := h.dev.Write(buf.Bytes())
	return err
}

func (h *HCI) Close() error {
	select {
	case <-h.closed:
	default:
		close(h.closed)
	}
	return h.dev.Close()
}

func (h *HCI) mainLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := h.dev.Read(buf)
		if err != nil {
			h.log.WithError(err).Debug("hci: device read failed, exiting main loop")
			return
		}
		h.handlePacket(append([]byte(nil), buf[:n]...))
	}
}

func (h *HCI) handlePacket(b []byte) {
	if len(b) == 0 {
		return
	}
	switch b[0] {
	case typEventPkt:
		h.handleEvent(b[1:])
	case typACLDataPkt:
		h.handleACL(b[1:])
	default:
		h.log.WithField("type", b[0]).Trace("hci: unmanaged packet type")
	}
}

func (h *HCI) handleEvent(b []byte) {
	if len(b) < 2 {
		return
	}
	code, plen := eventCode(b[0]), int(b[1])
	if len(b) < 2+plen {
		return
	}
	params := b[2 : 2+plen]
	switch code {
	case evtCommandComplete:
		ep, err := decodeCommandComplete(params)
		if err != nil {
			h.log.WithError(err).Warn("hci: malformed command complete")
			return
		}
		h.mu.Lock()
		ch := h.pending[ep.commandOpcode]
		delete(h.pending, ep.commandOpcode)
		h.mu.Unlock()
		if ch != nil {
			ch <- ep
		}
	case evtCommandStatus:
		if _, err := decodeCommandStatus(params); err != nil {
			h.log.WithError(err).Warn("hci: malformed command status")
		}
	case evtDisconnectionComplete:
		ep, err := decodeDisconnectionComplete(params)
		if err != nil {
			return
		}
		h.UnregisterACLHandler(ep.connectionHandle)
	case evtNumberOfCompletedPkts:
		for _, p := range decodeNumberOfCompletedPkts(params) {
			for i := uint16(0); i < p.numOfCompletedPkts; i++ {
				select {
				case <-h.credits:
				default:
				}
			}
		}
	case evtLEMeta:
		h.handleLEMeta(params)
	default:
		h.log.WithField("code", code).Trace("hci: unmanaged event")
	}
}

func (h *HCI) handleLEMeta(b []byte) {
	if len(b) < 1 {
		return
	}
	switch leEventCode(b[0]) {
	case leEvtConnectionComplete:
		ep, err := decodeLEConnectionComplete(b[1:])
		if err != nil {
			h.log.WithError(err).Warn("hci: malformed LE connection complete")
			return
		}
		h.connMu.Lock()
		waiter := h.pendingConnect
		h.pendingConnect = nil
		h.connMu.Unlock()
		if waiter != nil {
			waiter <- ep.connectionHandle
		}
	default:
		h.log.WithField("subevent", b[0]).Trace("hci: unmanaged LE subevent")
	}
}

func (h *HCI) handleACL(b []byte) {
	if len(b) < 4 {
		return
	}
	handleAndFlags := binary.LittleEndian.Uint16(b[0:2])
	handle := handleAndFlags & 0x0fff
	continued := handleAndFlags&0x3000 == 0x1000
	dlen := binary.LittleEndian.Uint16(b[2:4])
	if len(b) < int(4+dlen) {
		return
	}
	payload := b[4 : 4+dlen]

	h.connMu.Lock()
	fn := h.handlers[handle]
	h.connMu.Unlock()
	if fn != nil {
		fn(payload, continued)
	}
}
