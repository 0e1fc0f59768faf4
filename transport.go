package gatt

import "net"

// A BDAddr (Bluetooth Device Address) is a hardware-address-based net.Addr.
type BDAddr struct{ net.HardwareAddr }

func (a BDAddr) Network() string { return "BLE" }

// Transport is the byte-stream endpoint the StateMachine drives. It owns
// the connected L2CAP/HCI socket to one peripheral and knows nothing of
// ATT semantics beyond PDU framing: one Send call transmits exactly one
// PDU, one Recv call yields exactly one PDU.
//
// A Transport is single-owner. The StateMachine that holds it must not
// call Send from more than one goroutine at a time. Send may be called
// while a Recv on the same instance is in flight: Peripheral issues each
// request while its background loop is blocked in Recv.
type Transport interface {
	// Send transmits pdu as a single atomic write. Returns an error
	// (wrapped as TransportFailed by the caller) if the endpoint is
	// closed or the kernel refuses the write.
	Send(pdu []byte) error

	// Recv blocks until exactly one PDU is available, and returns a
	// slice into buf holding it (buf must be at least MTU bytes).
	// Returns an error on EOF or I/O failure.
	Recv(buf []byte) ([]byte, error)

	// Close disconnects the endpoint. Safe to call more than once.
	Close() error
}

// Multiplexer is implemented by transports that expose a raw file
// descriptor, so callers can fold Recv readiness into their own event
// loop instead of blocking a goroutine on it.
type Multiplexer interface {
	// Fd returns the OS file descriptor backing the transport, so the
	// caller may multiplex it with their own readiness mechanism.
	Fd() int
}

// Conn describes the connection-level facts about a transport that are
// not part of the ATT byte stream itself: addressing, signal strength,
// negotiated MTU.
type Conn interface {
	// LocalAddr returns the address of the local (central) adapter.
	LocalAddr() BDAddr

	// RemoteAddr returns the address of the connected peripheral.
	RemoteAddr() BDAddr

	// RSSI returns the last RSSI measurement, or -1 if there have not
	// been any.
	RSSI() int

	// MTU returns the negotiated connection MTU. The core discovery
	// driver assumes defaultMTU throughout; a transport that performs
	// its own link-layer MTU negotiation reports it here for callers
	// that want it, without the state machine depending on it.
	MTU() int
}

// streamTransport adapts any io.ReadWriteCloser-like connected stream that
// already delivers whole PDUs per Read call (as the fake channel-backed
// transport in tests, and the L2CAP fixed-channel reader, both do) into a
// Transport. It performs no framing of its own.
type streamTransport struct {
	rw interface {
		Read(p []byte) (int, error)
		Write(p []byte) (int, error)
		Close() error
	}
}

// NewStreamTransport wraps rw, an endpoint that yields exactly one ATT PDU
// per Read call, as a Transport.
func NewStreamTransport(rw interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}) Transport {
	return &streamTransport{rw: rw}
}

func (t *streamTransport) Send(pdu []byte) error {
	_, err := t.rw.Write(pdu)
	return err
}

func (t *streamTransport) Recv(buf []byte) ([]byte, error) {
	n, err := t.rw.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (t *streamTransport) Close() error { return t.rw.Close() }
