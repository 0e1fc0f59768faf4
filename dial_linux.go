package gatt

import (
	"fmt"

	"github.com/blegatt/gatt/internal/hci"
	"github.com/blegatt/gatt/internal/l2cap"
	"github.com/sirupsen/logrus"
)

// DialOption configures a DialLinux call.
type DialOption func(*dialConfig)

type dialConfig struct {
	deviceID  int
	log       logrus.FieldLogger
	addrType  uint8
	smOptions []Option
}

// WithDeviceID selects which HCI device (as `hciconfig` numbers them,
// typically 0) to open in HCI_CHANNEL_USER mode. Defaults to 0.
func WithDeviceID(id int) DialOption { return func(c *dialConfig) { c.deviceID = id } }

// WithDialLogger attaches a structured logger to both the HCI transport
// and the StateMachine DialLinux constructs.
func WithDialLogger(l logrus.FieldLogger) DialOption {
	return func(c *dialConfig) { c.log = l }
}

// WithRandomAddress dials a peripheral using a resolvable/static random
// address instead of a public one.
func WithRandomAddress() DialOption { return func(c *dialConfig) { c.addrType = 0x01 } }

// WithStateMachineOptions forwards additional Options to the StateMachine
// backing the returned Peripheral, e.g. OnNotifyOrIndicate.
func WithStateMachineOptions(opts ...Option) DialOption {
	return func(c *dialConfig) { c.smOptions = append(c.smOptions, opts...) }
}

// DialLinux opens a raw HCI_CHANNEL_USER socket, brings the local
// controller up, and establishes an LE connection to addr, returning a
// Peripheral ready for DiscoverServices and friends.
//
// This bypasses BlueZ's own connection management entirely, the same
// tradeoff the teacher's own Linux transport makes: exclusive use of the
// adapter, no coexistence with bluetoothd while connected.
func DialLinux(addr BDAddr, opts ...DialOption) (*Peripheral, error) {
	cfg := &dialConfig{deviceID: 0, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	h, err := hci.Open(cfg.deviceID, hci.WithLogger(cfg.log))
	if err != nil {
		return nil, fmt.Errorf("gatt: open HCI device %d: %w", cfg.deviceID, err)
	}

	var raw [6]byte
	mac := addr.HardwareAddr
	if len(mac) != 6 {
		h.Close()
		return nil, fmt.Errorf("gatt: %s is not a 6-byte device address", addr)
	}
	// LE Create Connection takes the peer address least-significant octet
	// first; net.HardwareAddr prints and stores it most-significant first.
	for i := 0; i < 6; i++ {
		raw[i] = mac[5-i]
	}

	handle, err := h.Connect(raw, cfg.addrType)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("gatt: connect to %s: %w", addr, err)
	}

	conn := l2cap.New(h, handle)
	transport := NewStreamTransport(&closeBoth{conn: conn, hci: h})

	smOpts := append([]Option{WithLogger(cfg.log)}, cfg.smOptions...)
	return NewPeripheral(transport, addr, smOpts...), nil
}

// closeBoth makes sure closing the Peripheral's transport also tears down
// the HCI device, not just the one ACL connection riding on it; DialLinux
// owns both and nothing else will close the device otherwise.
type closeBoth struct {
	conn *l2cap.Conn
	hci  *hci.HCI
}

func (c *closeBoth) Read(b []byte) (int, error)  { return c.conn.Read(b) }
func (c *closeBoth) Write(b []byte) (int, error) { return c.conn.Write(b) }
func (c *closeBoth) Close() error {
	err := c.conn.Close()
	if hErr := c.hci.Close(); err == nil {
		err = hErr
	}
	return err
}
