// Package l2cap fragments and reassembls L2CAP frames on the ATT fixed
// channel (CID 0x0004) over an ACL link, the layer between the raw HCI
// transport and one ATT PDU per Read/Write call that the rest of this
// module's Transport expects.
package l2cap

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// attCID is the fixed L2CAP channel identifier ATT always runs on; there
// is no channel negotiation to do, unlike an L2CAP-connection-oriented
// channel.
const attCID = 0x0004

// aclLink is the subset of *hci.HCI this package drives: fragment-sized
// writes to one connection handle, and registration for inbound fragments
// addressed to it. hci.HCI satisfies this without either package
// depending on the other's concrete type.
type aclLink interface {
	WriteACLFragment(handle uint16, payload []byte, continued bool) error
	RegisterACLHandler(handle uint16, fn func(payload []byte, continued bool))
	UnregisterACLHandler(handle uint16)
	Disconnect(handle uint16) error
}

// FragmentSize is the maximum ACL payload this package will pack per
// fragment; it must not exceed the underlying link's own limit.
const FragmentSize = 27

// Conn is the ATT fixed channel over one ACL connection. It implements
// the Read/Write/Close shape this module's NewStreamTransport wraps: one
// Write call sends exactly one ATT PDU (fragmented as needed), one Read
// call blocks until exactly one whole PDU has been reassembled.
type Conn struct {
	link   aclLink
	handle uint16

	mu      sync.Mutex
	pending []byte // reassembly buffer for the frame currently in progress
	want    int    // total L2CAP payload length declared by the first fragment
	frames  chan []byte
	closed  chan struct{}
}

// New wires a Conn to link for the given connection handle, registering
// itself to receive that handle's inbound ACL fragments.
func New(link aclLink, handle uint16) *Conn {
	c := &Conn{
		link:   link,
		handle: handle,
		frames: make(chan []byte, 8),
		closed: make(chan struct{}),
	}
	link.RegisterACLHandler(handle, c.feed)
	return c
}

// feed is the ACL fragment callback handed to the link. It reassembles
// fragments into whole L2CAP frames and, once a frame is complete, strips
// the 4-byte L2CAP header (length + CID) and delivers the ATT payload.
func (c *Conn) feed(payload []byte, continued bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !continued {
		if len(payload) < 4 {
			return
		}
		c.want = int(binary.LittleEndian.Uint16(payload[0:2]))
		cid := binary.LittleEndian.Uint16(payload[2:4])
		if cid != attCID {
			return
		}
		c.pending = append([]byte(nil), payload[4:]...)
	} else {
		c.pending = append(c.pending, payload...)
	}

	if len(c.pending) >= c.want {
		frame := c.pending[:c.want]
		c.pending, c.want = nil, 0
		select {
		case c.frames <- frame:
		case <-c.closed:
		}
	}
}

// Read blocks until one full ATT PDU has been reassembled and copies it
// into b.
func (c *Conn) Read(b []byte) (int, error) {
	select {
	case frame := <-c.frames:
		return copy(b, frame), nil
	case <-c.closed:
		return 0, fmt.Errorf("l2cap: connection closed")
	}
}

// Write sends b as one ATT PDU, prefixed with the L2CAP length/CID header
// and split into link-sized ACL fragments, the first flagged as a new
// packet and every subsequent one flagged as a continuation.
func (c *Conn) Write(b []byte) (int, error) {
	frame := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint16(frame[0:2], uint16(len(b)))
	binary.LittleEndian.PutUint16(frame[2:4], attCID)
	copy(frame[4:], b)

	for offset, first := 0, true; offset < len(frame); first = false {
		end := offset + FragmentSize
		if end > len(frame) {
			end = len(frame)
		}
		if err := c.link.WriteACLFragment(c.handle, frame[offset:end], !first); err != nil {
			return 0, err
		}
		offset = end
	}
	return len(b), nil
}

// Close disconnects the underlying ACL link and unblocks any pending Read.
func (c *Conn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	c.link.UnregisterACLHandler(c.handle)
	return c.link.Disconnect(c.handle)
}
