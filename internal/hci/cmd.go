package hci

import (
	"bytes"
	"encoding/binary"
)

// cmdParam is anything that can appear as the parameter block of an HCI
// command packet. marshal encodes little-endian, matching the wire order
// every field below is declared in.
type cmdParam interface {
	opcode() opcode
	marshal() []byte
}

func marshalFields(fields ...interface{}) []byte {
	buf := new(bytes.Buffer)
	for _, f := range fields {
		binary.Write(buf, binary.LittleEndian, f)
	}
	return buf.Bytes()
}

type reset struct{}

func (reset) opcode() opcode  { return opReset }
func (reset) marshal() []byte { return nil }

type setEventMask struct{ eventMask uint64 }

func (c setEventMask) opcode() opcode  { return opSetEventMask }
func (c setEventMask) marshal() []byte { return marshalFields(c.eventMask) }

type leSetEventMask struct{ leEventMask uint64 }

func (c leSetEventMask) opcode() opcode  { return opLESetEventMask }
func (c leSetEventMask) marshal() []byte { return marshalFields(c.leEventMask) }

type writeSimplePairingMode struct{ mode uint8 }

func (c writeSimplePairingMode) opcode() opcode  { return opWriteSimplePairingMode }
func (c writeSimplePairingMode) marshal() []byte { return marshalFields(c.mode) }

type writeLEHostSupported struct {
	leSupportedHost    uint8
	simultaneousLEHost uint8
}

func (c writeLEHostSupported) opcode() opcode { return opWriteLEHostSupported }
func (c writeLEHostSupported) marshal() []byte {
	return marshalFields(c.leSupportedHost, c.simultaneousLEHost)
}

type writeInquiryMode struct{ mode uint8 }

func (c writeInquiryMode) opcode() opcode  { return opWriteInquiryMode }
func (c writeInquiryMode) marshal() []byte { return marshalFields(c.mode) }

type writePageScanType struct{ typ uint8 }

func (c writePageScanType) opcode() opcode  { return opWritePageScanType }
func (c writePageScanType) marshal() []byte { return marshalFields(c.typ) }

type writeInquiryScanType struct{ typ uint8 }

func (c writeInquiryScanType) opcode() opcode  { return opWriteInquiryScanType }
func (c writeInquiryScanType) marshal() []byte { return marshalFields(c.typ) }

type writeClassOfDevice struct{ classOfDevice [3]byte }

func (c writeClassOfDevice) opcode() opcode  { return opWriteClassOfDevice }
func (c writeClassOfDevice) marshal() []byte { return c.classOfDevice[:] }

type writePageTimeout struct{ timeout uint16 }

func (c writePageTimeout) opcode() opcode  { return opWritePageTimeout }
func (c writePageTimeout) marshal() []byte { return marshalFields(c.timeout) }

type writeDefaultLinkPolicy struct{ settings uint16 }

func (c writeDefaultLinkPolicy) opcode() opcode  { return opWriteDefaultLinkPolicy }
func (c writeDefaultLinkPolicy) marshal() []byte { return marshalFields(c.settings) }

type hostBufferSize struct {
	aclDataPacketLength     uint16
	syncDataPacketLength    uint8
	totalNumACLDataPackets  uint16
	totalNumSyncDataPackets uint16
}

func (c hostBufferSize) opcode() opcode { return opHostBufferSize }
func (c hostBufferSize) marshal() []byte {
	return marshalFields(c.aclDataPacketLength, c.syncDataPacketLength,
		c.totalNumACLDataPackets, c.totalNumSyncDataPackets)
}

// leCreateConn is the LE Create Connection command (core spec 7.8.12). The
// scan/connection interval fields below are conservative fixed defaults;
// this package does no whitelist scanning of its own, it dials one known
// address directly.
type leCreateConn struct {
	scanInterval        uint16
	scanWindow          uint16
	initiatorFilter     uint8
	peerAddressType     uint8
	peerAddress         [6]byte
	ownAddressType      uint8
	connIntervalMin     uint16
	connIntervalMax     uint16
	connLatency         uint16
	supervisionTimeout  uint16
	minimumCELength     uint16
	maximumCELength     uint16
}

func (c leCreateConn) opcode() opcode { return opLECreateConn }
func (c leCreateConn) marshal() []byte {
	return marshalFields(c.scanInterval, c.scanWindow, c.initiatorFilter,
		c.peerAddressType, c.peerAddress, c.ownAddressType,
		c.connIntervalMin, c.connIntervalMax, c.connLatency,
		c.supervisionTimeout, c.minimumCELength, c.maximumCELength)
}

type leCreateConnCancel struct{}

func (leCreateConnCancel) opcode() opcode  { return opLECreateConnCancel }
func (leCreateConnCancel) marshal() []byte { return nil }

type disconnect struct {
	connectionHandle uint16
	reason           uint8
}

func (c disconnect) opcode() opcode  { return opDisconnect }
func (c disconnect) marshal() []byte { return marshalFields(c.connectionHandle, c.reason) }

// marshalCommand frames a command packet: HCI packet-type byte, opcode,
// parameter length, parameters.
func marshalCommand(cp cmdParam) []byte {
	body := cp.marshal()
	buf := new(bytes.Buffer)
	buf.WriteByte(typCommandPkt)
	binary.Write(buf, binary.LittleEndian, uint16(cp.opcode()))
	buf.WriteByte(uint8(len(body)))
	buf.Write(body)
	return buf.Bytes()
}
