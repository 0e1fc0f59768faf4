package hci

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HCI packet type indicator, the first byte of every packet on an
// HCI_CHANNEL_USER socket in either direction.
const (
	typCommandPkt = 0x01
	typACLDataPkt = 0x02
	typSCODataPkt = 0x03
	typEventPkt   = 0x04
)

type eventCode uint8

const (
	evtDisconnectionComplete eventCode = 0x05
	evtCommandComplete       eventCode = 0x0e
	evtCommandStatus         eventCode = 0x0f
	evtNumberOfCompletedPkts eventCode = 0x13
	evtLEMeta                eventCode = 0x3e
)

type leEventCode uint8

const (
	leEvtConnectionComplete leEventCode = 0x01
)

type commandCompleteEP struct {
	numHCICommandPackets uint8
	commandOpcode        opcode
	returnParameters     []byte
}

func decodeCommandComplete(b []byte) (commandCompleteEP, error) {
	if len(b) < 3 {
		return commandCompleteEP{}, fmt.Errorf("hci: short command complete event: % x", b)
	}
	var op uint16
	binary.Read(bytes.NewReader(b[1:3]), binary.LittleEndian, &op)
	return commandCompleteEP{
		numHCICommandPackets: b[0],
		commandOpcode:        opcode(op),
		returnParameters:     b[3:],
	}, nil
}

type commandStatusEP struct {
	status               uint8
	numHCICommandPackets uint8
	commandOpcode        opcode
}

func decodeCommandStatus(b []byte) (commandStatusEP, error) {
	if len(b) < 4 {
		return commandStatusEP{}, fmt.Errorf("hci: short command status event: % x", b)
	}
	var op uint16
	binary.Read(bytes.NewReader(b[2:4]), binary.LittleEndian, &op)
	return commandStatusEP{status: b[0], numHCICommandPackets: b[1], commandOpcode: opcode(op)}, nil
}

type disconnectionCompleteEP struct {
	status           uint8
	connectionHandle uint16
	reason           uint8
}

func decodeDisconnectionComplete(b []byte) (disconnectionCompleteEP, error) {
	if len(b) < 4 {
		return disconnectionCompleteEP{}, fmt.Errorf("hci: short disconnection complete event: % x", b)
	}
	return disconnectionCompleteEP{
		status:           b[0],
		connectionHandle: binary.LittleEndian.Uint16(b[1:3]),
		reason:           b[3],
	}, nil
}

type numOfCompletedPkt struct {
	connectionHandle   uint16
	numOfCompletedPkts uint16
}

func decodeNumberOfCompletedPkts(b []byte) []numOfCompletedPkt {
	if len(b) < 1 {
		return nil
	}
	n := int(b[0])
	out := make([]numOfCompletedPkt, 0, n)
	rest := b[1:]
	for i := 0; i < n && len(rest) >= 4; i++ {
		out = append(out, numOfCompletedPkt{
			connectionHandle:   binary.LittleEndian.Uint16(rest[0:2]) & 0x0fff,
			numOfCompletedPkts: binary.LittleEndian.Uint16(rest[2:4]),
		})
		rest = rest[4:]
	}
	return out
}

// leConnectionCompleteEP is the LE Connection Complete subevent (core spec
// 7.7.65.1), the terminal event of a successful LE Create Connection.
type leConnectionCompleteEP struct {
	status              uint8
	connectionHandle    uint16
	role                uint8
	peerAddressType     uint8
	peerAddress         [6]byte
	connInterval        uint16
	connLatency         uint16
	supervisionTimeout  uint16
	masterClockAccuracy uint8
}

func decodeLEConnectionComplete(b []byte) (leConnectionCompleteEP, error) {
	if len(b) < 18 {
		return leConnectionCompleteEP{}, fmt.Errorf("hci: short LE connection complete subevent: % x", b)
	}
	ep := leConnectionCompleteEP{
		status:           b[0],
		connectionHandle: binary.LittleEndian.Uint16(b[1:3]),
		role:             b[3],
		peerAddressType:  b[4],
	}
	copy(ep.peerAddress[:], b[5:11])
	ep.connInterval = binary.LittleEndian.Uint16(b[11:13])
	ep.connLatency = binary.LittleEndian.Uint16(b[13:15])
	ep.supervisionTimeout = binary.LittleEndian.Uint16(b[15:17])
	ep.masterClockAccuracy = b[17]
	return ep, nil
}
