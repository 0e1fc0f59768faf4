package gatt

// This file includes constants from the Bluetooth ATT/GATT specification.

// ATT opcodes this client emits or must recognize on receipt. The full ATT
// opcode space is much larger; only the subset the discovery driver and
// subscription controller use is named here.
const (
	opError           = 0x01
	opMTUReq          = 0x02
	opMTUResp         = 0x03
	opFindInfoReq     = 0x04
	opFindInfoResp    = 0x05
	opReadByTypeReq   = 0x08
	opReadByTypeResp  = 0x09
	opReadReq         = 0x0a
	opReadResp        = 0x0b
	opReadByGroupReq  = 0x10
	opReadByGroupResp = 0x11
	opWriteReq        = 0x12
	opWriteResp       = 0x13
	opWriteCmd        = 0x52
	opHandleNotify    = 0x1b
	opHandleInd       = 0x1d
	opHandleCnf       = 0x1e
)

// ATT error codes. Only ecodeAttrNotFound is treated as a phase
// terminator; every other code surfaces to the caller as PeerError.
const (
	ecodeSuccess           = 0x00
	ecodeInvalidHandle     = 0x01
	ecodeReadNotPerm       = 0x02
	ecodeWriteNotPerm      = 0x03
	ecodeInvalidPDU        = 0x04
	ecodeAuthentication    = 0x05
	ecodeReqNotSupp        = 0x06
	ecodeInvalidOffset     = 0x07
	ecodeAuthorization     = 0x08
	ecodePrepQueueFull     = 0x09
	ecodeAttrNotFound      = 0x0a
	ecodeAttrNotLong       = 0x0b
	ecodeInsuffEncrKeySize = 0x0c
	ecodeInvalAttrValueLen = 0x0d
	ecodeUnlikely          = 0x0e
	ecodeInsuffEnc         = 0x0f
	ecodeUnsuppGrpType     = 0x10
	ecodeInsuffResources   = 0x11
)

// Reserved GATT UUIDs recognized during discovery.
var (
	attrPrimaryServiceUUID             = UUID16(0x2800)
	attrCharacteristicUUID             = UUID16(0x2803)
	attrClientCharacteristicConfigUUID = UUID16(0x2902)
)

// Characteristic property flag bits, decoded from the single flag byte in
// a characteristic declaration.
const (
	CharBroadcast   = 1 << iota // 0x01
	CharRead                    // 0x02
	CharWriteNoResp             // 0x04
	CharWrite                   // 0x08
	CharNotify                  // 0x10
	CharIndicate                // 0x20
	CharSignedWrite             // 0x40
	CharExtended                // 0x80
)

// CCC bitmask bits written to a Client Characteristic Configuration
// descriptor to enable server-pushed notifications and/or indications.
const (
	cccNotifyFlag   = 0x0001
	cccIndicateFlag = 0x0002
)

// defaultMTU is the ATT default MTU. No MTU exchange is performed by the
// core discovery driver; every PDU is assumed to fit within it.
const defaultMTU = 23

// scratchBufferSize is large enough to hold any discovery-phase PDU at the
// default MTU with headroom, matching the receive buffer the transport
// adapter is expected to size itself around.
const scratchBufferSize = 128

// invalidHandle is the reserved sentinel denoting "upper bound of
// attribute space"; it never identifies a real attribute.
const invalidHandle uint16 = 0xFFFF
