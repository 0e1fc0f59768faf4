package gatt

import "fmt"

// This file is the PDU Codec: pure functions that encode outgoing ATT
// requests and decode incoming responses from/to typed views over a
// borrowed byte buffer. No I/O, no state. Every decode function is one
// variant of a sum type over the first (opcode) byte; callers pick the
// variant that matches the phase they are in and get a lazily-indexed
// view over the remaining bytes.

// Opcode returns the first byte of a raw PDU, or 0 if pdu is empty.
func Opcode(pdu []byte) byte {
	if len(pdu) == 0 {
		return 0
	}
	return pdu[0]
}

// --- Encoders ---

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

// EncodeReadByGroupTypeReq encodes READ_BY_GROUP_REQ (0x10).
func EncodeReadByGroupTypeReq(start, end uint16, u UUID) []byte {
	b := make([]byte, 0, 1+2+2+16)
	b = append(b, opReadByGroupReq)
	b = appendUint16(b, start)
	b = appendUint16(b, end)
	b = u.AppendLE(b)
	return b
}

// EncodeReadByTypeReq encodes READ_BY_TYPE_REQ (0x08).
func EncodeReadByTypeReq(start, end uint16, u UUID) []byte {
	b := make([]byte, 0, 1+2+2+16)
	b = append(b, opReadByTypeReq)
	b = appendUint16(b, start)
	b = appendUint16(b, end)
	b = u.AppendLE(b)
	return b
}

// EncodeFindInfoReq encodes FIND_INFO_REQ (0x04).
func EncodeFindInfoReq(start, end uint16) []byte {
	b := make([]byte, 0, 5)
	b = append(b, opFindInfoReq)
	b = appendUint16(b, start)
	b = appendUint16(b, end)
	return b
}

// EncodeReadReq encodes READ_REQ (0x0A).
func EncodeReadReq(handle uint16) []byte {
	b := make([]byte, 0, 3)
	b = append(b, opReadReq)
	b = appendUint16(b, handle)
	return b
}

// EncodeWriteReq encodes WRITE_REQ (0x12), which solicits WRITE_RESP.
func EncodeWriteReq(handle uint16, value []byte) []byte {
	b := make([]byte, 0, 3+len(value))
	b = append(b, opWriteReq)
	b = appendUint16(b, handle)
	b = append(b, value...)
	return b
}

// EncodeWriteCmd encodes WRITE_CMD (0x52), which solicits no response.
func EncodeWriteCmd(handle uint16, value []byte) []byte {
	b := make([]byte, 0, 3+len(value))
	b = append(b, opWriteCmd)
	b = appendUint16(b, handle)
	b = append(b, value...)
	return b
}

// EncodeHandleValueConfirm encodes HANDLE_VALUE_CONFIRM (0x1E), a
// zero-payload PDU sent in reply to an indication.
func EncodeHandleValueConfirm() []byte {
	return []byte{opHandleCnf}
}

// --- Decoders ---

// ErrorResponse is a view over ERROR_RESP (0x01): u8 request_opcode, u16
// handle, u8 error_code.
type ErrorResponse []byte

func decodeErrorResponse(pdu []byte) (ErrorResponse, error) {
	if len(pdu) != 5 || pdu[0] != opError {
		return nil, fmt.Errorf("gatt: malformed ERROR_RESP, len=%d", len(pdu))
	}
	return ErrorResponse(pdu), nil
}

func (e ErrorResponse) RequestOpcode() byte { return e[1] }
func (e ErrorResponse) Handle() uint16      { return uint16(e[2]) | uint16(e[3])<<8 }
func (e ErrorResponse) ErrorCode() byte     { return e[4] }

// ReadByGroupTypeResponse is a view over READ_BY_GROUP_RESP (0x11): u8
// element_size, then N elements of (u16 start_handle, u16 end_handle,
// value_size = element_size-4 bytes).
type ReadByGroupTypeResponse []byte

func decodeReadByGroupTypeResponse(pdu []byte) (ReadByGroupTypeResponse, error) {
	if len(pdu) < 2 || pdu[0] != opReadByGroupResp {
		return nil, fmt.Errorf("gatt: malformed READ_BY_GROUP_RESP, len=%d", len(pdu))
	}
	r := ReadByGroupTypeResponse(pdu)
	elemSize := int(r.ElementSize())
	if elemSize <= 4 {
		return nil, fmt.Errorf("gatt: READ_BY_GROUP_RESP element_size %d too small", elemSize)
	}
	if (len(pdu)-2)%elemSize != 0 {
		return nil, fmt.Errorf("gatt: READ_BY_GROUP_RESP length %d not a multiple of element_size %d", len(pdu)-2, elemSize)
	}
	return r, nil
}

func (r ReadByGroupTypeResponse) ElementSize() uint8 { return r[1] }
func (r ReadByGroupTypeResponse) NumElements() int {
	return (len(r) - 2) / int(r.ElementSize())
}
func (r ReadByGroupTypeResponse) elem(i int) []byte {
	sz := int(r.ElementSize())
	off := 2 + i*sz
	return r[off : off+sz]
}
func (r ReadByGroupTypeResponse) StartHandle(i int) uint16 {
	e := r.elem(i)
	return uint16(e[0]) | uint16(e[1])<<8
}
func (r ReadByGroupTypeResponse) EndHandle(i int) uint16 {
	e := r.elem(i)
	return uint16(e[2]) | uint16(e[3])<<8
}
func (r ReadByGroupTypeResponse) Value(i int) []byte {
	return r.elem(i)[4:]
}

// ReadByTypeResponse is a view over READ_BY_TYPE_RESP (0x09): u8
// element_size, then N elements of (u16 handle, value_size =
// element_size-2 bytes).
type ReadByTypeResponse []byte

func decodeReadByTypeResponse(pdu []byte) (ReadByTypeResponse, error) {
	if len(pdu) < 2 || pdu[0] != opReadByTypeResp {
		return nil, fmt.Errorf("gatt: malformed READ_BY_TYPE_RESP, len=%d", len(pdu))
	}
	r := ReadByTypeResponse(pdu)
	elemSize := int(r.ElementSize())
	if elemSize <= 2 {
		return nil, fmt.Errorf("gatt: READ_BY_TYPE_RESP element_size %d too small", elemSize)
	}
	if (len(pdu)-2)%elemSize != 0 {
		return nil, fmt.Errorf("gatt: READ_BY_TYPE_RESP length %d not a multiple of element_size %d", len(pdu)-2, elemSize)
	}
	return r, nil
}

func (r ReadByTypeResponse) ElementSize() uint8 { return r[1] }
func (r ReadByTypeResponse) NumElements() int {
	return (len(r) - 2) / int(r.ElementSize())
}
func (r ReadByTypeResponse) elem(i int) []byte {
	sz := int(r.ElementSize())
	off := 2 + i*sz
	return r[off : off+sz]
}
func (r ReadByTypeResponse) Handle(i int) uint16 {
	e := r.elem(i)
	return uint16(e[0]) | uint16(e[1])<<8
}
func (r ReadByTypeResponse) Value(i int) []byte {
	return r.elem(i)[2:]
}

// GATTCharacteristicDeclaration is a view over the value of one element of
// a READ_BY_TYPE_RESP interpreted as a characteristic declaration: u8
// flags, u16 value_handle, then the UUID. Only values of 5 bytes (16-bit
// UUID, element_size 7) or 19 bytes (128-bit UUID, element_size 21) are
// legal; any other size is a DecodeError.
type GATTCharacteristicDeclaration []byte

func decodeCharacteristicDeclaration(value []byte) (GATTCharacteristicDeclaration, error) {
	switch len(value) {
	case 5, 19: // element_size - 2 (handle already stripped by caller)
		return GATTCharacteristicDeclaration(value), nil
	default:
		return nil, fmt.Errorf("gatt: characteristic declaration value length %d, want 5 or 19", len(value))
	}
}

func (d GATTCharacteristicDeclaration) Flags() uint8 { return d[0] }
func (d GATTCharacteristicDeclaration) ValueHandle() uint16 {
	return uint16(d[1]) | uint16(d[2])<<8
}
func (d GATTCharacteristicDeclaration) UUID() (UUID, error) {
	return uuidFromBytesLE(d[3:])
}

// GATTReadCCC is a view over one element of a READ_BY_TYPE_RESP
// interpreted as a Client Characteristic Configuration read. Only
// element_size 4 (a 2-byte value) is legal.
type GATTReadCCC []byte

func decodeCCCValue(value []byte) (GATTReadCCC, error) {
	if len(value) != 2 {
		return nil, fmt.Errorf("gatt: CCC value length %d, want 2", len(value))
	}
	return GATTReadCCC(value), nil
}

func (c GATTReadCCC) Value() uint16 { return uint16(c[0]) | uint16(c[1])<<8 }

// FindInformationResponse is a view over FIND_INFO_RESP (0x05): u8 format
// (1=16-bit UUIDs, 2=128-bit), then N elements of (u16 handle, UUID).
type FindInformationResponse []byte

func decodeFindInformationResponse(pdu []byte) (FindInformationResponse, error) {
	if len(pdu) < 2 || pdu[0] != opFindInfoResp {
		return nil, fmt.Errorf("gatt: malformed FIND_INFO_RESP, len=%d", len(pdu))
	}
	r := FindInformationResponse(pdu)
	elemSize := r.elemSize()
	if elemSize == 0 {
		return nil, fmt.Errorf("gatt: FIND_INFO_RESP unknown format %d", r.Format())
	}
	if (len(pdu)-2)%elemSize != 0 {
		return nil, fmt.Errorf("gatt: FIND_INFO_RESP length %d not a multiple of element size %d", len(pdu)-2, elemSize)
	}
	return r, nil
}

func (r FindInformationResponse) Format() uint8 { return r[1] }
func (r FindInformationResponse) elemSize() int {
	switch r.Format() {
	case 1:
		return 4
	case 2:
		return 18
	default:
		return 0
	}
}
func (r FindInformationResponse) NumElements() int {
	return (len(r) - 2) / r.elemSize()
}
func (r FindInformationResponse) elem(i int) []byte {
	sz := r.elemSize()
	off := 2 + i*sz
	return r[off : off+sz]
}
func (r FindInformationResponse) Handle(i int) uint16 {
	e := r.elem(i)
	return uint16(e[0]) | uint16(e[1])<<8
}
func (r FindInformationResponse) UUID(i int) (UUID, error) {
	return uuidFromBytesLE(r.elem(i)[2:])
}

// HandleValueNotification is a view over HANDLE_NOTIFY (0x1B) or
// HANDLE_IND (0x1D): u16 handle, value bytes.
type HandleValueNotification []byte

func decodeHandleValue(pdu []byte) (HandleValueNotification, error) {
	if len(pdu) < 3 {
		return nil, fmt.Errorf("gatt: malformed HANDLE_NOTIFY/HANDLE_IND, len=%d", len(pdu))
	}
	return HandleValueNotification(pdu), nil
}

func (n HandleValueNotification) Handle() uint16 {
	return uint16(n[1]) | uint16(n[2])<<8
}
func (n HandleValueNotification) Value() []byte { return n[3:] }

// ReadResponse is a view over READ_RESP (0x0B): the raw value bytes.
type ReadResponse []byte

func decodeReadResponse(pdu []byte) (ReadResponse, error) {
	if len(pdu) < 1 || pdu[0] != opReadResp {
		return nil, fmt.Errorf("gatt: malformed READ_RESP, len=%d", len(pdu))
	}
	return ReadResponse(pdu[1:]), nil
}
