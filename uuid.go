package gatt

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// bluetoothBase is the base UUID that all 16-bit assigned numbers are
// canonicalized against: 0000xxxx-0000-1000-8000-00805F9B34FB.
var bluetoothBase = uuid.MustParse("00000000-0000-1000-8000-00805F9B34FB")

// UUID is either a 16-bit Bluetooth SIG assigned number or a full 128-bit
// value. It canonicalizes to the long form for comparison and storage, so
// UUID16(0x1800) and its 128-bit expansion compare equal.
type UUID struct {
	full uuid.UUID
}

// UUID16 constructs a UUID from a 16-bit assigned number, expanding it
// against the Bluetooth base UUID.
func UUID16(v uint16) UUID {
	u := bluetoothBase
	u[2] = byte(v >> 8)
	u[3] = byte(v)
	return UUID{full: u}
}

// MustParseUUID parses a canonical 128-bit UUID string, panicking on
// malformed input. Intended for package-level UUID constants.
func MustParseUUID(s string) UUID {
	return UUID{full: uuid.MustParse(s)}
}

// uuidFromBytesLE builds a UUID from a little-endian wire encoding. Two
// bytes decode as a short-form UUID; sixteen bytes decode as a long form
// whose byte order is reversed on the wire relative to string form.
func uuidFromBytesLE(b []byte) (UUID, error) {
	switch len(b) {
	case 2:
		return UUID16(uint16(b[0]) | uint16(b[1])<<8), nil
	case 16:
		var rev [16]byte
		for i, v := range b {
			rev[15-i] = v
		}
		full, err := uuid.FromBytes(rev[:])
		if err != nil {
			return UUID{}, err
		}
		return UUID{full: full}, nil
	default:
		return UUID{}, fmt.Errorf("gatt: invalid uuid length %d", len(b))
	}
}

// IsShortForm reports whether u fits in the 16-bit Bluetooth assigned
// number space, i.e. it was derived from (or equals) the Bluetooth base
// UUID with only the two short-form bytes varying.
func (u UUID) IsShortForm() bool {
	candidate := bluetoothBase
	candidate[2] = u.full[2]
	candidate[3] = u.full[3]
	return candidate == u.full
}

// Short returns the 16-bit assigned number and true if u is short form.
func (u UUID) Short() (uint16, bool) {
	if !u.IsShortForm() {
		return 0, false
	}
	return uint16(u.full[2])<<8 | uint16(u.full[3]), true
}

// AppendLE appends the wire encoding of u to b: two bytes if u is short
// form, sixteen otherwise, both little-endian.
func (u UUID) AppendLE(b []byte) []byte {
	if v, ok := u.Short(); ok {
		return append(b, byte(v), byte(v>>8))
	}
	for i := 15; i >= 0; i-- {
		b = append(b, u.full[i])
	}
	return b
}

// Len returns the number of bytes AppendLE would add: 2 or 16.
func (u UUID) Len() int {
	if _, ok := u.Short(); ok {
		return 2
	}
	return 16
}

// Equal reports bitwise equality after canonicalization.
func (u UUID) Equal(o UUID) bool {
	return u.full == o.full
}

func (u UUID) String() string {
	if v, ok := u.Short(); ok {
		return strings.ToUpper(fmt.Sprintf("%04x", v))
	}
	return u.full.String()
}
