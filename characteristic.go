package gatt

// Characteristic is a characteristic discovered under a PrimaryService.
//
// Per the re-architecture note against a Characteristic-to-state-machine
// back-reference: a Characteristic carries no pointer to the StateMachine
// that discovered it. Operations that touch the transport (enabling
// notify/indicate, issuing a read or write) are methods on StateMachine
// that take the target Characteristic as an argument instead.
type Characteristic struct {
	UUID UUID

	// Flags holds the eight property bits decoded from the declaration's
	// flag byte. Test with the Char* bit constants, e.g.
	// c.Flags&CharNotify != 0.
	Flags uint8

	// ValueHandle is where the characteristic's value is read/written and
	// where notifications/indications for it arrive.
	ValueHandle uint16

	// FirstHandle is the declaration's own handle, from the
	// READ_BY_TYPE_RESP element that introduced this characteristic.
	FirstHandle uint16

	// LastHandle is the upper bound of the handle range owned by this
	// characteristic. It starts equal to the owning service's EndHandle
	// and is rewritten to next.FirstHandle-1 when a following
	// characteristic is appended to the same service.
	LastHandle uint16

	// CCCHandle is the handle of the Client Characteristic Configuration
	// descriptor for this characteristic, or 0 if none was found.
	CCCHandle uint16

	// CCCLastKnownValue is the last value seen at, or written to, the CCC.
	CCCLastKnownValue uint16

	onValue func([]byte)
}

// OnValue registers the callback invoked when a notification or indication
// arrives at this characteristic's ValueHandle. May be rebound at any time
// while the owning StateMachine is Idle. A nil fn clears the callback,
// falling back to the state machine's on_notify_or_indicate handler.
func (c *Characteristic) OnValue(fn func(payload []byte)) {
	c.onValue = fn
}
