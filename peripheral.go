package gatt

import (
	"fmt"
	"sync"
)

// Peripheral is the secondary, non-core convenience path named in the
// discovery driver's design: it drains one StateMachine phase to
// completion and returns synchronously, so callers who don't want to run
// their own pump loop don't have to. The StateMachine underneath remains the
// single owner of the transport; Peripheral only adds a background
// goroutine that calls Pump in a loop and a channel to hand the result
// back to whichever call is waiting.
type Peripheral struct {
	sm        *StateMachine
	transport Transport
	addr      BDAddr

	mu       sync.Mutex
	awaiting bool
	outcomes chan outcome
}

type outcome struct {
	value []byte
	char  *Characteristic
	err   error
}

// NewPeripheral wires a StateMachine over transport and starts the
// background pump loop. addr is recorded for RemoteAddr; it is
// not used to establish the connection, which the caller has already done
// by way of transport. opts may add WithLogger, WithScratchSize, or
// OnNotifyOrIndicate; passing one of the phase-completion options
// (OnServicesRead and friends) overrides the internal wiring the
// synchronous methods below rely on and will deadlock them.
func NewPeripheral(transport Transport, addr BDAddr, opts ...Option) *Peripheral {
	p := &Peripheral{
		transport: transport,
		addr:      addr,
		outcomes:  make(chan outcome, 1),
	}
	allOpts := append([]Option{
		OnServicesRead(func([]*PrimaryService) { p.deliver(outcome{}) }),
		OnCharacteristicsFound(func([]*PrimaryService) { p.deliver(outcome{}) }),
		OnCCCRead(func([]*PrimaryService) { p.deliver(outcome{}) }),
		OnWriteResponse(func(c *Characteristic) { p.deliver(outcome{char: c}) }),
		OnReadResponse(func(c *Characteristic, v []byte) { p.deliver(outcome{char: c, value: v}) }),
	}, opts...)
	p.sm = NewStateMachine(transport, allOpts...)
	go p.loop()
	return p
}

// deliver hands o to whichever synchronous call is currently waiting in
// drain, if any. dispatch can fail with ProtocolDesync or a peer error
// while sm.phase is Idle (a stray or unexpected PDU arriving between two
// calls); with no drain in flight those don't belong to any caller, so
// they are dropped here rather than buffered for some later, unrelated
// call to misread.
func (p *Peripheral) deliver(o outcome) {
	p.mu.Lock()
	if !p.awaiting {
		p.mu.Unlock()
		return
	}
	p.awaiting = false
	p.mu.Unlock()
	select {
	case p.outcomes <- o:
	default:
	}
}

// loop drives Pump continuously. An error Pump returns while a drain call
// is in flight is that call's result; one returned with no call in flight
// is unsolicited (see deliver) and is dropped, except TransportFailed,
// which always ends the session and stops the loop.
func (p *Peripheral) loop() {
	for {
		if err := p.sm.Pump(); err != nil {
			p.deliver(outcome{err: err})
			if gerr, ok := err.(*Error); ok && gerr.Kind == TransportFailed {
				return
			}
		}
	}
}

func (p *Peripheral) drain(enter func() error) (outcome, error) {
	p.mu.Lock()
	p.awaiting = true
	p.mu.Unlock()
	if err := enter(); err != nil {
		p.mu.Lock()
		p.awaiting = false
		p.mu.Unlock()
		return outcome{}, err
	}
	o := <-p.outcomes
	return o, o.err
}

// DiscoverServices drains read_primary_services to completion and returns
// every PrimaryService discovered, including any found in earlier calls.
func (p *Peripheral) DiscoverServices() ([]*PrimaryService, error) {
	if _, err := p.drain(p.sm.ReadPrimaryServices); err != nil {
		return nil, err
	}
	return p.sm.Services(), nil
}

// DiscoverCharacteristics drains find_all_characteristics to completion.
func (p *Peripheral) DiscoverCharacteristics() ([]*PrimaryService, error) {
	if _, err := p.drain(p.sm.FindAllCharacteristics); err != nil {
		return nil, err
	}
	return p.sm.Services(), nil
}

// DiscoverDescriptors drains get_client_characteristic_configuration to
// completion, populating CCCHandle/CCCLastKnownValue on every
// characteristic that has one.
func (p *Peripheral) DiscoverDescriptors() ([]*PrimaryService, error) {
	if _, err := p.drain(p.sm.GetClientCharacteristicConfiguration); err != nil {
		return nil, err
	}
	return p.sm.Services(), nil
}

// ReadCharacteristic reads c's value handle and returns the value.
func (p *Peripheral) ReadCharacteristic(c *Characteristic) ([]byte, error) {
	o, err := p.drain(func() error { return p.sm.ReadCharacteristicValue(c) })
	if err != nil {
		return nil, err
	}
	return o.value, nil
}

// WriteCharacteristic writes value to c's value handle with response.
func (p *Peripheral) WriteCharacteristic(c *Characteristic, value []byte) error {
	_, err := p.drain(func() error { return p.sm.WriteCharacteristicValue(c, value) })
	return err
}

// SetNotifyValue enables or disables notify/indicate on c via its CCC
// descriptor, which must already be known (see DiscoverDescriptors).
func (p *Peripheral) SetNotifyValue(c *Characteristic, notify, indicate bool) error {
	_, err := p.drain(func() error { return p.sm.EnableNotifyIndicate(c, notify, indicate) })
	return err
}

// StateMachine returns the underlying StateMachine, for callers who want
// to drive Pump themselves instead of using the synchronous methods
// above, or who want to register OnNotifyOrIndicate / per-characteristic
// OnValue callbacks.
func (p *Peripheral) StateMachine() *StateMachine { return p.sm }

// RemoteAddr returns the peripheral's Bluetooth device address.
func (p *Peripheral) RemoteAddr() BDAddr { return p.addr }

// Close disconnects the transport, ending the background pump loop with a
// TransportFailed error on its next Pump call.
func (p *Peripheral) Close() error { return p.transport.Close() }

func (p *Peripheral) String() string {
	return fmt.Sprintf("gatt.Peripheral{%s}", p.addr)
}
