// Package gatt implements a Bluetooth Low Energy GATT client: given a
// connected transport to one peripheral, it discovers services and
// characteristics, reads and writes characteristic values, and subscribes
// to notifications and indications.
//
// STATUS
//
// This package speaks the central/client role only. Writing a peripheral
// (advertising, accepting connections, serving a local attribute
// database) is out of scope; see the ATT/GATT specifications if that's
// what you need.
//
// SETUP
//
// DialLinux only supports Linux, and only through a raw HCI socket
// opened in HCI_CHANNEL_USER mode (introduced in Linux v3.14), which
// takes exclusive control of the adapter away from BlueZ for as long as
// the connection is open.
//
// Before running a program that calls DialLinux, make sure the target HCI
// device is down and that bluetoothd isn't going to fight over it:
//
//	sudo hciconfig hci0 down
//	sudo service bluetooth stop
//
// Because DialLinux opens a raw socket, the calling process needs either
// root or the CAP_NET_ADMIN capability:
//
//	sudo <executable>
//	# OR
//	sudo setcap 'CAP_NET_ADMIN=+ep' <executable>
//	<executable>
//
// USAGE
//
// Most programs only need Transport, StateMachine's callback options, and
// the synchronous convenience wrapper Peripheral:
//
//	p, err := gatt.DialLinux(addr)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//
//	svcs, err := p.DiscoverServices()
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, s := range svcs {
//		fmt.Println(s.UUID)
//	}
//
//	if _, err := p.DiscoverCharacteristics(); err != nil {
//		log.Fatal(err)
//	}
//
// Callers who already have a connected transport that isn't a raw Linux
// HCI socket (a test fake, a Bluetooth proxy, whatever satisfies
// io.ReadWriteCloser with one Read call per PDU) can skip DialLinux
// entirely and call NewStreamTransport / NewPeripheral directly.
//
// Programs that need finer control than the synchronous Peripheral API
// gives them — driving the pump loop on their own schedule — should use
// NewStateMachine and its Option functions directly.
package gatt
