package hci

import (
	"golang.org/x/sys/unix"
)

// socket is a raw AF_BLUETOOTH/BTPROTO_HCI socket bound in
// HCI_CHANNEL_USER mode, meaning the kernel's own Bluetooth management
// daemon (bluetoothd) stays off this device entirely and every HCI command
// and event round-trips through this file descriptor unmediated.
type socket struct {
	fd int
}

func openSocket(devID int) (*socket, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrHCI{Dev: uint16(devID), Channel: unix.HCI_CHANNEL_USER}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &socket{fd: fd}, nil
}

func (s *socket) Read(b []byte) (int, error)  { return unix.Read(s.fd, b) }
func (s *socket) Write(b []byte) (int, error) { return unix.Write(s.fd, b) }
func (s *socket) Close() error                { return unix.Close(s.fd) }
func (s *socket) Fd() int                     { return s.fd }
