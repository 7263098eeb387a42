package ntp

import "net/netip"

// Transport is the datagram capability set the [Client] drives. It mirrors
// the packet oriented UDP APIs found on microcontroller network stacks, where a
// datagram is assembled between BeginPacket and EndPacket and received
// datagrams are consumed one at a time through ParsePacket and Read.
//
// If a Transport also implements io.Closer the Client closes it on [Client.Close].
type Transport interface {
	// Open binds the transport to localPort.
	Open(localPort uint16) error
	// BeginPacket starts a datagram destined to addr:port.
	BeginPacket(addr netip.Addr, port uint16) error
	// Write appends b to the datagram being assembled.
	Write(b []byte) (int, error)
	// EndPacket sends the datagram assembled since BeginPacket.
	EndPacket() error
	// ParsePacket discards the current received datagram, if any, and checks
	// for the next one. It returns the payload size of the next datagram or 0
	// if none is pending. It should return promptly: the Client paces its
	// polling with its own sleeps.
	ParsePacket() int
	// Read reads payload of the current received datagram into b.
	Read(b []byte) (int, error)
	// RemoteAddr returns the source address and port of the current received datagram.
	RemoteAddr() netip.AddrPort
}
