package xnet

import (
	"errors"
	"io"
	"net"
	"net/netip"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/soypat/tinyntp"
)

const (
	// MaxDatagramSize is the largest datagram a UDPConn receives. Larger
	// datagrams are truncated.
	MaxDatagramSize = 1500
	// DefaultReadWait is how long ParsePacket waits on the socket for a datagram.
	DefaultReadWait = time.Millisecond
)

var (
	errIPv4Only      = errors.New("xnet: only IPv4 destinations supported")
	errAlreadyOpen   = errors.New("xnet: already open")
	errNoPacketBegun = errors.New("xnet: no packet begun")
	errNoDatagram    = errors.New("xnet: no datagram")
)

// UDPConn is a packet oriented UDP transport over an operating system
// socket, for running an ntp.Client on a host rather than a microcontroller.
// It is IPv4 only. The zero value is ready to be opened.
type UDPConn struct {
	// LocalAddr is the address bound on Open. The zero value binds all interfaces.
	LocalAddr netip.Addr
	// TTL of sent datagrams. Zero leaves the system default.
	TTL int
	// ReadWait bounds how long ParsePacket blocks. Defaults to [DefaultReadWait].
	ReadWait time.Duration

	conn   *net.UDPConn
	pc     *ipv4.PacketConn
	dst    *net.UDPAddr
	txbuf  []byte
	txopen bool
	src    netip.AddrPort
	rxn    int
	roff   int
	rxbuf  [MaxDatagramSize]byte
}

// Open binds the socket to localPort. A zero port picks an ephemeral port.
func (u *UDPConn) Open(localPort uint16) error {
	if u.conn != nil {
		return errAlreadyOpen
	}
	laddr := u.LocalAddr
	if !laddr.IsValid() {
		laddr = netip.IPv4Unspecified()
	} else if !laddr.Unmap().Is4() {
		return errIPv4Only
	}
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(netip.AddrPortFrom(laddr.Unmap(), localPort)))
	if err != nil {
		return err
	}
	pc := ipv4.NewPacketConn(conn)
	if u.TTL > 0 {
		err = pc.SetTTL(u.TTL)
		if err != nil {
			conn.Close()
			return err
		}
	}
	u.conn = conn
	u.pc = pc
	return nil
}

// LocalPort returns the bound port, useful after opening with port 0.
func (u *UDPConn) LocalPort() uint16 {
	if u.conn == nil {
		return 0
	}
	return u.conn.LocalAddr().(*net.UDPAddr).AddrPort().Port()
}

func (u *UDPConn) BeginPacket(addr netip.Addr, port uint16) error {
	if u.conn == nil {
		return tinyntp.ErrNotOpen
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return errIPv4Only
	}
	u.dst = net.UDPAddrFromAddrPort(netip.AddrPortFrom(addr, port))
	u.txbuf = u.txbuf[:0]
	u.txopen = true
	return nil
}

func (u *UDPConn) Write(b []byte) (int, error) {
	if !u.txopen {
		return 0, errNoPacketBegun
	}
	u.txbuf = append(u.txbuf, b...)
	return len(b), nil
}

func (u *UDPConn) EndPacket() error {
	if !u.txopen {
		return errNoPacketBegun
	}
	u.txopen = false
	_, err := u.pc.WriteTo(u.txbuf, nil, u.dst)
	return err
}

// ParsePacket discards the current datagram and waits up to ReadWait for the
// next one. Socket errors, timeouts included, are reported as no datagram.
func (u *UDPConn) ParsePacket() int {
	u.rxn = 0
	u.roff = 0
	u.src = netip.AddrPort{}
	if u.conn == nil {
		return 0
	}
	wait := u.ReadWait
	if wait <= 0 {
		wait = DefaultReadWait
	}
	err := u.conn.SetReadDeadline(time.Now().Add(wait))
	if err != nil {
		return 0
	}
	n, _, src, err := u.pc.ReadFrom(u.rxbuf[:])
	if err != nil {
		return 0
	}
	if usrc, ok := src.(*net.UDPAddr); ok {
		u.src = usrc.AddrPort()
	}
	u.rxn = n
	return n
}

// Read reads the payload of the datagram selected by the last ParsePacket.
func (u *UDPConn) Read(b []byte) (int, error) {
	if u.rxn == 0 {
		return 0, errNoDatagram
	} else if u.roff >= u.rxn {
		return 0, io.EOF
	}
	n := copy(b, u.rxbuf[u.roff:u.rxn])
	u.roff += n
	return n, nil
}

// RemoteAddr returns the source of the datagram selected by the last ParsePacket.
func (u *UDPConn) RemoteAddr() netip.AddrPort { return u.src }

// Close closes the socket. The UDPConn may be opened again afterwards.
func (u *UDPConn) Close() error {
	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	u.pc = nil
	return err
}
