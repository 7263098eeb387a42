package ltesto

import (
	"errors"
	"io"
	"net/netip"
	"time"

	"github.com/soypat/tinyntp"
	"github.com/soypat/tinyntp/udp"
)

// Server scripts the behaviour of a remote address for a [Transport].
type Server struct {
	// Reply returns the payload sent back for a request payload. A nil
	// result means the server stays silent. A nil Reply never answers.
	Reply func(req []byte) []byte
	// Delay is the time after the request at which the reply becomes
	// visible to ParsePacket. It requires the Transport to have a Clock.
	Delay time.Duration
}

// Datagram is a UDP datagram, header included, exchanged with a remote address.
type Datagram struct {
	// Addr is the destination of sent datagrams and the source of received ones.
	Addr netip.Addr
	Data []byte
	at   time.Time
}

// Frame returns the UDP frame of the datagram.
func (d Datagram) Frame() udp.Frame {
	ufrm, _ := udp.NewFrame(d.Data)
	return ufrm
}

// Payload returns the UDP payload of the datagram.
func (d Datagram) Payload() []byte { return d.Frame().Payload() }

var errNoDatagram = errors.New("ltesto: no current datagram")

// DefaultLocalAddr is the local address of a [Transport] with no LocalAddr set.
var DefaultLocalAddr = netip.AddrFrom4([4]byte{10, 0, 0, 2})

// Transport is an in-memory packet oriented UDP transport. Sent datagrams
// are recorded and answered by the scripted Servers. The zero value is ready
// to use; servers not present in Servers never reply.
type Transport struct {
	Servers map[netip.Addr]Server
	// Clock, if set, gates delayed replies.
	Clock *Clock
	// OpenErr is returned by Open when set.
	OpenErr error
	// LocalAddr is the transport's own address used for UDP checksums.
	// Defaults to [DefaultLocalAddr].
	LocalAddr netip.Addr

	lport  uint16
	open   bool
	closed bool
	tx     []byte
	txaddr netip.Addr
	sent   []Datagram
	rx     []Datagram
	cur    Datagram
	hasCur bool
	roff   int
	vld    tinyntp.Validator
}

func (tr *Transport) Open(localPort uint16) error {
	if tr.OpenErr != nil {
		return tr.OpenErr
	}
	tr.lport = localPort
	tr.open = true
	tr.closed = false
	return nil
}

func (tr *Transport) BeginPacket(addr netip.Addr, port uint16) (err error) {
	if !tr.open {
		return tinyntp.ErrNotOpen
	}
	tr.tx, err = udp.AppendDatagram(tr.tx[:0], tr.lport, port, nil)
	tr.txaddr = addr
	return err
}

func (tr *Transport) Write(b []byte) (int, error) {
	if len(tr.tx) < udp.SizeHeader {
		return 0, errors.New("ltesto: write before BeginPacket")
	}
	tr.tx = append(tr.tx, b...)
	return len(b), nil
}

func (tr *Transport) EndPacket() error {
	if len(tr.tx) < udp.SizeHeader {
		return errors.New("ltesto: EndPacket before BeginPacket")
	}
	ufrm, _ := udp.NewFrame(tr.tx)
	ufrm.SetLength(uint16(len(tr.tx)))
	ufrm.ValidateSize(&tr.vld)
	if err := tr.vld.ErrPop(); err != nil {
		return err
	}
	tr.setChecksum(ufrm, tr.localAddr(), tr.txaddr)
	dg := Datagram{Addr: tr.txaddr, Data: append([]byte(nil), tr.tx...), at: tr.now()}
	tr.sent = append(tr.sent, dg)
	tr.tx = tr.tx[:0]

	sv, ok := tr.Servers[dg.Addr]
	if !ok || sv.Reply == nil {
		return nil
	}
	reply := sv.Reply(dg.Payload())
	if reply == nil {
		return nil
	}
	return tr.deliver(dg.Addr, ufrm.DestinationPort(), reply, dg.at.Add(sv.Delay))
}

// Deliver queues payload as a datagram received from addr:srcPort, visible immediately.
func (tr *Transport) Deliver(addr netip.Addr, srcPort uint16, payload []byte) error {
	return tr.deliver(addr, srcPort, payload, tr.now())
}

func (tr *Transport) deliver(addr netip.Addr, srcPort uint16, payload []byte, at time.Time) error {
	data, err := udp.AppendDatagram(nil, srcPort, tr.lport, payload)
	if err != nil {
		return err
	}
	ufrm, _ := udp.NewFrame(data)
	tr.setChecksum(ufrm, addr, tr.localAddr())
	tr.rx = append(tr.rx, Datagram{Addr: addr, Data: data, at: at})
	return nil
}

func (tr *Transport) ParsePacket() int {
	tr.cur = Datagram{}
	tr.hasCur = false
	tr.roff = 0
	now := tr.now()
	for i, dg := range tr.rx {
		if dg.at.After(now) {
			continue
		}
		tr.rx = append(tr.rx[:i], tr.rx[i+1:]...)
		ufrm := dg.Frame()
		ufrm.ValidateSize(&tr.vld)
		if src, dst := dg.Addr.Unmap(), tr.localAddr().Unmap(); !tr.vld.HasError() && src.Is4() && dst.Is4() {
			ufrm.ValidateIPv4Checksum(&tr.vld, src.As4(), dst.As4())
		}
		if tr.vld.ErrPop() != nil {
			return 0 // Malformed datagrams are dropped.
		}
		tr.cur = dg
		tr.hasCur = true
		return len(dg.Payload())
	}
	return 0
}

func (tr *Transport) Read(b []byte) (int, error) {
	if !tr.hasCur {
		return 0, errNoDatagram
	}
	payload := tr.cur.Payload()
	if tr.roff >= len(payload) {
		return 0, io.EOF
	}
	n := copy(b, payload[tr.roff:])
	tr.roff += n
	return n, nil
}

func (tr *Transport) Close() error {
	tr.open = false
	tr.closed = true
	return nil
}

// LocalPort returns the port passed to Open.
func (tr *Transport) LocalPort() uint16 { return tr.lport }

// IsClosed reports whether Close was called after the last Open.
func (tr *Transport) IsClosed() bool { return tr.closed }

// Sent returns the datagrams sent so far in order.
func (tr *Transport) Sent() []Datagram { return tr.sent }

// Pending returns the number of received datagrams not yet parsed, delayed ones included.
func (tr *Transport) Pending() int { return len(tr.rx) }

// RemoteAddr returns the source of the datagram selected by the last ParsePacket.
func (tr *Transport) RemoteAddr() netip.AddrPort {
	if !tr.hasCur {
		return netip.AddrPort{}
	}
	return netip.AddrPortFrom(tr.cur.Addr, tr.cur.Frame().SourcePort())
}

func (tr *Transport) localAddr() netip.Addr {
	if tr.LocalAddr.IsValid() {
		return tr.LocalAddr
	}
	return DefaultLocalAddr
}

// setChecksum fills in the UDP checksum of datagrams between IPv4 addresses.
func (tr *Transport) setChecksum(ufrm udp.Frame, src, dst netip.Addr) {
	src, dst = src.Unmap(), dst.Unmap()
	if !src.Is4() || !dst.Is4() {
		return
	}
	ufrm.SetCRC(0)
	ufrm.SetCRC(ufrm.CalculateIPv4Checksum(src.As4(), dst.As4()))
}

func (tr *Transport) now() time.Time {
	if tr.Clock == nil {
		return time.Time{}
	}
	return tr.Clock.Now()
}
