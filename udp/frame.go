// Package udp implements UDP datagram framing and the RFC 791 checksum over the
// IPv4 pseudo header. Hosts send datagrams through the operating system, so its
// user is the in-memory transport of internal/ltesto, which carries NTP payloads
// as real datagrams in tests.
package udp

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/soypat/tinyntp"
)

// SizeHeader is the length of a UDP header in bytes.
const SizeHeader = 8

// NewFrame returns a new Frame with data set to buf.
// An error is returned if the buffer size is smaller than 8.
// Users should still call [Frame.ValidateSize] before working
// with the payload of frames to avoid panics.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < SizeHeader {
		return Frame{buf: buf}, tinyntp.ErrShortPacket
	}
	return Frame{buf: buf}, nil
}

// AppendDatagram appends a UDP header followed by payload to dst. The
// checksum is left zero, which UDP over IPv4 defines as "not computed".
func AppendDatagram(dst []byte, srcPort, dstPort uint16, payload []byte) ([]byte, error) {
	if len(payload) > math.MaxUint16-SizeHeader {
		return dst, errTooLong
	}
	off := len(dst)
	dst = append(dst, make([]byte, SizeHeader)...)
	ufrm := Frame{buf: dst[off:]}
	ufrm.ClearHeader()
	ufrm.SetSourcePort(srcPort)
	ufrm.SetDestinationPort(dstPort)
	ufrm.SetLength(uint16(SizeHeader + len(payload)))
	return append(dst, payload...), nil
}

// Frame encapsulates the raw data of a UDP datagram
// and provides methods for manipulating, validating and
// retrieving fields and payload data. See [RFC768].
//
// [RFC768]: https://tools.ietf.org/html/rfc768
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (ufrm Frame) RawData() []byte { return ufrm.buf }

// SourcePort identifies the sending port for the UDP packet. Must be non-zero.
func (ufrm Frame) SourcePort() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[0:2])
}

// SetSourcePort sets UDP source port. See [Frame.SourcePort]
func (ufrm Frame) SetSourcePort(src uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[0:2], src)
}

// DestinationPort identifies the receiving port for the UDP packet. Must be non-zero.
func (ufrm Frame) DestinationPort() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[2:4])
}

// SetDestinationPort sets UDP destination port. See [Frame.DestinationPort]
func (ufrm Frame) SetDestinationPort(dst uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[2:4], dst)
}

// Length specifies length in bytes of UDP header and UDP payload. The minimum length
// is 8 bytes (UDP header length).
func (ufrm Frame) Length() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[4:6])
}

// SetLength sets the UDP header's length field. See [Frame.Length].
func (ufrm Frame) SetLength(length uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[4:6], length)
}

// CRC returns the checksum field in the UDP header.
func (ufrm Frame) CRC() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[6:8])
}

// SetCRC sets the checksum field of the UDP header. See [Frame.CalculateIPv4Checksum].
func (ufrm Frame) SetCRC(crc uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[6:8], crc)
}

// Payload returns the payload content section of the UDP packet.
// Be sure to call [Frame.ValidateSize] beforehand to avoid panic.
func (ufrm Frame) Payload() []byte {
	l := ufrm.Length()
	return ufrm.buf[SizeHeader:l]
}

// ClearHeader zeros out the header contents.
func (ufrm Frame) ClearHeader() {
	for i := range ufrm.buf[:SizeHeader] {
		ufrm.buf[i] = 0
	}
}

//
// Validation API.
//

var (
	errBadLen  = errors.New("udp: bad UDP length")
	errShort   = errors.New("udp: short buffer")
	errTooLong = errors.New("udp: payload too long")
	errZeroDst = errors.New("udp: zero destination port")
	errBadCRC  = errors.New("udp: bad checksum")
)

// ValidateSize checks the frame's size fields and compares with the actual buffer
// the frame. It adds an error to v on finding an inconsistency.
func (ufrm Frame) ValidateSize(v *tinyntp.Validator) {
	if len(ufrm.buf) < SizeHeader {
		v.AddError(errShort)
		return
	}
	ul := ufrm.Length()
	if ul < SizeHeader {
		v.AddBitPosErr(32, 16, errBadLen)
	}
	if int(ul) > len(ufrm.buf) {
		v.AddError(errShort)
	}
	if ufrm.DestinationPort() == 0 {
		v.AddBitPosErr(16, 16, errZeroDst)
	}
}

// ValidateIPv4Checksum checks the checksum of a datagram sent from src to dst.
// A zero checksum field is accepted as not computed. Call after [Frame.ValidateSize].
func (ufrm Frame) ValidateIPv4Checksum(v *tinyntp.Validator, src, dst [4]byte) {
	crc := ufrm.CRC()
	if crc != 0 && crc != ufrm.CalculateIPv4Checksum(src, dst) {
		v.AddBitPosErr(48, 16, errBadCRC)
	}
}
