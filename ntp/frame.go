package ntp

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/tinyntp"
)

// NewFrame returns a new Frame with data set to buf.
// An error is returned if the buffer size is smaller than [SizeHeader].
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < SizeHeader {
		return Frame{buf: nil}, tinyntp.ErrShortPacket
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an NTP packet header
// and provides methods for manipulating, validating and
// retrieving fields. See [RFC5905].
//
// [RFC5905]: https://datatracker.ietf.org/doc/html/rfc5905#section-7.3
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (frm Frame) RawData() []byte { return frm.buf }

// Flags returns the mode, version and leap indicator packed in the first byte.
func (frm Frame) Flags() (mode Mode, version Version, leap LeapIndicator) {
	b := frm.buf[0]
	return Mode(b & 0b111), Version((b >> 3) & 0b111), LeapIndicator(b >> 6)
}

// SetFlags sets the first byte of the header. See [Frame.Flags].
func (frm Frame) SetFlags(mode Mode, version Version, leap LeapIndicator) {
	frm.buf[0] = byte(mode&0b111) | byte(version&0b111)<<3 | byte(leap&0b11)<<6
}

// Stratum of the clock of the packet's sender.
func (frm Frame) Stratum() Stratum { return Stratum(frm.buf[1]) }

// SetStratum sets the stratum field. See [Frame.Stratum].
func (frm Frame) SetStratum(s Stratum) { frm.buf[1] = byte(s) }

// Poll is the maximum interval between successive messages in log2 seconds.
func (frm Frame) Poll() int8 { return int8(frm.buf[2]) }

// SetPoll sets the poll exponent field. See [Frame.Poll].
func (frm Frame) SetPoll(poll int8) { frm.buf[2] = byte(poll) }

// Precision of the sender's clock in log2 seconds. A value of -20 is about a microsecond.
func (frm Frame) Precision() int8 { return int8(frm.buf[3]) }

// SetPrecision sets the precision exponent field. See [Frame.Precision].
func (frm Frame) SetPrecision(prec int8) { frm.buf[3] = byte(prec) }

// RootDelay is the total round-trip delay to the reference clock in NTP short format (16.16).
func (frm Frame) RootDelay() uint32 { return binary.BigEndian.Uint32(frm.buf[4:8]) }

// RootDispersion is the total dispersion to the reference clock in NTP short format (16.16).
func (frm Frame) RootDispersion() uint32 { return binary.BigEndian.Uint32(frm.buf[8:12]) }

// ReferenceID returns a pointer to the 4 byte reference identifier. For
// stratum 1 servers this is an ASCII clock source code, for higher strata the
// IPv4 address of the upstream server and for KoD packets the kiss code.
func (frm Frame) ReferenceID() *[4]byte { return (*[4]byte)(frm.buf[12:16]) }

// SetReferenceID sets the reference identifier. See [Frame.ReferenceID].
func (frm Frame) SetReferenceID(id [4]byte) { *frm.ReferenceID() = id }

// ReferenceTime is the time the sender's clock was last set or corrected.
func (frm Frame) ReferenceTime() Timestamp { return frm.timestamp(16) }

// OriginTime is the client time at which the request departed for the server.
func (frm Frame) OriginTime() Timestamp { return frm.timestamp(24) }

// SetOriginTime sets the origin timestamp. See [Frame.OriginTime].
func (frm Frame) SetOriginTime(ts Timestamp) { frm.setTimestamp(24, ts) }

// ReceiveTime is the server time at which the request arrived.
func (frm Frame) ReceiveTime() Timestamp { return frm.timestamp(32) }

// TransmitTime is the time at which the reply departed the server for the client.
func (frm Frame) TransmitTime() Timestamp { return frm.timestamp(40) }

// SetTransmitTime sets the transmit timestamp. See [Frame.TransmitTime].
func (frm Frame) SetTransmitTime(ts Timestamp) { frm.setTimestamp(40, ts) }

func (frm Frame) timestamp(off int) Timestamp {
	return Timestamp(binary.BigEndian.Uint64(frm.buf[off : off+8]))
}

func (frm Frame) setTimestamp(off int, ts Timestamp) {
	binary.BigEndian.PutUint64(frm.buf[off:off+8], uint64(ts))
}

// ClearHeader zeros out the header contents.
func (frm Frame) ClearHeader() {
	for i := range frm.buf[:SizeHeader] {
		frm.buf[i] = 0
	}
}

//
// Validation API.
//

var (
	errShort       = errors.New("ntp: short buffer")
	errBadVersion  = errors.New("ntp: unsupported version")
	errBadMode     = errors.New("ntp: not a server reply")
	errZeroXmtTime = errors.New("ntp: zero transmit time")
)

// ValidateSize checks the frame's buffer holds at least a full header.
func (frm Frame) ValidateSize(v *tinyntp.Validator) {
	if len(frm.buf) < SizeHeader {
		v.AddError(errShort)
	}
}

// ValidateExceptCRC checks the frame is a well formed reply from a server:
// version 4 (or 3 with [tinyntp.ValidateAllowVersion3]), server or broadcast mode
// and a non-zero transmit timestamp. NTP has no checksum of its own.
func (frm Frame) ValidateExceptCRC(v *tinyntp.Validator) {
	frm.ValidateSize(v)
	if v.HasError() {
		return
	}
	mode, version, _ := frm.Flags()
	if version != Version4 && !(version == Version3 && v.HasFlags(tinyntp.ValidateAllowVersion3)) {
		v.AddBitPosErr(2, 3, errBadVersion)
	}
	if mode != ModeServer && mode != ModeBroadcast {
		v.AddBitPosErr(5, 3, errBadMode)
	}
	if frm.TransmitTime().IsZero() {
		v.AddBitPosErr(40*8, 64, errZeroXmtTime)
	}
}
