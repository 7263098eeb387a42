package udp

import (
	"encoding/binary"
)

const protoUDP = 17

// CRC791 function as defined by RFC 791. The Checksum field for UDP
// is the 16-bit ones' complement of the ones' complement sum of
// the IPv4 pseudo header, the UDP header and the payload. In case of
// uneven number of octet the last word is LSB padded with zeros.
//
// The zero value of CRC791 is ready to use.
type CRC791 struct {
	sum uint32
}

func checksum16(sum uint32) uint16 {
	sum = (sum & 0xffff) + sum>>16
	// the max value of sum at this point is 0x1fffe, so an additional round is enough
	return ^uint16(sum + sum>>16)
}

func checksumWriteEven(sum uint32, buff []byte) uint32 {
	for i := 0; i < len(buff); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(buff[i:]))
	}
	return sum
}

// WriteEven adds the bytes in buff to the running checksum. The buffer size must be even or the function will panic.
func (c *CRC791) WriteEven(buff []byte) {
	c.sum = checksumWriteEven(c.sum, buff)
}

// AddUint16 adds a 16 bit value to the running checksum interpreted as BigEndian (network order).
func (c *CRC791) AddUint16(value uint16) {
	c.sum += uint32(value)
}

// PayloadSum16 returns the checksum resulting by adding the bytes in buff to the running checksum.
func (c *CRC791) PayloadSum16(buff []byte) uint16 {
	odd := len(buff) & 1
	sum := checksumWriteEven(c.sum, buff[:len(buff)-odd])
	if odd > 0 {
		sum += uint32(buff[len(buff)-1]) << 8
	}
	return checksum16(sum)
}

// Reset zeros out the CRC791, resetting it to the initial state.
func (c *CRC791) Reset() { *c = CRC791{} }

// NeverZeroChecksum ensures that the given checksum is not zero, by returning 0xffff instead.
// A zero UDP checksum means no checksum was computed.
func NeverZeroChecksum(sum16 uint16) uint16 {
	// 0x0000 and 0xffff are the same number in ones' complement math
	if sum16 == 0 {
		return 0xffff
	}
	return sum16
}

// CalculateIPv4Checksum returns the checksum of the datagram sent from src to
// dst. The checksum field itself is skipped so the result can be compared
// against [Frame.CRC]. Call [Frame.ValidateSize] beforehand to avoid panics.
func (ufrm Frame) CalculateIPv4Checksum(src, dst [4]byte) uint16 {
	var crc CRC791
	length := ufrm.Length()
	crc.WriteEven(src[:])
	crc.WriteEven(dst[:])
	crc.AddUint16(protoUDP)
	crc.AddUint16(length)
	crc.WriteEven(ufrm.buf[:6])
	return NeverZeroChecksum(crc.PayloadSum16(ufrm.buf[SizeHeader:length]))
}
