package udp

import (
	"errors"
	"testing"

	"github.com/soypat/tinyntp"
)

func TestAppendDatagram(t *testing.T) {
	payload := []byte("hello")
	prefix := []byte{0xff}
	buf, err := AppendDatagram(prefix, 123, 2390, payload)
	if err != nil {
		t.Fatal(err)
	}
	ufrm, err := NewFrame(buf[1:])
	if err != nil {
		t.Fatal(err)
	}
	var vld tinyntp.Validator
	ufrm.ValidateSize(&vld)
	if err := vld.ErrPop(); err != nil {
		t.Fatal(err)
	}
	if ufrm.SourcePort() != 123 || ufrm.DestinationPort() != 2390 {
		t.Errorf("got ports %d->%d", ufrm.SourcePort(), ufrm.DestinationPort())
	}
	if ufrm.Length() != SizeHeader+5 || string(ufrm.Payload()) != "hello" {
		t.Errorf("got length %d payload %q", ufrm.Length(), ufrm.Payload())
	}
	if ufrm.CRC() != 0 {
		t.Errorf("got crc %#x; want 0", ufrm.CRC())
	}
	if buf[0] != 0xff {
		t.Error("prefix overwritten")
	}
}

func TestValidateSize(t *testing.T) {
	var tests = []struct {
		name string
		buf  []byte
		want error
	}{
		{name: "short", buf: []byte{0, 1, 0, 1}, want: errShort},
		{name: "length under header", buf: []byte{0, 1, 0, 1, 0, 4, 0, 0}, want: errBadLen},
		{name: "length over buffer", buf: []byte{0, 1, 0, 1, 0, 9, 0, 0}, want: errShort},
		{name: "zero destination", buf: []byte{0, 1, 0, 0, 0, 8, 0, 0}, want: errZeroDst},
	}
	for _, tt := range tests {
		var vld tinyntp.Validator
		Frame{buf: tt.buf}.ValidateSize(&vld)
		if err := vld.ErrPop(); !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v; want %v", tt.name, err, tt.want)
		}
	}
	if _, err := NewFrame(make([]byte, SizeHeader-1)); err != tinyntp.ErrShortPacket {
		t.Errorf("got %v; want %v", err, tinyntp.ErrShortPacket)
	}
}

func TestIPv4Checksum(t *testing.T) {
	src := [4]byte{192, 0, 2, 1}
	dst := [4]byte{10, 0, 0, 2}
	payload := make([]byte, 49) // Odd length exercises padding.
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	buf, _ := AppendDatagram(nil, 123, 2390, payload)
	ufrm, _ := NewFrame(buf)
	const want = 0xb64d
	got := ufrm.CalculateIPv4Checksum(src, dst)
	if got != want {
		t.Fatalf("got checksum %#x; want %#x", got, want)
	}

	var vld tinyntp.Validator
	ufrm.ValidateIPv4Checksum(&vld, src, dst)
	if err := vld.ErrPop(); err != nil {
		t.Error("zero checksum must be accepted:", err)
	}
	ufrm.SetCRC(got)
	ufrm.ValidateIPv4Checksum(&vld, src, dst)
	if err := vld.ErrPop(); err != nil {
		t.Error(err)
	}
	buf[SizeHeader] ^= 0x80
	ufrm.ValidateIPv4Checksum(&vld, src, dst)
	if err := vld.ErrPop(); !errors.Is(err, errBadCRC) {
		t.Errorf("got %v; want %v", err, errBadCRC)
	}
}

func TestNeverZeroChecksum(t *testing.T) {
	if NeverZeroChecksum(0) != 0xffff || NeverZeroChecksum(0x1234) != 0x1234 {
		t.Error("NeverZeroChecksum mismatch")
	}
}
