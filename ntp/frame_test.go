package ntp

import (
	"errors"
	"testing"
	"time"

	"github.com/soypat/tinyntp"
)

func TestFrameFlags(t *testing.T) {
	var buf [SizeHeader]byte
	frm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	for mode := Mode(0); mode < 8; mode++ {
		for _, version := range []Version{Version3, Version4} {
			for leap := LeapNoWarning; leap <= LeapNotSynced; leap++ {
				frm.SetFlags(mode, version, leap)
				gm, gv, gl := frm.Flags()
				if gm != mode || gv != version || gl != leap {
					t.Fatalf("got %v,%v,%v; want %v,%v,%v", gm, gv, gl, mode, version, leap)
				}
			}
		}
	}
	frm.SetFlags(ModeClient, Version4, LeapNotSynced)
	if buf[0] != 0xE3 {
		t.Errorf("got first byte %#x; want 0xe3", buf[0])
	}
}

func TestNewFrameShort(t *testing.T) {
	_, err := NewFrame(make([]byte, SizeHeader-1))
	if err != tinyntp.ErrShortPacket {
		t.Errorf("got %v; want %v", err, tinyntp.ErrShortPacket)
	}
}

func TestConstructRequest(t *testing.T) {
	var c Client
	c.buf[20] = 0xaa // Leftover from a previous reply.
	c.constructRequest()
	want := [SizeHeader]byte{0: 0xE3, 1: 0, 2: 6, 3: 0xEC, 12: '1', 13: 'N', 14: '1', 15: '4'}
	if c.buf != want {
		t.Errorf("got request %x; want %x", c.buf, want)
	}
	frm, _ := NewFrame(c.buf[:])
	if frm.Precision() != DefaultPrecision || frm.Poll() != DefaultPoll {
		t.Errorf("got precision %d poll %d", frm.Precision(), frm.Poll())
	}
	if frm.Stratum() != StratumUnspecified {
		t.Errorf("got stratum %v", frm.Stratum())
	}
}

func TestTransmitTimeDecode(t *testing.T) {
	var buf [SizeHeader]byte
	copy(buf[40:44], []byte{0x83, 0xAA, 0x7E, 0x81})
	frm, _ := NewFrame(buf[:])
	xmt := frm.TransmitTime()
	if xmt.Seconds() != 0x83AA7E81 {
		t.Fatalf("got seconds %#x", xmt.Seconds())
	}
	if xmt.UnixSeconds() != 1 {
		t.Errorf("got unix seconds %d; want 1", xmt.UnixSeconds())
	}
	if !xmt.Time().Equal(time.Unix(1, 0)) {
		t.Errorf("got time %v; want 1970-01-01T00:00:01Z", xmt.Time())
	}
	// Before the Unix epoch seconds wrap around as unsigned 32 bit values.
	copy(buf[40:44], []byte{0, 0, 0, 1})
	if got := frm.TransmitTime().UnixSeconds(); got != 1-UnixEpochOffset+1<<32 {
		t.Errorf("got %d", got)
	}
}

func TestTimestampTime(t *testing.T) {
	var tests = []time.Time{
		time.Unix(0, 0),
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 23, 59, 59, 999_999_999, time.UTC),
		time.Date(2036, 2, 7, 6, 28, 15, 500_000_000, time.UTC), // Last second of era 0.
	}
	for _, want := range tests {
		ts := TimestampFromTime(want)
		got := ts.Time()
		if diff := got.Sub(want); diff < -time.Nanosecond || diff > time.Nanosecond {
			t.Errorf("got %v; want %v (diff %v)", got, want, diff)
		}
		if ts.UnixSeconds() != uint32(want.Unix()) {
			t.Errorf("got unix seconds %d; want %d", ts.UnixSeconds(), want.Unix())
		}
	}
	if BaseTime().Unix() != -UnixEpochOffset {
		t.Errorf("base time %v", BaseTime())
	}
}

func TestTimestampAddSub(t *testing.T) {
	base := TimestampFromTime(time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC))
	for _, d := range []time.Duration{0, time.Nanosecond * 500, time.Millisecond, -time.Second, 36 * time.Hour, -1234567 * time.Microsecond} {
		got := base.Add(d).Sub(base)
		if diff := got - d; diff < -time.Nanosecond || diff > time.Nanosecond {
			t.Errorf("Add(%v).Sub = %v", d, got)
		}
	}
	if !TimestampFromUint64(0).IsZero() || base.IsZero() {
		t.Error("IsZero mismatch")
	}
	half := TimestampFromUint64(1 << 31)
	if half.Fraction() != 1<<31 || half.Seconds() != 0 {
		t.Errorf("got %d.%d", half.Seconds(), half.Fraction())
	}
}

func TestValidateExceptCRC(t *testing.T) {
	var buf [SizeHeader]byte
	frm, _ := NewFrame(buf[:])
	frm.SetFlags(ModeServer, Version4, LeapNoWarning)
	frm.SetTransmitTime(TimestampFromUint64(1 << 32))

	var vld tinyntp.Validator
	frm.ValidateExceptCRC(&vld)
	if err := vld.ErrPop(); err != nil {
		t.Fatal("valid frame:", err)
	}

	frm.SetFlags(ModeServer, Version3, LeapNoWarning)
	frm.ValidateExceptCRC(&vld)
	if !errors.Is(vld.ErrPop(), errBadVersion) {
		t.Error("version 3 accepted without flag")
	}
	vld3 := tinyntp.NewValidator(tinyntp.ValidateAllowVersion3)
	frm.ValidateExceptCRC(&vld3)
	if err := vld3.ErrPop(); err != nil {
		t.Error("version 3 rejected with flag:", err)
	}

	frm.SetFlags(ModeClient, 7, LeapNoWarning)
	frm.SetTransmitTime(0)
	multi := tinyntp.NewValidator(tinyntp.ValidateAllowMultiErrors)
	frm.ValidateExceptCRC(&multi)
	err := multi.ErrPop()
	for _, want := range []error{errBadVersion, errBadMode, errZeroXmtTime} {
		if !errors.Is(err, want) {
			t.Errorf("missing error %q in %v", want, err)
		}
	}

	var short tinyntp.Validator
	Frame{buf: buf[:10]}.ValidateExceptCRC(&short)
	if !errors.Is(short.ErrPop(), errShort) {
		t.Error("short frame accepted")
	}
}

func TestStratumString(t *testing.T) {
	var tests = []struct {
		s    Stratum
		want string
	}{
		{0, "unspecified"}, {1, "primary"}, {2, "secondary"}, {15, "secondary"}, {16, "unsynchronized"}, {200, "invalid"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("stratum %d: got %q; want %q", tt.s, got, tt.want)
		}
		if tt.s.IsSecondary() != (tt.want == "secondary") {
			t.Errorf("stratum %d: IsSecondary mismatch", tt.s)
		}
	}
}
