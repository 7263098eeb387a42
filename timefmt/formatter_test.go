package timefmt

import (
	"math"
	"math/rand"
	"regexp"
	"testing"
)

var timeStringRegexp = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)

func TestFieldRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	edge := []uint64{0, 59, 60, 3599, 3600, 86399, 86400, math.MaxUint32, math.MaxUint64}
	for _, offset := range []uint16{0, 1, 23, 24, 100, math.MaxUint16} {
		f := New(offset)
		check := func(secs uint64) {
			h, m, s := f.Clock(secs)
			if h >= 24 || m >= 60 || s >= 60 {
				t.Fatalf("offset=%d secs=%d: out of range fields %d:%d:%d", offset, secs, h, m, s)
			}
			str := f.TimeString(secs)
			if !timeStringRegexp.MatchString(str) {
				t.Fatalf("offset=%d secs=%d: bad time string %q", offset, secs, str)
			}
		}
		for _, secs := range edge {
			check(secs)
		}
		for i := 0; i < 1000; i++ {
			check(rng.Uint64())
		}
	}
}

func TestClockRoundTrip(t *testing.T) {
	f := New(0)
	for h := uint64(0); h < 24; h++ {
		for m := uint64(0); m < 60; m += 7 {
			for s := uint64(0); s < 60; s += 11 {
				secs := h*3600 + m*60 + s
				gh, gm, gs := f.Clock(secs)
				if uint64(gh) != h || uint64(gm) != m || uint64(gs) != s {
					t.Fatalf("secs=%d: got %d:%d:%d; want %d:%d:%d", secs, gh, gm, gs, h, m, s)
				}
			}
		}
	}
}

func TestUTCOffsetWraps(t *testing.T) {
	f := New(23)
	const twoAM = 2 * 3600
	if got := f.Hours(twoAM); got != 1 {
		t.Errorf("got hour %d; want 1", got)
	}
	if got := f.Minutes(twoAM + 61); got != 1 {
		t.Errorf("offset must not affect minutes: got %d; want 1", got)
	}
	// Offset is applied before the modulo, so 24 is the same as no offset.
	if New(24).Hours(twoAM) != New(0).Hours(twoAM) {
		t.Error("offset of 24 should equal offset of 0")
	}
}

func TestTimeString(t *testing.T) {
	var tests = []struct {
		offset uint16
		secs   uint64
		want   string
	}{
		{offset: 0, secs: 0, want: "00:00:00"},
		{offset: 0, secs: 9*3600 + 5*60 + 7, want: "09:05:07"},
		{offset: 0, secs: 23*3600 + 59*60 + 59, want: "23:59:59"},
		{offset: 0, secs: 86400, want: "00:00:00"},
		{offset: 2, secs: 23 * 3600, want: "01:00:00"},
		// 2023-11-14 22:13:20 UTC.
		{offset: 0, secs: 1700000000, want: "22:13:20"},
		{offset: 3, secs: 1700000000, want: "01:13:20"},
	}
	for _, tt := range tests {
		f := New(tt.offset)
		got := f.TimeString(tt.secs)
		if got != tt.want {
			t.Errorf("offset=%d secs=%d: got %q; want %q", tt.offset, tt.secs, got, tt.want)
		}
		if prev := f.PreviousTimeString(); prev != got {
			t.Errorf("previous string %q; want %q", prev, got)
		}
	}
}

func TestPreviousTimeString(t *testing.T) {
	f := New(0)
	if prev := f.PreviousTimeString(); prev != "" {
		t.Fatalf("expected empty previous string before formatting, got %q", prev)
	}
	f.TimeString(61)
	f.TimeString(3600)
	if prev := f.PreviousTimeString(); prev != "01:00:00" {
		t.Errorf("got %q; want last formatted string", prev)
	}
	// Field getters do not touch the stored string.
	f.Hours(7200)
	f.Clock(12345)
	if prev := f.PreviousTimeString(); prev != "01:00:00" {
		t.Errorf("field getters changed previous string to %q", prev)
	}
}

func TestAppendTimeString(t *testing.T) {
	f := New(0)
	var buf [32]byte
	b := append(buf[:0], "now="...)
	b = f.AppendTimeString(b, 3*3600+4*60+5)
	if string(b) != "now=03:04:05" {
		t.Errorf("got %q", b)
	}
	if f.PreviousTimeString() != "03:04:05" {
		t.Errorf("append did not store result, got %q", f.PreviousTimeString())
	}
	allocs := testing.AllocsPerRun(100, func() {
		b = f.AppendTimeString(b[:0], 12345)
	})
	if allocs != 0 {
		t.Errorf("AppendTimeString allocated %v times", allocs)
	}
}

func TestInstanceFirstOffsetPersists(t *testing.T) {
	first := Instance(5)
	second := Instance(9)
	if first != second {
		t.Fatal("Instance returned different formatters")
	}
	if second.UTCOffset() != 5 {
		t.Errorf("got offset %d; want first offset 5", second.UTCOffset())
	}
	if Default() != first || Default().UTCOffset() != 5 {
		t.Error("Default must return the existing shared instance")
	}
}
