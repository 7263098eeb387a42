package ntp

import (
	"math/bits"
	"time"
)

// Timestamp is a 64-bit NTP timestamp: unsigned seconds since the NTP epoch
// (1900-01-01 00:00 UTC) in the upper 32 bits and the fraction of a second in
// the lower 32 bits.
type Timestamp uint64

// TimestampFromUint64 returns the timestamp encoded by the raw 64 bit value.
func TimestampFromUint64(v uint64) Timestamp { return Timestamp(v) }

// TimestampFromTime returns the NTP timestamp of t in the era that
// contains t. Times before 1900 are not representable.
func TimestampFromTime(t time.Time) Timestamp {
	secs := uint64(t.Unix() + UnixEpochOffset)
	frac, _ := bits.Div64(uint64(t.Nanosecond()), 0, uint64(time.Second))
	return Timestamp(secs<<32 | frac>>32)
}

// BaseTime returns the NTP epoch.
func BaseTime() time.Time {
	return time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
}

// Seconds returns the whole seconds since the NTP epoch.
func (ts Timestamp) Seconds() uint32 { return uint32(ts >> 32) }

// Fraction returns the fractional second in units of 2**-32 s.
func (ts Timestamp) Fraction() uint32 { return uint32(ts) }

// UnixSeconds returns [Timestamp.Seconds] shifted to the Unix epoch using
// unsigned 32-bit arithmetic. Timestamps before 1970 wrap around.
func (ts Timestamp) UnixSeconds() uint32 {
	return ts.Seconds() - UnixEpochOffset
}

// IsZero reports whether the timestamp is the zero value, which NTP uses to
// signal an unknown or unset time.
func (ts Timestamp) IsZero() bool { return ts == 0 }

// Time returns the timestamp as a UTC time, assuming NTP era 0.
func (ts Timestamp) Time() time.Time {
	secs := int64(ts.Seconds()) - UnixEpochOffset
	nsec, _ := bits.Mul64(uint64(ts.Fraction())<<32, uint64(time.Second))
	return time.Unix(secs, int64(nsec)).UTC()
}

// Add returns the timestamp ts+d. Overflow wraps into the next era.
// |d| must be under 136 years.
func (ts Timestamp) Add(d time.Duration) Timestamp {
	return ts + Timestamp(durationToFixed(d))
}

// Sub returns the duration ts-other. The result is only meaningful for
// timestamps less than 68 years apart.
func (ts Timestamp) Sub(other Timestamp) time.Duration {
	diff := int64(ts - other)
	neg := diff < 0
	if neg {
		diff = -diff
	}
	hi, lo := bits.Mul64(uint64(diff), uint64(time.Second))
	d := time.Duration(hi<<32 | lo>>32)
	if neg {
		return -d
	}
	return d
}

func durationToFixed(d time.Duration) uint64 {
	neg := d < 0
	if neg {
		d = -d
	}
	q, _ := bits.Div64(uint64(d)>>32, uint64(d)<<32, uint64(time.Second))
	if neg {
		return -q
	}
	return q
}
