// Package timefmt converts seconds since an epoch into wall clock hours,
// minutes and seconds and renders them as a fixed width HH:MM:SS string
// without allocating.
package timefmt

import "sync"

// SizeTimeString is the length of a formatted HH:MM:SS string.
const SizeTimeString = len("HH:MM:SS")

// Formatter converts seconds into time of day fields shifted by a fixed UTC
// hour offset. It keeps the last string it formatted. A Formatter is not
// safe for concurrent use.
type Formatter struct {
	utcOffset uint16
	hasPrev   bool
	prev      [SizeTimeString]byte
}

// New returns a Formatter that adds utcOffset hours to the hours field.
// The offset cannot be changed afterwards.
func New(utcOffset uint16) *Formatter {
	return &Formatter{utcOffset: utcOffset}
}

var shared struct {
	once sync.Once
	f    *Formatter
}

// Instance returns the process wide Formatter, creating it with utcOffset on
// the first call. The offset of later calls is ignored.
func Instance(utcOffset uint16) *Formatter {
	shared.once.Do(func() {
		shared.f = New(utcOffset)
	})
	return shared.f
}

// Default returns the process wide Formatter, creating it with no UTC offset
// if it does not exist yet. See [Instance].
func Default() *Formatter {
	return Instance(0)
}

// UTCOffset returns the hour offset added to the hours field.
func (f *Formatter) UTCOffset() uint16 { return f.utcOffset }

// Hours returns the hour of day in [0,24) of secs shifted by the UTC offset.
func (f *Formatter) Hours(secs uint64) uint8 {
	return uint8((secs/3600%24 + uint64(f.utcOffset)) % 24)
}

// Minutes returns the minute of the hour in [0,60).
func (f *Formatter) Minutes(secs uint64) uint8 {
	return uint8(secs / 60 % 60)
}

// Seconds returns the second of the minute in [0,60).
func (f *Formatter) Seconds(secs uint64) uint8 {
	return uint8(secs % 60)
}

// Clock returns the hour, minute and second fields of secs.
func (f *Formatter) Clock(secs uint64) (hour, minute, second uint8) {
	return f.Hours(secs), f.Minutes(secs), f.Seconds(secs)
}

// TimeString formats secs as HH:MM:SS and stores the result for [Formatter.PreviousTimeString].
func (f *Formatter) TimeString(secs uint64) string {
	f.format(secs)
	return string(f.prev[:])
}

// AppendTimeString appends secs formatted as HH:MM:SS to dst and stores the
// result for [Formatter.PreviousTimeString].
func (f *Formatter) AppendTimeString(dst []byte, secs uint64) []byte {
	f.format(secs)
	return append(dst, f.prev[:]...)
}

// PreviousTimeString returns the last string formatted or the empty string
// if nothing was formatted yet.
func (f *Formatter) PreviousTimeString() string {
	if !f.hasPrev {
		return ""
	}
	return string(f.prev[:])
}

func (f *Formatter) format(secs uint64) {
	hour, minute, second := f.Clock(secs)
	put2Digits(f.prev[0:2], hour)
	f.prev[2] = ':'
	put2Digits(f.prev[3:5], minute)
	f.prev[5] = ':'
	put2Digits(f.prev[6:8], second)
	f.hasPrev = true
}

// put2Digits writes v in [0,100) as two zero padded decimal digits.
func put2Digits(dst []byte, v uint8) {
	dst[0] = '0' + v/10
	dst[1] = '0' + v%10
}
