package tinyntp

import (
	"errors"
	"fmt"
)

type ValidateFlags uint64

const (
	validateReserved ValidateFlags = 1 << iota
	// ValidateAllowMultiErrors makes the Validator keep every error added
	// instead of only the first one.
	ValidateAllowMultiErrors
	// ValidateAllowVersion3 accepts NTPv3 headers in addition to NTPv4.
	ValidateAllowVersion3
)

func (vf ValidateFlags) has(v ValidateFlags) bool {
	return vf&v == v
}

// Validator accumulates errors found while checking a frame's fields.
// The zero value is ready to use and keeps only the first error.
type Validator struct {
	accum []error
	flags ValidateFlags
}

func NewValidator(flags ValidateFlags) Validator {
	return Validator{flags: flags}
}

func (v *Validator) Flags() ValidateFlags {
	return v.flags
}

func (v *Validator) HasFlags(flags ValidateFlags) bool {
	return v.flags.has(flags)
}

func (v *Validator) ResetErr() {
	v.accum = v.accum[:0]
}

func (v *Validator) HasError() bool {
	if v.flags.has(validateReserved) {
		panic("reserved bit set")
	}
	return len(v.accum) != 0
}

func (v *Validator) Err() error {
	if len(v.accum) == 1 {
		return v.accum[0]
	} else if len(v.accum) == 0 {
		return nil
	}
	return errors.Join(v.accum...)
}

// ErrPop returns the accumulated error and resets the Validator.
func (v *Validator) ErrPop() error {
	err := v.Err()
	v.ResetErr()
	return err
}

func (v *Validator) AddError(err error) {
	if err == nil {
		panic("error argument to AddError cannot be nil")
	} else if len(v.accum) != 0 && !v.flags.has(ValidateAllowMultiErrors) {
		return
	}
	v.accum = append(v.accum, err)
}

// AddBitPosErr adds an error located at a bit range of the frame.
func (v *Validator) AddBitPosErr(bitStart, bitLen int, err error) {
	if err == nil {
		panic("err argument to AddBitPosErr cannot be nil")
	} else if bitLen <= 0 {
		panic("bitLen must be positive")
	} else if len(v.accum) != 0 && !v.flags.has(ValidateAllowMultiErrors) {
		return
	}
	// Stored by value so errors already returned survive ResetErr.
	v.accum = append(v.accum, BitPosErr{BitStart: bitStart, BitLen: bitLen, Err: err})
}

type BitPosErr struct {
	BitStart int
	BitLen   int
	Err      error
}

func (bpe BitPosErr) Error() string {
	return fmt.Sprintf("%s at bits %d..%d", bpe.Err.Error(), bpe.BitStart, bpe.BitStart+bpe.BitLen)
}

func (bpe BitPosErr) Unwrap() error { return bpe.Err }
