// Package placeholder implements the two fixed-width serialisable PDF
// objects a signature dictionary reserves before the real signature is
// known: the /ByteRange array and the /Contents hex string. Both remember
// the file offset at which they were first written, so they can be
// back-patched once the digest (and later the CMS bytes) are available.
package placeholder

import (
	"errors"
	"fmt"
	"io"
)

// Errors returned by ByteRange and Contents, matching the named error-kind
// surface of the signing core.
var (
	ErrAlreadyFilled    = errors.New("placeholder: byte range already filled")
	ErrNoRecordedOffset = errors.New("placeholder: no recorded offset to fill")
	ErrTooLarge         = errors.New("placeholder: value exceeds reserved size")
)

// byteRangeLiteral is the exact width of a serialised ByteRange: the
// literal "[ %08d %08d %08d %08d ]".
const byteRangeLiteral = "[ 00000000 00000000 00000000 00000000 ]"

// ByteRangeWidth is the fixed width in bytes of a serialised /ByteRange
// value. Invariant (spec §3): after serialisation this is exactly 34 bytes.
const ByteRangeWidth = len(byteRangeLiteral)

// ByteRange is the placeholder for a signature dictionary's /ByteRange
// entry. It always serialises to the fixed 34-byte literal until
// FillOffsets overwrites it in place with the real region lengths.
type ByteRange struct {
	offset *int64
	filled bool

	values [4]int64
}

// WriteTo serialises the placeholder, recording the stream's current
// position as the offset to patch later. Safe to call exactly once;
// subsequent calls are a programmer error in the writer and panic would be
// the wrong response, so later finds simply overwrite the recorded offset.
func (b *ByteRange) WriteTo(w io.Writer, pos int64) (int64, error) {
	off := pos
	b.offset = &off
	n, err := io.WriteString(w, byteRangeLiteral)
	return int64(n), err
}

// Values returns the four integers last written by FillOffsets, or the
// zero value before it has been called.
func (b *ByteRange) Values() [4]int64 {
	return b.values
}

// FillOffsets seeks to the recorded offset and overwrites the literal with
// the real byte-range values, then restores the stream position.
//
// first_region_len = sigStart, second_region_offset = sigEnd,
// second_region_len = eof - sigEnd (spec §3's byte-range invariant).
func (b *ByteRange) FillOffsets(stream io.ReadWriteSeeker, sigStart, sigEnd, eof int64) error {
	if b.filled {
		return ErrAlreadyFilled
	}
	if b.offset == nil {
		return ErrNoRecordedOffset
	}

	old, err := stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	b.values = [4]int64{0, sigStart, sigEnd, eof - sigEnd}
	literal := fmt.Sprintf("[ %08d %08d %08d %08d ]",
		b.values[0], b.values[1], b.values[2], b.values[3])
	if len(literal) != ByteRangeWidth {
		return fmt.Errorf("placeholder: byte range value %q does not fit fixed width", literal)
	}

	if _, err := stream.Seek(*b.offset, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.WriteString(stream, literal); err != nil {
		return err
	}
	if _, err := stream.Seek(old, io.SeekStart); err != nil {
		return err
	}

	b.filled = true
	return nil
}
