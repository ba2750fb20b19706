package placeholder

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
)

// Contents is the placeholder for a signature dictionary's /Contents hex
// string. It serialises as '<' followed by BytesReserved ASCII '0'
// characters and '>', and records the offsets of the two delimiters the
// first time it is written so the hole can be located later without
// re-scanning the buffer.
type Contents struct {
	// BytesReserved is the number of hex digits reserved between the
	// angle brackets. Must be even (one CMS byte = two hex chars).
	BytesReserved int

	startOffset *int64 // offset of '<'
	endOffset   *int64 // offset just past '>'
	patched     bool
}

// NewContents constructs a placeholder reserving bytesReserved hex digits.
func NewContents(bytesReserved int) (*Contents, error) {
	if bytesReserved%2 != 0 {
		return nil, fmt.Errorf("placeholder: bytes reserved must be even, got %d", bytesReserved)
	}
	return &Contents{BytesReserved: bytesReserved}, nil
}

// WriteTo serialises the placeholder at the stream's current position and
// records the start/end offsets of the hole.
func (c *Contents) WriteTo(w io.Writer, pos int64) (int64, error) {
	start := pos
	c.startOffset = &start

	var n int64
	wn, err := io.WriteString(w, "<")
	n += int64(wn)
	if err != nil {
		return n, err
	}

	padding := bytes.Repeat([]byte{'0'}, c.BytesReserved)
	pn, err := w.Write(padding)
	n += int64(pn)
	if err != nil {
		return n, err
	}

	wn, err = io.WriteString(w, ">")
	n += int64(wn)
	if err != nil {
		return n, err
	}

	end := start + n
	c.endOffset = &end
	return n, nil
}

// Offsets returns (sigStart, sigEnd): the absolute stream positions of the
// '<' and the byte just past '>', respectively. These are the boundaries
// excluded from the digest (spec §3).
func (c *Contents) Offsets() (int64, int64, error) {
	if c.startOffset == nil || c.endOffset == nil {
		return 0, 0, ErrNoRecordedOffset
	}
	return *c.startOffset, *c.endOffset, nil
}

// Patch back-fills the hole with the uppercase hex encoding of cms,
// right-padded with '0' to fill BytesReserved characters exactly.
func (c *Contents) Patch(stream io.WriteSeeker, cms []byte) error {
	if c.startOffset == nil {
		return ErrNoRecordedOffset
	}
	if 2*len(cms) > c.BytesReserved {
		return fmt.Errorf("%w: cms is %d bytes (%d hex chars), reservation is %d hex chars",
			ErrTooLarge, len(cms), 2*len(cms), c.BytesReserved)
	}

	encoded := make([]byte, hex.EncodedLen(len(cms)))
	hex.Encode(encoded, cms)
	for i, b := range encoded {
		encoded[i] = toUpperHexDigit(b)
	}

	padded := make([]byte, c.BytesReserved)
	copy(padded, encoded)
	for i := len(encoded); i < c.BytesReserved; i++ {
		padded[i] = '0'
	}

	if _, err := stream.Seek(*c.startOffset+1, io.SeekStart); err != nil {
		return err
	}
	if _, err := stream.Write(padded); err != nil {
		return err
	}

	c.patched = true
	return nil
}

func toUpperHexDigit(b byte) byte {
	if b >= 'a' && b <= 'f' {
		return b - ('a' - 'A')
	}
	return b
}
