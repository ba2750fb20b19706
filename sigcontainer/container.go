// Package sigcontainer implements the PDF signed-data container: the
// dictionary wrapping a byte-range/contents placeholder pair, and the
// two-phase "write signature" protocol used to compute a digest over an
// emitted revision and later back-patch it with the final CMS bytes.
//
// The protocol is a cooperative suspension point (spec §5): phase one runs
// to completion and returns a digest; external code (which may block on a
// hardware token or a timestamp authority) runs between the phases; phase
// two resumes with the signature bytes. This is modelled here as a state
// object with Begin/Finish methods rather than a goroutine+channel pair,
// since there is nothing to run concurrently with the caller.
package sigcontainer

import (
	"fmt"
	"hash"
	"io"

	"github.com/terminalkitten/pdf-stamp/placeholder"
)

// Writer is anything that can emit a PDF revision and report the stream
// position once it is done. It is satisfied by the incremental writer.
type Writer interface {
	WriteTo(stream io.ReadWriteSeeker) error
}

// Container wraps the byte-range and contents placeholders belonging to a
// single /Sig or /DocTimeStamp dictionary.
type Container struct {
	ByteRange *placeholder.ByteRange
	Contents  *placeholder.Contents

	newHash func() hash.Hash

	stream io.ReadWriteSeeker
	eof    int64
}

// New constructs a container around the given placeholders. newHash
// produces the digest algorithm to apply in Begin (the digest algorithm is
// a parameter per spec §4.2).
func New(br *placeholder.ByteRange, contents *placeholder.Contents, newHash func() hash.Hash) *Container {
	return &Container{ByteRange: br, Contents: contents, newHash: newHash}
}

// Begin runs phase one of the protocol: it lets w render the revision into
// stream, fills in the byte-range placeholder now that the EOF and the
// contents hole are both known, and returns the digest of the stream bytes
// outside the hole.
//
// stream must already contain the rendered revision positioned so that
// reading from offset 0 yields the whole thing; Begin seeks freely within
// it but restores nothing beyond what FillOffsets itself guarantees.
func (c *Container) Begin(stream io.ReadWriteSeeker) ([]byte, error) {
	eof, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("sigcontainer: seek to eof: %w", err)
	}
	c.stream = stream
	c.eof = eof

	sigStart, sigEnd, err := c.Contents.Offsets()
	if err != nil {
		return nil, fmt.Errorf("sigcontainer: %w", err)
	}

	if err := c.ByteRange.FillOffsets(stream, sigStart, sigEnd, eof); err != nil {
		return nil, fmt.Errorf("sigcontainer: %w", err)
	}

	digest, err := c.digest(stream, sigStart, sigEnd, eof)
	if err != nil {
		return nil, fmt.Errorf("sigcontainer: compute digest: %w", err)
	}
	return digest, nil
}

// digest hashes stream[0:sigStart] || stream[sigEnd:eof]. For a
// filebuffer-backed (in-memory) stream this is effectively zero-copy; for
// a true seekable file it reads in bounded chunks rather than the whole
// tail at once.
func (c *Container) digest(stream io.ReadWriteSeeker, sigStart, sigEnd, eof int64) ([]byte, error) {
	h := c.newHash()

	if mem, ok := stream.(memoryBacked); ok {
		buf := mem.Bytes()
		h.Write(buf[:sigStart])
		h.Write(buf[sigEnd:eof])
		return h.Sum(nil), nil
	}

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if err := copyRegion(h, stream, sigStart); err != nil {
		return nil, err
	}
	if _, err := stream.Seek(sigEnd, io.SeekStart); err != nil {
		return nil, err
	}
	if err := copyRegion(h, stream, eof-sigEnd); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// memoryBacked lets digest take the zero-copy path for in-memory buffers
// (e.g. *filebuffer.Buffer) instead of chunked reads.
type memoryBacked interface {
	Bytes() []byte
}

const chunkSize = 32 * 1024

func copyRegion(dst io.Writer, src io.Reader, length int64) error {
	if length <= 0 {
		return nil
	}
	buf := make([]byte, chunkSize)
	for length > 0 {
		n := int64(len(buf))
		if length < n {
			n = length
		}
		read, err := src.Read(buf[:n])
		if read > 0 {
			if _, werr := dst.Write(buf[:read]); werr != nil {
				return werr
			}
			length -= int64(read)
		}
		if err != nil {
			if err == io.EOF && length == 0 {
				return nil
			}
			return err
		}
	}
	return nil
}

// Finish runs phase two: it patches the contents hole with cmsDER and
// returns the completed stream bytes aren't re-read here — callers read
// them back from the same stream they passed to Begin.
func (c *Container) Finish(cmsDER []byte) error {
	if c.stream == nil {
		return fmt.Errorf("sigcontainer: Finish called before Begin")
	}
	if err := c.Contents.Patch(c.stream, cmsDER); err != nil {
		return fmt.Errorf("sigcontainer: %w", err)
	}
	return nil
}
