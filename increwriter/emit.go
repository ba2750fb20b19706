package increwriter

import (
	"fmt"
	"io"
)

// PositionedWriter is a writer that reports how many bytes have passed
// through it so far. Body-writer callbacks (see MarkUpdateFunc) use Offset
// to learn the exact absolute stream position at which to record a
// placeholder's offset (spec §9, "placeholder-offset recording").
type PositionedWriter interface {
	io.Writer
	Offset() int64
}

// countingWriter tracks how many bytes have passed through it, so the
// writer can record each dirty object's byte offset without requiring the
// destination to be seekable.
type countingWriter struct {
	w      io.Writer
	offset int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.offset += int64(n)
	return n, err
}

func (c *countingWriter) Offset() int64 { return c.offset }

// RootRef returns the prior revision's /Root reference. Signing never
// relocates the catalog; it is marked dirty in place via MarkUpdate/
// UpdateContainer and keeps its original object number.
func (w *Writer) RootRef() (Ref, error) {
	root := w.Prior.Trailer().Key("Root")
	ptr := root.GetPtr()
	if ptr.GetID() == 0 {
		return Ref{}, fmt.Errorf("increwriter: prior trailer has no /Root reference")
	}
	return Ref{ID: uint32(ptr.GetID()), Gen: uint16(ptr.GetGen())}, nil
}

// WriteTo renders the prior revision verbatim followed by an appended
// incremental update covering every object marked dirty since New, then a
// cross-reference section (matching the prior revision's table-vs-stream
// choice) and a trailer chaining back via /Prev.
func (w *Writer) WriteTo(output io.Writer) error {
	if w.encryptRef != nil && !w.keepEncrypted {
		return ErrCannotRemoveEncryption
	}

	if _, err := w.Input.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("increwriter: seek input to start: %w", err)
	}
	cw := &countingWriter{w: output}
	if _, err := io.CopyN(cw, w.Input, w.InputSize); err != nil {
		return fmt.Errorf("increwriter: copy prior revision: %w", err)
	}

	offsets := make(map[Ref]int64, len(w.order))
	for _, ref := range w.order {
		offsets[ref] = cw.offset
		if _, err := fmt.Fprintf(cw, "%d %d obj\n", ref.ID, ref.Gen); err != nil {
			return err
		}
		if err := w.dirty[ref](cw); err != nil {
			return fmt.Errorf("increwriter: write object %s: %w", ref, err)
		}
		if _, err := io.WriteString(cw, "\nendobj\n"); err != nil {
			return err
		}
	}

	root, err := w.RootRef()
	if err != nil {
		return err
	}

	switch w.Prior.XrefInformation.Type {
	case "table":
		tf, err := w.buildTrailerFields(root)
		if err != nil {
			return err
		}
		startXref := cw.offset
		if err := writeXrefTable(cw, w.order, offsets); err != nil {
			return err
		}
		if err := writeTrailerDict(cw, tf); err != nil {
			return err
		}
		return writeStartXref(cw, startXref)

	case "stream":
		selfRef := Ref{ID: w.nextFreeID, Gen: 0}
		tf, err := w.buildTrailerFields(root)
		if err != nil {
			return err
		}
		tf.size = w.nextFreeID + 1
		startXref := cw.offset
		extra := xrefStreamTrailerExtra(tf)
		if err := writeXrefStream(cw, w.order, offsets, selfRef, startXref, extra, w.Prior.XrefInformation.StartPos, tf.size); err != nil {
			return err
		}
		return writeStartXref(cw, startXref)

	default:
		return fmt.Errorf("increwriter: unsupported prior xref type %q", w.Prior.XrefInformation.Type)
	}
}

func writeStartXref(w io.Writer, pos int64) error {
	_, err := fmt.Fprintf(w, "startxref\n%d\n%%%%EOF\n", pos)
	return err
}
