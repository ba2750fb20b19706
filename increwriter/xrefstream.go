package increwriter

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
)

// Cross-reference stream field widths: 1 byte type, 4 byte offset/object
// stream index, 2 byte generation/field-3. W = [1 4 2] (ISO 32000 §7.5.8).
// The reference xref-stream writer used [1 3 1] to match a narrower prior
// file; we widen it here since this writer always emits a fresh stream
// rather than patching one in place, and 4-byte offsets comfortably cover
// files the 3-byte form could not address.
const (
	xrefFieldType   = 1
	xrefFieldOffset = 4
	xrefFieldGen    = 2
	xrefEntryWidth  = xrefFieldType + xrefFieldOffset + xrefFieldGen
	xrefPredictor   = 12 // PNG "up"
)

// writeXrefStreamEntries serialises one row per ref in order (type-1,
// in-use entries only; this writer never emits free-list holes).
func writeXrefStreamEntries(order []Ref, offsets map[Ref]int64) ([]byte, error) {
	buf := make([]byte, 0, len(order)*xrefEntryWidth)
	for _, ref := range order {
		off, ok := offsets[ref]
		if !ok {
			return nil, fmt.Errorf("increwriter: no recorded offset for %s", ref)
		}
		var row [xrefEntryWidth]byte
		row[0] = 1
		binary.BigEndian.PutUint32(row[1:5], uint32(off))
		binary.BigEndian.PutUint16(row[5:7], ref.Gen)
		buf = append(buf, row[:]...)
	}
	return buf, nil
}

// encodePNGUp applies the PNG "up" predictor (each byte delta-encoded
// against the byte directly above it in the previous row) and deflates the
// result. Modeled on EncodePNGUPBytes.
func encodePNGUp(columns int, data []byte) ([]byte, error) {
	if len(data)%columns != 0 {
		return nil, fmt.Errorf("increwriter: xref stream data not a multiple of %d columns", columns)
	}
	rowCount := len(data) / columns

	prevRow := make([]byte, columns)
	var predicted bytes.Buffer
	row := make([]byte, columns)
	for i := 0; i < rowCount; i++ {
		src := data[columns*i : columns*(i+1)]
		for j := 0; j < columns; j++ {
			row[j] = byte(int(src[j]) - int(prevRow[j]))
		}
		copy(prevRow, src)
		predicted.WriteByte(2) // PNG filter-type byte: "Up"
		predicted.Write(row)
	}

	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(predicted.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// writeXrefStream emits a self-contained cross-reference stream object
// (ISO 32000 §7.5.8) covering exactly the objects in order, plus itself as
// the final entry at selfRef/selfOffset.
func writeXrefStream(w io.Writer, order []Ref, offsets map[Ref]int64, selfRef Ref, selfOffset int64, trailerExtra string, prevStartXref int64, size uint32) error {
	full := append(append([]Ref(nil), order...), selfRef)
	offsets[selfRef] = selfOffset

	raw, err := writeXrefStreamEntries(full, offsets)
	if err != nil {
		return err
	}
	encoded, err := encodePNGUp(xrefEntryWidth, raw)
	if err != nil {
		return err
	}

	subs := subsections(full)
	index := make([]byte, 0, len(subs)*8)
	for _, sub := range subs {
		index = append(index, []byte(fmt.Sprintf("%d %d ", sub.first, len(sub.entries)))...)
	}

	header := fmt.Sprintf(
		"%d %d obj\n<< /Type /XRef /Length %d /Filter /FlateDecode /DecodeParms << /Columns %d /Predictor %d >> /W [ %d %d %d ] /Prev %d /Size %d /Index [ %s] %s>>\nstream\n",
		selfRef.ID, selfRef.Gen,
		len(encoded),
		xrefEntryWidth, xrefPredictor,
		xrefFieldType, xrefFieldOffset, xrefFieldGen,
		prevStartXref, size,
		index,
		trailerExtra,
	)
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write(encoded); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\nendstream\nendobj\n")
	return err
}
