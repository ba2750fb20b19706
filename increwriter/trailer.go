package increwriter

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	pdflib "github.com/digitorus/pdf"
)

// trailerFields holds the values that go into a fresh trailer dictionary
// (table-style update) or the extra key/value pairs merged into a
// cross-reference stream dictionary (stream-style update). carried holds
// every prior trailer key this writer does not give special handling to,
// so a fresh revision never silently drops a key the prior trailer had
// (spec §4.3 step 4, "merges the prior trailer's entries").
type trailerFields struct {
	root     Ref
	size     uint32
	prev     int64
	encrypt  *Ref
	id0, id1 []byte
	info     Ref
	hasInfo  bool
	carried  []string // already-rendered "/Key value" fragments
}

// trailerOwnKeys are the entries buildTrailerFields computes explicitly;
// everything else in the prior trailer is carried forward verbatim.
var trailerOwnKeys = map[string]bool{
	"Root": true, "Size": true, "Prev": true, "ID": true, "Info": true, "Encrypt": true,
}

func (w *Writer) buildTrailerFields(root Ref) (trailerFields, error) {
	if w.encryptRef != nil && !w.keepEncrypted {
		return trailerFields{}, ErrCannotRemoveEncryption
	}

	id0, id1, err := w.DocumentID()
	if err != nil {
		return trailerFields{}, err
	}

	tf := trailerFields{
		root:    root,
		size:    w.nextFreeID,
		prev:    w.Prior.XrefInformation.StartPos,
		encrypt: w.encryptRef,
		id0:     id0,
		id1:     id1,
	}

	prior := w.Prior.Trailer()

	if info := prior.Key("Info"); !info.IsNull() {
		if ptr := info.GetPtr(); ptr.GetID() != 0 {
			tf.info = Ref{ID: uint32(ptr.GetID()), Gen: uint16(ptr.GetGen())}
			tf.hasInfo = true
		}
	}

	for _, key := range prior.Keys() {
		if trailerOwnKeys[key] {
			continue
		}
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "/%s ", key)
		serializeTrailerValue(&buf, prior.Key(key))
		tf.carried = append(tf.carried, buf.String())
	}

	return tf, nil
}

// serializeTrailerValue renders a pdf.Value as PDF syntax, following the
// catalog entry serializer's direct-object/indirect-reference split
// (sign/pdfcatalog.go's serializeCatalogEntry): an indirect reference
// renders as "id gen R" regardless of kind, otherwise the value is
// rendered inline by kind.
func serializeTrailerValue(w io.Writer, value pdflib.Value) {
	if ptr := value.GetPtr(); ptr.GetID() != 0 {
		fmt.Fprintf(w, "%d %d R", ptr.GetID(), ptr.GetGen())
		return
	}

	switch value.Kind() {
	case pdflib.String:
		fmt.Fprintf(w, "(%s)", value.RawString())
	case pdflib.Null:
		fmt.Fprint(w, "null")
	case pdflib.Bool:
		if value.Bool() {
			fmt.Fprint(w, "true")
		} else {
			fmt.Fprint(w, "false")
		}
	case pdflib.Integer:
		fmt.Fprintf(w, "%d", value.Int64())
	case pdflib.Real:
		fmt.Fprintf(w, "%f", value.Float64())
	case pdflib.Name:
		fmt.Fprintf(w, "/%s", value.Name())
	case pdflib.Dict:
		fmt.Fprint(w, "<<")
		for idx, key := range value.Keys() {
			if idx > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprintf(w, "/%s ", key)
			serializeTrailerValue(w, value.Key(key))
		}
		fmt.Fprint(w, ">>")
	case pdflib.Array:
		fmt.Fprint(w, "[")
		for idx := 0; idx < value.Len(); idx++ {
			if idx > 0 {
				fmt.Fprint(w, " ")
			}
			serializeTrailerValue(w, value.Index(idx))
		}
		fmt.Fprint(w, "]")
	}
}

// writeTrailerDict emits a fresh "trailer\n<< ... >>" dictionary for a
// table-style update.
func writeTrailerDict(w io.Writer, tf trailerFields) error {
	if _, err := io.WriteString(w, "trailer\n<<"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, " /Size %d /Root %s /Prev %d /ID [<%s><%s>]",
		tf.size, tf.root, tf.prev, hex.EncodeToString(tf.id0), hex.EncodeToString(tf.id1)); err != nil {
		return err
	}
	if tf.hasInfo {
		if _, err := fmt.Fprintf(w, " /Info %s", tf.info); err != nil {
			return err
		}
	}
	if tf.encrypt != nil {
		if _, err := fmt.Fprintf(w, " /Encrypt %s", *tf.encrypt); err != nil {
			return err
		}
	}
	for _, extra := range tf.carried {
		if _, err := io.WriteString(w, " "+extra); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, " >>\n")
	return err
}

// xrefStreamTrailerExtra renders the same fields as extra dictionary
// entries to merge into a cross-reference stream object, since a
// stream-style update carries the trailer inside the xref stream's own
// dictionary rather than a separate "trailer" keyword.
func xrefStreamTrailerExtra(tf trailerFields) string {
	extra := fmt.Sprintf("/Root %s /ID [<%s><%s>]", tf.root, hex.EncodeToString(tf.id0), hex.EncodeToString(tf.id1))
	if tf.hasInfo {
		extra += fmt.Sprintf(" /Info %s", tf.info)
	}
	if tf.encrypt != nil {
		extra += fmt.Sprintf(" /Encrypt %s", *tf.encrypt)
	}
	for _, c := range tf.carried {
		extra += " " + c
	}
	return extra + " "
}
