package pdfsigner

import (
	"fmt"
	"io"
	"strings"

	pdflib "github.com/digitorus/pdf"

	"github.com/terminalkitten/pdf-stamp/increwriter"
)

// serializeValue re-renders a parsed pdf.Value back to PDF syntax, following
// indirect references as bare "id gen R" and recursing into direct
// dicts/arrays. Modeled on serializeCatalogEntry
// (sign/pdfcatalog.go), generalised to take the container's own object id so
// it can be reused for any dictionary, not only the catalog.
func serializeValue(w io.Writer, containerObjID uint32, value pdflib.Value) {
	if ptr := value.GetPtr(); ptr.GetID() != 0 && ptr.GetID() != containerObjID {
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
		for i, key := range value.Keys() {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprintf(w, "/%s ", key)
			serializeValue(w, containerObjID, value.Key(key))
		}
		fmt.Fprint(w, ">>")
	case pdflib.Array:
		fmt.Fprint(w, "[")
		for i := 0; i < value.Len(); i++ {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			serializeValue(w, containerObjID, value.Index(i))
		}
		fmt.Fprint(w, "]")
	}
}

// sigFlags for the /AcroForm dictionary (Table 225): bit 1 SignaturesExist,
// bit 2 AppendOnly. Every signature this core produces sets both.
const sigFlagsExistAppendOnly = 3

// RewriteCatalogWithField rebuilds the document catalog so its
// /AcroForm/Fields array includes newFieldRef, preserving every other
// catalog entry verbatim (spec §4.4.2, "create it at the document catalog
// /AcroForm/Fields"). Existing AcroForm entries other than /Fields and
// /SigFlags are preserved; a catalog with no prior /AcroForm gets a fresh
// one.
func RewriteCatalogWithField(root pdflib.Value, rootRef increwriter.Ref, newFieldRef increwriter.Ref) []byte {
	var buf strings.Builder

	buf.WriteString("<<\n")
	acroForm := root.Key("AcroForm")

	for _, key := range root.Keys() {
		if key == "AcroForm" {
			continue
		}
		fmt.Fprintf(&buf, "/%s ", key)
		serializeValue(&buf, rootRef.ID, root.Key(key))
		buf.WriteString("\n")
	}

	buf.WriteString("/AcroForm <<\n")
	buf.WriteString("  /Fields [")
	if !acroForm.IsNull() {
		fields := acroForm.Key("Fields")
		for i := 0; i < fields.Len(); i++ {
			if i > 0 {
				buf.WriteString(" ")
			}
			ptr := fields.Index(i).GetPtr()
			fmt.Fprintf(&buf, "%d %d R", ptr.GetID(), ptr.GetGen())
		}
		if fields.Len() > 0 {
			buf.WriteString(" ")
		}
	}
	fmt.Fprintf(&buf, "%d %d R]\n", newFieldRef.ID, newFieldRef.Gen)

	if !acroForm.IsNull() {
		for _, key := range acroForm.Keys() {
			if key == "Fields" || key == "SigFlags" {
				continue
			}
			fmt.Fprintf(&buf, "  /%s ", key)
			serializeValue(&buf, rootRef.ID, acroForm.Key(key))
			buf.WriteString("\n")
		}
	}
	fmt.Fprintf(&buf, "  /SigFlags %d\n", sigFlagsExistAppendOnly)
	buf.WriteString(">>\n>>")

	return []byte(buf.String())
}
