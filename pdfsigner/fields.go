package pdfsigner

import (
	"fmt"
	"sort"
	"strings"

	pdflib "github.com/digitorus/pdf"

	"github.com/terminalkitten/pdf-stamp/increwriter"
	"github.com/terminalkitten/pdf-stamp/signcontract"
)

// ResolvedField is a signature field located, or about to be created, in
// the prior revision's AcroForm hierarchy (spec §4.4.2).
type ResolvedField struct {
	Name   string
	Ref    increwriter.Ref // zero value when the field does not exist yet
	Exists bool
}

// acroField is one /FT /Sig entry enumerated from /AcroForm/Fields.
type acroField struct {
	Name  string
	Ref   increwriter.Ref
	Empty bool
}

// acroFormFields walks the catalog's AcroForm field array and returns every
// signature field it names. Modeled on fetchExistingSignatures
// and fillInitialsFields (sign/pdfsignature.go, sign/initials.go), which
// both use the same Trailer().Key("Root").Key("AcroForm").Key("Fields")
// walk and field.Key("FT")/field.Key("T") accessors.
func acroFormFields(reader *pdflib.Reader) []acroField {
	acroForm := reader.Trailer().Key("Root").Key("AcroForm")
	if acroForm.IsNull() {
		return nil
	}
	fields := acroForm.Key("Fields")
	if fields.IsNull() {
		return nil
	}

	var out []acroField
	for i := 0; i < fields.Len(); i++ {
		field := fields.Index(i)
		if field.Key("FT").Name() != "Sig" {
			continue
		}
		ptr := field.GetPtr()
		out = append(out, acroField{
			Name:  field.Key("T").RawString(),
			Ref:   increwriter.Ref{ID: uint32(ptr.GetID()), Gen: uint16(ptr.GetGen())},
			Empty: field.Key("V").IsNull(),
		})
	}
	return out
}

// ResolveField implements the field-selection rules of spec §4.4.2.
//
//   - fieldName == "" and existingFieldsOnly: exactly one empty signature
//     field must exist, or the call fails NoEmptyFields/AmbiguousField.
//   - fieldName == "" and !existingFieldsOnly: fails FieldNameRequired.
//   - fieldName != "": the named field is reused if present (re-signing an
//     already-signed field is allowed, matching scenario 7); if absent,
//     either FieldNotFound (existingFieldsOnly) or a request to create a
//     fresh field (!existingFieldsOnly).
func ResolveField(reader *pdflib.Reader, fieldName string, existingFieldsOnly bool) (ResolvedField, error) {
	fields := acroFormFields(reader)

	if fieldName == "" {
		if !existingFieldsOnly {
			return ResolvedField{}, signcontract.ErrFieldNameRequired
		}
		return resolveEmptyField(fields)
	}

	for _, f := range fields {
		if f.Name == fieldName {
			return ResolvedField{Name: f.Name, Ref: f.Ref, Exists: true}, nil
		}
	}

	if existingFieldsOnly {
		return ResolvedField{}, fmt.Errorf("%w: %q", signcontract.ErrFieldNotFound, fieldName)
	}
	return ResolvedField{Name: fieldName, Exists: false}, nil
}

func resolveEmptyField(fields []acroField) (ResolvedField, error) {
	var empty []acroField
	for _, f := range fields {
		if f.Empty {
			empty = append(empty, f)
		}
	}

	switch len(empty) {
	case 0:
		return ResolvedField{}, signcontract.ErrNoEmptyFields
	case 1:
		f := empty[0]
		return ResolvedField{Name: f.Name, Ref: f.Ref, Exists: true}, nil
	default:
		names := make([]string, len(empty))
		for i, f := range empty {
			names[i] = f.Name
		}
		sort.Strings(names)
		return ResolvedField{}, fmt.Errorf("%w: %s", signcontract.ErrAmbiguousField, strings.Join(names, ", "))
	}
}

// FieldWidgetOptions configures a freshly created signature field/widget
// annotation when ResolveField reports Exists == false.
type FieldWidgetOptions struct {
	Name string
	Rect [4]float64 // [0 0 0 0] for an invisible field
	Page increwriter.Ref
	AP   *increwriter.Ref // appearance XObject reference, nil for an invisible field
}

// annotation flags (ISO 32000-2 Table 167); Print|Locked matches the
// default for signature widgets in sign/pdfvisualsignature.go.
const fieldAnnotationFlags = 1<<2 | 1<<7

// BuildFieldWidgetBody renders the merged field/widget-annotation
// dictionary for a brand-new signature field, with /V pointing at sigRef.
// Modeled on createVisualSignature (sign/pdfvisualsignature.go).
func BuildFieldWidgetBody(opts FieldWidgetOptions, sigRef increwriter.Ref) []byte {
	var buf strings.Builder
	buf.WriteString("<<\n /Type /Annot\n /Subtype /Widget\n")
	fmt.Fprintf(&buf, " /Rect [%g %g %g %g]\n", opts.Rect[0], opts.Rect[1], opts.Rect[2], opts.Rect[3])
	if opts.Page != (increwriter.Ref{}) {
		fmt.Fprintf(&buf, " /P %s\n", opts.Page)
	}
	if opts.AP != nil {
		fmt.Fprintf(&buf, " /AP << /N %s >>\n", *opts.AP)
	}
	fmt.Fprintf(&buf, " /F %d\n", fieldAnnotationFlags)
	buf.WriteString(" /FT /Sig\n")
	fmt.Fprintf(&buf, " /T %s\n", pdfString(opts.Name))
	fmt.Fprintf(&buf, " /V %s\n", sigRef)
	buf.WriteString(">>")
	return []byte(buf.String())
}
