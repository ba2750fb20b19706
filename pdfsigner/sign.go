package pdfsigner

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"io"
	"strings"
	"time"

	pdflib "github.com/digitorus/pdf"
	"github.com/mattetti/filebuffer"

	"github.com/terminalkitten/pdf-stamp/increwriter"
	"github.com/terminalkitten/pdf-stamp/sigcontainer"
	"github.com/terminalkitten/pdf-stamp/signcontract"
)

// Request is everything a single sign_pdf invocation needs beyond the
// source document itself (spec §4.4).
type Request struct {
	Metadata Metadata
	Signer   signcontract.Signer

	SeedValue  *SeedValue // nil if the target field carries no /SV
	FieldLock  *FieldLock // nil if the target field carries no /Lock

	Timestamper signcontract.Timestamper // nil to skip any RFC 3161 token
	Validation  signcontract.ValidationContext // nil to skip revocation info / DSS

	// Appearance configures a visible signature widget (spec §4.4.9). Nil
	// leaves the field invisible ([0 0 0 0] rect, no /AP).
	Appearance *Appearance

	// BytesReserved overrides automatic sizing (spec §4.4.6). Zero means
	// "compute automatically from a dry-run CMS".
	BytesReserved int
}

// Appearance places a signature field's widget on a page and renders its
// content stream through Stamp, when the rectangle has nonzero width and
// height (spec §4.4.9: "if the signature field rectangle has nonzero
// width and height, delegate appearance-stream generation... and set
// /AP... Delete /AS"). A zero-area Rect, or a nil Stamp, leaves the field
// invisible even if Appearance itself is non-nil.
type Appearance struct {
	Rect  [4]float64
	Page  increwriter.Ref
	Stamp signcontract.Stamp
}

// Result is the outcome of a successful sign_pdf call.
type Result struct {
	Output    []byte
	FieldName string
	Digest    []byte // the byte-range-excluded digest computed at Begin time
}

// Sign renders a fresh incremental revision containing one signature field
// and its /Sig dictionary, following the full pipeline of spec §4.4: field
// resolution, digest/subfilter selection, seed-value enforcement,
// certification bookkeeping, sizing, CMS construction and the two-phase
// write-signature protocol.
func Sign(reader *pdflib.Reader, input io.ReadSeeker, size int64, req Request) (*Result, error) {
	subfilter := SelectSubfilter(req.Metadata.Subfilter, req.SeedValue)
	digestAlg := SelectDigest(req.Metadata.DigestAlgorithm, req.SeedValue, 0)

	if err := Enforce(req.SeedValue, req.Metadata, subfilter, digestAlg); err != nil {
		return nil, err
	}

	resolved, err := ResolveField(reader, req.Metadata.FieldName, req.Metadata.ExistingFieldsOnly)
	if err != nil {
		return nil, err
	}

	if req.Metadata.Certify {
		if err := CheckNotAlreadyCertified(true, documentAlreadyCertified(reader)); err != nil {
			return nil, err
		}
	}

	perm := EffectiveDocMDPPermission(req.Metadata.DocMDPPermission, req.FieldLock)
	var reference string
	switch {
	case req.Metadata.Certify:
		reference = DocMDPReference(perm)
	case req.FieldLock != nil && req.FieldLock.Present:
		reference = FieldMDPReference(*req.FieldLock)
	}

	w, err := increwriter.New(reader, input, size)
	if err != nil {
		return nil, err
	}

	var signingTime *time.Time
	if req.Metadata.Format != FormatPAdESBLTA {
		t := req.Metadata.SigningTime
		if t.IsZero() {
			t = time.Now()
		}
		signingTime = &t
	}

	dictOpts := SigDictOptions{
		IsTimestamp: false,
		Subfilter:   subfilter,
		Reference:   reference,
		Name:        req.Metadata.Name,
		Location:    req.Metadata.Location,
		Reason:      req.Metadata.Reason,
		ContactInfo: req.Metadata.ContactInfo,
		SigningTime: signingTime,
	}

	bytesReserved := req.BytesReserved
	if bytesReserved == 0 {
		bytesReserved, err = estimateBytesReserved(req, digestAlg, subfilter == SubfilterETSICAdESDetached || subfilter == SubfilterETSIRFC3161)
		if err != nil {
			return nil, err
		}
	} else if err := ValidateReserved(bytesReserved); err != nil {
		return nil, err
	}

	writeBody, br, contents, err := BuildSigDictBody(dictOpts, bytesReserved)
	if err != nil {
		return nil, err
	}
	sigRef := w.AddObjectFunc(writeBody)

	if err := attachFieldToSignature(w, reader, resolved, sigRef, req.Metadata.Name, req.Appearance); err != nil {
		return nil, err
	}

	buf := filebuffer.New(nil)
	if err := w.WriteTo(buf); err != nil {
		return nil, err
	}

	container := sigcontainer.New(br, contents, digestAlg.New)
	digest, err := container.Begin(buf)
	if err != nil {
		return nil, err
	}

	sigStart, sigEnd, err := contents.Offsets()
	if err != nil {
		return nil, err
	}
	values := br.Values()
	eof := values[2] + values[3]
	full := buf.Buff.Bytes()
	content := make([]byte, 0, sigStart+(eof-sigEnd))
	content = append(content, full[:sigStart]...)
	content = append(content, full[sigEnd:eof]...)

	isPAdES := subfilter == SubfilterETSICAdESDetached || subfilter == SubfilterETSIRFC3161

	var rev RevocationInfo
	if req.Metadata.EmbedValidationInfo && req.Validation != nil {
		chain := append([]*x509.Certificate{req.Signer.Certificate()}, req.Signer.Chain()...)
		ocsps, crls, err := req.Validation.Revocation(chain)
		if err != nil {
			return nil, fmt.Errorf("pdfsigner: fetch revocation info: %w", err)
		}
		rev = RevocationInfo{OCSPs: ocsps, CRLs: crls}
	}

	var inlineTimestamper signcontract.Timestamper
	if req.Metadata.Format == FormatPAdESBT {
		inlineTimestamper = req.Timestamper
	}

	cms, err := BuildCMS(BuildCMSOptions{
		Signer:          req.Signer,
		DigestAlgorithm: digestAlg,
		DocumentContent: content,
		UsePAdES:        isPAdES,
		SigningTime:     signingTime,
		Revocation:      rev,
		Timestamper:     inlineTimestamper,
	})
	if err != nil {
		return nil, err
	}

	if err := container.Finish(cms); err != nil {
		return nil, err
	}

	return &Result{Output: buf.Buff.Bytes(), FieldName: resolved.Name, Digest: digest}, nil
}

// estimateBytesReserved implements spec §4.4.6's dry-run sizing: build a
// dummy CMS over empty content (the message digest attribute's size does
// not depend on the covered content's length) and size for it with a 50%
// margin.
func estimateBytesReserved(req Request, digestAlg crypto.Hash, isPAdES bool) (int, error) {
	var dummyTimestamper signcontract.Timestamper
	if req.Metadata.Format != FormatPAdESB {
		dummyTimestamper = dummyTimestamperAdapter{req.Timestamper}
	}

	dry, err := BuildCMS(BuildCMSOptions{
		Signer:          req.Signer,
		DigestAlgorithm: digestAlg,
		DocumentContent: []byte{},
		UsePAdES:        isPAdES,
		SigningTime:     nil,
		Timestamper:     dummyTimestamper,
		DryRun:          true,
	})
	if err != nil {
		return 0, fmt.Errorf("pdfsigner: dry-run CMS for sizing: %w", err)
	}
	return AutoSize(len(dry)), nil
}

// dummyTimestamperAdapter routes the sizing dry-run through
// Timestamper.DummyResponse instead of a live Timestamp call, so sizing
// never reaches a real TSA (spec §4.4.6).
type dummyTimestamperAdapter struct {
	inner signcontract.Timestamper
}

func (d dummyTimestamperAdapter) Timestamp(digest []byte, digestAlg crypto.Hash) ([]byte, error) {
	if d.inner == nil {
		return nil, fmt.Errorf("pdfsigner: no timestamper configured for dry-run sizing")
	}
	return d.inner.DummyResponse(digestAlg)
}

func (d dummyTimestamperAdapter) DummyResponse(digestAlg crypto.Hash) ([]byte, error) {
	return d.inner.DummyResponse(digestAlg)
}

// documentAlreadyCertified scans every signature field for a /Reference
// entry naming DocMDP, per spec §4.4.5's one-certification-per-document
// rule. Grounded on the same AcroForm walk as acroFormFields.
func documentAlreadyCertified(reader *pdflib.Reader) bool {
	acroForm := reader.Trailer().Key("Root").Key("AcroForm")
	if acroForm.IsNull() {
		return false
	}
	fields := acroForm.Key("Fields")
	if fields.IsNull() {
		return false
	}

	for i := 0; i < fields.Len(); i++ {
		v := fields.Index(i).Key("V")
		if v.IsNull() {
			continue
		}
		refs := v.Key("Reference")
		for j := 0; j < refs.Len(); j++ {
			if refs.Index(j).Key("TransformMethod").Name() == "DocMDP" {
				return true
			}
		}
	}
	return false
}

// attachFieldToSignature marks the resolved field dirty with /V pointing
// at sigRef, creating both a new field object and a catalog update when the
// field did not previously exist (spec §4.4.2). When appearance names a
// rectangle with nonzero width and height, it also renders and embeds the
// /AP appearance stream (spec §4.4.9).
func attachFieldToSignature(w *increwriter.Writer, reader *pdflib.Reader, resolved ResolvedField, sigRef increwriter.Ref, displayName string, appearance *Appearance) error {
	var rect [4]float64
	var page increwriter.Ref
	var apRef *increwriter.Ref

	if appearance != nil {
		rect, page = appearance.Rect, appearance.Page
		width, height := rect[2]-rect[0], rect[3]-rect[1]
		if width > 0 && height > 0 && appearance.Stamp != nil {
			ref, err := addAppearanceObject(w, appearance.Stamp, width, height)
			if err != nil {
				return err
			}
			apRef = &ref
		}
	}

	if resolved.Exists {
		existing := findFieldByRef(reader, resolved.Ref)
		w.MarkUpdate(resolved.Ref, rewriteFieldValue(existing, resolved.Ref.ID, sigRef, apRef))
		return nil
	}

	name := resolved.Name
	if name == "" {
		name = displayName
	}
	fieldRef := w.AddObject(BuildFieldWidgetBody(FieldWidgetOptions{Name: name, Rect: rect, Page: page, AP: apRef}, sigRef))

	rootRef, err := w.RootRef()
	if err != nil {
		return err
	}
	w.SetContainer(fieldRef, rootRef)
	return w.UpdateContainer(fieldRef, func(increwriter.Ref) ([]byte, error) {
		root := reader.Trailer().Key("Root")
		return RewriteCatalogWithField(root, rootRef, fieldRef), nil
	})
}

// addAppearanceObject renders stamp's content stream into a Form XObject
// and adds it as a fresh object. Modeled on createAppearance/
// writeAppearanceHeader (sign/appearance.go), generalised from the
// teacher's fixed text/image renderer to an injectable Stamp.
func addAppearanceObject(w *increwriter.Writer, stamp signcontract.Stamp, width, height float64) (increwriter.Ref, error) {
	content, err := stamp.RenderAppearance(width, height)
	if err != nil {
		return increwriter.Ref{}, fmt.Errorf("pdfsigner: render appearance stream: %w", err)
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "<<\n /Type /XObject\n /Subtype /Form\n /FormType 1\n /BBox [0 0 %g %g]\n /Matrix [1 0 0 1 0 0]\n /Length %d\n>>\nstream\n", width, height, len(content))
	buf.Write(content)
	buf.WriteString("\nendstream")
	return w.AddObject([]byte(buf.String())), nil
}

// findFieldByRef re-walks AcroForm/Fields to recover the parsed pdf.Value
// for ref, since the writer only tracks object identity, not content.
func findFieldByRef(reader *pdflib.Reader, ref increwriter.Ref) pdflib.Value {
	acroForm := reader.Trailer().Key("Root").Key("AcroForm")
	fields := acroForm.Key("Fields")
	for i := 0; i < fields.Len(); i++ {
		field := fields.Index(i)
		ptr := field.GetPtr()
		if uint32(ptr.GetID()) == ref.ID {
			return field
		}
	}
	return pdflib.Value{}
}

// rewriteFieldValue re-serialises field with /V replaced by sigRef,
// preserving every other key (spec §4.4.2, scenario 7: re-signing reuses
// the field). When apRef is non-nil, the field's /AP is replaced with a
// reference to the freshly rendered appearance and any stale /AS is
// dropped (spec §4.4.9).
func rewriteFieldValue(field pdflib.Value, selfID uint32, sigRef increwriter.Ref, apRef *increwriter.Ref) []byte {
	var buf strings.Builder
	buf.WriteString("<<\n")
	for _, key := range field.Keys() {
		switch key {
		case "V":
			continue
		case "AS", "AP":
			if apRef != nil {
				continue
			}
		}
		buf.WriteString(" /" + key + " ")
		serializeValue(&buf, selfID, field.Key(key))
		buf.WriteString("\n")
	}
	if apRef != nil {
		fmt.Fprintf(&buf, " /AP << /N %s >>\n", *apRef)
	}
	buf.WriteString(fmt.Sprintf(" /V %s\n>>", sigRef))
	return []byte(buf.String())
}
