package pdfsigner

import (
	"crypto"
	"crypto/sha1"
	"crypto/x509"
	"fmt"
	"io"
	"strings"

	pdflib "github.com/digitorus/pdf"
	"github.com/mattetti/filebuffer"

	"github.com/terminalkitten/pdf-stamp/increwriter"
	"github.com/terminalkitten/pdf-stamp/sigcontainer"
	"github.com/terminalkitten/pdf-stamp/signcontract"
)

// AddDocumentTimestamp appends a fresh incremental revision carrying a
// standalone /DocTimeStamp container whose CMS payload is the raw RFC 3161
// token itself, rather than a freshly built SignedData (spec §4.4.8). Run
// after Sign and (when a ValidationContext is present) after AddDSS, so the
// scenario-4 ordering of spec §8 holds: signed revision, /DSS revision,
// /DocTimeStamp revision.
func AddDocumentTimestamp(reader *pdflib.Reader, input io.ReadSeeker, size int64, timestamper signcontract.Timestamper, digestAlg crypto.Hash, bytesReserved int, fieldName string) (*Result, error) {
	if timestamper == nil {
		return nil, fmt.Errorf("pdfsigner: AddDocumentTimestamp requires a timestamper")
	}

	if bytesReserved == 0 {
		dummy, err := timestamper.DummyResponse(digestAlg)
		if err != nil {
			return nil, fmt.Errorf("pdfsigner: dry-run timestamp for sizing: %w", err)
		}
		bytesReserved = AutoSize(len(dummy))
	} else if err := ValidateReserved(bytesReserved); err != nil {
		return nil, err
	}

	if fieldName == "" {
		fieldName = "DocumentTimeStamp1"
	}
	resolved, err := ResolveField(reader, fieldName, false)
	if err != nil {
		return nil, err
	}

	w, err := increwriter.New(reader, input, size)
	if err != nil {
		return nil, err
	}

	writeBody, br, contents, err := BuildSigDictBody(SigDictOptions{
		IsTimestamp: true,
		Subfilter:   SubfilterETSIRFC3161,
		Name:        resolved.Name,
	}, bytesReserved)
	if err != nil {
		return nil, err
	}
	sigRef := w.AddObjectFunc(writeBody)

	if err := attachFieldToSignature(w, reader, resolved, sigRef, fieldName); err != nil {
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

	token, err := timestamper.Timestamp(digest, digestAlg)
	if err != nil {
		return nil, fmt.Errorf("pdfsigner: request document timestamp: %w", err)
	}

	if err := container.Finish(token); err != nil {
		return nil, err
	}

	return &Result{Output: buf.Buff.Bytes(), FieldName: resolved.Name, Digest: digest}, nil
}

// AddDSS appends an incremental revision writing or extending the catalog's
// Document Security Store with the validation material for one signature,
// keyed by the hex-uppercase SHA-1 of sigContents, per spec §6's DSS
// collaborator (`add_dss(output_stream, sig_contents, paths,
// validation_context)`), generalised here to take the already-fetched
// revocation evidence and chain rather than a ValidationContext, since
// Sign has already resolved that evidence for the embedded attribute.
func AddDSS(reader *pdflib.Reader, input io.ReadSeeker, size int64, sigContents []byte, ocsps []signcontract.OCSPResponse, crls []signcontract.CRL, certs []*x509.Certificate) (*Result, error) {
	w, err := increwriter.New(reader, input, size)
	if err != nil {
		return nil, err
	}

	rootRef, err := w.RootRef()
	if err != nil {
		return nil, err
	}

	var ocspRefs, crlRefs, certRefs []increwriter.Ref
	for _, o := range ocsps {
		ref := w.AddObject(streamObjectBody([]byte(o)))
		w.SetContainer(ref, rootRef)
		ocspRefs = append(ocspRefs, ref)
	}
	for _, c := range crls {
		ref := w.AddObject(streamObjectBody([]byte(c)))
		w.SetContainer(ref, rootRef)
		crlRefs = append(crlRefs, ref)
	}
	for _, c := range certs {
		ref := w.AddObject(streamObjectBody(c.Raw))
		w.SetContainer(ref, rootRef)
		certRefs = append(certRefs, ref)
	}

	vriKey := strings.ToUpper(fmt.Sprintf("%x", sha1.Sum(sigContents)))

	root := reader.Trailer().Key("Root")
	dss := root.Key("DSS")

	body := renderDSSDict(dss, vriKey, ocspRefs, crlRefs, certRefs)
	dssRef := w.AddObject(body)
	w.SetContainer(dssRef, rootRef)

	if err := w.UpdateContainer(dssRef, func(increwriter.Ref) ([]byte, error) {
		return RewriteCatalogWithDSS(root, rootRef, dssRef), nil
	}); err != nil {
		return nil, err
	}

	buf := filebuffer.New(nil)
	if err := w.WriteTo(buf); err != nil {
		return nil, err
	}
	return &Result{Output: buf.Buff.Bytes()}, nil
}

// streamObjectBody renders a minimal PDF stream object body wrapping raw,
// uninterpreted bytes (a DER-encoded certificate, CRL, or OCSP response).
func streamObjectBody(raw []byte) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "<< /Length %d >>\nstream\n", len(raw))
	buf.Write(raw)
	buf.WriteString("\nendstream")
	return []byte(buf.String())
}

// renderDSSDict renders the /DSS dictionary body, merging newly added
// evidence into a single VRI entry for vriKey and appending the new object
// references to the top-level /OCSPs, /CRLs and /Certs arrays. Existing
// entries belonging to other VRI keys are preserved verbatim.
func renderDSSDict(existing pdflib.Value, vriKey string, ocspRefs, crlRefs, certRefs []increwriter.Ref) []byte {
	var buf strings.Builder
	buf.WriteString("<<\n")

	writeRefArray := func(label string, newRefs []increwriter.Ref, priorKey string) {
		fmt.Fprintf(&buf, " /%s [", label)
		first := true
		if !existing.IsNull() {
			prior := existing.Key(priorKey)
			for i := 0; i < prior.Len(); i++ {
				if !first {
					buf.WriteString(" ")
				}
				first = false
				ptr := prior.Index(i).GetPtr()
				fmt.Fprintf(&buf, "%d %d R", ptr.GetID(), ptr.GetGen())
			}
		}
		for _, ref := range newRefs {
			if !first {
				buf.WriteString(" ")
			}
			first = false
			fmt.Fprintf(&buf, "%s", ref)
		}
		buf.WriteString("]\n")
	}

	writeRefArray("OCSPs", ocspRefs, "OCSPs")
	writeRefArray("CRLs", crlRefs, "CRLs")
	writeRefArray("Certs", certRefs, "Certs")

	buf.WriteString(" /VRI <<\n")
	if !existing.IsNull() {
		vri := existing.Key("VRI")
		for _, key := range vri.Keys() {
			if key == vriKey {
				continue
			}
			fmt.Fprintf(&buf, "  /%s ", key)
			serializeValue(&buf, 0, vri.Key(key))
			buf.WriteString("\n")
		}
	}
	fmt.Fprintf(&buf, "  /%s <<\n", vriKey)
	writeRefList := func(label string, refs []increwriter.Ref) {
		fmt.Fprintf(&buf, "   /%s [", label)
		for i, ref := range refs {
			if i > 0 {
				buf.WriteString(" ")
			}
			fmt.Fprintf(&buf, "%s", ref)
		}
		buf.WriteString("]\n")
	}
	writeRefList("OCSP", ocspRefs)
	writeRefList("CRL", crlRefs)
	writeRefList("Cert", certRefs)
	buf.WriteString("  >>\n")
	buf.WriteString(" >>\n")
	buf.WriteString(">>")

	return []byte(buf.String())
}

// RewriteCatalogWithDSS rebuilds the document catalog so it carries a /DSS
// entry pointing at dssRef, preserving every other catalog entry verbatim
// (spec §4.4.8).
func RewriteCatalogWithDSS(root pdflib.Value, rootRef increwriter.Ref, dssRef increwriter.Ref) []byte {
	var buf strings.Builder
	buf.WriteString("<<\n")
	for _, key := range root.Keys() {
		if key == "DSS" {
			continue
		}
		fmt.Fprintf(&buf, "/%s ", key)
		serializeValue(&buf, rootRef.ID, root.Key(key))
		buf.WriteString("\n")
	}
	fmt.Fprintf(&buf, "/DSS %s\n", dssRef)
	buf.WriteString(">>")
	return []byte(buf.String())
}
