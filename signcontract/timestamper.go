package signcontract

import (
	"crypto"
	"crypto/x509"
)

// Timestamper requests an RFC 3161 timestamp token over a message
// digest, for embedding either as the unsigned CMS attribute
// signature-time-stamp-token (PAdES-B-T, spec §4.4.7) or as the content of
// a standalone /DocTimeStamp (PAdES-LTA, spec §4.4.8).
type Timestamper interface {
	// Timestamp requests a token over digest (computed under digestAlg)
	// and returns the DER-encoded TimeStampToken.
	Timestamp(digest []byte, digestAlg crypto.Hash) ([]byte, error)

	// DummyResponse returns a syntactically valid but not-necessarily-
	// authentic token of the same size a real Timestamp call would
	// produce, used to size /Contents ahead of time (spec §4.4.6,
	// "dry-run sizing"). Grounded on pyhanko's
	// TimeStamper.dummy_response.
	DummyResponse(digestAlg crypto.Hash) ([]byte, error)
}

// Stamp renders the appearance stream for a visible signature widget
// (spec §4.4.9), wired in through pdfsigner.Request.Appearance.Stamp.
// Implementations may draw text, an image, or both; the core treats the
// returned bytes as an opaque PDF content stream body.
type Stamp interface {
	// RenderAppearance returns the content stream bytes for a widget of
	// the given width/height (PDF user-space units, i.e. the widget
	// rectangle's dimensions).
	RenderAppearance(width, height float64) ([]byte, error)
}

// OCSPResponse and CRL are opaque DER-encoded blobs; the core does not
// interpret them beyond embedding them in the revocation-info archive and
// the DSS, so no parsed representation is exposed here.
type OCSPResponse []byte
type CRL []byte

// ValidationContext supplies the revocation evidence (spec §4.4.7's Adobe
// revocation-info attribute, and §4.4.8's DSS) for the signer's
// certificate chain. A nil ValidationContext is valid: the core simply
// omits revocation info and skips the DSS update.
type ValidationContext interface {
	// Revocation returns the OCSP responses and CRLs applicable to the
	// given certificate chain (leaf first), freshly fetched or from a
	// cache; implementations decide the staleness policy.
	Revocation(chain []*x509.Certificate) ([]OCSPResponse, []CRL, error)
}
