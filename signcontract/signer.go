package signcontract

import (
	"crypto"
	"crypto/x509"
)

// Signer is implemented by anything capable of producing a raw signature
// over a digest: an in-process private key, a PKCS#11 token, a cloud KMS
// key, or a remote CSC signing service. The core never touches private key
// material directly, matching spec §1's "only the Signer contract" scope
// boundary.
//
// Grounded on pyhanko's Signer.sign_raw (original_source/pyhanko/sign/
// signers.py): dryRun requests a signature of the correct byte length
// without necessarily being cryptographically valid, used to size
// /Contents before the real digest is known (spec §4.4.6).
type Signer interface {
	// SignRaw signs data, which is already a digest under digestAlg (the
	// CMS signed-attributes hash for CAdES callers, or the document digest
	// otherwise — never raw message bytes), and returns the raw signature
	// bytes. When dryRun is true the returned bytes need only match the
	// length a real signature under this key would have.
	SignRaw(data []byte, digestAlg crypto.Hash, dryRun bool) ([]byte, error)

	// Certificate returns the signer's end-entity certificate.
	Certificate() *x509.Certificate

	// Chain returns zero or more intermediate certificates to embed in the
	// CMS SignedData's certificate set, in no particular order.
	Chain() []*x509.Certificate

	// Mechanism returns the signature algorithm OID string
	// (pkcs7_signature_mechanism in pyhanko) used to populate SignerInfo's
	// /SignatureAlgorithm, e.g. "1.2.840.113549.1.1.11" for RSA-SHA256.
	Mechanism() string
}

// LocalSigner is a Signer backed by an in-process crypto.Signer, the
// reference implementation used by the core's own tests and by callers
// that hold the private key directly (spec §7, "reference Signer").
type LocalSigner struct {
	Key   crypto.Signer
	Cert  *x509.Certificate
	Certs []*x509.Certificate
	Mech  string
}

var _ Signer = (*LocalSigner)(nil)

// SignRaw signs data directly with the wrapped crypto.Signer: data is
// already a digest under digestAlg, not raw bytes to hash. On a dry run it
// still performs the real signature (crypto.Signer has no fixed-length-only
// mode), which is the simplest way to guarantee the returned length is
// exact rather than estimated.
func (s *LocalSigner) SignRaw(data []byte, digestAlg crypto.Hash, dryRun bool) ([]byte, error) {
	return s.Key.Sign(nil, data, digestAlg)
}

func (s *LocalSigner) Certificate() *x509.Certificate    { return s.Cert }
func (s *LocalSigner) Chain() []*x509.Certificate         { return s.Certs }
func (s *LocalSigner) Mechanism() string                  { return s.Mech }
