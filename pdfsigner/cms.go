package pdfsigner

import (
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"io"
	"time"

	"github.com/digitorus/pkcs7"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/terminalkitten/pdf-stamp/signcontract"
)

// PKCS#9/CAdES attribute OIDs used by signed_attrs (spec §4.4.7).
var (
	oidSigningCertificateV1 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 12}
	oidSigningCertificateV2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}
	oidAdobeRevocationInfo  = asn1.ObjectIdentifier{1, 2, 840, 113583, 1, 1, 8}
	oidSignatureTimeStamp   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}
)

// digestOIDs maps crypto.Hash to its AlgorithmIdentifier OID (RFC 3279 /
// RFC 5754), needed to build the ESS SigningCertificate(V2) hashAlgorithm
// field for digests other than the default SHA-256.
var digestOIDs = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.MD5:    {1, 2, 840, 113549, 2, 5},
	crypto.SHA1:   {1, 3, 14, 3, 2, 26},
	crypto.SHA256: {2, 16, 840, 1, 101, 3, 4, 2, 1},
	crypto.SHA384: {2, 16, 840, 1, 101, 3, 4, 2, 2},
	crypto.SHA512: {2, 16, 840, 1, 101, 3, 4, 2, 3},
}

// signingCertificateAttribute builds the CAdES-mandatory ESS
// SigningCertificateV2 attribute (or V1 for SHA-1, matching the legacy
// mechanism), referencing cert by its digest. Modeled on
// createSigningCertificateAttribute (sign/pdfsignature.go), generalised
// from "certificate fixed to context" to a plain parameter.
func signingCertificateAttribute(cert *x509.Certificate, digestAlg crypto.Hash) (*pkcs7.Attribute, error) {
	h := digestAlg.New()
	h.Write(cert.Raw)
	certHash := h.Sum(nil)

	var b cryptobyte.Builder
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // SigningCertificate(V2)
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // []ESSCertID(V2)
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // ESSCertID(V2)
				if digestAlg != crypto.SHA1 && digestAlg != crypto.SHA256 {
					oid, ok := digestOIDs[digestAlg]
					if !ok {
						return
					}
					b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
						b.AddASN1ObjectIdentifier(oid)
					})
				}
				b.AddASN1OctetString(certHash)
			})
		})
	})

	sse, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("pdfsigner: build signing-certificate attribute: %w", err)
	}

	oid := oidSigningCertificateV2
	if digestAlg == crypto.SHA1 {
		oid = oidSigningCertificateV1
	}
	return &pkcs7.Attribute{Type: oid, Value: asn1.RawValue{FullBytes: sse}}, nil
}

// RevocationInfo holds the DER-encoded OCSP responses and CRLs to embed in
// the Adobe revocation-info archival attribute (spec §4.4.7).
type RevocationInfo struct {
	OCSPs []signcontract.OCSPResponse
	CRLs  []signcontract.CRL
}

func revocationInfoAttribute(rev RevocationInfo) (*pkcs7.Attribute, error) {
	if len(rev.OCSPs) == 0 && len(rev.CRLs) == 0 {
		return nil, nil
	}

	type revocationInfoArchival struct {
		CRL  []asn1.RawValue `asn1:"tag:0,optional"`
		OCSP []asn1.RawValue `asn1:"tag:1,optional"`
	}
	archival := revocationInfoArchival{}
	for _, c := range rev.CRLs {
		archival.CRL = append(archival.CRL, asn1.RawValue{FullBytes: c})
	}
	for _, o := range rev.OCSPs {
		archival.OCSP = append(archival.OCSP, asn1.RawValue{FullBytes: o})
	}

	encoded, err := asn1.Marshal(archival)
	if err != nil {
		return nil, fmt.Errorf("pdfsigner: encode revocation-info archival: %w", err)
	}
	return &pkcs7.Attribute{Type: oidAdobeRevocationInfo, Value: asn1.RawValue{FullBytes: encoded}}, nil
}

// BuildCMSOptions is everything BuildCMS needs to construct one
// SignerInfo's signed attributes and wrap it in a ContentInfo.
type BuildCMSOptions struct {
	Signer          signcontract.Signer
	DigestAlgorithm crypto.Hash
	DocumentContent []byte // the byte-range-covered document bytes; pkcs7 hashes this internally

	UsePAdES    bool // suppresses signing-time and revocation-info (spec §4.4.7)
	SigningTime *time.Time
	Revocation  RevocationInfo

	Timestamper signcontract.Timestamper // nil to skip the unsigned timestamp attribute
	DryRun      bool
}

// BuildCMS constructs the CMS SignedData ContentInfo for a detached PDF
// signature: signed attributes in the order mandated by spec §4.4.7,
// SignerInfo with issuer-and-serial SID, certificates from the signer and
// its chain, and an optional unsigned signature-time-stamp-token attribute.
func BuildCMS(opts BuildCMSOptions) ([]byte, error) {
	signedData, err := pkcs7.NewSignedData(opts.DocumentContent)
	if err != nil {
		return nil, fmt.Errorf("%w: new signed data: %v", signcontract.ErrSigningError, err)
	}
	signedData.SetDigestAlgorithm(digestOIDs[opts.DigestAlgorithm])

	signingCert, err := signingCertificateAttribute(opts.Signer.Certificate(), opts.DigestAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", signcontract.ErrSigningError, err)
	}

	extraAttrs := []pkcs7.Attribute{*signingCert}

	if !opts.UsePAdES {
		if opts.SigningTime != nil {
			extraAttrs = append(extraAttrs, pkcs7.Attribute{
				Type:  asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5},
				Value: opts.SigningTime.UTC(),
			})
		}
		if revAttr, err := revocationInfoAttribute(opts.Revocation); err != nil {
			return nil, fmt.Errorf("%w: %v", signcontract.ErrSigningError, err)
		} else if revAttr != nil {
			extraAttrs = append(extraAttrs, *revAttr)
		}
	}

	signerConfig := pkcs7.SignerInfoConfig{ExtraSignedAttributes: extraAttrs}

	if err := signedData.AddSignerChain(opts.Signer.Certificate(), localSignerAdapter{opts.Signer, opts.DigestAlgorithm, opts.DryRun}, opts.Signer.Chain(), signerConfig); err != nil {
		return nil, fmt.Errorf("%w: add signer chain: %v", signcontract.ErrSigningError, err)
	}
	signedData.Detach()

	if opts.Timestamper != nil {
		inner := signedData.GetSignedData()
		sigValue := inner.SignerInfos[0].EncryptedDigest

		h := opts.DigestAlgorithm.New()
		h.Write(sigValue)
		token, err := opts.Timestamper.Timestamp(h.Sum(nil), opts.DigestAlgorithm)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp signature: %v", signcontract.ErrSigningError, err)
		}

		tsAttr := pkcs7.Attribute{Type: oidSignatureTimeStamp, Value: asn1.RawValue{FullBytes: token}}
		if err := inner.SignerInfos[0].SetUnauthenticatedAttributes([]pkcs7.Attribute{tsAttr}); err != nil {
			return nil, fmt.Errorf("%w: attach timestamp: %v", signcontract.ErrSigningError, err)
		}
	}

	der, err := signedData.Finish()
	if err != nil {
		return nil, fmt.Errorf("%w: finish signed data: %v", signcontract.ErrSigningError, err)
	}
	return der, nil
}

// localSignerAdapter satisfies crypto.Signer (what pkcs7.AddSignerChain
// expects) on top of a signcontract.Signer, since the core never assumes
// the key lives in-process (spec §1, "only the Signer contract").
type localSignerAdapter struct {
	s      signcontract.Signer
	digest crypto.Hash
	dryRun bool
}

func (a localSignerAdapter) Public() crypto.PublicKey {
	return a.s.Certificate().PublicKey
}

func (a localSignerAdapter) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	return a.s.SignRaw(digest, a.digest, a.dryRun)
}
