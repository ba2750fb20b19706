// Package revocation implements a ValidationContext (signcontract.ValidationContext)
// that fetches OCSP responses and CRLs for a certificate chain over HTTP, and
// the archival container the CMS embeds them in as the Adobe
// revocation-info attribute.
//
// Modeled on fetchRevocationData (sign/pdfsignature.go),
// which walks the chain leaf-to-root calling a caller-supplied
// RevocationFunction(cert, issuer) per certificate; generalised here into a
// concrete implementation using golang.org/x/crypto/ocsp rather than
// leaving the fetch to the caller.
package revocation

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/crypto/ocsp"

	"github.com/terminalkitten/pdf-stamp/signcontract"
)

// InfoArchival is the ASN.1 container for the revocation evidence embedded
// in the Adobe revocation-info archival attribute (spec §4.4.7).
type InfoArchival struct {
	CRL   CRL   `asn1:"tag:0,optional,explicit"`
	OCSP  OCSP  `asn1:"tag:1,optional,explicit"`
	Other Other `asn1:"tag:2,optional,explicit"`
}

// AddCRL embeds the raw DER bytes of a downloaded CRL.
func (r *InfoArchival) AddCRL(b []byte) error {
	r.CRL = append(r.CRL, asn1.RawValue{FullBytes: b})
	return nil
}

// AddOCSP embeds the raw DER bytes of a downloaded OCSP response.
func (r *InfoArchival) AddOCSP(b []byte) error {
	r.OCSP = append(r.OCSP, asn1.RawValue{FullBytes: b})
	return nil
}

// IsRevoked reports whether any embedded CRL or OCSP response marks c as
// revoked. Malformed entries are skipped rather than treated as revoked,
// since a parse failure says nothing about c's actual status.
func (r *InfoArchival) IsRevoked(c *x509.Certificate) bool {
	for _, crlRaw := range r.CRL {
		crl, err := x509.ParseRevocationList(crlRaw.FullBytes)
		if err != nil {
			continue
		}
		for _, rc := range crl.RevokedCertificateEntries {
			if rc.SerialNumber.Cmp(c.SerialNumber) == 0 {
				return true
			}
		}
	}

	for _, ocspRaw := range r.OCSP {
		resp, err := ocsp.ParseResponse(ocspRaw.FullBytes, nil)
		if err != nil {
			continue
		}
		if resp.SerialNumber != nil && resp.SerialNumber.Cmp(c.SerialNumber) == 0 && resp.Status == ocsp.Revoked {
			return true
		}
	}

	return false
}

// CRL contains the raw bytes of one or more pkix.CertificateList values,
// each parseable with x509.ParseRevocationList.
type CRL []asn1.RawValue

// OCSP contains the raw bytes of one or more OCSP responses, each parseable
// with golang.org/x/crypto/ocsp.ParseResponse.
type OCSP []asn1.RawValue

// Other is the catch-all OtherRevInfo ASN.1 structure (ETSI TS 101 733).
type Other struct {
	Type  asn1.ObjectIdentifier
	Value []byte
}

// HTTPValidationContext fetches revocation evidence over HTTP/HTTPS using
// the certificates' own AIA (OCSP) and CRL distribution point extensions.
// Implements signcontract.ValidationContext.
type HTTPValidationContext struct {
	Client *http.Client
}

// NewHTTPValidationContext returns a context using http.DefaultClient.
func NewHTTPValidationContext() *HTTPValidationContext {
	return &HTTPValidationContext{Client: http.DefaultClient}
}

// Revocation fetches one OCSP response (preferred) or CRL per certificate in
// chain, following a leaf-first walk where each certificate's
// issuer is the next entry in the slice (root's issuer is nil).
func (v *HTTPValidationContext) Revocation(chain []*x509.Certificate) ([]signcontract.OCSPResponse, []signcontract.CRL, error) {
	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}

	var ocsps []signcontract.OCSPResponse
	var crls []signcontract.CRL

	for i, cert := range chain {
		var issuer *x509.Certificate
		if i+1 < len(chain) {
			issuer = chain[i+1]
		} else {
			issuer = cert // self-signed root: OCSP/CRL requests sign against itself
		}

		if resp, err := v.fetchOCSP(client, cert, issuer); err == nil {
			ocsps = append(ocsps, resp)
			continue // OCSP is sufficient evidence for this certificate
		}

		if crl, err := v.fetchCRL(client, cert); err == nil {
			crls = append(crls, crl)
		}
	}

	return ocsps, crls, nil
}

func (v *HTTPValidationContext) fetchOCSP(client *http.Client, cert, issuer *x509.Certificate) (signcontract.OCSPResponse, error) {
	if len(cert.OCSPServer) == 0 {
		return nil, fmt.Errorf("revocation: no OCSP server in certificate")
	}

	reqBytes, err := ocsp.CreateRequest(cert, issuer, nil)
	if err != nil {
		return nil, fmt.Errorf("revocation: build OCSP request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, cert.OCSPServer[0], bytes.NewReader(reqBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/ocsp-request")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("revocation: OCSP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("revocation: OCSP responder returned %d", resp.StatusCode)
	}

	if _, err := ocsp.ParseResponseForCert(body, cert, issuer); err != nil {
		return nil, fmt.Errorf("revocation: parse OCSP response: %w", err)
	}
	return signcontract.OCSPResponse(body), nil
}

func (v *HTTPValidationContext) fetchCRL(client *http.Client, cert *x509.Certificate) (signcontract.CRL, error) {
	if len(cert.CRLDistributionPoints) == 0 {
		return nil, fmt.Errorf("revocation: no CRL distribution point in certificate")
	}

	resp, err := client.Get(cert.CRLDistributionPoints[0])
	if err != nil {
		return nil, fmt.Errorf("revocation: CRL fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("revocation: CRL distribution point returned %d", resp.StatusCode)
	}

	if _, err := x509.ParseRevocationList(body); err != nil {
		return nil, fmt.Errorf("revocation: parse CRL: %w", err)
	}
	return signcontract.CRL(body), nil
}
