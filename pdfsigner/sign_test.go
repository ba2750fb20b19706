package pdfsigner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terminalkitten/pdf-stamp/increwriter"
	"github.com/terminalkitten/pdf-stamp/internal/testpki"
	"github.com/terminalkitten/pdf-stamp/signcontract"
)

// fakeStamp renders a fixed content stream, recording the width/height it
// was asked for so the test can assert the BBox matches the rect.
type fakeStamp struct {
	gotWidth, gotHeight float64
}

func (f *fakeStamp) RenderAppearance(width, height float64) ([]byte, error) {
	f.gotWidth, f.gotHeight = width, height
	return []byte("q 1 0 0 RG 0 0 m S Q"), nil
}

func newTestSigner(t *testing.T) signcontract.Signer {
	t.Helper()
	pki := testpki.NewTestPKI(t)
	pki.StartCRLServer()
	key, cert := pki.IssueLeaf("signer.example.com")
	return &signcontract.LocalSigner{Key: key, Cert: cert, Certs: pki.Chain(), Mech: "1.2.840.113549.1.1.11"}
}

func TestSignEmptyFieldInAdvanceReusesResolvedField(t *testing.T) {
	rdr, data := buildAcroFormPDF(t, []string{"Sig1"}, nil)
	input := strings.NewReader(string(data))

	req := Request{
		Metadata: Metadata{ExistingFieldsOnly: true},
		Signer:   newTestSigner(t),
	}

	res, err := Sign(rdr, input, int64(len(data)), req)
	require.NoError(t, err)
	require.Equal(t, "Sig1", res.FieldName)
	require.NotEmpty(t, res.Output)
	require.NotEmpty(t, res.Digest)
	require.Contains(t, string(res.Output), "/Type /Sig")
}

func TestSignAmbiguousFieldFails(t *testing.T) {
	rdr, data := buildAcroFormPDF(t, []string{"A", "B"}, nil)
	input := strings.NewReader(string(data))

	req := Request{
		Metadata: Metadata{ExistingFieldsOnly: true},
		Signer:   newTestSigner(t),
	}

	_, err := Sign(rdr, input, int64(len(data)), req)
	require.ErrorIs(t, err, signcontract.ErrAmbiguousField)
}

func TestSignCreatesFieldWhenAbsentAndNotExistingOnly(t *testing.T) {
	rdr, data := buildAcroFormPDF(t, []string{"Sig1"}, nil)
	input := strings.NewReader(string(data))

	req := Request{
		Metadata: Metadata{FieldName: "NewSig"},
		Signer:   newTestSigner(t),
	}

	res, err := Sign(rdr, input, int64(len(data)), req)
	require.NoError(t, err)
	require.Equal(t, "NewSig", res.FieldName)
	require.Contains(t, string(res.Output), "/SigFlags 3")
}

func TestSignBytesReservedTooSmallRejected(t *testing.T) {
	rdr, data := buildAcroFormPDF(t, []string{"Sig1"}, nil)
	input := strings.NewReader(string(data))

	req := Request{
		Metadata:      Metadata{ExistingFieldsOnly: true},
		Signer:        newTestSigner(t),
		BytesReserved: 4,
	}

	_, err := Sign(rdr, input, int64(len(data)), req)
	require.Error(t, err)
}

func TestSignCertifyRecordsDocMDPReference(t *testing.T) {
	rdr, data := buildAcroFormPDF(t, []string{"Sig1"}, nil)
	input := strings.NewReader(string(data))

	req := Request{
		Metadata: Metadata{ExistingFieldsOnly: true, Certify: true, DocMDPPermission: AllowFormFillAndSign},
		Signer:   newTestSigner(t),
	}

	res, err := Sign(rdr, input, int64(len(data)), req)
	require.NoError(t, err)
	require.Contains(t, string(res.Output), "/Reference")
}

func TestSignWithAppearanceRendersAPAndDropsZeroRect(t *testing.T) {
	rdr, data := buildAcroFormPDF(t, []string{"Sig1"}, nil)
	input := strings.NewReader(string(data))

	stamp := &fakeStamp{}
	req := Request{
		Metadata: Metadata{ExistingFieldsOnly: true},
		Signer:   newTestSigner(t),
		Appearance: &Appearance{
			Rect:  [4]float64{72, 72, 272, 172},
			Page:  increwriter.Ref{ID: 3, Gen: 0},
			Stamp: stamp,
		},
	}

	res, err := Sign(rdr, input, int64(len(data)), req)
	require.NoError(t, err)
	require.Equal(t, float64(200), stamp.gotWidth)
	require.Equal(t, float64(100), stamp.gotHeight)
	require.Contains(t, string(res.Output), "/AP << /N")
	require.Contains(t, string(res.Output), "/Subtype /Form")
	require.Contains(t, string(res.Output), "/Rect [72 72 272 172]")
}

func TestSignWithoutAppearanceOmitsAP(t *testing.T) {
	rdr, data := buildAcroFormPDF(t, []string{"Sig1"}, nil)
	input := strings.NewReader(string(data))

	req := Request{
		Metadata: Metadata{ExistingFieldsOnly: true},
		Signer:   newTestSigner(t),
	}

	res, err := Sign(rdr, input, int64(len(data)), req)
	require.NoError(t, err)
	require.NotContains(t, string(res.Output), "/AP <<")
}

func TestSignReSigningReusesAlreadySignedField(t *testing.T) {
	rdr, data := buildAcroFormPDF(t, []string{"Sig1"}, map[string]bool{"Sig1": true})
	input := strings.NewReader(string(data))

	req := Request{
		Metadata: Metadata{FieldName: "Sig1", ExistingFieldsOnly: true},
		Signer:   newTestSigner(t),
	}

	res, err := Sign(rdr, input, int64(len(data)), req)
	require.NoError(t, err)
	require.Equal(t, "Sig1", res.FieldName)
	require.Contains(t, string(res.Output), "/T (Sig1)")
}
