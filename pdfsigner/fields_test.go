package pdfsigner

import (
	"fmt"
	"strings"
	"testing"

	pdflib "github.com/digitorus/pdf"
	"github.com/stretchr/testify/require"

	"github.com/terminalkitten/pdf-stamp/increwriter"
	"github.com/terminalkitten/pdf-stamp/signcontract"
)

// buildAcroFormPDF assembles a minimal single-page PDF whose AcroForm
// /Fields array contains the named signature fields; fields listed in
// signed get a non-null /V so they count as already signed.
func buildAcroFormPDF(t *testing.T, fieldNames []string, signed map[string]bool) (*pdflib.Reader, []byte) {
	t.Helper()

	var buf strings.Builder
	buf.WriteString("%PDF-1.4\n")
	offsets := make(map[int]int64)
	obj := func(id int, body string) {
		offsets[id] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", id, body)
	}

	obj(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm 4 0 R >>")
	obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")

	fieldIDs := make([]int, len(fieldNames))
	nextID := 5
	for i, name := range fieldNames {
		fieldIDs[i] = nextID
		v := ""
		if signed[name] {
			v = " /V <</Type/Sig>>"
		}
		obj(nextID, fmt.Sprintf("<< /FT /Sig /T (%s)%s >>", name, v))
		nextID++
	}

	var fieldsArr strings.Builder
	for i, id := range fieldIDs {
		if i > 0 {
			fieldsArr.WriteString(" ")
		}
		fmt.Fprintf(&fieldsArr, "%d 0 R", id)
	}
	obj(4, fmt.Sprintf("<< /Fields [%s] /SigFlags 3 >>", fieldsArr.String()))

	maxID := nextID - 1
	xrefStart := int64(buf.Len())
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f\r\n", maxID+1)
	for id := 1; id <= maxID; id++ {
		fmt.Fprintf(&buf, "%010d %05d n\r\n", offsets[id], 0)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\n", maxID+1)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefStart)

	data := buf.String()
	rdr, err := pdflib.NewReader(strings.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return rdr, []byte(data)
}

func TestResolveFieldExactlyOneEmptyField(t *testing.T) {
	rdr, _ := buildAcroFormPDF(t, []string{"Sig1"}, nil)
	f, err := ResolveField(rdr, "", true)
	require.NoError(t, err)
	require.Equal(t, "Sig1", f.Name)
	require.True(t, f.Exists)
}

func TestResolveFieldNoEmptyFields(t *testing.T) {
	rdr, _ := buildAcroFormPDF(t, []string{"Sig1"}, map[string]bool{"Sig1": true})
	_, err := ResolveField(rdr, "", true)
	require.ErrorIs(t, err, signcontract.ErrNoEmptyFields)
}

func TestResolveFieldAmbiguousListsBothNames(t *testing.T) {
	rdr, _ := buildAcroFormPDF(t, []string{"A", "B"}, nil)
	_, err := ResolveField(rdr, "", true)
	require.ErrorIs(t, err, signcontract.ErrAmbiguousField)
	require.Contains(t, err.Error(), "A")
	require.Contains(t, err.Error(), "B")
}

func TestResolveFieldNameRequiredWhenNotExistingOnly(t *testing.T) {
	rdr, _ := buildAcroFormPDF(t, []string{"Sig1"}, nil)
	_, err := ResolveField(rdr, "", false)
	require.ErrorIs(t, err, signcontract.ErrFieldNameRequired)
}

func TestResolveFieldByNameReusesSignedField(t *testing.T) {
	rdr, _ := buildAcroFormPDF(t, []string{"Sig1"}, map[string]bool{"Sig1": true})
	f, err := ResolveField(rdr, "Sig1", true)
	require.NoError(t, err)
	require.True(t, f.Exists)
	require.Equal(t, increwriter.Ref{ID: 5, Gen: 0}, f.Ref)
}

func TestResolveFieldNotFoundWhenExistingOnly(t *testing.T) {
	rdr, _ := buildAcroFormPDF(t, []string{"Sig1"}, nil)
	_, err := ResolveField(rdr, "Missing", true)
	require.ErrorIs(t, err, signcontract.ErrFieldNotFound)
}

func TestResolveFieldCreatesWhenAbsentAndNotExistingOnly(t *testing.T) {
	rdr, _ := buildAcroFormPDF(t, []string{"Sig1"}, nil)
	f, err := ResolveField(rdr, "NewField", false)
	require.NoError(t, err)
	require.False(t, f.Exists)
	require.Equal(t, "NewField", f.Name)
}

func TestBuildFieldWidgetBodyIncludesValueReference(t *testing.T) {
	body := BuildFieldWidgetBody(FieldWidgetOptions{Name: "Sig2", Rect: [4]float64{0, 0, 0, 0}}, increwriter.Ref{ID: 9, Gen: 0})
	s := string(body)
	require.Contains(t, s, "/FT /Sig")
	require.Contains(t, s, "/T (Sig2)")
	require.Contains(t, s, "/V 9 0 R")
}

func TestRewriteCatalogWithFieldAppendsToExistingFields(t *testing.T) {
	rdr, _ := buildAcroFormPDF(t, []string{"Sig1"}, nil)
	root := rdr.Trailer().Key("Root")
	body := RewriteCatalogWithField(root, increwriter.Ref{ID: 1, Gen: 0}, increwriter.Ref{ID: 6, Gen: 0})
	s := string(body)
	require.Contains(t, s, "5 0 R")
	require.Contains(t, s, "6 0 R")
	require.Contains(t, s, "/SigFlags 3")
}
