package increwriter

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	pdflib "github.com/digitorus/pdf"
	"github.com/stretchr/testify/require"
)

// buildMinimalPDF assembles a tiny, well-formed single-revision PDF (one
// catalog, one pages tree, one page) with a conformant table-style xref,
// computing every offset as it writes rather than hardcoding them.
func buildMinimalPDF(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make(map[int]int64)
	obj := func(id int, body string) {
		offsets[id] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", id, body)
	}

	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")

	xrefStart := int64(buf.Len())
	buf.WriteString("xref\n0 4\n")
	buf.WriteString("0000000000 65535 f\r\n")
	for id := 1; id <= 3; id++ {
		fmt.Fprintf(&buf, "%010d %05d n\r\n", offsets[id], 0)
	}
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R /ID [<0011223344556677889900112233445566><0011223344556677889900112233445566>] >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefStart)

	return buf.Bytes()
}

func newFixtureWriter(t *testing.T) (*Writer, *bytes.Reader, []byte) {
	t.Helper()
	data := buildMinimalPDF(t)
	reader := bytes.NewReader(data)

	rdr, err := pdflib.NewReader(strings.NewReader(string(data)), int64(len(data)))
	require.NoError(t, err)

	w, err := New(rdr, reader, int64(len(data)))
	require.NoError(t, err)
	return w, reader, data
}

func TestNewWriterSeedsNextFreeIDFromPriorItemCount(t *testing.T) {
	w, _, _ := newFixtureWriter(t)
	require.EqualValues(t, 4, w.NextFreeID())
}

func TestAddObjectAllocatesSequentialIDs(t *testing.T) {
	w, _, _ := newFixtureWriter(t)
	r1 := w.AddObject([]byte("<< /Type /Sig >>"))
	r2 := w.AddObject([]byte("<< /Type /Sig >>"))
	require.Equal(t, Ref{ID: 4, Gen: 0}, r1)
	require.Equal(t, Ref{ID: 5, Gen: 0}, r2)
	require.True(t, w.IsDirty(r1))
	require.True(t, w.IsDirty(r2))
}

func TestUpdateContainerNoopWithoutRecordedContainer(t *testing.T) {
	w, _, _ := newFixtureWriter(t)
	child := Ref{ID: 4, Gen: 0}
	err := w.UpdateContainer(child, func(Ref) ([]byte, error) {
		t.Fatal("currentBody should not be called")
		return nil, nil
	})
	require.NoError(t, err)
	require.False(t, w.IsDirty(Ref{}))
}

func TestUpdateContainerFetchesAndMarksParentDirty(t *testing.T) {
	w, _, _ := newFixtureWriter(t)
	child := w.AddObject([]byte("<< /Foo /Bar >>"))
	parent := Ref{ID: 1, Gen: 0}
	w.SetContainer(child, parent)

	called := false
	err := w.UpdateContainer(child, func(ref Ref) ([]byte, error) {
		called = true
		require.Equal(t, parent, ref)
		return []byte("<< /Type /Catalog /Pages 2 0 R /AcroForm 9 0 R >>"), nil
	})
	require.NoError(t, err)
	require.True(t, called)
	require.True(t, w.IsDirty(parent))
}

func TestDocumentIDPreservesFirstRegeneratesSecond(t *testing.T) {
	w, _, _ := newFixtureWriter(t)
	var calls int
	w.RandomBytes = func() ([]byte, error) {
		calls++
		return bytes.Repeat([]byte{byte(calls)}, 16), nil
	}

	id0, id1, err := w.DocumentID()
	require.NoError(t, err)
	require.Equal(t, "\x00\x11\x22\x33\x44\x55\x66\x77\x89\x00\x11\x22\x33\x44\x55\x66", string(id0))
	require.Equal(t, bytes.Repeat([]byte{1}, 16), id1)
	require.Equal(t, 1, calls, "id0 must be carried over, not regenerated")
}

func TestWriteToAppendsIncrementalUpdate(t *testing.T) {
	w, _, data := newFixtureWriter(t)

	sigRef := w.AddObject([]byte("<< /Type /Sig /Filter /Adobe.PPKLite >>"))
	root := Ref{ID: 1, Gen: 0}
	w.SetContainer(sigRef, root)
	require.NoError(t, w.UpdateContainer(sigRef, func(Ref) ([]byte, error) {
		return []byte("<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [] >> >>"), nil
	}))

	var out bytes.Buffer
	require.NoError(t, w.WriteTo(&out))

	result := out.String()
	require.True(t, strings.HasPrefix(result, string(data)), "prior revision must be copied verbatim")
	require.Contains(t, result, "4 0 obj")
	require.Contains(t, result, "/Filter /Adobe.PPKLite")
	require.Contains(t, result, "1 0 obj\n<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [] >> >>\nendobj\n")
	require.Contains(t, result, "xref\n")
	require.Contains(t, result, "trailer\n")

	priorXrefStart := strings.LastIndex(string(data), "xref\n0 4")
	require.Contains(t, result, fmt.Sprintf("/Prev %d", priorXrefStart))
	require.True(t, strings.HasSuffix(strings.TrimRight(result, "\n"), "%%EOF"))
}

func TestWriteToRejectsRemovingEncryption(t *testing.T) {
	data := buildMinimalPDF(t)
	encrypted := strings.Replace(string(data),
		"/Size 4 /Root 1 0 R",
		"/Size 4 /Root 1 0 R /Encrypt 1 0 R",
		1)

	rdr, err := pdflib.NewReader(strings.NewReader(encrypted), int64(len(encrypted)))
	require.NoError(t, err)

	w, err := New(rdr, bytes.NewReader([]byte(encrypted)), int64(len(encrypted)))
	require.NoError(t, err)

	var out bytes.Buffer
	require.ErrorIs(t, w.WriteTo(&out), ErrCannotRemoveEncryption)
}
