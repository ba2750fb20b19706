package pdfsigner

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"

	pdflib "github.com/digitorus/pdf"
	"github.com/mattetti/filebuffer"
	"github.com/stretchr/testify/require"

	"github.com/terminalkitten/pdf-stamp/increwriter"
	"github.com/terminalkitten/pdf-stamp/sigcontainer"
)

func buildMinimalPDF(t *testing.T) []byte {
	t.Helper()
	var buf strings.Builder
	buf.WriteString("%PDF-1.4\n")

	offsets := make(map[int]int64)
	obj := func(id int, body string) {
		offsets[id] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", id, body)
	}
	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")

	xrefStart := int64(buf.Len())
	buf.WriteString("xref\n0 4\n0000000000 65535 f\r\n")
	for id := 1; id <= 3; id++ {
		fmt.Fprintf(&buf, "%010d %05d n\r\n", offsets[id], 0)
	}
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R /ID [<00112233445566778899001122334455><00112233445566778899001122334455>] >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefStart)
	return []byte(buf.String())
}

// TestSignatureDictTwoPhaseProtocolEndToEnd exercises the full chain: the
// incremental writer emits a fresh revision containing a /Sig dictionary
// built by BuildSigDictBody, whose placeholders record their live offsets
// as the writer streams the object out; sigcontainer then digests around
// the hole and patches in a CMS payload (spec invariants 1-3, §8).
func TestSignatureDictTwoPhaseProtocolEndToEnd(t *testing.T) {
	data := buildMinimalPDF(t)
	rdr, err := pdflib.NewReader(strings.NewReader(string(data)), int64(len(data)))
	require.NoError(t, err)

	w, err := increwriter.New(rdr, strings.NewReader(string(data)), int64(len(data)))
	require.NoError(t, err)

	writeBody, br, contents, err := BuildSigDictBody(SigDictOptions{
		Subfilter: SubfilterAdobePKCS7Detached,
		Reason:    "testing",
	}, 64)
	require.NoError(t, err)

	sigRef := w.AddObjectFunc(writeBody)

	root, err := w.RootRef()
	require.NoError(t, err)

	w.SetContainer(sigRef, root)
	require.NoError(t, w.UpdateContainer(sigRef, func(increwriter.Ref) ([]byte, error) {
		return []byte(fmt.Sprintf("<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [%d 0 R] /SigFlags 3 >> >>", sigRef.ID)), nil
	}))

	buf := filebuffer.New(nil)
	require.NoError(t, w.WriteTo(buf))

	container := sigcontainer.New(br, contents, sha256.New)
	digest, err := container.Begin(buf)
	require.NoError(t, err)
	require.Len(t, digest, sha256.Size)

	sigStart, sigEnd, err := contents.Offsets()
	require.NoError(t, err)
	full := append([]byte(nil), buf.Buff.Bytes()...)
	expected := sha256.Sum256(append(append([]byte{}, full[:sigStart]...), full[sigEnd:]...))
	require.Equal(t, expected[:], digest)

	cms := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	require.NoError(t, container.Finish(cms))
	require.Contains(t, buf.Buff.String(), "<DEADBEEF")

	values := br.Values()
	require.Equal(t, sigStart, values[1])
	require.Equal(t, sigEnd, values[2])
}
