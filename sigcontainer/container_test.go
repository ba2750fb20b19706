package sigcontainer

import (
	"crypto/sha256"
	"io"
	"testing"

	"github.com/mattetti/filebuffer"
	"github.com/stretchr/testify/require"

	"github.com/terminalkitten/pdf-stamp/placeholder"
)

// buildFixture writes "HEAD" + byte-range placeholder + " " + contents
// placeholder + "TAIL" into buf and returns the assembled placeholders.
func buildFixture(t *testing.T, buf *filebuffer.Buffer, bytesReserved int) (*placeholder.ByteRange, *placeholder.Contents) {
	t.Helper()

	pos := func() int64 {
		p, err := buf.Seek(0, io.SeekCurrent)
		require.NoError(t, err)
		return p
	}

	_, err := buf.Write([]byte("HEAD"))
	require.NoError(t, err)

	var br placeholder.ByteRange
	_, err = br.WriteTo(buf, pos())
	require.NoError(t, err)

	_, err = buf.Write([]byte(" "))
	require.NoError(t, err)

	contents, err := placeholder.NewContents(bytesReserved)
	require.NoError(t, err)
	_, err = contents.WriteTo(buf, pos())
	require.NoError(t, err)

	_, err = buf.Write([]byte("TAIL"))
	require.NoError(t, err)

	return &br, contents
}

func TestTwoPhaseSignProtocol(t *testing.T) {
	buf := filebuffer.New([]byte{})
	br, contents := buildFixture(t, buf, 16)

	c := New(br, contents, sha256.New)

	digest, err := c.Begin(buf)
	require.NoError(t, err)
	require.Len(t, digest, sha256.Size)

	// Recompute the expected digest independently from the final bytes,
	// excluding exactly the hole [sigStart, sigEnd).
	sigStart, sigEnd, err := contents.Offsets()
	require.NoError(t, err)

	full := append([]byte(nil), buf.Buff.Bytes()...)
	expected := sha256.Sum256(append(append([]byte{}, full[:sigStart]...), full[sigEnd:]...))
	require.Equal(t, expected[:], digest)

	cms := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	require.NoError(t, c.Finish(cms))

	got := buf.Buff.String()
	require.Contains(t, got, "<DEADBEEF00000000>")
}

func TestFinishBeforeBeginFails(t *testing.T) {
	buf := filebuffer.New([]byte{})
	br, contents := buildFixture(t, buf, 8)
	c := New(br, contents, sha256.New)
	require.Error(t, c.Finish([]byte{0x01}))
}
