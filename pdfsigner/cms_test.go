package pdfsigner

import (
	"crypto"
	"testing"

	"github.com/digitorus/pkcs7"
	"github.com/stretchr/testify/require"
)

// TestBuildCMSProducesCryptographicallyValidSignature guards against a
// CMS whose EncryptedDigest is computed over the wrong bytes (for example
// a Signer that re-hashes signed attributes pkcs7 already hashed once):
// pkcs7.Parse followed by Verify only succeeds when the signature is
// genuinely over H(signed attributes) under the certificate's key.
// Substring checks like "/Type /Sig" cannot catch this class of bug.
func TestBuildCMSProducesCryptographicallyValidSignature(t *testing.T) {
	signer := newTestSigner(t)
	content := []byte("the byte-range-covered document bytes go here")

	der, err := BuildCMS(BuildCMSOptions{
		Signer:          signer,
		DigestAlgorithm: crypto.SHA256,
		DocumentContent: content,
	})
	require.NoError(t, err)

	p7, err := pkcs7.Parse(der)
	require.NoError(t, err)
	p7.Content = content

	require.NoError(t, p7.Verify())
	require.NotEmpty(t, p7.Certificates)
	require.Equal(t, signer.Certificate().Raw, p7.Certificates[0].Raw)
}

// TestBuildCMSRejectsTamperedContent confirms Verify actually exercises
// the signed bytes rather than trivially succeeding regardless of input.
func TestBuildCMSRejectsTamperedContent(t *testing.T) {
	signer := newTestSigner(t)
	content := []byte("the byte-range-covered document bytes go here")

	der, err := BuildCMS(BuildCMSOptions{
		Signer:          signer,
		DigestAlgorithm: crypto.SHA256,
		DocumentContent: content,
	})
	require.NoError(t, err)

	p7, err := pkcs7.Parse(der)
	require.NoError(t, err)
	p7.Content = []byte("tampered bytes that were never signed")

	require.Error(t, p7.Verify())
}
