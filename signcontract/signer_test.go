package signcontract

import (
	"crypto"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terminalkitten/pdf-stamp/internal/testpki"
)

func TestLocalSignerSignRawProducesValidSignature(t *testing.T) {
	pki := testpki.NewTestPKI(t)
	defer pki.Close()

	key, cert := pki.IssueLeaf("signer.example.test")
	signer := &LocalSigner{Key: key, Cert: cert, Certs: pki.Chain(), Mech: "1.2.840.113549.1.1.11"}

	sig, err := signer.SignRaw([]byte("signed attributes go here"), crypto.SHA256, false)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	require.Same(t, cert, signer.Certificate())
	require.Equal(t, pki.Chain(), signer.Chain())
	require.Equal(t, "1.2.840.113549.1.1.11", signer.Mechanism())
}

func TestLocalSignerDryRunStillProducesRealLengthSignature(t *testing.T) {
	pki := testpki.NewTestPKI(t)
	defer pki.Close()

	key, cert := pki.IssueLeaf("dryrun.example.test")
	signer := &LocalSigner{Key: key, Cert: cert}

	real, err := signer.SignRaw([]byte("data"), crypto.SHA256, false)
	require.NoError(t, err)
	dry, err := signer.SignRaw([]byte("data"), crypto.SHA256, true)
	require.NoError(t, err)

	require.Len(t, dry, len(real))
}
