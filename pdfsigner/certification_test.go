package pdfsigner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terminalkitten/pdf-stamp/signcontract"
)

func TestCheckNotAlreadyCertified(t *testing.T) {
	require.ErrorIs(t, CheckNotAlreadyCertified(true, true), signcontract.ErrAlreadyCertified)
	require.NoError(t, CheckNotAlreadyCertified(true, false))
	require.NoError(t, CheckNotAlreadyCertified(false, true))
}

func TestEffectiveDocMDPPermissionTakesMoreRestrictive(t *testing.T) {
	require.Equal(t, DoNotAllowAnyChanges, EffectiveDocMDPPermission(AllowAnnotations, &FieldLock{DocMDPPerm: DoNotAllowAnyChanges}))
	require.Equal(t, AllowFormFillAndSign, EffectiveDocMDPPermission(AllowFormFillAndSign, &FieldLock{DocMDPPerm: AllowAnnotations}))
	require.Equal(t, AllowAnnotations, EffectiveDocMDPPermission(AllowAnnotations, nil))
}

func TestDocMDPReferenceContainsPermission(t *testing.T) {
	ref := DocMDPReference(AllowFormFillAndSign)
	require.Contains(t, ref, "/TransformMethod /DocMDP")
	require.Contains(t, ref, "/P 2")
}

func TestFieldMDPReferenceIncludeListsFields(t *testing.T) {
	ref := FieldMDPReference(FieldLock{Action: "Include", Fields: []string{"Sig1", "Sig2"}})
	require.Contains(t, ref, "/Action /Include")
	require.Contains(t, ref, "/Fields [(Sig1) (Sig2)]")
}

func TestFieldMDPReferenceAllOmitsFields(t *testing.T) {
	ref := FieldMDPReference(FieldLock{})
	require.Contains(t, ref, "/Action /All")
	require.NotContains(t, ref, "/Fields")
}
