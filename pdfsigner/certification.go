package pdfsigner

import (
	"fmt"

	"github.com/terminalkitten/pdf-stamp/signcontract"
)

// EffectiveDocMDPPermission resolves the permission level to store in /P
// when both the request and the field's own lock specify one: the more
// restrictive (numerically smaller) of the two wins (spec §4.4.5).
func EffectiveDocMDPPermission(requested DocMDPPerm, lock *FieldLock) DocMDPPerm {
	if lock == nil || lock.DocMDPPerm == 0 {
		return requested
	}
	if requested == 0 {
		return lock.DocMDPPerm
	}
	if lock.DocMDPPerm < requested {
		return lock.DocMDPPerm
	}
	return requested
}

// CheckNotAlreadyCertified fails with AlreadyCertified if priorCertified is
// true and a new certification signature was requested (spec §4.4.5: only
// one certification signature is permitted per document).
func CheckNotAlreadyCertified(certify, priorCertified bool) error {
	if certify && priorCertified {
		return signcontract.ErrAlreadyCertified
	}
	return nil
}

// DocMDPReference renders a /Reference array entry of TransformMethod
// /DocMDP for a certification signature, grounded on
// createSignaturePlaceholder CertificationSignature case.
func DocMDPReference(perm DocMDPPerm) string {
	return fmt.Sprintf(" /Reference [\n"+
		" << /Type /SigRef\n"+
		"   /TransformMethod /DocMDP\n"+
		"   /TransformParams <<\n"+
		"     /Type /TransformParams\n"+
		"     /P %d\n"+
		"     /V /1.2\n"+
		"   >>\n"+
		" >> ]\n", int(perm))
}

// FieldMDPReference renders a /Reference array entry of TransformMethod
// /FieldMDP for an approval signature that locks a set of fields (spec
// §4.4.5). action is "All", "Include", or "Exclude".
func FieldMDPReference(lock FieldLock) string {
	fieldsArray := ""
	for i, f := range lock.Fields {
		if i > 0 {
			fieldsArray += " "
		}
		fieldsArray += pdfString(f)
	}

	action := lock.Action
	if action == "" {
		action = "All"
	}

	fieldsEntry := ""
	if action != "All" {
		fieldsEntry = fmt.Sprintf("     /Fields [%s]\n", fieldsArray)
	}

	return fmt.Sprintf(" /Reference [\n"+
		" << /Type /SigRef\n"+
		"   /TransformMethod /FieldMDP\n"+
		"   /TransformParams <<\n"+
		"     /Type /TransformParams\n"+
		"     /Action /%s\n"+
		"%s"+
		"     /V /1.2\n"+
		"   >>\n"+
		" >> ]\n", action, fieldsEntry)
}
