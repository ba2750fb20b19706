// Package signcontract defines the interfaces a caller implements to plug a
// signing key, a timestamp authority, revocation data and an appearance
// renderer into the signing core, plus the named error-kind surface the
// core returns when a request cannot be satisfied (spec §6).
//
// Modeled on the SignData/TSA/RevocationFunction/Appearance
// contract (sign/types.go) and pyhanko's Signer/Timestamper abstractions
// (original_source/pyhanko/sign/signers.py), generalised from the
// single concrete struct into interfaces so callers can supply a
// PKCS#11 token, a cloud KMS, or a CSC remote signer without the core
// knowing the difference (spec §1, "only the Signer contract").
package signcontract

import "errors"

// Named error kinds returned by the signing core (spec §6). Use
// errors.Is against these sentinels; wrapped errors carry the offending
// field name or constraint via %w.
var (
	ErrSigningError             = errors.New("signcontract: signing failed")
	ErrSeedValueViolation       = errors.New("signcontract: seed value constraint violated")
	ErrAlreadyCertified         = errors.New("signcontract: document is already certified")
	ErrNoEmptyFields            = errors.New("signcontract: no empty signature field available")
	ErrAmbiguousField           = errors.New("signcontract: signature field name does not uniquely identify a field")
	ErrFieldNotFound            = errors.New("signcontract: named signature field not found")
	ErrFieldNameRequired        = errors.New("signcontract: field name required when more than one empty field exists")
	ErrTooLarge                 = errors.New("signcontract: value exceeds reserved size")
	ErrOddBytesReserved         = errors.New("signcontract: bytes reserved must be even")
	ErrCannotRemoveEncryption   = errors.New("signcontract: cannot remove encryption in an incremental update")
	ErrUnsupportedSVConstraint  = errors.New("signcontract: seed value dictionary requires an unsupported constraint")
)
