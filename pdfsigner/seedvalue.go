package pdfsigner

import (
	"crypto"
	"fmt"

	"github.com/terminalkitten/pdf-stamp/signcontract"
)

// SeedValue mirrors the constraint-relevant subset of a signature field's
// /SV dictionary (spec §4.4.4). Flags follow ISO 32000 Table 235; only the
// flag bits the core enforces are modelled here, everything else maps to
// Unsupported.
type SeedValue struct {
	FlagSubfilter     bool
	FlagAddRevInfo    bool
	FlagDigestMethod  bool
	FlagReasons       bool
	FlagUnsupported   bool // any other Ff bit this implementation does not recognise

	Subfilters    []string // first entry is mandated if FlagSubfilter
	AddRevInfo    bool
	DigestMethods []crypto.Hash
	Reasons       []string // empty or ["."] means "reason must be absent"
}

// Enforce validates metadata against sv, returning a wrapped
// signcontract.ErrSeedValueViolation or signcontract.ErrUnsupportedSVConstraint
// on the first violated constraint (spec §4.4.4).
func Enforce(sv *SeedValue, meta Metadata, subfilter string, digest crypto.Hash) error {
	if sv == nil {
		return nil
	}

	if sv.FlagUnsupported {
		return fmt.Errorf("%w: seed value dictionary sets an unrecognised /Ff bit", signcontract.ErrUnsupportedSVConstraint)
	}

	if sv.FlagSubfilter {
		if len(sv.Subfilters) == 0 {
			return fmt.Errorf("%w: /SV /SubFilter flag set with an empty array", signcontract.ErrUnsupportedSVConstraint)
		}
		if subfilter != sv.Subfilters[0] {
			return fmt.Errorf("%w: subfilter %q does not match seed value's mandated %q", signcontract.ErrSeedValueViolation, subfilter, sv.Subfilters[0])
		}
	}

	if sv.FlagAddRevInfo {
		if meta.EmbedValidationInfo != sv.AddRevInfo {
			return fmt.Errorf("%w: embed_validation_info=%v does not match seed value's AddRevInfo=%v", signcontract.ErrSeedValueViolation, meta.EmbedValidationInfo, sv.AddRevInfo)
		}
		if sv.AddRevInfo && subfilter != SubfilterAdobePKCS7Detached {
			return fmt.Errorf("%w: /SV requires revocation info, which requires subfilter %s", signcontract.ErrSeedValueViolation, SubfilterAdobePKCS7Detached)
		}
	}

	if sv.FlagDigestMethod {
		allowed := false
		for _, d := range sv.DigestMethods {
			if d == digest {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: digest algorithm %v not among seed value's allowed methods", signcontract.ErrSeedValueViolation, digest)
		}
	}

	if sv.FlagReasons {
		mustBeAbsent := len(sv.Reasons) == 0 || (len(sv.Reasons) == 1 && sv.Reasons[0] == ".")
		if mustBeAbsent {
			if meta.Reason != "" {
				return fmt.Errorf("%w: seed value forbids a /Reason, but one was supplied", signcontract.ErrSeedValueViolation)
			}
		} else {
			found := false
			for _, r := range sv.Reasons {
				if r == meta.Reason {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%w: reason %q not among seed value's allowed reasons", signcontract.ErrSeedValueViolation, meta.Reason)
			}
		}
	}

	return nil
}
