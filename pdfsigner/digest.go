package pdfsigner

import "crypto"

// DefaultDigest is used when no other source selects an algorithm.
const DefaultDigest = crypto.SHA256

// SelectDigest implements the priority order from spec §4.4.3: explicit
// metadata wins, then the seed value's first suggested digest method
// (used whenever the SV offers one, independent of FlagDigestMethod,
// which only gates the stricter allowed-set check in Enforce), then the
// prior certifying signature's digest algorithm, then the default.
func SelectDigest(explicit crypto.Hash, sv *SeedValue, priorCertDigest crypto.Hash) crypto.Hash {
	if explicit != 0 {
		return explicit
	}
	if sv != nil && len(sv.DigestMethods) > 0 {
		return sv.DigestMethods[0]
	}
	if priorCertDigest != 0 {
		return priorCertDigest
	}
	return DefaultDigest
}

// SelectSubfilter implements the analogous priority order for /SubFilter:
// explicit metadata, then the seed value's first mandated subfilter, then
// the classic Adobe default.
func SelectSubfilter(explicit string, sv *SeedValue) string {
	if explicit != "" {
		return explicit
	}
	if sv != nil && sv.FlagSubfilter && len(sv.Subfilters) > 0 {
		return sv.Subfilters[0]
	}
	return SubfilterAdobePKCS7Detached
}
