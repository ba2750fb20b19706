// Package pdfsigner orchestrates a single signing invocation: it resolves
// the target signature field, selects a digest algorithm, enforces seed
// value and certification policy, sizes and constructs the CMS signed
// data, and drives the incremental writer and signed-data container
// through the two-phase write-signature protocol (spec §4.4).
package pdfsigner

import (
	"crypto"
	"time"
)

// Format selects the signature profile to emit (supplemented feature: the
// spec's subfilter enumeration collapsed into the three PAdES baseline
// levels most callers actually choose between).
type Format int

const (
	// FormatPAdESB is a basic CAdES/PAdES signature with no timestamp.
	FormatPAdESB Format = iota
	// FormatPAdESBT additionally embeds an RFC 3161 timestamp token as an
	// unsigned CMS attribute (PAdES-B-T).
	FormatPAdESBT
	// FormatPAdESBLTA additionally chains a /DocTimeStamp revision and a
	// DSS update for long-term archival validation (PAdES-B-LTA).
	FormatPAdESBLTA
)

// Subfilter names accepted/emitted for /SubFilter (spec §6).
const (
	SubfilterAdobePKCS7Detached = "adbe.pkcs7.detached"
	SubfilterAdobePKCS7SHA1     = "adbe.pkcs7.sha1" // accepted, never emitted
	SubfilterETSICAdESDetached  = "ETSI.CAdES.detached"
	SubfilterETSIRFC3161        = "ETSI.RFC3161"
)

// CertType distinguishes the kind of signature being produced, mirroring
// the CertType enum in sign/types.go and spec §4.4.5's
// certification/approval distinction.
type CertType int

const (
	ApprovalSignature CertType = iota
	CertificationSignature
	UsageRightsSignature
	TimeStampSignature
)

// DocMDPPerm is the permission level stored verbatim in /P (spec §6).
type DocMDPPerm int

const (
	DoNotAllowAnyChanges DocMDPPerm = 1
	AllowFormFillAndSign DocMDPPerm = 2
	AllowAnnotations     DocMDPPerm = 3
)

// Metadata is the immutable per-invocation signing request (spec §3,
// "Signature metadata"). Constructed once per Sign call.
type Metadata struct {
	FieldName           string
	ExistingFieldsOnly  bool
	DigestAlgorithm     crypto.Hash // zero value means "not explicitly set"
	Name                string
	Location             string
	Reason              string
	ContactInfo         string
	SigningTime         time.Time

	Certify          bool
	DocMDPPermission DocMDPPerm

	Subfilter              string // empty means "not explicitly set"
	EmbedValidationInfo    bool
	UseSigningTimeAttr     bool
	Format                 Format
	TimestampFieldName     string

	CompressLevel int
}

// FieldLock mirrors a signature field's /Lock dictionary (spec §4.4.5).
type FieldLock struct {
	Present    bool
	DocMDPPerm DocMDPPerm // 0 if this lock does not carry a DocMDP permission
	Action     string     // "All", "Include", or "Exclude" (FieldMDP)
	Fields     []string
}
