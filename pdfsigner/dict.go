package pdfsigner

import (
	"fmt"
	"io"
	"time"

	"github.com/terminalkitten/pdf-stamp/increwriter"
	"github.com/terminalkitten/pdf-stamp/placeholder"
)

// SigDictOptions carries everything needed to render a /Sig or
// /DocTimeStamp dictionary body, grounded on
// createSignaturePlaceholder/createTimestampPlaceholder
// (sign/pdfsignature.go).
type SigDictOptions struct {
	IsTimestamp bool // /DocTimeStamp rather than /Sig
	Subfilter   string
	Reference   string // pre-rendered /Reference array text (DocMDP/FieldMDP), or ""

	Name        string
	Location    string
	Reason      string
	ContactInfo string
	SigningTime *time.Time // nil to omit /M
}

// BuildSigDictBody returns a bodyWriter-compatible function that renders
// the dictionary, embedding fresh byte-range and contents placeholders at
// the exact live stream offsets the incremental writer reports as it
// emits the object (spec §9).
//
// bytesReserved is the /Contents hex-digit reservation. The returned
// placeholders must be retained by the caller to drive the sigcontainer
// two-phase protocol after WriteTo completes.
func BuildSigDictBody(opts SigDictOptions, bytesReserved int) (writeBody func(w increwriter.PositionedWriter) error, br *placeholder.ByteRange, contents *placeholder.Contents, err error) {
	contents, err = placeholder.NewContents(bytesReserved)
	if err != nil {
		return nil, nil, nil, err
	}
	br = &placeholder.ByteRange{}

	writeBody = func(w increwriter.PositionedWriter) error {
		sigType := "/Sig"
		filterLine := " /Filter /Adobe.PPKLite\n"
		if opts.IsTimestamp {
			sigType = "/DocTimeStamp"
		}

		if _, err := fmt.Fprintf(w, "<<\n /Type %s\n%s /SubFilter /%s\n", sigType, filterLine, opts.Subfilter); err != nil {
			return err
		}

		if _, err := io.WriteString(w, " /ByteRange"); err != nil {
			return err
		}
		if _, err := br.WriteTo(w, w.Offset()); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}

		if _, err := io.WriteString(w, " /Contents"); err != nil {
			return err
		}
		if _, err := contents.WriteTo(w, w.Offset()); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}

		if opts.Reference != "" {
			if _, err := io.WriteString(w, opts.Reference); err != nil {
				return err
			}
		}

		if opts.Name != "" {
			if _, err := fmt.Fprintf(w, " /Name %s\n", pdfString(opts.Name)); err != nil {
				return err
			}
		}
		if opts.Location != "" {
			if _, err := fmt.Fprintf(w, " /Location %s\n", pdfString(opts.Location)); err != nil {
				return err
			}
		}
		if opts.Reason != "" {
			if _, err := fmt.Fprintf(w, " /Reason %s\n", pdfString(opts.Reason)); err != nil {
				return err
			}
		}
		if opts.ContactInfo != "" {
			if _, err := fmt.Fprintf(w, " /ContactInfo %s\n", pdfString(opts.ContactInfo)); err != nil {
				return err
			}
		}
		if opts.SigningTime != nil {
			if _, err := fmt.Fprintf(w, " /M %s\n", pdfDateTime(*opts.SigningTime)); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, ">>")
		return err
	}

	return writeBody, br, contents, nil
}
