package pdfsigner

import (
	"fmt"

	"github.com/terminalkitten/pdf-stamp/signcontract"
)

// AutoSize computes bytes_reserved from a dummy CMS DER length L using the
// formula grounded in pyhanko's PdfSigner._write_signature's bytes_reserved
// estimate: test_len = 2*L (hex length), bytes_reserved =
// test_len + 2*(test_len/4), which reduces to 2L + 2*floor(L/2).
// The 50% margin absorbs timestamp-response size variance (spec §4.4.6).
func AutoSize(derLen int) int {
	testLen := derLen * 2
	return testLen + 2*(testLen/4)
}

// ValidateReserved rejects an explicitly supplied odd bytes_reserved value
// (spec §4.4.6, OddBytesReserved).
func ValidateReserved(bytesReserved int) error {
	if bytesReserved%2 != 0 {
		return fmt.Errorf("%w: %d", signcontract.ErrOddBytesReserved, bytesReserved)
	}
	return nil
}
