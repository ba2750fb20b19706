package increwriter

import (
	"crypto/rand"
	"fmt"
)

// randomBytes is the default RandomBytes source: 16 cryptographically
// random bytes, matching pyhanko's os.urandom(16) (_handle_id).
func randomBytes() ([]byte, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("increwriter: generate id bytes: %w", err)
	}
	return buf, nil
}

// DocumentID computes the new trailer /ID array under the policy grounded
// in pyhanko's _handle_id: ID[0] is carried over unchanged if the prior
// file had one, or freshly generated if it did not; ID[1] is always
// regenerated fresh, every revision.
func (w *Writer) DocumentID() (id0, id1 []byte, err error) {
	prevID := w.Prior.Trailer().Key("ID")
	if !prevID.IsNull() && prevID.Len() >= 1 {
		id0 = []byte(prevID.Index(0).RawString())
	} else {
		id0, err = w.RandomBytes()
		if err != nil {
			return nil, nil, err
		}
	}

	id1, err = w.RandomBytes()
	if err != nil {
		return nil, nil, err
	}
	return id0, id1, nil
}
