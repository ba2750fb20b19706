package increwriter

import (
	"fmt"
	"io"
	"sort"
)

// xrefSubsection is a run of contiguous object ids sharing one "first count"
// header line, the classic PDF cross-reference table shape (ISO 32000
// §7.5.4). Modeled on writeIncrXrefTable, generalised here to
// group an arbitrary dirty set into as many contiguous runs as needed
// instead of assuming exactly three new objects.
type xrefSubsection struct {
	first   uint32
	entries []Ref
}

func subsections(refs []Ref) []xrefSubsection {
	sorted := append([]Ref(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var subs []xrefSubsection
	for _, r := range sorted {
		if len(subs) > 0 {
			last := &subs[len(subs)-1]
			if last.first+uint32(len(last.entries)) == r.ID {
				last.entries = append(last.entries, r)
				continue
			}
		}
		subs = append(subs, xrefSubsection{first: r.ID, entries: []Ref{r}})
	}
	return subs
}

// writeXrefTable emits a table-style cross-reference section listing only
// the objects in offsets, in one or more contiguous subsections.
func writeXrefTable(w io.Writer, order []Ref, offsets map[Ref]int64) error {
	if _, err := io.WriteString(w, "xref\n"); err != nil {
		return err
	}
	for _, sub := range subsections(order) {
		if _, err := fmt.Fprintf(w, "%d %d\n", sub.first, len(sub.entries)); err != nil {
			return err
		}
		for _, ref := range sub.entries {
			off, ok := offsets[ref]
			if !ok {
				return fmt.Errorf("increwriter: no recorded offset for %s", ref)
			}
			if _, err := fmt.Fprintf(w, "%010d %05d n \r\n", off, ref.Gen); err != nil {
				return err
			}
		}
	}
	return nil
}
