package catalog

import (
	"bufio"
	"fmt"
	"io"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

// WriteCollection streams entries as one GeoJSON FeatureCollection. Entries
// whose id was already written are skipped, so merged query results from
// several cells do not repeat a file.
func WriteCollection(w io.Writer, entries []model.Entry, s Schema) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(`{"type":"FeatureCollection","features":[`); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(entries))
	first := true
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup && e.ID != "" {
			continue
		}
		seen[e.ID] = struct{}{}

		b, err := EncodeFeature(e, s)
		if err != nil {
			return err
		}
		if !first {
			_ = bw.WriteByte(',')
		}
		first = false
		if _, err := bw.Write(b); err != nil {
			return fmt.Errorf("write feature %s: %w", e.ID, err)
		}
	}

	if _, err := bw.WriteString("]}\n"); err != nil {
		return err
	}
	return bw.Flush()
}
