// Package chunkid assigns deterministic IDs of the form "source:page:index" to chunks.
//
// index counts consecutive chunks that share the same source:page and resets to zero
// whenever that pair changes from the previous chunk. IDs depend only on the order and
// metadata of the input, never on what a collection already holds, so re-ingesting the
// same corpus yields the same IDs.
package chunkid

import (
	"fmt"
	"strconv"

	"github.com/hyperjump/ragindex/internal/models"
)

// Missing renders an absent source or page.
const Missing = "None"

// Compute returns the ID for each chunk, in input order.
func Compute(chunks []models.Chunk) []string {
	ids := make([]string, len(chunks))
	last := ""
	index := 0
	for i, ch := range chunks {
		pageID := PageID(ch.Metadata)
		if i > 0 && pageID == last {
			index++
		} else {
			index = 0
		}
		last = pageID
		ids[i] = pageID + ":" + strconv.Itoa(index)
	}
	return ids
}

// Assign sets ID (and metadata "id") on every chunk in place.
func Assign(chunks []models.Chunk) {
	for i, id := range Compute(chunks) {
		chunks[i].ID = id
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = models.Metadata{}
		}
		chunks[i].Metadata[models.MetaID] = id
	}
}

// PageID returns the "source:page" prefix for a chunk's metadata.
func PageID(m models.Metadata) string {
	return render(m[models.MetaSource]) + ":" + render(m[models.MetaPage])
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return Missing
	case string:
		return x
	case float64:
		// Pages decoded from JSON arrive as float64.
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
