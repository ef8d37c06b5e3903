package commit

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// entryID builds a unique entry identifier from time-based entropy plus
// the per-batch ordinal, so N entries generated within the same
// millisecond still get pairwise-distinct ids. The random suffix keeps ids
// from independent operators apart.
func entryID(t time.Time, ordinal int) string {
	return strconv.FormatInt(t.UnixMilli(), 36) +
		"-" + strconv.Itoa(ordinal) +
		"-" + uuid.New().String()[:8]
}
