package commit

import (
	"fmt"

	"github.com/google/uuid"
)

// BatchError reports a commit-all batch that stopped at a persistence
// failure. Entries in Confirmed are safely stored; NotAttempted were never
// written. No compensating rollback is performed, so the operator message
// must distinguish "nothing was saved" from "some records were saved".
type BatchError struct {
	DocumentID   uuid.UUID
	Confirmed    []string // resolved team labels with entries safely stored
	FailedLabel  string   // the record whose write failed
	NotAttempted []string // records after the failure, never written
	Err          error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("commit batch for document %s failed at %q after %d confirmed record(s): %v",
		e.DocumentID, e.FailedLabel, len(e.Confirmed), e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
