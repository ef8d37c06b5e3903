package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/safesite-labs/sitelog-intake/constants"
)

// Payload is the raw scanned document handed to the extraction service.
type Payload struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// QueuedDocument is one scanned log sheet in the intake queue.
type QueuedDocument struct {
	ID      uuid.UUID          `json:"id"`
	Payload Payload            `json:"payload"`
	State   constants.DocState `json:"state"`

	// CommittedLabels lists the resolved team labels already committed
	// against this document, in commit order.
	CommittedLabels []string `json:"committed_labels,omitempty"`

	// EditSnapshot holds the last in-progress edit state, present only
	// while the document is not the active selection and has unsaved work.
	// Cleared when the document is marked DONE.
	EditSnapshot *EditableFieldSet `json:"edit_snapshot,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// HasCommittedLabel reports whether a record has already been committed
// against this document under the given resolved team label.
func (d *QueuedDocument) HasCommittedLabel(label string) bool {
	for _, l := range d.CommittedLabels {
		if l == label {
			return true
		}
	}
	return false
}
