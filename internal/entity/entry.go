package entity

import (
	"time"

	"github.com/google/uuid"
)

// TeamIdentity is the resolved team for a committed entry.
type TeamIdentity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`

	// Synthesized is true when no roster entry matched the extracted label
	// and the id was generated on the fly.
	Synthesized bool `json:"synthesized,omitempty"`
}

// CommittedEntry is the durable output unit: a copy of the edited fields
// plus a unique identifier, a creation timestamp, and the resolved team.
// Immutable once created; later edits are an update-in-place by ID,
// performed by the surrounding application rather than the intake core.
type CommittedEntry struct {
	ID         string           `json:"id"`
	DocumentID uuid.UUID        `json:"document_id"`
	Team       TeamIdentity     `json:"team"`
	Fields     EditableFieldSet `json:"fields"`
	CreatedAt  time.Time        `json:"created_at"`
}
