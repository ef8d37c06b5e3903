package entity

import "reflect"

// MediaRef is an opaque reference to bounded media produced by the media
// preprocessor (or to the source document image used as fallback evidence).
type MediaRef struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size,omitempty"`
}

// ManualEntry marks a fieldset that does not reflect any extracted
// candidate.
const ManualEntry = -1

// EditableFieldSet is the live, user-editable projection of exactly one
// CandidateRecord, or of manually entered data when extraction produced
// nothing.
type EditableFieldSet struct {
	LogDate         string     `json:"log_date" validate:"omitempty,datetime=2006-01-02"`
	LogTime         string     `json:"log_time,omitempty" validate:"omitempty,datetime=15:04"`
	TeamRef         string     `json:"team_ref"`
	LeaderName      string     `json:"leader_name,omitempty"`
	Headcount       int        `json:"headcount" validate:"gte=0,lte=500"`
	WorkDescription string     `json:"work_description,omitempty"`
	Risks           []RiskPair `json:"risks,omitempty"`
	Feedback        []string   `json:"feedback,omitempty"`

	Photo         *MediaRef `json:"photo,omitempty"`
	Video         *MediaRef `json:"video,omitempty"`
	VideoAnalysis string    `json:"video_analysis,omitempty"`

	// CandidateIndex records which extracted candidate this projection
	// reflects, or ManualEntry.
	CandidateIndex int `json:"candidate_index"`
}

// Clone returns a deep copy.
func (f *EditableFieldSet) Clone() *EditableFieldSet {
	if f == nil {
		return nil
	}
	out := *f
	if f.Risks != nil {
		out.Risks = make([]RiskPair, len(f.Risks))
		copy(out.Risks, f.Risks)
	}
	if f.Feedback != nil {
		out.Feedback = make([]string, len(f.Feedback))
		copy(out.Feedback, f.Feedback)
	}
	if f.Photo != nil {
		p := *f.Photo
		out.Photo = &p
	}
	if f.Video != nil {
		v := *f.Video
		out.Video = &v
	}
	return &out
}

// Equal reports field-by-field equality. Used for dirty tracking when the
// active document changes.
func (f *EditableFieldSet) Equal(other *EditableFieldSet) bool {
	if f == nil || other == nil {
		return f == other
	}
	return reflect.DeepEqual(f, other)
}
