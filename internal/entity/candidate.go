package entity

// RiskPair couples one identified risk with its mitigation measure.
type RiskPair struct {
	Risk       string `json:"risk"`
	Mitigation string `json:"mitigation"`
}

// CandidateRecord is one team's extracted-but-not-yet-committed record from
// a document. One daily log sheet can yield several candidates, one per
// team. Candidates are read-only source data: edits live in the
// EditableFieldSet until committed.
type CandidateRecord struct {
	TeamLabel       string     `json:"team_name"`
	LeaderName      string     `json:"leader_name,omitempty"`
	Headcount       int        `json:"headcount,omitempty"`
	WorkDescription string     `json:"work_description,omitempty"`
	Risks           []RiskPair `json:"risks,omitempty"`
	Feedback        []string   `json:"feedback,omitempty"`
}
