package types

// ChangeType categorizes a change.
type ChangeType string

// Change categories accepted in an Analysis.
const (
	ChangeFeature       ChangeType = "feature"
	ChangeBugfix        ChangeType = "bugfix"
	ChangeRefactor      ChangeType = "refactor"
	ChangePerformance   ChangeType = "performance"
	ChangeSecurity      ChangeType = "security"
	ChangeDocumentation ChangeType = "documentation"
	ChangeOther         ChangeType = "other"
)

// ContextAssessment is the model's judgement of whether the change record
// carried enough context to write about it.
type ContextAssessment string

// Context assessment values.
const (
	ContextSufficient       ContextAssessment = "sufficient"
	ContextNeedsEnhancement ContextAssessment = "needs_enhancement"
	ContextInsufficient     ContextAssessment = "insufficient"
)

// Analysis is the structured interpretation of a change record.
type Analysis struct {
	ChangeType               ChangeType        `json:"change_type"`
	TechnicalSummary         string            `json:"technical_summary"`
	BusinessImpact           string            `json:"business_impact"`
	KeyChanges               []string          `json:"key_changes"`
	TechnicalDetails         []string          `json:"technical_details"`
	AffectedComponents       []string          `json:"affected_components"`
	NarrativeAngle           string            `json:"narrative_angle"`
	ContextAssessment        ContextAssessment `json:"context_assessment"`
	ContextAssessmentDetails string            `json:"context_assessment_details,omitempty"`
}
