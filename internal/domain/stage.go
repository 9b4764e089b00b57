package domain

// Stage identifies a pipeline stage. The set is closed: every value a
// request may carry must resolve through the registry, and anything
// outside the set fails with an unknown-stage error rather than a silent
// string-compare miss.
type Stage string

const (
	StageSourcing             Stage = "sourcing"
	StageScreening            Stage = "screening"
	StageAnalysisOutreach     Stage = "analysis_outreach"
	StageDueDiligence         Stage = "due_diligence"
	StageValuationStructuring Stage = "valuation_structuring"
	StageLOINegotiation       Stage = "loi_negotiation"
	StageFinancing            Stage = "financing"
	StageClosing              Stage = "closing"
	StageClosedOwned90Day     Stage = "closed_owned_90_day"
	StageClosedOwnedStable    Stage = "closed_owned_stable"
	StageUnavailable          Stage = "unavailable"
)

// AllStages lists every stage in pipeline order.
var AllStages = []Stage{
	StageSourcing,
	StageScreening,
	StageAnalysisOutreach,
	StageDueDiligence,
	StageValuationStructuring,
	StageLOINegotiation,
	StageFinancing,
	StageClosing,
	StageClosedOwned90Day,
	StageClosedOwnedStable,
	StageUnavailable,
}

// StageClass partitions stages into open and terminal outcomes.
type StageClass string

const (
	StageClassOpen StageClass = "open"
	StageClassWon  StageClass = "won"
	StageClassLost StageClass = "lost"
)

// Terminal reports whether the class represents a closed outcome.
func (c StageClass) Terminal() bool {
	return c == StageClassWon || c == StageClassLost
}

// Staleness classifies a deal's elapsed days in its current stage
// against the stage's configured thresholds.
type Staleness string

const (
	StalenessNormal   Staleness = "normal"
	StalenessWarning  Staleness = "warning"
	StalenessCritical Staleness = "critical"
)
