package pipeline

import (
	"fmt"
	"time"

	"dealpipe.io/dealpipe/internal/domain"
)

// Corrections are field values the coordinator must force when the
// transition commits.
type Corrections struct {
	Probability *int
	SalesStatus *domain.SalesStatus
}

// Empty reports whether there is nothing to apply.
func (c Corrections) Empty() bool {
	return c.Probability == nil && c.SalesStatus == nil
}

// Verdict is the outcome of validating one candidate transition.
// Errors block the commit; Warnings do not.
type Verdict struct {
	OK          bool
	Errors      []string
	Warnings    []string
	Corrections Corrections
}

// Validator checks field-completeness and threshold rules for candidate
// transitions. Pure: the verdict depends only on the deal snapshot and
// the registry snapshot passed in, so retries see identical results.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a validator. The clock is injectable for the
// past-close-date warning.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Validate checks the move of deal from -> to against the snapshot.
func (v *Validator) Validate(snap *Snapshot, deal *domain.Deal, from, to domain.Stage) Verdict {
	fromCfg, err := snap.Get(from)
	if err != nil {
		return Verdict{Errors: []string{fmt.Sprintf("Unknown stage %q", from)}}
	}
	toCfg, err := snap.Get(to)
	if err != nil {
		return Verdict{Errors: []string{fmt.Sprintf("Unknown stage %q", to)}}
	}

	verdict := Verdict{}
	if !snap.Allowed(from, to) {
		verdict.Errors = append(verdict.Errors,
			fmt.Sprintf("Transition from %s to %s is not allowed", fromCfg.DisplayName, toCfg.DisplayName))
	}
	v.applyStageRules(&verdict, deal, toCfg)
	v.applyCorrections(&verdict, fromCfg, toCfg)
	verdict.OK = len(verdict.Errors) == 0
	return verdict
}

func (v *Validator) applyStageRules(verdict *Verdict, deal *domain.Deal, toCfg *StageConfig) {
	switch toCfg.ID {
	case domain.StageDueDiligence:
		if !deal.HasAccount() {
			verdict.Errors = append(verdict.Errors, "Account reference required")
		}
		if deal.Amount <= 0 {
			verdict.Warnings = append(verdict.Warnings, "Deal amount should be set before due diligence")
		}

	case domain.StageValuationStructuring:
		if deal.Amount <= 0 {
			verdict.Errors = append(verdict.Errors, "Deal amount required")
		}
		if deal.ExpectedCloseDate == nil {
			verdict.Warnings = append(verdict.Warnings, "Expected close date should be set")
		}

	case domain.StageLOINegotiation:
		if deal.Amount <= 0 {
			verdict.Errors = append(verdict.Errors, "Deal amount required")
		}
		if deal.Probability < 70 {
			verdict.Warnings = append(verdict.Warnings, "Probability below 70% entering negotiation")
		}

	case domain.StageFinancing, domain.StageClosing:
		if deal.Amount <= 0 {
			verdict.Errors = append(verdict.Errors, "Deal amount required")
		}
		if deal.ExpectedCloseDate == nil {
			verdict.Errors = append(verdict.Errors, "Expected close date required")
		}
		if deal.Probability < 80 {
			verdict.Warnings = append(verdict.Warnings, "Probability below 80% entering "+toCfg.DisplayName)
		}
		if toCfg.ID == domain.StageClosing &&
			deal.ExpectedCloseDate != nil && deal.ExpectedCloseDate.Before(v.now()) {
			verdict.Warnings = append(verdict.Warnings, "Expected close date is in the past")
		}

	default:
		if toCfg.Class == domain.StageClassWon && deal.Amount <= 0 {
			verdict.Errors = append(verdict.Errors, "Deal amount required to close")
		}
	}
}

func (v *Validator) applyCorrections(verdict *Verdict, fromCfg, toCfg *StageConfig) {
	switch {
	case toCfg.Class == domain.StageClassWon:
		verdict.Corrections.Probability = intPtr(100)
		won := domain.SalesStatusWon
		verdict.Corrections.SalesStatus = &won
	case toCfg.Class == domain.StageClassLost:
		verdict.Corrections.Probability = intPtr(0)
		lost := domain.SalesStatusLost
		verdict.Corrections.SalesStatus = &lost
	case fromCfg.Terminal() && toCfg.Class == domain.StageClassOpen:
		// Reopening a closed deal clears the outcome; probability stays.
		open := domain.SalesStatusOpen
		verdict.Corrections.SalesStatus = &open
	}
}
