// Package board produces the grouped-by-stage pipeline snapshot consumed
// by rendering clients. Pure read path: no side effects, safe to call
// concurrently and frequently.
package board

import (
	"context"
	"time"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/metrics"
	"dealpipe.io/dealpipe/internal/pipeline"
)

// DealLister supplies the active deals feeding the board.
type DealLister interface {
	ListActive(ctx context.Context) ([]*domain.Deal, error)
}

// DealSummary is one card on the board.
type DealSummary struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Amount            float64          `json:"amount"`
	Probability       int              `json:"probability"`
	AssignedTo        string           `json:"assigned_to"`
	ExpectedCloseDate *time.Time       `json:"expected_close_date,omitempty"`
	StageEnteredAt    time.Time        `json:"stage_entered_at"`
	DaysInStage       int              `json:"days_in_stage"`
	Staleness         domain.Staleness `json:"staleness"`
}

// StageColumn pairs stage metadata with its ordered deals.
type StageColumn struct {
	ID          domain.Stage `json:"id"`
	DisplayName string       `json:"display_name"`
	Order       int          `json:"order"`
	WIPLimit    *int         `json:"wip_limit"`
	Terminal    bool         `json:"terminal"`
	Count       int          `json:"count"`
	Deals       []DealSummary `json:"deals"`
}

// Board is the full pipeline snapshot, columns in pipeline order.
type Board struct {
	Columns     []StageColumn `json:"columns"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Service assembles board snapshots.
type Service struct {
	registry *pipeline.Registry
	deals    DealLister
	now      func() time.Time
}

// NewService creates a board query service.
func NewService(registry *pipeline.Registry, deals DealLister, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{registry: registry, deals: deals, now: now}
}

// Snapshot groups active deals by stage, in pipeline order, with
// days-in-stage and staleness per deal. Deals in stages missing from the
// registry (possible mid-reconfiguration) are dropped from the board.
func (s *Service) Snapshot(ctx context.Context) (*Board, error) {
	snap := s.registry.Snapshot()
	deals, err := s.deals.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	byStage := make(map[domain.Stage][]DealSummary)
	for _, deal := range deals {
		cfg, err := snap.Get(deal.Stage)
		if err != nil {
			continue
		}
		days := deal.DaysInStage(now)
		byStage[deal.Stage] = append(byStage[deal.Stage], DealSummary{
			ID:                deal.ID,
			Name:              deal.Name,
			Amount:            deal.Amount,
			Probability:       deal.Probability,
			AssignedTo:        deal.AssignedTo,
			ExpectedCloseDate: deal.ExpectedCloseDate,
			StageEnteredAt:    deal.StageEnteredAt,
			DaysInStage:       days,
			Staleness:         metrics.ClassifyStaleness(cfg, days),
		})
	}

	b := &Board{GeneratedAt: now}
	for _, cfg := range snap.All() {
		col := StageColumn{
			ID:          cfg.ID,
			DisplayName: cfg.DisplayName,
			Order:       cfg.Order,
			WIPLimit:    cfg.WIPLimit,
			Terminal:    cfg.Terminal(),
			Deals:       byStage[cfg.ID],
		}
		if col.Deals == nil {
			col.Deals = []DealSummary{}
		}
		col.Count = len(col.Deals)
		b.Columns = append(b.Columns, col)
	}
	return b, nil
}
