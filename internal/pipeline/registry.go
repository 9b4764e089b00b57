// Package pipeline implements the stage transition engine: the stage
// registry, the transition validator, and the WIP limit enforcer.
package pipeline

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"dealpipe.io/dealpipe/internal/domain"
	apperrors "dealpipe.io/dealpipe/internal/pkg/errors"
)

// StageConfig is one stage registry entry. Immutable at request time.
type StageConfig struct {
	ID                 domain.Stage      `json:"id" yaml:"id"`
	DisplayName        string            `json:"display_name" yaml:"display_name"`
	Order              int               `json:"order" yaml:"order"`
	WIPLimit           *int              `json:"wip_limit" yaml:"wip_limit"`
	ProbabilityDefault int               `json:"probability_default" yaml:"probability_default"`
	WarningDays        *int              `json:"warning_days" yaml:"warning_days"`
	CriticalDays       *int              `json:"critical_days" yaml:"critical_days"`
	Class              domain.StageClass `json:"class" yaml:"class"`
	Successors         []domain.Stage    `json:"successors" yaml:"successors"`
}

// Terminal reports whether the stage represents a closed outcome.
func (c *StageConfig) Terminal() bool {
	return c.Class.Terminal()
}

// NotificationRule marks a transition as notify-worthy. FromStage nil
// means any move into ToStage matches.
type NotificationRule struct {
	FromStage *domain.Stage `yaml:"from_stage"`
	ToStage   domain.Stage  `yaml:"to_stage"`
	// NotifyAssignee routes the alert to the deal's assigned actor in
	// addition to the configured recipients.
	NotifyAssignee bool     `yaml:"notify_assignee"`
	Recipients     []string `yaml:"recipients"`
}

// Snapshot is an immutable view of the pipeline configuration. Requests
// capture one snapshot and use it for the whole transition; reloads swap
// the pointer, never mutate in place.
type Snapshot struct {
	stages  map[domain.Stage]*StageConfig
	ordered []*StageConfig
	rules   []NotificationRule
}

// Get returns the config for a stage id, or an unknown-stage error.
func (s *Snapshot) Get(id domain.Stage) (*StageConfig, error) {
	cfg, ok := s.stages[id]
	if !ok {
		return nil, apperrors.ErrUnknownStagef(string(id))
	}
	return cfg, nil
}

// All returns all stage configs in pipeline order.
func (s *Snapshot) All() []*StageConfig {
	return s.ordered
}

// Successors returns the allowed target stages from the given stage.
func (s *Snapshot) Successors(id domain.Stage) ([]domain.Stage, error) {
	cfg, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return cfg.Successors, nil
}

// Allowed reports whether from->to is a configured transition pair.
func (s *Snapshot) Allowed(from, to domain.Stage) bool {
	cfg, ok := s.stages[from]
	if !ok {
		return false
	}
	for _, succ := range cfg.Successors {
		if succ == to {
			return true
		}
	}
	return false
}

// Rules returns the notification rules.
func (s *Snapshot) Rules() []NotificationRule {
	return s.rules
}

// WithRules returns a snapshot carrying the given notification rules.
// Stage definitions are shared with the receiver.
func (s *Snapshot) WithRules(rules []NotificationRule) *Snapshot {
	return &Snapshot{stages: s.stages, ordered: s.ordered, rules: rules}
}

// Registry holds the active configuration snapshot. Reload is an
// administrative operation outside the transition hot path.
type Registry struct {
	current atomic.Pointer[Snapshot]
	path    string
}

// NewRegistry creates a registry from a settings document. An empty path
// uses the built-in defaults.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path}
	snap, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}
	r.current.Store(snap)
	return r, nil
}

// Snapshot returns the active configuration snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Reload re-reads the settings document and atomically swaps the active
// snapshot. In-flight requests keep the snapshot they captured.
func (r *Registry) Reload() error {
	snap, err := loadSnapshot(r.path)
	if err != nil {
		return err
	}
	r.current.Store(snap)
	return nil
}

// settingsDoc is the YAML shape of the administrable settings document.
type settingsDoc struct {
	Stages        []StageConfig      `yaml:"stages"`
	Notifications []NotificationRule `yaml:"notifications"`
}

func loadSnapshot(path string) (*Snapshot, error) {
	if path == "" {
		return defaultSnapshot(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline settings: %w", err)
	}

	var doc settingsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pipeline settings: %w", err)
	}

	return buildSnapshot(doc)
}

func buildSnapshot(doc settingsDoc) (*Snapshot, error) {
	if len(doc.Stages) == 0 {
		return nil, fmt.Errorf("pipeline settings: no stages defined")
	}

	snap := &Snapshot{
		stages:  make(map[domain.Stage]*StageConfig, len(doc.Stages)),
		ordered: make([]*StageConfig, 0, len(doc.Stages)),
		rules:   doc.Notifications,
	}

	for i := range doc.Stages {
		cfg := doc.Stages[i]
		if cfg.ID == "" {
			return nil, fmt.Errorf("pipeline settings: stage %d has no id", i)
		}
		if _, dup := snap.stages[cfg.ID]; dup {
			return nil, fmt.Errorf("pipeline settings: duplicate stage id %q", cfg.ID)
		}
		if cfg.Terminal() && cfg.WIPLimit != nil {
			return nil, fmt.Errorf("pipeline settings: terminal stage %q must not carry a wip limit", cfg.ID)
		}
		snap.stages[cfg.ID] = &cfg
		snap.ordered = append(snap.ordered, &cfg)
	}

	// Successor targets must resolve
	for _, cfg := range snap.ordered {
		for _, succ := range cfg.Successors {
			if _, ok := snap.stages[succ]; !ok {
				return nil, fmt.Errorf("pipeline settings: stage %q lists unknown successor %q", cfg.ID, succ)
			}
		}
	}

	return snap, nil
}

func intPtr(i int) *int { return &i }

// defaultSnapshot returns the built-in pipeline definition.
func defaultSnapshot() *Snapshot {
	stages := []StageConfig{
		{
			ID: domain.StageSourcing, DisplayName: "Sourcing", Order: 1,
			WIPLimit: intPtr(20), ProbabilityDefault: 10,
			WarningDays: intPtr(30), CriticalDays: intPtr(60),
			Class:      domain.StageClassOpen,
			Successors: []domain.Stage{domain.StageScreening, domain.StageUnavailable},
		},
		{
			ID: domain.StageScreening, DisplayName: "Screening", Order: 2,
			WIPLimit: intPtr(15), ProbabilityDefault: 20,
			WarningDays: intPtr(14), CriticalDays: intPtr(30),
			Class:      domain.StageClassOpen,
			Successors: []domain.Stage{domain.StageSourcing, domain.StageAnalysisOutreach, domain.StageUnavailable},
		},
		{
			ID: domain.StageAnalysisOutreach, DisplayName: "Analysis & Outreach", Order: 3,
			WIPLimit: intPtr(10), ProbabilityDefault: 30,
			WarningDays: intPtr(21), CriticalDays: intPtr(45),
			Class:      domain.StageClassOpen,
			Successors: []domain.Stage{domain.StageScreening, domain.StageDueDiligence, domain.StageUnavailable},
		},
		{
			ID: domain.StageDueDiligence, DisplayName: "Due Diligence", Order: 4,
			WIPLimit: intPtr(8), ProbabilityDefault: 50,
			WarningDays: intPtr(45), CriticalDays: intPtr(90),
			Class:      domain.StageClassOpen,
			Successors: []domain.Stage{domain.StageAnalysisOutreach, domain.StageValuationStructuring, domain.StageUnavailable},
		},
		{
			ID: domain.StageValuationStructuring, DisplayName: "Valuation & Structuring", Order: 5,
			WIPLimit: intPtr(6), ProbabilityDefault: 70,
			WarningDays: intPtr(30), CriticalDays: intPtr(60),
			Class:      domain.StageClassOpen,
			Successors: []domain.Stage{domain.StageDueDiligence, domain.StageLOINegotiation, domain.StageUnavailable},
		},
		{
			ID: domain.StageLOINegotiation, DisplayName: "LOI & Negotiation", Order: 6,
			WIPLimit: intPtr(5), ProbabilityDefault: 80,
			WarningDays: intPtr(30), CriticalDays: intPtr(60),
			Class:      domain.StageClassOpen,
			Successors: []domain.Stage{domain.StageValuationStructuring, domain.StageFinancing, domain.StageUnavailable},
		},
		{
			ID: domain.StageFinancing, DisplayName: "Financing", Order: 7,
			WIPLimit: intPtr(5), ProbabilityDefault: 85,
			WarningDays: intPtr(21), CriticalDays: intPtr(45),
			Class:      domain.StageClassOpen,
			Successors: []domain.Stage{domain.StageLOINegotiation, domain.StageClosing, domain.StageUnavailable},
		},
		{
			ID: domain.StageClosing, DisplayName: "Closing", Order: 8,
			WIPLimit: intPtr(5), ProbabilityDefault: 90,
			WarningDays: intPtr(21), CriticalDays: intPtr(45),
			Class:      domain.StageClassOpen,
			Successors: []domain.Stage{domain.StageFinancing, domain.StageClosedOwned90Day, domain.StageUnavailable},
		},
		{
			ID: domain.StageClosedOwned90Day, DisplayName: "Closed/Owned (90 Day)", Order: 9,
			ProbabilityDefault: 100,
			Class:              domain.StageClassWon,
			Successors:         []domain.Stage{domain.StageClosing, domain.StageClosedOwnedStable, domain.StageUnavailable},
		},
		{
			ID: domain.StageClosedOwnedStable, DisplayName: "Closed/Owned (Stable)", Order: 10,
			ProbabilityDefault: 100,
			Class:              domain.StageClassWon,
			Successors:         []domain.Stage{domain.StageClosedOwned90Day},
		},
		{
			ID: domain.StageUnavailable, DisplayName: "Unavailable", Order: 11,
			ProbabilityDefault: 0,
			WarningDays:        intPtr(180), CriticalDays: intPtr(365),
			Class:      domain.StageClassLost,
			Successors: []domain.Stage{},
		},
	}

	closing := domain.StageClosing
	doc := settingsDoc{
		Stages: stages,
		Notifications: []NotificationRule{
			{FromStage: &closing, ToStage: domain.StageClosedOwned90Day, NotifyAssignee: true},
			{ToStage: domain.StageUnavailable, NotifyAssignee: true},
			{ToStage: domain.StageLOINegotiation, NotifyAssignee: true},
		},
	}

	snap, err := buildSnapshot(doc)
	if err != nil {
		panic(fmt.Sprintf("built-in pipeline definition invalid: %v", err))
	}
	return snap
}
