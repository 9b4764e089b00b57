// Package audit implements the audit logging service.
//
// Audit logs are append-only compliance records. Hard-delete is NOT allowed.
package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"dealpipe.io/dealpipe/internal/pkg/logger"
)

// Logger writes audit records to the database.
type Logger struct {
	pool *pgxpool.Pool
}

// NewLogger creates a new audit Logger.
func NewLogger(pool *pgxpool.Pool) *Logger {
	return &Logger{pool: pool}
}

// LogAction records an auditable action.
func (l *Logger) LogAction(ctx context.Context, action, resourceType, resourceID, actor string, details map[string]interface{}) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, action, resource_type, resource_id, actor, details)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		generateAuditID(), action, resourceType, resourceID, actor, details)
	if err != nil {
		logger.Error("Failed to write audit log",
			zap.String("action", action),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// LogWIPOverride records a privileged move past a stage's WIP limit.
func (l *Logger) LogWIPOverride(ctx context.Context, dealID, stage, actor string, current, limit int) error {
	return l.LogAction(ctx, "pipeline.wip_override", "deal", dealID, actor, map[string]interface{}{
		"stage":   stage,
		"current": current,
		"limit":   limit,
	})
}

// LogPipelineReload records an administrative configuration reload.
func (l *Logger) LogPipelineReload(ctx context.Context, actor string) error {
	return l.LogAction(ctx, "pipeline.config_reload", "pipeline", "settings", actor, nil)
}

func generateAuditID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return fmt.Sprintf("audit-%s", id.String())
}
