package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"editorial-desk/models"
	"editorial-desk/storage"
)

// Auditor writes the audit trail. Recording never fails the caller.
type Auditor struct {
	Store  storage.Store
	Logger *zap.Logger
	Now    func() time.Time
}

// Record appends one audit entry; failures are logged and dropped.
func (a *Auditor) Record(ctx context.Context, actorID *string, action, entity string, entityID *string, metadata map[string]any) {
	entry := &models.AuditLog{
		CreatedAt: a.Now(),
		ActorID:   actorID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			a.Logger.Warn("Audit metadata not serialisable", zap.String("action", action), zap.Error(err))
		} else {
			entry.Metadata = datatypes.JSON(raw)
		}
	}
	if err := a.Store.CreateAuditLog(ctx, entry); err != nil {
		a.Logger.Error("Failed to write audit entry",
			zap.String("action", action),
			zap.String("entity", entity),
			zap.Error(err))
	}
}

func strPtr(s string) *string {
	return &s
}
