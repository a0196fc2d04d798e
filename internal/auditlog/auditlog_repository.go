package auditlog

import (
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"patrimony/internal/repository"
	"patrimony/pkg/models"
)

type AuditLogRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *AuditLogRepository {
	return &AuditLogRepository{repository: r}
}

func (r *AuditLogRepository) PersistLog(entry models.AuditLog, data interface{}) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal audit log data: %w", err)
	}

	query := r.repository.GoquDBWrapper.Insert("audit_logs").
		Rows(goqu.Record{
			"event_id":      entry.EventID,
			"resource_id":   entry.ResourceID,
			"resource_type": entry.ResourceType,
			"action":        entry.Action,
			"actor":         entry.Actor,
			"data":          dataJSON,
		})

	_, err = query.Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

func (r *AuditLogRepository) GetResourceLog(id int, resourceType string) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.repository.GoquDBWrapper.
		From(goqu.T("audit_logs").As("a")).
		Select(
			goqu.I("a.id").As("id"),
			goqu.I("a.event_id").As("event_id"),
			goqu.I("a.resource_id").As("resource_id"),
			goqu.I("a.resource_type").As("resource_type"),
			goqu.I("a.action").As("action"),
			goqu.I("a.actor").As("actor"),
			goqu.I("a.data").As("data"),
			goqu.I("a.created_at").As("created_at"),
		).
		Where(goqu.Ex{
			"a.resource_id":   id,
			"a.resource_type": resourceType,
		}).
		Order(goqu.I("a.created_at").Desc()).
		Executor().ScanStructs(&entries)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	for i := range entries {
		entries[i].LoadFromDB()
	}

	return entries, nil
}
