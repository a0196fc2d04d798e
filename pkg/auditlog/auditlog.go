package auditlog

import (
	"log"

	"github.com/google/uuid"

	"patrimony/pkg/models"
)

// Store persists audit entries. Implemented by internal/auditlog.
type Store interface {
	PersistLog(entry models.AuditLog, data interface{}) error
}

type Auditable interface {
	CreateLogView() models.AuditLog
}

// Auditlog records who did what to which resource. Emission is
// fire-and-forget: a failed write never reaches the triggering operation.
type Auditlog struct {
	store Store
}

func NewAuditLog(store Store) *Auditlog {
	return &Auditlog{store: store}
}

func (a *Auditlog) Log(action, actor string, data interface{}, item Auditable) {
	if a == nil || a.store == nil {
		return
	}

	entry := item.CreateLogView()
	entry.Action = action
	entry.Actor = actor
	entry.EventID = uuid.New()

	if err := a.store.PersistLog(entry, data); err != nil {
		log.Println("Unable to create audit log entry for id ", entry.ResourceID)
		return
	}
}
