package models

import "time"

// Movement is one append-only entry in the transfer ledger. Written by the
// lifecycle service on transfer; never updated.
type Movement struct {
	ID            int       `json:"id" db:"id"`
	AssetID       int       `json:"asset_id" db:"asset_id"`
	FromUnitID    int       `json:"from_unit_id" db:"from_unit_id"`
	ToUnitID      int       `json:"to_unit_id" db:"to_unit_id"`
	EffectiveDate time.Time `json:"effective_date" db:"effective_date"`
	Reason        string    `json:"reason" db:"reason"`
	CreatedBy     string    `json:"created_by" db:"created_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

func (m *Movement) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   m.ID,
		ResourceType: "movement",
	}
}
