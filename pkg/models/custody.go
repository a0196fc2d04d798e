package models

import (
	"fmt"
	"time"
)

type AssignmentType string

const (
	AssignmentPermanent AssignmentType = "PERMANENT"
	AssignmentTemporary AssignmentType = "TEMPORARY"
	AssignmentDelegated AssignmentType = "DELEGATED"
)

func NewAssignmentType(value string) (AssignmentType, error) {
	t := AssignmentType(value)
	switch t {
	case AssignmentPermanent, AssignmentTemporary, AssignmentDelegated:
		return t, nil
	default:
		return "", fmt.Errorf("invalid assignment type: %s", value)
	}
}

// CustodyAssignment is a time-bounded responsibility link between an asset
// and a custodian. At most one assignment per asset has a nil EndDate.
type CustodyAssignment struct {
	ID          int            `json:"id" db:"id"`
	AssetID     int            `json:"asset_id" db:"asset_id"`
	CustodianID int            `json:"custodian_id" db:"custodian_id"`
	Type        AssignmentType `json:"type" db:"assignment_type"`
	StartDate   time.Time      `json:"start_date" db:"start_date"`
	EndDate     *time.Time     `json:"end_date" db:"end_date"`
	Active      bool           `json:"active" db:"active"`
	Reason      string         `json:"reason" db:"reason"`
	CreatedBy   string         `json:"created_by" db:"created_by"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

func (c *CustodyAssignment) IsOpen() bool {
	return c.EndDate == nil
}

type Custodian struct {
	ID        int       `json:"id" db:"id"`
	Matricule string    `json:"matricule" db:"matricule"`
	FullName  string    `json:"full_name" db:"full_name"`
	Function  string    `json:"function" db:"function"`
	UnitID    *int      `json:"unit_id" db:"unit_id"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (c *CustodyAssignment) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   c.ID,
		ResourceType: "custody_assignment",
	}
}
