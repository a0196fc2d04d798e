package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EvaluationType classifies a valuation record entry.
type EvaluationType string

const (
	EvaluationAcquisition     EvaluationType = "ACQUISITION"
	EvaluationReevaluation    EvaluationType = "REEVALUATION"
	EvaluationExpertAppraisal EvaluationType = "EXPERT_APPRAISAL"
	EvaluationDepreciation    EvaluationType = "DEPRECIATION"
	EvaluationDisposal        EvaluationType = "DISPOSAL"
)

func NewEvaluationType(value string) (EvaluationType, error) {
	t := EvaluationType(value)
	switch t {
	case EvaluationAcquisition, EvaluationReevaluation, EvaluationExpertAppraisal,
		EvaluationDepreciation, EvaluationDisposal:
		return t, nil
	default:
		return "", fmt.Errorf("invalid evaluation type: %s", value)
	}
}

// ValuationRecord is an immutable, append-only entry in an asset's value
// history. Records are never updated or deleted.
type ValuationRecord struct {
	ID            int             `json:"id" db:"id"`
	AssetID       int             `json:"asset_id" db:"asset_id"`
	EffectiveDate time.Time       `json:"effective_date" db:"effective_date"`
	Value         decimal.Decimal `json:"value" db:"value"`
	Type          EvaluationType  `json:"type" db:"evaluation_type"`
	Rationale     string          `json:"rationale" db:"rationale"`
	Evaluator     string          `json:"evaluator" db:"evaluator"`
	CreatedBy     string          `json:"created_by" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
