package metadata

import "fmt"

// Condition is the observed physical condition of an asset.
type Condition string

const (
	ConditionNew       Condition = "NEW"
	ConditionExcellent Condition = "EXCELLENT"
	ConditionGood      Condition = "GOOD"
	ConditionAverage   Condition = "AVERAGE"
	ConditionPoor      Condition = "POOR"
	ConditionUnusable  Condition = "UNUSABLE"
)

func NewCondition(value string) (Condition, error) {
	condition := Condition(value)
	if !condition.isValid() {
		return "", fmt.Errorf("invalid condition: %s", value)
	}
	return condition, nil
}

func (c Condition) isValid() bool {
	switch c {
	case ConditionNew, ConditionExcellent, ConditionGood,
		ConditionAverage, ConditionPoor, ConditionUnusable:
		return true
	default:
		return false
	}
}

// IsDegraded marks the conditions that trigger an inventory anomaly when
// observed on an asset that was not previously degraded.
func (c Condition) IsDegraded() bool {
	return c == ConditionPoor || c == ConditionUnusable
}
