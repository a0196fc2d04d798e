package valuation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"patrimony/pkg/apperrors"
)

// Method selects the depreciation schedule.
type Method string

const (
	MethodLinear    Method = "LINEAR"
	MethodDeclining Method = "DECLINING"
)

func NewMethod(value string) (Method, error) {
	if value == "" {
		return MethodLinear, nil
	}
	m := Method(value)
	switch m {
	case MethodLinear, MethodDeclining:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported depreciation method: %s", value)
	}
}

// Input holds the acquisition facts a book value is computed from.
// DurationMonths at or below zero means the asset does not depreciate.
type Input struct {
	AcquisitionValue decimal.Decimal
	AcquisitionDate  time.Time
	DurationMonths   int
	ResidualValue    decimal.Decimal
	AsOfDate         time.Time
	Method           Method
}

type Result struct {
	Method          Method          `json:"method"`
	NetValue        decimal.Decimal `json:"net_value"`
	Accumulated     decimal.Decimal `json:"accumulated_depreciation"`
	MonthlyCharge   decimal.Decimal `json:"monthly_charge"`
	DepreciableBase decimal.Decimal `json:"depreciable_base"`
	RatePct         decimal.Decimal `json:"rate_pct"`
	ElapsedMonths   int             `json:"elapsed_months"`
	RemainingMonths int             `json:"remaining_months"`
	Coefficient     decimal.Decimal `json:"coefficient,omitempty"`
}

var (
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// Compute derives the current book value from acquisition facts. Pure
// function over its inputs; safe for any number of concurrent callers.
func Compute(in Input) (Result, error) {
	if in.AcquisitionValue.IsNegative() {
		return Result{}, apperrors.Validationf("acquisition_value", "must not be negative")
	}

	method := in.Method
	if method == "" {
		method = MethodLinear
	}

	elapsed := elapsedMonths(in.AcquisitionDate, in.AsOfDate)

	if in.DurationMonths <= 0 {
		return Result{
			Method:          method,
			NetValue:        in.AcquisitionValue,
			Accumulated:     decimal.Zero,
			MonthlyCharge:   decimal.Zero,
			DepreciableBase: decimal.Zero,
			RatePct:         decimal.Zero,
			ElapsedMonths:   elapsed,
			RemainingMonths: 0,
		}, nil
	}

	residual := in.ResidualValue
	if residual.GreaterThan(in.AcquisitionValue) {
		residual = in.AcquisitionValue
	}

	switch method {
	case MethodLinear:
		return linear(in, residual, elapsed), nil
	case MethodDeclining:
		return declining(in, residual, elapsed), nil
	default:
		return Result{}, fmt.Errorf("unsupported depreciation method: %s", method)
	}
}

func linear(in Input, residual decimal.Decimal, elapsed int) Result {
	duration := decimal.NewFromInt(int64(in.DurationMonths))
	base := in.AcquisitionValue.Sub(residual)
	monthly := base.Div(duration)

	accumulated := monthly.Mul(decimal.NewFromInt(int64(elapsed)))
	if accumulated.GreaterThan(base) {
		accumulated = base
	}

	net := in.AcquisitionValue.Sub(accumulated)
	if net.LessThan(residual) {
		net = residual
		accumulated = in.AcquisitionValue.Sub(residual)
	}

	return Result{
		Method:          MethodLinear,
		NetValue:        net.Round(2),
		Accumulated:     accumulated.Round(2),
		MonthlyCharge:   monthly.Round(2),
		DepreciableBase: base,
		RatePct:         ratePct(accumulated, in.AcquisitionValue),
		ElapsedMonths:   elapsed,
		RemainingMonths: remainingMonths(in.DurationMonths, elapsed),
	}
}

// declining iterates year by year and applies the switch-to-straight-line
// rule: each year the declining-balance charge competes with the straight
// line charge over the remaining balance and years, and the larger wins.
func declining(in Input, residual decimal.Decimal, elapsed int) Result {
	coefficient := decliningCoefficient(in.DurationMonths)
	annualRate := coefficient.Mul(twelve).Div(decimal.NewFromInt(int64(in.DurationMonths)))
	durationYears := decimal.NewFromInt(int64(in.DurationMonths)).Div(twelve)

	net := in.AcquisitionValue
	accumulated := decimal.Zero
	elapsedYears := elapsed / 12

	for year := 0; year < elapsedYears; year++ {
		remainingYears := durationYears.Sub(decimal.NewFromInt(int64(year)))
		if !remainingYears.IsPositive() {
			break
		}

		charge := net.Mul(annualRate)
		straightLine := net.Div(remainingYears)
		if straightLine.GreaterThan(charge) {
			charge = straightLine
		}

		accumulated = accumulated.Add(charge)
		net = net.Sub(charge)

		if net.LessThanOrEqual(residual) {
			net = residual
			accumulated = in.AcquisitionValue.Sub(residual)
			break
		}
	}

	return Result{
		Method:          MethodDeclining,
		NetValue:        net.Round(2),
		Accumulated:     accumulated.Round(2),
		MonthlyCharge:   decimal.Zero,
		DepreciableBase: in.AcquisitionValue.Sub(residual),
		RatePct:         ratePct(accumulated, in.AcquisitionValue),
		ElapsedMonths:   elapsed,
		RemainingMonths: remainingMonths(in.DurationMonths, elapsed),
		Coefficient:     coefficient,
	}
}

// decliningCoefficient follows the duration bands used in XAF fiscal
// practice: up to 3 years 1.25, up to 5 years 1.75, beyond 2.25.
func decliningCoefficient(durationMonths int) decimal.Decimal {
	switch {
	case durationMonths <= 36:
		return decimal.NewFromFloat(1.25)
	case durationMonths <= 60:
		return decimal.NewFromFloat(1.75)
	default:
		return decimal.NewFromFloat(2.25)
	}
}

// elapsedMonths counts whole calendar months between the two dates,
// clamped at zero when asOf precedes acquisition.
func elapsedMonths(acquisition, asOf time.Time) int {
	if !asOf.After(acquisition) {
		return 0
	}
	months := (asOf.Year()-acquisition.Year())*12 + int(asOf.Month()) - int(acquisition.Month())
	if asOf.Day() < acquisition.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func remainingMonths(duration, elapsed int) int {
	if remaining := duration - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

func ratePct(accumulated, acquisition decimal.Decimal) decimal.Decimal {
	if !acquisition.IsPositive() {
		return decimal.Zero
	}
	return accumulated.Div(acquisition).Mul(hundred).Round(2)
}
