package valuation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeLinearHalfway(t *testing.T) {
	result, err := Compute(Input{
		AcquisitionValue: decimal.NewFromInt(1_200_000),
		AcquisitionDate:  date(2024, time.January, 1),
		DurationMonths:   24,
		ResidualValue:    decimal.Zero,
		AsOfDate:         date(2025, time.January, 1),
		Method:           MethodLinear,
	})

	require.NoError(t, err)
	assert.Equal(t, 12, result.ElapsedMonths)
	assert.True(t, result.Accumulated.Equal(decimal.NewFromInt(600_000)), "accumulated = %s", result.Accumulated)
	assert.True(t, result.NetValue.Equal(decimal.NewFromInt(600_000)), "net = %s", result.NetValue)
	assert.True(t, result.MonthlyCharge.Equal(decimal.NewFromInt(50_000)))
	assert.Equal(t, 12, result.RemainingMonths)
	assert.True(t, result.RatePct.Equal(decimal.NewFromInt(50)))
}

func TestComputeLinearFloorsAtResidual(t *testing.T) {
	result, err := Compute(Input{
		AcquisitionValue: decimal.NewFromInt(1_000_000),
		AcquisitionDate:  date(2015, time.March, 1),
		DurationMonths:   36,
		ResidualValue:    decimal.NewFromInt(100_000),
		AsOfDate:         date(2025, time.March, 1),
		Method:           MethodLinear,
	})

	require.NoError(t, err)
	assert.True(t, result.NetValue.Equal(decimal.NewFromInt(100_000)))
	assert.True(t, result.Accumulated.Equal(decimal.NewFromInt(900_000)))
	assert.Equal(t, 0, result.RemainingMonths)
}

func TestComputeAsOfBeforeAcquisitionClampsToZero(t *testing.T) {
	acquisition := decimal.NewFromInt(500_000)
	result, err := Compute(Input{
		AcquisitionValue: acquisition,
		AcquisitionDate:  date(2025, time.June, 1),
		DurationMonths:   24,
		ResidualValue:    decimal.Zero,
		AsOfDate:         date(2024, time.June, 1),
		Method:           MethodLinear,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.ElapsedMonths)
	assert.True(t, result.NetValue.Equal(acquisition))
	assert.True(t, result.Accumulated.IsZero())
}

func TestComputeWithoutDurationDoesNotDepreciate(t *testing.T) {
	acquisition := decimal.NewFromInt(750_000)
	result, err := Compute(Input{
		AcquisitionValue: acquisition,
		AcquisitionDate:  date(2020, time.January, 1),
		DurationMonths:   0,
		ResidualValue:    decimal.Zero,
		AsOfDate:         date(2026, time.January, 1),
		Method:           MethodLinear,
	})

	require.NoError(t, err)
	assert.True(t, result.NetValue.Equal(acquisition))
	assert.True(t, result.Accumulated.IsZero())
}

func TestComputeRejectsNegativeAcquisitionValue(t *testing.T) {
	_, err := Compute(Input{
		AcquisitionValue: decimal.NewFromInt(-1),
		AcquisitionDate:  date(2024, time.January, 1),
		DurationMonths:   12,
		AsOfDate:         date(2025, time.January, 1),
	})

	assert.Error(t, err)
}

func TestComputeLinearMonotonicNonIncreasing(t *testing.T) {
	in := Input{
		AcquisitionValue: decimal.NewFromInt(3_600_000),
		AcquisitionDate:  date(2022, time.April, 15),
		DurationMonths:   60,
		ResidualValue:    decimal.NewFromInt(200_000),
		Method:           MethodLinear,
	}

	previous := in.AcquisitionValue
	for months := 0; months <= 84; months += 3 {
		in.AsOfDate = in.AcquisitionDate.AddDate(0, months, 0)
		result, err := Compute(in)
		require.NoError(t, err)

		assert.True(t, result.NetValue.LessThanOrEqual(previous),
			"net value rose at %d months: %s > %s", months, result.NetValue, previous)
		assert.True(t, result.NetValue.GreaterThanOrEqual(in.ResidualValue),
			"net value fell below residual at %d months: %s", months, result.NetValue)
		previous = result.NetValue
	}
}

func TestComputeDecliningFrontLoadsDepreciation(t *testing.T) {
	in := Input{
		AcquisitionValue: decimal.NewFromInt(1_200_000),
		AcquisitionDate:  date(2024, time.January, 1),
		DurationMonths:   36,
		ResidualValue:    decimal.Zero,
		AsOfDate:         date(2025, time.July, 1), // 18 months in
	}

	in.Method = MethodLinear
	linearResult, err := Compute(in)
	require.NoError(t, err)

	in.Method = MethodDeclining
	decliningResult, err := Compute(in)
	require.NoError(t, err)

	// 36 months -> coefficient 1.25, annual rate 41.67%: the first-year
	// charge of 500k beats the 400k straight-line charge, and the second
	// year has not accrued yet at month 18.
	assert.True(t, decliningResult.Coefficient.Equal(decimal.NewFromFloat(1.25)))
	assert.True(t, decliningResult.NetValue.GreaterThan(linearResult.NetValue),
		"declining %s should exceed linear %s at month 18", decliningResult.NetValue, linearResult.NetValue)
	assert.True(t, decliningResult.NetValue.LessThan(in.AcquisitionValue))
}

func TestComputeDecliningCoefficientBands(t *testing.T) {
	cases := []struct {
		duration    int
		coefficient float64
	}{
		{24, 1.25},
		{36, 1.25},
		{48, 1.75},
		{60, 1.75},
		{120, 2.25},
	}

	for _, tc := range cases {
		result, err := Compute(Input{
			AcquisitionValue: decimal.NewFromInt(1_000_000),
			AcquisitionDate:  date(2024, time.January, 1),
			DurationMonths:   tc.duration,
			AsOfDate:         date(2025, time.January, 1),
			Method:           MethodDeclining,
		})
		require.NoError(t, err)
		assert.True(t, result.Coefficient.Equal(decimal.NewFromFloat(tc.coefficient)),
			"duration %d: coefficient %s", tc.duration, result.Coefficient)
	}
}

func TestComputeDecliningStopsAtResidual(t *testing.T) {
	result, err := Compute(Input{
		AcquisitionValue: decimal.NewFromInt(2_000_000),
		AcquisitionDate:  date(2014, time.January, 1),
		DurationMonths:   48,
		ResidualValue:    decimal.NewFromInt(150_000),
		AsOfDate:         date(2026, time.January, 1),
		Method:           MethodDeclining,
	})

	require.NoError(t, err)
	assert.True(t, result.NetValue.Equal(decimal.NewFromInt(150_000)))
	assert.True(t, result.Accumulated.Equal(decimal.NewFromInt(1_850_000)))
}

func TestComputeDecliningSwitchesToStraightLine(t *testing.T) {
	// 60 months, coefficient 1.75 -> annual declining rate 35%. By year 4
	// the straight-line charge on the remaining balance overtakes it, so
	// the balance still reaches zero by end of life.
	result, err := Compute(Input{
		AcquisitionValue: decimal.NewFromInt(1_000_000),
		AcquisitionDate:  date(2019, time.January, 1),
		DurationMonths:   60,
		ResidualValue:    decimal.Zero,
		AsOfDate:         date(2025, time.January, 1),
		Method:           MethodDeclining,
	})

	require.NoError(t, err)
	assert.True(t, result.NetValue.IsZero(), "expected fully depreciated, got %s", result.NetValue)
}

func TestNewMethodDefaultsToLinear(t *testing.T) {
	method, err := NewMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodLinear, method)

	_, err = NewMethod("SUM_OF_YEARS")
	assert.Error(t, err)
}
