package area

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"propertylens/server/internal/models"
)

func TestComputeGrowthTwoTransactions(t *testing.T) {
	// Sorted date descending: latest first, earliest last.
	transactions := []models.Transaction{
		{Price: 300000, Date: "2023-01-01"},
		{Price: 250000, Date: "2019-06-15"},
		{Price: 200000, Date: "2015-01-01"},
	}

	growth := ComputeGrowth(transactions)
	assert.Equal(t, "+50.0%", growth.GrowthPct)
	assert.Equal(t, "+5.2%", growth.AnnualizedReturnPct)
	assert.Equal(t, 200000.0, growth.PriceRange.Min)
	assert.Equal(t, 300000.0, growth.PriceRange.Max)
}

func TestComputeGrowthEmpty(t *testing.T) {
	growth := ComputeGrowth(nil)
	assert.Equal(t, InsufficientData, growth.GrowthPct)
	assert.Equal(t, InsufficientData, growth.AnnualizedReturnPct)
}

func TestComputeGrowthNegative(t *testing.T) {
	transactions := []models.Transaction{
		{Price: 200000, Date: "2023-01-01"},
		{Price: 300000, Date: "2015-01-01"},
	}

	growth := ComputeGrowth(transactions)
	assert.Equal(t, "-33.3%", growth.GrowthPct)
}

func TestComputeGrowthZeroDaySpan(t *testing.T) {
	// Boundary sales on the same calendar date: no annual rate is
	// extrapolated.
	transactions := []models.Transaction{
		{Price: 300000, Date: "2023-01-01"},
		{Price: 200000, Date: "2023-01-01"},
	}

	growth := ComputeGrowth(transactions)
	assert.Equal(t, "+50.0%", growth.GrowthPct)
	assert.Equal(t, InsufficientData, growth.AnnualizedReturnPct)
}

func TestComputeGrowthSingleTransaction(t *testing.T) {
	transactions := []models.Transaction{
		{Price: 250000, Date: "2020-03-01"},
	}

	growth := ComputeGrowth(transactions)
	assert.Equal(t, "+0.0%", growth.GrowthPct)
	assert.Equal(t, InsufficientData, growth.AnnualizedReturnPct)
	assert.Equal(t, 250000.0, growth.PriceRange.Min)
	assert.Equal(t, 250000.0, growth.PriceRange.Max)
}

func TestComputeGrowthNonPositiveEarliestPrice(t *testing.T) {
	transactions := []models.Transaction{
		{Price: 300000, Date: "2023-01-01"},
		{Price: 0, Date: "2015-01-01"},
	}

	growth := ComputeGrowth(transactions)
	assert.Equal(t, InsufficientData, growth.GrowthPct)
	assert.Equal(t, InsufficientData, growth.AnnualizedReturnPct)
}

func TestComputeGrowthUnparseableDates(t *testing.T) {
	transactions := []models.Transaction{
		{Price: 300000, Date: "sometime recently"},
		{Price: 200000, Date: "2015-01-01"},
	}

	growth := ComputeGrowth(transactions)
	assert.Equal(t, "+50.0%", growth.GrowthPct)
	assert.Equal(t, InsufficientData, growth.AnnualizedReturnPct)
}
