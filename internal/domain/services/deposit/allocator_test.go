package deposit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronpay-service/tronpay_service/pkg/usdt"
)

func TestCandidate_FirstAttemptIsRequestedAmount(t *testing.T) {
	allocator := NewAllocator()

	requested := decimal.RequireFromString("100")
	candidate := allocator.Candidate(requested, 0)

	assert.True(t, candidate.Equal(requested), "attempt 0 should not perturb the amount")
}

func TestCandidate_PerturbationStaysWithinBound(t *testing.T) {
	allocator := NewAllocator()
	requested := decimal.RequireFromString("99.97")
	ceiling := requested.Add(decimal.RequireFromString("0.0001"))

	for attempt := 1; attempt <= 50; attempt++ {
		candidate := allocator.Candidate(requested, attempt)

		assert.True(t, candidate.GreaterThan(requested),
			"perturbed candidate must exceed the requested amount")
		assert.True(t, candidate.LessThan(ceiling),
			"perturbation must stay under 0.0001 USDT, got %s", candidate)

		_, err := usdt.ToUnits(candidate)
		require.NoError(t, err, "candidate must fit 8 decimal places")
	}
}

func TestCandidate_VariesAcrossAttempts(t *testing.T) {
	allocator := NewAllocator()
	requested := decimal.RequireFromString("500")

	seen := make(map[string]bool)
	for attempt := 1; attempt <= 20; attempt++ {
		seen[allocator.Candidate(requested, attempt).String()] = true
	}

	// Random suffixes collide occasionally but 20 identical draws would
	// mean the randomness is broken
	assert.Greater(t, len(seen), 1)
}
