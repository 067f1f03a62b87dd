package plans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByID(t *testing.T) {
	p, ok := ByID(TierPlatina)
	require.True(t, ok)
	assert.Equal(t, "Platina", p.Name)
	assert.InDelta(t, 49.90, p.PriceBRL, 0.001)
	assert.Equal(t, 1, p.IntervalMonths)

	_, ok = ByID("diamante")
	assert.False(t, ok)
}

func TestAllReturnsCopy(t *testing.T) {
	first := All()
	first[0].Name = "mutated"

	again := All()
	assert.Equal(t, "Estudante", again[0].Name)
	assert.Len(t, again, 3)
}

func TestHasFeature(t *testing.T) {
	assert.True(t, HasFeature(TierEstudante, FeatureVadeMecum))
	assert.False(t, HasFeature(TierEstudante, FeatureAIAssistant))
	assert.True(t, HasFeature(TierMagistral, FeatureAIAssistant))
	assert.False(t, HasFeature("diamante", FeatureFlashcards))
}

func TestNormalizeTier(t *testing.T) {
	cases := map[string]string{
		"estudante":  TierEstudante,
		"Platina":    TierPlatina,
		" MAGISTRAL": TierMagistral,
		"":           TierNone,
		"price_123":  "price_123",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTier(in), "input %q", in)
	}
}
