package plans

// Plan describes one subscription tier. The catalog is configuration, not
// state: it is compiled in, has no lifecycle and no table. Provider-side
// price/plan identifiers live in config and are injected into each provider
// adapter at startup.
type Plan struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	PriceBRL       float64  `json:"price_brl"`
	IntervalMonths int      `json:"interval_months"`
	Features       []string `json:"features"`
}

const (
	FeatureFlashcards   = "flashcards"
	FeatureVideos       = "videoaulas"
	FeatureMindMaps     = "mapas_mentais"
	FeatureQuestions    = "questoes"
	FeatureMockExams    = "simulados"
	FeatureVadeMecum    = "vademecum"
	FeaturePetitions    = "peticoes"
	FeatureAIAssistant  = "assistente_ia"
)

var catalog = []Plan{
	{
		ID:             TierEstudante,
		Name:           "Estudante",
		PriceBRL:       29.90,
		IntervalMonths: 1,
		Features: []string{
			FeatureFlashcards, FeatureVideos, FeatureQuestions, FeatureVadeMecum,
		},
	},
	{
		ID:             TierPlatina,
		Name:           "Platina",
		PriceBRL:       49.90,
		IntervalMonths: 1,
		Features: []string{
			FeatureFlashcards, FeatureVideos, FeatureMindMaps, FeatureQuestions,
			FeatureMockExams, FeatureVadeMecum, FeaturePetitions,
		},
	},
	{
		ID:             TierMagistral,
		Name:           "Magistral",
		PriceBRL:       79.90,
		IntervalMonths: 1,
		Features: []string{
			FeatureFlashcards, FeatureVideos, FeatureMindMaps, FeatureQuestions,
			FeatureMockExams, FeatureVadeMecum, FeaturePetitions, FeatureAIAssistant,
		},
	},
}

// All returns the catalog in display order.
func All() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks a plan up by its internal id.
func ByID(id string) (*Plan, bool) {
	for i := range catalog {
		if catalog[i].ID == id {
			return &catalog[i], true
		}
	}
	return nil, false
}

// HasFeature reports whether the named plan includes a feature.
// Unknown plan ids have no features.
func HasFeature(planID, feature string) bool {
	p, ok := ByID(planID)
	if !ok {
		return false
	}
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}
