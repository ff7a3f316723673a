package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/plumbline/blueprint-engine/pkg/analysis"
	"github.com/plumbline/blueprint-engine/pkg/models"
	"github.com/plumbline/blueprint-engine/pkg/repositories"
)

// fixtureTypeAliases maps vision-model fixture labels (lowercased) to
// canonical types. Canonical types map to themselves so a recognized label
// always normalizes in one lookup; anything absent passes through unchanged.
var fixtureTypeAliases = map[string]string{
	"toilet":            "toilet",
	"water closet":      "toilet",
	"water_closet":      "toilet",
	"wc":                "toilet",
	"sink":              "sink",
	"lavatory":          "sink",
	"lav":               "sink",
	"wash basin":        "sink",
	"basin":             "sink",
	"kitchen sink":      "kitchen_sink",
	"kitchen_sink":      "kitchen_sink",
	"utility sink":      "utility_sink",
	"utility_sink":      "utility_sink",
	"urinal":            "urinal",
	"shower":            "shower",
	"shower stall":      "shower",
	"bathtub":           "bathtub",
	"tub":               "bathtub",
	"bath":              "bathtub",
	"hose bib":          "hose_bib",
	"hose_bib":          "hose_bib",
	"floor drain":       "floor_drain",
	"floor_drain":       "floor_drain",
	"water heater":      "water_heater",
	"water_heater":      "water_heater",
	"dishwasher":        "dishwasher",
	"washing machine":   "washing_machine",
	"washing_machine":   "washing_machine",
	"washer":            "washing_machine",
	"drinking fountain": "drinking_fountain",
	"drinking_fountain": "drinking_fountain",
}

// NormalizeFixtureType maps a raw vision-model fixture label to its
// canonical type. Unrecognized labels pass through unchanged; an empty
// label becomes "unknown".
func NormalizeFixtureType(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "unknown"
	}
	if canonical, ok := fixtureTypeAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// FixtureEnrichmentService augments parsed analysis results with reference
// data: canonical fixture types, display names, categories, typical
// dimensions, and confidence scores.
type FixtureEnrichmentService interface {
	// Enrich returns an enriched copy of the result. The input is never
	// mutated, fixture types stay exactly as parsed, and enrichment never
	// fails: when reference data is unavailable the copy still carries
	// confidence scores but Enriched stays false.
	Enrich(ctx context.Context, result *models.AnalysisResult) *models.AnalysisResult
}

type fixtureEnrichmentService struct {
	refRepo repositories.FixtureReferenceRepository
	logger  *zap.Logger
}

// NewFixtureEnrichmentService creates a new fixture enrichment service.
func NewFixtureEnrichmentService(refRepo repositories.FixtureReferenceRepository, logger *zap.Logger) FixtureEnrichmentService {
	return &fixtureEnrichmentService{
		refRepo: refRepo,
		logger:  logger.Named("fixture_enrichment"),
	}
}

var _ FixtureEnrichmentService = (*fixtureEnrichmentService)(nil)

func (s *fixtureEnrichmentService) Enrich(ctx context.Context, result *models.AnalysisResult) *models.AnalysisResult {
	enriched := copyResult(result)

	refByType := map[string]models.FixtureReference{}
	refsAvailable := false
	refs, err := s.refRepo.List(ctx)
	if err != nil {
		s.logger.Warn("reference data unavailable, enriching without it", zap.Error(err))
	} else {
		refsAvailable = true
		for _, ref := range refs {
			refByType[ref.FixtureType] = ref
		}
	}

	for ri := range enriched.Rooms {
		room := &enriched.Rooms[ri]
		for fi := range room.Fixtures {
			fixture := &room.Fixtures[fi]
			// Normalization is lookup-only: the stored type stays
			// exactly as the provider labeled it.
			canonical := NormalizeFixtureType(fixture.Type)

			// Confidence reflects whether the model measured both
			// dimensions itself, so it is computed before any
			// reference backfill.
			if fixture.Width != nil && fixture.Depth != nil {
				fixture.Confidence = 95
			} else {
				fixture.Confidence = 70
			}

			ref, ok := refByType[canonical]
			if !ok {
				if fixture.DisplayName == "" {
					fixture.DisplayName = displayNameFor(canonical)
				}
				continue
			}

			fixture.DisplayName = ref.DisplayName
			fixture.Category = ref.Category
			if fixture.Width == nil && ref.TypicalWidthInches != nil {
				w := *ref.TypicalWidthInches
				fixture.Width = &w
			}
			if fixture.Depth == nil && ref.TypicalDepthInches != nil {
				d := *ref.TypicalDepthInches
				fixture.Depth = &d
			}
		}
	}

	// Totals and per-fixture types stay keyed by the provider's labels so
	// the persisted result matches what the model actually reported.
	if len(enriched.FixtureTotals) == 0 {
		enriched.FixtureTotals = analysis.CalculateFixtureTotals(enriched.Rooms)
	}
	enriched.Enriched = refsAvailable

	return enriched
}

// copyResult deep-copies an analysis result so enrichment never aliases the
// caller's rooms or fixtures.
func copyResult(result *models.AnalysisResult) *models.AnalysisResult {
	out := &models.AnalysisResult{
		Summary: result.Summary,
		Notes:   result.Notes,
	}
	out.Rooms = make([]models.RoomAnalysis, len(result.Rooms))
	for i, room := range result.Rooms {
		copied := room
		copied.Fixtures = make([]models.FixtureDetail, len(room.Fixtures))
		for j, fixture := range room.Fixtures {
			f := fixture
			f.Quantity = copyInt(fixture.Quantity)
			f.Width = copyFloat(fixture.Width)
			f.Depth = copyFloat(fixture.Depth)
			f.PositionX = copyFloat(fixture.PositionX)
			f.PositionY = copyFloat(fixture.PositionY)
			copied.Fixtures[j] = f
		}
		out.Rooms[i] = copied
	}
	out.FixtureTotals = make(map[string]int, len(result.FixtureTotals))
	for k, v := range result.FixtureTotals {
		out.FixtureTotals[k] = v
	}
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// displayNameFor derives a readable label from a canonical fixture type
// when no reference row exists for it.
func displayNameFor(fixtureType string) string {
	words := strings.Split(strings.ReplaceAll(fixtureType, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
