package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plumbline/blueprint-engine/pkg/models"
)

type mockFixtureReferenceRepo struct {
	ListFunc  func(ctx context.Context) ([]models.FixtureReference, error)
	ListCalls int
}

func (m *mockFixtureReferenceRepo) List(ctx context.Context) ([]models.FixtureReference, error) {
	m.ListCalls++
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestNormalizeFixtureType(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"toilet", "toilet"},
		{"TOILET", "toilet"},
		{"Water Closet", "toilet"},
		{"wc", "toilet"},
		{"lavatory", "sink"},
		{"LAV", "sink"},
		{"kitchen sink", "kitchen_sink"},
		{"tub", "bathtub"},
		{"bidet", "bidet"},
		{"grease trap", "grease trap"},
		{"", "unknown"},
		{"   ", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeFixtureType(tt.input))
		})
	}
}

func referenceRows() []models.FixtureReference {
	return []models.FixtureReference{
		{
			FixtureType:        "toilet",
			DisplayName:        "Toilet",
			Category:           "sanitary",
			TypicalWidthInches: floatPtr(20),
			TypicalDepthInches: floatPtr(28),
		},
		{
			FixtureType:        "sink",
			DisplayName:        "Sink",
			Category:           "sanitary",
			TypicalWidthInches: floatPtr(19),
			TypicalDepthInches: floatPtr(17),
		},
	}
}

func enrichmentInput() *models.AnalysisResult {
	return &models.AnalysisResult{
		Summary: models.AnalysisSummary{TotalFixtures: 3, TotalRooms: 1},
		Rooms: []models.RoomAnalysis{
			{
				Name:         "Bathroom 101",
				Floor:        "1",
				FixtureCount: 3,
				Fixtures: []models.FixtureDetail{
					{Type: "Water Closet", Quantity: intPtr(1), Width: floatPtr(21), Depth: floatPtr(30)},
					{Type: "lavatory", Quantity: intPtr(1), Width: floatPtr(18)},
					{Type: "bidet", Quantity: intPtr(1)},
				},
			},
		},
		FixtureTotals: map[string]int{"Water Closet": 1, "lavatory": 1, "bidet": 1},
	}
}

func TestFixtureEnrichmentService_Enrich(t *testing.T) {
	repo := &mockFixtureReferenceRepo{
		ListFunc: func(ctx context.Context) ([]models.FixtureReference, error) {
			return referenceRows(), nil
		},
	}
	svc := NewFixtureEnrichmentService(repo, zap.NewNop())

	input := enrichmentInput()
	result := svc.Enrich(context.Background(), input)

	require.Len(t, result.Rooms, 1)
	fixtures := result.Rooms[0].Fixtures
	require.Len(t, fixtures, 3)

	// Both dimensions measured by the model: high confidence, no backfill.
	// The provider's label is kept; only the reference lookup normalizes.
	toilet := fixtures[0]
	assert.Equal(t, "Water Closet", toilet.Type)
	assert.Equal(t, "Toilet", toilet.DisplayName)
	assert.Equal(t, "sanitary", toilet.Category)
	assert.Equal(t, 95, toilet.Confidence)
	assert.Equal(t, 21.0, *toilet.Width)
	assert.Equal(t, 30.0, *toilet.Depth)

	// Missing depth: lower confidence, depth backfilled from reference.
	sink := fixtures[1]
	assert.Equal(t, "lavatory", sink.Type)
	assert.Equal(t, "Sink", sink.DisplayName)
	assert.Equal(t, 70, sink.Confidence)
	assert.Equal(t, 18.0, *sink.Width)
	require.NotNil(t, sink.Depth)
	assert.Equal(t, 17.0, *sink.Depth)

	// No reference row: type passes through with a derived display name.
	bidet := fixtures[2]
	assert.Equal(t, "bidet", bidet.Type)
	assert.Equal(t, "Bidet", bidet.DisplayName)
	assert.Equal(t, 70, bidet.Confidence)
	assert.Nil(t, bidet.Width)

	assert.True(t, result.Enriched)
	// Totals stay keyed by the provider's labels.
	assert.Equal(t, map[string]int{"Water Closet": 1, "lavatory": 1, "bidet": 1}, result.FixtureTotals)
}

func TestFixtureEnrichmentService_Enrich_RebuildsMissingTotals(t *testing.T) {
	repo := &mockFixtureReferenceRepo{
		ListFunc: func(ctx context.Context) ([]models.FixtureReference, error) {
			return referenceRows(), nil
		},
	}
	svc := NewFixtureEnrichmentService(repo, zap.NewNop())

	input := enrichmentInput()
	input.FixtureTotals = nil
	result := svc.Enrich(context.Background(), input)

	assert.Equal(t, map[string]int{"Water Closet": 1, "lavatory": 1, "bidet": 1}, result.FixtureTotals)
}

func TestFixtureEnrichmentService_Enrich_DoesNotMutateInput(t *testing.T) {
	repo := &mockFixtureReferenceRepo{
		ListFunc: func(ctx context.Context) ([]models.FixtureReference, error) {
			return referenceRows(), nil
		},
	}
	svc := NewFixtureEnrichmentService(repo, zap.NewNop())

	input := enrichmentInput()
	_ = svc.Enrich(context.Background(), input)

	assert.Equal(t, "Water Closet", input.Rooms[0].Fixtures[0].Type)
	assert.Equal(t, 0, input.Rooms[0].Fixtures[0].Confidence)
	assert.Nil(t, input.Rooms[0].Fixtures[1].Depth)
	assert.False(t, input.Enriched)
	assert.Contains(t, input.FixtureTotals, "Water Closet")
}

func TestFixtureEnrichmentService_Enrich_ReferenceUnavailable(t *testing.T) {
	repo := &mockFixtureReferenceRepo{
		ListFunc: func(ctx context.Context) ([]models.FixtureReference, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewFixtureEnrichmentService(repo, zap.NewNop())

	result := svc.Enrich(context.Background(), enrichmentInput())

	// Enrichment degrades instead of failing: confidence is still set,
	// reference-derived fields are not.
	assert.False(t, result.Enriched)
	toilet := result.Rooms[0].Fixtures[0]
	assert.Equal(t, "Water Closet", toilet.Type)
	assert.Equal(t, 95, toilet.Confidence)
	assert.Equal(t, "Toilet", toilet.DisplayName)
	assert.Empty(t, toilet.Category)

	sink := result.Rooms[0].Fixtures[1]
	assert.Equal(t, 70, sink.Confidence)
	assert.Nil(t, sink.Depth)
}
