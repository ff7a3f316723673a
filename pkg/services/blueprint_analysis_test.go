package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plumbline/blueprint-engine/pkg/analysis"
	"github.com/plumbline/blueprint-engine/pkg/breaker"
	"github.com/plumbline/blueprint-engine/pkg/models"
	"github.com/plumbline/blueprint-engine/pkg/repositories"
	"github.com/plumbline/blueprint-engine/pkg/vision"
)

const validVisionResponse = "```json\n" + `{
  "summary": {"totalFixtures": 2, "totalRooms": 1, "scale": "1/4\" = 1'-0\"", "measurementUnit": "inches", "floors": 1},
  "rooms": [
    {
      "name": "Bathroom 101",
      "floor": "1",
      "type": "bathroom",
      "fixtureCount": 2,
      "fixtures": [
        {"type": "toilet", "quantity": 1, "width": 20, "depth": 28},
        {"type": "sink", "quantity": 1}
      ]
    }
  ],
  "fixtureTotals": {"toilet": 1, "sink": 1}
}` + "\n```"

type mockBlueprintRepo struct {
	CreateFunc          func(ctx context.Context, bp *models.Blueprint) error
	GetByIDFunc         func(ctx context.Context, id uuid.UUID) (*models.Blueprint, error)
	MarkProcessingFunc  func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc      func(ctx context.Context, id uuid.UUID, reason string) error
	SaveAnalysisFunc    func(ctx context.Context, id uuid.UUID, result *models.AnalysisResult) (*repositories.SaveAnalysisStats, error)
	MarkProcessingCalls int
	MarkFailedCalls     int
	MarkFailedReason    string
	SaveAnalysisCalls   int
}

func (m *mockBlueprintRepo) Create(ctx context.Context, bp *models.Blueprint) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, bp)
	}
	return nil
}

func (m *mockBlueprintRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Blueprint, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &models.Blueprint{ID: id}, nil
}

func (m *mockBlueprintRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	m.MarkProcessingCalls++
	if m.MarkProcessingFunc != nil {
		return m.MarkProcessingFunc(ctx, id)
	}
	return nil
}

func (m *mockBlueprintRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	m.MarkFailedCalls++
	m.MarkFailedReason = reason
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id, reason)
	}
	return nil
}

func (m *mockBlueprintRepo) SaveAnalysis(ctx context.Context, id uuid.UUID, result *models.AnalysisResult) (*repositories.SaveAnalysisStats, error) {
	m.SaveAnalysisCalls++
	if m.SaveAnalysisFunc != nil {
		return m.SaveAnalysisFunc(ctx, id, result)
	}
	return &repositories.SaveAnalysisStats{RoomsInserted: 1, FixturesInserted: 2}, nil
}

func (m *mockBlueprintRepo) FixtureCountsByType(ctx context.Context, id uuid.UUID) ([]repositories.FixtureCount, error) {
	return nil, nil
}

func (m *mockBlueprintRepo) FixturesByRoom(ctx context.Context, id uuid.UUID) ([]repositories.RoomFixtureCount, error) {
	return nil, nil
}

func (m *mockBlueprintRepo) ListFixtures(ctx context.Context, id uuid.UUID) ([]models.Fixture, error) {
	return nil, nil
}

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.png")
	require.NoError(t, os.WriteFile(path, []byte("not really a png"), 0o644))
	return path
}

func newTestService(client vision.Client, repo *mockBlueprintRepo) BlueprintAnalysisService {
	cfg := breaker.DefaultConfig()
	cfg.FailureThreshold = 2
	cfg.Timeout = 5 * time.Second
	cb := breaker.New("vision", cfg)

	refRepo := &mockFixtureReferenceRepo{
		ListFunc: func(ctx context.Context) ([]models.FixtureReference, error) {
			return referenceRows(), nil
		},
	}
	enricher := NewFixtureEnrichmentService(refRepo, zap.NewNop())

	return NewBlueprintAnalysisService(client, cb, enricher, repo, zap.NewNop())
}

func TestBlueprintAnalysisService_Analyze(t *testing.T) {
	client := vision.NewMockClient()
	client.AnalyzeImageFunc = func(ctx context.Context, image vision.Image, prompt string) (string, error) {
		return validVisionResponse, nil
	}
	svc := newTestService(client, &mockBlueprintRepo{})

	result, err := svc.Analyze(context.Background(), writeTestImage(t))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.TotalFixtures)
	assert.True(t, result.Enriched)
	require.Len(t, result.Rooms, 1)

	// Enrichment backfilled the sink's missing dimensions.
	sink := result.Rooms[0].Fixtures[1]
	assert.Equal(t, 70, sink.Confidence)
	require.NotNil(t, sink.Width)
	assert.Equal(t, 19.0, *sink.Width)

	assert.Equal(t, 1, client.AnalyzeImageCalls)

	health := svc.Health()
	assert.True(t, health.Initialized)
	assert.Equal(t, int64(1), health.AnalysisCount)
	assert.Equal(t, int64(1), health.SuccessCount)
	assert.Equal(t, "100.00%", health.SuccessRate)
}

func TestBlueprintAnalysisService_Analyze_NotInitialized(t *testing.T) {
	svc := newTestService(nil, &mockBlueprintRepo{})

	_, err := svc.Analyze(context.Background(), writeTestImage(t))
	require.Error(t, err)
	assert.Equal(t, analysis.CodeNotInitialized, analysis.CodeOf(err))

	health := svc.Health()
	assert.False(t, health.Initialized)
	assert.Equal(t, int64(1), health.ErrorCount)
}

func TestBlueprintAnalysisService_Analyze_FileReadError(t *testing.T) {
	svc := newTestService(vision.NewMockClient(), &mockBlueprintRepo{})

	_, err := svc.Analyze(context.Background(), "/nonexistent/plan.png")
	require.Error(t, err)
	assert.Equal(t, analysis.CodeFileRead, analysis.CodeOf(err))
}

func TestBlueprintAnalysisService_Analyze_ParseError(t *testing.T) {
	client := vision.NewMockClient()
	client.AnalyzeImageFunc = func(ctx context.Context, image vision.Image, prompt string) (string, error) {
		return "I could not find any fixtures, sorry.", nil
	}
	svc := newTestService(client, &mockBlueprintRepo{})

	_, err := svc.Analyze(context.Background(), writeTestImage(t))
	require.Error(t, err)
	assert.Equal(t, analysis.CodeParse, analysis.CodeOf(err))
}

func TestBlueprintAnalysisService_Analyze_BreakerRejectsAfterFailures(t *testing.T) {
	client := vision.NewMockClient()
	client.AnalyzeImageFunc = func(ctx context.Context, image vision.Image, prompt string) (string, error) {
		return "", errors.New("provider unavailable")
	}
	svc := newTestService(client, &mockBlueprintRepo{})
	imagePath := writeTestImage(t)

	for i := 0; i < 2; i++ {
		_, err := svc.Analyze(context.Background(), imagePath)
		require.Error(t, err)
		assert.Equal(t, analysis.CodeAnalysisFailed, analysis.CodeOf(err))
	}
	assert.Equal(t, 2, client.AnalyzeImageCalls)

	// Breaker is open now: the provider is not called again.
	_, err := svc.Analyze(context.Background(), imagePath)
	require.Error(t, err)
	assert.Equal(t, analysis.CodeAnalysisFailed, analysis.CodeOf(err))
	var openErr *breaker.OpenError
	assert.ErrorAs(t, err, &openErr)
	assert.Equal(t, 2, client.AnalyzeImageCalls)
}

func TestBlueprintAnalysisService_AnalyzeAndStore(t *testing.T) {
	client := vision.NewMockClient()
	client.AnalyzeImageFunc = func(ctx context.Context, image vision.Image, prompt string) (string, error) {
		return validVisionResponse, nil
	}
	repo := &mockBlueprintRepo{}
	svc := newTestService(client, repo)

	result, stats, err := svc.AnalyzeAndStore(context.Background(), uuid.New(), writeTestImage(t))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.TotalFixtures)
	assert.Equal(t, 1, stats.RoomsInserted)
	assert.Equal(t, 2, stats.FixturesInserted)
	assert.Equal(t, 1, repo.MarkProcessingCalls)
	assert.Equal(t, 1, repo.SaveAnalysisCalls)
	assert.Equal(t, 0, repo.MarkFailedCalls)
}

func TestBlueprintAnalysisService_AnalyzeAndStore_MarksFailed(t *testing.T) {
	client := vision.NewMockClient()
	client.AnalyzeImageFunc = func(ctx context.Context, image vision.Image, prompt string) (string, error) {
		return "", errors.New("provider unavailable")
	}
	repo := &mockBlueprintRepo{}
	svc := newTestService(client, repo)

	_, _, err := svc.AnalyzeAndStore(context.Background(), uuid.New(), writeTestImage(t))
	require.Error(t, err)

	assert.Equal(t, 1, repo.MarkProcessingCalls)
	assert.Equal(t, 1, repo.MarkFailedCalls)
	assert.Contains(t, repo.MarkFailedReason, "ANALYSIS_FAILED")
	assert.Equal(t, 0, repo.SaveAnalysisCalls)
}

func TestBlueprintAnalysisService_Health_NoTraffic(t *testing.T) {
	svc := newTestService(vision.NewMockClient(), &mockBlueprintRepo{})

	health := svc.Health()
	assert.Equal(t, "N/A", health.SuccessRate)
	assert.Equal(t, "CLOSED", health.CircuitBreaker.State)
}
