package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plumbline/blueprint-engine/pkg/analysis"
	"github.com/plumbline/blueprint-engine/pkg/apperrors"
	"github.com/plumbline/blueprint-engine/pkg/breaker"
	"github.com/plumbline/blueprint-engine/pkg/correlation"
	"github.com/plumbline/blueprint-engine/pkg/models"
	"github.com/plumbline/blueprint-engine/pkg/repositories"
	"github.com/plumbline/blueprint-engine/pkg/vision"
)

// mediaTypes maps file extensions to the media type sent to the vision
// provider. Unknown extensions fall back to image/jpeg.
var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Metrics holds lifetime pipeline counters.
type Metrics struct {
	AnalysisCount int64  `json:"analysisCount"`
	SuccessCount  int64  `json:"successCount"`
	ErrorCount    int64  `json:"errorCount"`
	SuccessRate   string `json:"successRate"`
}

// HealthStatus reports pipeline readiness alongside the lifetime counters.
type HealthStatus struct {
	Initialized bool   `json:"initialized"`
	Model       string `json:"model,omitempty"`
	Metrics
	CircuitBreaker breaker.Status `json:"circuitBreaker"`
}

// BlueprintAnalysisService orchestrates the full analysis pipeline: read the
// blueprint image, call the vision provider through the circuit breaker,
// parse and validate the response, enrich it, and persist the outcome.
type BlueprintAnalysisService interface {
	// Analyze runs the pipeline for one image file and returns the
	// enriched result. It does not touch the database.
	Analyze(ctx context.Context, filePath string) (*models.AnalysisResult, error)

	// SaveResults persists a completed result for the given blueprint.
	SaveResults(ctx context.Context, id uuid.UUID, result *models.AnalysisResult) (*repositories.SaveAnalysisStats, error)

	// GetResults fetches a blueprint with its stored analysis.
	GetResults(ctx context.Context, id uuid.UUID) (*models.Blueprint, error)

	// AnalyzeAndStore runs Analyze and SaveResults under the blueprint's
	// status lifecycle: processing while in flight, completed on success,
	// failed with the error message otherwise.
	AnalyzeAndStore(ctx context.Context, id uuid.UUID, filePath string) (*models.AnalysisResult, *repositories.SaveAnalysisStats, error)

	// Health reports readiness, lifetime counters, and breaker state.
	Health() HealthStatus

	// Metrics reports the lifetime counters alone.
	Metrics() Metrics
}

type blueprintAnalysisService struct {
	client   vision.Client
	cb       *breaker.CircuitBreaker
	enricher FixtureEnrichmentService
	repo     repositories.BlueprintRepository
	logger   *zap.Logger

	analysisCount atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
}

// NewBlueprintAnalysisService creates the analysis orchestrator. client may
// be nil when provider credentials are absent; every Analyze call then fails
// with CodeNotInitialized while the rest of the service stays usable.
func NewBlueprintAnalysisService(
	client vision.Client,
	cb *breaker.CircuitBreaker,
	enricher FixtureEnrichmentService,
	repo repositories.BlueprintRepository,
	logger *zap.Logger,
) BlueprintAnalysisService {
	return &blueprintAnalysisService{
		client:   client,
		cb:       cb,
		enricher: enricher,
		repo:     repo,
		logger:   logger.Named("blueprint_analysis"),
	}
}

var _ BlueprintAnalysisService = (*blueprintAnalysisService)(nil)

func (s *blueprintAnalysisService) Analyze(ctx context.Context, filePath string) (*models.AnalysisResult, error) {
	ctx, correlationID := correlation.Ensure(ctx)
	logger := s.logger.With(zap.String("correlation_id", correlationID))

	s.analysisCount.Add(1)

	if s.client == nil {
		s.errorCount.Add(1)
		return nil, analysis.NewError(analysis.CodeNotInitialized,
			"vision provider is not configured", correlationID, apperrors.ErrNotInitialized)
	}

	image, err := readImageFile(filePath)
	if err != nil {
		s.errorCount.Add(1)
		return nil, analysis.NewError(analysis.CodeFileRead,
			fmt.Sprintf("failed to read blueprint image %s", filePath), correlationID, err)
	}

	logger.Info("starting blueprint analysis",
		zap.String("file_path", filePath),
		zap.String("media_type", image.MediaType),
		zap.String("model", s.client.Model()))

	start := time.Now()
	responseText, err := breaker.Execute(ctx, s.cb, func(ctx context.Context) (string, error) {
		return s.client.AnalyzeImage(ctx, image, vision.AnalysisPrompt)
	})
	if err != nil {
		s.errorCount.Add(1)
		var openErr *breaker.OpenError
		if errors.As(err, &openErr) {
			logger.Warn("analysis rejected by circuit breaker",
				zap.Time("next_attempt", openErr.NextAttempt))
		} else {
			logger.Error("vision provider call failed", zap.Error(err))
		}
		return nil, analysis.NewError(analysis.CodeAnalysisFailed,
			"vision analysis failed", correlationID, err)
	}

	result, err := analysis.Parse(responseText)
	if err != nil {
		s.errorCount.Add(1)
		var aerr *analysis.Error
		if errors.As(err, &aerr) {
			return nil, aerr.WithCorrelation(correlationID)
		}
		return nil, analysis.NewError(analysis.CodeParse,
			"failed to parse analysis response", correlationID, err)
	}

	result = s.enricher.Enrich(ctx, result)

	s.successCount.Add(1)
	logger.Info("blueprint analysis complete",
		zap.Int("total_fixtures", result.Summary.TotalFixtures),
		zap.Int("total_rooms", result.Summary.TotalRooms),
		zap.Bool("enriched", result.Enriched),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

func (s *blueprintAnalysisService) SaveResults(ctx context.Context, id uuid.UUID, result *models.AnalysisResult) (*repositories.SaveAnalysisStats, error) {
	ctx, correlationID := correlation.Ensure(ctx)

	stats, err := s.repo.SaveAnalysis(ctx, id, result)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, analysis.NewError(analysis.CodeNotFound,
				fmt.Sprintf("blueprint %s not found", id), correlationID, err)
		}
		return nil, analysis.NewError(analysis.CodeSave,
			"failed to save analysis results", correlationID, err)
	}
	return stats, nil
}

func (s *blueprintAnalysisService) GetResults(ctx context.Context, id uuid.UUID) (*models.Blueprint, error) {
	ctx, correlationID := correlation.Ensure(ctx)

	bp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, analysis.NewError(analysis.CodeNotFound,
				fmt.Sprintf("blueprint %s not found", id), correlationID, err)
		}
		return nil, fmt.Errorf("failed to fetch blueprint: %w", err)
	}
	return bp, nil
}

func (s *blueprintAnalysisService) AnalyzeAndStore(ctx context.Context, id uuid.UUID, filePath string) (*models.AnalysisResult, *repositories.SaveAnalysisStats, error) {
	ctx, correlationID := correlation.Ensure(ctx)
	logger := s.logger.With(
		zap.String("correlation_id", correlationID),
		zap.String("blueprint_id", id.String()))

	if err := s.repo.MarkProcessing(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, analysis.NewError(analysis.CodeNotFound,
				fmt.Sprintf("blueprint %s not found", id), correlationID, err)
		}
		return nil, nil, fmt.Errorf("failed to mark blueprint processing: %w", err)
	}

	result, err := s.Analyze(ctx, filePath)
	if err != nil {
		s.markFailed(ctx, id, err, logger)
		return nil, nil, err
	}

	stats, err := s.SaveResults(ctx, id, result)
	if err != nil {
		s.markFailed(ctx, id, err, logger)
		return nil, nil, err
	}

	return result, stats, nil
}

// markFailed records the failure reason on the blueprint. Best effort: the
// original error is what the caller needs to see, not a status-update error.
func (s *blueprintAnalysisService) markFailed(ctx context.Context, id uuid.UUID, cause error, logger *zap.Logger) {
	if err := s.repo.MarkFailed(ctx, id, cause.Error()); err != nil {
		logger.Error("failed to record blueprint failure", zap.Error(err))
	}
}

func (s *blueprintAnalysisService) Metrics() Metrics {
	total := s.analysisCount.Load()
	successes := s.successCount.Load()

	successRate := "N/A"
	if total > 0 {
		successRate = fmt.Sprintf("%.2f%%", float64(successes)/float64(total)*100)
	}

	return Metrics{
		AnalysisCount: total,
		SuccessCount:  successes,
		ErrorCount:    s.errorCount.Load(),
		SuccessRate:   successRate,
	}
}

func (s *blueprintAnalysisService) Health() HealthStatus {
	status := HealthStatus{
		Initialized: s.client != nil,
		Metrics:     s.Metrics(),
	}
	if s.client != nil {
		status.Model = s.client.Model()
	}
	if s.cb != nil {
		status.CircuitBreaker = s.cb.Status()
	}
	return status
}

// readImageFile loads an image and encodes it for the vision provider.
func readImageFile(filePath string) (vision.Image, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return vision.Image{}, err
	}

	mediaType, ok := mediaTypes[strings.ToLower(filepath.Ext(filePath))]
	if !ok {
		mediaType = "image/jpeg"
	}

	return vision.Image{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}
