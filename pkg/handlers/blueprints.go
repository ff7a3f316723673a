package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plumbline/blueprint-engine/pkg/analysis"
	"github.com/plumbline/blueprint-engine/pkg/apperrors"
	"github.com/plumbline/blueprint-engine/pkg/models"
	"github.com/plumbline/blueprint-engine/pkg/render"
	"github.com/plumbline/blueprint-engine/pkg/repositories"
	"github.com/plumbline/blueprint-engine/pkg/services"
)

// BlueprintHandler exposes the blueprint analysis pipeline over HTTP.
type BlueprintHandler struct {
	svc      services.BlueprintAnalysisService
	repo     repositories.BlueprintRepository
	renderer render.Renderer
	logger   *zap.Logger
}

// NewBlueprintHandler creates a new BlueprintHandler.
func NewBlueprintHandler(
	svc services.BlueprintAnalysisService,
	repo repositories.BlueprintRepository,
	renderer render.Renderer,
	logger *zap.Logger,
) *BlueprintHandler {
	return &BlueprintHandler{svc: svc, repo: repo, renderer: renderer, logger: logger}
}

// RegisterRoutes registers the blueprint routes on the given mux.
func (h *BlueprintHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/blueprints", h.Create)
	mux.HandleFunc("GET /api/blueprints/{id}", h.Get)
	mux.HandleFunc("POST /api/blueprints/{id}/analyze", h.Analyze)
	mux.HandleFunc("GET /api/blueprints/{id}/fixtures", h.Fixtures)
	mux.HandleFunc("GET /api/blueprints/{id}/report", h.Report)
	mux.HandleFunc("POST /api/blueprints/{id}/annotate", h.Annotate)
}

// CreateBlueprintRequest is the body for POST /api/blueprints.
type CreateBlueprintRequest struct {
	ProjectName    string `json:"project_name"`
	ProjectAddress string `json:"project_address"`
	FilePath       string `json:"file_path"`
	FileSize       int64  `json:"file_size"`
	FileType       string `json:"file_type"`
}

// Create handles POST /api/blueprints.
// Registers an uploaded blueprint file for later analysis.
func (h *BlueprintHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBlueprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProjectName == "" || req.FilePath == "" {
		_ = ErrorResponse(w, r, http.StatusBadRequest, "invalid_request", "project_name and file_path are required")
		return
	}

	bp := &models.Blueprint{
		ProjectName:    req.ProjectName,
		ProjectAddress: req.ProjectAddress,
		FilePath:       req.FilePath,
		FileSize:       req.FileSize,
		FileType:       req.FileType,
	}
	if err := h.repo.Create(r.Context(), bp); err != nil {
		h.logger.Error("Failed to create blueprint", zap.Error(err))
		_ = ErrorResponse(w, r, http.StatusInternalServerError, "create_failed", "failed to create blueprint")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, bp); err != nil {
		h.logger.Error("Failed to encode blueprint response", zap.Error(err))
	}
}

// Get handles GET /api/blueprints/{id}.
// Returns the blueprint record including any stored analysis.
func (h *BlueprintHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.blueprintID(w, r)
	if !ok {
		return
	}

	bp, err := h.svc.GetResults(r.Context(), id)
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, bp); err != nil {
		h.logger.Error("Failed to encode blueprint response", zap.Error(err))
	}
}

// AnalyzeResponse is the body returned by POST /api/blueprints/{id}/analyze.
type AnalyzeResponse struct {
	Result *models.AnalysisResult          `json:"result"`
	Stats  *repositories.SaveAnalysisStats `json:"stats"`
}

// Analyze handles POST /api/blueprints/{id}/analyze.
// Runs the full pipeline synchronously and persists the outcome.
func (h *BlueprintHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, ok := h.blueprintID(w, r)
	if !ok {
		return
	}

	bp, err := h.svc.GetResults(r.Context(), id)
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}

	result, stats, err := h.svc.AnalyzeAndStore(r.Context(), id, bp.FilePath)
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, AnalyzeResponse{Result: result, Stats: stats}); err != nil {
		h.logger.Error("Failed to encode analysis response", zap.Error(err))
	}
}

// Fixtures handles GET /api/blueprints/{id}/fixtures.
func (h *BlueprintHandler) Fixtures(w http.ResponseWriter, r *http.Request) {
	id, ok := h.blueprintID(w, r)
	if !ok {
		return
	}

	fixtures, err := h.repo.ListFixtures(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to list fixtures", zap.Error(err))
		_ = ErrorResponse(w, r, http.StatusInternalServerError, "list_failed", "failed to list fixtures")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"fixtures": fixtures}); err != nil {
		h.logger.Error("Failed to encode fixtures response", zap.Error(err))
	}
}

// ReportResponse aggregates persisted fixtures per type and per room.
type ReportResponse struct {
	ByType []repositories.FixtureCount     `json:"by_type"`
	ByRoom []repositories.RoomFixtureCount `json:"by_room"`
}

// Report handles GET /api/blueprints/{id}/report.
func (h *BlueprintHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := h.blueprintID(w, r)
	if !ok {
		return
	}

	byType, err := h.repo.FixtureCountsByType(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to aggregate fixtures by type", zap.Error(err))
		_ = ErrorResponse(w, r, http.StatusInternalServerError, "report_failed", "failed to build report")
		return
	}
	byRoom, err := h.repo.FixturesByRoom(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to aggregate fixtures by room", zap.Error(err))
		_ = ErrorResponse(w, r, http.StatusInternalServerError, "report_failed", "failed to build report")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ReportResponse{ByType: byType, ByRoom: byRoom}); err != nil {
		h.logger.Error("Failed to encode report response", zap.Error(err))
	}
}

// Annotate handles POST /api/blueprints/{id}/annotate.
// Renders the stored analysis onto a copy of the blueprint image.
func (h *BlueprintHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.blueprintID(w, r)
	if !ok {
		return
	}

	bp, err := h.svc.GetResults(r.Context(), id)
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}
	if bp.Status != models.BlueprintStatusCompleted || len(bp.AnalysisData) == 0 {
		_ = ErrorResponse(w, r, http.StatusConflict, "not_analyzed", "blueprint has no completed analysis")
		return
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(bp.AnalysisData, &result); err != nil {
		h.logger.Error("Failed to decode stored analysis", zap.Error(err))
		_ = ErrorResponse(w, r, http.StatusInternalServerError, "annotate_failed", "stored analysis is unreadable")
		return
	}

	outPath, err := h.renderer.Annotate(r.Context(), bp.FilePath, &result)
	if err != nil {
		if errors.Is(err, apperrors.ErrRendererUnavailable) {
			_ = ErrorResponse(w, r, http.StatusServiceUnavailable, "renderer_unavailable", "annotation rendering is not available")
			return
		}
		h.logger.Error("Failed to annotate blueprint", zap.Error(err))
		_ = ErrorResponse(w, r, http.StatusInternalServerError, "annotate_failed", "failed to annotate blueprint")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"annotated_path": outPath}); err != nil {
		h.logger.Error("Failed to encode annotate response", zap.Error(err))
	}
}

func (h *BlueprintHandler) blueprintID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, r, http.StatusBadRequest, "invalid_id", "blueprint id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// writeAnalysisError maps pipeline error codes onto HTTP statuses.
func (h *BlueprintHandler) writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	code := analysis.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case analysis.CodeNotFound:
		status = http.StatusNotFound
	case analysis.CodeNotInitialized:
		status = http.StatusServiceUnavailable
	case analysis.CodeFileRead:
		status = http.StatusUnprocessableEntity
	case analysis.CodeAnalysisFailed, analysis.CodeParse, analysis.CodeValidation:
		status = http.StatusBadGateway
	case analysis.CodeSave:
		status = http.StatusInternalServerError
	}
	if code == "" {
		code = "INTERNAL_ERROR"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Blueprint request failed", zap.Error(err))
	}
	_ = ErrorResponse(w, r, status, string(code), err.Error())
}
