package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/plumbline/blueprint-engine/pkg/apperrors"
	"github.com/plumbline/blueprint-engine/pkg/models"
)

// SaveAnalysisStats reports how many rows one SaveAnalysis call wrote.
type SaveAnalysisStats struct {
	RoomsInserted    int `json:"rooms_inserted"`
	FixturesInserted int `json:"fixtures_inserted"`
}

// FixtureCount is one row of the per-type fixture aggregate.
type FixtureCount struct {
	FixtureType string `json:"fixture_type"`
	Total       int    `json:"total"`
}

// RoomFixtureCount is one row of the per-room fixture aggregate.
type RoomFixtureCount struct {
	RoomName string `json:"room_name"`
	Total    int    `json:"total"`
}

// BlueprintRepository handles blueprint lifecycle persistence. Analysis
// results are written atomically: either the blueprint update and every
// derived room and fixture row land, or none of them do.
type BlueprintRepository interface {
	// Create inserts a new pending blueprint record.
	Create(ctx context.Context, bp *models.Blueprint) error

	// GetByID fetches one blueprint. Returns apperrors.ErrNotFound when
	// no row matches.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Blueprint, error)

	// MarkProcessing transitions a blueprint to processing and stamps
	// analysis_started_at.
	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// MarkFailed transitions a blueprint to failed and records the reason.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// SaveAnalysis persists a completed analysis in one transaction:
	// the blueprint row is updated to completed, then one room row per
	// analyzed room and one fixture row per fixture entry are inserted.
	SaveAnalysis(ctx context.Context, id uuid.UUID, result *models.AnalysisResult) (*SaveAnalysisStats, error)

	// FixtureCountsByType aggregates fixture quantities per type for one
	// blueprint.
	FixtureCountsByType(ctx context.Context, id uuid.UUID) ([]FixtureCount, error)

	// FixturesByRoom aggregates fixture quantities per room for one
	// blueprint.
	FixturesByRoom(ctx context.Context, id uuid.UUID) ([]RoomFixtureCount, error)

	// ListFixtures returns all fixture rows for one blueprint.
	ListFixtures(ctx context.Context, id uuid.UUID) ([]models.Fixture, error)
}

type blueprintRepository struct {
	db          *pgxpool.Pool
	saveTimeout time.Duration
	logger      *zap.Logger
}

// NewBlueprintRepository creates a new blueprint repository. saveTimeout
// bounds the SaveAnalysis transaction; zero means 30 seconds.
func NewBlueprintRepository(db *pgxpool.Pool, saveTimeout time.Duration, logger *zap.Logger) BlueprintRepository {
	if saveTimeout <= 0 {
		saveTimeout = 30 * time.Second
	}
	return &blueprintRepository{
		db:          db,
		saveTimeout: saveTimeout,
		logger:      logger.Named("blueprint_repository"),
	}
}

var _ BlueprintRepository = (*blueprintRepository)(nil)

func (r *blueprintRepository) Create(ctx context.Context, bp *models.Blueprint) error {
	if bp.ID == uuid.Nil {
		bp.ID = uuid.New()
	}
	if bp.Status == "" {
		bp.Status = models.BlueprintStatusPending
	}

	query := `
		INSERT INTO blueprints (id, project_name, project_address, file_path,
		                        file_size, file_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		bp.ID, bp.ProjectName, bp.ProjectAddress, bp.FilePath,
		bp.FileSize, bp.FileType, bp.Status,
	).Scan(&bp.CreatedAt, &bp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create blueprint: %w", err)
	}

	r.logger.Info("blueprint created",
		zap.String("blueprint_id", bp.ID.String()),
		zap.String("project_name", bp.ProjectName))
	return nil
}

func (r *blueprintRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Blueprint, error) {
	query := `
		SELECT id, project_name, project_address, file_path, file_size,
		       file_type, status, error_message, total_fixtures, analysis_data,
		       created_at, updated_at, analysis_started_at, analysis_completed_at
		FROM blueprints
		WHERE id = $1`

	var bp models.Blueprint
	err := r.db.QueryRow(ctx, query, id).Scan(
		&bp.ID, &bp.ProjectName, &bp.ProjectAddress, &bp.FilePath, &bp.FileSize,
		&bp.FileType, &bp.Status, &bp.ErrorMessage, &bp.TotalFixtures, &bp.AnalysisData,
		&bp.CreatedAt, &bp.UpdatedAt, &bp.AnalysisStartedAt, &bp.AnalysisCompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blueprint: %w", err)
	}

	return &bp, nil
}

func (r *blueprintRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE blueprints
		SET status = $2, analysis_started_at = NOW(), error_message = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, models.BlueprintStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark blueprint processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *blueprintRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE blueprints
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, models.BlueprintStatusFailed, reason)
	if err != nil {
		return fmt.Errorf("failed to mark blueprint failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	r.logger.Warn("blueprint marked failed",
		zap.String("blueprint_id", id.String()),
		zap.String("reason", reason))
	return nil
}

func (r *blueprintRepository) SaveAnalysis(ctx context.Context, id uuid.UUID, result *models.AnalysisResult) (*SaveAnalysisStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.saveTimeout)
	defer cancel()

	analysisData, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize analysis result: %w", err)
	}

	start := time.Now()
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	updateQuery := `
		UPDATE blueprints
		SET status = $2, total_fixtures = $3, analysis_data = $4,
		    error_message = NULL, analysis_completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, updateQuery,
		id, models.BlueprintStatusCompleted, result.Summary.TotalFixtures, analysisData)
	if err != nil {
		return nil, fmt.Errorf("failed to update blueprint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperrors.ErrNotFound
	}

	stats := &SaveAnalysisStats{}
	unit := result.Summary.MeasurementUnit
	if unit == "" {
		unit = "inches"
	}

	for _, room := range result.Rooms {
		roomQuery := `
			INSERT INTO blueprint_rooms (blueprint_id, name, room_type,
			                             floor_level, fixture_count, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`

		// The full parsed room travels along as an opaque blob so the raw
		// provider output survives future column changes.
		roomMeta, err := json.Marshal(room)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize room %q: %w", room.Name, err)
		}

		var roomID uuid.UUID
		err = tx.QueryRow(ctx, roomQuery,
			id, room.Name, room.RoomType, room.Floor, room.FixtureCount, roomMeta,
		).Scan(&roomID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert room %q: %w", room.Name, err)
		}
		stats.RoomsInserted++

		for _, fixture := range room.Fixtures {
			fixtureQuery := `
				INSERT INTO blueprint_fixtures (blueprint_id, room_id,
				    fixture_type, room_name, quantity, width, depth,
				    measurement_unit, confidence_score, notes, metadata)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

			fixtureUnit := fixture.Unit
			if fixtureUnit == "" {
				fixtureUnit = unit
			}
			var notes *string
			if fixture.Notes != "" {
				notes = &fixture.Notes
			}
			fixtureMeta, err := json.Marshal(fixture)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize fixture %q in room %q: %w",
					fixture.Type, room.Name, err)
			}

			_, err = tx.Exec(ctx, fixtureQuery,
				id, roomID, fixture.Type, room.Name, fixture.Count(),
				fixture.Width, fixture.Depth, fixtureUnit,
				fixture.Confidence, notes, fixtureMeta)
			if err != nil {
				return nil, fmt.Errorf("failed to insert fixture %q in room %q: %w",
					fixture.Type, room.Name, err)
			}
			stats.FixturesInserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit analysis save: %w", err)
	}

	r.logger.Info("analysis saved",
		zap.String("blueprint_id", id.String()),
		zap.Int("rooms_inserted", stats.RoomsInserted),
		zap.Int("fixtures_inserted", stats.FixturesInserted),
		zap.Duration("duration", time.Since(start)))
	return stats, nil
}

func (r *blueprintRepository) FixtureCountsByType(ctx context.Context, id uuid.UUID) ([]FixtureCount, error) {
	query := `
		SELECT fixture_type, SUM(quantity) AS total
		FROM blueprint_fixtures
		WHERE blueprint_id = $1
		GROUP BY fixture_type
		ORDER BY total DESC, fixture_type`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixture counts: %w", err)
	}
	defer rows.Close()

	var counts []FixtureCount
	for rows.Next() {
		var c FixtureCount
		if err := rows.Scan(&c.FixtureType, &c.Total); err != nil {
			return nil, fmt.Errorf("failed to scan fixture count row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fixture count rows: %w", err)
	}

	return counts, nil
}

func (r *blueprintRepository) FixturesByRoom(ctx context.Context, id uuid.UUID) ([]RoomFixtureCount, error) {
	query := `
		SELECT room_name, SUM(quantity) AS total
		FROM blueprint_fixtures
		WHERE blueprint_id = $1
		GROUP BY room_name
		ORDER BY room_name`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query room fixture counts: %w", err)
	}
	defer rows.Close()

	var counts []RoomFixtureCount
	for rows.Next() {
		var c RoomFixtureCount
		if err := rows.Scan(&c.RoomName, &c.Total); err != nil {
			return nil, fmt.Errorf("failed to scan room fixture count row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate room fixture count rows: %w", err)
	}

	return counts, nil
}

func (r *blueprintRepository) ListFixtures(ctx context.Context, id uuid.UUID) ([]models.Fixture, error) {
	query := `
		SELECT id, blueprint_id, room_id, fixture_type, room_name, quantity,
		       width, depth, measurement_unit, confidence_score, notes,
		       metadata, created_at
		FROM blueprint_fixtures
		WHERE blueprint_id = $1
		ORDER BY room_name, fixture_type`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixtures: %w", err)
	}
	defer rows.Close()

	var fixtures []models.Fixture
	for rows.Next() {
		var f models.Fixture
		if err := rows.Scan(
			&f.ID, &f.BlueprintID, &f.RoomID, &f.FixtureType, &f.RoomName,
			&f.Quantity, &f.Width, &f.Depth, &f.MeasurementUnit,
			&f.ConfidenceScore, &f.Notes, &f.Metadata, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fixture row: %w", err)
		}
		fixtures = append(fixtures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fixture rows: %w", err)
	}

	return fixtures, nil
}
