package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/plumbline/blueprint-engine/pkg/models"
)

// FixtureReferenceRepository provides access to the fixture reference table
// used to enrich parsed analysis results with display names, categories, and
// typical dimensions.
type FixtureReferenceRepository interface {
	// List returns all reference rows.
	List(ctx context.Context) ([]models.FixtureReference, error)
}

type fixtureReferenceRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewFixtureReferenceRepository creates a new fixture reference repository.
func NewFixtureReferenceRepository(db *pgxpool.Pool, logger *zap.Logger) FixtureReferenceRepository {
	return &fixtureReferenceRepository{
		db:     db,
		logger: logger.Named("fixture_reference_repository"),
	}
}

var _ FixtureReferenceRepository = (*fixtureReferenceRepository)(nil)

func (r *fixtureReferenceRepository) List(ctx context.Context) ([]models.FixtureReference, error) {
	query := `
		SELECT fixture_type, display_name, category,
		       typical_width_inches, typical_depth_inches
		FROM fixture_types_reference
		ORDER BY fixture_type`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixture reference table: %w", err)
	}
	defer rows.Close()

	var refs []models.FixtureReference
	for rows.Next() {
		var ref models.FixtureReference
		if err := rows.Scan(
			&ref.FixtureType,
			&ref.DisplayName,
			&ref.Category,
			&ref.TypicalWidthInches,
			&ref.TypicalDepthInches,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fixture reference row: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fixture reference rows: %w", err)
	}

	return refs, nil
}
