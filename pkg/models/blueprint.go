package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BlueprintStatus is the lifecycle state of an uploaded blueprint.
type BlueprintStatus string

const (
	// BlueprintStatusPending means the blueprint is uploaded but not yet analyzed.
	BlueprintStatusPending BlueprintStatus = "pending"
	// BlueprintStatusProcessing means an analysis is in flight.
	BlueprintStatusProcessing BlueprintStatus = "processing"
	// BlueprintStatusCompleted means analysis results are persisted.
	BlueprintStatusCompleted BlueprintStatus = "completed"
	// BlueprintStatusFailed means the analysis aborted; ErrorMessage holds the reason.
	BlueprintStatusFailed BlueprintStatus = "failed"
)

// Blueprint is one uploaded plan document and its analysis lifecycle record.
// Mutated only through the status-transition operations on BlueprintRepository.
type Blueprint struct {
	ID                  uuid.UUID       `json:"id"`
	ProjectName         string          `json:"project_name"`
	ProjectAddress      string          `json:"project_address,omitempty"`
	FilePath            string          `json:"file_path"`
	FileSize            int64           `json:"file_size"`
	FileType            string          `json:"file_type"`
	Status              BlueprintStatus `json:"status"`
	ErrorMessage        *string         `json:"error_message,omitempty"`
	TotalFixtures       int             `json:"total_fixtures"`
	AnalysisData        json.RawMessage `json:"analysis_data,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	AnalysisStartedAt   *time.Time      `json:"analysis_started_at,omitempty"`
	AnalysisCompletedAt *time.Time      `json:"analysis_completed_at,omitempty"`
}

// Room is one detected room, owned by exactly one Blueprint.
// Rows are created once per save and never updated afterward.
type Room struct {
	ID           uuid.UUID       `json:"id"`
	BlueprintID  uuid.UUID       `json:"blueprint_id"`
	Name         string          `json:"name"`
	RoomType     string          `json:"room_type"`
	FloorLevel   string          `json:"floor_level"`
	FixtureCount int             `json:"fixture_count"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Fixture is one detected plumbing fixture row. It carries a redundant
// room name (denormalized for reporting) alongside the room foreign key.
type Fixture struct {
	ID              uuid.UUID       `json:"id"`
	BlueprintID     uuid.UUID       `json:"blueprint_id"`
	RoomID          uuid.UUID       `json:"room_id"`
	FixtureType     string          `json:"fixture_type"`
	RoomName        string          `json:"room_name"`
	Quantity        int             `json:"quantity"`
	Width           *float64        `json:"width,omitempty"`
	Depth           *float64        `json:"depth,omitempty"`
	MeasurementUnit string          `json:"measurement_unit"`
	ConfidenceScore int             `json:"confidence_score"`
	Notes           *string         `json:"notes,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// FixtureReference is one row of the fixture_types_reference table used to
// enrich parsed fixtures with display names, categories, and typical sizes.
type FixtureReference struct {
	FixtureType        string   `json:"fixture_type"`
	DisplayName        string   `json:"display_name"`
	Category           string   `json:"category"`
	TypicalWidthInches *float64 `json:"typical_width_inches,omitempty"`
	TypicalDepthInches *float64 `json:"typical_depth_inches,omitempty"`
}
