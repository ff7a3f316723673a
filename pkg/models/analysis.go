package models

import (
	"encoding/json"

	"github.com/plumbline/blueprint-engine/pkg/jsonutil"
)

// AnalysisSummary is the blueprint-level summary block of a vision analysis.
type AnalysisSummary struct {
	TotalFixtures   int    `json:"totalFixtures"`
	TotalRooms      int    `json:"totalRooms"`
	Scale           string `json:"scale,omitempty"`
	MeasurementUnit string `json:"measurementUnit,omitempty"`
	Floors          int    `json:"floors,omitempty"`
}

// FixtureDetail is one fixture entry inside a room of an analysis result.
// Quantity is a pointer so validation can distinguish a missing value from
// an explicit zero. DisplayName, Category, and Confidence are filled in by
// enrichment, never by the model itself.
type FixtureDetail struct {
	Type        string   `json:"type"`
	Quantity    *int     `json:"quantity,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Depth       *float64 `json:"depth,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Category    string   `json:"category,omitempty"`
	Confidence  int      `json:"confidence,omitempty"`

	// Pixel position of the fixture center on the source image, when the
	// model reports one. Annotation skips fixtures without a position.
	PositionX *float64 `json:"position_x,omitempty"`
	PositionY *float64 `json:"position_y,omitempty"`
}

// Count returns the fixture quantity, defaulting to one when absent.
func (f *FixtureDetail) Count() int {
	if f.Quantity == nil {
		return 1
	}
	return *f.Quantity
}

// RoomAnalysis is one room block of an analysis result.
type RoomAnalysis struct {
	Name         string          `json:"name"`
	Floor        string          `json:"floor,omitempty"`
	RoomType     string          `json:"type,omitempty"`
	FixtureCount int             `json:"fixtureCount"`
	Fixtures     []FixtureDetail `json:"fixtures"`
}

// UnmarshalJSON accepts floor labels that arrive as JSON numbers instead of
// strings, which vision models produce for numbered floors.
func (r *RoomAnalysis) UnmarshalJSON(data []byte) error {
	type alias RoomAnalysis
	aux := struct {
		Floor json.RawMessage `json:"floor"`
		*alias
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Floor = jsonutil.FlexibleStringValue(aux.Floor)
	return nil
}

// AnalysisResult is the structured outcome of one blueprint analysis.
// It is transient: the persistence layer serializes the whole result into
// the blueprint's analysis_data column rather than storing it as an entity.
//
// Invariant: Summary.TotalFixtures equals the sum of FixtureTotals values,
// and len(Rooms) equals Summary.TotalRooms.
type AnalysisResult struct {
	Summary       AnalysisSummary `json:"summary"`
	Rooms         []RoomAnalysis  `json:"rooms"`
	FixtureTotals map[string]int  `json:"fixtureTotals"`
	Notes         string          `json:"notes,omitempty"`
	Enriched      bool            `json:"enriched,omitempty"`
}
