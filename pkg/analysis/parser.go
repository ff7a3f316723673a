// Package analysis decodes and validates the untrusted free-text response
// of the vision provider into a typed result. This is the trust boundary:
// nothing downstream of it sees unvalidated provider output.
package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/plumbline/blueprint-engine/pkg/models"
)

var (
	// Models usually honor the "respond with JSON only" instruction but
	// sometimes wrap the payload in a markdown fence anyway.
	labeledFencePattern = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n\\s*```")
	genericFencePattern = regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n\\s*```")
)

// ExtractJSON returns the JSON candidate inside a response: a ```json fenced
// block if present, else a generic fenced block, else the whole text.
func ExtractJSON(text string) string {
	if m := labeledFencePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := genericFencePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// Document is the decoded but not yet validated response shape. Pointer and
// nil-able fields distinguish absent keys from zero values so validation can
// name exactly what is missing.
type Document struct {
	Summary       *models.AnalysisSummary `json:"summary"`
	Rooms         []models.RoomAnalysis   `json:"rooms"`
	FixtureTotals map[string]int          `json:"fixtureTotals"`
	Notes         string                  `json:"notes"`
}

// DecodeDocument extracts and strictly decodes the JSON payload of a
// response without validating its shape. An empty object decodes to an
// empty Document.
func DecodeDocument(text string) (*Document, error) {
	candidate := ExtractJSON(text)

	var doc Document
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return nil, NewError(CodeParse, "response is not well-formed JSON", "", err)
	}
	return &doc, nil
}

// Validate enforces the minimal schema: summary, rooms, and fixtureTotals
// must be present, and every fixture needs a non-empty type and a numeric
// quantity. Each violation is reported with a message naming the field.
func (d *Document) Validate() error {
	if d.Summary == nil {
		return NewError(CodeValidation, "Missing summary", "", nil)
	}
	if d.Rooms == nil {
		return NewError(CodeValidation, "Missing rooms", "", nil)
	}
	if d.FixtureTotals == nil {
		return NewError(CodeValidation, "Missing fixtureTotals", "", nil)
	}
	for _, room := range d.Rooms {
		for i, fixture := range room.Fixtures {
			if fixture.Type == "" {
				return NewError(CodeValidation,
					fmt.Sprintf("Missing fixture type in room %q (fixture %d)", room.Name, i), "", nil)
			}
			if fixture.Quantity == nil {
				return NewError(CodeValidation,
					fmt.Sprintf("Missing fixture quantity in room %q (fixture %d)", room.Name, i), "", nil)
			}
		}
	}
	return nil
}

// Parse decodes and validates a provider response, returning the typed
// analysis result. It is a pure function: no I/O, no logging.
func Parse(text string) (*models.AnalysisResult, error) {
	doc, err := DecodeDocument(text)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return &models.AnalysisResult{
		Summary:       *doc.Summary,
		Rooms:         doc.Rooms,
		FixtureTotals: doc.FixtureTotals,
		Notes:         doc.Notes,
	}, nil
}

// CalculateFixtureTotals re-derives the per-type quantity sums across all
// rooms. For a valid result it must equal the provider's own fixtureTotals
// map; reporting uses it as the trusted figure.
func CalculateFixtureTotals(rooms []models.RoomAnalysis) map[string]int {
	totals := make(map[string]int)
	for _, room := range rooms {
		for _, fixture := range room.Fixtures {
			if fixture.Type == "" || fixture.Quantity == nil {
				continue
			}
			totals[fixture.Type] += *fixture.Quantity
		}
	}
	return totals
}
