package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/plumbline/blueprint-engine/pkg/apperrors"
	"github.com/plumbline/blueprint-engine/pkg/config"
	"github.com/plumbline/blueprint-engine/pkg/models"
)

func TestParseScale(t *testing.T) {
	tests := []struct {
		scale    string
		expected float64
	}{
		{`1/4" = 1'-0"`, 2.0},
		{`1/8" = 1'-0"`, 1.0},
		{`1" = 1'`, 8.0},
		{`3/4" = 1'-0"`, 6.0},
		{"not a scale", DefaultPixelsPerInch},
		{"", DefaultPixelsPerInch},
		{`0" = 1'-0"`, DefaultPixelsPerInch},
	}

	for _, tt := range tests {
		got := ParseScale(tt.scale)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("ParseScale(%q) = %v, want %v", tt.scale, got, tt.expected)
		}
	}
}

func TestFormatFixtureLabel(t *testing.T) {
	tests := []struct {
		fixtureType string
		expected    string
	}{
		{"toilet", "WC"},
		{"sink", "SNK"},
		{"kitchen_sink", "KS"},
		{"water_heater", "WH"},
		{"bidet", "BIDET"},
		{"grease_trap", "GREASE TRAP"},
	}

	for _, tt := range tests {
		if got := FormatFixtureLabel(tt.fixtureType); got != tt.expected {
			t.Errorf("FormatFixtureLabel(%q) = %q, want %q", tt.fixtureType, got, tt.expected)
		}
	}
}

func TestAnnotatedPath(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{"/uploads/plan.jpg", "/uploads/plan-annotated.png"},
		{"/uploads/plan.png", "/uploads/plan-annotated.png"},
		{"plan", "plan-annotated.png"},
	}

	for _, tt := range tests {
		if got := AnnotatedPath(tt.source); got != tt.expected {
			t.Errorf("AnnotatedPath(%q) = %q, want %q", tt.source, got, tt.expected)
		}
	}
}

func TestUnavailableRenderer(t *testing.T) {
	var r Renderer = Unavailable{}
	_, err := r.Annotate(context.Background(), "plan.png", &models.AnalysisResult{})
	if !errors.Is(err, apperrors.ErrRendererUnavailable) {
		t.Fatalf("expected ErrRendererUnavailable, got %v", err)
	}
}

func TestNewRenderer(t *testing.T) {
	logger := zap.NewNop()

	r := NewRenderer(&config.RendererConfig{Enabled: false}, logger)
	if _, ok := r.(Unavailable); !ok {
		t.Fatalf("expected Unavailable when disabled, got %T", r)
	}

	r = NewRenderer(&config.RendererConfig{Enabled: true, FontPath: "/nonexistent/font.ttf"}, logger)
	if _, ok := r.(Unavailable); !ok {
		t.Fatalf("expected Unavailable for missing font, got %T", r)
	}

	r = NewRenderer(&config.RendererConfig{Enabled: true}, logger)
	if _, ok := r.(*ImageRenderer); !ok {
		t.Fatalf("expected ImageRenderer, got %T", r)
	}
}

func writeBlankBlueprint(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}

	path := filepath.Join(t.TempDir(), "plan.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func annotationResult() *models.AnalysisResult {
	one := 1
	width, depth := 20.0, 28.0
	posX, posY := 400.0, 300.0
	return &models.AnalysisResult{
		Summary: models.AnalysisSummary{TotalFixtures: 2, TotalRooms: 1, Scale: `1/4" = 1'-0"`},
		Rooms: []models.RoomAnalysis{
			{
				Name:         "Bathroom 101",
				FixtureCount: 2,
				Fixtures: []models.FixtureDetail{
					{Type: "toilet", Quantity: &one, Width: &width, Depth: &depth, PositionX: &posX, PositionY: &posY},
					{Type: "sink", Quantity: &one}, // no position, skipped
				},
			},
		},
		FixtureTotals: map[string]int{"toilet": 1, "sink": 1},
	}
}

func TestImageRenderer_Annotate(t *testing.T) {
	source := writeBlankBlueprint(t, 800, 600)
	r := NewImageRenderer(DefaultOptions(), zap.NewNop())

	outPath, err := r.Annotate(context.Background(), source, annotationResult())
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if want := AnnotatedPath(source); outPath != want {
		t.Errorf("output path = %q, want %q", outPath, want)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("annotated file missing: %v", err)
	}
	defer f.Close()

	annotated, err := png.Decode(f)
	if err != nil {
		t.Fatalf("annotated file is not a PNG: %v", err)
	}
	bounds := annotated.Bounds()
	if bounds.Dx() != 800 || bounds.Dy() != 600 {
		t.Errorf("annotated image is %dx%d, want 800x600", bounds.Dx(), bounds.Dy())
	}

	// The legend box fills the bottom-right corner, so at least one pixel
	// inside it must not be the source's uniform white.
	changed := false
	for y := 400; y < 600 && !changed; y++ {
		for x := 500; x < 800; x++ {
			cr, cg, cb, _ := annotated.At(x, y).RGBA()
			if cr != 0xFFFF || cg != 0xFFFF || cb != 0xFFFF {
				changed = true
				break
			}
		}
	}
	if !changed {
		t.Error("legend area is untouched")
	}
}

func TestImageRenderer_Annotate_MissingSource(t *testing.T) {
	r := NewImageRenderer(DefaultOptions(), zap.NewNop())
	_, err := r.Annotate(context.Background(), "/nonexistent/plan.png", annotationResult())
	if err == nil {
		t.Fatal("expected error for missing source image")
	}
}
