package render

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
	"golang.org/x/image/font"

	"github.com/plumbline/blueprint-engine/pkg/models"
)

// Options controls annotation geometry and styling.
type Options struct {
	// FontFace overrides gg's built-in face when a TTF is configured.
	FontFace font.Face
	TextSize float64

	DimensionColor     string
	DimensionLineWidth float64
	ExtensionLength    float64
	DimensionOffset    float64
	ArrowSize          float64

	OutlineWidth   float64
	HighlightAlpha float64

	LegendWidth       float64
	LegendLineHeight  float64
	LegendPadding     float64
	LegendMargin      float64
	LegendBorderWidth float64

	// PixelsPerInch overrides the scale derived from the analysis summary
	// when non-zero.
	PixelsPerInch float64
}

// DefaultOptions returns the standard annotation styling.
func DefaultOptions() Options {
	return Options{
		TextSize:           12,
		DimensionColor:     "#000000",
		DimensionLineWidth: 1,
		ExtensionLength:    20,
		DimensionOffset:    10,
		ArrowSize:          8,
		OutlineWidth:       2,
		HighlightAlpha:     0.3,
		LegendWidth:        300,
		LegendLineHeight:   20,
		LegendPadding:      20,
		LegendMargin:       30,
		LegendBorderWidth:  2,
	}
}

// ImageRenderer draws dimension lines, fixture highlights, and a fixture
// schedule legend onto blueprint images.
type ImageRenderer struct {
	opts   Options
	logger *zap.Logger
}

// NewImageRenderer creates an annotation renderer with the given options.
func NewImageRenderer(opts Options, logger *zap.Logger) *ImageRenderer {
	return &ImageRenderer{
		opts:   opts,
		logger: logger.Named("image_renderer"),
	}
}

var _ Renderer = (*ImageRenderer)(nil)

// AnnotatedPath returns the output path for an annotated copy of sourcePath:
// the same directory and base name with an -annotated suffix, always PNG.
func AnnotatedPath(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	base := strings.TrimSuffix(sourcePath, ext)
	return base + "-annotated.png"
}

func (r *ImageRenderer) Annotate(ctx context.Context, sourcePath string, result *models.AnalysisResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := gg.LoadImage(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to load blueprint image: %w", err)
	}

	dc := gg.NewContextForImage(img)
	if r.opts.FontFace != nil {
		dc.SetFontFace(r.opts.FontFace)
	}

	ppi := r.opts.PixelsPerInch
	if ppi <= 0 {
		ppi = ParseScale(result.Summary.Scale)
	}

	colors := typeColors(result.FixtureTotals)
	drawn := 0
	for _, room := range result.Rooms {
		for i := range room.Fixtures {
			fixture := &room.Fixtures[i]
			if fixture.PositionX == nil || fixture.PositionY == nil {
				continue
			}
			if fixture.Width == nil || fixture.Depth == nil {
				continue
			}
			r.drawFixture(dc, fixture, colors[fixture.Type], ppi)
			drawn++
		}
	}

	r.drawLegend(dc, result, colors)

	outPath := AnnotatedPath(sourcePath)
	if err := dc.SavePNG(outPath); err != nil {
		return "", fmt.Errorf("failed to save annotated image: %w", err)
	}

	r.logger.Info("annotated blueprint saved",
		zap.String("output_path", outPath),
		zap.Int("fixtures_drawn", drawn),
		zap.Float64("pixels_per_inch", ppi))
	return outPath, nil
}

// typeColors assigns a stable palette color to every fixture type, in
// sorted type order so the legend and highlights always agree.
func typeColors(totals map[string]int) map[string]string {
	types := make([]string, 0, len(totals))
	for t := range totals {
		types = append(types, t)
	}
	sort.Strings(types)

	colors := make(map[string]string, len(types))
	for i, t := range types {
		colors[t] = paletteColor(i)
	}
	return colors
}

func (r *ImageRenderer) drawFixture(dc *gg.Context, fixture *models.FixtureDetail, hexColor string, ppi float64) {
	if hexColor == "" {
		hexColor = legendPalette[0]
	}

	w := *fixture.Width * ppi
	d := *fixture.Depth * ppi
	x := *fixture.PositionX - w/2
	y := *fixture.PositionY - d/2

	// Translucent fill with a solid outline.
	alpha := int(math.Round(r.opts.HighlightAlpha * 255))
	dc.SetHexColor(fmt.Sprintf("%s%02X", hexColor, alpha))
	dc.DrawRectangle(x, y, w, d)
	dc.Fill()

	dc.SetHexColor(hexColor)
	dc.SetLineWidth(r.opts.OutlineWidth)
	dc.DrawRectangle(x, y, w, d)
	dc.Stroke()

	dc.DrawStringAnchored(FormatFixtureLabel(fixture.Type),
		*fixture.PositionX, *fixture.PositionY, 0.5, 0.5)

	r.drawWidthDimension(dc, x, y, w, *fixture.Width)
	r.drawDepthDimension(dc, x, y, d, *fixture.Depth)
}

// drawWidthDimension draws a horizontal dimension line above the fixture
// with dashed extension lines down to its top corners.
func (r *ImageRenderer) drawWidthDimension(dc *gg.Context, x, y, w, widthInches float64) {
	lineY := y - r.opts.DimensionOffset - r.opts.ExtensionLength

	dc.SetHexColor(r.opts.DimensionColor)

	dc.Push()
	dc.SetLineWidth(r.opts.DimensionLineWidth * 0.7)
	dc.SetDash(2, 2)
	dc.DrawLine(x, y-r.opts.DimensionOffset, x, lineY)
	dc.DrawLine(x+w, y-r.opts.DimensionOffset, x+w, lineY)
	dc.Stroke()
	dc.Pop()

	dc.SetLineWidth(r.opts.DimensionLineWidth)
	dc.DrawLine(x, lineY, x+w, lineY)
	dc.Stroke()
	r.drawArrowhead(dc, x, lineY, 0)
	r.drawArrowhead(dc, x+w, lineY, math.Pi)

	label := fmt.Sprintf("%g\"", widthInches)
	dc.DrawStringAnchored(label, x+w/2, lineY-r.opts.DimensionOffset/2, 0.5, 0.5)
}

// drawDepthDimension draws a vertical dimension line to the left of the
// fixture with its label rotated to read along the line.
func (r *ImageRenderer) drawDepthDimension(dc *gg.Context, x, y, d, depthInches float64) {
	lineX := x - r.opts.DimensionOffset - r.opts.ExtensionLength

	dc.SetHexColor(r.opts.DimensionColor)

	dc.Push()
	dc.SetLineWidth(r.opts.DimensionLineWidth * 0.7)
	dc.SetDash(2, 2)
	dc.DrawLine(x-r.opts.DimensionOffset, y, lineX, y)
	dc.DrawLine(x-r.opts.DimensionOffset, y+d, lineX, y+d)
	dc.Stroke()
	dc.Pop()

	dc.SetLineWidth(r.opts.DimensionLineWidth)
	dc.DrawLine(lineX, y, lineX, y+d)
	dc.Stroke()
	r.drawArrowhead(dc, lineX, y, math.Pi/2)
	r.drawArrowhead(dc, lineX, y+d, -math.Pi/2)

	label := fmt.Sprintf("%g\"", depthInches)
	labelX := lineX - r.opts.DimensionOffset/2
	labelY := y + d/2
	dc.Push()
	dc.RotateAbout(-math.Pi/2, labelX, labelY)
	dc.DrawStringAnchored(label, labelX, labelY, 0.5, 0.5)
	dc.Pop()
}

// drawArrowhead draws an open arrowhead at (x, y) pointing along angle.
func (r *ImageRenderer) drawArrowhead(dc *gg.Context, x, y, angle float64) {
	size := r.opts.ArrowSize
	for _, spread := range []float64{math.Pi / 6, -math.Pi / 6} {
		dc.DrawLine(x, y,
			x+size*math.Cos(angle+spread),
			y+size*math.Sin(angle+spread))
	}
	dc.Stroke()
}

// drawLegend draws the fixture schedule box in the bottom-right corner.
func (r *ImageRenderer) drawLegend(dc *gg.Context, result *models.AnalysisResult, colors map[string]string) {
	types := make([]string, 0, len(result.FixtureTotals))
	for t := range result.FixtureTotals {
		types = append(types, t)
	}
	sort.Strings(types)

	lineHeight := r.opts.LegendLineHeight
	height := float64(len(types)+3)*lineHeight + 2*r.opts.LegendPadding
	width := r.opts.LegendWidth
	x := float64(dc.Width()) - width - r.opts.LegendMargin
	y := float64(dc.Height()) - height - r.opts.LegendMargin

	dc.SetHexColor("#FFFFFF")
	dc.DrawRectangle(x, y, width, height)
	dc.Fill()
	dc.SetHexColor("#000000")
	dc.SetLineWidth(r.opts.LegendBorderWidth)
	dc.DrawRectangle(x, y, width, height)
	dc.Stroke()

	textX := x + r.opts.LegendPadding
	textY := y + r.opts.LegendPadding + lineHeight/2

	title := "PLUMBING FIXTURE SCHEDULE"
	dc.DrawStringAnchored(title, textX, textY, 0, 0.5)
	titleWidth, _ := dc.MeasureString(title)
	dc.SetLineWidth(1)
	dc.DrawLine(textX, textY+lineHeight/2, textX+titleWidth, textY+lineHeight/2)
	dc.Stroke()
	textY += 2 * lineHeight

	for _, t := range types {
		dc.SetHexColor(colors[t])
		dc.DrawRectangle(textX, textY-5, 10, 10)
		dc.Fill()

		dc.SetHexColor("#000000")
		row := fmt.Sprintf("%s: %d", FormatFixtureLabel(t), result.FixtureTotals[t])
		dc.DrawStringAnchored(row, textX+18, textY, 0, 0.5)
		textY += lineHeight
	}

	dc.DrawStringAnchored(
		fmt.Sprintf("TOTAL FIXTURES: %d", result.Summary.TotalFixtures),
		textX, textY, 0, 0.5)
}
