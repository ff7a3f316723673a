package render

import (
	"context"
	"fmt"
	"os"

	"github.com/golang/freetype/truetype"
	"go.uber.org/zap"
	"golang.org/x/image/font"

	"github.com/plumbline/blueprint-engine/pkg/apperrors"
	"github.com/plumbline/blueprint-engine/pkg/config"
	"github.com/plumbline/blueprint-engine/pkg/models"
)

// Renderer produces an annotated copy of a blueprint image from its
// analysis result. Annotation is a capability: when the renderer is
// unavailable, Annotate fails fast rather than writing a partial image.
type Renderer interface {
	// Annotate draws dimension lines, fixture highlights, and a legend
	// onto a copy of the image at sourcePath and returns the path of the
	// annotated file.
	Annotate(ctx context.Context, sourcePath string, result *models.AnalysisResult) (string, error)
}

// Unavailable is the renderer used when annotation is disabled or cannot be
// set up. Every call fails with apperrors.ErrRendererUnavailable.
type Unavailable struct{}

var _ Renderer = (*Unavailable)(nil)

func (Unavailable) Annotate(ctx context.Context, sourcePath string, result *models.AnalysisResult) (string, error) {
	return "", apperrors.ErrRendererUnavailable
}

// NewRenderer builds the annotation renderer from configuration. A missing
// or unreadable font file disables annotation instead of degrading the
// output silently.
func NewRenderer(cfg *config.RendererConfig, logger *zap.Logger) Renderer {
	logger = logger.Named("render")

	if !cfg.Enabled {
		logger.Info("annotation rendering disabled")
		return Unavailable{}
	}

	opts := DefaultOptions()
	if cfg.FontPath != "" {
		face, err := loadFontFace(cfg.FontPath, opts.TextSize)
		if err != nil {
			logger.Warn("failed to load annotation font, rendering disabled",
				zap.String("font_path", cfg.FontPath),
				zap.Error(err))
			return Unavailable{}
		}
		opts.FontFace = face
	}

	return NewImageRenderer(opts, logger)
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
