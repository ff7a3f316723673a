package render

import (
	"regexp"
	"strconv"
)

// DefaultPixelsPerInch is the pixel density assumed for one real-world inch
// when the analysis carries no parseable scale.
const DefaultPixelsPerInch = 10.0

// scanDPI is the pixel density assumed for the scanned sheet itself when
// converting an architectural scale to pixels per real-world inch.
const scanDPI = 96.0

// scalePattern matches architectural scale notation such as
// `1/4" = 1'-0"` or `1" = 1'`.
var scalePattern = regexp.MustCompile(
	`(\d+(?:\.\d+)?)\s*(?:/\s*(\d+(?:\.\d+)?))?\s*"\s*=\s*(\d+(?:\.\d+)?)\s*'\s*(?:-\s*(\d+(?:\.\d+)?)\s*")?`)

// ParseScale converts an architectural scale string into pixels per
// real-world inch, assuming the sheet was scanned at 96 DPI. Anything that
// does not match the notation falls back to DefaultPixelsPerInch.
func ParseScale(scale string) float64 {
	m := scalePattern.FindStringSubmatch(scale)
	if m == nil {
		return DefaultPixelsPerInch
	}

	numerator, _ := strconv.ParseFloat(m[1], 64)
	denominator := 1.0
	if m[2] != "" {
		denominator, _ = strconv.ParseFloat(m[2], 64)
	}
	feet, _ := strconv.ParseFloat(m[3], 64)
	inches := 0.0
	if m[4] != "" {
		inches, _ = strconv.ParseFloat(m[4], 64)
	}

	realInches := feet*12 + inches
	if denominator == 0 || realInches == 0 {
		return DefaultPixelsPerInch
	}

	drawingInches := numerator / denominator
	if drawingInches == 0 {
		return DefaultPixelsPerInch
	}
	return scanDPI * drawingInches / realInches
}
