package render

import "strings"

// legendPalette is cycled per fixture type for legend swatches and fixture
// highlights. Order matters: types are colored in legend order.
var legendPalette = []string{
	"#FF0000",
	"#0066CC",
	"#009933",
	"#FF9900",
	"#9933CC",
	"#CC6600",
	"#006666",
	"#CC0066",
}

// fixtureAbbreviations maps canonical fixture types to the short labels
// used on plumbing fixture schedules.
var fixtureAbbreviations = map[string]string{
	"lavatory":          "LAV",
	"toilet":            "WC",
	"water_closet":      "WC",
	"urinal":            "UR",
	"shower":            "SH",
	"bathtub":           "TUB",
	"kitchen_sink":      "KS",
	"sink":              "SNK",
	"hose_bib":          "HB",
	"floor_drain":       "FD",
	"water_heater":      "WH",
	"dishwasher":        "DW",
	"washing_machine":   "WM",
	"utility_sink":      "US",
	"drinking_fountain": "DF",
}

// FormatFixtureLabel returns the schedule abbreviation for a fixture type,
// falling back to the uppercased type for anything without one.
func FormatFixtureLabel(fixtureType string) string {
	if abbr, ok := fixtureAbbreviations[strings.ToLower(fixtureType)]; ok {
		return abbr
	}
	return strings.ToUpper(strings.ReplaceAll(fixtureType, "_", " "))
}

// paletteColor returns the highlight color for the i-th fixture type.
func paletteColor(i int) string {
	return legendPalette[i%len(legendPalette)]
}
