package vision

// AnalysisPrompt is the fixed instruction sent with every blueprint image.
// It pins the JSON shape the parser expects; changing either side requires
// changing the other.
const AnalysisPrompt = `You are an expert plumbing blueprint analyzer. Analyze this plumbing blueprint image and provide a comprehensive analysis.

Please identify and count ALL plumbing fixtures, providing the following information:

1. Room-by-Room Analysis: for each room/space, give the room name/label, the list of all fixtures in that room, and the quantity of each fixture type.

2. Fixture Details: for EACH fixture, provide the fixture type (lavatory, toilet, shower, bathtub, sink, urinal, water heater, hose bib, floor drain, etc.), its location/room, its measurements (width side to side, depth back to front, and the measurement unit shown on the blueprint), and any visible labels or specifications.

3. Summary Totals: the total count of each fixture type across the entire blueprint.

4. Blueprint Details: the scale (if visible), the number of floors/levels, and any notes or specifications visible.

Return your analysis as a single JSON object with exactly this shape:

{
  "summary": {
    "totalFixtures": <number>,
    "totalRooms": <number>,
    "scale": "<scale from blueprint>",
    "measurementUnit": "feet" or "inches",
    "floors": <number>
  },
  "rooms": [
    {
      "name": "Master Bathroom",
      "floor": "1",
      "fixtureCount": 4,
      "fixtures": [
        {"type": "lavatory", "quantity": 2, "width": 20, "depth": 18, "unit": "inches", "notes": "Double vanity"},
        {"type": "toilet", "quantity": 1, "width": 15, "depth": 28, "unit": "inches"},
        {"type": "shower", "quantity": 1, "width": 36, "depth": 36, "unit": "inches", "notes": "Walk-in shower"}
      ]
    }
  ],
  "fixtureTotals": {
    "lavatory": 5,
    "toilet": 3,
    "shower": 2
  },
  "notes": "Any additional observations about the blueprint"
}

Be thorough and accurate. If measurements are not clearly visible, estimate based on standard fixture sizes and note that they are estimates. If you cannot determine something, indicate "unknown" or "not visible".

Respond ONLY with the JSON object, no additional text.`
