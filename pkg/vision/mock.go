package vision

import "context"

// MockClient is a configurable mock for testing the analysis pipeline.
// Set the function fields to control behavior in tests.
type MockClient struct {
	// AnalyzeImageFunc is called when AnalyzeImage is invoked.
	// If nil, returns empty string and nil error.
	AnalyzeImageFunc func(ctx context.Context, image Image, prompt string) (string, error)

	// ModelName is returned by Model. Defaults to "mock-vision-model".
	ModelName string

	// Call tracking for verification
	AnalyzeImageCalls int
}

// Ensure MockClient implements Client at compile time.
var _ Client = (*MockClient)(nil)

// NewMockClient creates a new mock with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{ModelName: "mock-vision-model"}
}

// AnalyzeImage implements Client.
func (m *MockClient) AnalyzeImage(ctx context.Context, image Image, prompt string) (string, error) {
	m.AnalyzeImageCalls++
	if m.AnalyzeImageFunc != nil {
		return m.AnalyzeImageFunc(ctx, image, prompt)
	}
	return "", nil
}

// Model implements Client.
func (m *MockClient) Model() string {
	return m.ModelName
}
