package mock

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// MockGenerator is a test double for ai.TextGenerator.
type MockGenerator struct {
	// GenerateTextFunc is called by GenerateText if set.
	// If nil, returns Lines joined by newlines, or a canned answer.
	GenerateTextFunc func(ctx context.Context, prompt string) (string, error)

	// Lines is returned one per line by the default behavior when non-empty.
	Lines []string

	callCount  atomic.Int64
	lastPrompt atomic.Value
}

// NewMockGenerator creates a mock generator with default behavior.
func NewMockGenerator(lines ...string) *MockGenerator {
	return &MockGenerator{Lines: lines}
}

// GenerateText records the prompt and returns the configured answer.
func (m *MockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.callCount.Add(1)
	m.lastPrompt.Store(prompt)

	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, prompt)
	}
	if len(m.Lines) > 0 {
		return strings.Join(m.Lines, "\n"), nil
	}
	return fmt.Sprintf("generated follow-up %d for the prompt", m.CallCount()), nil
}

// CallCount returns the number of GenerateText calls.
func (m *MockGenerator) CallCount() int {
	return int(m.callCount.Load())
}

// LastPrompt returns the most recent prompt, or "" if none was seen.
func (m *MockGenerator) LastPrompt() string {
	p, _ := m.lastPrompt.Load().(string)
	return p
}

// Reset clears the call count and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount.Store(0)
	m.lastPrompt = atomic.Value{}
	m.GenerateTextFunc = nil
	m.Lines = nil
}
