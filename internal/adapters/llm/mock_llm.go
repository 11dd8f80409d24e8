package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

// MockLLM answers without calling a model. Useful for local mode and tests.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) GenerateReply(_ context.Context, userMessage string, rc domain.ReflectionContext) (string, error) {
	symbol := "energy"
	if len(rc.Symbols) > 0 {
		symbol = rc.Symbols[0]
	}
	return fmt.Sprintf("I hear the %s in you when you say %q. What does the %s want you to notice?", rc.Archetype, userMessage, symbol), nil
}
