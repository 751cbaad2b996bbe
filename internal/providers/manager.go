package providers

import (
	"fmt"
	"strings"

	"validert/internal/config"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

// Manager holds the configured model providers in failover order.
type Manager struct {
	llmProviders []NamedLLMProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: p})
	}
	return m, nil
}

// NewStaticManager is used by tests and the offline CLI to supply providers directly.
func NewStaticManager(providers ...NamedLLMProvider) *Manager {
	return &Manager{llmProviders: providers}
}

func (m *Manager) LLMProviderByIndex(i int) (LLMProvider, ProviderRef) {
	if len(m.llmProviders) == 0 {
		return NewMockProvider(), ProviderRef{Raw: "mock", Name: "mock"}
	}
	if i < 0 || i >= len(m.llmProviders) {
		i = 0
	}
	return m.llmProviders[i].Provider, m.llmProviders[i].Ref
}

func (m *Manager) LLMCount() int {
	return len(m.llmProviders)
}

// PreferredLLMOrder lists real providers before the mock.
func (m *Manager) PreferredLLMOrder() []int {
	n := len(m.llmProviders)
	if n == 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if m.llmProviders[i].Ref.Name != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if m.llmProviders[i].Ref.Name == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func (m *Manager) FindLLMProviderByName(name string) (LLMProvider, ProviderRef, bool) {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return nil, ProviderRef{}, false
	}
	for i := range m.llmProviders {
		ref := m.llmProviders[i].Ref
		if ref.Name == target || strings.ToLower(ref.Raw) == target {
			return m.llmProviders[i].Provider, ref, true
		}
	}
	return nil, ProviderRef{}, false
}

func (m *Manager) Refs() []ProviderRef {
	out := make([]ProviderRef, 0, len(m.llmProviders))
	for i := range m.llmProviders {
		out = append(out, m.llmProviders[i].Ref)
	}
	return out
}

func buildProvider(ref ProviderRef, cfg config.Config) (LLMProvider, error) {
	switch ref.Name {
	case "mock":
		return NewMockProvider(), nil
	case "openai":
		return NewOpenAIProvider(cfg.OpenAIAPIKey, ref.Model), nil
	case "groq":
		return NewGroqProvider(cfg.GroqAPIKey, ref.Model), nil
	case "ollama":
		return NewOllamaProvider(cfg.OllamaBaseURL, ref.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
