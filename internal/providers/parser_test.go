package providers

import "testing"

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("mock|openai:gpt-4o| Groq ")
	if len(refs) != 3 {
		t.Fatalf("expected 3 providers got %d", len(refs))
	}
	if refs[1].Name != "openai" || refs[1].Model != "gpt-4o" {
		t.Fatalf("unexpected parse result: %+v", refs[1])
	}
	if refs[2].Name != "groq" || refs[2].Model != "" {
		t.Fatalf("unexpected parse result: %+v", refs[2])
	}
}

func TestParseProviderListDefaultsToMock(t *testing.T) {
	refs := ParseProviderList(" | ")
	if len(refs) != 1 || refs[0].Name != "mock" {
		t.Fatalf("expected mock fallback, got %+v", refs)
	}
}
