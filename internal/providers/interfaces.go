package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type GenerateRequest struct {
	Operation string `json:"operation"`
	ReportID  string `json:"report_id"`
	System    string `json:"system"`
	Prompt    string `json:"prompt"`
}

type GenerateResponse struct {
	Text         string `json:"text"`
	RequestID    string `json:"request_id"`
	PromptTokens int    `json:"prompt_tokens"`
}

// LLMProvider is the model collaborator that produces the raw analysis JSON for a
// report.
type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}
