package activities

type ExtractPagesInput struct {
	ReportID   string `json:"report_id"`
	ReportPath string `json:"report_path"`
}

type ExtractPagesOutput struct {
	TextPath     string `json:"text_path"`
	DocumentHash string `json:"document_hash"`
	Pages        int    `json:"pages"`
	Method       string `json:"method"`
}

type LookupAnalysisInput struct {
	ReportID string `json:"report_id"`
	TextPath string `json:"text_path"`
}

type LookupAnalysisOutput struct {
	Hit             bool   `json:"hit"`
	DocumentHash    string `json:"document_hash"`
	ScoringModelSHA string `json:"scoring_model_sha"`
	PipelineSHA     string `json:"pipeline_sha"`
	ScoreTotal      *int   `json:"score_total,omitempty"`
}

type AnalyzeReportInput struct {
	Operation     string `json:"operation"`
	ReportID      string `json:"report_id"`
	Filename      string `json:"filename"`
	TextPath      string `json:"text_path"`
	ProviderIndex int    `json:"provider_index"`
	ReportSystem  string `json:"report_system,omitempty"`
	BuildingYear  int    `json:"building_year,omitempty"`
}

type AnalyzeReportOutput struct {
	OutputPath   string `json:"output_path"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	RequestID    string `json:"request_id"`
	PromptTokens int    `json:"prompt_tokens"`
}

type ProcessAnalysisInput struct {
	ReportID   string `json:"report_id"`
	Filename   string `json:"filename"`
	Method     string `json:"method"`
	TextPath   string `json:"text_path"`
	OutputPath string `json:"output_path"`
}

// ProcessAnalysisOutput reports a document that cannot be scored through Failed
// rather than an error, so the workflow records it instead of retrying.
type ProcessAnalysisOutput struct {
	DocumentHash string   `json:"document_hash"`
	ScoreTotal   *int     `json:"score_total,omitempty"`
	Points       int      `json:"points"`
	Blockers     []string `json:"blockers"`
	Failed       bool     `json:"failed"`
	FailReason   string   `json:"fail_reason,omitempty"`
}

type UpdateReportStatusInput struct {
	ReportID     string `json:"report_id"`
	Filename     string `json:"filename"`
	Status       string `json:"status"`
	FailReason   string `json:"fail_reason,omitempty"`
	DocumentHash string `json:"document_hash,omitempty"`
	ScoreTotal   *int   `json:"score_total,omitempty"`
}

type LogModelCallInput struct {
	CallID       string `json:"call_id"`
	Operation    string `json:"operation"`
	ReportID     string `json:"report_id"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	RequestID    string `json:"request_id"`
	Status       string `json:"status"`
	ErrorType    string `json:"error_type"`
	PromptTokens int    `json:"prompt_tokens"`
}
