package workflows

type ReportAnalysisInput struct {
	ReportID        string `json:"report_id"`
	ReportPath      string `json:"report_path"`
	Filename        string `json:"filename"`
	ReportSystem    string `json:"report_system,omitempty"`
	BuildingYear    int    `json:"building_year,omitempty"`
	LLMProviders    int    `json:"llm_providers"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

// ReportStatus is served by the status query while the workflow runs.
type ReportStatus struct {
	ReportID     string            `json:"report_id"`
	ReportPath   string            `json:"report_path"`
	CurrentStep  string            `json:"current_step"`
	Status       string            `json:"status"`
	FailReason   string            `json:"fail_reason,omitempty"`
	DocumentHash string            `json:"document_hash,omitempty"`
	ScoreTotal   *int              `json:"score_total,omitempty"`
	Cached       bool              `json:"cached"`
	Providers    []string          `json:"providers_used"`
	RetryCounts  map[string]int    `json:"retry_counts"`
	Steps        map[string]string `json:"steps"`
}
