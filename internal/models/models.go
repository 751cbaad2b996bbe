package models

import (
	"encoding/json"
	"time"
)

const PayloadVersion = "1.0"

type Report struct {
	ReportID     string    `json:"report_id"`
	Filename     string    `json:"filename"`
	DocumentHash string    `json:"document_hash,omitempty"`
	Status       string    `json:"status"`
	FailReason   string    `json:"fail_reason,omitempty"`
	ScoreTotal   *int      `json:"score_total,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	EvidenceSourceLocal   = "LOCAL"
	EvidenceSourceSummary = "SUMMARY"
)

// Evidence is a grounded (page, snippet) reference into the source text. Text is an
// input-only alias for Snippet that grounding folds away.
type Evidence struct {
	PointID       string `json:"point_id"`
	ConditionCode string `json:"condition_code"`
	Page          int    `json:"page"`
	Heading       string `json:"heading"`
	Source        string `json:"source"`
	Snippet       string `json:"snippet"`
	MatchExplain  string `json:"match_explain"`
	Text          string `json:"text,omitempty"`
}

type PointKind string

const (
	PointKindPoint    PointKind = "point"
	PointKindSubpoint PointKind = "subpoint"
)

type DetectedPoint struct {
	PointKey      string    `json:"point_key"`
	NativeLabel   string    `json:"native_label"`
	NumericID     string    `json:"numeric_id,omitempty"`
	Kind          PointKind `json:"kind"`
	Title         string    `json:"title"`
	PageStart     int       `json:"page_start"`
	PageEnd       int       `json:"page_end"`
	OrderInDoc    int       `json:"order_in_doc"`
	AnchorText    string    `json:"anchor_text"`
	SpanHash      string    `json:"span_hash"`
	Excerpt       string    `json:"excerpt"`
	ConditionCode string    `json:"condition_code,omitempty"`
}

type ExtractionMeta struct {
	Method       string `json:"method"`
	CharCount    int    `json:"char_count"`
	LineCount    int    `json:"line_count"`
	NoiseDropped int    `json:"noise_lines_dropped"`
}

type DocumentInfo struct {
	DocumentHash   string         `json:"document_hash"`
	SourceFilename string         `json:"source_filename"`
	PageCount      int            `json:"page_count"`
	Extraction     ExtractionMeta `json:"extraction"`
}

type DetectedPointsPayload struct {
	Version  string          `json:"version"`
	Document DocumentInfo    `json:"document"`
	Points   []DetectedPoint `json:"points"`
}

type ScoringModelInfo struct {
	ModelID   string `json:"model_id"`
	Version   string `json:"version"`
	UpdatedAt string `json:"updated_at,omitempty"`
	SHA256    string `json:"sha256"`
}

type CategoryScore struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Deduction    int    `json:"deduction"`
	MaxDeduction *int   `json:"max_deduction"`
}

type ScoredDeduction struct {
	PointID          string `json:"point_id"`
	ComponentID      string `json:"component_id"`
	RuleID           string `json:"rule_id"`
	CategoryID       string `json:"category_id"`
	Points           int    `json:"points"`
	EvidenceSpanHash string `json:"evidence_span_hash"`
	DedupKey         string `json:"dedup_key"`
}

// ScoringResultPayload carries a nil ScoreTotal when no score could be produced.
// Zero is a real score.
type ScoringResultPayload struct {
	DocumentHash    string            `json:"document_hash"`
	ScoreTotal      *int              `json:"score_total"`
	ScoreComputed   bool              `json:"score_computed"`
	ScoreByCategory []CategoryScore   `json:"score_by_category"`
	Deductions      []ScoredDeduction `json:"deductions"`
	Blockers        []string          `json:"blockers"`
	ScoringModel    ScoringModelInfo  `json:"scoring_model"`
}

type Ordering struct {
	Mode      string `json:"mode"`
	DedupeKey string `json:"dedupe_key"`
	Note      string `json:"note"`
}

type TopDriver struct {
	RuleIDs  []string   `json:"rule_ids"`
	Title    string     `json:"title"`
	Evidence []Evidence `json:"evidence"`
}

type FeedbackScore struct {
	Total              *int            `json:"total"`
	CategoryDeductions []CategoryScore `json:"category_deductions"`
	TopDrivers         []TopDriver     `json:"top_drivers"`
}

type PointOverview struct {
	DisplayIndex   int       `json:"display_index"`
	PointKey       string    `json:"point_key"`
	NativeLabel    string    `json:"native_label"`
	NumericID      string    `json:"numeric_id,omitempty"`
	Kind           PointKind `json:"kind"`
	Title          string    `json:"title"`
	PageStart      int       `json:"page_start"`
	PageEnd        int       `json:"page_end"`
	ConditionCode  string    `json:"condition_code,omitempty"`
	AnchorText     string    `json:"anchor_text"`
	Excerpt        string    `json:"excerpt"`
	Status         string    `json:"status"`
	DeductionTotal int       `json:"deduction_total"`
	OpenIssues     int       `json:"open_issues"`
	RuleIDs        []string  `json:"rule_ids"`
}

type Finding struct {
	ComponentID         string     `json:"component_id"`
	PointID             string     `json:"point_id"`
	IssueID             string     `json:"issue_id"`
	RuleID              string     `json:"rule_id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Resolved            bool       `json:"resolved"`
	ImprovementCategory string     `json:"improvement_category,omitempty"`
	Consequence         string     `json:"consequence,omitempty"`
	Evidence            []Evidence `json:"evidence"`
}

type FeedbackPayload struct {
	Version        string          `json:"version"`
	ReportID       string          `json:"report_id"`
	DocumentHash   string          `json:"document_hash"`
	Ordering       Ordering        `json:"ordering"`
	Score          FeedbackScore   `json:"score"`
	PointsOverview []PointOverview `json:"points_overview"`
	Findings       []Finding       `json:"findings"`
}

type CacheKey struct {
	DocumentHash    string `json:"document_hash"`
	ScoringModelSHA string `json:"scoring_model_sha"`
	PipelineSHA     string `json:"pipeline_sha"`
}

func (k CacheKey) String() string {
	return k.DocumentHash + ":" + k.ScoringModelSHA + ":" + k.PipelineSHA
}

type CacheEntry struct {
	CacheKey
	DetectedPoints json.RawMessage `json:"detected_points"`
	ScoringResult  json.RawMessage `json:"scoring_result"`
	ModelOutput    json.RawMessage `json:"model_output"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
