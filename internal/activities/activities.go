package activities

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"validert/internal/config"
	"validert/internal/extract"
	"validert/internal/logger"
	"validert/internal/models"
	"validert/internal/pipeline"
	"validert/internal/prompts"
	"validert/internal/providers"
	"validert/internal/storage"
	"validert/internal/util"
)

const (
	pagesFile          = "pages.txt"
	modelOutputFile    = "model_output.txt"
	detectedPointsFile = "detected_points.json"
	scoringResultFile  = "scoring_result.json"
	feedbackFile       = "feedback.json"
)

// ReportStore is the part of storage.ReportRepo the activities need.
type ReportStore interface {
	UpsertReport(ctx context.Context, rep models.Report) error
	UpdateStatus(ctx context.Context, reportID, status, failReason, documentHash string, score *int) error
}

type CallAuditor interface {
	Insert(ctx context.Context, rec storage.LLMCallRecord) error
}

type Deps struct {
	Reports   ReportStore
	Audit     CallAuditor
	Pipeline  *pipeline.Pipeline
	Providers *providers.Manager
	Logger    *logger.Logger
}

type Activities struct {
	cfg       config.Config
	reports   ReportStore
	audit     CallAuditor
	pipeline  *pipeline.Pipeline
	providers *providers.Manager
	log       *logger.Logger
}

func New(cfg config.Config, d Deps) (*Activities, error) {
	if d.Pipeline == nil {
		return nil, fmt.Errorf("activities need a pipeline")
	}
	if d.Providers == nil {
		pm, err := providers.NewManager(cfg)
		if err != nil {
			return nil, err
		}
		d.Providers = pm
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &Activities{
		cfg:       cfg,
		reports:   d.Reports,
		audit:     d.Audit,
		pipeline:  d.Pipeline,
		providers: d.Providers,
		log:       d.Logger,
	}, nil
}

func (a *Activities) reportDir(reportID string) string {
	return filepath.Join(a.cfg.DataOutRoot, "reports", reportID)
}

func (a *Activities) ExtractPagesActivity(ctx context.Context, in ExtractPagesInput) (ExtractPagesOutput, error) {
	_ = ctx
	res, err := extract.File(in.ReportPath)
	if err != nil {
		return ExtractPagesOutput{}, err
	}
	textPath := filepath.Join(a.reportDir(in.ReportID), pagesFile)
	if err := util.WriteTextAtomic(textPath, res.Text); err != nil {
		return ExtractPagesOutput{}, err
	}
	return ExtractPagesOutput{
		TextPath:     textPath,
		DocumentHash: util.SHA256HexString(res.Text),
		Pages:        res.Pages,
		Method:       res.Method,
	}, nil
}

func (a *Activities) LookupAnalysisActivity(ctx context.Context, in LookupAnalysisInput) (LookupAnalysisOutput, error) {
	text, err := readText(in.TextPath)
	if err != nil {
		return LookupAnalysisOutput{}, err
	}
	key := a.pipeline.Identity(text)
	out := LookupAnalysisOutput{
		DocumentHash:    key.DocumentHash,
		ScoringModelSHA: key.ScoringModelSHA,
		PipelineSHA:     key.PipelineSHA,
	}
	res, ok, err := a.pipeline.Lookup(ctx, in.ReportID, text)
	if err != nil {
		a.log.Warn("analysis cache lookup failed", "report_id", in.ReportID, "error", err)
		return out, nil
	}
	if !ok {
		return out, nil
	}
	if err := a.writeArtifacts(in.ReportID, res); err != nil {
		return LookupAnalysisOutput{}, err
	}
	out.Hit = true
	out.ScoreTotal = res.Scoring.ScoreTotal
	return out, nil
}

func (a *Activities) AnalyzeReportActivity(ctx context.Context, in AnalyzeReportInput) (AnalyzeReportOutput, error) {
	text, err := readText(in.TextPath)
	if err != nil {
		return AnalyzeReportOutput{}, err
	}
	prompt := prompts.BuildUserPrompt(a.pipeline.Context(), prompts.ReportMeta{
		Filename:     in.Filename,
		ReportSystem: in.ReportSystem,
		BuildingYear: in.BuildingYear,
	}, text, a.cfg.MaxPromptTokens, prompts.CountTokens)

	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)
	resp, info, err := provider.Generate(ctx, providers.GenerateRequest{
		Operation: in.Operation,
		ReportID:  in.ReportID,
		System:    "Svar kun med ett gyldig JSON-objekt.",
		Prompt:    prompt,
	})
	if err != nil {
		return AnalyzeReportOutput{}, fmt.Errorf("analyze via %s failed: %w", ref.Raw, providers.Classified(err))
	}
	outPath := filepath.Join(a.reportDir(in.ReportID), modelOutputFile)
	if err := util.WriteTextAtomic(outPath, resp.Text); err != nil {
		return AnalyzeReportOutput{}, err
	}
	return AnalyzeReportOutput{
		OutputPath:   outPath,
		ProviderName: info.Name,
		Model:        info.Model,
		RequestID:    resp.RequestID,
		PromptTokens: resp.PromptTokens,
	}, nil
}

func (a *Activities) ProcessAnalysisActivity(ctx context.Context, in ProcessAnalysisInput) (ProcessAnalysisOutput, error) {
	text, err := readText(in.TextPath)
	if err != nil {
		return ProcessAnalysisOutput{}, err
	}
	raw, err := readText(in.OutputPath)
	if err != nil {
		return ProcessAnalysisOutput{}, err
	}
	res, err := a.pipeline.Process(ctx, pipeline.Input{
		ReportID:       in.ReportID,
		SourceFilename: in.Filename,
		Method:         in.Method,
		Text:           text,
		RawModelOutput: raw,
	})
	if err != nil {
		if pipeline.Failed(err) {
			return ProcessAnalysisOutput{
				DocumentHash: util.SHA256HexString(text),
				Failed:       true,
				FailReason:   err.Error(),
			}, nil
		}
		return ProcessAnalysisOutput{}, err
	}
	if err := a.writeArtifacts(in.ReportID, res); err != nil {
		return ProcessAnalysisOutput{}, err
	}
	return ProcessAnalysisOutput{
		DocumentHash: res.Key.DocumentHash,
		ScoreTotal:   res.Scoring.ScoreTotal,
		Points:       len(res.DetectedPoints.Points),
		Blockers:     res.Scoring.Blockers,
	}, nil
}

func (a *Activities) UpdateReportStatusActivity(ctx context.Context, in UpdateReportStatusInput) error {
	if a.reports == nil {
		return nil
	}
	err := a.reports.UpdateStatus(ctx, in.ReportID, in.Status, in.FailReason, in.DocumentHash, in.ScoreTotal)
	if errors.Is(err, storage.ErrReportNotFound) {
		return a.reports.UpsertReport(ctx, models.Report{
			ReportID:     in.ReportID,
			Filename:     in.Filename,
			DocumentHash: in.DocumentHash,
			Status:       in.Status,
			FailReason:   in.FailReason,
			ScoreTotal:   in.ScoreTotal,
		})
	}
	return err
}

func (a *Activities) LogModelCallActivity(ctx context.Context, in LogModelCallInput) error {
	if a.audit == nil {
		return nil
	}
	if in.CallID == "" {
		in.CallID = uuid.NewString()
	}
	return a.audit.Insert(ctx, storage.LLMCallRecord{
		CallID:       in.CallID,
		Operation:    in.Operation,
		ReportID:     in.ReportID,
		ProviderName: in.ProviderName,
		Model:        in.Model,
		RequestID:    in.RequestID,
		Status:       in.Status,
		ErrorType:    in.ErrorType,
		PromptTokens: in.PromptTokens,
	})
}

func (a *Activities) writeArtifacts(reportID string, res pipeline.Result) error {
	base := a.reportDir(reportID)
	if err := util.WriteJSONAtomic(filepath.Join(base, detectedPointsFile), res.DetectedPoints); err != nil {
		return err
	}
	if err := util.WriteJSONAtomic(filepath.Join(base, scoringResultFile), res.Scoring); err != nil {
		return err
	}
	return util.WriteJSONAtomic(filepath.Join(base, feedbackFile), res.Feedback)
}

// FeedbackPath is where the feedback overview of a processed report is written.
func FeedbackPath(dataOutRoot, reportID string) string {
	return filepath.Join(dataOutRoot, "reports", reportID, feedbackFile)
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return string(b), nil
}
