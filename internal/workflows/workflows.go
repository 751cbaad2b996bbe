package workflows

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"validert/internal/activities"
	"validert/internal/providers"
	"validert/internal/storage"
)

const (
	QueryReportStatus = "status"

	StatusCompleted = storage.ReportCompleted
	StatusFailed    = storage.ReportFailed

	analyzeOperation = "analyze_report"
)

type providerState struct {
	disabledUntil map[int]time.Time
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}}
}

// ReportAnalysisWorkflow extracts a report, reuses a cached analysis when one exists
// for the same text, scoring model and prompt context, and otherwise asks the model
// providers in turn before scoring. Reports that cannot be scored end as failed and
// never carry a score.
func ReportAnalysisWorkflow(ctx workflow.Context, input ReportAnalysisInput) (string, error) {
	status := ReportStatus{
		ReportID:    input.ReportID,
		ReportPath:  input.ReportPath,
		CurrentStep: "init",
		Status:      storage.ReportProcessing,
		RetryCounts: map[string]int{},
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryReportStatus, func() (ReportStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	filename := input.Filename
	if filename == "" {
		filename = filepath.Base(input.ReportPath)
	}

	markStatus := func(st, reason, docHash string, score *int) {
		_ = workflow.ExecuteActivity(ctx, "UpdateReportStatusActivity", activities.UpdateReportStatusInput{
			ReportID:     input.ReportID,
			Filename:     filename,
			Status:       st,
			FailReason:   reason,
			DocumentHash: docHash,
			ScoreTotal:   score,
		}).Get(ctx, nil)
	}
	fail := func(reason string) (string, error) {
		status.Status = StatusFailed
		status.FailReason = reason
		status.ScoreTotal = nil
		status.Steps[status.CurrentStep] = "failed"
		markStatus(StatusFailed, reason, status.DocumentHash, nil)
		return StatusFailed, nil
	}
	complete := func(score *int) (string, error) {
		status.Status = StatusCompleted
		status.ScoreTotal = score
		status.Steps[status.CurrentStep] = "done"
		markStatus(StatusCompleted, "", status.DocumentHash, score)
		return StatusCompleted, nil
	}

	markStatus(storage.ReportProcessing, "", "", nil)

	status.CurrentStep = "extract_pages"
	status.Steps[status.CurrentStep] = "processing"
	var ex activities.ExtractPagesOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractPagesActivity", activities.ExtractPagesInput{ReportID: input.ReportID, ReportPath: input.ReportPath}).Get(ctx, &ex); err != nil {
		if isNoTextError(err) {
			return fail("no extractable text found (OCR not enabled)")
		}
		return "", err
	}
	status.DocumentHash = ex.DocumentHash
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "cache_lookup"
	status.Steps[status.CurrentStep] = "processing"
	var lookup activities.LookupAnalysisOutput
	if err := workflow.ExecuteActivity(ctx, "LookupAnalysisActivity", activities.LookupAnalysisInput{ReportID: input.ReportID, TextPath: ex.TextPath}).Get(ctx, &lookup); err != nil {
		return "", err
	}
	if lookup.Hit {
		status.Cached = true
		return complete(lookup.ScoreTotal)
	}
	status.Steps[status.CurrentStep] = "miss"

	status.CurrentStep = "analyze"
	status.Steps[status.CurrentStep] = "processing"
	state := newProviderState()
	analyzeIn := activities.AnalyzeReportInput{
		Operation:    analyzeOperation,
		ReportID:     input.ReportID,
		Filename:     filename,
		TextPath:     ex.TextPath,
		ReportSystem: input.ReportSystem,
		BuildingYear: input.BuildingYear,
	}
	analyzed, errType, err := callModelWithFailover(ctx, &state, defaultCount(input.LLMProviders), durationOrDefault(input.CooldownSeconds, 900), analyzeIn, status.RetryCounts)
	if err != nil {
		return fail(fmt.Sprintf("model providers exhausted (%s): %s", errType, firstLine(err.Error())))
	}
	status.Providers = append(status.Providers, analyzed.ProviderName+":"+analyzed.Model)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "process"
	status.Steps[status.CurrentStep] = "processing"
	var processed activities.ProcessAnalysisOutput
	if err := workflow.ExecuteActivity(ctx, "ProcessAnalysisActivity", activities.ProcessAnalysisInput{
		ReportID:   input.ReportID,
		Filename:   filename,
		Method:     ex.Method,
		TextPath:   ex.TextPath,
		OutputPath: analyzed.OutputPath,
	}).Get(ctx, &processed); err != nil {
		return "", err
	}
	if processed.Failed || processed.ScoreTotal == nil {
		reason := processed.FailReason
		if reason == "" {
			reason = "analysis produced no score"
		}
		return fail(reason)
	}
	return complete(processed.ScoreTotal)
}

// callModelWithFailover walks the providers round-robin. Quota errors disable a
// provider for the cooldown, rate and transient errors get a short backoff on the
// same provider, and an oversized prompt stops immediately since every provider
// would reject it.
func callModelWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.AnalyzeReportInput, retryCounts map[string]int) (activities.AnalyzeReportOutput, string, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		requestID := fmt.Sprintf("%s-%s-%d", input.Operation, input.ReportID, attempt)
		var out activities.AnalyzeReportOutput
		err := workflow.ExecuteActivity(actx, "AnalyzeReportActivity", input).Get(ctx, &out)
		if err == nil {
			if out.RequestID == "" {
				out.RequestID = requestID
			}
			_ = workflow.ExecuteActivity(ctx, "LogModelCallActivity", activities.LogModelCallInput{Operation: input.Operation, ReportID: input.ReportID, ProviderName: out.ProviderName, Model: out.Model, RequestID: out.RequestID, Status: "ok", PromptTokens: out.PromptTokens}).Get(ctx, nil)
			return out, "", nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogModelCallActivity", activities.LogModelCallInput{Operation: input.Operation, ReportID: input.ReportID, ProviderName: fmt.Sprintf("provider-%d", idx), RequestID: requestID, Status: "failed", ErrorType: string(errType)}).Get(ctx, nil)
		key := fmt.Sprintf("llm-%s-%d", input.Operation, idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				_ = workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				_ = workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			}
		case providers.ErrorContext:
			return activities.AnalyzeReportOutput{}, string(providers.ErrorContext), err
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all model providers exhausted")
	}
	return activities.AnalyzeReportOutput{}, string(providers.ClassifyError(lastErr)), lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

func isNoTextError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
