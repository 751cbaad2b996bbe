package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ExtractPagesActivity)
	w.RegisterActivity(a.LookupAnalysisActivity)
	w.RegisterActivity(a.AnalyzeReportActivity)
	w.RegisterActivity(a.ProcessAnalysisActivity)
	w.RegisterActivity(a.UpdateReportStatusActivity)
	w.RegisterActivity(a.LogModelCallActivity)
}
