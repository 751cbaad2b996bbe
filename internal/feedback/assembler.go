package feedback

import (
	"validert/internal/analysis"
	"validert/internal/models"
	"validert/internal/prompts"
	"validert/internal/registry"
	"validert/internal/util"
)

const (
	StatusDeduction = "deduction"
	StatusImprove   = "improve"
	StatusOK        = "ok"
)

type Options struct {
	NumericRatioThreshold float64
}

type Assembler struct {
	model *registry.ScoringModel
	opts  Options
}

func New(model *registry.ScoringModel, opts Options) *Assembler {
	if opts.NumericRatioThreshold <= 0 {
		opts.NumericRatioThreshold = DefaultNumericRatioThreshold
	}
	return &Assembler{model: model, opts: opts}
}

type Input struct {
	ReportID string
	Points   models.DetectedPointsPayload
	Output   analysis.ModelOutput
	Scoring  models.ScoringResultPayload
}

// Identity is the cache key of an analysis: the extracted text, the scoring model
// text and the prompt context, each hashed. Live runs and cache replays must use it.
func Identity(text string, model *registry.ScoringModel, pipeline prompts.Context) models.CacheKey {
	return models.CacheKey{
		DocumentHash:    util.SHA256HexString(text),
		ScoringModelSHA: model.SHA256(),
		PipelineSHA:     pipeline.Hash(),
	}
}

type pointTally struct {
	byCategory map[string]int
	open       int
	rules      []string
	seenRules  map[string]struct{}
}

func (t *pointTally) rule(id string) {
	if id == "" {
		return
	}
	if _, ok := t.seenRules[id]; ok {
		return
	}
	t.seenRules[id] = struct{}{}
	t.rules = append(t.rules, id)
}

func (a *Assembler) Assemble(in Input) models.FeedbackPayload {
	mode, ratio := ChooseMode(in.Points.Points, a.opts.NumericRatioThreshold)
	ordered := orderPoints(in.Points.Points, mode)

	dedupeKey := "point_key"
	if mode == ModeNumeric {
		dedupeKey = "numeric_id"
	}

	tallies := map[string]*pointTally{}
	tally := func(label string) *pointTally {
		t, ok := tallies[label]
		if !ok {
			t = &pointTally{byCategory: map[string]int{}, seenRules: map[string]struct{}{}}
			tallies[label] = t
		}
		return t
	}
	for _, d := range in.Scoring.Deductions {
		t := tally(d.PointID)
		if d.CategoryID != "" {
			t.byCategory[d.CategoryID] += d.Points
		}
		t.rule(d.RuleID)
	}

	findings := []models.Finding{}
	for _, c := range in.Output.Findings {
		for _, is := range c.Issues {
			pointID := c.PointID
			if pointID == "" && len(is.Evidence) > 0 {
				pointID = is.Evidence[0].PointID
			}
			if !is.Resolved {
				t := tally(pointID)
				t.open++
				t.rule(is.RuleID)
			}
			f := models.Finding{
				ComponentID: c.ComponentID,
				PointID:     pointID,
				IssueID:     is.IssueID,
				RuleID:      is.RuleID,
				Title:       is.Title,
				Description: is.Description,
				Resolved:    is.Resolved,
				Evidence:    append([]models.Evidence{}, is.Evidence...),
			}
			if r, ok := a.model.Rule(is.RuleID); ok {
				f.ImprovementCategory = r.Category.Label()
				f.Consequence = r.Category.Consequence()
			}
			findings = append(findings, f)
		}
	}

	overview := make([]models.PointOverview, 0, len(ordered))
	claimed := map[string]struct{}{}
	for _, p := range ordered {
		if p.Kind != models.PointKindPoint && p.Kind != models.PointKindSubpoint {
			continue
		}
		po := models.PointOverview{
			DisplayIndex:  len(overview) + 1,
			PointKey:      p.PointKey,
			NativeLabel:   p.NativeLabel,
			NumericID:     p.NumericID,
			Kind:          p.Kind,
			Title:         p.Title,
			PageStart:     p.PageStart,
			PageEnd:       p.PageEnd,
			ConditionCode: p.ConditionCode,
			AnchorText:    p.AnchorText,
			Excerpt:       p.Excerpt,
			Status:        StatusOK,
			RuleIDs:       []string{},
		}
		if _, taken := claimed[p.NativeLabel]; !taken {
			claimed[p.NativeLabel] = struct{}{}
			if t, ok := tallies[p.NativeLabel]; ok {
				po.DeductionTotal = a.cappedTotal(t.byCategory)
				po.OpenIssues = t.open
				po.RuleIDs = append(po.RuleIDs, t.rules...)
			}
		}
		switch {
		case po.DeductionTotal > 0:
			po.Status = StatusDeduction
		case po.OpenIssues > 0:
			po.Status = StatusImprove
		}
		overview = append(overview, po)
	}

	drivers := make([]models.TopDriver, 0, len(in.Output.TopScoreDrivers))
	for _, d := range in.Output.TopScoreDrivers {
		drivers = append(drivers, models.TopDriver{
			RuleIDs:  append([]string{}, d.RuleIDs...),
			Title:    d.Title,
			Evidence: append([]models.Evidence{}, d.Evidence...),
		})
	}

	var total *int
	if in.Scoring.ScoreTotal != nil {
		v := *in.Scoring.ScoreTotal
		total = &v
	}
	return models.FeedbackPayload{
		Version:      models.PayloadVersion,
		ReportID:     in.ReportID,
		DocumentHash: in.Points.Document.DocumentHash,
		Ordering: models.Ordering{
			Mode:      mode,
			DedupeKey: dedupeKey,
			Note:      orderingNote(mode, ratio, a.opts.NumericRatioThreshold, len(in.Points.Points)),
		},
		Score: models.FeedbackScore{
			Total:              total,
			CategoryDeductions: append([]models.CategoryScore{}, in.Scoring.ScoreByCategory...),
			TopDrivers:         drivers,
		},
		PointsOverview: overview,
		Findings:       findings,
	}
}

func (a *Assembler) cappedTotal(byCategory map[string]int) int {
	total := 0
	for cat, sum := range byCategory {
		if limit, ok := a.model.Cap(cat); ok && sum > limit {
			sum = limit
		}
		total += sum
	}
	return total
}
