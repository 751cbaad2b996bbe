package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"validert/internal/analysis"
	"validert/internal/cache"
	"validert/internal/document"
	"validert/internal/feedback"
	"validert/internal/grounding"
	"validert/internal/logger"
	"validert/internal/metrics"
	"validert/internal/models"
	"validert/internal/points"
	"validert/internal/prompts"
	"validert/internal/registry"
	"validert/internal/scoring"
	"validert/internal/util"
)

const (
	OutcomeCompleted = "completed"
	OutcomeCached    = "cached"
	OutcomeFailed    = "failed"
)

type Options struct {
	NumericRatioThreshold float64
	GroundingWindow       int
}

// Deps are the collaborators a Pipeline is built from. Store, Metrics and Logger are
// optional.
type Deps struct {
	Model    *registry.ScoringModel
	Context  prompts.Context
	Store    cache.Store
	Logger   *logger.Logger
	Metrics  *metrics.Observer
	Detector *points.Detector
	Options  Options
}

// Pipeline turns extracted report text plus raw model output into the detected
// points, the scoring result and the feedback overview. It holds no per-document
// state and is safe for concurrent use.
type Pipeline struct {
	model      *registry.ScoringModel
	context    prompts.Context
	store      cache.Store
	log        *logger.Logger
	metrics    *metrics.Observer
	tracer     trace.Tracer
	detector   *points.Detector
	grounder   *grounding.Grounder
	normalizer *scoring.Normalizer
	assembler  *feedback.Assembler
}

func New(d Deps) (*Pipeline, error) {
	if d.Model == nil {
		return nil, fmt.Errorf("new pipeline: %w: no scoring model", util.ErrInvalidScoringModel)
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Detector == nil {
		d.Detector = points.NewDetector(nil)
	}
	return &Pipeline{
		model:      d.Model,
		context:    d.Context,
		store:      d.Store,
		log:        d.Logger,
		metrics:    d.Metrics,
		tracer:     otel.Tracer("validert/pipeline"),
		detector:   d.Detector,
		grounder:   grounding.New(d.Options.GroundingWindow),
		normalizer: scoring.New(d.Model),
		assembler:  feedback.New(d.Model, feedback.Options{NumericRatioThreshold: d.Options.NumericRatioThreshold}),
	}, nil
}

type Input struct {
	ReportID       string
	SourceFilename string
	Method         string
	Text           string
	RawModelOutput string
}

type Result struct {
	Key            models.CacheKey              `json:"key"`
	DetectedPoints models.DetectedPointsPayload `json:"detected_points"`
	Scoring        models.ScoringResultPayload  `json:"scoring_result"`
	ModelOutput    analysis.ModelOutput         `json:"model_output"`
	Feedback       models.FeedbackPayload       `json:"feedback"`
	Grounding      grounding.Stats              `json:"grounding"`
	FromCache      bool                         `json:"from_cache"`
}

func (p *Pipeline) Model() *registry.ScoringModel { return p.model }

func (p *Pipeline) Context() prompts.Context { return p.context }

// Identity is the cache key for text under this pipeline's scoring model and prompt
// context.
func (p *Pipeline) Identity(text string) models.CacheKey {
	return feedback.Identity(text, p.model, p.context)
}

// Lookup returns the cached analysis for text, replayed into a full Result. A store
// error is reported, not treated as a miss.
func (p *Pipeline) Lookup(ctx context.Context, reportID, text string) (Result, bool, error) {
	if p.store == nil {
		return Result{}, false, nil
	}
	key := p.Identity(text)
	ctx, span := p.tracer.Start(ctx, "pipeline.lookup", trace.WithAttributes(
		attribute.String("document_hash", key.DocumentHash),
	))
	defer span.End()

	entry, ok, err := p.store.Get(ctx, key)
	p.metrics.CacheLookup(ok, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache lookup failed")
		return Result{}, false, fmt.Errorf("cache lookup: %w", err)
	}
	span.SetAttributes(attribute.Bool("hit", ok))
	if !ok {
		return Result{}, false, nil
	}
	res, err := p.Replay(reportID, entry)
	if err != nil {
		return Result{}, false, err
	}
	p.metrics.Analysis(OutcomeCached)
	return res, true, nil
}

// Replay rebuilds the feedback overview from a cache entry without touching the model
// or the detector.
func (p *Pipeline) Replay(reportID string, e models.CacheEntry) (Result, error) {
	res := Result{Key: e.CacheKey, FromCache: true}
	if err := json.Unmarshal(e.DetectedPoints, &res.DetectedPoints); err != nil {
		return Result{}, fmt.Errorf("replay detected points: %w", err)
	}
	if err := json.Unmarshal(e.ScoringResult, &res.Scoring); err != nil {
		return Result{}, fmt.Errorf("replay scoring result: %w", err)
	}
	out := analysis.Empty()
	if err := json.Unmarshal(e.ModelOutput, &out); err != nil {
		return Result{}, fmt.Errorf("replay model output: %w", err)
	}
	res.ModelOutput = out
	res.Feedback = p.assembler.Assemble(feedback.Input{
		ReportID: reportID,
		Points:   res.DetectedPoints,
		Output:   out,
		Scoring:  res.Scoring,
	})
	return res, nil
}

// Process runs all stages for one document and stores the result. Nothing is written
// to the cache unless every stage succeeded and a score was produced.
func (p *Pipeline) Process(ctx context.Context, in Input) (res Result, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.String("report_id", in.ReportID),
		attribute.String("source_filename", in.SourceFilename),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.metrics.Analysis(OutcomeFailed)
		} else {
			p.metrics.Analysis(OutcomeCompleted)
		}
		span.End()
	}()

	log := p.log.With("report_id", in.ReportID)
	res.Key = p.Identity(in.Text)

	start := time.Now()
	res.DetectedPoints = p.detector.Detect(points.Input{
		Text:           in.Text,
		SourceFilename: in.SourceFilename,
		Method:         in.Method,
	})
	p.metrics.ObserveStage("detect", time.Since(start))
	if len(res.DetectedPoints.Points) == 0 {
		log.Warn("no headings detected", "document_hash", res.Key.DocumentHash, "pages", res.DetectedPoints.Document.PageCount)
	}

	start = time.Now()
	out, err := analysis.Parse(in.RawModelOutput)
	p.metrics.ObserveStage("parse", time.Since(start))
	if err != nil {
		return Result{}, fmt.Errorf("parse model output: %w", err)
	}

	start = time.Now()
	res.Grounding = p.grounder.Ground(&out, document.Split(in.Text), res.DetectedPoints.Points)
	p.metrics.ObserveStage("ground", time.Since(start))
	if res.Grounding.Synthesized > 0 || res.Grounding.Placeholders > 0 {
		log.Debug("evidence synthesized", "synthesized", res.Grounding.Synthesized, "placeholders", res.Grounding.Placeholders)
	}

	start = time.Now()
	norm := p.normalizer.Normalize(&out, res.DetectedPoints)
	p.metrics.ObserveStage("normalize", time.Since(start))
	p.metrics.DeductionsDropped(norm.Dropped)
	if norm.Dropped > 0 {
		log.Warn("duplicate deductions dropped", "dropped", norm.Dropped, "aggregate_level", string(p.model.AggregateLevel))
	}
	if !norm.Payload.ScoreComputed {
		log.Warn("score left untouched", "unresolved_deductions", norm.Unresolved)
	}
	if norm.Payload.ScoreTotal == nil {
		return Result{}, fmt.Errorf("normalize %s: %w", res.Key.DocumentHash, util.ErrNoScore)
	}
	res.Scoring = norm.Payload
	res.ModelOutput = out

	start = time.Now()
	res.Feedback = p.assembler.Assemble(feedback.Input{
		ReportID: in.ReportID,
		Points:   res.DetectedPoints,
		Output:   out,
		Scoring:  res.Scoring,
	})
	p.metrics.ObserveStage("assemble", time.Since(start))

	if err := p.save(ctx, res); err != nil {
		return Result{}, err
	}
	log.Info("analysis processed",
		"document_hash", res.Key.DocumentHash,
		"points", len(res.DetectedPoints.Points),
		"score_total", *res.Scoring.ScoreTotal,
		"blockers", len(res.Scoring.Blockers),
	)
	return res, nil
}

// Entry serializes a result into its cache record.
func Entry(res Result) (models.CacheEntry, error) {
	pointsJSON, err := json.Marshal(res.DetectedPoints)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("marshal detected points: %w", err)
	}
	scoringJSON, err := json.Marshal(res.Scoring)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("marshal scoring result: %w", err)
	}
	outputJSON, err := json.Marshal(res.ModelOutput)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("marshal model output: %w", err)
	}
	return models.CacheEntry{
		CacheKey:       res.Key,
		DetectedPoints: pointsJSON,
		ScoringResult:  scoringJSON,
		ModelOutput:    outputJSON,
	}, nil
}

func (p *Pipeline) save(ctx context.Context, res Result) error {
	if p.store == nil {
		return nil
	}
	entry, err := Entry(res)
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() { p.metrics.ObserveStage("store", time.Since(start)) }()
	if err := p.store.Put(ctx, entry); err != nil {
		return fmt.Errorf("store analysis: %w", err)
	}
	return nil
}

// Failed reports whether err means the document cannot be scored at all, as opposed
// to an infrastructure problem worth retrying.
func Failed(err error) bool {
	return errors.Is(err, util.ErrNoScore) ||
		errors.Is(err, util.ErrNoExtractableText) ||
		errors.Is(err, analysis.ErrUnusableOutput)
}
