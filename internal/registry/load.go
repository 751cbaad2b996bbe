package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"validert/internal/models"
	"validert/internal/util"
)

type fileDoc struct {
	Model            string          `json:"model"`
	Version          json.RawMessage `json:"version"`
	UpdatedAt        string          `json:"updated_at"`
	Categories       []Category      `json:"categories"`
	ScoringMechanics mechanics       `json:"scoring_mechanics"`
	Rules            []Rule          `json:"rules"`
}

type mechanics struct {
	ScoreStart          int            `json:"score_start"`
	ScoreFloor          *int           `json:"score_floor"`
	ScoreCeiling        *int           `json:"score_ceiling"`
	BlockerCeiling      *int           `json:"blocker_ceiling"`
	AggregateLevel      string         `json:"aggregate_level"`
	DeductPerOccurrence *bool          `json:"deduct_per_occurrence"`
	CategoryCaps        map[string]int `json:"category_caps"`
}

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("scoring_model.json", strings.NewReader(scoringModelSchema)); err != nil {
		panic(fmt.Sprintf("load scoring model schema: %v", err))
	}
	return compiler.MustCompile("scoring_model.json")
}

// LoadFile reads a JSON or YAML (by extension) scoring model.
func LoadFile(path string) (*ScoringModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scoring model %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(raw)
	default:
		return Load(raw)
	}
}

// LoadYAML converts a YAML scoring model to JSON for validation. The hash is taken
// over the original YAML text.
func LoadYAML(raw []byte) (*ScoringModel, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", util.ErrInvalidScoringModel, err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: convert yaml: %v", util.ErrInvalidScoringModel, err)
	}
	return build(raw, js)
}

// Load parses and validates a JSON scoring model. Any parse or schema failure is
// fatal: a scoring model must never fall back to defaults.
func Load(raw []byte) (*ScoringModel, error) {
	return build(raw, raw)
}

func build(raw, js []byte) (*ScoringModel, error) {
	var generic any
	if err := json.Unmarshal(js, &generic); err != nil {
		return nil, fmt.Errorf("%w: parse json: %v", util.ErrInvalidScoringModel, err)
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidScoringModel, err)
	}
	var doc fileDoc
	dec := json.NewDecoder(bytes.NewReader(js))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", util.ErrInvalidScoringModel, err)
	}

	level, err := ParseAggregateLevel(doc.ScoringMechanics.AggregateLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidScoringModel, err)
	}

	m := &ScoringModel{
		Info: models.ScoringModelInfo{
			ModelID:   doc.Model,
			Version:   versionString(doc.Version),
			UpdatedAt: doc.UpdatedAt,
			SHA256:    util.SHA256Hex(raw),
		},
		AggregateLevel:      level,
		DeductPerOccurrence: true,
		ScoreStart:          doc.ScoringMechanics.ScoreStart,
		ScoreFloor:          0,
		ScoreCeiling:        doc.ScoringMechanics.ScoreStart,
		BlockerCeiling:      DefaultBlockerCeiling,
		categories:          make(map[string]Category, len(doc.Categories)),
		caps:                make(map[string]int, len(doc.Categories)),
		rules:               make(map[string]Rule, len(doc.Rules)),
		raw:                 string(raw),
	}
	mech := doc.ScoringMechanics
	if mech.ScoreFloor != nil {
		m.ScoreFloor = *mech.ScoreFloor
	}
	if mech.ScoreCeiling != nil {
		m.ScoreCeiling = *mech.ScoreCeiling
	}
	if mech.BlockerCeiling != nil {
		m.BlockerCeiling = *mech.BlockerCeiling
	}
	if mech.DeductPerOccurrence != nil {
		m.DeductPerOccurrence = *mech.DeductPerOccurrence
	}
	if m.ScoreFloor > m.ScoreCeiling {
		return nil, fmt.Errorf("%w: score_floor %d above score_ceiling %d", util.ErrInvalidScoringModel, m.ScoreFloor, m.ScoreCeiling)
	}

	for _, c := range doc.Categories {
		id := strings.TrimSpace(c.ID)
		if _, dup := m.categories[id]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", util.ErrInvalidScoringModel, id)
		}
		c.ID = id
		if c.Name == "" {
			c.Name = id
		}
		m.categories[id] = c
		m.CategoryOrder = append(m.CategoryOrder, id)
		if c.MaxDeduction != nil {
			m.caps[id] = *c.MaxDeduction
		}
	}
	for id, limit := range mech.CategoryCaps {
		if _, ok := m.categories[id]; !ok {
			return nil, fmt.Errorf("%w: cap for unknown category %q", util.ErrInvalidScoringModel, id)
		}
		m.caps[id] = limit
	}
	for _, r := range doc.Rules {
		r.ID = strings.TrimSpace(r.ID)
		if _, dup := m.rules[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule %q", util.ErrInvalidScoringModel, r.ID)
		}
		if r.Category == ImprovementBlocker {
			r.BlocksTopScore = true
		}
		m.rules[r.ID] = r
		m.ruleOrder = append(m.ruleOrder, r.ID)
	}
	return m, nil
}

func versionString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
