package risk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid risk classification config")

// Operator is the comparison applied by a field rule. The set is closed;
// decoding rejects anything else.
type Operator string

const (
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpIsNull         Operator = "is_null"
	OpIsNotNull      Operator = "is_not_null"
)

func knownOperator(op Operator) bool {
	switch op {
	case OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual, OpEqual, OpNotEqual, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

// Level maps a score threshold to a named risk level. Levels are matched in
// priority order, highest first.
type Level struct {
	Name           string  `json:"name" yaml:"name"`
	ScoreThreshold float64 `json:"score_threshold" yaml:"score_threshold"`
	Priority       int     `json:"priority" yaml:"priority"`
}

// FieldRule compares one incident field against a value. A rule with
// ForceLevel set bypasses numeric scoring entirely when it matches.
type FieldRule struct {
	FieldPath           string   `json:"field_path" yaml:"field_path"`
	Operator            Operator `json:"operator" yaml:"operator"`
	ComparisonValue     float64  `json:"comparison_value" yaml:"comparison_value"`
	BaseContribution    float64  `json:"base_contribution" yaml:"base_contribution"`
	PerUnitContribution *float64 `json:"per_unit_contribution,omitempty" yaml:"per_unit_contribution,omitempty"`
	MaxContribution     *float64 `json:"max_contribution,omitempty" yaml:"max_contribution,omitempty"`
	ForceLevel          string   `json:"force_level,omitempty" yaml:"force_level,omitempty"`
	Enabled             bool     `json:"enabled" yaml:"enabled"`
}

// KeywordRule scores substring hits over the incident's hazard texts.
type KeywordRule struct {
	Keywords        []string `json:"keywords" yaml:"keywords"`
	ScorePerMatch   float64  `json:"score_per_match" yaml:"score_per_match"`
	MaxContribution float64  `json:"max_contribution" yaml:"max_contribution"`
	Enabled         bool     `json:"enabled" yaml:"enabled"`
}

// QuantityThreshold is one step of the units-affected step function. Only
// the highest threshold at or below the incident's units applies.
type QuantityThreshold struct {
	Threshold         int64   `json:"threshold" yaml:"threshold"`
	ScoreContribution float64 `json:"score_contribution" yaml:"score_contribution"`
}

// Config is the full risk classification rule set. It is validated once at
// load/save time and treated as immutable afterwards; the classifier never
// revalidates.
type Config struct {
	Levels             []Level             `json:"risk_levels" yaml:"risk_levels"`
	FieldRules         []FieldRule         `json:"score_rules" yaml:"score_rules"`
	KeywordRules       []KeywordRule       `json:"keyword_rules" yaml:"keyword_rules"`
	QuantityThresholds []QuantityThreshold `json:"quantity_thresholds" yaml:"quantity_thresholds"`
	DefaultLevel       string              `json:"default_level" yaml:"default_level"`
	MaxTotalScore      float64             `json:"max_total_score" yaml:"max_total_score"`
}

// ValidationError aggregates every violation found in a config so callers
// can report them all at once.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d violation(s): %s", len(e.Violations), strings.Join(e.Violations, "; "))
}

// Validate checks the config invariants. A nil return means the config is
// safe for the classifier.
func (c *Config) Validate() error {
	var v []string

	if len(c.Levels) == 0 {
		v = append(v, "risk_levels must not be empty")
	}
	seen := map[string]bool{}
	for i, lvl := range c.Levels {
		name := strings.TrimSpace(lvl.Name)
		if name == "" {
			v = append(v, fmt.Sprintf("risk_levels[%d]: empty name", i))
			continue
		}
		if seen[name] {
			v = append(v, fmt.Sprintf("risk_levels[%d]: duplicate name %q", i, name))
		}
		seen[name] = true
	}

	// Thresholds must be non-increasing when walking priorities downward,
	// otherwise level mapping is not monotonic in score.
	ordered := c.levelsByPriority()
	for i := 1; i < len(ordered); i++ {
		if ordered[i].ScoreThreshold > ordered[i-1].ScoreThreshold {
			v = append(v, fmt.Sprintf("risk_levels: threshold of %q (%.3f) exceeds higher-priority %q (%.3f)",
				ordered[i].Name, ordered[i].ScoreThreshold, ordered[i-1].Name, ordered[i-1].ScoreThreshold))
		}
	}

	if c.DefaultLevel != "" && !seen[c.DefaultLevel] {
		v = append(v, fmt.Sprintf("default_level %q is not a declared risk level", c.DefaultLevel))
	}
	if c.MaxTotalScore < 0 {
		v = append(v, "max_total_score must not be negative")
	}

	for i, r := range c.FieldRules {
		if strings.TrimSpace(r.FieldPath) == "" {
			v = append(v, fmt.Sprintf("score_rules[%d]: empty field_path", i))
		}
		if !knownOperator(r.Operator) {
			v = append(v, fmt.Sprintf("score_rules[%d]: unknown operator %q", i, r.Operator))
		}
		if r.ForceLevel != "" && !seen[r.ForceLevel] {
			v = append(v, fmt.Sprintf("score_rules[%d]: force_level %q is not a declared risk level", i, r.ForceLevel))
		}
		if r.MaxContribution != nil && *r.MaxContribution < 0 {
			v = append(v, fmt.Sprintf("score_rules[%d]: max_contribution must not be negative", i))
		}
	}

	for i, r := range c.KeywordRules {
		if len(r.Keywords) == 0 {
			v = append(v, fmt.Sprintf("keyword_rules[%d]: keywords must not be empty", i))
		}
		for j, kw := range r.Keywords {
			if strings.TrimSpace(kw) == "" {
				v = append(v, fmt.Sprintf("keyword_rules[%d].keywords[%d]: empty keyword", i, j))
			}
		}
		if r.MaxContribution < 0 {
			v = append(v, fmt.Sprintf("keyword_rules[%d]: max_contribution must not be negative", i))
		}
	}

	seenThresholds := map[int64]bool{}
	for i, q := range c.QuantityThresholds {
		if q.Threshold < 0 {
			v = append(v, fmt.Sprintf("quantity_thresholds[%d]: threshold must not be negative", i))
		}
		if seenThresholds[q.Threshold] {
			v = append(v, fmt.Sprintf("quantity_thresholds[%d]: duplicate threshold %d", i, q.Threshold))
		}
		seenThresholds[q.Threshold] = true
	}

	if len(v) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, &ValidationError{Violations: v})
	}
	return nil
}

// maxScore returns the effective score ceiling.
func (c *Config) maxScore() float64 {
	if c.MaxTotalScore <= 0 {
		return 1.0
	}
	return c.MaxTotalScore
}

// levelsByPriority returns a copy of the levels sorted by priority
// descending. Declared order breaks priority ties.
func (c *Config) levelsByPriority() []Level {
	out := make([]Level, len(c.Levels))
	copy(out, c.Levels)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// ParseJSON strictly decodes and validates a config document. Unknown keys
// are rejected rather than silently ignored.
func ParseJSON(raw []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EncodeJSON serializes a config for storage. The caller is expected to
// have validated it.
func EncodeJSON(cfg *Config) ([]byte, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode risk config: %w", err)
	}
	return raw, nil
}

// ParseYAML strictly decodes and validates a config document.
func ParseYAML(raw []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
