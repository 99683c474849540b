package risk

import "strings"

// Incident is any record the classifier can score. Field resolves a logical
// field path to a numeric value; unknown paths report ok=false and the rule
// simply does not match.
type Incident interface {
	Field(path string) (float64, bool)
	HazardTexts() []string
}

// Classify turns an incident into a risk level and a bounded score using a
// pre-validated config. It is deterministic and never errors: malformed
// rules cannot reach it, and missing incident fields degrade to non-matches.
//
// Force-level rules are checked first, in declared config order; the first
// match wins and numeric scoring is skipped. Ordering among competing
// force-level rules is a configuration responsibility, not the engine's.
func Classify(in Incident, cfg *Config) (string, float64) {
	if cfg == nil {
		return "", 0
	}

	for _, rule := range cfg.FieldRules {
		if !rule.Enabled || rule.ForceLevel == "" {
			continue
		}
		if ruleMatches(in, rule) {
			return rule.ForceLevel, 0.0
		}
	}

	score := 0.0
	for _, rule := range cfg.FieldRules {
		if !rule.Enabled || rule.ForceLevel != "" {
			continue
		}
		if !ruleMatches(in, rule) {
			continue
		}
		contribution := rule.BaseContribution
		if rule.PerUnitContribution != nil {
			if value, ok := in.Field(rule.FieldPath); ok {
				contribution += *rule.PerUnitContribution * value
			}
		}
		if rule.MaxContribution != nil && contribution > *rule.MaxContribution {
			contribution = *rule.MaxContribution
		}
		score += contribution
	}

	score += keywordScore(in, cfg)
	score += quantityScore(in, cfg)

	if max := cfg.maxScore(); score > max {
		score = max
	}

	for _, lvl := range cfg.levelsByPriority() {
		if lvl.ScoreThreshold <= score {
			return lvl.Name, score
		}
	}
	return cfg.DefaultLevel, score
}

func ruleMatches(in Incident, rule FieldRule) bool {
	value, ok := in.Field(rule.FieldPath)
	switch rule.Operator {
	case OpIsNull:
		return !ok
	case OpIsNotNull:
		return ok
	}
	if !ok {
		return false
	}
	switch rule.Operator {
	case OpGreater:
		return value > rule.ComparisonValue
	case OpGreaterOrEqual:
		return value >= rule.ComparisonValue
	case OpLess:
		return value < rule.ComparisonValue
	case OpLessOrEqual:
		return value <= rule.ComparisonValue
	case OpEqual:
		return value == rule.ComparisonValue
	case OpNotEqual:
		return value != rule.ComparisonValue
	}
	return false
}

// keywordScore counts, per rule, how many of its keywords occur in the
// case-folded hazard text. Each keyword counts once regardless of how often
// it repeats.
func keywordScore(in Incident, cfg *Config) float64 {
	if len(cfg.KeywordRules) == 0 {
		return 0
	}
	haystack := strings.ToLower(strings.Join(in.HazardTexts(), " "))
	if haystack == "" {
		return 0
	}
	total := 0.0
	for _, rule := range cfg.KeywordRules {
		if !rule.Enabled {
			continue
		}
		hits := 0
		for _, kw := range rule.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(kw)) {
				hits++
			}
		}
		contribution := float64(hits) * rule.ScorePerMatch
		if rule.MaxContribution > 0 && contribution > rule.MaxContribution {
			contribution = rule.MaxContribution
		}
		total += contribution
	}
	return total
}

// quantityScore applies the highest threshold at or below units_affected.
// Thresholds are a step function, not additive bands.
func quantityScore(in Incident, cfg *Config) float64 {
	if len(cfg.QuantityThresholds) == 0 {
		return 0
	}
	units, ok := in.Field("units_affected")
	if !ok {
		return 0
	}
	best := int64(-1)
	contribution := 0.0
	for _, q := range cfg.QuantityThresholds {
		if float64(q.Threshold) <= units && q.Threshold > best {
			best = q.Threshold
			contribution = q.ScoreContribution
		}
	}
	if best < 0 {
		return 0
	}
	return contribution
}
