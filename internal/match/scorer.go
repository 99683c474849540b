package match

import (
	"fmt"
	"strings"
)

// Target is the recall-side input to scoring: the products being monitored
// and the manufacturer behind them.
type Target struct {
	Manufacturer string
	Products     []TargetProduct
}

type TargetProduct struct {
	Name        string
	ModelNumber string
}

const (
	weightModelExact     = 0.35
	weightModelSubstring = 0.25
	weightNameSimilarity = 0.30
	weightKeywordOverlap = 0.20
	weightManufacturer   = 0.10
	weightHasPrice       = 0.05

	nameSimilarityFloor = 0.5
	keywordOverlapFloor = 0.2

	lowPriceBound   = 5.0
	lowPricePenalty = 0.8
)

// Scorer rates how likely a marketplace listing is to be an instance of a
// recalled product. Scoring is a weighted additive heuristic; the returned
// reasons list every contributing rule in evaluation order.
type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

// Score returns a value in [0,1] plus the audit trail of contributing
// rules. It is pure and never errors; empty listing text simply scores 0.
func (s *Scorer) Score(target Target, title, description string, price *float64) (float64, []string) {
	text := normalizeText(title + " " + description)
	compact := compactAlnum(title + " " + description)
	listingTokens := tokenSet(tokenize(title + " " + description))

	score := 0.0
	var reasons []string

	// Model numbers are the strongest signal. The first verbatim hit wins
	// and suppresses weaker model checks.
	modelMatched := false
	for _, p := range target.Products {
		model := strings.TrimSpace(p.ModelNumber)
		if model == "" {
			continue
		}
		if containsWord(text, normalizeText(model)) {
			score += weightModelExact
			reasons = append(reasons, fmt.Sprintf("Model number match: %s", model))
			modelMatched = true
			break
		}
	}
	if !modelMatched {
		for _, p := range target.Products {
			model := compactAlnum(p.ModelNumber)
			if model == "" {
				continue
			}
			if strings.Contains(compact, model) {
				score += weightModelSubstring
				reasons = append(reasons, fmt.Sprintf("Partial model number match: %s", p.ModelNumber))
				break
			}
		}
	}

	if ratio := s.bestNameSimilarity(target, title); ratio > nameSimilarityFloor {
		score += ratio * weightNameSimilarity
		reasons = append(reasons, fmt.Sprintf("Product name similarity: %.2f", ratio))
	}

	if overlap := s.bestKeywordOverlap(target, listingTokens); overlap > keywordOverlapFloor {
		score += overlap * weightKeywordOverlap
		reasons = append(reasons, fmt.Sprintf("Keyword overlap: %.2f", overlap))
	}

	if m := normalizeText(target.Manufacturer); m != "" && strings.Contains(text, m) {
		score += weightManufacturer
		reasons = append(reasons, fmt.Sprintf("Manufacturer match: %s", target.Manufacturer))
	}

	if price != nil && *price > 0 {
		if *price < lowPriceBound {
			score *= lowPricePenalty
			reasons = append(reasons, fmt.Sprintf("Suspiciously low price: %.2f", *price))
		}
		score += weightHasPrice
		reasons = append(reasons, "Listing has a price")
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}

func (s *Scorer) bestNameSimilarity(target Target, title string) float64 {
	normTitle := normalizeText(title)
	best := 0.0
	for _, p := range target.Products {
		if name := normalizeText(p.Name); name != "" {
			if ratio := similarityRatio(name, normTitle); ratio > best {
				best = ratio
			}
		}
	}
	return best
}

func (s *Scorer) bestKeywordOverlap(target Target, listingTokens map[string]bool) float64 {
	best := 0.0
	for _, p := range target.Products {
		targetTokens := tokenSet(tokenize(p.Name))
		if overlap := jaccard(targetTokens, listingTokens); overlap > best {
			best = overlap
		}
	}
	return best
}

// containsWord reports whether needle occurs in haystack on word
// boundaries. Both inputs must already be normalized.
func containsWord(haystack, needle string) bool {
	if needle == "" || haystack == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(needle)
		startOK := start == 0 || haystack[start-1] == ' '
		endOK := end == len(haystack) || haystack[end] == ' '
		if startOK && endOK {
			return true
		}
		idx = start + 1
		if idx >= len(haystack) {
			return false
		}
	}
}
