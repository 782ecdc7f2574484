package receipt

import (
	_ "embed"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// KeywordRule maps vendor keywords to a category
type KeywordRule struct {
	Category   Category `yaml:"category"`
	Confidence float64  `yaml:"confidence"`
	Keywords   []string `yaml:"keywords"`
}

// AmountHeuristics bias unmatched vendors by receipt size
type AmountHeuristics struct {
	EquipmentAmount         float64 `yaml:"equipment_amount"`
	EquipmentConfidence     float64 `yaml:"equipment_confidence"`
	SubcontractorAmount     float64 `yaml:"subcontractor_amount"`
	SubcontractorConfidence float64 `yaml:"subcontractor_confidence"`
	DefaultConfidence       float64 `yaml:"default_confidence"`
}

// DefaultAmountHeuristics returns the fallback used when no keyword matches
func DefaultAmountHeuristics() AmountHeuristics {
	return AmountHeuristics{
		EquipmentAmount:         2500,
		EquipmentConfidence:     0.4,
		SubcontractorAmount:     10000,
		SubcontractorConfidence: 0.45,
		DefaultConfidence:       0.35,
	}
}

// ParseKeywordRules decodes a YAML keyword table
func ParseKeywordRules(data []byte) ([]KeywordRule, error) {
	var rules []KeywordRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing keyword rules: %w", err)
	}
	for i, rule := range rules {
		if !rule.Category.Valid() {
			return nil, fmt.Errorf("keyword rule %d: unknown category %q", i, rule.Category)
		}
		if rule.Confidence <= 0 || rule.Confidence > 1 {
			return nil, fmt.Errorf("keyword rule %d: confidence %v out of range", i, rule.Confidence)
		}
	}
	return rules, nil
}

// DefaultKeywordRules returns the built-in vendor keyword table
func DefaultKeywordRules() []KeywordRule {
	rules, err := ParseKeywordRules(defaultKeywordsYAML)
	if err != nil {
		panic(err)
	}
	return rules
}

type compiledKeyword struct {
	keyword    string
	category   Category
	confidence float64
}

// Categorizer assigns a category to a vendor using a keyword table and amount heuristics.
// It is immutable after construction and safe for concurrent use.
type Categorizer struct {
	keywords   []compiledKeyword
	heuristics AmountHeuristics
}

// NewCategorizer builds a categorizer from keyword rules
func NewCategorizer(rules []KeywordRule, heuristics AmountHeuristics) *Categorizer {
	c := &Categorizer{heuristics: heuristics}
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			n := normalizeVendor(kw)
			if n == "" {
				continue
			}
			c.keywords = append(c.keywords, compiledKeyword{
				keyword:    n,
				category:   rule.Category,
				confidence: rule.Confidence,
			})
		}
	}
	return c
}

// NewDefaultCategorizer builds a categorizer from the built-in table
func NewDefaultCategorizer() *Categorizer {
	return NewCategorizer(DefaultKeywordRules(), DefaultAmountHeuristics())
}

// Categorize returns the category for a vendor and amount with a confidence in [0,1].
// It always returns a valid category.
func (c *Categorizer) Categorize(vendor string, amount decimal.Decimal) (Category, float64) {
	name := normalizeVendor(vendor)

	var best *compiledKeyword
	for i := range c.keywords {
		kw := &c.keywords[i]
		if !matchesKeyword(name, kw.keyword) {
			continue
		}
		// Longest keyword is the most specific; earlier rules win ties
		if best == nil || len(kw.keyword) > len(best.keyword) {
			best = kw
		}
	}
	if best != nil {
		return best.category, best.confidence
	}

	abs := amount.Abs()
	switch {
	case c.heuristics.SubcontractorAmount > 0 && abs.GreaterThanOrEqual(decimal.NewFromFloat(c.heuristics.SubcontractorAmount)):
		return CategorySubcontractors, c.heuristics.SubcontractorConfidence
	case c.heuristics.EquipmentAmount > 0 && abs.GreaterThanOrEqual(decimal.NewFromFloat(c.heuristics.EquipmentAmount)):
		return CategoryEquipment, c.heuristics.EquipmentConfidence
	}
	return CategoryMisc, c.heuristics.DefaultConfidence
}
