package usecase

import (
	"strings"

	"github.com/boodschap/backend/internal/domain"
)

// RuleKind selects which product signal a health rule inspects
type RuleKind string

const (
	RuleKeyword  RuleKind = "keyword"  // substring of the lowercased name
	RuleCategory RuleKind = "category" // substring of the lowercased category
	RuleNutrient RuleKind = "nutrient" // threshold on a per-100g nutrition hint
)

// HealthRule is one predicate of the classifier's rule table
type HealthRule struct {
	Kind    RuleKind
	Pattern string
	Tag     domain.HealthTag

	// nutrient rules only
	Threshold float64
	Above     bool
}

// NutritionHints are optional per-100g values some retailers expose
type NutritionHints struct {
	SugarPer100g  *float64
	FiberPer100g  *float64
	SaltPer100g   *float64
	SatFatPer100g *float64
}

func (h *NutritionHints) value(nutrient string) (float64, bool) {
	if h == nil {
		return 0, false
	}
	var p *float64
	switch nutrient {
	case "sugar":
		p = h.SugarPer100g
	case "fiber":
		p = h.FiberPer100g
	case "salt":
		p = h.SaltPer100g
	case "saturated_fat":
		p = h.SatFatPer100g
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// HealthSignals are the product-level inputs of classification
type HealthSignals struct {
	Name      string
	Category  string
	Nutrition *NutritionHints
}

var unhealthyKeywords = []string{
	"chips", "chocolade", "chocolate", "cola", "frisdrank", "snoep", "snoepjes",
	"bier", "wine", "wijn", "candy", "koekjes", "cookies", "snoepgoed",
	"friet", "patat", "saus", "mayonaise", "pizza", "hamburger",
	"taart", "cake", "gebak", "ijs", "ice cream", "fris",
	"suiker", "sugar", "zoet", "sweet", "gefrituurd", "fried",
}

var healthyKeywords = []string{
	"groente", "fruit", "vegetable",
	"salade", "salad", "noten", "nuts", "walnoten", "almond",
	"volkoren", "whole grain", "wholegrain",
	"yoghurt", "kwark", "quark",
	"vis", "fish", "zalm", "salmon", "tonijn", "tuna",
	"kip", "chicken", "kalkoen", "turkey",
	"water", "thee", "tea", "koffie", "coffee",
	"peulvruchten", "bonen", "linzen", "legumes",
}

var unhealthyCategories = []string{
	"snoep", "chips", "frisdrank", "bier", "wijn", "koek", "candy", "snacks", "soft drinks",
}

var healthyCategories = []string{
	"groente", "fruit", "aardappel", "peulvruchten", "vegetables", "vis",
}

// DefaultHealthRules returns the built-in Dutch/English rule table
func DefaultHealthRules() []HealthRule {
	rules := make([]HealthRule, 0, len(unhealthyKeywords)+len(healthyKeywords)+16)
	for _, k := range unhealthyKeywords {
		rules = append(rules, HealthRule{Kind: RuleKeyword, Pattern: k, Tag: domain.HealthUnhealthy})
	}
	for _, c := range unhealthyCategories {
		rules = append(rules, HealthRule{Kind: RuleCategory, Pattern: c, Tag: domain.HealthUnhealthy})
	}
	rules = append(rules,
		HealthRule{Kind: RuleNutrient, Pattern: "sugar", Threshold: 22.5, Above: true, Tag: domain.HealthUnhealthy},
		HealthRule{Kind: RuleNutrient, Pattern: "saturated_fat", Threshold: 5, Above: true, Tag: domain.HealthUnhealthy},
		HealthRule{Kind: RuleNutrient, Pattern: "salt", Threshold: 1.5, Above: true, Tag: domain.HealthUnhealthy},
	)
	for _, k := range healthyKeywords {
		rules = append(rules, HealthRule{Kind: RuleKeyword, Pattern: k, Tag: domain.HealthHealthy})
	}
	for _, c := range healthyCategories {
		rules = append(rules, HealthRule{Kind: RuleCategory, Pattern: c, Tag: domain.HealthHealthy})
	}
	rules = append(rules,
		HealthRule{Kind: RuleNutrient, Pattern: "fiber", Threshold: 6, Above: true, Tag: domain.HealthHealthy},
	)
	return rules
}

// HealthClassifier assigns health tags from an ordered rule table.
// Rules are evaluated linearly; when healthy and unhealthy rules both match, unhealthy wins.
type HealthClassifier struct {
	rules []HealthRule
}

// NewHealthClassifier creates a classifier; a nil rule set uses DefaultHealthRules
func NewHealthClassifier(rules []HealthRule) *HealthClassifier {
	if rules == nil {
		rules = DefaultHealthRules()
	}
	normalized := make([]HealthRule, len(rules))
	for i, r := range rules {
		r.Pattern = strings.ToLower(strings.TrimSpace(r.Pattern))
		normalized[i] = r
	}
	return &HealthClassifier{rules: normalized}
}

// Classify never fails; unrecognized input is neutral
func (c *HealthClassifier) Classify(s HealthSignals) domain.HealthTag {
	name := strings.ToLower(s.Name)
	category := strings.ToLower(s.Category)

	healthy := false
	for _, r := range c.rules {
		if !r.matches(name, category, s.Nutrition) {
			continue
		}
		switch r.Tag {
		case domain.HealthUnhealthy:
			return domain.HealthUnhealthy
		case domain.HealthHealthy:
			healthy = true
		}
	}
	if healthy {
		return domain.HealthHealthy
	}
	return domain.HealthNeutral
}

// ClassifyName is a convenience for inputs that only carry a name
func (c *HealthClassifier) ClassifyName(name string) domain.HealthTag {
	return c.Classify(HealthSignals{Name: name})
}

func (r HealthRule) matches(name, category string, hints *NutritionHints) bool {
	if r.Pattern == "" {
		return false
	}
	switch r.Kind {
	case RuleKeyword:
		return strings.Contains(name, r.Pattern)
	case RuleCategory:
		return category != "" && strings.Contains(category, r.Pattern)
	case RuleNutrient:
		v, ok := hints.value(r.Pattern)
		if !ok {
			return false
		}
		if r.Above {
			return v > r.Threshold
		}
		return v < r.Threshold
	}
	return false
}
