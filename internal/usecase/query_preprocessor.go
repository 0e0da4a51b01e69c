package usecase

import (
	"regexp"
	"strings"
)

// QueryPreprocessor turns a basket line's product name into a cross-retailer search query
type QueryPreprocessor struct {
	noise map[string]bool
}

var (
	// "1.5L", "500 g", "6 x 33 cl", "1,5 liter", "10 stuks"
	sizeQuantityPattern = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:x\s*\d+(?:[.,]\d+)?\s*)?(?:kg|kilo|g|gr|gram|mg|l|ltr|liter|cl|ml|st|stuks?)\b`)

	// "6-pack", "4 pak", "2 x", "per 3"
	packCountPattern = regexp.MustCompile(`(?i)\b\d+\s*[-\s]?(?:pack|pak|pk)\b|\b\d+\s*x\b|\bper\s+\d+\b`)

	// Percentages such as "0%" or "1,5% vet" carry no search value
	percentPattern = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\s*%`)

	orphanPunctuationPattern = regexp.MustCompile(`\s+[,\-;:/]+(\s+|$)|^[,\-;:/]+\s*|[,\-;:/]+\s*$`)
)

// defaultNoiseWords are house brands and promotion labels that pin a query to one retailer
var defaultNoiseWords = []string{
	"ah", "albert", "heijn", "jumbo", "dirk", "picnic", "g'woon", "huismerk",
	"bonus", "actie", "aanbieding", "voordeelverpakking", "voordeel", "nieuw",
	"multipack", "literpak",
}

// maxQueryLength bounds the generated query
const maxQueryLength = 100

// NewQueryPreprocessor creates a preprocessor; extra words are dropped in addition to the defaults
func NewQueryPreprocessor(extraNoise ...string) *QueryPreprocessor {
	noise := make(map[string]bool, len(defaultNoiseWords)+len(extraNoise))
	for _, w := range defaultNoiseWords {
		noise[w] = true
	}
	for _, w := range extraNoise {
		noise[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return &QueryPreprocessor{noise: noise}
}

// PreprocessQuery strips sizes, pack counts, percentages, house brands and promotion
// labels. Casing of the remaining words is kept. When nothing survives the
// trimmed input is returned unchanged.
func (p *QueryPreprocessor) PreprocessQuery(productName string) string {
	original := strings.TrimSpace(productName)
	if original == "" {
		return ""
	}

	cleaned := sizeQuantityPattern.ReplaceAllString(original, " ")
	cleaned = packCountPattern.ReplaceAllString(cleaned, " ")
	cleaned = percentPattern.ReplaceAllString(cleaned, " ")
	cleaned = p.removeNoiseWords(cleaned)
	cleaned = orphanPunctuationPattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(multiSpacePattern.ReplaceAllString(cleaned, " "))

	if cleaned == "" {
		return original
	}

	if len(cleaned) > maxQueryLength {
		cleaned = cleaned[:maxQueryLength]
		// cut at a word boundary when one is reasonably close
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > maxQueryLength/2 {
			cleaned = cleaned[:lastSpace]
		}
	}
	return cleaned
}

func (p *QueryPreprocessor) removeNoiseWords(s string) string {
	words := strings.Fields(s)
	kept := words[:0]
	for _, word := range words {
		if !p.noise[strings.ToLower(strings.Trim(word, ",.!?;:-\""))] {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " ")
}
