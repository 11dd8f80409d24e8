package engine

import (
	"regexp"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

const maxSymbolicPhrases = 5

type metaphorIndicator struct {
	kind    string
	pattern *regexp.Regexp
}

var metaphorIndicators = []metaphorIndicator{
	{"simile", regexp.MustCompile(`\b(like|as if|reminds me of|feels like|seems like|appears to be)\b`)},
	{"metaphor", regexp.MustCompile(`\b(is|are|becomes?|transforms? into|turns? into)\b.*\b(symbol|represents?|embodies|means)\b`)},
	{"symbolic", regexp.MustCompile(`\b(symbolic|symbolizes|represents|stands for|signifies)\b`)},
	{"archetypal", regexp.MustCompile(`\b(archetype|pattern|theme|motif|recurring)\b`)},
}

var symbolicPhrasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(crossing|stepping through|walking into|entering) the \w+\b`),
	regexp.MustCompile(`\b(burning|breaking|shattering|dissolving) the \w+\b`),
	regexp.MustCompile(`\b(finding|discovering|uncovering|revealing) the \w+\b`),
	regexp.MustCompile(`\b(building|creating|weaving|crafting) the \w+\b`),
	regexp.MustCompile(`\b(mirror|reflection|shadow|echo) of \w+\b`),
}

func (e *Extractor) extractSymbolic(lower string, words int) domain.SymbolicLanguage {
	extracted := []string{}
	categories := make(map[string][]string)

	for _, cat := range e.catalog.SymbolLibrary() {
		var matched []string
		for _, sym := range cat.Symbols {
			if sym.Pattern.MatchString(lower) {
				extracted = append(extracted, sym.Word)
				matched = append(matched, sym.Word)
			}
		}
		if len(matched) > 0 {
			categories[cat.Name] = matched
		}
	}

	metaphors := []string{}
	for _, ind := range metaphorIndicators {
		if ind.pattern.MatchString(lower) {
			metaphors = append(metaphors, ind.kind)
		}
	}

	phrases := []string{}
	for _, re := range symbolicPhrasePatterns {
		phrases = append(phrases, re.FindAllString(lower, -1)...)
	}
	if len(phrases) > maxSymbolicPhrases {
		phrases = phrases[:maxSymbolicPhrases]
	}

	density := float64(len(extracted)) / float64(max(words, 1)) * 100

	return domain.SymbolicLanguage{
		ExtractedSymbols: extracted,
		SymbolCategories: categories,
		MetaphorTypes:    metaphors,
		SymbolicDensity:  round(density, 2),
		SymbolicPhrases:  phrases,
	}
}
