package engine

import (
	"math"
	"regexp"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

type emotionRule struct {
	name    string
	pattern *regexp.Regexp
	weight  float64
}

var emotionRules = []emotionRule{
	{"joy", regexp.MustCompile(`\b(joy|happy|delight|elated|bliss|euphoria|celebration|glad|cheerful)\b`), 1.2},
	{"sadness", regexp.MustCompile(`\b(sad|grief|sorrow|mourn|loss|tears|heartbreak|melancholy|despair)\b`), 1.0},
	{"anger", regexp.MustCompile(`\b(angry|rage|fury|irritated|frustrated|mad|livid|outraged)\b`), 1.3},
	{"fear", regexp.MustCompile(`\b(fear|afraid|scared|terror|anxiety|worried|panic|dread)\b`), 1.1},
	{"love", regexp.MustCompile(`\b(love|adore|cherish|devotion|affection|tender|caring|compassion)\b`), 1.5},
	{"curiosity", regexp.MustCompile(`\b(curious|wonder|question|explore|seek|discover|intrigued)\b`), 1.0},
	{"peace", regexp.MustCompile(`\b(peace|calm|serene|tranquil|still|quiet|centered|balanced)\b`), 1.0},
	{"excitement", regexp.MustCompile(`\b(excited|thrilled|enthusiastic|energized|passionate|exhilarated)\b`), 1.2},
	{"longing", regexp.MustCompile(`\b(longing|yearning|craving|desire|aching|missing|wanting)\b`), 1.1},
	{"shame", regexp.MustCompile(`\b(shame|ashamed|embarrassed|guilty|humiliated|worthless)\b`), 0.9},
	{"hope", regexp.MustCompile(`\b(hope|hopeful|optimistic|faith|trust|belief|possibility)\b`), 1.3},
	{"confusion", regexp.MustCompile(`\b(confused|lost|unclear|uncertain|bewildered|puzzled)\b`), 0.8},
}

// longing counts toward intensity but neither side of valence.
var (
	positiveEmotions    = []string{"joy", "love", "peace", "excitement", "hope", "curiosity"}
	negativeEmotions    = []string{"sadness", "anger", "fear", "shame", "confusion"}
	highArousalEmotions = []string{"anger", "excitement", "fear"}
)

func analyzeEmotion(lower string, words int) domain.EmotionalResonance {
	detected := make(map[string]float64)
	total := 0.0
	dominant := "neutral"
	best := 0.0

	for _, rule := range emotionRules {
		n := countMatches(rule.pattern, lower)
		if n == 0 {
			continue
		}
		score := float64(n) * rule.weight
		detected[rule.name] = score
		total += score
		if score > best {
			best = score
			dominant = rule.name
		}
	}

	sum := func(names []string) float64 {
		s := 0.0
		for _, n := range names {
			s += detected[n]
		}
		return s
	}

	positive := sum(positiveEmotions)
	negative := sum(negativeEmotions)
	valence := 0.0
	if positive+negative > 0 {
		valence = (positive - negative) / (positive + negative)
	}

	wc := float64(max(words, 1))
	arousal := math.Min(sum(highArousalEmotions)/(wc*0.1), 1)
	certainty := math.Min(total/(wc*0.2), 1)

	rounded := make(map[string]float64, len(detected))
	for k, v := range detected {
		rounded[k] = round(v, 2)
	}

	return domain.EmotionalResonance{
		Valence:          round(valence, 3),
		Arousal:          round(arousal, 3),
		Certainty:        round(certainty, 3),
		Intensity:        round(total/wc, 3),
		DominantEmotion:  dominant,
		DetectedEmotions: rounded,
	}
}
