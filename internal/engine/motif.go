package engine

import (
	"math"
	"regexp"
	"slices"
	"sort"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

// LoopThreshold is how many past occurrences turn a motif into an active loop.
const LoopThreshold = 3

var motifPatterns = []namedPattern{
	{"abandonment", regexp.MustCompile(`\b(abandon|left|alone|desert|reject|isolat|forsak|betray)\b`)},
	{"betrayal", regexp.MustCompile(`\b(betray|trust|lie|deceiv|cheat|broken promise|dishonest|unfaithful)\b`)},
	{"perfectionism", regexp.MustCompile(`\b(perfect|flawless|never enough|not good enough|mistake|failure|inadequate)\b`)},
	{"control", regexp.MustCompile(`\b(control|manage|organize|plan|predict|certain|manipulat|dominat)\b`)},
	{"approval", regexp.MustCompile(`\b(approval|accept|like me|love me|validate|recognition|praise|acknowledgment)\b`)},
	{"scarcity", regexp.MustCompile(`\b(not enough|lack|scarce|limited|running out|shortage|insufficient)\b`)},
	{"worthiness", regexp.MustCompile(`\b(worthy|deserve|enough|valuable|matter|important|significant|valued)\b`)},
	{"safety", regexp.MustCompile(`\b(safe|secure|protected|danger|threat|risk|vulnerable|harm)\b`)},
	{"freedom", regexp.MustCompile(`\b(free|escape|trapped|cage|liberat|independ|autonomous|choice)\b`)},
	{"belonging", regexp.MustCompile(`\b(belong|fit in|outsider|different|home|family|community|included)\b`)},
	{"power", regexp.MustCompile(`\b(power|strength|weak|helpless|capable|competent|agency|influence)\b`)},
	{"identity", regexp.MustCompile(`\b(who am i|identity|self|authentic|real me|true self|persona)\b`)},
}

// MotifNames lists the tracked motifs in declaration order.
func MotifNames() []string {
	names := make([]string, len(motifPatterns))
	for i, p := range motifPatterns {
		names[i] = p.name
	}
	return names
}

// LoopStrength normalizes an occurrence count into [0,1].
func LoopStrength(count int) float64 {
	return math.Min(float64(count)/10, 1)
}

func detectMotifLoops(lower string, historical domain.MotifHistory) domain.MotifLoops {
	loops := domain.MotifLoops{
		CurrentMotifs:    []string{},
		ActiveLoops:      []string{},
		NewLoopsDetected: []string{},
		BrokenLoops:      []string{},
		LoopStrengths:    map[string]float64{},
	}

	for _, p := range motifPatterns {
		if p.pattern.MatchString(lower) {
			loops.CurrentMotifs = append(loops.CurrentMotifs, p.name)
		}
	}

	for _, motif := range loops.CurrentMotifs {
		if stat, ok := historical[motif]; ok && stat.Count >= LoopThreshold {
			loops.ActiveLoops = append(loops.ActiveLoops, motif)
			loops.LoopStrengths[motif] = LoopStrength(stat.Count)
		} else {
			loops.NewLoopsDetected = append(loops.NewLoopsDetected, motif)
		}
	}

	loops.BrokenLoops = brokenLoops(loops.CurrentMotifs, historical)

	if len(loops.CurrentMotifs) > 0 {
		total := 0.0
		for _, s := range loops.LoopStrengths {
			total += s
		}
		loops.LoopStrengthScore = round(total/float64(len(loops.CurrentMotifs)), 3)
	}
	return loops
}

// brokenLoops returns past loops missing from current: known motifs in
// declaration order, then any others alphabetically.
func brokenLoops(current []string, historical domain.MotifHistory) []string {
	broken := []string{}
	isBroken := func(name string) bool {
		stat, ok := historical[name]
		return ok && stat.Count >= LoopThreshold && !slices.Contains(current, name)
	}

	known := make(map[string]bool, len(motifPatterns))
	for _, p := range motifPatterns {
		known[p.name] = true
		if isBroken(p.name) {
			broken = append(broken, p.name)
		}
	}

	var extra []string
	for name := range historical {
		if !known[name] && isBroken(name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(broken, extra...)
}
