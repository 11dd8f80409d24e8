package domain

import "encoding/json"

type ChangeType string

const (
	ChangeArchetypeShift     ChangeType = "archetype_shift"
	ChangeConfidenceShift    ChangeType = "confidence_shift"
	ChangeLoopTransformation ChangeType = "loop_transformation"
	ChangeBreakthroughMoment ChangeType = "breakthrough_moment"
)

// ReasonNoPreviousData is reported when there is no stored profile to compare against.
const ReasonNoPreviousData = "no_previous_data"

// Change is one fired change rule. Only the fields relevant to Type are set.
type Change struct {
	Type              ChangeType `json:"type" firestore:"type"`
	IsMirrorMoment    bool       `json:"is_mirror_moment" firestore:"is_mirror_moment"`
	Message           string     `json:"message" firestore:"message"`
	SuggestedPractice string     `json:"suggested_practice,omitempty" firestore:"suggested_practice"`

	// archetype_shift
	FromArchetype string  `json:"from_archetype,omitempty" firestore:"from_archetype"`
	ToArchetype   string  `json:"to_archetype,omitempty" firestore:"to_archetype"`
	Confidence    float64 `json:"confidence,omitempty" firestore:"confidence"`
	Significance  float64 `json:"significance,omitempty" firestore:"significance"`

	// confidence_shift
	Direction         string  `json:"direction,omitempty" firestore:"direction"`
	Delta             float64 `json:"delta,omitempty" firestore:"delta"`
	CurrentConfidence float64 `json:"current_confidence,omitempty" firestore:"current_confidence"`

	// loop_transformation
	BrokenLoops []string `json:"broken_loops,omitempty" firestore:"broken_loops"`

	// breakthrough_moment
	JourneyPhase string `json:"journey_phase,omitempty" firestore:"journey_phase"`
}

// ChangeResult is the ChangeDetector output.
type ChangeResult struct {
	ChangeDetected        bool     `json:"change_detected"`
	Reason                string   `json:"reason,omitempty"`
	Changes               []Change `json:"changes"`
	MirrorMomentTriggered bool     `json:"mirror_moment_triggered"`
}

// PrimaryChange returns the first fired change, if any.
func (r ChangeResult) PrimaryChange() (Change, bool) {
	if len(r.Changes) == 0 {
		return Change{}, false
	}
	return r.Changes[0], true
}

// MirrorMomentChange returns the first change flagged as a mirror moment.
func (r ChangeResult) MirrorMomentChange() (Change, bool) {
	for _, c := range r.Changes {
		if c.IsMirrorMoment {
			return c, true
		}
	}
	return Change{}, false
}

// MarshalJSON renders the short-circuit result as {change_detected, reason} only.
func (r ChangeResult) MarshalJSON() ([]byte, error) {
	if r.Reason != "" {
		return json.Marshal(struct {
			ChangeDetected bool   `json:"change_detected"`
			Reason         string `json:"reason"`
		}{r.ChangeDetected, r.Reason})
	}

	type plain ChangeResult
	p := plain(r)
	if p.Changes == nil {
		p.Changes = []Change{}
	}
	return json.Marshal(p)
}
