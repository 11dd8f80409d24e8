package domain

// EmotionalResonance is signal 1.
type EmotionalResonance struct {
	Valence          float64            `json:"valence" firestore:"valence"`
	Arousal          float64            `json:"arousal" firestore:"arousal"`
	Certainty        float64            `json:"certainty" firestore:"certainty"`
	Intensity        float64            `json:"intensity" firestore:"intensity"`
	DominantEmotion  string             `json:"dominant_emotion" firestore:"dominant_emotion"`
	DetectedEmotions map[string]float64 `json:"detected_emotions" firestore:"detected_emotions"`
}

// SymbolicLanguage is signal 2.
type SymbolicLanguage struct {
	ExtractedSymbols []string            `json:"extracted_symbols" firestore:"extracted_symbols"`
	SymbolCategories map[string][]string `json:"symbol_categories" firestore:"symbol_categories"`
	MetaphorTypes    []string            `json:"metaphor_types" firestore:"metaphor_types"`
	SymbolicDensity  float64             `json:"symbolic_density" firestore:"symbolic_density"`
	SymbolicPhrases  []string            `json:"symbolic_phrases" firestore:"symbolic_phrases"`
}

type SymbolMatch struct {
	Matches int      `json:"matches" firestore:"matches"`
	Matched []string `json:"matched" firestore:"matched"`
}

type EmotionMatch struct {
	Score   float64  `json:"score" firestore:"score"`
	Matched []string `json:"matched" firestore:"matched"`
}

type LanguageMatch struct {
	Matches int `json:"matches" firestore:"matches"`
}

// MatchDetails explains how the primary archetype scored.
type MatchDetails struct {
	Symbols  *SymbolMatch   `json:"symbols,omitempty" firestore:"symbols,omitempty"`
	Emotions *EmotionMatch  `json:"emotions,omitempty" firestore:"emotions,omitempty"`
	Language *LanguageMatch `json:"language,omitempty" firestore:"language,omitempty"`
}

// ArchetypeBlend is signal 3. Secondary and Tertiary are empty when the
// candidate at that rank did not clear its threshold.
type ArchetypeBlend struct {
	Primary      string             `json:"primary" firestore:"primary"`
	Secondary    string             `json:"secondary,omitempty" firestore:"secondary"`
	Tertiary     string             `json:"tertiary,omitempty" firestore:"tertiary"`
	Confidence   float64            `json:"confidence" firestore:"confidence"`
	BlendScores  map[string]float64 `json:"blend_scores" firestore:"blend_scores"`
	MatchDetails MatchDetails       `json:"match_details" firestore:"match_details"`
}

// ProgressionAnalysis describes how narrative stages moved across recent turns.
type ProgressionAnalysis struct {
	Trend             string         `json:"trend,omitempty" firestore:"trend"`
	RecentStages      []string       `json:"recent_stages,omitempty" firestore:"recent_stages"`
	StageDistribution map[string]int `json:"stage_distribution,omitempty" firestore:"stage_distribution"`
}

// NarrativePosition is signal 4. JourneyConfidence and StageConfidence are
// the raw match counts of the winning phase and stage.
type NarrativePosition struct {
	Stage                string              `json:"stage" firestore:"stage"`
	HeroJourneyPhase     string              `json:"hero_journey_phase" firestore:"hero_journey_phase"`
	TransformationMarker bool                `json:"transformation_marker" firestore:"transformation_marker"`
	JourneyConfidence    float64             `json:"journey_confidence" firestore:"journey_confidence"`
	StageConfidence      float64             `json:"stage_confidence" firestore:"stage_confidence"`
	ProgressionAnalysis  ProgressionAnalysis `json:"progression_analysis" firestore:"progression_analysis"`
}

// MotifLoops is signal 5.
type MotifLoops struct {
	CurrentMotifs     []string           `json:"current_motifs" firestore:"current_motifs"`
	ActiveLoops       []string           `json:"active_loops" firestore:"active_loops"`
	NewLoopsDetected  []string           `json:"new_loops_detected" firestore:"new_loops_detected"`
	BrokenLoops       []string           `json:"broken_loops" firestore:"broken_loops"`
	LoopStrengths     map[string]float64 `json:"loop_strengths" firestore:"loop_strengths"`
	LoopStrengthScore float64            `json:"loop_strength_score" firestore:"loop_strength_score"`
}

// SignalRecord is the full analysis of one message. It is not mutated after
// the extractor returns it.
type SignalRecord struct {
	EmotionalResonance EmotionalResonance `json:"signal_1_emotional_resonance" firestore:"signal_1_emotional_resonance"`
	SymbolicLanguage   SymbolicLanguage   `json:"signal_2_symbolic_language" firestore:"signal_2_symbolic_language"`
	ArchetypeBlend     ArchetypeBlend     `json:"signal_3_archetype_blend" firestore:"signal_3_archetype_blend"`
	NarrativePosition  NarrativePosition  `json:"signal_4_narrative_position" firestore:"signal_4_narrative_position"`
	MotifLoops         MotifLoops         `json:"signal_5_motif_loops" firestore:"signal_5_motif_loops"`

	PrimaryArchetype string    `json:"primary_archetype" firestore:"primary_archetype"`
	ConfidenceScore  float64   `json:"confidence_score" firestore:"confidence_score"`
	Timestamp        Timestamp `json:"timestamp" firestore:"timestamp"`
}

// ConfidenceScores is the ConfidenceCalculator output.
type ConfidenceScores struct {
	Overall    float64 `json:"overall" firestore:"overall"`
	Archetype  float64 `json:"archetype" firestore:"archetype"`
	Symbol     float64 `json:"symbol" firestore:"symbol"`
	Emotion    float64 `json:"emotion" firestore:"emotion"`
	Narrative  float64 `json:"narrative" firestore:"narrative"`
	Historical float64 `json:"historical" firestore:"historical"`
}

// MotifStat is one entry of a MotifHistory.
type MotifStat struct {
	Count    int       `json:"count"`
	LastSeen Timestamp `json:"last_seen"`
}

// MotifHistory maps motif name to how often it appeared in recent signals.
type MotifHistory map[string]MotifStat

// ContextSignals carries optional cross-turn context into the extractor.
type ContextSignals struct {
	HistoricalMotifs MotifHistory `json:"historical_motifs,omitempty"`
}
