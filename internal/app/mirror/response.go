package mirror

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/mirror-agent/internal/archetype"
	"github.com/PabloGalante/mirror-agent/internal/domain"
	"github.com/PabloGalante/mirror-agent/internal/observability"
)

const (
	defaultSymbol  = "energy"
	defaultEmotion = "feeling"
)

// Responder renders the reply shown to the user for an analyzed turn.
type Responder struct {
	catalog *archetype.Catalog
	llm     domain.LLMClient
}

func NewResponder(catalog *archetype.Catalog, llm domain.LLMClient) *Responder {
	return &Responder{catalog: catalog, llm: llm}
}

// Template fills the primary archetype's response template and appends a
// notice for the first detected change.
func (r *Responder) Template(rec *domain.SignalRecord, change domain.ChangeResult) string {
	return r.archetypeResponse(rec) + changeNotice(change)
}

// Enhanced asks the LLM for a reply and falls back to Template when there is
// no LLM or the call fails.
func (r *Responder) Enhanced(ctx context.Context, message string, rc domain.ReflectionContext, rec *domain.SignalRecord, change domain.ChangeResult) string {
	if r.llm == nil {
		return r.Template(rec, change)
	}

	reply, err := r.llm.GenerateReply(ctx, message, rc)
	if err != nil || strings.TrimSpace(reply) == "" {
		observability.LoggerFromContext(ctx).Warn("llm reply failed, using template",
			"user_id", rc.UserID,
			"archetype", rc.Archetype,
			"error", err,
		)
		return r.Template(rec, change)
	}
	return reply
}

// ReflectionContext summarizes a turn for the LLM.
func (r *Responder) ReflectionContext(in TurnInput, rec *domain.SignalRecord, change domain.ChangeResult) domain.ReflectionContext {
	blend := rec.ArchetypeBlend
	rc := domain.ReflectionContext{
		UserID:          in.UserID,
		SessionID:       in.SessionID,
		UserName:        in.UserName,
		Archetype:       blend.Primary,
		Confidence:      blend.Confidence,
		Symbols:         rec.SymbolicLanguage.ExtractedSymbols,
		DominantEmotion: rec.EmotionalResonance.DominantEmotion,
		Valence:         rec.EmotionalResonance.Valence,
	}
	if a, ok := r.catalog.Get(blend.Primary); ok {
		rc.ConfidenceLanguage = a.LanguageFor(blend.Confidence)
		rc.CoreResonance = a.CoreResonance
		rc.Tone = a.Tone
		rc.SymbolicLanguage = a.SymbolicLanguage
	}
	if c, ok := change.PrimaryChange(); ok && change.ChangeDetected {
		rc.ChangeType = c.Type
	}
	return rc
}

func (r *Responder) archetypeResponse(rec *domain.SignalRecord) string {
	name := rec.ArchetypeBlend.Primary
	a, ok := r.catalog.Get(name)
	if !ok {
		return fmt.Sprintf("I sense the %s stirring in you.", name)
	}
	if a.ResponseTemplate == "" {
		return strings.TrimSpace(fmt.Sprintf("I sense the %s stirring in you. %s", name, a.LanguageFor(rec.ArchetypeBlend.Confidence)))
	}

	symbol := defaultSymbol
	if syms := rec.SymbolicLanguage.ExtractedSymbols; len(syms) > 0 {
		symbol = syms[0]
	}
	emotion := rec.EmotionalResonance.DominantEmotion
	if emotion == "" {
		emotion = defaultEmotion
	}

	return strings.NewReplacer(
		"{symbol}", symbol,
		"{emotion}", emotion,
		"{archetype}", name,
	).Replace(a.ResponseTemplate)
}

func changeNotice(change domain.ChangeResult) string {
	c, ok := change.PrimaryChange()
	if !change.ChangeDetected || !ok {
		return ""
	}

	switch c.Type {
	case domain.ChangeArchetypeShift:
		return fmt.Sprintf("\n\nSomething has shifted in you. %s I'm %.0f%% certain about this transformation.", c.Message, c.Confidence*100)
	case domain.ChangeLoopTransformation:
		return fmt.Sprintf("\n\nI notice a profound shift: %s. This feels like a significant breakthrough.", c.Message)
	case domain.ChangeBreakthroughMoment:
		return fmt.Sprintf("\n\nA Mirror Moment is emerging. %s What does this transformation feel like in your body?", c.Message)
	default:
		return "\n\n" + c.Message
	}
}
