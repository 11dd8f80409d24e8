package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/mirror-agent/internal/app/mirror"
	"github.com/PabloGalante/mirror-agent/internal/app/moments"
	"github.com/PabloGalante/mirror-agent/internal/archetype"
	"github.com/PabloGalante/mirror-agent/internal/domain"
	"github.com/PabloGalante/mirror-agent/internal/observability"
)

const maxBodyBytes = 1 << 20

type Server struct {
	mirror  *mirror.Service
	moments *moments.Service
	catalog *archetype.Catalog
}

func NewServer(mirrorSvc *mirror.Service, momentsSvc *moments.Service, catalog *archetype.Catalog) http.Handler {
	s := &Server{mirror: mirrorSvc, moments: momentsSvc, catalog: catalog}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /archetypes", s.handleArchetypes)

	mux.HandleFunc("POST /mirror/chat", s.handleChat)
	mux.HandleFunc("POST /mirror/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /mirror/profile", s.handleGetProfile)
	mux.HandleFunc("POST /mirror/profile/initial", s.handleInitialProfile)
	mux.HandleFunc("GET /mirror/signals", s.handleSignals)
	mux.HandleFunc("GET /mirror/moments", s.handleMoments)
	mux.HandleFunc("POST /mirror/moments/{id}/acknowledge", s.handleAcknowledge)
	mux.HandleFunc("GET /mirror/loops", s.handleLoops)
	mux.HandleFunc("GET /mirror/insights", s.handleInsights)

	return chainMiddlewares(mux, withLogging, withRequestID, withCORS)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type envelope struct {
	Success  bool   `json:"success"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
	Response string `json:"response,omitempty"`
}

type chatRequest struct {
	UserID              string `json:"user_id"`
	Message             string `json:"message"`
	SessionID           string `json:"session_id,omitempty"`
	UserName            string `json:"user_name,omitempty"`
	UseEnhancedResponse bool   `json:"use_enhanced_response"`
}

type chatResponse struct {
	MessageID string `json:"message_id"`
	*mirror.TurnOutput
}

type analyzeRequest struct {
	Message string `json:"message"`
}

type analyzeResponse struct {
	PrimaryArchetype     string                    `json:"primary_archetype"`
	SecondaryArchetype   string                    `json:"secondary_archetype,omitempty"`
	ConfidenceScore      float64                   `json:"confidence_score"`
	SymbolicElements     []string                  `json:"symbolic_elements"`
	EmotionalMarkers     domain.EmotionalResonance `json:"emotional_markers"`
	NarrativePosition    domain.NarrativePosition  `json:"narrative_position"`
	ActiveMotifs         []string                  `json:"active_motifs"`
	ArchetypeDescription string                    `json:"archetype_description"`
	ConfidenceBreakdown  domain.ConfidenceScores   `json:"confidence_breakdown"`
}

type initialProfileRequest struct {
	UserID      string              `json:"user_id"`
	Archetype   string              `json:"initial_archetype"`
	Answers     []domain.QuizAnswer `json:"answers"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Version     string              `json:"quiz_version,omitempty"`
}

type archetypeResponse struct {
	Name              string   `json:"name"`
	CoreResonance     string   `json:"core_resonance"`
	Tone              string   `json:"tone"`
	SymbolicLanguage  []string `json:"symbolic_language"`
	TransformationKey string   `json:"transformation_key"`
}

type signalsResponse struct {
	Signals    []*domain.SignalRecord `json:"signals"`
	TotalCount int                    `json:"total_count"`
}

type momentsResponse struct {
	Moments    []*domain.MirrorMoment `json:"moments"`
	TotalCount int                    `json:"total_count"`
}

type loopsResponse struct {
	Loops      []mirror.PatternLoop `json:"loops"`
	TotalCount int                  `json:"total_count"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"archetypes":        len(s.catalog.Archetypes()),
		"symbol_categories": len(s.catalog.SymbolLibrary()),
		"analysis_version":  mirror.AnalysisVersion,
	})
}

func (s *Server) handleArchetypes(w http.ResponseWriter, r *http.Request) {
	list := make([]archetypeResponse, 0, len(s.catalog.Archetypes()))
	for _, a := range s.catalog.Archetypes() {
		list = append(list, archetypeResponse{
			Name:              a.Name,
			CoreResonance:     a.CoreResonance,
			Tone:              a.Tone,
			SymbolicLanguage:  a.SymbolicLanguage,
			TransformationKey: a.TransformationKey,
		})
	}
	ok(w, http.StatusOK, map[string]any{
		"archetypes":  list,
		"total_count": len(list),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	out, err := s.mirror.ProcessTurn(r.Context(), mirror.TurnInput{
		UserID:    domain.UserID(req.UserID),
		SessionID: domain.SessionID(req.SessionID),
		Message:   req.Message,
		UserName:  req.UserName,
		Enhanced:  req.UseEnhancedResponse,
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	ok(w, http.StatusOK, chatResponse{MessageID: uuid.NewString(), TurnOutput: out})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}

	rec, scores, err := s.mirror.Analyze(req.Message, nil)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	description := ""
	if a, found := s.catalog.Get(rec.ArchetypeBlend.Primary); found {
		description = a.CoreResonance
	}

	ok(w, http.StatusOK, analyzeResponse{
		PrimaryArchetype:     rec.ArchetypeBlend.Primary,
		SecondaryArchetype:   rec.ArchetypeBlend.Secondary,
		ConfidenceScore:      scores.Overall,
		SymbolicElements:     rec.SymbolicLanguage.ExtractedSymbols,
		EmotionalMarkers:     rec.EmotionalResonance,
		NarrativePosition:    rec.NarrativePosition,
		ActiveMotifs:         rec.MotifLoops.CurrentMotifs,
		ArchetypeDescription: description,
		ConfidenceBreakdown:  scores,
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUserID(w, r)
	if !found {
		return
	}

	profile, err := s.mirror.Profile(r.Context(), userID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	ok(w, http.StatusOK, profile)
}

func (s *Server) handleInitialProfile(w http.ResponseWriter, r *http.Request) {
	var req initialProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}

	in := mirror.InitialProfileInput{
		UserID:    domain.UserID(req.UserID),
		Archetype: req.Archetype,
		Answers:   req.Answers,
		Version:   req.Version,
	}
	if req.CompletedAt != nil {
		in.CompletedAt = *req.CompletedAt
	}

	profile, err := s.mirror.CreateInitialProfile(r.Context(), in)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	ok(w, http.StatusCreated, profile)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUserID(w, r)
	if !found {
		return
	}
	limit, valid := queryInt(w, r, "limit")
	if !valid {
		return
	}

	recs, err := s.mirror.RecentSignals(r.Context(), userID, limit)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if filter := r.URL.Query().Get("archetype_filter"); filter != "" {
		recs = slices.DeleteFunc(recs, func(rec *domain.SignalRecord) bool {
			return rec.PrimaryArchetype != filter
		})
	}

	ok(w, http.StatusOK, signalsResponse{Signals: recs, TotalCount: len(recs)})
}

func (s *Server) handleMoments(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUserID(w, r)
	if !found {
		return
	}
	limit, valid := queryInt(w, r, "limit")
	if !valid {
		return
	}

	list, err := s.moments.List(r.Context(), userID, limit, queryBool(r, "acknowledged_only", false))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	ok(w, http.StatusOK, momentsResponse{Moments: list, TotalCount: len(list)})
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUserID(w, r)
	if !found {
		return
	}
	id := domain.MomentID(r.PathValue("id"))

	if err := s.moments.Acknowledge(r.Context(), userID, id); err != nil {
		s.serviceError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{
		"moment_id":    id,
		"acknowledged": true,
	})
}

func (s *Server) handleLoops(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUserID(w, r)
	if !found {
		return
	}

	loops, err := s.mirror.PatternLoops(r.Context(), userID, queryBool(r, "active_only", true))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	ok(w, http.StatusOK, loopsResponse{Loops: loops, TotalCount: len(loops)})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUserID(w, r)
	if !found {
		return
	}

	insights, err := s.mirror.Insights(r.Context(), userID)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	ok(w, http.StatusOK, insights)
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func requireUserID(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		badRequest(w, "user_id is required")
		return "", false
	}
	return domain.UserID(userID), true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		badRequest(w, key+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func queryBool(r *http.Request, key string, def bool) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

// serviceError maps domain sentinels to status codes.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownArchetype):
		badRequest(w, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Error: "not found"})
	case errors.Is(err, domain.ErrAnalysisFailed):
		observability.LoggerFromContext(r.Context()).Error("mirror analysis failed",
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, envelope{
			Error:    "mirror analysis failed",
			Response: mirror.FallbackResponse,
		})
	default:
		internalError(w, r, err)
	}
}

// decodeJSON reads at most maxBodyBytes of JSON into v and writes the error
// response itself when that fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, envelope{Error: "request body too large"})
			return false
		}
		badRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func ok(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, envelope{Error: msg})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed",
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, envelope{Error: "internal server error"})
}
