package httpadapter_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/PabloGalante/mirror-agent/internal/adapters/http"
	"github.com/PabloGalante/mirror-agent/internal/adapters/llm"
	"github.com/PabloGalante/mirror-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/mirror-agent/internal/app/mirror"
	"github.com/PabloGalante/mirror-agent/internal/app/moments"
	"github.com/PabloGalante/mirror-agent/internal/archetype"
)

const seekerMessage = "I'm searching for truth and meaning in life, seeking the light beyond darkness."

func newTestServer(t *testing.T, catalog *archetype.Catalog) http.Handler {
	t.Helper()

	momentStore := memory.NewMomentStore()
	mirrorSvc := mirror.NewService(
		catalog,
		llm.NewMockLLM(),
		memory.NewProfileStore(),
		memory.NewSignalStore(),
		momentStore,
	)
	return httpadapter.NewServer(mirrorSvc, moments.NewService(momentStore), catalog)
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error"`
	Response string          `json:"response"`
}

func do(t *testing.T, srv http.Handler, method, target string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var env envelope
	if w.Code != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, archetype.Default())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"archetypes":14`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, archetype.Default())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, archetype.Default())

	w, _ := do(t, srv, http.MethodOptions, "/mirror/chat", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestArchetypes(t *testing.T) {
	srv := newTestServer(t, archetype.Default())

	w, env := do(t, srv, http.MethodGet, "/archetypes", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Archetypes []struct {
			Name          string `json:"name"`
			CoreResonance string `json:"core_resonance"`
		} `json:"archetypes"`
		TotalCount int `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 14, data.TotalCount)
	assert.Equal(t, "Seeker", data.Archetypes[0].Name)
	assert.Equal(t, "What wants to be discovered?", data.Archetypes[0].CoreResonance)
}

func TestChatThenReadBack(t *testing.T) {
	srv := newTestServer(t, archetype.Default())

	w, env := do(t, srv, http.MethodPost, "/mirror/chat", map[string]any{
		"user_id": "u1",
		"message": seekerMessage,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, env.Success)

	var chat struct {
		MessageID         string `json:"message_id"`
		Response          string `json:"response"`
		ArchetypeAnalysis struct {
			PrimaryArchetype string `json:"primary_archetype"`
		} `json:"archetype_analysis"`
		ChangeDetection struct {
			ChangeDetected bool `json:"change_detected"`
		} `json:"change_detection"`
		SessionMetadata struct {
			SessionID       string `json:"session_id"`
			AnalysisVersion string `json:"analysis_version"`
		} `json:"session_metadata"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &chat))
	assert.NotEmpty(t, chat.MessageID)
	assert.NotEmpty(t, chat.Response)
	assert.Equal(t, "Seeker", chat.ArchetypeAnalysis.PrimaryArchetype)
	assert.False(t, chat.ChangeDetection.ChangeDetected)
	assert.NotEmpty(t, chat.SessionMetadata.SessionID, "session id is generated when missing")
	assert.Equal(t, "1.0", chat.SessionMetadata.AnalysisVersion)

	w, env = do(t, srv, http.MethodGet, "/mirror/profile?user_id=u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"primary":"Seeker"`)

	w, env = do(t, srv, http.MethodGet, "/mirror/signals?user_id=u1&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total_count":1`)

	w, env = do(t, srv, http.MethodGet, "/mirror/signals?user_id=u1&archetype_filter=Guardian", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total_count":0`)

	w, env = do(t, srv, http.MethodGet, "/mirror/insights?user_id=u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"current_primary":"Seeker"`)

	w, env = do(t, srv, http.MethodGet, "/mirror/loops?user_id=u1&active_only=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t, archetype.Default())

	w, env := do(t, srv, http.MethodPost, "/mirror/chat", map[string]any{"message": "hello"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user_id is required", env.Error)

	w, env = do(t, srv, http.MethodPost, "/mirror/chat", map[string]any{"user_id": "u1", "message": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "message is required", env.Error)

	req := httptest.NewRequest(http.MethodPost, "/mirror/chat", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatAnalysisFailureReturnsFallback(t *testing.T) {
	// A server without a catalog panics inside the engine.
	srv := newTestServer(t, nil)

	w, env := do(t, srv, http.MethodPost, "/mirror/chat", map[string]any{
		"user_id": "u1",
		"message": seekerMessage,
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, mirror.FallbackResponse, env.Response)
	assert.NotContains(t, w.Body.String(), "goroutine")
}

func TestAnalyzeFailureReturnsFallback(t *testing.T) {
	srv := newTestServer(t, nil)

	w, env := do(t, srv, http.MethodPost, "/mirror/analyze", map[string]any{"message": seekerMessage})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "mirror analysis failed", env.Error)
	assert.Equal(t, mirror.FallbackResponse, env.Response)
}

func TestRequestBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, archetype.Default())

	for _, target := range []string{"/mirror/chat", "/mirror/analyze", "/mirror/profile/initial"} {
		t.Run(target, func(t *testing.T) {
			w, env := do(t, srv, http.MethodPost, target, map[string]any{
				"user_id": "u1",
				"message": strings.Repeat("a", 1<<20),
			})

			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
			assert.Equal(t, "request body too large", env.Error)
		})
	}
}

func TestAnalyze(t *testing.T) {
	srv := newTestServer(t, archetype.Default())

	w, env := do(t, srv, http.MethodPost, "/mirror/analyze", map[string]any{"message": seekerMessage})
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		PrimaryArchetype     string `json:"primary_archetype"`
		ArchetypeDescription string `json:"archetype_description"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Seeker", data.PrimaryArchetype)
	assert.Equal(t, "What wants to be discovered?", data.ArchetypeDescription)

	w, _ = do(t, srv, http.MethodGet, "/mirror/profile?user_id=anyone", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "analyze does not persist anything")
}

func TestProfileNotFoundAndMissingUser(t *testing.T) {
	srv := newTestServer(t, archetype.Default())

	w, _ := do(t, srv, http.MethodGet, "/mirror/profile?user_id=ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := do(t, srv, http.MethodGet, "/mirror/profile", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user_id is required", env.Error)
}

func TestInitialProfile(t *testing.T) {
	srv := newTestServer(t, archetype.Default())

	w, _ := do(t, srv, http.MethodPost, "/mirror/profile/initial", map[string]any{
		"user_id":           "u1",
		"initial_archetype": "Dragon",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := do(t, srv, http.MethodPost, "/mirror/profile/initial", map[string]any{
		"user_id":           "u1",
		"initial_archetype": "Guardian",
		"answers": []map[string]string{
			{"question_id": "q1", "answer": "I protect my people", "archetype": "Guardian"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"primary":"Guardian"`)
	assert.Contains(t, string(env.Data), `"trigger_event":"initial_quiz"`)
}

func TestMomentsAndAcknowledge(t *testing.T) {
	srv := newTestServer(t, archetype.Default())

	w, env := do(t, srv, http.MethodGet, "/mirror/moments?user_id=u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"moments":[]`)

	w, _ = do(t, srv, http.MethodGet, "/mirror/moments?user_id=u1&limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, srv, http.MethodPost, "/mirror/moments/missing/acknowledge?user_id=u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, archetype.Default())
	req := httptest.NewRequest(http.MethodGet, "/mirror/chat", nil)
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
