package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepresearch/internal/ai"
	"deepresearch/internal/app"
	"deepresearch/internal/model"
	"deepresearch/internal/pipeline"
	"deepresearch/internal/transport/http/response"
)

type memSessionStore struct {
	sessions map[string]*model.ResearchSession
	results  map[string]*model.ResearchResult
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		sessions: map[string]*model.ResearchSession{},
		results:  map[string]*model.ResearchResult{},
	}
}

func (m *memSessionStore) Create(s *model.ResearchSession) error {
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.sessions[s.ID] = s
	return nil
}

func (m *memSessionStore) GetByID(id string) (*model.ResearchSession, error) {
	return m.sessions[id], nil
}

func (m *memSessionStore) List() ([]model.ResearchSession, error) {
	out := make([]model.ResearchSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memSessionStore) MarkRunning(id string) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || s.Status != model.StatusPending {
		return false, nil
	}
	s.Status = model.StatusRunning
	return true, nil
}

func (m *memSessionStore) SaveResult(id, traceID string, result *model.ResearchResult) error {
	s := m.sessions[id]
	s.Status = model.StatusCompleted
	s.TraceID = traceID
	m.results[id] = result
	return nil
}

func (m *memSessionStore) MarkFailed(id, traceID, reason string) error {
	s, ok := m.sessions[id]
	if !ok || s.Status != model.StatusRunning {
		return nil
	}
	s.Status = model.StatusFailed
	s.TraceID = traceID
	return nil
}

func (m *memSessionStore) GetSummary(id string) (*model.ResearchSummary, error) {
	if r, ok := m.results[id]; ok {
		return r.Summary, nil
	}
	return nil, nil
}

func (m *memSessionStore) GetResult(id string) (*model.ResearchResult, error) {
	return m.results[id], nil
}

type memDocumentStore struct {
	docs []model.UploadedDocument
}

func (m *memDocumentStore) Create(doc *model.UploadedDocument) error {
	m.docs = append(m.docs, *doc)
	return nil
}

func (m *memDocumentStore) ListBySessionID(sessionID string) ([]model.UploadedDocument, error) {
	var out []model.UploadedDocument
	for _, d := range m.docs {
		if d.SessionID == sessionID {
			out = append(out, d)
		}
	}
	return out, nil
}

type memPublisher struct{}

func (memPublisher) Publish(context.Context, string) error { return nil }

type stubRunner struct{}

func (stubRunner) Run(context.Context, string) (*pipeline.Result, error) {
	return &pipeline.Result{Report: "report"}, nil
}

type stubLLM struct{}

func (stubLLM) Complete(context.Context, ai.ChatConfig, []ai.ChatMessage) (ai.Completion, error) {
	return ai.Completion{Content: "- summary"}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memSessionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemSessionStore()
	svc := app.NewResearchService(
		store,
		&memDocumentStore{},
		memPublisher{},
		nil,
		app.NewContextAssembler(100000, 0),
		app.NewSummarizer(stubLLM{}, ai.ChatConfig{Model: "m"}, app.SummarizerConfig{Wait: time.Second}),
		app.NewUsageLedger(nil),
		stubRunner{},
		"m",
		time.Minute,
		50000,
		zerolog.Nop(),
	)

	h := NewResearchHandler(svc)
	r := gin.New()
	group := r.Group("/api/v1/research")
	{
		group.POST("", h.Start)
		group.GET("", h.History)
		group.GET("/:id", h.Detail)
		group.POST("/:id/continue", h.Continue)
		group.POST("/:id/documents", h.Upload)
	}
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) response.APIResponse {
	t.Helper()
	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestStartEndpoint(t *testing.T) {
	r, store := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/research", gin.H{"query": "what changed?"})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, response.CodeOK, resp.Code)

	data := resp.Data.(map[string]any)
	id := data["research_id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, model.StatusPending, data["status"])

	require.Contains(t, store.sessions, id)
}

func TestStartEndpointMissingQuery(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/research", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeBadRequest, decodeResponse(t, w).Code)
}

func TestContinueEndpointUnknownParent(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/research/ghost/continue", gin.H{"query": "more"})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeSessionNotFound, decodeResponse(t, w).Code)
}

func TestContinueEndpointParentNotCompleted(t *testing.T) {
	r, store := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/research", gin.H{"query": "root"})
	require.Equal(t, http.StatusCreated, w.Code)
	parentID := decodeResponse(t, w).Data.(map[string]any)["research_id"].(string)
	require.Contains(t, store.sessions, parentID)

	w = doJSON(t, r, http.MethodPost, "/api/v1/research/"+parentID+"/continue", gin.H{"query": "more"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeInvalidContinuation, decodeResponse(t, w).Code)
}

func TestDetailEndpointNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/research/ghost", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeSessionNotFound, decodeResponse(t, w).Code)
}

func TestDetailEndpointPending(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/research", gin.H{"query": "root"})
	id := decodeResponse(t, w).Data.(map[string]any)["research_id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/research/"+id, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, model.StatusPending, data["status"])
	// Terminal fields are not serialized before the session finishes.
	assert.NotContains(t, data, "report")
	assert.NotContains(t, data, "summary")
	assert.NotContains(t, data, "token_usage")
	assert.NotContains(t, data, "estimated_cost_usd")
}

func TestUploadEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/research", gin.H{"query": "root"})
	id := decodeResponse(t, w).Data.(map[string]any)["research_id"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text notes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/research/"+id+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "notes.txt", data["filename"])
	assert.Equal(t, true, data["summary_ready"])
}

func TestUploadEndpointUnsupportedType(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/research", gin.H{"query": "root"})
	id := decodeResponse(t, w).Data.(map[string]any)["research_id"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "deck.pptx")
	require.NoError(t, err)
	_, err = part.Write([]byte("binary"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/research/"+id+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeUnsupportedDocument, decodeResponse(t, w).Code)
}

func TestUploadEndpointMissingFile(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/research", gin.H{"query": "root"})
	id := decodeResponse(t, w).Data.(map[string]any)["research_id"].(string)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/research/"+id+"/documents", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeBadRequest, decodeResponse(t, w).Code)
}
