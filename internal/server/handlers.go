package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/scrypster/keepsake/internal/agent"
	"github.com/scrypster/keepsake/internal/graph"
	"github.com/scrypster/keepsake/internal/importer"
	"github.com/scrypster/keepsake/internal/memory"
	"github.com/scrypster/keepsake/internal/memtree"
	"github.com/scrypster/keepsake/internal/notify"
	"github.com/scrypster/keepsake/pkg/types"
)

// maxImportBody caps transcript upload size (8 MB).
const maxImportBody = 8 << 20

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("server: failed to encode JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: http.StatusText(statusCode)}
	if err != nil {
		resp.Details = map[string]any{"error": err.Error()}
	}
	respondJSON(w, statusCode, resp)
}

// userID resolves the target user from query param or header.
func userID(r *http.Request) string {
	if id := r.URL.Query().Get("user_id"); id != "" {
		return id
	}
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "default"
}

func (s *Server) manager(w http.ResponseWriter, r *http.Request) *memory.Manager {
	mgr, err := s.managers.Manager(userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to open memory", err)
		return nil
	}
	return mgr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req agent.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required", nil)
		return
	}
	if req.UserID == "" {
		req.UserID = userID(r)
	}

	resp, err := s.agent.Chat(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "chat failed", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.Get(userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load settings", err)
		return
	}
	respondJSON(w, http.StatusOK, settings.Masked())
}

func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var patch types.Settings
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	updated, err := s.settings.Update(userID(r), patch)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save settings", err)
		return
	}
	respondJSON(w, http.StatusOK, updated.Masked())
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var in memory.AddMemoryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	if in.Content == "" {
		respondError(w, http.StatusBadRequest, "content is required", nil)
		return
	}
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}

	node := mgr.AddMemory(in)
	s.sink.Publish(notify.NewEvent(notify.EventMemoryAdded, mgr.UserID(), node.Content))
	respondJSON(w, http.StatusCreated, node)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "memory id is required", nil)
		return
	}
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	if !mgr.Delete(id) {
		respondError(w, http.StatusNotFound, "memory not found", nil)
		return
	}
	s.sink.Publish(notify.NewEvent(notify.EventMemoryDeleted, mgr.UserID(), id))
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleReinforceMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	if !mgr.Reinforce(id, time.Now()) {
		respondError(w, http.StatusNotFound, "memory not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSearchMemories(w http.ResponseWriter, r *http.Request) {
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	q := r.URL.Query()
	results := mgr.SearchMemories(memory.SearchQuery{
		Keyword:   q.Get("keyword"),
		TimeHint:  q.Get("time_hint"),
		Topic:     q.Get("topic"),
		Entity:    q.Get("entity"),
		Limit:     queryInt(r, "limit", 0),
		Reinforce: q.Get("reinforce") == "true",
	})
	respondJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (s *Server) handleAnswerMemoryQuery(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("q")
	if question == "" {
		respondError(w, http.StatusBadRequest, "q is required", nil)
		return
	}
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"answer": mgr.AnswerMemoryQuery(question, time.Now())})
}

func (s *Server) handleCoreMemories(w http.ResponseWriter, r *http.Request) {
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	core := mgr.CoreMemories()
	respondJSON(w, http.StatusOK, map[string]any{"results": core, "count": len(core)})
}

func (s *Server) handleTreeView(w http.ResponseWriter, r *http.Request) {
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	q := r.URL.Query()
	opts := memtree.ViewOptions{
		Grain:           types.TimeGrain(q.Get("grain")),
		Year:            queryInt(r, "year", 0),
		Month:           queryInt(r, "month", 0),
		ExpandImportant: q.Get("expand_important") == "true",
		Threshold:       queryFloat(r, "threshold", 0),
	}
	respondJSON(w, http.StatusOK, map[string]any{"tree": mgr.Tree().TreeView(opts)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	respondJSON(w, http.StatusOK, mgr.Stats())
}

func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	results := mgr.MemoriesToSurface(time.Now(), queryInt(r, "limit", 5))
	respondJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	export, err := mgr.ExportSnapshot(time.Now(), r.URL.Query().Get("include_raw") == "true")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to export snapshot", err)
		return
	}
	respondJSON(w, http.StatusOK, export)
}

func (s *Server) handleEntityProfile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	profile := mgr.Graph().EntityProfileByName(name)
	if profile == nil {
		respondError(w, http.StatusNotFound, "entity not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSocialCircle(w http.ResponseWriter, r *http.Request) {
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	respondJSON(w, http.StatusOK, mgr.Graph().SocialCircleOf(graph.UserEntityID))
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	mgr := s.manager(w, r)
	if mgr == nil {
		return
	}
	force := r.URL.Query().Get("force") == "true"
	report := mgr.Consolidate(time.Now(), force)
	if report == nil {
		respondJSON(w, http.StatusOK, map[string]any{"ran": false})
		return
	}
	s.sink.Publish(notify.NewEvent(notify.EventConsolidationRun, mgr.UserID(),
		fmt.Sprintf("consolidated %d events", report.EventsConsolidated)))
	respondJSON(w, http.StatusOK, map[string]any{"ran": true, "report": report})
}

func (s *Server) handleImportSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}
	sess, err := importer.ParseSessionMarkdown(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse session", err)
		return
	}
	if sess.UserID == "" {
		sess.UserID = userID(r)
	}
	if err := s.importer.ImportSession(sess); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to import session", err)
		return
	}
	s.sink.Publish(notify.NewEvent(notify.EventTranscriptImport, sess.UserID, sess.Title))
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "messages": len(sess.Messages)})
}

func (s *Server) handleImportConversations(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		summaries, err := importer.ParseSummaries(body)
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to parse conversations document", err)
			return
		}
		if len(summaries) == 0 {
			respondError(w, http.StatusBadRequest, "no conversations in document", nil)
			return
		}
		conversationID = summaries[0].ConversationID
	}

	detail, err := importer.ParseDetail(body, conversationID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse conversations document", err)
		return
	}
	if detail == nil {
		respondError(w, http.StatusNotFound, "conversation not found", nil)
		return
	}

	uid := userID(r)
	n := s.importer.LoadConversation(uid, detail)
	s.sink.Publish(notify.NewEvent(notify.EventTranscriptImport, uid, detail.Title))
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "messages": n})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}
	query := r.URL.Query().Get("q")
	var summaries []types.ConversationSummary
	if query != "" {
		summaries, err = importer.SearchSummaries(body, query, queryInt(r, "limit", 0))
	} else {
		summaries, err = importer.ParseSummaries(body)
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse conversations document", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversations": summaries, "count": len(summaries)})
}

func queryInt(r *http.Request, key string, fallback int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
