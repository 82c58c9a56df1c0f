package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inkvoice/inkvoice/internal/apperr"
	"github.com/inkvoice/inkvoice/internal/db"
	"github.com/inkvoice/inkvoice/internal/models"
	"github.com/inkvoice/inkvoice/internal/queue"
	"github.com/inkvoice/inkvoice/internal/services"
	"github.com/inkvoice/inkvoice/internal/worker"
)

type Handler struct {
	db        *db.DB
	queue     *queue.Queue
	analyzer  *worker.ChapterAnalyzer
	generator *worker.Generator
	voices    *services.ElevenLabsService
}

func NewHandler(database *db.DB, q *queue.Queue, analyzer *worker.ChapterAnalyzer, generator *worker.Generator, voices *services.ElevenLabsService) *Handler {
	return &Handler{
		db:        database,
		queue:     q,
		analyzer:  analyzer,
		generator: generator,
		voices:    voices,
	}
}

// CreateProject handles POST /v1/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}

	project := &models.Project{
		ID:     uuid.New(),
		Title:  req.Title,
		Status: models.ProjectStatusDraft,
	}

	if err := h.db.CreateProject(r.Context(), project); err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

// ListProjects handles GET /v1/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.db.ListProjectSummaries(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	if summaries == nil {
		summaries = []models.ProjectSummary{}
	}
	respondJSON(w, http.StatusOK, summaries)
}

// GetProject handles GET /v1/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	project, err := h.db.GetProject(r.Context(), id)
	if err != nil {
		respondAppError(w, err)
		return
	}

	chapters, err := h.db.GetProjectChapters(r.Context(), id)
	if err != nil {
		respondAppError(w, err)
		return
	}

	characters, err := h.db.GetProjectCharacters(r.Context(), id)
	if err != nil {
		respondAppError(w, err)
		return
	}

	response := models.ProjectResponse{
		Project:    *project,
		Characters: characters,
	}
	for _, c := range chapters {
		response.Chapters = append(response.Chapters, models.ChapterResponse{Chapter: c})
	}

	respondJSON(w, http.StatusOK, response)
}

// UpdateProjectStatus handles PUT /v1/projects/{id}/status. This is the
// manual escape hatch for a project stuck in analyzing or generating
// after a crash.
func (h *Handler) UpdateProjectStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req models.UpdateProjectStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch req.Status {
	case models.ProjectStatusDraft, models.ProjectStatusAnalyzing,
		models.ProjectStatusReady, models.ProjectStatusGenerating,
		models.ProjectStatusPublished:
	default:
		respondError(w, http.StatusBadRequest, "Invalid status value")
		return
	}

	if err := h.db.UpdateProjectStatus(r.Context(), id, req.Status); err != nil {
		respondAppError(w, err)
		return
	}

	// Leaving generating by hand also clears the stale progress marker.
	if req.Status != models.ProjectStatusGenerating {
		if err := h.db.UpdateGenerationProgress(r.Context(), id, nil); err != nil {
			respondAppError(w, err)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]models.ProjectStatus{"status": req.Status})
}

// DeleteProject handles DELETE /v1/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.db.DeleteProject(r.Context(), id); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateChapter handles POST /v1/projects/{id}/chapters
func (h *Handler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req models.CreateChapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}

	// The project must exist; chapters of orphan projects are useless.
	if _, err := h.db.GetProject(r.Context(), projectID); err != nil {
		respondAppError(w, err)
		return
	}

	chapter := &models.Chapter{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     req.Title,
		RawText:   req.RawText,
	}

	if err := h.db.CreateChapter(r.Context(), chapter); err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, chapter)
}

// ListChapters handles GET /v1/projects/{id}/chapters
func (h *Handler) ListChapters(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	chapters, err := h.db.GetProjectChapters(r.Context(), projectID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if chapters == nil {
		chapters = []models.Chapter{}
	}
	respondJSON(w, http.StatusOK, chapters)
}

// GetChapter handles GET /v1/projects/{id}/chapters/{chapterID} and
// returns the chapter with its blocks and any synthesized audio.
func (h *Handler) GetChapter(w http.ResponseWriter, r *http.Request) {
	chapter, ok := h.chapterInProject(w, r)
	if !ok {
		return
	}

	blocks, err := h.db.GetChapterBlocks(r.Context(), chapter.ID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	segments, err := h.db.GetChapterSegments(r.Context(), chapter.ID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	response := models.ChapterResponse{Chapter: *chapter}
	for _, b := range blocks {
		blockResp := models.TextBlockResponse{TextBlock: b}
		if segment, ok := segments[b.ID]; ok {
			s := segment
			blockResp.AudioSegment = &s
		}
		response.Blocks = append(response.Blocks, blockResp)
	}

	respondJSON(w, http.StatusOK, response)
}

// UpdateChapter handles PUT /v1/projects/{id}/chapters/{chapterID}
func (h *Handler) UpdateChapter(w http.ResponseWriter, r *http.Request) {
	chapter, ok := h.chapterInProject(w, r)
	if !ok {
		return
	}

	var req models.UpdateChapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == nil && req.RawText == nil {
		respondError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	if err := h.db.UpdateChapter(r.Context(), chapter.ID, req); err != nil {
		respondAppError(w, err)
		return
	}

	updated, err := h.db.GetChapter(r.Context(), chapter.ID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteChapter handles DELETE /v1/projects/{id}/chapters/{chapterID}
func (h *Handler) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	chapter, ok := h.chapterInProject(w, r)
	if !ok {
		return
	}

	if err := h.db.DeleteChapter(r.Context(), chapter.ID); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnalyzeChapter handles POST /v1/projects/{id}/chapters/{chapterID}/analyze.
// With ?background=true the job is queued and the call returns immediately.
func (h *Handler) AnalyzeChapter(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	chapterID, ok := parseUUID(w, chi.URLParam(r, "chapterID"))
	if !ok {
		return
	}

	if r.URL.Query().Get("background") == "true" {
		if err := h.queue.EnqueueAnalyzeChapter(r.Context(), projectID, chapterID); err != nil {
			respondAppError(w, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
		return
	}

	summary, err := h.analyzer.Analyze(r.Context(), projectID, chapterID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GenerateChapter handles POST /v1/projects/{id}/chapters/{chapterID}/generate.
// With ?background=true the job is queued and the call returns immediately.
func (h *Handler) GenerateChapter(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	chapterID, ok := parseUUID(w, chi.URLParam(r, "chapterID"))
	if !ok {
		return
	}

	if r.URL.Query().Get("background") == "true" {
		if err := h.queue.EnqueueGenerateAudio(r.Context(), projectID, chapterID); err != nil {
			respondAppError(w, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
		return
	}

	summary, err := h.generator.GenerateChapter(r.Context(), projectID, chapterID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ListCharacters handles GET /v1/projects/{id}/characters
func (h *Handler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	characters, err := h.db.GetProjectCharacters(r.Context(), projectID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if characters == nil {
		characters = []models.CharacterResponse{}
	}
	respondJSON(w, http.StatusOK, characters)
}

// SetVoiceAssignment handles PUT /v1/characters/{id}/voice
func (h *Handler) SetVoiceAssignment(w http.ResponseWriter, r *http.Request) {
	characterID, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req models.SetVoiceAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Provider == "" || req.VoiceID == "" {
		respondError(w, http.StatusBadRequest, "Provider and voice_id are required")
		return
	}

	if _, err := h.db.GetCharacter(r.Context(), characterID); err != nil {
		respondAppError(w, err)
		return
	}

	assignment := &models.VoiceAssignment{
		ID:          uuid.New(),
		CharacterID: characterID,
		Provider:    req.Provider,
		VoiceID:     req.VoiceID,
		Settings:    req.Settings,
	}
	if err := h.db.SetVoiceAssignment(r.Context(), assignment); err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, assignment)
}

// RemoveVoiceAssignment handles DELETE /v1/characters/{id}/voice
func (h *Handler) RemoveVoiceAssignment(w http.ResponseWriter, r *http.Request) {
	characterID, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.db.RemoveVoiceAssignment(r.Context(), characterID); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegenerateBlock handles POST /v1/blocks/{id}/regenerate
func (h *Handler) RegenerateBlock(w http.ResponseWriter, r *http.Request) {
	blockID, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	resp, err := h.generator.RegenerateBlock(r.Context(), blockID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// SaveDirectorNotes handles PUT /v1/blocks/{id}/notes
func (h *Handler) SaveDirectorNotes(w http.ResponseWriter, r *http.Request) {
	blockID, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req models.SaveDirectorNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.db.UpdateDirectorNotes(r.Context(), blockID, req.DirectorNotes); err != nil {
		respondAppError(w, err)
		return
	}

	block, err := h.db.GetTextBlock(r.Context(), blockID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, block)
}

// ListVoices handles GET /v1/voices
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := h.voices.ListVoices(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, voices)
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// chapterInProject loads the chapter from the route and verifies it
// belongs to the project in the route. Writes the error response itself.
func (h *Handler) chapterInProject(w http.ResponseWriter, r *http.Request) (*models.Chapter, bool) {
	projectID, ok := parseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return nil, false
	}
	chapterID, ok := parseUUID(w, chi.URLParam(r, "chapterID"))
	if !ok {
		return nil, false
	}

	chapter, err := h.db.GetChapter(r.Context(), chapterID)
	if err != nil {
		respondAppError(w, err)
		return nil, false
	}
	if chapter.ProjectID != projectID {
		respondError(w, http.StatusNotFound, "chapter not found in project")
		return nil, false
	}
	return chapter, true
}

func parseUUID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondAppError maps a pipeline error onto its HTTP status. Internal
// details stay in the log, not the response.
func respondAppError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[API] Internal error: %v", err)
		message = "Internal server error"
	}
	respondError(w, status, message)
}
