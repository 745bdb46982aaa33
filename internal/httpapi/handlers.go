package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/prepdeck/interview-coach/internal/feedback"
	"github.com/prepdeck/interview-coach/internal/interview"
	"github.com/prepdeck/interview-coach/internal/media"
	"github.com/prepdeck/interview-coach/internal/pipeline"
	"github.com/prepdeck/interview-coach/internal/transcribe"
	"github.com/prepdeck/interview-coach/internal/transcript"
)

const maxUploadBytes = 512 << 20 // generous bound for recorded interviews

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePipelineError maps pipeline and stage errors onto HTTP statuses:
// caller-caused conditions get 4xx, service failures 5xx, and a recognition
// deadline 504. Failed stages never advance the record, so every error here
// is retryable from the client's point of view.
func writePipelineError(w http.ResponseWriter, err error) {
	var decodeErr *media.DecodeError
	switch {
	case errors.Is(err, interview.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, pipeline.ErrInvalidState),
		errors.Is(err, pipeline.ErrEmptyUpload),
		errors.Is(err, media.ErrUnsupportedFormat),
		errors.Is(err, feedback.ErrEmptyTranscript):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &decodeErr):
		writeError(w, http.StatusBadRequest, decodeErr.Error())
	case errors.Is(err, pipeline.ErrStageInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, transcribe.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type createRequest struct {
	JobTitle string `json:"job_title"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.JobTitle) == "" {
		writeError(w, http.StatusBadRequest, "job_title is required")
		return
	}

	rec, err := s.pipeline.Create(r.Context(), strings.TrimSpace(req.JobTitle))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.List(r.Context())
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.records.Delete(r.Context(), r.PathValue("id")); err != nil {
		writePipelineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	rec, err := s.pipeline.Upload(r.Context(), r.PathValue("id"), header.Filename, payload)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "File uploaded and processed successfully",
		"interview": rec,
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	tr, err := s.pipeline.Transcribe(r.Context(), r.PathValue("id"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]transcript.Transcript{"transcript": tr})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_title":  rec.JobTitle,
		"transcript": transcript.Parse(rec.Transcript),
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	text, err := s.pipeline.Feedback(r.Context(), r.PathValue("id"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"feedback": text})
}

type abandonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	var req abandonRequest
	if r.Body != nil {
		// Reason is optional; an empty body is fine.
		json.NewDecoder(r.Body).Decode(&req)
	}
	rec, err := s.pipeline.Abandon(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
