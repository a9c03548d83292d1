package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"speakerscribe/internal/media"
	"speakerscribe/internal/orchestrator"
)

// submitResponse acknowledges an accepted job
type submitResponse struct {
	JobID string `json:"job_id"`
}

// jobResponse is the wire shape for poll and consume. Results carries the
// stored payload through untouched; a successful job's response is the bare
// results object with no status tag.
type jobResponse struct {
	Status  string          `json:"status,omitempty"`
	Info    string          `json:"info,omitempty"`
	Results json.RawMessage `json:"results,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// errorResponse is the wire shape for rejected requests
type errorResponse struct {
	Error string `json:"error"`
}

// handleSubmit accepts a multipart upload and registers a new job
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	params, err := paramsFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params.Language == "" {
		params.Language = s.defaultLang
	}

	jobID, err := s.orchestrator.Submit(r.Context(), file, header.Filename, params)
	if err != nil {
		var formatErr *media.UnsupportedFormatError
		switch {
		case errors.As(err, &formatErr):
			writeError(w, http.StatusBadRequest, formatErr.Error())
		case errors.Is(err, orchestrator.ErrInvalidSubmission):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("job submission failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "job submission failed, try again later")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{JobID: jobID})
}

// handlePoll reports the current status of a job without consuming it
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	status, err := s.orchestrator.Poll(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("job poll failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "job lookup failed, try again later")
		return
	}
	writeJSON(w, http.StatusOK, responseFromStatus(status))
}

// handleConsume returns the job's status and releases the stored record once
// the job is terminal
func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request) {
	status, err := s.orchestrator.ConsumeResult(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("job consume failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "job lookup failed, try again later")
		return
	}
	writeJSON(w, http.StatusOK, responseFromStatus(status))
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// paramsFromForm reads the optional tuning fields of a submission
func paramsFromForm(r *http.Request) (orchestrator.Params, error) {
	var params orchestrator.Params

	if v := r.FormValue("speaker_count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, errors.New("speaker_count must be an integer")
		}
		params.SpeakerCount = n
	}
	params.Language = r.FormValue("language")
	params.InitialPrompt = r.FormValue("initial_prompt")

	if v := r.FormValue("temperature"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, errors.New("temperature must be a number")
		}
		params.Temperature = f
	}
	if v := r.FormValue("no_speech_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, errors.New("no_speech_threshold must be a number")
		}
		params.NoSpeechThreshold = f
	}

	return params, nil
}

// responseFromStatus maps the orchestrator's view onto the wire shape. A done
// job's stored payload already carries the results envelope, so the response
// is the bare envelope with no status tag.
func responseFromStatus(status *orchestrator.Status) jobResponse {
	if status.Status == orchestrator.StatusDone && len(status.Result) > 0 {
		var envelope struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(status.Result, &envelope); err == nil && envelope.Results != nil {
			return jobResponse{Results: envelope.Results}
		}
	}
	return jobResponse{
		Status: status.Status,
		Info:   status.Info,
		Error:  status.Error,
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Error: message})
}
