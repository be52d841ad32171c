package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/AnshRaj112/fonoterapia-backend/internal/models"
)

// StartSessionRequest also accepts the legacy usr_index in place of user_id.
type StartSessionRequest struct {
	UserID      *int64  `json:"user_id" validate:"required,gt=0"`
	UsrIndex    *int64  `json:"usr_index"`
	TherapyType string  `json:"therapy_type" validate:"required,oneof=words numbers"`
	Category    *string `json:"therapy_category" validate:"omitempty,max=100"`
}

type RecordAnswerRequest struct {
	QuestionText       *string         `json:"question_text" validate:"required"`
	ExpectedAnswer     *string         `json:"expected_answer" validate:"required"`
	UserAnswer         *string         `json:"user_answer" validate:"required"`
	PronunciationScore *float64        `json:"pronunciation_score" validate:"required,gte=0,lte=100"`
	IsCorrect          *bool           `json:"is_correct" validate:"required"`
	ErrorType          *string         `json:"error_type" validate:"omitempty,max=100"`
	ErrorDetails       json.RawMessage `json:"error_details"`
}

type EndSessionRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=completed abandoned"`
}

// StartSession handles POST /therapy/session/start.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UserID == nil {
		req.UserID = req.UsrIndex
	}
	if t, ok := models.ParseTherapyType(req.TherapyType); ok {
		req.TherapyType = string(t)
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.therapy.StartSession(r.Context(), *req.UserID, models.TherapyType(req.TherapyType), req.Category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "therapy session started", map[string]any{
		"session_id":       session.ID,
		"therapy_type":     session.TherapyType,
		"therapy_category": session.Category,
		"started_at":       session.StartedAt,
	})
}

// RecordAnswer handles POST /therapy/session/{id}/answer.
func (h *Handler) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req RecordAnswerRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.therapy.RecordAnswer(r.Context(), sessionID, models.NewAnswer{
		QuestionText:       *req.QuestionText,
		ExpectedAnswer:     *req.ExpectedAnswer,
		UserAnswer:         *req.UserAnswer,
		PronunciationScore: *req.PronunciationScore,
		IsCorrect:          *req.IsCorrect,
		ErrorType:          req.ErrorType,
		ErrorDetails:       req.ErrorDetails,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "answer recorded", result)
}

// EndSession handles PUT /therapy/session/{id}/end. The body is optional
// and the status defaults to completed.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req EndSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.therapy.EndSession(r.Context(), sessionID, models.SessionStatus(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "therapy session ended", summary)
}
