package services

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AnshRaj112/fonoterapia-backend/internal/apperr"
	"github.com/AnshRaj112/fonoterapia-backend/internal/metrics"
	"github.com/AnshRaj112/fonoterapia-backend/internal/models"
)

// TherapyService opens sessions, records answers and closes sessions.
type TherapyService struct {
	store  SessionStore
	events Publisher
}

func NewTherapyService(store SessionStore, events Publisher) *TherapyService {
	return &TherapyService{store: store, events: events}
}

// SessionProgress is a session's running score.
type SessionProgress struct {
	TotalQuestions int     `json:"total_questions"`
	CorrectAnswers int     `json:"correct_answers"`
	Accuracy       float64 `json:"accuracy"`
}

func progressOf(s *models.TherapySession) SessionProgress {
	return SessionProgress{
		TotalQuestions: s.TotalQuestions,
		CorrectAnswers: s.CorrectAnswers,
		Accuracy:       models.Round2(models.Accuracy(s.CorrectAnswers, s.TotalQuestions)),
	}
}

type AnswerResult struct {
	AnswerID   int64           `json:"answer_id"`
	SessionID  int64           `json:"session_id"`
	AnsweredAt time.Time       `json:"answered_at"`
	Progress   SessionProgress `json:"session_progress"`
}

type SessionSummary struct {
	SessionID       int64                `json:"session_id"`
	TherapyType     models.TherapyType   `json:"therapy_type"`
	Status          models.SessionStatus `json:"status"`
	TotalQuestions  int                  `json:"total_questions"`
	CorrectAnswers  int                  `json:"correct_answers"`
	Accuracy        float64              `json:"accuracy"`
	DurationMinutes float64              `json:"duration_minutes"`
}

// StartSession opens a session. If one of the same type is already active
// it fails with KindConflict carrying active_session_id.
func (s *TherapyService) StartSession(ctx context.Context, userID int64, therapyType models.TherapyType, category *string) (*models.TherapySession, error) {
	if userID <= 0 {
		return nil, apperr.New(apperr.KindValidation, "user_id must be a positive integer")
	}
	if therapyType != models.TherapyWords && therapyType != models.TherapyNumbers {
		return nil, apperr.New(apperr.KindValidation, `therapy_type must be "words" or "numbers"`)
	}
	category = optionalText(category)
	if category != nil && utf8.RuneCountInString(*category) > models.MaxCategoryLength {
		return nil, apperr.New(apperr.KindValidation, "therapy_category must be at most 100 characters")
	}

	session, err := s.store.StartSession(ctx, userID, therapyType, category)
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			metrics.SessionConflicts.Inc()
		}
		return nil, err
	}

	metrics.SessionsStarted.WithLabelValues(string(therapyType)).Inc()
	slog.Info("therapy session started", "session_id", session.ID, "user_id", userID, "therapy_type", therapyType)
	publishBestEffort(ctx, s.events, newProgressEvent(EventSessionStarted, session))
	return session, nil
}

// optionalText trims s; blank text becomes nil so every store saves it as
// absent.
func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// RecordAnswer appends an answer to an active session and bumps its
// counters in the same transaction.
func (s *TherapyService) RecordAnswer(ctx context.Context, sessionID int64, answer models.NewAnswer) (*AnswerResult, error) {
	if sessionID <= 0 {
		return nil, apperr.New(apperr.KindValidation, "session id must be a positive integer")
	}
	if answer.PronunciationScore < 0 || answer.PronunciationScore > 100 {
		return nil, apperr.New(apperr.KindValidation, "pronunciation_score must be between 0 and 100")
	}
	answer.ErrorType = optionalText(answer.ErrorType)
	if answer.ErrorType != nil && utf8.RuneCountInString(*answer.ErrorType) > models.MaxErrorTypeLength {
		return nil, apperr.New(apperr.KindValidation, "error_type must be at most 100 characters")
	}

	saved, session, err := s.store.RecordAnswer(ctx, sessionID, answer)
	if err != nil {
		return nil, err
	}

	metrics.AnswersRecorded.WithLabelValues(strconv.FormatBool(answer.IsCorrect)).Inc()
	progress := progressOf(session)
	slog.Debug("answer recorded", "session_id", sessionID, "answer_id", saved.ID,
		"correct", session.CorrectAnswers, "total", session.TotalQuestions)
	publishBestEffort(ctx, s.events, newProgressEvent(EventAnswerRecorded, session))

	return &AnswerResult{
		AnswerID:   saved.ID,
		SessionID:  sessionID,
		AnsweredAt: saved.AnsweredAt,
		Progress:   progress,
	}, nil
}

// EndSession closes an active session as completed or abandoned. Ending a
// missing or already-ended session fails with KindNotFound.
func (s *TherapyService) EndSession(ctx context.Context, sessionID int64, status models.SessionStatus) (*SessionSummary, error) {
	if sessionID <= 0 {
		return nil, apperr.New(apperr.KindValidation, "session id must be a positive integer")
	}
	if status == "" {
		status = models.StatusCompleted
	}
	if status != models.StatusCompleted && status != models.StatusAbandoned {
		return nil, apperr.New(apperr.KindValidation, `status must be "completed" or "abandoned"`)
	}

	session, err := s.store.EndSession(ctx, sessionID, status)
	if err != nil {
		return nil, err
	}

	var duration time.Duration
	if session.EndedAt != nil {
		duration = session.EndedAt.Sub(session.StartedAt)
	}
	progress := progressOf(session)

	metrics.SessionsEnded.WithLabelValues(string(session.TherapyType), string(status)).Inc()
	slog.Info("therapy session ended", "session_id", session.ID, "status", status,
		"correct", progress.CorrectAnswers, "total", progress.TotalQuestions, "duration", duration)
	publishBestEffort(ctx, s.events, newProgressEvent(EventSessionEnded, session))

	return &SessionSummary{
		SessionID:       session.ID,
		TherapyType:     session.TherapyType,
		Status:          session.Status,
		TotalQuestions:  progress.TotalQuestions,
		CorrectAnswers:  progress.CorrectAnswers,
		Accuracy:        progress.Accuracy,
		DurationMinutes: models.Round2(duration.Minutes()),
	}, nil
}
