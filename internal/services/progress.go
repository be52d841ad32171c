package services

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/AnshRaj112/fonoterapia-backend/internal/apperr"
	"github.com/AnshRaj112/fonoterapia-backend/internal/models"
)

const (
	ReasonFirstTime     = "first_time"
	ReasonNeedsPractice = "needs_practice"
)

// ProgressService rebuilds a user's practice state from persisted sessions.
type ProgressService struct {
	store ProgressStore
}

func NewProgressService(store ProgressStore) *ProgressService {
	return &ProgressService{store: store}
}

type ActiveSessionView struct {
	SessionID      int64              `json:"session_id"`
	TherapyType    models.TherapyType `json:"therapy_type"`
	Category       *string            `json:"therapy_category"`
	StartedAt      time.Time          `json:"started_at"`
	LastQuestion   *string            `json:"last_question"`
	LastActivity   *time.Time         `json:"last_activity"`
	TotalQuestions int                `json:"total_questions"`
	CorrectAnswers int                `json:"correct_answers"`
	Accuracy       float64            `json:"accuracy"`
}

type TypeStatistics struct {
	CompletedSessions int     `json:"completed_sessions"`
	TotalQuestions    int     `json:"total_questions"`
	TotalCorrect      int     `json:"total_correct"`
	AvgAccuracy       float64 `json:"avg_accuracy"`
}

// Recommendation suggests what to practice next.
type Recommendation struct {
	TherapyType     models.TherapyType `json:"therapy_type"`
	Category        string             `json:"therapy_category,omitempty"`
	Reason          string             `json:"reason"`
	CurrentAccuracy *float64           `json:"current_accuracy,omitempty"`
}

type ResumeState struct {
	HasActiveSession    bool                                  `json:"has_active_session"`
	ActiveSession       *ActiveSessionView                    `json:"active_session,omitempty"`
	UserStatistics      map[models.TherapyType]TypeStatistics `json:"user_statistics"`
	PracticedCategories map[models.TherapyType][]string       `json:"practiced_categories"`
	Recommendation      *Recommendation                       `json:"recommendation"`
}

type QuickStats struct {
	IsNewUser      bool `json:"is_new_user"`
	TotalSessions  int  `json:"total_sessions"`
	TotalQuestions int  `json:"total_questions"`
	TotalCorrect   int  `json:"total_correct"`
	AvgAccuracy    int  `json:"avg_accuracy"`
}

func validUserID(userID int64) error {
	if userID <= 0 {
		return apperr.New(apperr.KindValidation, "user id must be a positive integer")
	}
	return nil
}

// GetResumeState returns the user's active session (if any), completed
// session statistics by therapy type, the categories practiced so far and,
// when nothing is active, a recommendation for what to do next.
func (s *ProgressService) GetResumeState(ctx context.Context, userID int64) (*ResumeState, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}

	active, err := s.store.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.GetCompletedStatsByType(ctx, userID)
	if err != nil {
		return nil, err
	}
	categories, err := s.store.GetPracticedCategories(ctx, userID)
	if err != nil {
		return nil, err
	}

	state := &ResumeState{
		UserStatistics:      make(map[models.TherapyType]TypeStatistics, len(stats)),
		PracticedCategories: make(map[models.TherapyType][]string, len(models.TherapyTypes)),
	}
	for _, t := range models.TherapyTypes {
		state.PracticedCategories[t] = []string{}
	}
	for _, pc := range categories {
		state.PracticedCategories[pc.TherapyType] = append(state.PracticedCategories[pc.TherapyType], pc.Category)
	}
	for _, st := range stats {
		state.UserStatistics[st.TherapyType] = TypeStatistics{
			CompletedSessions: st.CompletedSessions,
			TotalQuestions:    st.TotalQuestions,
			TotalCorrect:      st.TotalCorrect,
			AvgAccuracy:       models.Round2(st.AvgAccuracy),
		}
	}

	if active != nil {
		sess := active.Session
		state.HasActiveSession = true
		state.ActiveSession = &ActiveSessionView{
			SessionID:      sess.ID,
			TherapyType:    sess.TherapyType,
			Category:       sess.Category,
			StartedAt:      sess.StartedAt,
			LastQuestion:   active.LastQuestion,
			LastActivity:   active.LastActivity,
			TotalQuestions: sess.TotalQuestions,
			CorrectAnswers: sess.CorrectAnswers,
			Accuracy:       models.Round2(models.Accuracy(sess.CorrectAnswers, sess.TotalQuestions)),
		}
	} else {
		state.Recommendation = recommend(stats)
	}

	slog.Debug("resume state built", "user_id", userID, "has_active_session", state.HasActiveSession,
		"types_with_history", len(stats))
	return state, nil
}

// recommend picks the type with the lowest average accuracy. On a tie the
// type listed first in stats wins.
func recommend(stats []models.TypeStats) *Recommendation {
	if len(stats) == 0 {
		return &Recommendation{
			TherapyType: models.TherapyWords,
			Category:    models.DefaultCategory,
			Reason:      ReasonFirstTime,
		}
	}

	lowest := stats[0]
	for _, st := range stats[1:] {
		if models.Round2(st.AvgAccuracy) < models.Round2(lowest.AvgAccuracy) {
			lowest = st
		}
	}
	acc := models.Round2(lowest.AvgAccuracy)
	return &Recommendation{
		TherapyType:     lowest.TherapyType,
		Reason:          ReasonNeedsPractice,
		CurrentAccuracy: &acc,
	}
}

// GetQuickStats summarises completed sessions. A user without any gets an
// all-zero answer flagged as new rather than an error.
func (s *ProgressService) GetQuickStats(ctx context.Context, userID int64) (*QuickStats, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}

	totals, err := s.store.GetCompletedTotals(ctx, userID)
	if err != nil {
		return nil, err
	}
	if totals.Sessions == 0 {
		return &QuickStats{IsNewUser: true}, nil
	}
	return &QuickStats{
		TotalSessions:  totals.Sessions,
		TotalQuestions: totals.TotalQuestions,
		TotalCorrect:   totals.TotalCorrect,
		AvgAccuracy:    int(math.Round(totals.AvgAccuracy)),
	}, nil
}
