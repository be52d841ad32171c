package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/fonoterapia-backend/internal/apperr"
	"github.com/AnshRaj112/fonoterapia-backend/internal/models"
)

// MemoryStore keeps everything in process. It backs STORE_DRIVER=memory
// and the service tests, and enforces the same constraints as the
// PostgreSQL schema.
type MemoryStore struct {
	mu         sync.Mutex
	now        func() time.Time
	users      map[int64]*models.User
	byEmail    map[string]int64
	sessions   map[int64]*models.TherapySession
	answers    map[int64][]models.Answer // by session id, insertion ordered
	nextUser   int64
	nextSess   int64
	nextAnswer int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		users:    make(map[int64]*models.User),
		byEmail:  make(map[string]int64),
		sessions: make(map[int64]*models.TherapySession),
		answers:  make(map[int64][]models.Answer),
	}
}

// SetClock replaces the time source; used by tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[email]; exists {
		return nil, apperr.New(apperr.KindConflict, "email is already registered")
	}
	m.nextUser++
	u := &models.User{
		ID:           m.nextUser,
		CreatedAt:    m.now(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
	}
	m.users[u.ID] = u
	m.byEmail[email] = u.ID
	out := *u
	return &out, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	out := *m.users[id]
	return &out, nil
}

func copySession(s *models.TherapySession) *models.TherapySession {
	out := *s
	if s.Category != nil {
		c := *s.Category
		out.Category = &c
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return &out
}

func (m *MemoryStore) StartSession(ctx context.Context, userID int64, therapyType models.TherapyType, category *string) (*models.TherapySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	for _, s := range m.sessions {
		if s.UserID == userID && s.TherapyType == therapyType && s.Status == models.StatusActive {
			return nil, activeSessionConflict(s.ID)
		}
	}

	m.nextSess++
	s := &models.TherapySession{
		ID:          m.nextSess,
		UserID:      userID,
		TherapyType: therapyType,
		StartedAt:   m.now(),
		Status:      models.StatusActive,
	}
	if category != nil && strings.TrimSpace(*category) != "" {
		c := *category
		s.Category = &c
	}
	m.sessions[s.ID] = s
	return copySession(s), nil
}

func (m *MemoryStore) RecordAnswer(ctx context.Context, sessionID int64, a models.NewAnswer) (*models.Answer, *models.TherapySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	if s.Status != models.StatusActive {
		return nil, nil, apperr.New(apperr.KindInvalidState,
			fmt.Sprintf("session is %s; answers can no longer be added", s.Status))
	}

	m.nextAnswer++
	answer := models.Answer{
		ID:                 m.nextAnswer,
		SessionID:          sessionID,
		QuestionText:       a.QuestionText,
		ExpectedAnswer:     a.ExpectedAnswer,
		UserAnswer:         a.UserAnswer,
		PronunciationScore: a.PronunciationScore,
		IsCorrect:          a.IsCorrect,
		ErrorType:          a.ErrorType,
		ErrorDetails:       a.ErrorDetails,
		AnsweredAt:         m.now(),
	}
	m.answers[sessionID] = append(m.answers[sessionID], answer)

	s.TotalQuestions++
	if a.IsCorrect {
		s.CorrectAnswers++
	}
	return &answer, copySession(s), nil
}

func (m *MemoryStore) EndSession(ctx context.Context, sessionID int64, status models.SessionStatus) (*models.TherapySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.Status != models.StatusActive {
		return nil, apperr.New(apperr.KindNotFound, "session not found or already ended")
	}
	now := m.now()
	s.EndedAt = &now
	s.Status = status
	return copySession(s), nil
}

func (m *MemoryStore) GetActiveSession(ctx context.Context, userID int64) (*models.ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.TherapySession
	for _, s := range m.sessions {
		if s.UserID != userID || s.Status != models.StatusActive {
			continue
		}
		if latest == nil || s.StartedAt.After(latest.StartedAt) ||
			(s.StartedAt.Equal(latest.StartedAt) && s.ID > latest.ID) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}

	active := &models.ActiveSession{Session: *copySession(latest)}
	if answers := m.answers[latest.ID]; len(answers) > 0 {
		last := answers[0]
		for _, a := range answers[1:] {
			if !a.AnsweredAt.Before(last.AnsweredAt) {
				last = a
			}
		}
		q, t := last.QuestionText, last.AnsweredAt
		active.LastQuestion = &q
		active.LastActivity = &t
	}
	return active, nil
}

func (m *MemoryStore) completed(userID int64) []*models.TherapySession {
	var out []*models.TherapySession
	for _, s := range m.sessions {
		if s.UserID == userID && s.Status == models.StatusCompleted {
			out = append(out, s)
		}
	}
	return out
}

func (m *MemoryStore) GetCompletedStatsByType(ctx context.Context, userID int64) ([]models.TypeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType := make(map[models.TherapyType]*models.TypeStats)
	sums := make(map[models.TherapyType]float64)
	for _, s := range m.completed(userID) {
		st, ok := byType[s.TherapyType]
		if !ok {
			st = &models.TypeStats{TherapyType: s.TherapyType}
			byType[s.TherapyType] = st
		}
		st.CompletedSessions++
		st.TotalQuestions += s.TotalQuestions
		st.TotalCorrect += s.CorrectAnswers
		sums[s.TherapyType] += models.Accuracy(s.CorrectAnswers, s.TotalQuestions)
	}

	var out []models.TypeStats
	for _, t := range models.TherapyTypes {
		if st, ok := byType[t]; ok {
			st.AvgAccuracy = sums[t] / float64(st.CompletedSessions)
			out = append(out, *st)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetPracticedCategories(ctx context.Context, userID int64) ([]models.PracticedCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[models.PracticedCategory]bool)
	var out []models.PracticedCategory
	for _, s := range m.sessions {
		if s.UserID != userID || s.Category == nil {
			continue
		}
		pc := models.PracticedCategory{TherapyType: s.TherapyType, Category: *s.Category}
		if !seen[pc] {
			seen[pc] = true
			out = append(out, pc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TherapyType != out[j].TherapyType {
			return out[i].TherapyType < out[j].TherapyType
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (m *MemoryStore) GetCompletedTotals(ctx context.Context, userID int64) (models.CompletedTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		t   models.CompletedTotals
		sum float64
	)
	for _, s := range m.completed(userID) {
		t.Sessions++
		t.TotalQuestions += s.TotalQuestions
		t.TotalCorrect += s.CorrectAnswers
		sum += models.Accuracy(s.CorrectAnswers, s.TotalQuestions)
	}
	if t.Sessions > 0 {
		t.AvgAccuracy = sum / float64(t.Sessions)
	}
	return t, nil
}
