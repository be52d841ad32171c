package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/fonoterapia-backend/internal/apperr"
	"github.com/AnshRaj112/fonoterapia-backend/internal/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemoryStore(t *testing.T) (*MemoryStore, *fakeClock, int64) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.SetClock(clock.now)
	u, err := store.CreateUser(context.Background(), "Ana", "ana@x.com", "hash")
	require.NoError(t, err)
	return store, clock, u.ID
}

func strPtr(s string) *string { return &s }

func TestMemoryStoreDuplicateEmail(t *testing.T) {
	store, _, _ := newTestMemoryStore(t)

	_, err := store.CreateUser(context.Background(), "Other", "ana@x.com", "hash")

	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestMemoryStoreOneActiveSessionPerType(t *testing.T) {
	ctx := context.Background()
	store, _, userID := newTestMemoryStore(t)

	first, err := store.StartSession(ctx, userID, models.TherapyWords, nil)
	require.NoError(t, err)

	_, err = store.StartSession(ctx, userID, models.TherapyWords, strPtr("verbos"))
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
	assert.Equal(t, first.ID, appErr.Data["active_session_id"])

	_, err = store.StartSession(ctx, userID, models.TherapyNumbers, nil)
	assert.NoError(t, err, "a different type may be active at the same time")

	_, err = store.EndSession(ctx, first.ID, models.StatusCompleted)
	require.NoError(t, err)
	_, err = store.StartSession(ctx, userID, models.TherapyWords, nil)
	assert.NoError(t, err)
}

func TestMemoryStoreStartSessionUnknownUser(t *testing.T) {
	store, _, _ := newTestMemoryStore(t)

	_, err := store.StartSession(context.Background(), 999, models.TherapyWords, nil)

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMemoryStoreRecordAnswerCounters(t *testing.T) {
	ctx := context.Background()
	store, _, userID := newTestMemoryStore(t)
	s, err := store.StartSession(ctx, userID, models.TherapyWords, nil)
	require.NoError(t, err)

	for i, correct := range []bool{true, false, true} {
		_, updated, err := store.RecordAnswer(ctx, s.ID, models.NewAnswer{
			QuestionText: "perro", ExpectedAnswer: "perro", UserAnswer: "pero", IsCorrect: correct,
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, updated.TotalQuestions)
		assert.LessOrEqual(t, updated.CorrectAnswers, updated.TotalQuestions)
	}

	ended, err := store.EndSession(ctx, s.ID, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 3, ended.TotalQuestions)
	assert.Equal(t, 2, ended.CorrectAnswers)
}

func TestMemoryStoreRecordAnswerRejectsInactive(t *testing.T) {
	ctx := context.Background()
	store, _, userID := newTestMemoryStore(t)
	s, err := store.StartSession(ctx, userID, models.TherapyNumbers, nil)
	require.NoError(t, err)
	_, err = store.EndSession(ctx, s.ID, models.StatusAbandoned)
	require.NoError(t, err)

	_, _, err = store.RecordAnswer(ctx, s.ID, models.NewAnswer{QuestionText: "tres"})
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	_, _, err = store.RecordAnswer(ctx, 12345, models.NewAnswer{QuestionText: "tres"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	active, err := store.GetActiveSession(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Empty(t, store.answers[s.ID])
}

func TestMemoryStoreEndSessionTwice(t *testing.T) {
	ctx := context.Background()
	store, _, userID := newTestMemoryStore(t)
	s, err := store.StartSession(ctx, userID, models.TherapyWords, nil)
	require.NoError(t, err)

	_, err = store.EndSession(ctx, s.ID, models.StatusCompleted)
	require.NoError(t, err)
	_, err = store.EndSession(ctx, s.ID, models.StatusCompleted)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMemoryStoreActiveSessionLastQuestion(t *testing.T) {
	ctx := context.Background()
	store, clock, userID := newTestMemoryStore(t)

	older, err := store.StartSession(ctx, userID, models.TherapyNumbers, nil)
	require.NoError(t, err)
	clock.advance(time.Minute)
	newer, err := store.StartSession(ctx, userID, models.TherapyWords, strPtr("adjetivos"))
	require.NoError(t, err)

	clock.advance(time.Minute)
	_, _, err = store.RecordAnswer(ctx, newer.ID, models.NewAnswer{QuestionText: "rojo"})
	require.NoError(t, err)
	clock.advance(time.Minute)
	_, _, err = store.RecordAnswer(ctx, newer.ID, models.NewAnswer{QuestionText: "azul"})
	require.NoError(t, err)

	active, err := store.GetActiveSession(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, newer.ID, active.Session.ID)
	require.NotNil(t, active.LastQuestion)
	assert.Equal(t, "azul", *active.LastQuestion)
	assert.Equal(t, clock.t, *active.LastActivity)
	assert.NotEqual(t, older.ID, active.Session.ID)
}

func TestMemoryStoreAggregates(t *testing.T) {
	ctx := context.Background()
	store, _, userID := newTestMemoryStore(t)

	// words: 1/2 and 0/0 -> mean of 50 and 0 = 25
	run := func(tt models.TherapyType, category *string, answers []bool, status models.SessionStatus) {
		s, err := store.StartSession(ctx, userID, tt, category)
		require.NoError(t, err)
		for _, c := range answers {
			_, _, err := store.RecordAnswer(ctx, s.ID, models.NewAnswer{QuestionText: "q", IsCorrect: c})
			require.NoError(t, err)
		}
		_, err = store.EndSession(ctx, s.ID, status)
		require.NoError(t, err)
	}
	run(models.TherapyWords, strPtr("verbos"), []bool{true, false}, models.StatusCompleted)
	run(models.TherapyWords, strPtr("adjetivos"), nil, models.StatusCompleted)
	run(models.TherapyNumbers, nil, []bool{true, true, true}, models.StatusCompleted)
	run(models.TherapyNumbers, strPtr("decenas"), []bool{false}, models.StatusAbandoned)

	stats, err := store.GetCompletedStatsByType(ctx, userID)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, models.TypeStats{TherapyType: models.TherapyNumbers, CompletedSessions: 1, TotalQuestions: 3, TotalCorrect: 3, AvgAccuracy: 100}, stats[0])
	assert.Equal(t, models.TypeStats{TherapyType: models.TherapyWords, CompletedSessions: 2, TotalQuestions: 2, TotalCorrect: 1, AvgAccuracy: 25}, stats[1])

	cats, err := store.GetPracticedCategories(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []models.PracticedCategory{
		{TherapyType: models.TherapyNumbers, Category: "decenas"},
		{TherapyType: models.TherapyWords, Category: "adjetivos"},
		{TherapyType: models.TherapyWords, Category: "verbos"},
	}, cats)

	totals, err := store.GetCompletedTotals(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, totals.Sessions)
	assert.Equal(t, 5, totals.TotalQuestions)
	assert.Equal(t, 4, totals.TotalCorrect)
	assert.InDelta(t, 50.0, totals.AvgAccuracy, 1e-9)
}
