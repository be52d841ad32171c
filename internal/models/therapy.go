package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// TherapyType is the top-level drill family.
type TherapyType string

const (
	TherapyWords   TherapyType = "words"
	TherapyNumbers TherapyType = "numbers"
)

// TherapyTypes lists every type in the order aggregates are reported.
var TherapyTypes = []TherapyType{TherapyNumbers, TherapyWords}

// ParseTherapyType accepts the canonical names and the Spanish names used by
// the first voice-assistant clients.
func ParseTherapyType(s string) (TherapyType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "words", "palabras":
		return TherapyWords, true
	case "numbers", "números", "numeros":
		return TherapyNumbers, true
	}
	return "", false
}

type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusAbandoned SessionStatus = "abandoned"
)

// DefaultCategory is recommended to users with no completed sessions.
const DefaultCategory = "adjetivos"

// Column widths of therapy_sessions.therapy_category and
// therapy_answers.error_type.
const (
	MaxCategoryLength  = 100
	MaxErrorTypeLength = 100
)

type TherapySession struct {
	ID             int64         `json:"session_id"`
	UserID         int64         `json:"user_id"`
	TherapyType    TherapyType   `json:"therapy_type"`
	Category       *string       `json:"therapy_category"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
	Status         SessionStatus `json:"status"`
	TotalQuestions int           `json:"total_questions"`
	CorrectAnswers int           `json:"correct_answers"`
}

// NewAnswer is the data recorded for one question of an active session.
type NewAnswer struct {
	QuestionText       string
	ExpectedAnswer     string
	UserAnswer         string
	PronunciationScore float64
	IsCorrect          bool
	ErrorType          *string
	ErrorDetails       json.RawMessage
}

type Answer struct {
	ID                 int64           `json:"answer_id"`
	SessionID          int64           `json:"session_id"`
	QuestionText       string          `json:"question_text"`
	ExpectedAnswer     string          `json:"expected_answer"`
	UserAnswer         string          `json:"user_answer"`
	PronunciationScore float64         `json:"pronunciation_score"`
	IsCorrect          bool            `json:"is_correct"`
	ErrorType          *string         `json:"error_type,omitempty"`
	ErrorDetails       json.RawMessage `json:"error_details,omitempty"`
	AnsweredAt         time.Time       `json:"answered_at"`
}

// ActiveSession is the most recently started active session of a user,
// with the last question answered in it, if any.
type ActiveSession struct {
	Session      TherapySession
	LastQuestion *string
	LastActivity *time.Time
}

// TypeStats aggregates a user's completed sessions of one therapy type.
// AvgAccuracy is the mean of per-session accuracy, not a ratio of sums.
type TypeStats struct {
	TherapyType       TherapyType
	CompletedSessions int
	TotalQuestions    int
	TotalCorrect      int
	AvgAccuracy       float64
}

type PracticedCategory struct {
	TherapyType TherapyType
	Category    string
}

// CompletedTotals aggregates all completed sessions of a user.
type CompletedTotals struct {
	Sessions       int
	TotalQuestions int
	TotalCorrect   int
	AvgAccuracy    float64
}

// Accuracy returns correct/total as a percentage, 0 when total is 0.
func Accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
