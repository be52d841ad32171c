package services

import (
	"context"

	"github.com/AnshRaj112/fonoterapia-backend/internal/models"
)

// UserStore is the user half of the persistence contract.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionStore is the therapy half of the persistence contract. Mutations
// are atomic: a failed call leaves no partial state behind.
type SessionStore interface {
	StartSession(ctx context.Context, userID int64, therapyType models.TherapyType, category *string) (*models.TherapySession, error)
	RecordAnswer(ctx context.Context, sessionID int64, answer models.NewAnswer) (*models.Answer, *models.TherapySession, error)
	EndSession(ctx context.Context, sessionID int64, status models.SessionStatus) (*models.TherapySession, error)
}

// ProgressStore answers the read-only progress queries.
type ProgressStore interface {
	GetActiveSession(ctx context.Context, userID int64) (*models.ActiveSession, error)
	GetCompletedStatsByType(ctx context.Context, userID int64) ([]models.TypeStats, error)
	GetPracticedCategories(ctx context.Context, userID int64) ([]models.PracticedCategory, error)
	GetCompletedTotals(ctx context.Context, userID int64) (models.CompletedTotals, error)
}

// Store is everything the API needs from persistence.
type Store interface {
	UserStore
	SessionStore
	ProgressStore
	Ping(ctx context.Context) error
	Close() error
}
