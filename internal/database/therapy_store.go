package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/fonoterapia-backend/internal/apperr"
	"github.com/AnshRaj112/fonoterapia-backend/internal/models"
)

// PostgresStore persists users, therapy sessions and answers in PostgreSQL.
// Every operation is bounded by opTimeout so an exhausted pool fails the
// request instead of blocking it.
type PostgresStore struct {
	db        *sql.DB
	opTimeout time.Duration
}

func NewPostgresStore(db *sql.DB, opTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, opTimeout: opTimeout}
}

const sessionColumns = `session_id, user_id, therapy_type, therapy_category, started_at, ended_at,
	status, total_questions, correct_answers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.TherapySession, error) {
	var (
		s        models.TherapySession
		category sql.NullString
		endedAt  sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.TherapyType, &category, &s.StartedAt, &endedAt,
		&s.Status, &s.TotalQuestions, &s.CorrectAnswers)
	if err != nil {
		return nil, err
	}
	if category.Valid {
		s.Category = &category.String
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	return &s, nil
}

func (s *PostgresStore) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// withTx runs fn in a transaction; it is rolled back unless fn succeeds
// and the commit goes through.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.scope(ctx)
	defer cancel()
	return translate(s.db.PingContext(ctx), "ping failed")
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	u := models.User{Name: name, Email: email, PasswordHash: passwordHash}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, name, email, passwordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return nil, translate(err, "email is already registered")
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, name, email, password_hash
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.CreatedAt, &u.Name, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, translate(err, "failed to load user")
	}
	return &u, nil
}

func activeSessionConflict(id int64) error {
	return apperr.New(apperr.KindConflict, "an active session of this type already exists").
		WithData("active_session_id", id).
		WithData("should_resume", true)
}

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func activeSessionID(ctx context.Context, q queryRower, userID int64, therapyType models.TherapyType) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		SELECT session_id FROM therapy_sessions
		WHERE user_id = $1 AND therapy_type = $2 AND status = 'active'
	`, userID, therapyType).Scan(&id)
	return id, err
}

func (s *PostgresStore) StartSession(ctx context.Context, userID int64, therapyType models.TherapyType, category *string) (*models.TherapySession, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	var session *models.TherapySession
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		activeID, err := activeSessionID(ctx, tx, userID, therapyType)
		if err == nil {
			return activeSessionConflict(activeID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		session, err = scanSession(tx.QueryRowContext(ctx, `
			INSERT INTO therapy_sessions (user_id, therapy_type, therapy_category, status)
			VALUES ($1, $2, $3, 'active')
			RETURNING `+sessionColumns,
			userID, therapyType, nullString(category)))
		return err
	})
	if IsUniqueViolation(err) {
		// Lost a race with a concurrent start; the partial unique index held.
		activeID, lookupErr := activeSessionID(ctx, s.db, userID, therapyType)
		if lookupErr != nil {
			return nil, translate(lookupErr, "failed to load active session")
		}
		return nil, activeSessionConflict(activeID)
	}
	if pqCode(err) == pqForeignKeyViolation {
		return nil, apperr.Wrap(apperr.KindNotFound, "user not found", err)
	}
	if err != nil {
		return nil, translate(err, "failed to start session")
	}
	return session, nil
}

func (s *PostgresStore) RecordAnswer(ctx context.Context, sessionID int64, a models.NewAnswer) (*models.Answer, *models.TherapySession, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	answer := models.Answer{
		SessionID:          sessionID,
		QuestionText:       a.QuestionText,
		ExpectedAnswer:     a.ExpectedAnswer,
		UserAnswer:         a.UserAnswer,
		PronunciationScore: a.PronunciationScore,
		IsCorrect:          a.IsCorrect,
		ErrorType:          a.ErrorType,
		ErrorDetails:       a.ErrorDetails,
	}
	var session *models.TherapySession

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// The row lock keeps EndSession from closing the session between
		// the status check and the counter update.
		var status models.SessionStatus
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM therapy_sessions WHERE session_id = $1 FOR UPDATE
		`, sessionID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.KindNotFound, "session not found")
		}
		if err != nil {
			return err
		}
		if status != models.StatusActive {
			return apperr.New(apperr.KindInvalidState,
				fmt.Sprintf("session is %s; answers can no longer be added", status))
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO therapy_answers
				(session_id, question_text, expected_answer, user_answer,
				 pronunciation_score, is_correct, error_type, error_details)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING answer_id, answered_at
		`, sessionID, a.QuestionText, a.ExpectedAnswer, a.UserAnswer,
			a.PronunciationScore, a.IsCorrect, nullString(a.ErrorType), nullJSON(a.ErrorDetails),
		).Scan(&answer.ID, &answer.AnsweredAt)
		if err != nil {
			return err
		}

		session, err = scanSession(tx.QueryRowContext(ctx, `
			UPDATE therapy_sessions
			SET total_questions = total_questions + 1,
				correct_answers = correct_answers + CASE WHEN $1 THEN 1 ELSE 0 END
			WHERE session_id = $2
			RETURNING `+sessionColumns,
			a.IsCorrect, sessionID))
		return err
	})
	if err != nil {
		return nil, nil, translate(err, "failed to record answer")
	}
	return &answer, session, nil
}

func (s *PostgresStore) EndSession(ctx context.Context, sessionID int64, status models.SessionStatus) (*models.TherapySession, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	session, err := scanSession(s.db.QueryRowContext(ctx, `
		UPDATE therapy_sessions
		SET ended_at = NOW(), status = $1
		WHERE session_id = $2 AND status = 'active'
		RETURNING `+sessionColumns,
		status, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "session not found or already ended")
	}
	if err != nil {
		return nil, translate(err, "failed to end session")
	}
	return session, nil
}

func (s *PostgresStore) GetActiveSession(ctx context.Context, userID int64) (*models.ActiveSession, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	var (
		active       models.ActiveSession
		category     sql.NullString
		endedAt      sql.NullTime
		lastQuestion sql.NullString
		lastActivity sql.NullTime
	)
	sess := &active.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT s.session_id, s.user_id, s.therapy_type, s.therapy_category, s.started_at, s.ended_at,
			s.status, s.total_questions, s.correct_answers,
			ta.question_text, ta.answered_at
		FROM therapy_sessions s
		LEFT JOIN LATERAL (
			SELECT question_text, answered_at
			FROM therapy_answers
			WHERE session_id = s.session_id
			ORDER BY answered_at DESC, answer_id DESC
			LIMIT 1
		) ta ON true
		WHERE s.user_id = $1 AND s.status = 'active'
		ORDER BY s.started_at DESC
		LIMIT 1
	`, userID).Scan(&sess.ID, &sess.UserID, &sess.TherapyType, &category, &sess.StartedAt, &endedAt,
		&sess.Status, &sess.TotalQuestions, &sess.CorrectAnswers, &lastQuestion, &lastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "failed to load active session")
	}
	if category.Valid {
		sess.Category = &category.String
	}
	if lastQuestion.Valid {
		active.LastQuestion = &lastQuestion.String
	}
	if lastActivity.Valid {
		active.LastActivity = &lastActivity.Time
	}
	return &active, nil
}

const accuracyAvgExpr = `COALESCE(AVG(CASE
		WHEN total_questions > 0 THEN correct_answers::float8 / total_questions * 100
		ELSE 0
	END), 0)`

func (s *PostgresStore) GetCompletedStatsByType(ctx context.Context, userID int64) ([]models.TypeStats, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT therapy_type, COUNT(*), COALESCE(SUM(total_questions), 0), COALESCE(SUM(correct_answers), 0),
			`+accuracyAvgExpr+`
		FROM therapy_sessions
		WHERE user_id = $1 AND status = 'completed'
		GROUP BY therapy_type
		ORDER BY therapy_type
	`, userID)
	if err != nil {
		return nil, translate(err, "failed to load statistics")
	}
	defer rows.Close()

	var stats []models.TypeStats
	for rows.Next() {
		var st models.TypeStats
		if err := rows.Scan(&st.TherapyType, &st.CompletedSessions, &st.TotalQuestions, &st.TotalCorrect, &st.AvgAccuracy); err != nil {
			return nil, translate(err, "failed to load statistics")
		}
		stats = append(stats, st)
	}
	return stats, translate(rows.Err(), "failed to load statistics")
}

func (s *PostgresStore) GetPracticedCategories(ctx context.Context, userID int64) ([]models.PracticedCategory, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT therapy_type, therapy_category
		FROM therapy_sessions
		WHERE user_id = $1 AND therapy_category IS NOT NULL
		ORDER BY therapy_type, therapy_category
	`, userID)
	if err != nil {
		return nil, translate(err, "failed to load categories")
	}
	defer rows.Close()

	var out []models.PracticedCategory
	for rows.Next() {
		var pc models.PracticedCategory
		if err := rows.Scan(&pc.TherapyType, &pc.Category); err != nil {
			return nil, translate(err, "failed to load categories")
		}
		out = append(out, pc)
	}
	return out, translate(rows.Err(), "failed to load categories")
}

func (s *PostgresStore) GetCompletedTotals(ctx context.Context, userID int64) (models.CompletedTotals, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	var t models.CompletedTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_questions), 0), COALESCE(SUM(correct_answers), 0),
			`+accuracyAvgExpr+`
		FROM therapy_sessions
		WHERE user_id = $1 AND status = 'completed'
	`, userID).Scan(&t.Sessions, &t.TotalQuestions, &t.TotalCorrect, &t.AvgAccuracy)
	if err != nil {
		return models.CompletedTotals{}, translate(err, "failed to load statistics")
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || strings.TrimSpace(*s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullJSON passes JSON as text; lib/pq would otherwise send []byte as bytea.
func nullJSON(raw []byte) sql.NullString {
	if len(raw) == 0 || string(raw) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
