package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"financing_api/types"
)

type SessionRepository interface {
	Create(ctx context.Context, session *types.VerificationSession) error
	GetByID(ctx context.Context, id string) (*types.VerificationSession, error)
	// MarkDeciding moves the session from awaiting_selfie to
	// awaiting_decision and records the selfie ref. The status predicate in
	// the UPDATE is the single-use lock: a second submission finds no row to
	// update and gets false back.
	MarkDeciding(ctx context.Context, id, selfieRef string) (bool, error)
	Complete(ctx context.Context, id string, result *types.VerificationResult) error
	Fail(ctx context.Context, id, reason string) error
	ListStaleOpen(ctx context.Context, olderThan time.Duration) ([]*types.VerificationSession, error)
}

type sessionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSessionRepository(db *pgxpool.Pool, logger *zap.Logger) SessionRepository {
	return &sessionRepository{
		db:     db,
		logger: logger,
	}
}

const sessionColumns = `id, national_id, id_image_ref, selfie_image_ref, status, result, failure_reason, created_at, updated_at`

func scanSession(row pgx.Row) (*types.VerificationSession, error) {
	var session types.VerificationSession
	var resultJSON []byte
	err := row.Scan(&session.ID, &session.NationalID, &session.IDImageRef,
		&session.SelfieImageRef, &session.Status, &resultJSON,
		&session.FailureReason, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(resultJSON) > 0 {
		var result types.VerificationResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to decode verification result: %w", err)
		}
		session.Result = &result
	}

	return &session, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *types.VerificationSession) error {
	query := `
		INSERT INTO verification_sessions (id, national_id, id_image_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`

	_, err := r.db.Exec(ctx, query, session.ID, session.NationalID, session.IDImageRef, session.Status)
	if err != nil {
		r.logger.Error("failed to create verification session", zap.Error(err), zap.String("id", session.ID))
		return fmt.Errorf("failed to create verification session: %w", err)
	}

	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*types.VerificationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE id = $1`

	session, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("failed to get verification session", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to get verification session: %w", err)
	}

	return session, nil
}

func (r *sessionRepository) MarkDeciding(ctx context.Context, id, selfieRef string) (bool, error) {
	query := `
		UPDATE verification_sessions
		SET status = $2, selfie_image_ref = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`

	tag, err := r.db.Exec(ctx, query, id, types.SessionStatusAwaitingDecision, selfieRef, types.SessionStatusAwaitingSelfie)
	if err != nil {
		r.logger.Error("failed to mark session deciding", zap.Error(err), zap.String("id", id))
		return false, fmt.Errorf("failed to mark session deciding: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *sessionRepository) Complete(ctx context.Context, id string, result *types.VerificationResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode verification result: %w", err)
	}

	query := `
		UPDATE verification_sessions
		SET status = $2, result = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`

	tag, err := r.db.Exec(ctx, query, id, types.SessionStatusCompleted, resultJSON, types.SessionStatusAwaitingDecision)
	if err != nil {
		r.logger.Error("failed to complete verification session", zap.Error(err), zap.String("id", id))
		return fmt.Errorf("failed to complete verification session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("verification session %s is not awaiting a decision", id)
	}

	return nil
}

func (r *sessionRepository) Fail(ctx context.Context, id, reason string) error {
	query := `
		UPDATE verification_sessions
		SET status = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`

	tag, err := r.db.Exec(ctx, query, id, types.SessionStatusFailed, reason, types.SessionStatusAwaitingDecision)
	if err != nil {
		r.logger.Error("failed to fail verification session", zap.Error(err), zap.String("id", id))
		return fmt.Errorf("failed to fail verification session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("verification session %s is not awaiting a decision", id)
	}

	return nil
}

// ListStaleOpen returns abandoned sessions still sitting in a non-terminal
// state. Expiry policy itself lives outside this service.
func (r *sessionRepository) ListStaleOpen(ctx context.Context, olderThan time.Duration) ([]*types.VerificationSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM verification_sessions
		WHERE status IN ($1, $2) AND created_at < $3
		ORDER BY created_at
	`

	cutoff := time.Now().Add(-olderThan)
	rows, err := r.db.Query(ctx, query, types.SessionStatusAwaitingSelfie, types.SessionStatusAwaitingDecision, cutoff)
	if err != nil {
		r.logger.Error("failed to list stale sessions", zap.Error(err))
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.VerificationSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			r.logger.Error("failed to scan verification session", zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}
