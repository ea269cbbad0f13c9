package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"financing_api/internal/docstore"
	"financing_api/internal/errs"
	"financing_api/internal/messaging"
	"financing_api/internal/repository"
	"financing_api/internal/verifier"
	"financing_api/types"
)

// SessionService owns the identity verification handshake. The agent creates
// a session, the client submits a selfie from their own device exactly once,
// and the agent polls GetStatus until the session turns terminal.
type SessionService interface {
	CreateSession(ctx context.Context, nationalID string, idImage io.Reader) (*types.VerificationSession, error)
	SubmitSelfie(ctx context.Context, sessionID string, selfie io.Reader) (*types.VerificationSession, error)
	GetStatus(ctx context.Context, sessionID string) (*types.VerificationSession, error)
}

type sessionService struct {
	repo     repository.SessionRepository
	verifier verifier.Client
	docs     docstore.Store
	events   messaging.Publisher
	logger   *zap.Logger
}

func NewSessionService(repo repository.SessionRepository, vc verifier.Client, docs docstore.Store, events messaging.Publisher, logger *zap.Logger) SessionService {
	return &sessionService{
		repo:     repo,
		verifier: vc,
		docs:     docs,
		events:   events,
		logger:   logger,
	}
}

func (s *sessionService) CreateSession(ctx context.Context, nationalID string, idImage io.Reader) (*types.VerificationSession, error) {
	if nationalID == "" {
		return nil, errs.Validation("national_id", "cannot be empty")
	}
	if idImage == nil {
		return nil, errs.Validation("id_image", "is required")
	}

	idImageRef, err := s.docs.Save(ctx, "id", idImage)
	if err != nil {
		s.logger.Error("failed to store id image", zap.Error(err))
		return nil, fmt.Errorf("failed to store id image: %w", err)
	}

	session := &types.VerificationSession{
		ID:         uuid.New().String(),
		NationalID: nationalID,
		IDImageRef: idImageRef,
		Status:     types.SessionStatusAwaitingSelfie,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("verification session created",
		zap.String("session_id", session.ID),
		zap.String("national_id", nationalID))
	return session, nil
}

// SubmitSelfie consumes the session's single verification attempt. Whatever
// the verifier says, the session ends terminal; a failed attempt needs a
// brand new session, never a retry of this one.
func (s *sessionService) SubmitSelfie(ctx context.Context, sessionID string, selfie io.Reader) (*types.VerificationSession, error) {
	if sessionID == "" {
		return nil, errs.Validation("session_id", "cannot be empty")
	}
	if selfie == nil {
		return nil, errs.Validation("face_image", "is required")
	}

	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, errs.ErrNotFound)
	}
	if session.Status != types.SessionStatusAwaitingSelfie {
		return nil, errs.StateConflict("verification session", sessionID, string(session.Status))
	}

	selfieRef, err := s.docs.Save(ctx, "selfie", selfie)
	if err != nil {
		s.logger.Error("failed to store selfie", zap.Error(err), zap.String("session_id", sessionID))
		return nil, fmt.Errorf("failed to store selfie: %w", err)
	}

	// The conditional update is the lock: if someone else got here first,
	// zero rows move and we refuse rather than overwrite.
	moved, err := s.repo.MarkDeciding(ctx, sessionID, selfieRef)
	if err != nil {
		return nil, fmt.Errorf("failed to advance session: %w", err)
	}
	if !moved {
		return nil, errs.StateConflict("verification session", sessionID, string(types.SessionStatusAwaitingDecision))
	}
	session.Status = types.SessionStatusAwaitingDecision
	session.SelfieImageRef = &selfieRef

	result, verifyErr := s.callVerifier(ctx, session, selfieRef)
	if verifyErr != nil {
		reason := verifyErr.Error()
		if err := s.repo.Fail(ctx, sessionID, reason); err != nil {
			return nil, fmt.Errorf("failed to record session failure: %w", err)
		}
		session.Status = types.SessionStatusFailed
		session.FailureReason = &reason

		s.logger.Error("verification session failed",
			zap.String("session_id", sessionID),
			zap.Error(verifyErr))
		s.notifyCompleted(ctx, session)
		return session, nil
	}

	if err := s.repo.Complete(ctx, sessionID, result); err != nil {
		return nil, fmt.Errorf("failed to record session result: %w", err)
	}
	session.Status = types.SessionStatusCompleted
	session.Result = result

	s.logger.Info("verification session completed",
		zap.String("session_id", sessionID),
		zap.Bool("passed", result.Passed))
	s.notifyCompleted(ctx, session)
	return session, nil
}

// GetStatus is the polling endpoint: a pure read the agent may call any
// number of times.
func (s *sessionService) GetStatus(ctx context.Context, sessionID string) (*types.VerificationSession, error) {
	if sessionID == "" {
		return nil, errs.Validation("session_id", "cannot be empty")
	}

	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, errs.ErrNotFound)
	}

	return session, nil
}

func (s *sessionService) callVerifier(ctx context.Context, session *types.VerificationSession, selfieRef string) (*types.VerificationResult, error) {
	idImage, err := s.docs.Open(ctx, session.IDImageRef)
	if err != nil {
		return nil, errs.ExternalService("document store", err)
	}
	defer idImage.Close()

	faceImage, err := s.docs.Open(ctx, selfieRef)
	if err != nil {
		return nil, errs.ExternalService("document store", err)
	}
	defer faceImage.Close()

	return s.verifier.Verify(ctx, session.NationalID, idImage, faceImage)
}

// notifyCompleted is advisory. The agent polls; losing an event loses nothing.
func (s *sessionService) notifyCompleted(ctx context.Context, session *types.VerificationSession) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishSessionCompleted(ctx, session); err != nil {
		s.logger.Error("failed to publish session completed event", zap.Error(err), zap.String("session_id", session.ID))
	}
}
