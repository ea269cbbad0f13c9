package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"financing_api/internal/errs"
	"financing_api/internal/finance"
	"financing_api/internal/messaging"
	"financing_api/internal/repository"
	"financing_api/types"
)

const equipmentStatusActive = "active"

type CreateRequestInput struct {
	// SessionID references a completed, passed verification session. When it
	// is empty, NationalID must match an already existing client.
	SessionID          string
	NationalID         string
	ItemType           string
	ItemValue          decimal.Decimal
	DownPaymentPercent decimal.Decimal
	InterestRate       decimal.Decimal
	InstallmentCount   int
	DeviceIMEI         string
	SignatureRef       *string
}

// RequestService drives a financing request from creation to its one
// terminal decision.
type RequestService interface {
	CreateRequest(ctx context.Context, input CreateRequestInput) (*types.FinancingRequest, error)
	GetRequest(ctx context.Context, id string) (*types.FinancingRequest, error)
	Approve(ctx context.Context, requestID string) error
	Reject(ctx context.Context, requestID string) error
}

type requestService struct {
	requests repository.RequestRepository
	sessions repository.SessionRepository
	resolver ClientService
	events   messaging.Publisher
	logger   *zap.Logger
}

func NewRequestService(requests repository.RequestRepository, sessions repository.SessionRepository, resolver ClientService, events messaging.Publisher, logger *zap.Logger) RequestService {
	return &requestService{
		requests: requests,
		sessions: sessions,
		resolver: resolver,
		events:   events,
		logger:   logger,
	}
}

func (s *requestService) CreateRequest(ctx context.Context, input CreateRequestInput) (*types.FinancingRequest, error) {
	if input.ItemType == "" {
		return nil, errs.Validation("item_type", "cannot be empty")
	}

	// Bad terms never reach storage.
	plan, err := finance.ComputePlan(input.ItemValue, input.DownPaymentPercent, input.InterestRate, input.InstallmentCount)
	if err != nil {
		return nil, err
	}

	client, nationalID, err := s.resolveApplicant(ctx, input)
	if err != nil {
		return nil, err
	}

	request := &types.FinancingRequest{
		ID:                 uuid.New().String(),
		ClientID:           &client.ID,
		NationalID:         nationalID,
		ItemType:           input.ItemType,
		ItemValue:          input.ItemValue,
		DownPaymentPercent: input.DownPaymentPercent,
		DownPaymentAmount:  plan.DownPayment,
		FinancedAmount:     plan.FinancedAmount,
		InterestRate:       input.InterestRate,
		InstallmentCount:   input.InstallmentCount,
		InstallmentAmount:  plan.InstallmentAmount,
		Status:             types.RequestStatusPending,
		DeviceIMEI:         input.DeviceIMEI,
		SignatureRef:       input.SignatureRef,
	}

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create financing request: %w", err)
	}

	s.logger.Info("financing request created",
		zap.String("request_id", request.ID),
		zap.String("client_id", client.ID),
		zap.String("item_type", input.ItemType))
	return request, nil
}

// resolveApplicant establishes who the request belongs to: either a fresh
// verified identity from a passed session, or a client that already exists.
func (s *requestService) resolveApplicant(ctx context.Context, input CreateRequestInput) (*types.Client, string, error) {
	if input.SessionID != "" {
		session, err := s.sessions.GetByID(ctx, input.SessionID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to get session: %w", err)
		}
		if session == nil {
			return nil, "", fmt.Errorf("session %s: %w", input.SessionID, errs.ErrNotFound)
		}
		if session.Status != types.SessionStatusCompleted || session.Result == nil {
			return nil, "", errs.StateConflict("verification session", input.SessionID, string(session.Status))
		}
		if !session.Result.Passed {
			return nil, "", errs.ConsistencyGuard("identity verification did not pass, a new session is required")
		}

		identity := session.Result.Identity
		nationalID := session.NationalID
		profile := ClientProfile{}
		if identity != nil {
			profile.FullName = identity.FullName
			if identity.NationalID != "" {
				nationalID = identity.NationalID
			}
		}

		client, err := s.resolver.ResolveOrCreate(ctx, nationalID, profile)
		if err != nil {
			return nil, "", err
		}
		return client, nationalID, nil
	}

	if input.NationalID == "" {
		return nil, "", errs.Validation("national_id", "required when no verification session is given")
	}

	client, err := s.resolver.FindByNationalID(ctx, input.NationalID)
	if err != nil {
		return nil, "", err
	}
	if client == nil {
		return nil, "", errs.ConsistencyGuard("no verified session and no existing client for this national id")
	}
	return client, input.NationalID, nil
}

func (s *requestService) GetRequest(ctx context.Context, id string) (*types.FinancingRequest, error) {
	if id == "" {
		return nil, errs.Validation("request_id", "cannot be empty")
	}

	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get financing request: %w", err)
	}
	if request == nil {
		return nil, fmt.Errorf("financing request %s: %w", id, errs.ErrNotFound)
	}
	return request, nil
}

// Approve flips the request to approved and provisions its equipment in one
// transaction. Calling it again after a decision is a no-op success, so the
// whole operation is safe to retry.
func (s *requestService) Approve(ctx context.Context, requestID string) error {
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}

	if request.Status.Terminal() {
		s.logger.Info("request already decided, approve is a no-op",
			zap.String("request_id", requestID),
			zap.String("status", string(request.Status)))
		return nil
	}

	clientID, err := s.resolveOwner(ctx, request)
	if err != nil {
		return err
	}

	equipment := &types.Equipment{
		ID:        uuid.New().String(),
		ClientID:  &clientID,
		RequestID: request.ID,
		Name:      request.ItemType,
		Status:    equipmentStatusActive,
	}

	err = s.requests.ApproveWithEquipment(ctx, request.ID, clientID, equipment)
	if errors.Is(err, repository.ErrNotPending) {
		// Lost a race against another decision. Terminal is terminal.
		s.logger.Info("request decided concurrently, approve is a no-op", zap.String("request_id", requestID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to approve request: %w", err)
	}

	request.Status = types.RequestStatusApproved
	request.ClientID = &clientID
	s.logger.Info("financing request approved",
		zap.String("request_id", request.ID),
		zap.String("client_id", clientID),
		zap.String("equipment_id", equipment.ID))
	s.notifyDecided(ctx, request)
	return nil
}

// resolveOwner refuses to approve a request whose equipment would have no
// owner. It never creates an account: approval corroborates, it does not
// register.
func (s *requestService) resolveOwner(ctx context.Context, request *types.FinancingRequest) (string, error) {
	if request.ClientID != nil && *request.ClientID != "" {
		return *request.ClientID, nil
	}

	client, err := s.resolver.FindByNationalID(ctx, request.NationalID)
	if err != nil {
		return "", err
	}
	if client == nil {
		return "", errs.UnresolvedClient(request.NationalID)
	}
	return client.ID, nil
}

func (s *requestService) Reject(ctx context.Context, requestID string) error {
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}

	if request.Status.Terminal() {
		s.logger.Info("request already decided, reject is a no-op",
			zap.String("request_id", requestID),
			zap.String("status", string(request.Status)))
		return nil
	}

	err = s.requests.Reject(ctx, requestID)
	if errors.Is(err, repository.ErrNotPending) {
		s.logger.Info("request decided concurrently, reject is a no-op", zap.String("request_id", requestID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reject request: %w", err)
	}

	request.Status = types.RequestStatusRejected
	s.logger.Info("financing request rejected", zap.String("request_id", request.ID))
	s.notifyDecided(ctx, request)
	return nil
}

func (s *requestService) notifyDecided(ctx context.Context, request *types.FinancingRequest) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRequestDecided(ctx, request); err != nil {
		s.logger.Error("failed to publish request decided event", zap.Error(err), zap.String("request_id", request.ID))
	}
}
