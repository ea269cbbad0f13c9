package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"financing_api/internal/errs"
	"financing_api/internal/repository"
	"financing_api/types"
)

type RecordPaymentInput struct {
	RequestID string
	Amount    decimal.Decimal
	Method    string
	PaidOn    time.Time
}

// PaymentService appends staff-entered payments to the ledger. One payment
// settles one installment slot; the reconciler derives everything else.
type PaymentService interface {
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*types.Payment, error)
}

type paymentService struct {
	payments  repository.PaymentRepository
	requests  repository.RequestRepository
	equipment repository.EquipmentRepository
	logger    *zap.Logger
}

func NewPaymentService(payments repository.PaymentRepository, requests repository.RequestRepository, equipment repository.EquipmentRepository, logger *zap.Logger) PaymentService {
	return &paymentService{
		payments:  payments,
		requests:  requests,
		equipment: equipment,
		logger:    logger,
	}
}

func (s *paymentService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*types.Payment, error) {
	if input.RequestID == "" {
		return nil, errs.Validation("request_id", "cannot be empty")
	}
	if !input.Amount.IsPositive() {
		return nil, errs.Validationf("amount", "must be positive, got %s", input.Amount)
	}
	if input.Method == "" {
		return nil, errs.Validation("method", "cannot be empty")
	}

	request, err := s.requests.GetByID(ctx, input.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get financing request: %w", err)
	}
	if request == nil {
		return nil, fmt.Errorf("financing request %s: %w", input.RequestID, errs.ErrNotFound)
	}
	if request.Status != types.RequestStatusApproved {
		return nil, errs.StateConflict("financing request", request.ID, string(request.Status))
	}
	if request.ClientID == nil || *request.ClientID == "" {
		return nil, errs.ConsistencyGuard("approved request has no linked client")
	}

	equipment, err := s.equipment.GetByRequestID(ctx, input.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}
	if equipment == nil {
		// Approved with no equipment should be impossible; refuse loudly.
		s.logger.Error("approved request has no equipment row", zap.String("request_id", request.ID))
		return nil, errs.ConsistencyGuard("approved request has no equipment record")
	}

	paidOn := input.PaidOn
	if paidOn.IsZero() {
		paidOn = time.Now()
	}

	payment := &types.Payment{
		ID:          uuid.New().String(),
		ClientID:    *request.ClientID,
		RequestID:   request.ID,
		EquipmentID: equipment.ID,
		Amount:      input.Amount,
		Method:      input.Method,
		PaidOn:      paidOn,
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("request_id", request.ID),
		zap.String("amount", input.Amount.String()))
	return payment, nil
}
