package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"financing_api/internal/errs"
	"financing_api/internal/finance"
	"financing_api/internal/repository"
	"financing_api/types"
)

// ScheduleService is the read-side reconciler. Balances and progress are
// recomputed from the payment ledger on every call; nothing here is stored.
type ScheduleService interface {
	ClientSchedule(ctx context.Context, clientID string) (*types.ClientSchedule, error)
}

type scheduleService struct {
	clients   repository.ClientRepository
	requests  repository.RequestRepository
	equipment repository.EquipmentRepository
	payments  repository.PaymentRepository
	logger    *zap.Logger
}

func NewScheduleService(clients repository.ClientRepository, requests repository.RequestRepository, equipment repository.EquipmentRepository, payments repository.PaymentRepository, logger *zap.Logger) ScheduleService {
	return &scheduleService{
		clients:   clients,
		requests:  requests,
		equipment: equipment,
		payments:  payments,
		logger:    logger,
	}
}

func (s *scheduleService) ClientSchedule(ctx context.Context, clientID string) (*types.ClientSchedule, error) {
	if clientID == "" {
		return nil, errs.Validation("client_id", "cannot be empty")
	}

	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("client %s: %w", clientID, errs.ErrNotFound)
	}

	requests, err := s.requests.ListApprovedByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved requests: %w", err)
	}

	payments, err := s.payments.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	equipmentByRequest := make(map[string]string)
	equipment, err := s.equipment.ListByClient(ctx, clientID)
	if err != nil {
		// Equipment ids only decorate the progress view. Partial financial
		// visibility beats a hard failure on a read-only dashboard.
		s.logger.Warn("failed to list equipment, progress will omit equipment ids", zap.Error(err), zap.String("client_id", clientID))
	} else {
		for _, e := range equipment {
			equipmentByRequest[e.RequestID] = e.ID
		}
	}

	paymentCount := make(map[string]int)
	paymentTotal := make(map[string]decimal.Decimal)
	var paidTotal decimal.Decimal
	for _, p := range payments {
		paymentCount[p.RequestID]++
		paymentTotal[p.RequestID] = paymentTotal[p.RequestID].Add(p.Amount)
		paidTotal = paidTotal.Add(p.Amount)
	}

	schedule := &types.ClientSchedule{
		ClientID:     clientID,
		TotalBalance: decimal.Zero,
		Items:        []types.ScheduleItem{},
		Progress:     []types.RequestProgress{},
	}

	var obligationTotal, downPaymentTotal decimal.Decimal
	for _, request := range requests {
		// Lenient read side: a malformed row is an anomaly to log, not a
		// reason to hide the rest of the schedule.
		if request.InstallmentCount < 0 || request.InstallmentAmount.IsNegative() {
			s.logger.Warn("skipping malformed financing request in schedule",
				zap.String("request_id", request.ID),
				zap.Int("installment_count", request.InstallmentCount))
			continue
		}

		items := finance.BuildSchedule(request, paymentCount[request.ID])
		schedule.Items = append(schedule.Items, items...)

		obligation := request.TotalObligation()
		obligationTotal = obligationTotal.Add(obligation)
		downPaymentTotal = downPaymentTotal.Add(request.DownPaymentAmount)

		schedule.Progress = append(schedule.Progress, types.RequestProgress{
			RequestID:       request.ID,
			EquipmentID:     equipmentByRequest[request.ID],
			TotalObligation: obligation,
			PaidAmount:      paymentTotal[request.ID],
			ProgressPercent: finance.Progress(obligation, paymentTotal[request.ID]),
		})
	}

	balance := obligationTotal.Sub(downPaymentTotal).Sub(paidTotal)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	schedule.TotalBalance = balance
	schedule.NextDue = finance.NextDue(schedule.Items)

	return schedule, nil
}
