package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"financing_api/internal/errs"
	"financing_api/types"
)

func approvedClientRequest(id string, createdAt time.Time) *types.FinancingRequest {
	return &types.FinancingRequest{
		ID:                 id,
		ClientID:           strPtr("client-1"),
		NationalID:         "00112345678",
		ItemType:           "smartphone",
		ItemValue:          dec("12500"),
		DownPaymentPercent: dec("40"),
		InterestRate:       dec("0.525"),
		InstallmentCount:   6,
		DownPaymentAmount:  dec("5000"),
		FinancedAmount:     dec("7500"),
		InstallmentAmount:  dec("1906.25"),
		Status:             types.RequestStatusApproved,
		CreatedAt:          createdAt,
	}
}

func payment(requestID, amount string, paidOn time.Time) *types.Payment {
	return &types.Payment{
		ID:        "pay-" + requestID,
		ClientID:  "client-1",
		RequestID: requestID,
		Amount:    dec(amount),
		Method:    "cash",
		PaidOn:    paidOn,
		CreatedAt: paidOn,
	}
}

func newScheduleService(t *testing.T, clients *mockClientRepository, requests *mockRequestRepository, equipment *mockEquipmentRepository, payments *mockPaymentRepository) ScheduleService {
	t.Helper()
	if clients.getByIDFunc == nil {
		clients.getByIDFunc = func(ctx context.Context, id string) (*types.Client, error) {
			return &types.Client{ID: id, NationalID: "00112345678"}, nil
		}
	}
	return NewScheduleService(clients, requests, equipment, payments, zaptest.NewLogger(t))
}

func TestClientSchedulePaymentCountDrivesPaidSlots(t *testing.T) {
	createdAt := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)

	requests := &mockRequestRepository{
		listApprovedByClientFunc: func(ctx context.Context, clientID string) ([]*types.FinancingRequest, error) {
			return []*types.FinancingRequest{approvedClientRequest("req-1", createdAt)}, nil
		},
	}
	// Two payments mark two slots paid regardless of amount or date order.
	payments := &mockPaymentRepository{
		listByClientFunc: func(ctx context.Context, clientID string) ([]*types.Payment, error) {
			return []*types.Payment{
				payment("req-1", "1906.25", createdAt.AddDate(0, 2, 0)),
				payment("req-1", "500", createdAt.AddDate(0, 0, 3)),
			}, nil
		},
	}
	equipment := &mockEquipmentRepository{
		listByClientFunc: func(ctx context.Context, clientID string) ([]*types.Equipment, error) {
			return []*types.Equipment{{ID: "equip-1", RequestID: "req-1"}}, nil
		},
	}

	svc := newScheduleService(t, &mockClientRepository{}, requests, equipment, payments)

	schedule, err := svc.ClientSchedule(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(schedule.Items) != 6 {
		t.Fatalf("expected 6 schedule items, but got %d", len(schedule.Items))
	}
	paid := 0
	for i, item := range schedule.Items {
		if item.Status == types.InstallmentStatusPaid {
			paid++
		}
		if item.Number != i+1 {
			t.Errorf("expected installment number %d, but got %d", i+1, item.Number)
		}
		expectedDue := createdAt.AddDate(0, 0, 15*(i+1))
		if !item.DueDate.Equal(expectedDue) {
			t.Errorf("installment %d: expected due date %v, but got %v", i+1, expectedDue, item.DueDate)
		}
	}
	if paid != 2 {
		t.Errorf("expected 2 paid installments, but got %d", paid)
	}
	if schedule.Items[0].Status != types.InstallmentStatusPaid || schedule.Items[1].Status != types.InstallmentStatusPaid {
		t.Error("expected the first two installments to be marked paid")
	}

	if len(schedule.Progress) != 1 {
		t.Fatalf("expected 1 progress entry, but got %d", len(schedule.Progress))
	}
	progress := schedule.Progress[0]
	if progress.EquipmentID != "equip-1" {
		t.Errorf("expected equipment id 'equip-1', but got '%s'", progress.EquipmentID)
	}
	if !progress.TotalObligation.Equal(dec("16437.5")) {
		t.Errorf("expected total obligation 16437.5, but got %s", progress.TotalObligation)
	}
	if !progress.PaidAmount.Equal(dec("2406.25")) {
		t.Errorf("expected paid amount 2406.25, but got %s", progress.PaidAmount)
	}

	// 16437.5 - 5000 - 2406.25
	if !schedule.TotalBalance.Equal(dec("9031.25")) {
		t.Errorf("expected total balance 9031.25, but got %s", schedule.TotalBalance)
	}

	if schedule.NextDue == nil {
		t.Fatal("expected next due date")
	}
	expectedNext := createdAt.AddDate(0, 0, 45)
	if !schedule.NextDue.Equal(expectedNext) {
		t.Errorf("expected next due %v, but got %v", expectedNext, schedule.NextDue)
	}
}

func TestClientScheduleBalanceFlooredAtZero(t *testing.T) {
	createdAt := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	requests := &mockRequestRepository{
		listApprovedByClientFunc: func(ctx context.Context, clientID string) ([]*types.FinancingRequest, error) {
			return []*types.FinancingRequest{approvedClientRequest("req-1", createdAt)}, nil
		},
	}
	payments := &mockPaymentRepository{
		listByClientFunc: func(ctx context.Context, clientID string) ([]*types.Payment, error) {
			return []*types.Payment{payment("req-1", "20000", createdAt)}, nil
		},
	}

	svc := newScheduleService(t, &mockClientRepository{}, requests, &mockEquipmentRepository{}, payments)

	schedule, err := svc.ClientSchedule(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !schedule.TotalBalance.Equal(decimal.Zero) {
		t.Errorf("expected overpaid balance floored at zero, but got %s", schedule.TotalBalance)
	}
	if schedule.NextDue != nil {
		t.Errorf("expected no next due when everything is paid, but got %v", schedule.NextDue)
	}
}

func TestClientScheduleAggregatesAcrossRequests(t *testing.T) {
	first := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	requests := &mockRequestRepository{
		listApprovedByClientFunc: func(ctx context.Context, clientID string) ([]*types.FinancingRequest, error) {
			return []*types.FinancingRequest{
				approvedClientRequest("req-1", first),
				approvedClientRequest("req-2", second),
			}, nil
		},
	}
	payments := &mockPaymentRepository{
		listByClientFunc: func(ctx context.Context, clientID string) ([]*types.Payment, error) {
			return []*types.Payment{payment("req-2", "1906.25", second.AddDate(0, 0, 15))}, nil
		},
	}

	svc := newScheduleService(t, &mockClientRepository{}, requests, &mockEquipmentRepository{}, payments)

	schedule, err := svc.ClientSchedule(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(schedule.Items) != 12 {
		t.Errorf("expected 12 schedule items, but got %d", len(schedule.Items))
	}
	// 2 * 16437.5 - 2 * 5000 - 1906.25
	if !schedule.TotalBalance.Equal(dec("20968.75")) {
		t.Errorf("expected total balance 20968.75, but got %s", schedule.TotalBalance)
	}
	// Earliest pending slot across both requests is the first request's
	// first installment.
	if schedule.NextDue == nil || !schedule.NextDue.Equal(first.AddDate(0, 0, 15)) {
		t.Errorf("expected next due %v, but got %v", first.AddDate(0, 0, 15), schedule.NextDue)
	}
}

func TestClientScheduleSkipsMalformedRequests(t *testing.T) {
	createdAt := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	broken := approvedClientRequest("req-broken", createdAt)
	broken.InstallmentCount = -3

	requests := &mockRequestRepository{
		listApprovedByClientFunc: func(ctx context.Context, clientID string) ([]*types.FinancingRequest, error) {
			return []*types.FinancingRequest{broken, approvedClientRequest("req-1", createdAt)}, nil
		},
	}

	svc := newScheduleService(t, &mockClientRepository{}, requests, &mockEquipmentRepository{}, &mockPaymentRepository{})

	schedule, err := svc.ClientSchedule(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("expected malformed row to be skipped, but got %v", err)
	}
	if len(schedule.Progress) != 1 {
		t.Errorf("expected 1 progress entry, but got %d", len(schedule.Progress))
	}
	if len(schedule.Items) != 6 {
		t.Errorf("expected 6 schedule items, but got %d", len(schedule.Items))
	}
}

func TestClientScheduleToleratesEquipmentFailure(t *testing.T) {
	createdAt := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	requests := &mockRequestRepository{
		listApprovedByClientFunc: func(ctx context.Context, clientID string) ([]*types.FinancingRequest, error) {
			return []*types.FinancingRequest{approvedClientRequest("req-1", createdAt)}, nil
		},
	}
	equipment := &mockEquipmentRepository{
		listByClientFunc: func(ctx context.Context, clientID string) ([]*types.Equipment, error) {
			return nil, errors.New("connection refused")
		},
	}

	svc := newScheduleService(t, &mockClientRepository{}, requests, equipment, &mockPaymentRepository{})

	schedule, err := svc.ClientSchedule(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("expected schedule despite equipment failure, but got %v", err)
	}
	if len(schedule.Progress) != 1 {
		t.Fatalf("expected 1 progress entry, but got %d", len(schedule.Progress))
	}
	if schedule.Progress[0].EquipmentID != "" {
		t.Errorf("expected empty equipment id, but got '%s'", schedule.Progress[0].EquipmentID)
	}
}

func TestClientScheduleUnknownClient(t *testing.T) {
	clients := &mockClientRepository{
		getByIDFunc: func(ctx context.Context, id string) (*types.Client, error) {
			return nil, nil
		},
	}

	svc := newScheduleService(t, clients, &mockRequestRepository{}, &mockEquipmentRepository{}, &mockPaymentRepository{})

	_, err := svc.ClientSchedule(context.Background(), "missing")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, but got %v", err)
	}
}

func TestClientScheduleEmptyClientID(t *testing.T) {
	svc := newScheduleService(t, &mockClientRepository{}, &mockRequestRepository{}, &mockEquipmentRepository{}, &mockPaymentRepository{})

	_, err := svc.ClientSchedule(context.Background(), "")
	var validationErr *errs.ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("expected ValidationError, but got %T: %v", err, err)
	}
}
