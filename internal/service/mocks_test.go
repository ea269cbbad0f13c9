package service

import (
	"context"
	"io"
	"strings"
	"time"

	"financing_api/internal/messaging"
	"financing_api/types"
)

// Mocks for the repository and collaborator interfaces, one func field per
// method so each test overrides only what it needs.

type mockSessionRepository struct {
	createFunc       func(ctx context.Context, session *types.VerificationSession) error
	getByIDFunc      func(ctx context.Context, id string) (*types.VerificationSession, error)
	markDecidingFunc func(ctx context.Context, id, selfieRef string) (bool, error)
	completeFunc     func(ctx context.Context, id string, result *types.VerificationResult) error
	failFunc         func(ctx context.Context, id, reason string) error
}

func (m *mockSessionRepository) Create(ctx context.Context, session *types.VerificationSession) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, session)
	}
	return nil
}

func (m *mockSessionRepository) GetByID(ctx context.Context, id string) (*types.VerificationSession, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepository) MarkDeciding(ctx context.Context, id, selfieRef string) (bool, error) {
	if m.markDecidingFunc != nil {
		return m.markDecidingFunc(ctx, id, selfieRef)
	}
	return true, nil
}

func (m *mockSessionRepository) Complete(ctx context.Context, id string, result *types.VerificationResult) error {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, id, result)
	}
	return nil
}

func (m *mockSessionRepository) Fail(ctx context.Context, id, reason string) error {
	if m.failFunc != nil {
		return m.failFunc(ctx, id, reason)
	}
	return nil
}

func (m *mockSessionRepository) ListStaleOpen(ctx context.Context, olderThan time.Duration) ([]*types.VerificationSession, error) {
	return nil, nil
}

type mockClientRepository struct {
	createFunc          func(ctx context.Context, client *types.Client) error
	getByIDFunc         func(ctx context.Context, id string) (*types.Client, error)
	getByNationalIDFunc func(ctx context.Context, nationalID string) (*types.Client, error)
}

func (m *mockClientRepository) Create(ctx context.Context, client *types.Client) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, client)
	}
	return nil
}

func (m *mockClientRepository) GetByID(ctx context.Context, id string) (*types.Client, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockClientRepository) GetByNationalID(ctx context.Context, nationalID string) (*types.Client, error) {
	if m.getByNationalIDFunc != nil {
		return m.getByNationalIDFunc(ctx, nationalID)
	}
	return nil, nil
}

type mockRequestRepository struct {
	createFunc               func(ctx context.Context, request *types.FinancingRequest) error
	getByIDFunc              func(ctx context.Context, id string) (*types.FinancingRequest, error)
	listApprovedByClientFunc func(ctx context.Context, clientID string) ([]*types.FinancingRequest, error)
	approveWithEquipmentFunc func(ctx context.Context, requestID, clientID string, equipment *types.Equipment) error
	rejectFunc               func(ctx context.Context, requestID string) error
	relinkOrphansFunc        func(ctx context.Context, clientID, nationalID string) (int64, error)
}

func (m *mockRequestRepository) Create(ctx context.Context, request *types.FinancingRequest) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, request)
	}
	return nil
}

func (m *mockRequestRepository) GetByID(ctx context.Context, id string) (*types.FinancingRequest, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockRequestRepository) ListApprovedByClient(ctx context.Context, clientID string) ([]*types.FinancingRequest, error) {
	if m.listApprovedByClientFunc != nil {
		return m.listApprovedByClientFunc(ctx, clientID)
	}
	return nil, nil
}

func (m *mockRequestRepository) ApproveWithEquipment(ctx context.Context, requestID, clientID string, equipment *types.Equipment) error {
	if m.approveWithEquipmentFunc != nil {
		return m.approveWithEquipmentFunc(ctx, requestID, clientID, equipment)
	}
	return nil
}

func (m *mockRequestRepository) Reject(ctx context.Context, requestID string) error {
	if m.rejectFunc != nil {
		return m.rejectFunc(ctx, requestID)
	}
	return nil
}

func (m *mockRequestRepository) RelinkOrphans(ctx context.Context, clientID, nationalID string) (int64, error) {
	if m.relinkOrphansFunc != nil {
		return m.relinkOrphansFunc(ctx, clientID, nationalID)
	}
	return 0, nil
}

type mockEquipmentRepository struct {
	getByRequestIDFunc func(ctx context.Context, requestID string) (*types.Equipment, error)
	listByClientFunc   func(ctx context.Context, clientID string) ([]*types.Equipment, error)
}

func (m *mockEquipmentRepository) GetByRequestID(ctx context.Context, requestID string) (*types.Equipment, error) {
	if m.getByRequestIDFunc != nil {
		return m.getByRequestIDFunc(ctx, requestID)
	}
	return nil, nil
}

func (m *mockEquipmentRepository) ListByClient(ctx context.Context, clientID string) ([]*types.Equipment, error) {
	if m.listByClientFunc != nil {
		return m.listByClientFunc(ctx, clientID)
	}
	return nil, nil
}

type mockPaymentRepository struct {
	createFunc       func(ctx context.Context, payment *types.Payment) error
	listByClientFunc func(ctx context.Context, clientID string) ([]*types.Payment, error)
}

func (m *mockPaymentRepository) Create(ctx context.Context, payment *types.Payment) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, payment)
	}
	return nil
}

func (m *mockPaymentRepository) ListByClient(ctx context.Context, clientID string) ([]*types.Payment, error) {
	if m.listByClientFunc != nil {
		return m.listByClientFunc(ctx, clientID)
	}
	return nil, nil
}

type mockVerifier struct {
	verifyFunc func(ctx context.Context, nationalID string, idImage, faceImage io.Reader) (*types.VerificationResult, error)
}

func (m *mockVerifier) Verify(ctx context.Context, nationalID string, idImage, faceImage io.Reader) (*types.VerificationResult, error) {
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, nationalID, idImage, faceImage)
	}
	return &types.VerificationResult{Passed: true}, nil
}

type mockDocStore struct {
	saveFunc func(ctx context.Context, kind string, r io.Reader) (string, error)
	openFunc func(ctx context.Context, ref string) (io.ReadCloser, error)
}

func (m *mockDocStore) Save(ctx context.Context, kind string, r io.Reader) (string, error) {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, kind, r)
	}
	return kind + "-ref", nil
}

func (m *mockDocStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if m.openFunc != nil {
		return m.openFunc(ctx, ref)
	}
	return io.NopCloser(strings.NewReader("image")), nil
}

type mockPublisher struct {
	publishSessionCompletedFunc func(ctx context.Context, session *types.VerificationSession) error
	publishRequestDecidedFunc   func(ctx context.Context, request *types.FinancingRequest) error
}

func (m *mockPublisher) PublishSessionCompleted(ctx context.Context, session *types.VerificationSession) error {
	if m.publishSessionCompletedFunc != nil {
		return m.publishSessionCompletedFunc(ctx, session)
	}
	return nil
}

func (m *mockPublisher) PublishRequestDecided(ctx context.Context, request *types.FinancingRequest) error {
	if m.publishRequestDecidedFunc != nil {
		return m.publishRequestDecidedFunc(ctx, request)
	}
	return nil
}

func (m *mockPublisher) SubscribeToSessionCompleted(ctx context.Context, handler func(*messaging.SessionCompletedMessage)) error {
	return nil
}

func (m *mockPublisher) Close() {}

func strPtr(s string) *string { return &s }
