package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"financing_api/internal/errs"
	"financing_api/internal/repository"
	"financing_api/types"
)

const clientStatusActive = "active"

// ClientProfile carries the trusted identity fields used when a new account
// has to be created. Contact fields may be empty in the agent-led flow.
type ClientProfile struct {
	FullName string
	Email    string
	Phone    string
}

// ClientService is the single writer of client accounts. The national id is
// the only identity key; every creation path goes through ResolveOrCreate so
// a person can never end up with two accounts.
type ClientService interface {
	ResolveOrCreate(ctx context.Context, nationalID string, profile ClientProfile) (*types.Client, error)
	FindByNationalID(ctx context.Context, nationalID string) (*types.Client, error)
	GetClient(ctx context.Context, id string) (*types.Client, error)
	RelinkOrphans(ctx context.Context, clientID, nationalID string) (int64, error)
}

type clientService struct {
	clients  repository.ClientRepository
	requests repository.RequestRepository
	logger   *zap.Logger
}

func NewClientService(clients repository.ClientRepository, requests repository.RequestRepository, logger *zap.Logger) ClientService {
	return &clientService{
		clients:  clients,
		requests: requests,
		logger:   logger,
	}
}

func (s *clientService) ResolveOrCreate(ctx context.Context, nationalID string, profile ClientProfile) (*types.Client, error) {
	if nationalID == "" {
		return nil, errs.Validation("national_id", "cannot be empty")
	}

	existing, err := s.clients.GetByNationalID(ctx, nationalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve client: %w", err)
	}
	if existing != nil {
		s.logger.Debug("resolved existing client",
			zap.String("client_id", existing.ID),
			zap.String("national_id", nationalID))
		return existing, nil
	}

	client := &types.Client{
		ID:         uuid.New().String(),
		NationalID: nationalID,
		FullName:   profile.FullName,
		Email:      profile.Email,
		Phone:      profile.Phone,
		Status:     clientStatusActive,
	}

	if err := s.clients.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.logger.Info("client account created",
		zap.String("client_id", client.ID),
		zap.String("national_id", nationalID))

	// A new account picks up anything filed under its national id before it
	// existed. Failure here is not fatal: the relink can rerun any time.
	if _, err := s.RelinkOrphans(ctx, client.ID, nationalID); err != nil {
		s.logger.Error("failed to relink orphans for new client", zap.Error(err), zap.String("client_id", client.ID))
	}

	return client, nil
}

func (s *clientService) FindByNationalID(ctx context.Context, nationalID string) (*types.Client, error) {
	if nationalID == "" {
		return nil, errs.Validation("national_id", "cannot be empty")
	}

	client, err := s.clients.GetByNationalID(ctx, nationalID)
	if err != nil {
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	return client, nil
}

func (s *clientService) GetClient(ctx context.Context, id string) (*types.Client, error) {
	if id == "" {
		return nil, errs.Validation("client_id", "cannot be empty")
	}

	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("client %s: %w", id, errs.ErrNotFound)
	}
	return client, nil
}

func (s *clientService) RelinkOrphans(ctx context.Context, clientID, nationalID string) (int64, error) {
	if clientID == "" || nationalID == "" {
		return 0, errs.Validation("client_id/national_id", "cannot be empty")
	}

	linked, err := s.requests.RelinkOrphans(ctx, clientID, nationalID)
	if err != nil {
		return 0, fmt.Errorf("failed to relink orphans: %w", err)
	}

	if linked > 0 {
		s.logger.Info("orphaned records relinked",
			zap.String("client_id", clientID),
			zap.String("national_id", nationalID),
			zap.Int64("linked", linked))
	}
	return linked, nil
}
