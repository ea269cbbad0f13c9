package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"financing_api/types"
)

type ClientRepository interface {
	Create(ctx context.Context, client *types.Client) error
	GetByID(ctx context.Context, id string) (*types.Client, error)
	GetByNationalID(ctx context.Context, nationalID string) (*types.Client, error)
}

type clientRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewClientRepository(db *pgxpool.Pool, logger *zap.Logger) ClientRepository {
	return &clientRepository{
		db:     db,
		logger: logger,
	}
}

func (r *clientRepository) Create(ctx context.Context, client *types.Client) error {
	query := `
		INSERT INTO clients (id, national_id, full_name, email, phone, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`

	_, err := r.db.Exec(ctx, query, client.ID, client.NationalID, client.FullName,
		client.Email, client.Phone, client.Status)
	if err != nil {
		r.logger.Error("failed to create client", zap.Error(err), zap.String("national_id", client.NationalID))
		return fmt.Errorf("failed to create client: %w", err)
	}

	return nil
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*types.Client, error) {
	query := `
		SELECT id, national_id, full_name, email, phone, status, created_at
		FROM clients
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

func (r *clientRepository) GetByNationalID(ctx context.Context, nationalID string) (*types.Client, error) {
	query := `
		SELECT id, national_id, full_name, email, phone, status, created_at
		FROM clients
		WHERE national_id = $1
	`
	return r.getOne(ctx, query, nationalID)
}

func (r *clientRepository) getOne(ctx context.Context, query string, arg any) (*types.Client, error) {
	var client types.Client
	err := r.db.QueryRow(ctx, query, arg).
		Scan(&client.ID, &client.NationalID, &client.FullName, &client.Email,
			&client.Phone, &client.Status, &client.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("failed to get client", zap.Error(err))
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return &client, nil
}
