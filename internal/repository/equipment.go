package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"financing_api/types"
)

type EquipmentRepository interface {
	GetByRequestID(ctx context.Context, requestID string) (*types.Equipment, error)
	ListByClient(ctx context.Context, clientID string) ([]*types.Equipment, error)
}

type equipmentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewEquipmentRepository(db *pgxpool.Pool, logger *zap.Logger) EquipmentRepository {
	return &equipmentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *equipmentRepository) GetByRequestID(ctx context.Context, requestID string) (*types.Equipment, error) {
	query := `
		SELECT id, client_id, request_id, name, status, created_at
		FROM equipment
		WHERE request_id = $1
	`

	var equipment types.Equipment
	err := r.db.QueryRow(ctx, query, requestID).
		Scan(&equipment.ID, &equipment.ClientID, &equipment.RequestID,
			&equipment.Name, &equipment.Status, &equipment.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("failed to get equipment", zap.Error(err), zap.String("request_id", requestID))
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}

	return &equipment, nil
}

func (r *equipmentRepository) ListByClient(ctx context.Context, clientID string) ([]*types.Equipment, error) {
	query := `
		SELECT id, client_id, request_id, name, status, created_at
		FROM equipment
		WHERE client_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		r.logger.Error("failed to list equipment", zap.Error(err), zap.String("client_id", clientID))
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	defer rows.Close()

	var items []*types.Equipment
	for rows.Next() {
		var equipment types.Equipment
		err := rows.Scan(&equipment.ID, &equipment.ClientID, &equipment.RequestID,
			&equipment.Name, &equipment.Status, &equipment.CreatedAt)
		if err != nil {
			r.logger.Error("failed to scan equipment", zap.Error(err))
			continue
		}
		items = append(items, &equipment)
	}

	return items, nil
}
