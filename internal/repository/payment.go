package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"financing_api/types"
)

// PaymentRepository is an append-only ledger. There is deliberately no
// update or delete.
type PaymentRepository interface {
	Create(ctx context.Context, payment *types.Payment) error
	ListByClient(ctx context.Context, clientID string) ([]*types.Payment, error)
}

type paymentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPaymentRepository(db *pgxpool.Pool, logger *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, payment *types.Payment) error {
	query := `
		INSERT INTO payments (id, client_id, request_id, equipment_id, amount, method, paid_on, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`

	_, err := r.db.Exec(ctx, query, payment.ID, payment.ClientID, payment.RequestID,
		payment.EquipmentID, payment.Amount.String(), payment.Method, payment.PaidOn)
	if err != nil {
		r.logger.Error("failed to create payment", zap.Error(err), zap.String("request_id", payment.RequestID))
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// ListByClient returns the client's payments in creation order, which is the
// order the reconciler uses to settle installment slots.
func (r *paymentRepository) ListByClient(ctx context.Context, clientID string) ([]*types.Payment, error) {
	query := `
		SELECT id, client_id, request_id, equipment_id, amount::text, method, paid_on, created_at
		FROM payments
		WHERE client_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		r.logger.Error("failed to list payments", zap.Error(err), zap.String("client_id", clientID))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*types.Payment
	for rows.Next() {
		var payment types.Payment
		var amount string
		err := rows.Scan(&payment.ID, &payment.ClientID, &payment.RequestID,
			&payment.EquipmentID, &amount, &payment.Method, &payment.PaidOn, &payment.CreatedAt)
		if err != nil {
			r.logger.Error("failed to scan payment", zap.Error(err))
			continue
		}

		payment.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			r.logger.Error("failed to parse payment amount", zap.Error(err), zap.String("amount", amount))
			continue
		}
		payments = append(payments, &payment)
	}

	return payments, nil
}
