package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"financing_api/types"
)

// ErrNotPending is returned when a conditional status transition finds the
// request already decided.
var ErrNotPending = errors.New("financing request is not pending approval")

type RequestRepository interface {
	Create(ctx context.Context, request *types.FinancingRequest) error
	GetByID(ctx context.Context, id string) (*types.FinancingRequest, error)
	ListApprovedByClient(ctx context.Context, clientID string) ([]*types.FinancingRequest, error)
	// ApproveWithEquipment flips the request to approved and creates its
	// equipment row in one transaction. Either both land or neither does.
	ApproveWithEquipment(ctx context.Context, requestID, clientID string, equipment *types.Equipment) error
	Reject(ctx context.Context, requestID string) error
	RelinkOrphans(ctx context.Context, clientID, nationalID string) (int64, error)
}

type requestRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewRequestRepository(db *pgxpool.Pool, logger *zap.Logger) RequestRepository {
	return &requestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `id, client_id, national_id, item_type, item_value::text,
	down_payment_percent::text, down_payment_amount::text, financed_amount::text,
	interest_rate::text, installment_count, installment_amount::text,
	status, device_imei, signature_ref, created_at`

func scanRequest(row pgx.Row) (*types.FinancingRequest, error) {
	var request types.FinancingRequest
	var itemValue, downPercent, downAmount, financed, rate, installment string
	err := row.Scan(&request.ID, &request.ClientID, &request.NationalID, &request.ItemType,
		&itemValue, &downPercent, &downAmount, &financed, &rate,
		&request.InstallmentCount, &installment, &request.Status,
		&request.DeviceIMEI, &request.SignatureRef, &request.CreatedAt)
	if err != nil {
		return nil, err
	}

	for dst, src := range map[*decimal.Decimal]string{
		&request.ItemValue:          itemValue,
		&request.DownPaymentPercent: downPercent,
		&request.DownPaymentAmount:  downAmount,
		&request.FinancedAmount:     financed,
		&request.InterestRate:       rate,
		&request.InstallmentAmount:  installment,
	} {
		d, err := decimal.NewFromString(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", src, err)
		}
		*dst = d
	}

	return &request, nil
}

func (r *requestRepository) Create(ctx context.Context, request *types.FinancingRequest) error {
	query := `
		INSERT INTO financing_requests (
			id, client_id, national_id, item_type, item_value,
			down_payment_percent, down_payment_amount, financed_amount,
			interest_rate, installment_count, installment_amount,
			status, device_imei, signature_ref, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
	`

	_, err := r.db.Exec(ctx, query,
		request.ID, request.ClientID, request.NationalID, request.ItemType,
		request.ItemValue.String(), request.DownPaymentPercent.String(),
		request.DownPaymentAmount.String(), request.FinancedAmount.String(),
		request.InterestRate.String(), request.InstallmentCount,
		request.InstallmentAmount.String(), request.Status,
		request.DeviceIMEI, request.SignatureRef)
	if err != nil {
		r.logger.Error("failed to create financing request", zap.Error(err), zap.String("id", request.ID))
		return fmt.Errorf("failed to create financing request: %w", err)
	}

	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*types.FinancingRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM financing_requests WHERE id = $1`

	request, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("failed to get financing request", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to get financing request: %w", err)
	}

	return request, nil
}

func (r *requestRepository) ListApprovedByClient(ctx context.Context, clientID string) ([]*types.FinancingRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM financing_requests
		WHERE client_id = $1 AND status = $2
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, clientID, types.RequestStatusApproved)
	if err != nil {
		r.logger.Error("failed to list approved requests", zap.Error(err), zap.String("client_id", clientID))
		return nil, fmt.Errorf("failed to list approved requests: %w", err)
	}
	defer rows.Close()

	var requests []*types.FinancingRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			r.logger.Error("failed to scan financing request", zap.Error(err))
			continue
		}
		requests = append(requests, request)
	}

	return requests, nil
}

func (r *requestRepository) ApproveWithEquipment(ctx context.Context, requestID, clientID string, equipment *types.Equipment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("failed to begin approval transaction", zap.Error(err), zap.String("request_id", requestID))
		return fmt.Errorf("failed to begin approval transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	updateQuery := `
		UPDATE financing_requests
		SET status = $2, client_id = $3
		WHERE id = $1 AND status = $4
	`

	tag, err := tx.Exec(ctx, updateQuery, requestID, types.RequestStatusApproved, clientID, types.RequestStatusPending)
	if err != nil {
		r.logger.Error("failed to approve financing request", zap.Error(err), zap.String("request_id", requestID))
		return fmt.Errorf("failed to approve financing request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}

	insertQuery := `
		INSERT INTO equipment (id, client_id, request_id, name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`

	_, err = tx.Exec(ctx, insertQuery, equipment.ID, equipment.ClientID, equipment.RequestID,
		equipment.Name, equipment.Status)
	if err != nil {
		r.logger.Error("failed to create equipment", zap.Error(err), zap.String("request_id", requestID))
		return fmt.Errorf("failed to create equipment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("failed to commit approval transaction", zap.Error(err), zap.String("request_id", requestID))
		return fmt.Errorf("failed to commit approval transaction: %w", err)
	}

	return nil
}

func (r *requestRepository) Reject(ctx context.Context, requestID string) error {
	query := `
		UPDATE financing_requests
		SET status = $2
		WHERE id = $1 AND status = $3
	`

	tag, err := r.db.Exec(ctx, query, requestID, types.RequestStatusRejected, types.RequestStatusPending)
	if err != nil {
		r.logger.Error("failed to reject financing request", zap.Error(err), zap.String("request_id", requestID))
		return fmt.Errorf("failed to reject financing request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}

	return nil
}

// RelinkOrphans attaches requests and their equipment created under a
// national id before the client account existed. Already linked rows match
// nothing, so repeated runs are no-ops.
func (r *requestRepository) RelinkOrphans(ctx context.Context, clientID, nationalID string) (int64, error) {
	requestQuery := `
		UPDATE financing_requests
		SET client_id = $1
		WHERE national_id = $2 AND client_id IS NULL
	`

	tag, err := r.db.Exec(ctx, requestQuery, clientID, nationalID)
	if err != nil {
		r.logger.Error("failed to relink orphaned requests", zap.Error(err), zap.String("national_id", nationalID))
		return 0, fmt.Errorf("failed to relink orphaned requests: %w", err)
	}
	linked := tag.RowsAffected()

	equipmentQuery := `
		UPDATE equipment e
		SET client_id = $1
		FROM financing_requests fr
		WHERE e.request_id = fr.id AND fr.national_id = $2 AND e.client_id IS NULL
	`

	tag, err = r.db.Exec(ctx, equipmentQuery, clientID, nationalID)
	if err != nil {
		r.logger.Error("failed to relink orphaned equipment", zap.Error(err), zap.String("national_id", nationalID))
		return linked, fmt.Errorf("failed to relink orphaned equipment: %w", err)
	}

	return linked + tag.RowsAffected(), nil
}
