package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionStatusAwaitingSelfie   SessionStatus = "awaiting_selfie"
	SessionStatusAwaitingDecision SessionStatus = "awaiting_decision"
	SessionStatusCompleted        SessionStatus = "completed"
	SessionStatusFailed           SessionStatus = "failed"
)

// Terminal reports whether the session can no longer change state.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending_approval"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// VerifiedIdentity holds the identity fields extracted from a government ID
// by the external verifier. Only a passed verification produces one.
type VerifiedIdentity struct {
	FullName   string `json:"full_name"`
	NationalID string `json:"national_id"`
	BirthDate  string `json:"birth_date"`
}

// VerificationResult is the structured outcome of one verifier call,
// persisted verbatim on the session once it reaches a terminal state.
type VerificationResult struct {
	Passed    bool              `json:"passed"`
	Identity  *VerifiedIdentity `json:"identity,omitempty"`
	RawDetail string            `json:"raw_detail,omitempty"`
}

// VerificationSession is one attempt to match a government ID photo against
// a live selfie. The id doubles as the bearer token in the handoff URL.
type VerificationSession struct {
	ID             string              `json:"id" db:"id"`
	NationalID     string              `json:"national_id" db:"national_id"`
	IDImageRef     string              `json:"id_image_ref" db:"id_image_ref"`
	SelfieImageRef *string             `json:"selfie_image_ref,omitempty" db:"selfie_image_ref"`
	Status         SessionStatus       `json:"status" db:"status"`
	Result         *VerificationResult `json:"result,omitempty" db:"result"`
	FailureReason  *string             `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
}

// Client is an account. The national id is the sole business key; the id is
// a storage surrogate and must never be used to identify a person.
type Client struct {
	ID         string    `json:"id" db:"id"`
	NationalID string    `json:"national_id" db:"national_id"`
	FullName   string    `json:"full_name" db:"full_name"`
	Email      string    `json:"email" db:"email"`
	Phone      string    `json:"phone" db:"phone"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// FinancingRequest is a single application to buy an item on installments.
// ClientID stays nil until the account resolver links it.
type FinancingRequest struct {
	ID                 string          `json:"id" db:"id"`
	ClientID           *string         `json:"client_id,omitempty" db:"client_id"`
	NationalID         string          `json:"national_id" db:"national_id"`
	ItemType           string          `json:"item_type" db:"item_type"`
	ItemValue          decimal.Decimal `json:"item_value" db:"item_value"`
	DownPaymentPercent decimal.Decimal `json:"down_payment_percent" db:"down_payment_percent"`
	DownPaymentAmount  decimal.Decimal `json:"down_payment_amount" db:"down_payment_amount"`
	FinancedAmount     decimal.Decimal `json:"financed_amount" db:"financed_amount"`
	InterestRate       decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	InstallmentCount   int             `json:"installment_count" db:"installment_count"`
	InstallmentAmount  decimal.Decimal `json:"installment_amount" db:"installment_amount"`
	Status             RequestStatus   `json:"status" db:"status"`
	DeviceIMEI         string          `json:"device_imei" db:"device_imei"`
	SignatureRef       *string         `json:"signature_ref,omitempty" db:"signature_ref"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// TotalObligation is the full amount the client owes for this request:
// down payment plus every installment.
func (r *FinancingRequest) TotalObligation() decimal.Decimal {
	installments := r.InstallmentAmount.Mul(decimal.NewFromInt(int64(r.InstallmentCount)))
	return r.DownPaymentAmount.Add(installments)
}

// Equipment is the financed physical item, created exactly once when its
// originating request is approved.
type Equipment struct {
	ID        string    `json:"id" db:"id"`
	ClientID  *string   `json:"client_id,omitempty" db:"client_id"`
	RequestID string    `json:"request_id" db:"request_id"`
	Name      string    `json:"name" db:"name"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Payment is an append-only ledger entry. One payment settles exactly one
// installment unit regardless of its amount or date.
type Payment struct {
	ID          string          `json:"id" db:"id"`
	ClientID    string          `json:"client_id" db:"client_id"`
	RequestID   string          `json:"request_id" db:"request_id"`
	EquipmentID string          `json:"equipment_id" db:"equipment_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Method      string          `json:"method" db:"method"`
	PaidOn      time.Time       `json:"paid_on" db:"paid_on"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Plan is the output of the amortization engine. Amounts are kept at full
// precision; rounding happens only when a plan is rendered.
type Plan struct {
	DownPayment       decimal.Decimal `json:"down_payment"`
	FinancedAmount    decimal.Decimal `json:"financed_amount"`
	TotalInterest     decimal.Decimal `json:"total_interest"`
	TotalInstallments decimal.Decimal `json:"total_installments"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
}

type InstallmentStatus string

const (
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusPending InstallmentStatus = "pending"
)

// ScheduleItem is one derived installment slot for an approved request.
type ScheduleItem struct {
	RequestID string            `json:"request_id"`
	Number    int               `json:"number"`
	DueDate   time.Time         `json:"due_date"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    InstallmentStatus `json:"status"`
}

// RequestProgress is the derived repayment state of a single request.
type RequestProgress struct {
	RequestID       string          `json:"request_id"`
	EquipmentID     string          `json:"equipment_id,omitempty"`
	TotalObligation decimal.Decimal `json:"total_obligation"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	ProgressPercent decimal.Decimal `json:"progress_percent"`
}

// ClientSchedule is the aggregate view the agent dashboard reads. Everything
// in it is recomputed from the payment ledger on every call.
type ClientSchedule struct {
	ClientID     string            `json:"client_id"`
	TotalBalance decimal.Decimal   `json:"total_balance"`
	NextDue      *time.Time        `json:"next_due,omitempty"`
	Items        []ScheduleItem    `json:"items"`
	Progress     []RequestProgress `json:"progress"`
}
