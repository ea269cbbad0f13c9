package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"financing_api/internal/docstore"
	"financing_api/internal/errs"
	"financing_api/internal/service"
	"financing_api/types"
)

// Image uploads larger than this are rejected before they hit the docstore.
const maxUploadBytes = 10 << 20

// Handler owns the HTTP surface. The /api routes serve the agent desk, the
// /verify route serves the client's own device and deliberately leaks nothing
// about the verification outcome.
type Handler struct {
	sessions      service.SessionService
	requests      service.RequestService
	clients       service.ClientService
	schedules     service.ScheduleService
	payments      service.PaymentService
	docs          docstore.Store
	publicBaseURL string
	logger        *zap.Logger
}

func NewHandler(
	sessions service.SessionService,
	requests service.RequestService,
	clients service.ClientService,
	schedules service.ScheduleService,
	payments service.PaymentService,
	docs docstore.Store,
	publicBaseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions:      sessions,
		requests:      requests,
		clients:       clients,
		schedules:     schedules,
		payments:      payments,
		docs:          docs,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.health).Methods("GET")

	r.HandleFunc("/api/verifications", h.createVerification).Methods("POST")
	r.HandleFunc("/api/verifications/{sessionId}", h.getVerification).Methods("GET")
	r.HandleFunc("/verify/{sessionId}", h.submitSelfie).Methods("POST")

	r.HandleFunc("/api/requests", h.createRequest).Methods("POST")
	r.HandleFunc("/api/requests/{requestId}", h.getRequest).Methods("GET")
	r.HandleFunc("/api/requests/{requestId}/approve", h.approveRequest).Methods("POST")
	r.HandleFunc("/api/requests/{requestId}/reject", h.rejectRequest).Methods("POST")

	r.HandleFunc("/api/clients", h.findClient).Methods("GET")
	r.HandleFunc("/api/clients/{clientId}/schedule", h.clientSchedule).Methods("GET")

	r.HandleFunc("/api/payments", h.recordPayment).Methods("POST")

	r.HandleFunc("/files/{ref}", h.serveFile).Methods("GET")

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type verificationResponse struct {
	SessionID     string                    `json:"session_id"`
	Status        types.SessionStatus       `json:"status"`
	HandoffURL    string                    `json:"handoff_url,omitempty"`
	Result        *types.VerificationResult `json:"result,omitempty"`
	FailureReason *string                   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

func (h *Handler) verificationView(session *types.VerificationSession, includeHandoff bool) verificationResponse {
	resp := verificationResponse{
		SessionID:     session.ID,
		Status:        session.Status,
		Result:        session.Result,
		FailureReason: session.FailureReason,
		CreatedAt:     session.CreatedAt,
	}
	if includeHandoff && !session.Status.Terminal() {
		resp.HandoffURL = fmt.Sprintf("%s/verify/%s", h.publicBaseURL, session.ID)
	}
	return resp
}

func (h *Handler) createVerification(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.respondError(w, errs.Validation("body", "expected multipart form data"))
		return
	}

	nationalID := r.FormValue("national_id")
	idImage, _, err := r.FormFile("id_image")
	if err != nil {
		h.respondError(w, errs.Validation("id_image", "file is required"))
		return
	}
	defer idImage.Close()

	session, err := h.sessions.CreateSession(r.Context(), nationalID, idImage)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, h.verificationView(session, true))
}

func (h *Handler) getVerification(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	session, err := h.sessions.GetStatus(r.Context(), sessionID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, h.verificationView(session, true))
}

// submitSelfie is the only endpoint the client's own device calls. Whatever
// the verifier decided, the device gets a bare acknowledgement; the outcome
// is only visible to the agent through getVerification.
func (h *Handler) submitSelfie(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.respondError(w, errs.Validation("body", "expected multipart form data"))
		return
	}

	selfie, _, err := r.FormFile("face_image")
	if err != nil {
		h.respondError(w, errs.Validation("face_image", "file is required"))
		return
	}
	defer selfie.Close()

	if _, err := h.sessions.SubmitSelfie(r.Context(), sessionID, selfie); err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type createRequestBody struct {
	SessionID          string `json:"session_id"`
	NationalID         string `json:"national_id"`
	ItemType           string `json:"item_type"`
	ItemValue          string `json:"item_value"`
	DownPaymentPercent string `json:"down_payment_percent"`
	InterestRate       string `json:"interest_rate"`
	InstallmentCount   int    `json:"installment_count"`
	DeviceIMEI         string `json:"device_imei"`
	SignatureRef       string `json:"signature_ref"`
}

type requestResponse struct {
	ID                 string              `json:"id"`
	ClientID           *string             `json:"client_id,omitempty"`
	ItemType           string              `json:"item_type"`
	ItemValue          string              `json:"item_value"`
	DownPaymentPercent string              `json:"down_payment_percent"`
	DownPaymentAmount  string              `json:"down_payment_amount"`
	FinancedAmount     string              `json:"financed_amount"`
	InterestRate       string              `json:"interest_rate"`
	InstallmentCount   int                 `json:"installment_count"`
	InstallmentAmount  string              `json:"installment_amount"`
	TotalObligation    string              `json:"total_obligation"`
	Status             types.RequestStatus `json:"status"`
	CreatedAt          time.Time           `json:"created_at"`
}

func requestView(request *types.FinancingRequest) requestResponse {
	return requestResponse{
		ID:                 request.ID,
		ClientID:           request.ClientID,
		ItemType:           request.ItemType,
		ItemValue:          money(request.ItemValue),
		DownPaymentPercent: request.DownPaymentPercent.String(),
		DownPaymentAmount:  money(request.DownPaymentAmount),
		FinancedAmount:     money(request.FinancedAmount),
		InterestRate:       request.InterestRate.String(),
		InstallmentCount:   request.InstallmentCount,
		InstallmentAmount:  money(request.InstallmentAmount),
		TotalObligation:    money(request.TotalObligation()),
		Status:             request.Status,
		CreatedAt:          request.CreatedAt,
	}
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, errs.Validation("body", "invalid json"))
		return
	}
	defer r.Body.Close()

	itemValue, err := parseAmount("item_value", body.ItemValue)
	if err != nil {
		h.respondError(w, err)
		return
	}
	downPaymentPercent, err := parseAmount("down_payment_percent", body.DownPaymentPercent)
	if err != nil {
		h.respondError(w, err)
		return
	}
	interestRate, err := parseAmount("interest_rate", body.InterestRate)
	if err != nil {
		h.respondError(w, err)
		return
	}

	input := service.CreateRequestInput{
		SessionID:          body.SessionID,
		NationalID:         body.NationalID,
		ItemType:           body.ItemType,
		ItemValue:          itemValue,
		DownPaymentPercent: downPaymentPercent,
		InterestRate:       interestRate,
		InstallmentCount:   body.InstallmentCount,
		DeviceIMEI:         body.DeviceIMEI,
	}
	if body.SignatureRef != "" {
		input.SignatureRef = &body.SignatureRef
	}

	request, err := h.requests.CreateRequest(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, requestView(request))
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]

	request, err := h.requests.GetRequest(r.Context(), requestID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, requestView(request))
}

func (h *Handler) approveRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, h.requests.Approve)
}

func (h *Handler) rejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, h.requests.Reject)
}

func (h *Handler) decideRequest(w http.ResponseWriter, r *http.Request, decide func(ctx context.Context, id string) error) {
	requestID := mux.Vars(r)["requestId"]

	if err := decide(r.Context(), requestID); err != nil {
		h.respondError(w, err)
		return
	}

	request, err := h.requests.GetRequest(r.Context(), requestID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, requestView(request))
}

func (h *Handler) findClient(w http.ResponseWriter, r *http.Request) {
	nationalID := r.URL.Query().Get("national_id")
	if nationalID == "" {
		h.respondError(w, errs.Validation("national_id", "query parameter is required"))
		return
	}

	client, err := h.clients.FindByNationalID(r.Context(), nationalID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if client == nil {
		h.respondError(w, fmt.Errorf("client with national id: %w", errs.ErrNotFound))
		return
	}

	h.respondJSON(w, http.StatusOK, client)
}

type scheduleItemResponse struct {
	RequestID string                  `json:"request_id"`
	Number    int                     `json:"number"`
	DueDate   string                  `json:"due_date"`
	Amount    string                  `json:"amount"`
	Status    types.InstallmentStatus `json:"status"`
}

type progressResponse struct {
	RequestID       string `json:"request_id"`
	EquipmentID     string `json:"equipment_id,omitempty"`
	TotalObligation string `json:"total_obligation"`
	PaidAmount      string `json:"paid_amount"`
	ProgressPercent string `json:"progress_percent"`
}

type scheduleResponse struct {
	ClientID     string                 `json:"client_id"`
	TotalBalance string                 `json:"total_balance"`
	NextDue      *string                `json:"next_due,omitempty"`
	Items        []scheduleItemResponse `json:"items"`
	Progress     []progressResponse     `json:"progress"`
}

func (h *Handler) clientSchedule(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	schedule, err := h.schedules.ClientSchedule(r.Context(), clientID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := scheduleResponse{
		ClientID:     schedule.ClientID,
		TotalBalance: money(schedule.TotalBalance),
		Items:        make([]scheduleItemResponse, 0, len(schedule.Items)),
		Progress:     make([]progressResponse, 0, len(schedule.Progress)),
	}
	if schedule.NextDue != nil {
		due := schedule.NextDue.Format("2006-01-02")
		resp.NextDue = &due
	}
	for _, item := range schedule.Items {
		resp.Items = append(resp.Items, scheduleItemResponse{
			RequestID: item.RequestID,
			Number:    item.Number,
			DueDate:   item.DueDate.Format("2006-01-02"),
			Amount:    money(item.Amount),
			Status:    item.Status,
		})
	}
	for _, p := range schedule.Progress {
		resp.Progress = append(resp.Progress, progressResponse{
			RequestID:       p.RequestID,
			EquipmentID:     p.EquipmentID,
			TotalObligation: money(p.TotalObligation),
			PaidAmount:      money(p.PaidAmount),
			ProgressPercent: p.ProgressPercent.StringFixedBank(2),
		})
	}

	h.respondJSON(w, http.StatusOK, resp)
}

type recordPaymentBody struct {
	RequestID string `json:"request_id"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	PaidOn    string `json:"paid_on"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var body recordPaymentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, errs.Validation("body", "invalid json"))
		return
	}
	defer r.Body.Close()

	amount, err := parseAmount("amount", body.Amount)
	if err != nil {
		h.respondError(w, err)
		return
	}

	input := service.RecordPaymentInput{
		RequestID: body.RequestID,
		Amount:    amount,
		Method:    body.Method,
	}
	if body.PaidOn != "" {
		paidOn, err := time.Parse("2006-01-02", body.PaidOn)
		if err != nil {
			h.respondError(w, errs.Validation("paid_on", "expected YYYY-MM-DD"))
			return
		}
		input.PaidOn = paidOn
	}

	payment, err := h.payments.RecordPayment(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, payment)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]

	file, err := h.docs.Open(r.Context(), ref)
	if err != nil {
		h.respondError(w, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, file); err != nil {
		h.logger.Warn("failed to stream stored file", zap.Error(err), zap.String("ref", ref))
	}
}

// money renders an amount at the presentation boundary. Internal math stays
// at full precision; only responses are rounded.
func money(d decimal.Decimal) string {
	return d.StringFixedBank(2)
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, errs.Validation(field, "cannot be empty")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errs.Validationf(field, "invalid amount %q", raw)
	}
	return d, nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var validationErr *errs.ValidationError
	var conflictErr *errs.StateConflictError
	var guardErr *errs.ConsistencyGuardError
	var externalErr *errs.ExternalServiceError

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		message = validationErr.Error()
	case errors.As(err, &conflictErr):
		status = http.StatusConflict
		message = conflictErr.Error()
	case errors.As(err, &guardErr):
		status = http.StatusUnprocessableEntity
		message = guardErr.Error()
	case errors.As(err, &externalErr):
		status = http.StatusBadGateway
		message = "verification provider unavailable"
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
		message = "not found"
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	} else {
		h.logger.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}

	h.respondJSON(w, status, map[string]string{"error": message})
}
