package routes

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/pixeluwjal/sanghaforms-sub002/app"
	"github.com/pixeluwjal/sanghaforms-sub002/httpx"
	"github.com/pixeluwjal/sanghaforms-sub002/log"
	"github.com/pixeluwjal/sanghaforms-sub002/model"
	"github.com/pixeluwjal/sanghaforms-sub002/store"
)

type createOrderRequest struct {
	FormID     string         `json:"formId" validate:"required"`
	ResponseID string         `json:"responseId" validate:"required"`
	Customer   model.Customer `json:"customer"`
}

// CreateOrder opens a payment record for a submitted response. The amount
// comes from the form settings, never from the client.
func CreateOrder(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := createOrderRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.ValidationFailed(w, r, "payment.create_order.validate", err)
			return
		}

		form, err := store.GetForm(r.Context(), app.DB, req.FormID)
		if errors.Is(err, store.ErrFormNotFound) {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "payment.create_order.form", "form not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}
		if !form.Settings.PaymentRequired || form.Settings.PaymentAmount <= 0 {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "payment.create_order.form", "form does not require payment")
			return
		}
		// only lead and swayamsevak rows carry the payment sub-state the
		// verify flow mirrors into; general submissions take no orders
		if form.SubmissionType == model.SubmissionGeneral {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "payment.create_order.form_type", "form does not accept payments")
			return
		}

		live, err := store.LivePaymentExists(r.Context(), app.DB, req.ResponseID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.live_payment", err)
			return
		}
		if live {
			httpx.LogStatus(w, r, http.StatusConflict, log.DebugLevel, "payment.create_order.duplicate", "an order already exists for this submission")
			return
		}

		now := time.Now()
		payment := model.Payment{
			ID:         uuid.NewString(),
			OrderID:    "order_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
			FormID:     form.ID,
			ResponseID: req.ResponseID,
			Amount:     form.Settings.PaymentAmount,
			Currency:   form.Settings.PaymentCurrency,
			Status:     model.PaymentStatusCreated,
			Customer:   req.Customer,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := store.CreatePayment(r.Context(), app.DB, payment); err != nil {
			httpx.LogInternalError(w, r, "db.insert_payment", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"success":  true,
			"orderId":  payment.OrderID,
			"amount":   payment.Amount,
			"currency": payment.Currency,
			"keyId":    app.PaymentKeyID,
		})
	}
}

// GetOrderStatus reports where an order stands, for clients polling after
// a gateway redirect.
func GetOrderStatus(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payment, err := store.GetPaymentByOrderID(r.Context(), app.DB, chi.URLParam(r, "orderId"))
		if errors.Is(err, store.ErrPaymentNotFound) {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "payment.order_status", "order not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_payment", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"success":   true,
			"orderId":   payment.OrderID,
			"status":    payment.Status,
			"paymentId": payment.PaymentID,
			"amount":    payment.Amount,
			"currency":  payment.Currency,
		})
	}
}

type verifyRequest struct {
	OrderID      string `json:"orderId" validate:"required"`
	PaymentID    string `json:"paymentId" validate:"required"`
	Signature    string `json:"signature" validate:"required"`
	SubmissionID string `json:"submissionId" validate:"required"`
}

// VerifyPayment authenticates a gateway callback by recomputing the
// HMAC-SHA256 of "orderId|paymentId" under the gateway secret. The payment
// row and the submission's payment sub-state are two independent writes
// with no shared transaction; the payment row is authoritative and the
// submission field is a best-effort mirror.
func VerifyPayment(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := verifyRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.ValidationFailed(w, r, "payment.verify.validate", err)
			return
		}

		if err := store.MarkPaymentAttempted(r.Context(), app.DB, req.OrderID); err != nil {
			log.Warnf("payment.verify.mark_attempted: %s", err)
		}

		if !signatureValid(app.PaymentSecret, req.OrderID, req.PaymentID, req.Signature) {
			reason := "signature verification failed"
			if err := store.MarkPaymentFailed(r.Context(), app.DB, req.OrderID, reason); err != nil {
				log.Errorf("payment.verify.mark_failed: %s", err)
			}
			markSubmissionFailed(r.Context(), app, req.SubmissionID, reason)
			httpx.LogStatus(w, r, http.StatusBadRequest, log.WarnLevel, "payment.verify.signature", reason)
			return
		}

		err := store.MarkPaymentSuccess(r.Context(), app.DB, req.OrderID, req.PaymentID, req.Signature)
		if err != nil {
			markSubmissionFailed(r.Context(), app, req.SubmissionID, "payment update failed")
			if errors.Is(err, store.ErrPaymentNotFound) {
				httpx.LogStatus(w, r, http.StatusBadRequest, log.WarnLevel, "payment.verify.order", "order not found")
			} else if errors.Is(err, store.ErrPaymentSettled) {
				httpx.LogStatus(w, r, http.StatusBadRequest, log.WarnLevel, "payment.verify.order", "order already settled")
			} else {
				httpx.LogInternalError(w, r, "db.update_payment", err)
			}
			return
		}

		completedAt := sql.NullTime{Time: time.Now(), Valid: true}
		_, err = store.UpdateResponsePayment(r.Context(), app.DB, req.SubmissionID, store.PaymentUpdate{
			Status:      model.PaymentSuccess,
			PaymentID:   req.PaymentID,
			OrderID:     req.OrderID,
			CompletedAt: &completedAt,
		})
		if err != nil {
			// the payment row already says success; the mirror update is
			// best effort and its failure is only logged
			log.Errorf("payment.verify.update_submission: %s", err)
		}

		render.JSON(w, r, map[string]any{
			"success":   true,
			"paymentId": req.PaymentID,
			"orderId":   req.OrderID,
		})
	}
}

func signatureValid(secret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// markSubmissionFailed is the best-effort secondary attempt made whenever
// verification goes wrong. It must never fail the handler: its own errors
// are swallowed and logged.
func markSubmissionFailed(ctx context.Context, app app.App, submissionID, reason string) {
	_, err := store.UpdateResponsePayment(ctx, app.DB, submissionID, store.PaymentUpdate{
		Status: model.PaymentFailed,
		Error:  reason,
	})
	if err != nil {
		log.Errorf("payment.mark_submission_failed: %s", err)
	}
}

type statusRequest struct {
	SubmissionID    string          `json:"submissionId" validate:"required"`
	Status          string          `json:"status" validate:"required,oneof=pending success failed"`
	PaymentID       string          `json:"paymentId"`
	OrderID         string          `json:"orderId"`
	Error           string          `json:"error"`
	CustomerDetails *model.Customer `json:"customerDetails"`
}

// UpdatePaymentStatus lets an external status poller push a payment state
// onto whichever response table holds the submission. The lead-then-
// swayamsevak probe order is part of the contract.
func UpdatePaymentStatus(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := statusRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.ValidationFailed(w, r, "payment.status.validate", err)
			return
		}

		upd := store.PaymentUpdate{
			Status:    req.Status,
			PaymentID: req.PaymentID,
			OrderID:   req.OrderID,
			Error:     req.Error,
		}
		if req.Status == model.PaymentSuccess {
			completedAt := sql.NullTime{Time: time.Now(), Valid: true}
			upd.CompletedAt = &completedAt
		}

		state, err := store.UpdateResponsePayment(r.Context(), app.DB, req.SubmissionID, upd)
		if errors.Is(err, store.ErrResponseNotFound) {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "payment.status.submission", "submission not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_submission_payment", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"success":    true,
			"submission": state,
		})
	}
}
