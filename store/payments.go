package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/pixeluwjal/sanghaforms-sub002/model"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentSettled rejects a transition that would reverse a terminal
	// status: success and failed are final.
	ErrPaymentSettled = errors.New("payment already settled")
)

const paymentColumns = `id, order_id, payment_id, form_id, response_id,
	amount, currency, status, customer, signature, error,
	paid_at, failed_at, created_at, updated_at`

func scanPayment(row rowScanner) (p model.Payment, err error) {
	var customer []byte
	var paidAt, failedAt sql.NullTime

	err = row.Scan(
		&p.ID, &p.OrderID, &p.PaymentID, &p.FormID, &p.ResponseID,
		&p.Amount, &p.Currency, &p.Status, &customer, &p.Signature, &p.Error,
		&paidAt, &failedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	if failedAt.Valid {
		t := failedAt.Time
		p.FailedAt = &t
	}
	err = json.Unmarshal(customer, &p.Customer)
	return
}

func GetPaymentByOrderID(ctx context.Context, db *sql.DB, orderID string) (model.Payment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = ?`, orderID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrPaymentNotFound
	}
	return p, err
}

func CreatePayment(ctx context.Context, db *sql.DB, p model.Payment) error {
	customer, err := json.Marshal(p.Customer)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, payment_id, form_id, response_id,
			amount, currency, status, customer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrderID, p.PaymentID, p.FormID, p.ResponseID,
		p.Amount, p.Currency, p.Status, string(customer), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// LivePaymentExists reports whether the submission already has an order
// that has not failed. Failed orders may be retried with a fresh one.
func LivePaymentExists(ctx context.Context, db *sql.DB, responseID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM payments
		WHERE response_id = ? AND status <> ?`,
		responseID, model.PaymentStatusFailed,
	).Scan(&n)
	return n > 0, err
}

// MarkPaymentAttempted records that the gateway callback for an order has
// started processing. Only a freshly created order moves to attempted.
func MarkPaymentAttempted(ctx context.Context, db *sql.DB, orderID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE payments SET status = ?, updated_at = ?
		WHERE order_id = ? AND status = ?`,
		model.PaymentStatusAttempted, time.Now(), orderID, model.PaymentStatusCreated,
	)
	return err
}

func MarkPaymentSuccess(ctx context.Context, db *sql.DB, orderID, paymentID, signature string) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		UPDATE payments
		SET status = ?, payment_id = ?, signature = ?, error = '', paid_at = ?, updated_at = ?
		WHERE order_id = ? AND status <> ?`,
		model.PaymentStatusSuccess, paymentID, signature, now, now,
		orderID, model.PaymentStatusFailed,
	)
	if err != nil {
		return err
	}
	return settleResult(ctx, db, res, orderID)
}

func MarkPaymentFailed(ctx context.Context, db *sql.DB, orderID, reason string) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		UPDATE payments
		SET status = ?, error = ?, failed_at = ?, updated_at = ?
		WHERE order_id = ? AND status <> ?`,
		model.PaymentStatusFailed, reason, now, now,
		orderID, model.PaymentStatusSuccess,
	)
	if err != nil {
		return err
	}
	return settleResult(ctx, db, res, orderID)
}

func settleResult(ctx context.Context, db *sql.DB, res sql.Result, orderID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = db.QueryRowContext(ctx, `SELECT COUNT(1) FROM payments WHERE order_id = ?`, orderID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrPaymentNotFound
	}
	return ErrPaymentSettled
}
