package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `
	id, booking_id, transaction_id, amount, currency, method, status, failure_reason, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.BookingID, &p.TransactionID, &p.Amount, &p.Currency, &p.Method, &p.Status, &p.FailureReason, &p.CreatedAt)
	return p, err
}

// --- Payment Operations ---

// CreatePayment appends an attempt to the payment ledger
func (r *Repository) CreatePayment(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.TransactionID == "" {
		p.TransactionID = uuid.NewString()
	}
	err := r.q(ctx).QueryRow(ctx, `
		INSERT INTO payments (id, booking_id, transaction_id, amount, currency, method, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, p.ID, p.BookingID, p.TransactionID, p.Amount, p.Currency, p.Method, p.Status, p.FailureReason,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPaymentByTransaction returns a payment by its transaction id
func (r *Repository) GetPaymentByTransaction(ctx context.Context, transactionID string) (*Payment, error) {
	p, err := scanPayment(r.q(ctx).QueryRow(ctx, "SELECT "+paymentColumns+" FROM payments WHERE transaction_id = $1", transactionID))
	if err != nil {
		return nil, notFound(err, "payment")
	}
	return &p, nil
}

// ListPayments returns the payment attempts of a booking, oldest first
func (r *Repository) ListPayments(ctx context.Context, bookingID uuid.UUID) ([]Payment, error) {
	rows, err := r.q(ctx).Query(ctx, "SELECT "+paymentColumns+" FROM payments WHERE booking_id = $1 ORDER BY created_at, id", bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
