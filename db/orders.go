package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/models"
)

// ErrOrderNotFound is returned when an order id matches nothing.
var ErrOrderNotFound = errors.New("order not found")

const orderColumns = `id, user_id, type, coin, symbol, amount, contract_address,
	status, assigned_staff, payment_address, receiving_address,
	customer_tx_hash, sent_tx_hash, created_at, updated_at, completed_at, cancelled_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	var (
		o         models.Order
		staff     sql.NullInt64
		completed sql.NullTime
		cancelled sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Type, &o.Coin, &o.Symbol, &o.Amount,
		&o.ContractAddress, &o.Status, &staff, &o.PaymentAddress,
		&o.ReceivingAddress, &o.CustomerTxHash, &o.SentTxHash,
		&o.CreatedAt, &o.UpdatedAt, &completed, &cancelled,
	)
	if err != nil {
		return nil, err
	}
	o.AssignedStaff = staff.Int64
	if completed.Valid {
		o.CompletedAt = &completed.Time
	}
	if cancelled.Valid {
		o.CancelledAt = &cancelled.Time
	}
	return &o, nil
}

// CreateOrder writes a new order and its paired chat session in one
// transaction, so the two can never diverge at birth.
func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, coin, symbol, amount,
			contract_address, status, assigned_staff, payment_address,
			receiving_address, customer_tx_hash, sent_tx_hash,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, '', '', '', '', ?, ?)`,
		o.ID, o.UserID, o.Type, o.Coin, o.Symbol, o.Amount,
		o.ContractAddress, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert order")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_sessions (order_id, user_id, staff_id, status, created_at, updated_at)
		VALUES (?, ?, NULL, ?, ?, ?)`,
		o.ID, o.UserID, models.ChatWaitingForStaff, now, now,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert chat session")
	}

	return errors.Wrap(tx.Commit(), "failed to commit order")
}

// GetOrder fetches a single order by id.
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM transactions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch order")
	}
	return o, nil
}

// ClaimOrder assigns a pending order to a staff member. The update is
// conditional on the current status, so of two simultaneous claims exactly
// one sees a row change; the other reports false.
func (s *Store) ClaimOrder(ctx context.Context, id string, staffID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = ?, assigned_staff = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		models.StatusInProgress, staffID, now, id, models.StatusPending,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to claim order")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read claim result")
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE chat_sessions SET staff_id = ?, status = ?, updated_at = ?
		WHERE order_id = ?`,
		staffID, models.ChatActive, now, id,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to activate chat session")
	}

	return true, errors.Wrap(tx.Commit(), "failed to commit claim")
}

// SetOrderAddress stores a staff-assigned address and moves the order to the
// matching waiting status: payment address for buys, receiving address for
// sells.
func (s *Store) SetOrderAddress(ctx context.Context, id, address string, payment bool) error {
	column, status := "payment_address", models.StatusWaitingPayment
	if !payment {
		column, status = "receiving_address", models.StatusWaitingTokens
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET "+column+" = ?, status = ?, updated_at = ? WHERE id = ?",
		address, status, time.Now().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to set order address")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetOrderHash stores a customer-submitted transaction hash and moves the
// order to payment_sent or tokens_sent.
func (s *Store) SetOrderHash(ctx context.Context, id, hash string, payment bool) error {
	column, status := "customer_tx_hash", models.StatusPaymentSent
	if !payment {
		column, status = "sent_tx_hash", models.StatusTokensSent
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET "+column+" = ?, status = ?, updated_at = ? WHERE id = ?",
		hash, status, time.Now().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to set order hash")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// FinishOrder moves an order to a terminal status and mirrors the chat
// session in the same transaction.
func (s *Store) FinishOrder(ctx context.Context, id string, status models.OrderStatus) error {
	column, chatStatus := "completed_at", models.ChatCompleted
	if status == models.StatusCancelled {
		column, chatStatus = "cancelled_at", models.ChatCancelled
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"UPDATE transactions SET status = ?, updated_at = ?, "+column+" = ? WHERE id = ?",
		status, now, now, id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to finish order")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE chat_sessions SET status = ?, updated_at = ? WHERE order_id = ?",
		chatStatus, now, id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to close chat session")
	}

	return errors.Wrap(tx.Commit(), "failed to commit finish")
}

// ListUserOrders returns a customer's orders, newest first.
func (s *Store) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM transactions WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user orders")
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListOrders returns a page of all orders, newest first.
func (s *Store) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM transactions ORDER BY created_at DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]models.Order, error) {
	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			continue
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// CountOrders returns the total number of orders.
func (s *Store) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count orders")
	}
	return n, nil
}

// OrderStatusCounts returns the number of orders per status.
func (s *Store) OrderStatusCounts(ctx context.Context) (map[models.OrderStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM transactions GROUP BY status")
	if err != nil {
		return nil, errors.Wrap(err, "failed to count orders by status")
	}
	defer rows.Close()

	counts := make(map[models.OrderStatus]int64)
	for rows.Next() {
		var status models.OrderStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			continue
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
