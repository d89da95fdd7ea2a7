package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/logger"
	"github.com/otcdesk/exchange-desk-bot/models"
)

// GetSession loads the conversation cursor for a user. A missing row or a
// read failure both yield a fresh session parked at the start step, so a
// broken read restarts the conversation instead of blocking it.
func (s *Store) GetSession(ctx context.Context, userID int64) *models.Session {
	sess := &models.Session{UserID: userID, Step: models.StepStart}
	err := s.db.QueryRowContext(ctx, `
		SELECT step, tx_type, coin, symbol, contract_address, amount,
		       focus_kind, focus_order_id, updated_at
		FROM sessions WHERE user_id = ?`, userID,
	).Scan(
		&sess.Step, &sess.TransactionType, &sess.Coin, &sess.Symbol,
		&sess.ContractAddress, &sess.Amount, &sess.FocusKind,
		&sess.FocusOrderID, &sess.UpdatedAt,
	)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("session read failed, restarting conversation", "user", userID, "err", err)
		}
		return &models.Session{UserID: userID, Step: models.StepStart}
	}
	return sess
}

// PutSession overwrites the stored session with the given one. Last writer
// wins; there is no version check.
func (s *Store) PutSession(ctx context.Context, sess *models.Session) error {
	sess.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, step, tx_type, coin, symbol,
			contract_address, amount, focus_kind, focus_order_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			step = excluded.step,
			tx_type = excluded.tx_type,
			coin = excluded.coin,
			symbol = excluded.symbol,
			contract_address = excluded.contract_address,
			amount = excluded.amount,
			focus_kind = excluded.focus_kind,
			focus_order_id = excluded.focus_order_id,
			updated_at = excluded.updated_at`,
		sess.UserID, sess.Step, sess.TransactionType, sess.Coin, sess.Symbol,
		sess.ContractAddress, sess.Amount, sess.FocusKind, sess.FocusOrderID,
		sess.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to store session")
	}
	return nil
}
