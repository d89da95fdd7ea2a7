package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/models"
)

func scanChat(row interface{ Scan(...any) error }) (*models.ChatSession, error) {
	var (
		cs    models.ChatSession
		staff sql.NullInt64
	)
	err := row.Scan(&cs.OrderID, &cs.UserID, &staff, &cs.Status, &cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cs.StaffID = staff.Int64
	return &cs, nil
}

// GetChatSession fetches the chat session paired with an order.
func (s *Store) GetChatSession(ctx context.Context, orderID string) (*models.ChatSession, error) {
	cs, err := scanChat(s.db.QueryRowContext(ctx,
		"SELECT order_id, user_id, staff_id, status, created_at, updated_at FROM chat_sessions WHERE order_id = ?",
		orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch chat session")
	}
	return cs, nil
}

// ListActiveChats returns chat sessions that still need attention, oldest
// first so the longest-waiting customer surfaces on top.
func (s *Store) ListActiveChats(ctx context.Context) ([]models.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, user_id, staff_id, status, created_at, updated_at
		FROM chat_sessions WHERE status IN (?, ?) ORDER BY created_at`,
		models.ChatWaitingForStaff, models.ChatActive)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chat sessions")
	}
	defer rows.Close()

	var out []models.ChatSession
	for rows.Next() {
		cs, err := scanChat(rows)
		if err != nil {
			continue
		}
		out = append(out, *cs)
	}
	return out, rows.Err()
}

// AppendMessage writes one chat log entry. The log is append-only.
func (s *Store) AppendMessage(ctx context.Context, m *models.ChatMessage) error {
	m.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (order_id, sender_id, sender_type, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.OrderID, m.SenderID, m.SenderType, m.Body, m.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to append chat message")
	}
	return nil
}

// ListMessages returns the chat log for an order in send order.
func (s *Store) ListMessages(ctx context.Context, orderID string) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, sender_id, sender_type, body, created_at
		FROM messages WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chat messages")
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.SenderType, &m.Body, &m.CreatedAt); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
