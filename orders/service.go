// Package orders owns the order lifecycle: creation, claiming, address
// assignment, hash submission and closing. All status guards live here;
// storage only provides the conditional primitives.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/db"
	"github.com/otcdesk/exchange-desk-bot/logger"
	"github.com/otcdesk/exchange-desk-bot/metrics"
	"github.com/otcdesk/exchange-desk-bot/models"
	"github.com/otcdesk/exchange-desk-bot/roles"
	"github.com/otcdesk/exchange-desk-bot/validation"
)

// Store is the slice of the record store the lifecycle needs.
type Store interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ClaimOrder(ctx context.Context, id string, staffID int64) (bool, error)
	SetOrderAddress(ctx context.Context, id, address string, payment bool) error
	SetOrderHash(ctx context.Context, id, hash string, payment bool) error
	FinishOrder(ctx context.Context, id string, status models.OrderStatus) error
	ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error)
}

// RoleResolver is the slice of the role resolver the lifecycle needs.
type RoleResolver interface {
	Resolve(ctx context.Context, id int64) roles.Role
	CanHandleCustomers(ctx context.Context, id int64) bool
	IsAdmin(ctx context.Context, id int64) bool
}

// Messenger delivers customer- and staff-facing status notifications.
// Delivery failures are logged and never roll back a state change.
type Messenger interface {
	SendText(userID int64, text string) error
}

// StaffNotifier fans a new-order alert out to every staff member.
type StaffNotifier interface {
	NotifyNewOrder(ctx context.Context, o *models.Order)
}

// Draft is a confirmed order draft coming out of the conversation flow.
type Draft struct {
	Type            models.OrderType
	Coin            string
	Symbol          string
	Amount          string
	ContractAddress string
}

type Service struct {
	store        Store
	roles        RoleResolver
	msg          Messenger
	notifier     StaffNotifier
	explorerBase string
}

func NewService(store Store, resolver RoleResolver, msg Messenger, notifier StaffNotifier, explorerBase string) *Service {
	return &Service{
		store:        store,
		roles:        resolver,
		msg:          msg,
		notifier:     notifier,
		explorerBase: explorerBase,
	}
}

// NewOrderID builds a time-prefixed random order id.
func NewOrderID(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%s",
		now.UTC().Format("20060102150405"),
		strings.ToUpper(uuid.NewString()[:8]))
}

// Create validates a draft, writes the order with its paired chat session
// and alerts the staff channel. Returns the stored order.
func (s *Service) Create(ctx context.Context, userID int64, draft Draft) (*models.Order, error) {
	if draft.Type != models.TypeBuy && draft.Type != models.TypeSell {
		return nil, errors.Wrap(ErrValidation, "unknown order type")
	}
	if !validation.IsValidAmount(draft.Amount) {
		return nil, errors.Wrap(ErrValidation, "amount must be a positive number")
	}
	if draft.ContractAddress != "" && !validation.IsValidContractAddress(draft.ContractAddress) {
		return nil, errors.Wrap(ErrValidation, "malformed contract address")
	}

	o := &models.Order{
		ID:              NewOrderID(time.Now()),
		UserID:          userID,
		Type:            draft.Type,
		Coin:            draft.Coin,
		Symbol:          draft.Symbol,
		Amount:          draft.Amount,
		ContractAddress: draft.ContractAddress,
		Status:          models.StatusPending,
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	metrics.OrderTransitions.WithLabelValues(string(models.StatusPending)).Inc()

	s.notifier.NotifyNewOrder(ctx, o)
	return o, nil
}

// Claim assigns a pending order to a staff member. The late loser of a
// claim race gets ErrInvalidState, same as claiming a processed order.
func (s *Service) Claim(ctx context.Context, orderID string, staffID int64) (*models.Order, error) {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.roles.CanHandleCustomers(ctx, staffID) {
		return nil, ErrUnauthorized
	}
	if o.Status != models.StatusPending {
		return nil, errors.Wrap(ErrInvalidState, "order is no longer available")
	}

	ok, err := s.store.ClaimOrder(ctx, orderID, staffID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else won the race between our read and the update.
		return nil, errors.Wrap(ErrInvalidState, "order is no longer available")
	}
	metrics.OrderTransitions.WithLabelValues(string(models.StatusInProgress)).Inc()

	persona := s.personaOf(ctx, staffID)
	s.tell(o.UserID, fmt.Sprintf(
		"👨‍💼 %s is now handling your order %s.\nThey will send you instructions shortly.",
		persona, o.ID))

	o.Status = models.StatusInProgress
	o.AssignedStaff = staffID
	return o, nil
}

// AssignPaymentAddress sets the address a buying customer must pay to and
// moves the order to waiting_payment.
func (s *Service) AssignPaymentAddress(ctx context.Context, orderID string, staffID int64, address string) error {
	return s.assignAddress(ctx, orderID, staffID, address, true)
}

// AssignReceivingAddress sets the address a selling customer must send
// tokens to and moves the order to waiting_tokens.
func (s *Service) AssignReceivingAddress(ctx context.Context, orderID string, staffID int64, address string) error {
	return s.assignAddress(ctx, orderID, staffID, address, false)
}

func (s *Service) assignAddress(ctx context.Context, orderID string, staffID int64, address string, payment bool) error {
	if !validation.IsValidContractAddress(address) {
		return errors.Wrap(ErrValidation, "malformed address")
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.AssignedStaff == 0 || o.AssignedStaff != staffID {
		return ErrUnauthorized
	}
	if o.Status != models.StatusInProgress {
		return ErrInvalidState
	}
	if payment != (o.Type == models.TypeBuy) {
		return errors.Wrap(ErrInvalidState, "address kind does not match order type")
	}

	if err := s.store.SetOrderAddress(ctx, orderID, address, payment); err != nil {
		return err
	}

	if payment {
		metrics.OrderTransitions.WithLabelValues(string(models.StatusWaitingPayment)).Inc()
		s.tell(o.UserID, fmt.Sprintf(
			"💳 Payment details for order %s:\n\n%s\n\nSend your payment of %s %s to this address, then submit the transaction hash from My Orders.",
			o.ID, address, o.Amount, o.Symbol))
	} else {
		metrics.OrderTransitions.WithLabelValues(string(models.StatusWaitingTokens)).Inc()
		s.tell(o.UserID, fmt.Sprintf(
			"📥 Receiving wallet for order %s:\n\n%s\n\nSend %s %s to this address, then submit the transaction hash from My Orders.",
			o.ID, address, o.Amount, o.Symbol))
	}
	return nil
}

// SubmitHash records the customer's transaction hash and notifies the
// assigned staff member with a verification link. Only the order's owner
// may submit.
func (s *Service) SubmitHash(ctx context.Context, orderID string, userID int64, hash string) error {
	if !validation.IsValidTxHash(hash) {
		return errors.Wrap(ErrValidation, "malformed transaction hash")
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return ErrUnauthorized
	}

	var payment bool
	switch o.Status {
	case models.StatusWaitingPayment:
		payment = true
	case models.StatusWaitingTokens:
		payment = false
	default:
		return ErrInvalidState
	}

	if err := s.store.SetOrderHash(ctx, orderID, hash, payment); err != nil {
		return err
	}

	status := models.StatusTokensSent
	what := "token transfer"
	if payment {
		status = models.StatusPaymentSent
		what = "payment"
	}
	metrics.OrderTransitions.WithLabelValues(string(status)).Inc()

	if o.AssignedStaff != 0 {
		s.tell(o.AssignedStaff, fmt.Sprintf(
			"🔔 Customer submitted the %s hash for order %s.\n\nVerify: %s%s",
			what, o.ID, s.explorerBase, hash))
	}
	return nil
}

// Complete closes an order. Only the assigned staff member may complete,
// and only once the order has left pending.
func (s *Service) Complete(ctx context.Context, orderID string, staffID int64) error {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.AssignedStaff == 0 || o.AssignedStaff != staffID {
		return ErrUnauthorized
	}
	switch o.Status {
	case models.StatusInProgress, models.StatusWaitingPayment, models.StatusWaitingTokens,
		models.StatusPaymentSent, models.StatusTokensSent:
	default:
		return ErrInvalidState
	}

	if err := s.store.FinishOrder(ctx, orderID, models.StatusCompleted); err != nil {
		return err
	}
	metrics.OrderTransitions.WithLabelValues(string(models.StatusCompleted)).Inc()

	s.tell(o.UserID, fmt.Sprintf("✅ Your order %s is complete. Thank you for trading with us!", o.ID))
	s.tell(staffID, fmt.Sprintf("✅ Order %s marked as completed.", o.ID))
	return nil
}

// Cancel aborts a non-terminal order. The assigned staff member may always
// cancel; an unclaimed pending order may be cancelled by any admin.
func (s *Service) Cancel(ctx context.Context, orderID string, staffID int64) error {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status.Terminal() {
		return ErrInvalidState
	}
	if o.AssignedStaff != staffID && !(o.AssignedStaff == 0 && s.roles.IsAdmin(ctx, staffID)) {
		return ErrUnauthorized
	}

	if err := s.store.FinishOrder(ctx, orderID, models.StatusCancelled); err != nil {
		return err
	}
	metrics.OrderTransitions.WithLabelValues(string(models.StatusCancelled)).Inc()

	s.tell(o.UserID, fmt.Sprintf("❌ Your order %s was cancelled. Start a new one any time from the menu.", o.ID))
	if staffID != o.UserID {
		s.tell(staffID, fmt.Sprintf("❌ Order %s cancelled.", o.ID))
	}
	return nil
}

// Get fetches one order.
func (s *Service) Get(ctx context.Context, orderID string) (*models.Order, error) {
	return s.get(ctx, orderID)
}

// ListForUser returns a customer's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.ListUserOrders(ctx, userID)
}

// ListPage returns one admin-panel page of all orders, newest first.
func (s *Service) ListPage(ctx context.Context, page, perPage int) ([]models.Order, error) {
	if page < 0 {
		page = 0
	}
	return s.store.ListOrders(ctx, perPage, page*perPage)
}

func (s *Service) get(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, db.ErrOrderNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) personaOf(ctx context.Context, staffID int64) string {
	role := s.roles.Resolve(ctx, staffID)
	if role.Profile != nil && role.Profile.DisplayName != "" {
		return role.Profile.DisplayName
	}
	return "An agent"
}

// tell sends a status notification. The state change stays authoritative
// even when the message is lost.
func (s *Service) tell(userID int64, text string) {
	if err := s.msg.SendText(userID, text); err != nil {
		logger.Warn("status notification not delivered", "user", userID, "err", err)
	}
}
