package models

import (
	"time"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	// StatusPending indicates an order waiting for a staff member to claim it
	StatusPending OrderStatus = "pending"
	// StatusInProgress indicates an order claimed by a staff member
	StatusInProgress OrderStatus = "in_progress"
	// StatusWaitingPayment indicates a buy order waiting for the customer's payment
	StatusWaitingPayment OrderStatus = "waiting_payment"
	// StatusWaitingTokens indicates a sell order waiting for the customer's tokens
	StatusWaitingTokens OrderStatus = "waiting_tokens"
	// StatusPaymentSent indicates the customer reported the payment transaction
	StatusPaymentSent OrderStatus = "payment_sent"
	// StatusTokensSent indicates the customer reported the token transfer
	StatusTokensSent OrderStatus = "tokens_sent"
	// StatusCompleted is terminal: the assigned staff member closed the order
	StatusCompleted OrderStatus = "completed"
	// StatusCancelled is terminal: the order was abandoned
	StatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// OrderType is the direction of an order from the customer's point of view
type OrderType string

const (
	TypeBuy  OrderType = "buy"
	TypeSell OrderType = "sell"
)

// Order represents a customer's buy or sell request
type Order struct {
	ID               string
	UserID           int64
	Type             OrderType
	Coin             string
	Symbol           string
	Amount           string // decimal string, stored verbatim
	ContractAddress  string
	Status           OrderStatus
	AssignedStaff    int64 // 0 means unassigned
	PaymentAddress   string
	ReceivingAddress string
	CustomerTxHash   string
	SentTxHash       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
}

// ChatStatus mirrors order assignment state for the chat UI
type ChatStatus string

const (
	ChatWaitingForStaff ChatStatus = "waiting_for_staff"
	ChatActive          ChatStatus = "active"
	ChatCompleted       ChatStatus = "completed"
	ChatCancelled       ChatStatus = "cancelled"
)

// ChatSession is the 1:1 companion of an Order, keyed by the order id.
type ChatSession struct {
	OrderID   string
	UserID    int64
	StaffID   int64
	Status    ChatStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SenderType tags a chat message with the side that wrote it
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderStaff    SenderType = "staff"
)

// ChatMessage is an append-only chat log entry
type ChatMessage struct {
	ID         int64
	OrderID    string
	SenderID   int64
	SenderType SenderType
	Body       string
	CreatedAt  time.Time
}

// StaffRole distinguishes the two staff record kinds
type StaffRole string

const (
	RoleAdmin        StaffRole = "admin"
	RoleCustomerCare StaffRole = "customer_care"
)

// StaffRecord is an admin or customer-care registration
type StaffRecord struct {
	ID          int64
	Name        string
	DisplayName string // persona shown to customers
	Role        StaffRole
	AddedBy     int64
	AddedAt     time.Time
}

// User is an external chat identity, upserted on every interaction
type User struct {
	ID        int64
	Username  string
	FirstName string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Step is the per-user conversation cursor
type Step string

const (
	StepStart               Step = "start"
	StepMainMenu            Step = "main_menu"
	StepAdminPanel          Step = "admin_panel"
	StepSelectToken         Step = "select_token"
	StepEnterAmount         Step = "enter_amount"
	StepConfirmTransaction  Step = "confirm_transaction"
	StepEnterPaymentAddress Step = "enter_payment_address"
	StepEnterWalletAddress  Step = "enter_wallet_address"
	StepEnterPaymentHash    Step = "enter_payment_hash"
	StepEnterTokenHash      Step = "enter_token_hash"
	StepChattingWithUser    Step = "chatting_with_customer"
	StepChatWithSupport     Step = "chat_with_support"
)

// FocusKind tags which flow the session's focused order belongs to
type FocusKind string

const (
	FocusNone          FocusKind = ""
	FocusStaffOrder    FocusKind = "staff_order"
	FocusCustomerOrder FocusKind = "customer_order"
	FocusChatOrder     FocusKind = "chat_order"
)

// Session is the durable per-user conversation state. Step determines which
// staging fields are meaningful; ClearDraft must run before a new flow so a
// stale draft never leaks into a fresh order.
type Session struct {
	UserID          int64
	Step            Step
	TransactionType OrderType
	Coin            string
	Symbol          string
	ContractAddress string
	Amount          string
	FocusKind       FocusKind
	FocusOrderID    string
	UpdatedAt       time.Time
}

// ClearDraft drops the order-draft staging fields, keeping the cursor.
func (s *Session) ClearDraft() {
	s.TransactionType = ""
	s.Coin = ""
	s.Symbol = ""
	s.ContractAddress = ""
	s.Amount = ""
}

// ClearFocus drops the focused-order pointer.
func (s *Session) ClearFocus() {
	s.FocusKind = FocusNone
	s.FocusOrderID = ""
}
