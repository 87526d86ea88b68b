// Package orderbook tracks paper trading orders through their lifecycle:
// pending until the entry date, open while the position is held, closed on
// exit. No real money moves; fills are recorded at daily close prices.
package orderbook

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is an order lifecycle state. Legal transitions are
// pending->open->closed and pending->cancelled; nothing else.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

// ExitReason records which exit rule closed a position.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitMaxHold    ExitReason = "max_hold"
)

// Order is one paper trade tied to one signal.
type Order struct {
	OrderID  string `json:"order_id"`
	SignalID string `json:"signal_id"`
	Symbol   string `json:"symbol"`

	EventDate time.Time `json:"event_date"`
	EntryDate time.Time `json:"entry_date"`
	ExitDate  time.Time `json:"exit_date"`

	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`

	Direction string `json:"direction"`
	Status    Status `json:"status"`

	// TakeProfitPrice and StopLossPrice are computed once at fill time from
	// the entry price so exit checks never depend on mutable config.
	EntryPrice      float64 `json:"entry_price,omitempty"`
	TakeProfitPrice float64 `json:"take_profit_price,omitempty"`
	StopLossPrice   float64 `json:"stop_loss_price,omitempty"`

	ExitPrice  float64    `json:"exit_price,omitempty"`
	ExitReason ExitReason `json:"exit_reason,omitempty"`
	ReturnPct  float64    `json:"return_pct,omitempty"`

	CreatedAt    string `json:"created_at"`
	EnteredAt    string `json:"entered_at,omitempty"`
	ExitedAt     string `json:"exited_at,omitempty"`
	CancelReason string `json:"cancel_reason,omitempty"`

	RunID         string `json:"run_id"`
	Model         string `json:"model"`
	PromptVersion string `json:"prompt_version"`
}

// NewOrderID generates a paper order ID: paper_<8 hex chars>.
func NewOrderID() string {
	return "paper_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// transitionError reports an illegal lifecycle move.
func transitionError(orderID string, from Status, op string) error {
	return fmt.Errorf("order %s: cannot %s from status %s", orderID, op, from)
}
