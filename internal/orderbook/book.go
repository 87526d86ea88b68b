package orderbook

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

// ordersFile is the on-disk order store under the book's base directory.
const ordersFile = "orders.json"

// OpenRequest carries everything needed to create a pending order.
type OpenRequest struct {
	SignalID      string
	Symbol        string
	EventDate     time.Time
	EntryDate     time.Time
	ExitDate      time.Time
	Score         float64
	Confidence    float64
	RunID         string
	Model         string
	PromptVersion string
}

// Statistics summarizes the book. WinRate and AvgReturn are only meaningful
// when Closed > 0.
type Statistics struct {
	TotalOrders int     `json:"total_orders"`
	Pending     int     `json:"pending"`
	Open        int     `json:"open"`
	Closed      int     `json:"closed"`
	Cancelled   int     `json:"cancelled"`
	WinRate     float64 `json:"win_rate"`
	AvgReturn   float64 `json:"avg_return"`
}

// Book is the persistent paper order store. Every mutation saves the full
// book atomically (temp file + rename) so a crash never leaves a torn file.
type Book struct {
	baseDir    string
	takeProfit float64
	stopLoss   float64

	mu     sync.RWMutex
	orders map[string]*Order
	now    func() time.Time
}

// New creates a book rooted at baseDir and loads any existing orders.
// takeProfit and stopLoss are fractional thresholds (0.10 = 10%); zero
// values default to 10% each.
func New(baseDir string, takeProfit, stopLoss float64) (*Book, error) {
	if takeProfit <= 0 {
		takeProfit = 0.10
	}
	if stopLoss <= 0 {
		stopLoss = 0.10
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create order book dir: %w", err)
	}
	b := &Book{
		baseDir:    baseDir,
		takeProfit: takeProfit,
		stopLoss:   stopLoss,
		orders:     make(map[string]*Order),
		now:        time.Now,
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Book) ordersPath() string {
	return filepath.Join(b.baseDir, ordersFile)
}

func (b *Book) load() error {
	data, err := os.ReadFile(b.ordersPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read orders: %w", err)
	}
	var orders []*Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return fmt.Errorf("parse orders: %w", err)
	}
	for _, o := range orders {
		b.orders[o.OrderID] = o
	}
	return nil
}

// saveLocked persists all orders. Callers must hold the write lock.
func (b *Book) saveLocked() error {
	orders := b.sortedLocked()
	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal orders: %w", err)
	}
	tmp := b.ordersPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write orders: %w", err)
	}
	if err := os.Rename(tmp, b.ordersPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename orders: %w", err)
	}
	return nil
}

// sortedLocked returns orders in creation order for stable files.
func (b *Book) sortedLocked() []*Order {
	orders := make([]*Order, 0, len(b.orders))
	for _, o := range b.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt != orders[j].CreatedAt {
			return orders[i].CreatedAt < orders[j].CreatedAt
		}
		return orders[i].OrderID < orders[j].OrderID
	})
	return orders
}

// OpenPosition creates a pending order for a trade signal.
func (b *Book) OpenPosition(req OpenRequest) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order := &Order{
		OrderID:       NewOrderID(),
		SignalID:      req.SignalID,
		Symbol:        req.Symbol,
		EventDate:     day(req.EventDate),
		EntryDate:     day(req.EntryDate),
		ExitDate:      day(req.ExitDate),
		Score:         req.Score,
		Confidence:    req.Confidence,
		Direction:     "long",
		Status:        StatusPending,
		CreatedAt:     b.now().UTC().Format(time.RFC3339),
		RunID:         req.RunID,
		Model:         req.Model,
		PromptVersion: req.PromptVersion,
	}
	b.orders[order.OrderID] = order
	if err := b.saveLocked(); err != nil {
		delete(b.orders, order.OrderID)
		return nil, err
	}
	copied := *order
	return &copied, nil
}

// Get returns a copy of an order, or nil if unknown.
func (b *Book) Get(orderID string) *Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[orderID]
	if !ok {
		return nil
	}
	copied := *o
	return &copied
}

// PendingEntries returns pending orders whose entry date is on or before
// asOf. Entry dates in the past happen after missed runs and still fill.
func (b *Book) PendingEntries(asOf time.Time) []*Order {
	return b.filter(func(o *Order) bool {
		return o.Status == StatusPending && !day(asOf).Before(o.EntryDate)
	})
}

// OpenPositions returns all open orders.
func (b *Book) OpenPositions() []*Order {
	return b.filter(func(o *Order) bool { return o.Status == StatusOpen })
}

// ClosedPositions returns all closed orders.
func (b *Book) ClosedPositions() []*Order {
	return b.filter(func(o *Order) bool { return o.Status == StatusClosed })
}

// PendingExits returns open orders whose scheduled exit date is on or
// before asOf.
func (b *Book) PendingExits(asOf time.Time) []*Order {
	return b.filter(func(o *Order) bool {
		return o.Status == StatusOpen && !day(asOf).Before(o.ExitDate)
	})
}

func (b *Book) filter(keep func(*Order) bool) []*Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*Order
	for _, o := range b.sortedLocked() {
		if keep(o) {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out
}

// MarkEntered fills a pending order at the entry close price and computes
// its take-profit and stop-loss trigger prices.
func (b *Book) MarkEntered(orderID string, entryPrice float64) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("unknown order %s", orderID)
	}
	if o.Status != StatusPending {
		return nil, transitionError(orderID, o.Status, "enter")
	}
	if entryPrice <= 0 {
		return nil, fmt.Errorf("order %s: invalid entry price %v", orderID, entryPrice)
	}

	o.Status = StatusOpen
	o.EntryPrice = entryPrice
	o.TakeProfitPrice = round2(entryPrice * (1 + b.takeProfit))
	o.StopLossPrice = round2(entryPrice * (1 - b.stopLoss))
	o.EnteredAt = b.now().UTC().Format(time.RFC3339)
	if err := b.saveLocked(); err != nil {
		return nil, err
	}
	copied := *o
	return &copied, nil
}

// MarkExited closes an open order at the exit close price.
func (b *Book) MarkExited(orderID string, exitPrice float64, reason ExitReason) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("unknown order %s", orderID)
	}
	if o.Status != StatusOpen {
		return nil, transitionError(orderID, o.Status, "exit")
	}
	if exitPrice <= 0 {
		return nil, fmt.Errorf("order %s: invalid exit price %v", orderID, exitPrice)
	}

	o.Status = StatusClosed
	o.ExitPrice = exitPrice
	o.ExitReason = reason
	o.ReturnPct = (exitPrice - o.EntryPrice) / o.EntryPrice
	o.ExitedAt = b.now().UTC().Format(time.RFC3339)
	if err := b.saveLocked(); err != nil {
		return nil, err
	}
	copied := *o
	return &copied, nil
}

// Cancel cancels a pending order. Open positions cannot be cancelled; they
// must exit through MarkExited so the record shows a real fill.
func (b *Book) Cancel(orderID, reason string) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("unknown order %s", orderID)
	}
	if o.Status != StatusPending {
		return nil, transitionError(orderID, o.Status, "cancel")
	}

	o.Status = StatusCancelled
	o.CancelReason = reason
	if err := b.saveLocked(); err != nil {
		return nil, err
	}
	copied := *o
	return &copied, nil
}

// ExitTrigger evaluates the exit rules for one open position against a
// close price. Priority is fixed: take-profit, then stop-loss, then
// max-hold. Returns "" when no rule fires.
func (b *Book) ExitTrigger(o *Order, closePrice float64, asOf time.Time) ExitReason {
	if o.Status != StatusOpen || closePrice <= 0 {
		return ""
	}
	switch {
	case closePrice >= o.TakeProfitPrice:
		return ExitTakeProfit
	case closePrice <= o.StopLossPrice:
		return ExitStopLoss
	case !day(asOf).Before(o.ExitDate):
		return ExitMaxHold
	}
	return ""
}

// Statistics computes aggregate book metrics.
func (b *Book) Statistics() Statistics {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := Statistics{TotalOrders: len(b.orders)}
	wins := 0
	sumReturn := 0.0
	for _, o := range b.orders {
		switch o.Status {
		case StatusPending:
			stats.Pending++
		case StatusOpen:
			stats.Open++
		case StatusClosed:
			stats.Closed++
			sumReturn += o.ReturnPct
			if o.ReturnPct > 0 {
				wins++
			}
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	if stats.Closed > 0 {
		stats.WinRate = float64(wins) / float64(stats.Closed)
		stats.AvgReturn = sumReturn / float64(stats.Closed)
	}
	return stats
}

// ExportCSV writes all orders to a CSV file and returns its path.
func (b *Book) ExportCSV(path string) (string, error) {
	if path == "" {
		path = filepath.Join(b.baseDir, "orders_export.csv")
	}

	b.mu.RLock()
	orders := b.sortedLocked()
	b.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create orders csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"order_id", "signal_id", "symbol",
		"event_date", "entry_date", "exit_date",
		"score", "confidence", "direction", "status",
		"entry_price", "exit_price", "exit_reason", "return_pct",
		"created_at", "entered_at", "exited_at", "run_id", "model", "prompt_version",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, o := range orders {
		row := []string{
			o.OrderID, o.SignalID, o.Symbol,
			o.EventDate.Format("2006-01-02"), o.EntryDate.Format("2006-01-02"), o.ExitDate.Format("2006-01-02"),
			formatFloat(o.Score), formatFloat(o.Confidence), o.Direction, string(o.Status),
			formatFloat(o.EntryPrice), formatFloat(o.ExitPrice), string(o.ExitReason), formatFloat(o.ReturnPct),
			o.CreatedAt, o.EnteredAt, o.ExitedAt, o.RunID, o.Model, o.PromptVersion,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return path, nil
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
