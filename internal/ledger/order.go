// Package ledger holds the order model (C3) and portfolio book (C4): a
// tagged BUY/SELL order representation with structural validation, and a
// mutable in-memory book of holdings with epsilon-tolerant arithmetic.
package ledger

import "fmt"

// Action selects an Order's variant.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Asset identifies which side of the book a holding belongs to.
type Asset string

const (
	AssetUSD Asset = "USD"
	AssetBTC Asset = "BTC"
)

// Order is the validated form of a strategy-returned instruction. Exactly
// one of the BUY or SELL field groups is meaningful, selected by Action.
type Order struct {
	Action Action

	// BUY fields.
	Asset      Asset
	Amount     float64
	StopLoss   *float64
	TakeProfit *float64

	// SELL fields.
	HoldingID string
}

// RawOrder is the untyped shape a strategy returns — a mapping whose
// fields are validated structurally by ParseOrders. It mirrors the JSON
// payload the sandbox marshals a Lua table into.
type RawOrder struct {
	Action     string   `json:"action"`
	Asset      string   `json:"asset,omitempty"`
	Amount     float64  `json:"amount,omitempty"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
	HoldingID  string   `json:"holding_id,omitempty"`

	// ExtraFields records any keys present in the raw payload beyond the
	// ones above, so validation can reject ill-typed/extra fields.
	ExtraFields []string `json:"-"`
}

// ParseOrders validates a batch of raw orders in a single pass. If any
// order is ill-formed, the whole batch is rejected with one error —
// partial acceptance is never permitted.
func ParseOrders(raw []RawOrder) ([]Order, error) {
	orders := make([]Order, 0, len(raw))
	for i, r := range raw {
		order, err := parseOrder(r)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func parseOrder(r RawOrder) (Order, error) {
	if len(r.ExtraFields) > 0 {
		return Order{}, fmt.Errorf("unrecognized field(s): %v", r.ExtraFields)
	}

	switch Action(r.Action) {
	case ActionBuy:
		if Asset(r.Asset) != AssetBTC {
			return Order{}, fmt.Errorf("BUY requires asset=BTC, got %q", r.Asset)
		}
		if r.Amount <= 0 {
			return Order{}, fmt.Errorf("BUY amount must be > 0, got %v", r.Amount)
		}
		if r.StopLoss != nil && *r.StopLoss <= 0 {
			return Order{}, fmt.Errorf("stop_loss must be positive, got %v", *r.StopLoss)
		}
		if r.TakeProfit != nil && *r.TakeProfit <= 0 {
			return Order{}, fmt.Errorf("take_profit must be positive, got %v", *r.TakeProfit)
		}
		return Order{
			Action:     ActionBuy,
			Asset:      AssetBTC,
			Amount:     r.Amount,
			StopLoss:   r.StopLoss,
			TakeProfit: r.TakeProfit,
		}, nil

	case ActionSell:
		if r.HoldingID == "" {
			return Order{}, fmt.Errorf("SELL requires a non-empty holding_id")
		}
		if r.Amount <= 0 {
			return Order{}, fmt.Errorf("SELL amount must be > 0, got %v", r.Amount)
		}
		return Order{
			Action:    ActionSell,
			HoldingID: r.HoldingID,
			Amount:    r.Amount,
		}, nil

	default:
		return Order{}, fmt.Errorf("action must be BUY or SELL, got %q", r.Action)
	}
}
