package ledger

import "fmt"

// Book is the live, mutable portfolio held during a single backtest run.
// A Book must never be shared between concurrent runs — each run owns an
// independent instance (see internal/backtest.BatchRunner).
type Book struct {
	holdings []HoldingState
	nextID   int
}

// NewBook returns a Book already in its reset state.
func NewBook() *Book {
	b := &Book{}
	b.Reset()
	return b
}

// Reset installs a single USD holding of InitialPortfolioUSD and resets
// the BTC id allocator to 1.
func (b *Book) Reset() {
	b.holdings = []HoldingState{{
		HoldingID: USDHoldingID,
		Asset:     AssetUSD,
		Amount:    InitialPortfolioUSD,
	}}
	b.nextID = 1
}

func (b *Book) newHoldingID() string {
	id := fmt.Sprintf("H%d", b.nextID)
	b.nextID++
	return id
}

func (b *Book) usdHolding() *HoldingState {
	for i := range b.holdings {
		if b.holdings[i].Asset == AssetUSD {
			return &b.holdings[i]
		}
	}
	panic("ledger: USD holding missing from portfolio state")
}

func (b *Book) find(holdingID string) *HoldingState {
	for i := range b.holdings {
		if b.holdings[i].HoldingID == holdingID {
			return &b.holdings[i]
		}
	}
	return nil
}

func (b *Book) remove(holdingID string) {
	out := b.holdings[:0]
	for _, h := range b.holdings {
		if h.HoldingID != holdingID {
			out = append(out, h)
		}
	}
	b.holdings = out
}

// ApplyBuy decrements USD by amount*executionPrice and appends a new BTC
// holding with a freshly minted id, carrying the order's SL/TP.
func (b *Book) ApplyBuy(order Order, executionPrice float64) error {
	if order.Amount <= 0 {
		return fmt.Errorf("BUY amount must be > 0")
	}

	usd := b.usdHolding()
	cost := order.Amount * executionPrice

	if cost > usd.Amount+Epsilon {
		return fmt.Errorf("Insufficient USD for BUY: required %.8f, available %.8f", cost, usd.Amount)
	}

	usd.Amount -= cost
	b.holdings = append(b.holdings, HoldingState{
		HoldingID:  b.newHoldingID(),
		Asset:      AssetBTC,
		Amount:     order.Amount,
		StopLoss:   order.StopLoss,
		TakeProfit: order.TakeProfit,
	})
	return nil
}

// ApplySell decrements the target holding by amount and credits USD at
// executionPrice, removing the holding if its remainder is <= Epsilon.
func (b *Book) ApplySell(order Order, executionPrice float64) error {
	if order.Amount <= 0 {
		return fmt.Errorf("SELL amount must be > 0")
	}
	if order.HoldingID == USDHoldingID {
		return fmt.Errorf("cannot SELL the USD holding via SELL order")
	}

	target := b.find(order.HoldingID)
	if target == nil {
		return fmt.Errorf("SELL refers to non-existing holding_id=%q", order.HoldingID)
	}
	if target.Asset != AssetBTC {
		return fmt.Errorf("SELL holding must be BTC, got %q", target.Asset)
	}
	if order.Amount > target.Amount+Epsilon {
		return fmt.Errorf("cannot SELL more than holding contains: requested %.8f, available %.8f",
			order.Amount, target.Amount)
	}

	proceeds := order.Amount * executionPrice
	target.Amount -= order.Amount
	b.usdHolding().Amount += proceeds

	if target.Amount <= Epsilon {
		b.remove(target.HoldingID)
	}
	return nil
}

// ApplyOrders applies orders in the exact order given, at executionPrice.
// Any failure aborts immediately, leaving prior orders in the batch
// applied — the caller (internal/backtest.Engine) treats this as a
// terminal "Order error" for the whole run, per the no-partial-result
// failure semantics of the day protocol.
func (b *Book) ApplyOrders(orders []Order, executionPrice float64) error {
	for _, o := range orders {
		var err error
		switch o.Action {
		case ActionBuy:
			err = b.ApplyBuy(o, executionPrice)
		case ActionSell:
			err = b.ApplySell(o, executionPrice)
		default:
			err = fmt.Errorf("unsupported order action %q", o.Action)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// EnforceStopLossTakeProfit runs intraday SL/TP enforcement over every
// currently open BTC holding, using the day's Low and High. Stop-loss is
// evaluated before take-profit; a holding closed by SL does not then
// trigger TP. Holdings are snapshotted before enforcement begins so that
// a sale within the loop cannot perturb the set being iterated.
func (b *Book) EnforceStopLossTakeProfit(low, high float64) error {
	btcHoldings := make([]HoldingState, 0, len(b.holdings))
	for _, h := range b.holdings {
		if h.Asset == AssetBTC && h.Amount > Epsilon {
			btcHoldings = append(btcHoldings, h)
		}
	}

	for _, h := range btcHoldings {
		current := b.find(h.HoldingID)
		if current == nil {
			continue // already closed by an earlier iteration of this loop
		}

		if h.StopLoss != nil && low <= *h.StopLoss {
			if err := b.ApplySell(Order{Action: ActionSell, HoldingID: h.HoldingID, Amount: current.Amount}, *h.StopLoss); err != nil {
				return err
			}
			continue
		}

		if current = b.find(h.HoldingID); current == nil {
			continue
		}

		if h.TakeProfit != nil && high >= *h.TakeProfit {
			if err := b.ApplySell(Order{Action: ActionSell, HoldingID: h.HoldingID, Amount: current.Amount}, *h.TakeProfit); err != nil {
				return err
			}
		}
	}
	return nil
}

// Snapshot values every holding at btcPrice (1.0 for USD).
func (b *Book) Snapshot(btcPrice float64) []HoldingSnapshot {
	out := make([]HoldingSnapshot, len(b.holdings))
	for i, h := range b.holdings {
		out[i] = snapshotAt(h, btcPrice)
	}
	return out
}
