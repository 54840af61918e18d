package ledger

// Epsilon is the absolute tolerance used for every floating-point
// comparison in the ledger. Accounting logic must never compare floats
// with ==.
const Epsilon = 1e-12

// InitialPortfolioUSD is the USD balance a freshly reset book starts with.
const InitialPortfolioUSD = 10000.0

// USDHoldingID is the fixed id of the single, always-present USD holding.
const USDHoldingID = "USD"

// HoldingState is a single row of the live book.
type HoldingState struct {
	HoldingID  string
	Asset      Asset
	Amount     float64
	StopLoss   *float64
	TakeProfit *float64
}

// HoldingSnapshot is a read-only valuation of a HoldingState at a given
// BTC unit price.
type HoldingSnapshot struct {
	HoldingID     string   `json:"holding_id"`
	Asset         Asset    `json:"asset"`
	Amount        float64  `json:"amount"`
	UnitValueUSD  float64  `json:"unit_value_usd"`
	TotalValueUSD float64  `json:"total_value_usd"`
	StopLoss      *float64 `json:"stop_loss,omitempty"`
	TakeProfit    *float64 `json:"take_profit,omitempty"`
}

func snapshotAt(h HoldingState, btcPrice float64) HoldingSnapshot {
	unit := 1.0
	if h.Asset == AssetBTC {
		unit = btcPrice
	}
	return HoldingSnapshot{
		HoldingID:     h.HoldingID,
		Asset:         h.Asset,
		Amount:        h.Amount,
		UnitValueUSD:  unit,
		TotalValueUSD: h.Amount * unit,
		StopLoss:      h.StopLoss,
		TakeProfit:    h.TakeProfit,
	}
}
