package ledger

import (
	"strings"
	"testing"
)

func ptr(f float64) *float64 { return &f }

func TestResetInstallsSingleUSDHolding(t *testing.T) {
	b := NewBook()
	snap := b.Snapshot(50000)
	if len(snap) != 1 {
		t.Fatalf("expected exactly 1 holding after reset, got %d", len(snap))
	}
	if snap[0].HoldingID != USDHoldingID || snap[0].Asset != AssetUSD {
		t.Fatalf("expected the USD holding, got %+v", snap[0])
	}
	if snap[0].Amount != InitialPortfolioUSD {
		t.Fatalf("expected %v USD, got %v", InitialPortfolioUSD, snap[0].Amount)
	}
}

func TestApplyBuyAllocatesSequentialIDs(t *testing.T) {
	b := NewBook()
	if err := b.ApplyBuy(Order{Action: ActionBuy, Asset: AssetBTC, Amount: 0.01}, 50000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.ApplyBuy(Order{Action: ActionBuy, Asset: AssetBTC, Amount: 0.01}, 50000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := b.Snapshot(50000)
	ids := map[string]bool{}
	for _, s := range snap {
		ids[s.HoldingID] = true
	}
	if !ids["H1"] || !ids["H2"] {
		t.Fatalf("expected holdings H1 and H2, got %+v", snap)
	}
}

func TestApplyBuyRejectsInsufficientUSD(t *testing.T) {
	b := NewBook()
	err := b.ApplyBuy(Order{Action: ActionBuy, Asset: AssetBTC, Amount: 1}, 50000)
	if err == nil || !strings.Contains(err.Error(), "Insufficient USD for BUY") {
		t.Fatalf("expected insufficient USD error, got %v", err)
	}
}

func TestApplySellCreditsUSDAndRemovesDustHolding(t *testing.T) {
	b := NewBook()
	if err := b.ApplyBuy(Order{Action: ActionBuy, Asset: AssetBTC, Amount: 0.1}, 50000); err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}

	snap := b.Snapshot(50000)
	var btcID string
	for _, s := range snap {
		if s.Asset == AssetBTC {
			btcID = s.HoldingID
		}
	}

	if err := b.ApplySell(Order{Action: ActionSell, HoldingID: btcID, Amount: 0.1}, 55000); err != nil {
		t.Fatalf("unexpected sell error: %v", err)
	}

	after := b.Snapshot(55000)
	if len(after) != 1 {
		t.Fatalf("expected the BTC holding to be removed after full sell, got %+v", after)
	}
	wantUSD := InitialPortfolioUSD - 0.1*50000 + 0.1*55000
	if diff := after[0].Amount - wantUSD; diff > Epsilon || diff < -Epsilon {
		t.Fatalf("expected USD balance %v, got %v", wantUSD, after[0].Amount)
	}
}

func TestApplySellRejectsUnknownHolding(t *testing.T) {
	b := NewBook()
	err := b.ApplySell(Order{Action: ActionSell, HoldingID: "H99", Amount: 1}, 50000)
	if err == nil || !strings.Contains(err.Error(), "non-existing holding_id") {
		t.Fatalf("expected non-existing holding error, got %v", err)
	}
}

func TestApplySellRejectsUSDHoldingID(t *testing.T) {
	b := NewBook()
	err := b.ApplySell(Order{Action: ActionSell, HoldingID: USDHoldingID, Amount: 1}, 50000)
	if err == nil || !strings.Contains(err.Error(), "cannot SELL the USD holding") {
		t.Fatalf("expected USD-holding rejection, got %v", err)
	}
}

func TestApplySellRejectsOversell(t *testing.T) {
	b := NewBook()
	if err := b.ApplyBuy(Order{Action: ActionBuy, Asset: AssetBTC, Amount: 0.01}, 50000); err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}
	snap := b.Snapshot(50000)
	var btcID string
	for _, s := range snap {
		if s.Asset == AssetBTC {
			btcID = s.HoldingID
		}
	}
	err := b.ApplySell(Order{Action: ActionSell, HoldingID: btcID, Amount: 1}, 50000)
	if err == nil || !strings.Contains(err.Error(), "cannot SELL more than holding contains") {
		t.Fatalf("expected oversell rejection, got %v", err)
	}
}

func TestRoundTripAtSamePriceConservesValue(t *testing.T) {
	b := NewBook()
	if err := b.ApplyBuy(Order{Action: ActionBuy, Asset: AssetBTC, Amount: 0.2}, 40000); err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}
	snap := b.Snapshot(40000)
	var btcID string
	for _, s := range snap {
		if s.Asset == AssetBTC {
			btcID = s.HoldingID
		}
	}
	if err := b.ApplySell(Order{Action: ActionSell, HoldingID: btcID, Amount: 0.2}, 40000); err != nil {
		t.Fatalf("unexpected sell error: %v", err)
	}
	after := b.Snapshot(40000)
	if diff := after[0].Amount - InitialPortfolioUSD; diff > Epsilon || diff < -Epsilon {
		t.Fatalf("expected USD to return to %v, got %v", InitialPortfolioUSD, after[0].Amount)
	}
}

func TestEnforceStopLossBeforeTakeProfit(t *testing.T) {
	b := NewBook()
	err := b.ApplyBuy(Order{
		Action:     ActionBuy,
		Asset:      AssetBTC,
		Amount:     0.1,
		StopLoss:   ptr(95),
		TakeProfit: ptr(120),
	}, 100)
	if err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}

	// Day where Low pierces SL and High pierces TP: SL must win.
	if err := b.EnforceStopLossTakeProfit(90, 125); err != nil {
		t.Fatalf("unexpected enforcement error: %v", err)
	}

	snap := b.Snapshot(125)
	for _, s := range snap {
		if s.Asset == AssetBTC {
			t.Fatalf("expected the BTC holding to be closed by stop-loss, still present: %+v", s)
		}
	}
	wantUSD := InitialPortfolioUSD - 0.1*100 + 0.1*95
	if diff := snap[0].Amount - wantUSD; diff > Epsilon || diff < -Epsilon {
		t.Fatalf("expected USD %v after SL close, got %v", wantUSD, snap[0].Amount)
	}
}

func TestResetIsIdempotentAndRestoresSingleHoldingState(t *testing.T) {
	b := NewBook()
	if err := b.ApplyBuy(Order{Action: ActionBuy, Asset: AssetBTC, Amount: 0.05}, 30000); err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}
	b.Reset()
	b.Reset()
	snap := b.Snapshot(30000)
	if len(snap) != 1 || snap[0].HoldingID != USDHoldingID || snap[0].Amount != InitialPortfolioUSD {
		t.Fatalf("expected reset portfolio, got %+v", snap)
	}
}
