// Package guardrail holds the two optional, out-of-core-ledger checks a
// deployment may layer on top of the backtest engine: an outbound
// notifier that reports each run's outcome to the orchestrator that
// authored the strategy, and an exposure limiter that can reject a BUY
// order before it reaches the ledger.
//
// Neither guardrail participates in §A.4.4/§A.4.5's core accounting —
// ExposureLimiter is disabled by default precisely so the engine's
// invariants and test scenarios hold with no extra rejections out of the
// box.
package guardrail

import (
	"fmt"

	"github.com/nitinkhare/btcstrategylab/internal/config"
	"github.com/nitinkhare/btcstrategylab/internal/ledger"
)

// RejectionReason explains why an order was rejected by the exposure
// guardrail, mirroring the teacher's risk-rejection shape.
type RejectionReason struct {
	Rule    string
	Message string
}

func (r RejectionReason) Error() string {
	return fmt.Sprintf("guardrail rejected [%s]: %s", r.Rule, r.Message)
}

// ExposureLimiter caps how much of total portfolio value may be
// deployed into BTC at once. When attached to an Engine via
// Engine.WithExposureLimiter, it is consulted immediately before each
// BUY order is applied to the ledger; SELL orders are never blocked,
// since closing a position should always be possible. An Engine with
// no limiter attached skips the check entirely.
type ExposureLimiter struct {
	cfg config.ExposureLimitConfig
}

// NewExposureLimiter returns a limiter using cfg. A disabled cfg makes
// every call to Check a no-op approval.
func NewExposureLimiter(cfg config.ExposureLimitConfig) *ExposureLimiter {
	return &ExposureLimiter{cfg: cfg}
}

// UpdateConfig replaces the limiter's configuration, for config
// hot-reload. The replacement is a plain field assignment and is not
// synchronized with concurrent Check calls.
func (l *ExposureLimiter) UpdateConfig(cfg config.ExposureLimitConfig) {
	l.cfg = cfg
}

// Check evaluates a pending BUY order against current holdings, valued
// at btcPrice. projectedCost is amount*price, the USD the order would
// spend. Returns nil if the order is allowed.
func (l *ExposureLimiter) Check(order ledger.Order, holdings []ledger.HoldingSnapshot, btcPrice float64, projectedCost float64) error {
	if !l.cfg.Enabled || order.Action != ledger.ActionBuy {
		return nil
	}

	var total, deployed float64
	for _, h := range holdings {
		total += h.TotalValueUSD
		if h.Asset == ledger.AssetBTC {
			deployed += h.TotalValueUSD
		}
	}
	if total <= 0 {
		return nil
	}

	projectedPct := (deployed + projectedCost) / total * 100
	if projectedPct > l.cfg.MaxCapitalDeploymentPct {
		return RejectionReason{
			Rule: "max_capital_deployment_pct",
			Message: fmt.Sprintf("BUY would deploy %.2f%% of capital, exceeding the %.2f%% limit",
				projectedPct, l.cfg.MaxCapitalDeploymentPct),
		}
	}
	return nil
}
