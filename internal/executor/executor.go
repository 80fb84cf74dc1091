package executor

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/logger"
	"tradebot/internal/models"
)

type Mode string

const (
	ModeLive  Mode = "live"
	ModePaper Mode = "paper"
)

type Config struct {
	Mode           Mode
	MaxSlippageBps float64
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	OrderTimeout   time.Duration
	PollInterval   time.Duration
}

// Executor turns an OrderIntent into an aggregated FillResult. All failure
// modes fold into the result's status and reason code; Execute never
// escalates past its return value.
type Executor struct {
	client exchange.Client
	cfg    Config
	kill   *KillSwitch
	log    *logger.Logger

	rulesMu sync.RWMutex
	rules   map[string]exchange.SymbolRules

	// sleep is injected so retry/backoff runs without real timers in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

func New(client exchange.Client, cfg Config, kill *KillSwitch, log *logger.Logger) *Executor {
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Executor{
		client: client,
		cfg:    cfg,
		kill:   kill,
		log:    log,
		rules:  make(map[string]exchange.SymbolRules),
		sleep:  sleepCtx,
		jitter: rand.Float64,
	}
}

// WithSleep replaces the sleep function, for tests.
func (x *Executor) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Executor {
	x.sleep = sleep
	return x
}

// Execute runs the full submission pipeline: kill switch, rule
// normalization, slippage guard, idempotent submission with retry, and
// fill aggregation.
func (x *Executor) Execute(ctx context.Context, intent models.OrderIntent) models.FillResult {
	entry := x.log.WithComponent("executor").WithField("symbol", intent.Symbol).WithField("token", intent.Token)

	if x.cfg.Mode == ModeLive && x.kill != nil && x.kill.Engaged() {
		entry.Warn("order blocked by kill switch")
		return blocked(intent, models.ReasonKillSwitch)
	}

	rules, err := x.symbolRules(ctx, intent.Symbol)
	if err != nil {
		entry.WithError(err).Error("symbol rules unavailable")
		return rejected(intent, models.ReasonSubmitFailed)
	}

	book, err := x.client.GetBestBidAsk(ctx, intent.Symbol)
	if err != nil {
		entry.WithError(err).Error("book ticker unavailable")
		return rejected(intent, models.ReasonSubmitFailed)
	}

	normalized, reason := normalizeIntent(intent, rules, book.Mid())
	if reason != "" {
		entry.WithField("reason", reason).Warn("order rejected by trading rules")
		return rejected(intent, reason)
	}

	if spread := book.SpreadBps(); spread > x.cfg.MaxSlippageBps {
		entry.WithFields(map[string]interface{}{
			"spread_bps": spread,
			"max_bps":    x.cfg.MaxSlippageBps,
		}).Warn("order blocked by slippage guard")
		return blocked(intent, models.ReasonSlippageExceeded)
	}

	report, err := x.submitWithRetry(ctx, normalized)
	if err != nil {
		if exchange.IsRejection(err) {
			entry.WithError(err).Warn("order rejected by exchange")
			return rejected(intent, models.ReasonExchangeRejected)
		}
		// Retries exhausted on transient errors: the submission may still
		// have landed. Query by token before giving up.
		if found, ok := x.reconcile(ctx, normalized); ok {
			return x.finalize(ctx, normalized, found)
		}
		entry.WithError(err).Error("order submission failed and no order found by token")
		return rejected(intent, models.ReasonSubmitFailed)
	}

	return x.finalize(ctx, normalized, report)
}

// normalizeIntent applies lot-size and min-notional filters. refPrice is
// the book midpoint, used to value quantity-based intents.
func normalizeIntent(intent models.OrderIntent, rules exchange.SymbolRules, refPrice float64) (models.OrderIntent, string) {
	if intent.Quantity > 0 {
		qty := RoundToStep(intent.Quantity, rules.StepSize)
		if qty <= 0 || qty < rules.MinQty {
			return intent, models.ReasonBelowMinNotional
		}
		if rules.MinNotional > 0 && refPrice > 0 && qty*refPrice < rules.MinNotional {
			return intent, models.ReasonBelowMinNotional
		}
		intent.Quantity = qty
		return intent, ""
	}
	if rules.MinNotional > 0 && intent.Notional < rules.MinNotional {
		return intent, models.ReasonBelowMinNotional
	}
	return intent, ""
}

// submitWithRetry submits the intent, reusing its token as the client order
// id, with bounded exponential backoff and jitter on transient errors. A
// duplicate-token response means a prior attempt landed; it resolves via
// status lookup rather than a new order.
func (x *Executor) submitWithRetry(ctx context.Context, intent models.OrderIntent) (models.OrderReport, error) {
	var lastErr error
	delay := x.cfg.RetryBaseDelay

	for attempt := 0; attempt <= x.cfg.MaxRetries; attempt++ {
		report, err := x.client.SubmitOrder(ctx, intent)
		if err == nil {
			return report, nil
		}
		if exchange.IsRejection(err) {
			return models.OrderReport{}, err
		}
		if errors.Is(err, exchange.ErrDuplicateToken) {
			if found, ok := x.reconcile(ctx, intent); ok {
				return found, nil
			}
		}
		lastErr = err

		if attempt < x.cfg.MaxRetries {
			wait := delay + time.Duration(x.jitter()*float64(delay)/5)
			if wait > x.cfg.RetryMaxDelay {
				wait = x.cfg.RetryMaxDelay
			}
			x.log.WithComponent("executor").WithField("token", intent.Token).WithError(err).Warn("submit failed, retrying")
			if err := x.sleep(ctx, wait); err != nil {
				return models.OrderReport{}, err
			}
			delay *= 2
		}
	}
	return models.OrderReport{}, lastErr
}

// reconcile looks the order up by its idempotency token after a lost or
// ambiguous response.
func (x *Executor) reconcile(ctx context.Context, intent models.OrderIntent) (models.OrderReport, bool) {
	report, err := x.client.GetOrderStatus(ctx, intent.Symbol, intent.Token)
	if err != nil {
		return models.OrderReport{}, false
	}
	return report, true
}

// finalize waits for the order to leave the open states within the order
// timeout, then aggregates whatever filled.
func (x *Executor) finalize(ctx context.Context, intent models.OrderIntent, report models.OrderReport) models.FillResult {
	polls := int(x.cfg.OrderTimeout / x.cfg.PollInterval)
	for i := 0; i < polls && !terminal(report.Status); i++ {
		if err := x.sleep(ctx, x.cfg.PollInterval); err != nil {
			break
		}
		if refreshed, ok := x.reconcile(ctx, intent); ok {
			report = refreshed
		}
	}

	if report.Status == models.OrderStatusRejected {
		return rejected(intent, models.ReasonExchangeRejected)
	}

	result := aggregate(intent, report)
	if result.Qty <= 0 {
		return rejected(intent, models.ReasonExchangeRejected)
	}
	if report.Status != models.OrderStatusFilled {
		result.Status = models.FillStatusPartiallyFilledTimeout
	}

	x.log.WithComponent("executor").WithFields(map[string]interface{}{
		"symbol":    intent.Symbol,
		"token":     intent.Token,
		"order_id":  result.OrderID,
		"status":    result.Status,
		"qty":       result.Qty,
		"avg_price": result.AvgPrice,
		"fee":       result.Fee,
	}).Info("fill aggregated")
	return result
}

// aggregate folds every fill report sharing the client order id into one
// volume-weighted result.
func aggregate(intent models.OrderIntent, report models.OrderReport) models.FillResult {
	result := models.FillResult{
		Status:  models.FillStatusFilled,
		OrderID: report.OrderID,
		Token:   intent.Token,
	}

	if len(report.Fills) > 0 {
		var qty, quote float64
		for _, f := range report.Fills {
			qty += f.Qty
			quote += f.Price * f.Qty
			result.Fee += f.Fee
			if result.FeeAsset == "" {
				result.FeeAsset = f.FeeAsset
			}
		}
		result.Qty = qty
		if qty > 0 {
			result.AvgPrice = quote / qty
		}
		return result
	}

	result.Qty = report.ExecutedQty
	if report.ExecutedQty > 0 {
		result.AvgPrice = report.CumQuoteQty / report.ExecutedQty
	}
	return result
}

// Rules exposes the cached per-symbol trading filters to callers that
// need them for sizing decisions.
func (x *Executor) Rules(ctx context.Context, symbol string) (exchange.SymbolRules, error) {
	return x.symbolRules(ctx, symbol)
}

// symbolRules reads the per-symbol trading filters through a shared cache.
func (x *Executor) symbolRules(ctx context.Context, symbol string) (exchange.SymbolRules, error) {
	x.rulesMu.RLock()
	rules, ok := x.rules[symbol]
	x.rulesMu.RUnlock()
	if ok {
		return rules, nil
	}

	rules, err := x.client.GetSymbolRules(ctx, symbol)
	if err != nil {
		return exchange.SymbolRules{}, err
	}
	x.rulesMu.Lock()
	x.rules[symbol] = rules
	x.rulesMu.Unlock()
	return rules, nil
}

func blocked(intent models.OrderIntent, reason string) models.FillResult {
	return models.FillResult{Status: models.FillStatusBlocked, Reason: reason, Token: intent.Token}
}

func rejected(intent models.OrderIntent, reason string) models.FillResult {
	return models.FillResult{Status: models.FillStatusRejected, Reason: reason, Token: intent.Token}
}

func terminal(s models.OrderStatus) bool {
	return s == models.OrderStatusFilled || s == models.OrderStatusRejected || s == models.OrderStatusCanceled
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
