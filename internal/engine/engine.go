package engine

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradebot/internal/config"
	"tradebot/internal/executor"
	"tradebot/internal/journal"
	"tradebot/internal/logger"
	"tradebot/internal/metrics"
	"tradebot/internal/models"
	"tradebot/internal/position"
	"tradebot/internal/risk"
	"tradebot/internal/state"
)

// SignalProvider supplies the strategy snapshot for one symbol at tick
// time. A zero Score means "no entry signal"; Close and ATR are still
// used to manage an open position.
type SignalProvider interface {
	Signal(ctx context.Context, symbol string) (models.Signal, error)
}

// Engine owns the position lifecycle for every configured symbol. Each
// symbol is served by one worker goroutine, so all decisions and fill
// applications for a symbol are serialized; the mutex only guards the
// position map for cross-goroutine reads.
type Engine struct {
	cfg     *config.Config
	exec    *executor.Executor
	signals SignalProvider
	store   *state.Store
	journal *journal.Journal
	metrics *metrics.Metrics
	log     *logger.Logger

	pyramids *position.Manager
	trailing *position.TrailingStopManager
	partials *position.PartialExitManager
	sizer    risk.SizerParams

	now    func() time.Time
	events chan Event

	mu        sync.Mutex
	positions map[string]*models.Position
	deals     map[string]string
	tokenSeq  map[string]int
	exits     map[string]*exitTally
	entries   map[string]*entryTally
	realized  float64
}

// exitTally accumulates exit fills so the journal entry for a staged
// close carries the volume-weighted exit price.
type exitTally struct {
	quote float64
	qty   float64
	fees  float64
}

// entryTally accumulates entry fills as reported by the exchange,
// separately from the position's legs. The average-entry consistency
// check compares the two records; a record derived from the legs would
// agree with them by construction.
type entryTally struct {
	cost float64
	qty  float64
}

func New(cfg *config.Config, exec *executor.Executor, signals SignalProvider, store *state.Store, jrnl *journal.Journal, m *metrics.Metrics, log *logger.Logger) *Engine {
	exitLevels := make([]position.ExitLevel, 0, len(cfg.Exits))
	for _, lvl := range cfg.Exits {
		exitLevels = append(exitLevels, position.ExitLevel{ProfitPct: lvl.ProfitPct, Fraction: lvl.Fraction})
	}

	return &Engine{
		cfg:     cfg,
		exec:    exec,
		signals: signals,
		store:   store,
		journal: jrnl,
		metrics: m,
		log:     log,
		pyramids: position.NewManager(
			position.PyramidConfig{
				MinProfitPct:    cfg.Pyramid.MinProfitPct,
				MaxLegs:         cfg.Pyramid.MaxLegs,
				SizeProgression: cfg.Pyramid.SizeProgression,
				MinInterval:     cfg.PyramidInterval(),
			},
			position.AveragingConfig{
				MaxLossPct:   cfg.Average.MaxLossPct,
				MaxLegs:      cfg.Average.MaxLegs,
				SizeFraction: cfg.Average.SizeFraction,
				MaxAddedLoss: cfg.Average.MaxAddedLoss,
			},
		),
		trailing: position.NewTrailingStopManager(position.TrailingConfig{
			ActivationPct: cfg.Trailing.ActivationPct,
			ATRMultiplier: cfg.Trailing.ATRMultiplier,
		}),
		partials: position.NewPartialExitManager(exitLevels),
		sizer: risk.SizerParams{
			WinRate:     cfg.Sizing.WinRate,
			AvgWin:      cfg.Sizing.AvgWin,
			AvgLoss:     cfg.Sizing.AvgLoss,
			MaxScore:    1.0,
			FMax:        cfg.Sizing.FMax,
			MinNotional: cfg.Trading.MinNotional,
		},
		now:       time.Now,
		events:    make(chan Event, 100),
		positions: make(map[string]*models.Position),
		deals:     make(map[string]string),
		tokenSeq:  make(map[string]int),
		exits:     make(map[string]*exitTally),
		entries:   make(map[string]*entryTally),
	}
}

// WithClock overrides the time source. Propagates to the leg-interval
// checks so tests control the whole decision path.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	e.pyramids.WithClock(now)
	return e
}

// Start restores persisted positions, launches one worker per symbol and
// blocks until the context is canceled and every worker has drained.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.restore(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, symbol := range e.cfg.Trading.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			e.runWorker(ctx, symbol)
		}(symbol)
	}

	wg.Wait()
	return nil
}

func (e *Engine) runWorker(ctx context.Context, symbol string) {
	interval := time.Duration(e.cfg.Trading.IntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.WithComponent("engine").WithField("symbol", symbol).Info("worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx, symbol)
		}
	}
}

// Tick runs one full decision cycle for a symbol: fetch the signal,
// decide exactly one action, execute it and apply the outcome.
func (e *Engine) Tick(ctx context.Context, symbol string) {
	sig, err := e.signals.Signal(ctx, symbol)
	if err != nil {
		e.log.WithComponent("engine").WithField("symbol", symbol).WithError(err).Warn("signal fetch failed")
		return
	}
	if sig.Close <= 0 {
		return
	}

	e.mu.Lock()
	p := e.positions[symbol]
	e.mu.Unlock()

	action := e.decide(p, sig)
	if action.Kind == models.ActionNone {
		return
	}

	if action.Kind == models.ActionPartialExit {
		// The decision marked an exit level as triggered. Persist the
		// mark before the order goes out so a blocked or rejected exit
		// followed by a restart cannot re-fire the level.
		e.persist(symbol, p)
	}

	e.metrics.Actions.WithLabelValues(string(action.Kind)).Inc()
	e.execute(ctx, symbol, p, sig, action)
}

// Liquidate closes every open position at market. Called on shutdown
// after the workers have stopped.
func (e *Engine) Liquidate(ctx context.Context) {
	e.mu.Lock()
	symbols := make([]string, 0, len(e.positions))
	for symbol := range e.positions {
		symbols = append(symbols, symbol)
	}
	e.mu.Unlock()

	for _, symbol := range symbols {
		e.mu.Lock()
		p := e.positions[symbol]
		e.mu.Unlock()
		if p == nil || p.IsClosed() {
			continue
		}

		e.log.WithComponent("engine").WithField("symbol", symbol).Info("liquidating on shutdown")
		e.execute(ctx, symbol, p, models.Signal{Symbol: symbol, Close: p.AvgEntryPrice()}, models.StopExitAction("shutdown"))
	}
}

// Events exposes lifecycle notifications. The channel is buffered and
// never blocks the workers; slow consumers lose events.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Position returns a snapshot pointer for one symbol, nil when flat.
func (e *Engine) Position(symbol string) *models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions[symbol]
}

func (e *Engine) setPosition(symbol string, p *models.Position) {
	e.mu.Lock()
	if p == nil {
		delete(e.positions, symbol)
	} else {
		e.positions[symbol] = p
	}
	open := len(e.positions)
	e.mu.Unlock()

	e.metrics.OpenPositions.Set(float64(open))
}

// nextToken builds the client order id for the next order of a symbol's
// current deal. The sequence number keeps tokens unique across partial
// fills and re-tries of distinct logical orders.
func (e *Engine) nextToken(symbol, kind string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	dealID, ok := e.deals[symbol]
	if !ok {
		dealID = newDealID()
		e.deals[symbol] = dealID
	}
	e.tokenSeq[symbol]++
	return dealID + "-" + kind + "-" + strconv.Itoa(e.tokenSeq[symbol])
}

func (e *Engine) clearDeal(symbol string) {
	e.mu.Lock()
	delete(e.deals, symbol)
	delete(e.exits, symbol)
	delete(e.entries, symbol)
	e.mu.Unlock()
}

// resyncEntries rebuilds the entry-fill record from a persisted
// position's legs. Used on restore and after a snapshot reload, when the
// original fill reports are gone.
func (e *Engine) resyncEntries(symbol string, p *models.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p == nil {
		delete(e.entries, symbol)
		return
	}
	tally := &entryTally{}
	for _, leg := range p.Legs {
		tally.cost += leg.Price * leg.Qty
		tally.qty += leg.Qty
	}
	e.entries[symbol] = tally
}

func newDealID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(raw) > 12 {
		return raw[:12]
	}
	return raw
}
