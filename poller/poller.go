// Package poller drives the settlement state machines: it iterates open
// orders, takes sequenced confirmation readings, probes destination
// execution, and applies the resolver. It is the only component that loops;
// everything it calls is pure or a single lookup.
package poller

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/bob-collective/gateway-go/confirm"
	"github.com/bob-collective/gateway-go/execprobe"
	"github.com/bob-collective/gateway-go/offramp"
	"github.com/bob-collective/gateway-go/order"
	"github.com/bob-collective/gateway-go/orderdb"
)

type Config struct {
	// Interval between polling rounds.
	Interval time.Duration
	// OffRampConfirmations is the payout confirmation threshold; the same
	// policy as on-ramp orders, configured gateway-wide.
	OffRampConfirmations uint64
}

type Poller struct {
	db       *orderdb.OrderDB
	src      *confirm.SequencedSource
	probe    execprobe.Probe
	resolver *order.Resolver
	cfg      Config
	metrics  *metricsRegistry

	mu       sync.Mutex
	trackers map[uuid.UUID]*order.Tracker
}

func New(db *orderdb.OrderDB, src *confirm.SequencedSource, probe execprobe.Probe, resolver *order.Resolver, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Poller{
		db:       db,
		src:      src,
		probe:    probe,
		resolver: resolver,
		cfg:      cfg,
		metrics:  newMetricsRegistry(),
		trackers: make(map[uuid.UUID]*order.Tracker),
	}
}

// MetricsHandler exposes the poller's prometheus metrics.
func (p *Poller) MetricsHandler() http.Handler {
	return p.metrics.Handler()
}

func (p *Poller) Start(ctx context.Context) error {
	logger.Info("starting settlement poller")
	defer logger.Info("stopping settlement poller")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce runs a single round over all open on-ramp and off-ramp orders.
// Different orders have no ordering requirement between them; within one
// order the tracker enforces issue-order application of readings.
func (p *Poller) PollOnce(ctx context.Context) {
	orders, err := p.db.ListOpenOrders()
	if err != nil {
		logger.Errorf("failed to list open orders: %v", err)
		return
	}
	p.metrics.openOrders.Set(float64(len(orders)))
	open := make(map[uuid.UUID]struct{}, len(orders))
	for _, o := range orders {
		open[o.Id] = struct{}{}
		p.pollOrder(ctx, o)
	}
	p.evictTrackers(open)

	offRampOrders, err := p.db.ListOpenOffRampOrders()
	if err != nil {
		logger.Errorf("failed to list open off-ramp orders: %v", err)
		return
	}
	p.metrics.openOffRampOrders.Set(float64(len(offRampOrders)))
	for _, o := range offRampOrders {
		p.pollOffRamp(ctx, o)
	}
}

func (p *Poller) pollOrder(ctx context.Context, o *order.Order) {
	newLogger := logger.WithFields(logger.Fields{
		"order": o.Id.String(),
		"btcTx": o.BtcTxId,
	})

	if o.BtcTxId == "" {
		// deposit not matched yet, nothing to resolve
		return
	}

	read, err := p.src.Read(ctx, o.BtcTxId, 0)
	if err != nil {
		p.deferOnLookupError(newLogger, err)
		return
	}

	exec := execprobe.NotExecuted
	if p.probe != nil {
		exec, err = p.probe.GetExecutionResult(ctx, o.Id)
		if err != nil {
			p.deferOnLookupError(newLogger, err)
			return
		}
	}

	tr := p.tracker(o)
	prev, seen := tr.Last()
	st, applied := tr.Apply(read, exec, time.Now())
	if !applied {
		newLogger.Debug("discarded stale confirmation reading")
		return
	}
	newLogger.WithFields(logger.Fields{
		"status": string(st.Kind),
		"confs":  st.Confirmations,
	}).Debug("order status derived")

	// Persist the first-confirmed instant so read-only consumers derive the
	// same execution timeout; clear it again on a reorg regression.
	switch {
	case st.Kind == order.StatusConfirmed && o.ConfirmedAt.IsZero():
		if err := p.db.SetConfirmedAt(o.Id, time.Now()); err != nil {
			newLogger.Errorf("failed to record confirmation instant: %v", err)
		}
	case st.Kind == order.StatusPending && !o.ConfirmedAt.IsZero():
		if err := p.db.ClearConfirmedAt(o.Id); err != nil {
			newLogger.Errorf("failed to reset confirmation instant: %v", err)
		}
	}

	if st.Kind != order.StatusResolved {
		return
	}
	if !seen || prev.Kind != order.StatusResolved {
		p.metrics.incResolved(st.Success)
	}

	// Persist the execution fact (not the derived status) so the order
	// leaves the open set. A timeout failure has no execution fact to
	// record; it stays open for operator attention.
	if exec.State == execprobe.StateSuccess || exec.State == execprobe.StateFailure {
		if err := p.db.MarkExecuted(o.Id, st.Success, nil, nil, nil); err != nil {
			newLogger.Errorf("failed to record execution outcome: %v", err)
		}
	}
}

func (p *Poller) pollOffRamp(ctx context.Context, o *offramp.Order) {
	newLogger := logger.WithFields(logger.Fields{
		"request": o.RequestId.String(),
		"btcTx":   o.BtcTxHash,
	})

	if o.BtcTxHash == "" {
		// payout not broadcast yet
		return
	}

	read, err := p.src.Read(ctx, o.BtcTxHash, 0)
	if err != nil {
		p.deferOnLookupError(newLogger, err)
		return
	}

	done, err := o.MarkPaidIfConfirmed(read.Confirmations, p.cfg.OffRampConfirmations)
	if err != nil {
		newLogger.Errorf("off-ramp completion check failed: %v", err)
		return
	}
	if !done {
		return
	}
	if err := p.db.MarkOffRampDone(o.RequestId); err != nil {
		newLogger.Errorf("failed to mark off-ramp order done: %v", err)
		return
	}
	p.metrics.offRampPaidTotal.Inc()
	newLogger.Info("off-ramp payout confirmed")
}

// deferOnLookupError decides retry-next-round vs log-and-move-on. Transient
// errors are never terminal for the order.
func (p *Poller) deferOnLookupError(l *logger.Entry, err error) {
	switch {
	case confirm.IsTransient(err):
		p.metrics.transientRetries.Inc()
		l.Warnf("transient lookup error, retrying next round: %v", err)
	case errors.Is(err, confirm.ErrTransactionNotFound):
		l.Debug("transaction not yet visible to the node")
	default:
		l.Errorf("lookup failed: %v", err)
	}
}

func (p *Poller) tracker(o *order.Order) *order.Tracker {
	p.mu.Lock()
	defer p.mu.Unlock()
	tr, ok := p.trackers[o.Id]
	if !ok {
		// resume from the persisted instant so a restart does not reset
		// the execution timeout
		tr = p.resolver.ResumeTracker(o.TxProofDifficultyFactor, o.ConfirmedAt)
		p.trackers[o.Id] = tr
	}
	return tr
}

// evictTrackers drops trackers for orders that left the open set.
func (p *Poller) evictTrackers(open map[uuid.UUID]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.trackers {
		if _, ok := open[id]; !ok {
			delete(p.trackers, id)
		}
	}
}
