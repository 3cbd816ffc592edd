package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/bob-collective/gateway-go/confirm"
	"github.com/bob-collective/gateway-go/execprobe"
)

var (
	// ErrNoTransactionObserved: no bitcoin transaction carrying the order's
	// commitment has been seen yet. Not a status, an error.
	ErrNoTransactionObserved = errors.New("no bitcoin transaction observed for order")

	ErrExecutionTimeoutRequired = errors.New("resolver requires an explicit execution timeout")
)

type ResolverConfig struct {
	// ExecutionTimeout forces Confirmed -> Resolved{success:false} when the
	// destination execution never arrives despite confirmation. There is no
	// default; deployments must set it.
	ExecutionTimeout time.Duration
}

// Resolver derives OrderStatus from (order, confirmation count, execution
// fact). It owns no mutable state and is safe for concurrent use.
type Resolver struct {
	cfg ResolverConfig
}

func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.ExecutionTimeout <= 0 {
		return nil, ErrExecutionTimeoutRequired
	}
	return &Resolver{cfg: cfg}, nil
}

// Derive is the pure state machine. prev is the last derived status (nil on
// the first evaluation), confirmedAt the instant the order first reached
// Confirmed (zero if it never has).
//
// Rules:
//   - a terminal success stands forever, whatever the source chain does;
//   - an observed destination execution decides Resolved{success|failure};
//   - otherwise confirmations >= threshold means Confirmed, unless the
//     execution timeout has elapsed since confirmedAt;
//   - below threshold is Pending, even if that regresses a prior Confirmed
//     (a reorg changed the finality assumption).
func (r *Resolver) Derive(
	threshold uint64,
	confirmations uint64,
	exec execprobe.Result,
	prev *OrderStatus,
	confirmedAt time.Time,
	now time.Time,
) OrderStatus {
	if prev != nil && prev.IsTerminalSuccess() {
		return Resolved(true, confirmations)
	}

	switch exec.State {
	case execprobe.StateSuccess:
		return Resolved(true, confirmations)
	case execprobe.StateFailure:
		return Resolved(false, confirmations)
	}

	if confirmations >= threshold {
		if !confirmedAt.IsZero() && now.Sub(confirmedAt) >= r.cfg.ExecutionTimeout {
			return Resolved(false, confirmations)
		}
		return Confirmed(confirmations)
	}
	return Pending(confirmations)
}

// Resolve performs one confirmation lookup plus an optional execution probe
// and derives the status. It never blocks beyond that single lookup. probe
// may be nil when no destination observation is available. The order's
// recorded ConfirmedAt feeds the execution timeout, so a read-only caller
// derives the same timeout failure the polling loop does.
func (r *Resolver) Resolve(ctx context.Context, o *Order, src confirm.Source, probe execprobe.Probe) (OrderStatus, error) {
	if o.OpReturnHash == (ethcommon.Hash{}) {
		// A missing commitment means the binding between deposit and order
		// is broken. Money could be claimed against the wrong order.
		panic(fmt.Sprintf("order %s has no commitment hash", o.Id))
	}
	if o.BtcTxId == "" {
		return OrderStatus{}, ErrNoTransactionObserved
	}

	confs, err := src.GetConfirmations(ctx, o.BtcTxId, 0)
	if err != nil {
		return OrderStatus{}, err
	}

	exec := execprobe.NotExecuted
	if probe != nil {
		exec, err = probe.GetExecutionResult(ctx, o.Id)
		if err != nil {
			return OrderStatus{}, err
		}
	}

	return r.Derive(o.TxProofDifficultyFactor, confs, exec, nil, o.ConfirmedAt, time.Now()), nil
}

// Tracker applies sequenced confirmation readings to one order's state
// machine. It enforces issue-order application (stale readings are
// discarded), remembers when Confirmed was first reached for the timeout
// policy, and guards the terminal-success invariant across evaluations.
type Tracker struct {
	resolver  *Resolver
	threshold uint64

	mu          sync.Mutex
	lastSeq     uint64
	last        *OrderStatus
	confirmedAt time.Time
}

func (r *Resolver) NewTracker(threshold uint64) *Tracker {
	return &Tracker{resolver: r, threshold: threshold}
}

// ResumeTracker rebuilds a tracker for an order whose first-confirmed
// instant was persisted, so the execution timeout clock survives restarts.
func (r *Resolver) ResumeTracker(threshold uint64, confirmedAt time.Time) *Tracker {
	return &Tracker{resolver: r, threshold: threshold, confirmedAt: confirmedAt}
}

// Apply folds one reading and the current execution fact into the tracked
// state. Returns the resulting status and whether the reading was applied;
// a stale reading returns the previous status with applied == false.
func (t *Tracker) Apply(read confirm.Reading, exec execprobe.Result, now time.Time) (OrderStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last != nil && read.Seq <= t.lastSeq {
		return *t.last, false
	}

	if t.last != nil && read.Confirmations < t.last.Confirmations {
		logger.WithFields(logger.Fields{
			"prev": t.last.Confirmations,
			"now":  read.Confirmations,
		}).Warn("confirmation count decreased, reorg suspected")
	}

	st := t.resolver.Derive(t.threshold, read.Confirmations, exec, t.last, t.confirmedAt, now)

	switch st.Kind {
	case StatusConfirmed:
		if t.confirmedAt.IsZero() {
			t.confirmedAt = now
		}
	case StatusPending:
		// finality assumption changed, restart the execution timeout
		t.confirmedAt = time.Time{}
	}

	t.lastSeq = read.Seq
	t.last = &st
	return st, true
}

// Last returns the most recently derived status, if any.
func (t *Tracker) Last() (OrderStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return OrderStatus{}, false
	}
	return *t.last, true
}
