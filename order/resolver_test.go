package order

import (
	"context"
	"strings"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/bob-collective/gateway-go/common"
	"github.com/bob-collective/gateway-go/confirm"
	"github.com/bob-collective/gateway-go/execprobe"
)

func randHash() ethcommon.Hash {
	return ethcommon.Hash(common.RandBytes32())
}

func testResolver(t *testing.T) *Resolver {
	r, err := NewResolver(ResolverConfig{ExecutionTimeout: time.Hour})
	assert.NoError(t, err)
	return r
}

func TestNewResolverRequiresTimeout(t *testing.T) {
	_, err := NewResolver(ResolverConfig{})
	assert.ErrorIs(t, err, ErrExecutionTimeoutRequired)
	_, err = NewResolver(ResolverConfig{ExecutionTimeout: -time.Second})
	assert.ErrorIs(t, err, ErrExecutionTimeoutRequired)
}

func TestDeriveIsDeterministic(t *testing.T) {
	r := testResolver(t)
	now := time.Now()
	for i := 0; i < 10; i++ {
		st := r.Derive(6, 4, execprobe.NotExecuted, nil, time.Time{}, now)
		assert.Equal(t, Pending(4), st)
	}
}

// threshold 6, confirmations [0,1,5,6,6], no destination execution.
func TestConfirmationSequence(t *testing.T) {
	r := testResolver(t)
	tr := r.NewTracker(6)
	now := time.Now()

	want := []OrderStatus{Pending(0), Pending(1), Pending(5), Confirmed(6), Confirmed(6)}
	for i, confs := range []uint64{0, 1, 5, 6, 6} {
		st, applied := tr.Apply(confirm.Reading{Seq: uint64(i + 1), Confirmations: confs}, execprobe.NotExecuted, now)
		assert.True(t, applied)
		assert.Equal(t, want[i], st, "step %d", i)
	}
}

func TestExecutionObservedResolvesSuccess(t *testing.T) {
	r := testResolver(t)
	tr := r.NewTracker(6)
	now := time.Now()

	st, _ := tr.Apply(confirm.Reading{Seq: 1, Confirmations: 6}, execprobe.NotExecuted, now)
	assert.Equal(t, Confirmed(6), st)

	st, _ = tr.Apply(confirm.Reading{Seq: 2, Confirmations: 6}, execprobe.Success(randHash()), now)
	assert.Equal(t, Resolved(true, 6), st)
}

func TestExecutionRevertResolvesFailure(t *testing.T) {
	r := testResolver(t)
	tr := r.NewTracker(6)
	now := time.Now()

	st, _ := tr.Apply(confirm.Reading{Seq: 1, Confirmations: 7}, execprobe.Failure("execution reverted"), now)
	assert.Equal(t, Resolved(false, 7), st)
}

// A reorg below threshold regresses Confirmed back to Pending as long as no
// destination execution was observed.
func TestReorgRegressesConfirmed(t *testing.T) {
	r := testResolver(t)
	tr := r.NewTracker(6)
	now := time.Now()

	st, _ := tr.Apply(confirm.Reading{Seq: 1, Confirmations: 6}, execprobe.NotExecuted, now)
	assert.Equal(t, Confirmed(6), st)

	st, _ = tr.Apply(confirm.Reading{Seq: 2, Confirmations: 3}, execprobe.NotExecuted, now)
	assert.Equal(t, Pending(3), st)
}

// A terminal success is never regressed, not by a reorg and not by a later
// contradictory execution fact.
func TestTerminalSuccessNeverRegresses(t *testing.T) {
	r := testResolver(t)
	tr := r.NewTracker(6)
	now := time.Now()

	st, _ := tr.Apply(confirm.Reading{Seq: 1, Confirmations: 6}, execprobe.Success(randHash()), now)
	assert.True(t, st.IsTerminalSuccess())

	st, _ = tr.Apply(confirm.Reading{Seq: 2, Confirmations: 2}, execprobe.NotExecuted, now)
	assert.True(t, st.IsTerminalSuccess())
	assert.Equal(t, uint64(2), st.Confirmations)

	st, _ = tr.Apply(confirm.Reading{Seq: 3, Confirmations: 2}, execprobe.Failure("bogus"), now)
	assert.True(t, st.IsTerminalSuccess())
}

// A later-issued, earlier-returning stale reading must not overwrite a
// fresher result.
func TestStaleReadingDiscarded(t *testing.T) {
	r := testResolver(t)
	tr := r.NewTracker(6)
	now := time.Now()

	st, applied := tr.Apply(confirm.Reading{Seq: 5, Confirmations: 6}, execprobe.NotExecuted, now)
	assert.True(t, applied)
	assert.Equal(t, Confirmed(6), st)

	st, applied = tr.Apply(confirm.Reading{Seq: 3, Confirmations: 1}, execprobe.NotExecuted, now)
	assert.False(t, applied)
	assert.Equal(t, Confirmed(6), st)

	last, ok := tr.Last()
	assert.True(t, ok)
	assert.Equal(t, Confirmed(6), last)
}

func TestExecutionTimeoutFailsOrder(t *testing.T) {
	r := testResolver(t)
	tr := r.NewTracker(6)
	t0 := time.Now()

	st, _ := tr.Apply(confirm.Reading{Seq: 1, Confirmations: 6}, execprobe.NotExecuted, t0)
	assert.Equal(t, Confirmed(6), st)

	// still inside the window
	st, _ = tr.Apply(confirm.Reading{Seq: 2, Confirmations: 7}, execprobe.NotExecuted, t0.Add(30*time.Minute))
	assert.Equal(t, Confirmed(7), st)

	// window elapsed, no execution ever observed
	st, _ = tr.Apply(confirm.Reading{Seq: 3, Confirmations: 8}, execprobe.NotExecuted, t0.Add(2*time.Hour))
	assert.Equal(t, Resolved(false, 8), st)
}

// A reorg resets the timeout clock along with the finality assumption.
func TestReorgResetsTimeoutClock(t *testing.T) {
	r := testResolver(t)
	tr := r.NewTracker(6)
	t0 := time.Now()

	tr.Apply(confirm.Reading{Seq: 1, Confirmations: 6}, execprobe.NotExecuted, t0)
	tr.Apply(confirm.Reading{Seq: 2, Confirmations: 3}, execprobe.NotExecuted, t0.Add(10*time.Minute))

	// re-confirmed late; the old confirmedAt must not trigger the timeout
	st, _ := tr.Apply(confirm.Reading{Seq: 3, Confirmations: 6}, execprobe.NotExecuted, t0.Add(3*time.Hour))
	assert.Equal(t, Confirmed(6), st)
}

func TestResolveNoTransactionObserved(t *testing.T) {
	r := testResolver(t)
	o, err := CreateOrder(testQuote(), userAddr, "")
	assert.NoError(t, err)

	src := confirm.NewMockSource()
	_, err = r.Resolve(context.Background(), o, src, nil)
	assert.ErrorIs(t, err, ErrNoTransactionObserved)
}

func TestResolveWithSourceAndProbe(t *testing.T) {
	r := testResolver(t)
	o, err := CreateOrder(testQuote(), userAddr, "")
	assert.NoError(t, err)
	o.BtcTxId = strings.Repeat("ab", 32)

	src := confirm.NewMockSource()
	src.Script(o.BtcTxId, 2, 6, 6)
	probe := execprobe.NewMockProbe()

	st, err := r.Resolve(context.Background(), o, src, probe)
	assert.NoError(t, err)
	assert.Equal(t, Pending(2), st)

	st, err = r.Resolve(context.Background(), o, src, probe)
	assert.NoError(t, err)
	assert.Equal(t, Confirmed(6), st)

	probe.Set(o.Id, execprobe.Success(randHash()))
	st, err = r.Resolve(context.Background(), o, src, probe)
	assert.NoError(t, err)
	assert.Equal(t, Resolved(true, 6), st)
}

// With a persisted first-confirmed instant, a read-only Resolve must derive
// the same timeout failure the polling loop does.
func TestResolveUsesRecordedConfirmationInstant(t *testing.T) {
	r := testResolver(t)
	o, err := CreateOrder(testQuote(), userAddr, "")
	assert.NoError(t, err)
	o.BtcTxId = strings.Repeat("ef", 32)

	src := confirm.NewMockSource()
	src.Script(o.BtcTxId, 6)

	o.ConfirmedAt = time.Now().Add(-30 * time.Minute)
	st, err := r.Resolve(context.Background(), o, src, nil)
	assert.NoError(t, err)
	assert.Equal(t, Confirmed(6), st)

	o.ConfirmedAt = time.Now().Add(-2 * time.Hour)
	st, err = r.Resolve(context.Background(), o, src, nil)
	assert.NoError(t, err)
	assert.Equal(t, Resolved(false, 6), st)
}

func TestResumeTrackerKeepsTimeoutClock(t *testing.T) {
	r := testResolver(t)
	tr := r.ResumeTracker(6, time.Now().Add(-2*time.Hour))

	st, applied := tr.Apply(confirm.Reading{Seq: 1, Confirmations: 6}, execprobe.NotExecuted, time.Now())
	assert.True(t, applied)
	assert.Equal(t, Resolved(false, 6), st)
}

// A missing commitment is a broken deposit/order binding and must be loud.
func TestResolvePanicsWithoutCommitment(t *testing.T) {
	r := testResolver(t)
	o, err := CreateOrder(testQuote(), userAddr, "")
	assert.NoError(t, err)
	o.OpReturnHash = [32]byte{}
	o.BtcTxId = strings.Repeat("cd", 32)

	assert.Panics(t, func() {
		_, _ = r.Resolve(context.Background(), o, confirm.NewMockSource(), nil)
	})
}
