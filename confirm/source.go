// Package confirm provides bitcoin confirmation counting for the status
// resolver. The resolver never talks to the network itself; it consumes
// sequenced readings produced here.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrTransactionNotFound means the bitcoin node has never seen the tx.
	// The caller decides whether absence is expected (not broadcast yet).
	ErrTransactionNotFound = errors.New("bitcoin transaction not found")
)

// TransientLookupError wraps a transport-level failure. The polling layer
// retries these with backoff; they are never a terminal order failure.
type TransientLookupError struct {
	Op  string
	Err error
}

func (e *TransientLookupError) Error() string {
	return fmt.Sprintf("transient lookup error during %s: %v", e.Op, e.Err)
}

func (e *TransientLookupError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientLookupError
	return errors.As(err, &te)
}

// Source answers "how many confirmations does this tx have right now".
// knownTipHeight <= 0 means the tip is unknown and the source should query it.
type Source interface {
	GetConfirmations(ctx context.Context, txid string, knownTipHeight int64) (uint64, error)
}

// Reading is one confirmation observation tagged with an issue-order
// sequence number. A later-issued reading always carries a higher Seq, so a
// stale response that returns out of order can be detected and discarded.
type Reading struct {
	Seq           uint64
	Confirmations uint64
}

// SequencedSource stamps each read with a monotonically increasing sequence
// number taken at issue time, before the lookup is performed.
type SequencedSource struct {
	src Source
	seq atomic.Uint64
}

func NewSequencedSource(src Source) *SequencedSource {
	return &SequencedSource{src: src}
}

// GetConfirmations performs an unsequenced lookup against the wrapped
// source, so a SequencedSource can stand in wherever a plain Source is
// expected. Callers that need stale-read detection use Read.
func (s *SequencedSource) GetConfirmations(ctx context.Context, txid string, knownTipHeight int64) (uint64, error) {
	return s.src.GetConfirmations(ctx, txid, knownTipHeight)
}

func (s *SequencedSource) Read(ctx context.Context, txid string, knownTipHeight int64) (Reading, error) {
	seq := s.seq.Add(1)
	confs, err := s.src.GetConfirmations(ctx, txid, knownTipHeight)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Seq: seq, Confirmations: confs}, nil
}

// MockSource is a scripted confirmation source for tests.
type MockSource struct {
	mu    sync.Mutex
	confs map[string][]uint64 // per-txid script, consumed front to back
	errs  map[string]error
}

func NewMockSource() *MockSource {
	return &MockSource{
		confs: make(map[string][]uint64),
		errs:  make(map[string]error),
	}
}

// Script queues confirmation counts to be returned for txid, in order.
// The last value repeats once the script is exhausted.
func (m *MockSource) Script(txid string, confs ...uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confs[txid] = append(m.confs[txid], confs...)
}

func (m *MockSource) Fail(txid string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[txid] = err
}

func (m *MockSource) GetConfirmations(_ context.Context, txid string, _ int64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[txid]; err != nil {
		return 0, err
	}
	script := m.confs[txid]
	if len(script) == 0 {
		return 0, ErrTransactionNotFound
	}
	v := script[0]
	if len(script) > 1 {
		m.confs[txid] = script[1:]
	}
	return v, nil
}
