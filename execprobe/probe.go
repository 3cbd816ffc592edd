// Package execprobe answers whether an order's destination-chain action has
// executed. Bitcoin confirmations alone never prove the EVM leg succeeded;
// the resolver needs this independent observation to reach a terminal state.
package execprobe

import (
	"context"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// Result is the observed destination-chain execution fact for one order.
type Result struct {
	State  State
	TxHash ethcommon.Hash // set when State == StateSuccess
	Reason string         // set when State == StateFailure
}

// NotExecuted is the Result before any destination execution is observed.
var NotExecuted = Result{State: StatePending}

func Success(txHash ethcommon.Hash) Result {
	return Result{State: StateSuccess, TxHash: txHash}
}

func Failure(reason string) Result {
	return Result{State: StateFailure, Reason: reason}
}

// Probe looks up the execution result for an order.
type Probe interface {
	GetExecutionResult(ctx context.Context, orderId uuid.UUID) (Result, error)
}

// MockProbe is a settable probe for tests.
type MockProbe struct {
	mu      sync.Mutex
	results map[uuid.UUID]Result
	err     error
}

func NewMockProbe() *MockProbe {
	return &MockProbe{results: make(map[uuid.UUID]Result)}
}

func (m *MockProbe) Set(orderId uuid.UUID, res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[orderId] = res
}

func (m *MockProbe) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockProbe) GetExecutionResult(_ context.Context, orderId uuid.UUID) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Result{}, m.err
	}
	if res, ok := m.results[orderId]; ok {
		return res, nil
	}
	return NotExecuted, nil
}
