package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrChainNotFound    = errors.New("chain not found in catalog")
	ErrTokenNotFound    = errors.New("token not found in catalog")
	ErrStrategyNotFound = errors.New("strategy not found in catalog")
)

// Snapshot is one immutable catalog generation. Readers always see a whole
// snapshot; refresh replaces the snapshot pointer, never mutates one.
type Snapshot struct {
	Chains     []Chain            `json:"chains"`
	Tokens     []Token            `json:"tokens"`
	Strategies []StrategyContract `json:"strategies"`

	chainBySlug    map[string]*Chain
	chainById      map[int64]*Chain
	strategyByAddr map[ethcommon.Address]*StrategyContract
}

// index builds the lookup maps. Called once before the snapshot is published.
func (s *Snapshot) index() {
	s.chainBySlug = make(map[string]*Chain, len(s.Chains))
	s.chainById = make(map[int64]*Chain, len(s.Chains))
	for i := range s.Chains {
		c := &s.Chains[i]
		s.chainBySlug[strings.ToLower(c.Slug)] = c
		if c.ChainId != 0 {
			s.chainById[c.ChainId] = c
		}
	}
	s.strategyByAddr = make(map[ethcommon.Address]*StrategyContract, len(s.Strategies))
	for i := range s.Strategies {
		sc := &s.Strategies[i]
		s.strategyByAddr[sc.EvmAddress()] = sc
	}
}

// DefaultChains are always known even with an empty catalog file.
func DefaultChains() []Chain {
	return []Chain{
		{ID: ChainBitcoin, Slug: ChainBitcoin, Name: "Bitcoin", Type: ChainTypeBitcoin},
		{ID: ChainBob, ChainId: ChainIdBob, Slug: ChainBob, Name: "BOB", Type: ChainTypeEvm,
			SingleChainSwap: true, SingleChainStaking: true},
		{ID: ChainBobSepolia, ChainId: ChainIdBobSepolia, Slug: ChainBobSepolia, Name: "BOB Sepolia", Type: ChainTypeEvm,
			SingleChainSwap: true, SingleChainStaking: true},
	}
}

// Registry is the process-wide catalog handle. Lookups read the current
// snapshot; Replace swaps the whole snapshot atomically.
type Registry struct {
	snap atomic.Value // *Snapshot
}

func NewRegistry(snap *Snapshot) *Registry {
	if snap == nil {
		snap = &Snapshot{Chains: DefaultChains()}
	}
	snap.index()
	r := &Registry{}
	r.snap.Store(snap)
	return r
}

// Replace publishes a new snapshot. Older readers keep the snapshot they
// already hold.
func (r *Registry) Replace(snap *Snapshot) {
	snap.index()
	r.snap.Store(snap)
}

func (r *Registry) current() *Snapshot {
	return r.snap.Load().(*Snapshot)
}

// ChainByRef resolves a chain from a slug ("bob") or a numeric id ("60808").
func (r *Registry) ChainByRef(ref string) (*Chain, error) {
	snap := r.current()
	if c, ok := snap.chainBySlug[strings.ToLower(strings.TrimSpace(ref))]; ok {
		return c, nil
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64); err == nil {
		if c, ok := snap.chainById[id]; ok {
			return c, nil
		}
	}
	return nil, ErrChainNotFound
}

// TokenByRef resolves a token on the given chain from a symbol or an address.
// The bitcoin chain has a single implicit native token, referenced as "BTC".
func (r *Registry) TokenByRef(chain *Chain, ref string) (*Token, error) {
	ref = strings.TrimSpace(ref)
	if chain.Type == ChainTypeBitcoin {
		if strings.EqualFold(ref, "BTC") {
			return &Token{Name: "Bitcoin", Symbol: "BTC", Decimals: 8}, nil
		}
		return nil, ErrTokenNotFound
	}
	snap := r.current()
	for i := range snap.Tokens {
		tok := &snap.Tokens[i]
		if tok.ChainId != chain.ChainId {
			continue
		}
		if strings.EqualFold(tok.Symbol, ref) {
			return tok, nil
		}
		if ethcommon.IsHexAddress(ref) && strings.EqualFold(tok.Address, ethcommon.HexToAddress(ref).Hex()) {
			return tok, nil
		}
	}
	return nil, ErrTokenNotFound
}

// StrategyByAddress resolves a strategy contract by its EVM address.
func (r *Registry) StrategyByAddress(addr ethcommon.Address) (*StrategyContract, error) {
	if sc, ok := r.current().strategyByAddr[addr]; ok {
		return sc, nil
	}
	return nil, ErrStrategyNotFound
}

// Strategies returns the client-facing summaries of the current snapshot.
func (r *Registry) Strategies() []Strategy {
	snap := r.current()
	out := make([]Strategy, 0, len(snap.Strategies))
	for i := range snap.Strategies {
		out = append(out, snap.Strategies[i].Summary())
	}
	return out
}

// LoadSnapshotFile reads a catalog snapshot from a json file.
// The default chains are merged in if the file omits them.
func LoadSnapshotFile(filePath string) (*Snapshot, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(snap.Chains))
	for _, c := range snap.Chains {
		known[c.Slug] = true
	}
	for _, c := range DefaultChains() {
		if !known[c.Slug] {
			snap.Chains = append(snap.Chains, c)
		}
	}
	return snap, nil
}

// StartRefresher reloads the catalog file periodically until ctx is done.
// A failed reload keeps the previous snapshot in place.
func (r *Registry) StartRefresher(ctx context.Context, filePath string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap, err := LoadSnapshotFile(filePath)
				if err != nil {
					logger.WithField("file", filePath).Warnf("catalog refresh failed: %v", err)
					continue
				}
				r.Replace(snap)
				logger.WithFields(logger.Fields{
					"chains":     len(snap.Chains),
					"tokens":     len(snap.Tokens),
					"strategies": len(snap.Strategies),
				}).Debug("catalog refreshed")
			}
		}
	}()
}
