// Package quote implements the gateway quote engine: request validation and
// deterministic production of deposit instructions.
package quote

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/bob-collective/gateway-go/catalog"
	"github.com/bob-collective/gateway-go/common"
)

var (
	ErrUnknownChain     = errors.New("unknown chain")
	ErrUnknownToken     = errors.New("unknown token")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidSlippage  = errors.New("invalid slippage")
	ErrInvalidFeeRate   = errors.New("invalid fee rate")
	ErrStrategyMismatch = errors.New("strategy mismatch")
)

// Slippage bounds are fractions of the output amount.
const (
	MinSlippage     = 0.01
	MaxSlippage     = 0.03
	DefaultSlippage = 0.03

	// fee rate bounds in basis points (1 BPS = 0.01%)
	MinFeeRateBps = 1
	MaxFeeRateBps = 1000

	bpsDenominator = 10000
)

// Params mirrors the gateway quote request.
type Params struct {
	FromChain string `json:"fromChain"` // slug or numeric id
	ToChain   string `json:"toChain"`
	FromToken string `json:"fromToken"` // symbol or address
	ToToken   string `json:"toToken"`

	// Amount of satoshis to send from the source chain.
	Amount int64 `json:"amount"`

	// MaxSlippage between 0.01 and 0.03. Zero means DefaultSlippage.
	MaxSlippage float64 `json:"maxSlippage,omitempty"`

	// Fee is a named partner fee override in BPS; it wins over FeeRate,
	// which wins over the gateway default rate.
	Fee     int64 `json:"fee,omitempty"`
	FeeRate int64 `json:"feeRate,omitempty"`

	// GasRefill is the amount of satoshis to swap for destination gas.
	GasRefill int64 `json:"gasRefill,omitempty"`

	StrategyAddress string `json:"strategyAddress,omitempty"`
	CampaignId      string `json:"campaignId,omitempty"`
}

// GatewayConfig is the per-deployment pricing and deposit configuration the
// engine quotes against. All quotes from one config are deterministic.
type GatewayConfig struct {
	GatewayAddress          ethcommon.Address
	BaseTokenAddress        ethcommon.Address
	BaseTokenDecimals       int
	BitcoinAddress          string // deposit address users pay into
	DustThreshold           int64  // satoshis
	DefaultFeeRateBps       int64
	TxProofDifficultyFactor uint64
	BtcChainParams          *chaincfg.Params
}

// Quote is the immutable answer to one quote request.
type Quote struct {
	GatewayAddress          ethcommon.Address  `json:"gatewayAddress"`
	BaseTokenAddress        ethcommon.Address  `json:"baseTokenAddress"`
	DustThreshold           int64              `json:"dustThreshold"`
	Satoshis                int64              `json:"satoshis"` // output amount, after fee
	Fee                     int64              `json:"fee"`      // includes gas refill
	BitcoinAddress          string             `json:"bitcoinAddress"`
	TxProofDifficultyFactor uint64             `json:"txProofDifficultyFactor"`
	StrategyAddress         *ethcommon.Address `json:"strategyAddress,omitempty"`

	// carried for order creation and stake argument assembly
	BaseTokenDecimals int   `json:"-"`
	MaxSlippageBps    int64 `json:"-"`
	GasRefill         int64 `json:"-"`
}

type Engine struct {
	registry *catalog.Registry
	cfg      GatewayConfig
}

func NewEngine(registry *catalog.Registry, cfg GatewayConfig) *Engine {
	if cfg.BtcChainParams != nil && !common.IsValidBtcAddress(cfg.BitcoinAddress, cfg.BtcChainParams) {
		logger.WithField("address", cfg.BitcoinAddress).Warn("configured deposit address is not valid for the btc network")
	}
	return &Engine{registry: registry, cfg: cfg}
}

// Quote validates the request and produces the deposit instructions.
// Read-only: identical params against an unchanged catalog snapshot yield a
// byte-identical quote.
func (e *Engine) Quote(p *Params) (*Quote, error) {
	fromChain, err := e.registry.ChainByRef(p.FromChain)
	if err != nil {
		return nil, fmt.Errorf("%w: from chain %q", ErrUnknownChain, p.FromChain)
	}
	toChain, err := e.registry.ChainByRef(p.ToChain)
	if err != nil {
		return nil, fmt.Errorf("%w: to chain %q", ErrUnknownChain, p.ToChain)
	}

	if _, err := e.registry.TokenByRef(fromChain, p.FromToken); err != nil {
		return nil, fmt.Errorf("%w: %q on chain %q", ErrUnknownToken, p.FromToken, fromChain.Slug)
	}
	if _, err := e.registry.TokenByRef(toChain, p.ToToken); err != nil {
		return nil, fmt.Errorf("%w: %q on chain %q", ErrUnknownToken, p.ToToken, toChain.Slug)
	}

	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, p.Amount)
	}
	if p.GasRefill < 0 {
		return nil, fmt.Errorf("%w: negative gas refill", ErrInvalidAmount)
	}

	var strategyAddr *ethcommon.Address
	if p.StrategyAddress != "" {
		addr := ethcommon.HexToAddress(p.StrategyAddress)
		sc, err := e.registry.StrategyByAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s not in catalog", ErrStrategyMismatch, p.StrategyAddress)
		}
		// The deposit settles into the gateway base token; the strategy
		// must consume exactly that token on the destination chain.
		if sc.ChainSlug != toChain.Slug {
			return nil, fmt.Errorf("%w: strategy on chain %q, quote targets %q", ErrStrategyMismatch, sc.ChainSlug, toChain.Slug)
		}
		if !strings.EqualFold(sc.InputToken.Address, e.cfg.BaseTokenAddress.Hex()) {
			return nil, fmt.Errorf("%w: strategy input token %s != base token %s", ErrStrategyMismatch, sc.InputToken.Address, e.cfg.BaseTokenAddress.Hex())
		}
		strategyAddr = &addr
	}

	slippageBps, err := resolveSlippageBps(p.MaxSlippage)
	if err != nil {
		return nil, err
	}
	feeRateBps, err := e.resolveFeeRateBps(p)
	if err != nil {
		return nil, err
	}

	// fee rounds up so the gateway never undercharges
	fee := (p.Amount*feeRateBps + bpsDenominator - 1) / bpsDenominator
	fee += p.GasRefill

	out := p.Amount - fee
	if out <= e.cfg.DustThreshold {
		return nil, fmt.Errorf("%w: output %d sat does not clear dust threshold %d", ErrInvalidAmount, out, e.cfg.DustThreshold)
	}

	return &Quote{
		GatewayAddress:          e.cfg.GatewayAddress,
		BaseTokenAddress:        e.cfg.BaseTokenAddress,
		DustThreshold:           e.cfg.DustThreshold,
		Satoshis:                out,
		Fee:                     fee,
		BitcoinAddress:          e.cfg.BitcoinAddress,
		TxProofDifficultyFactor: e.cfg.TxProofDifficultyFactor,
		StrategyAddress:         strategyAddr,
		BaseTokenDecimals:       e.cfg.BaseTokenDecimals,
		MaxSlippageBps:          slippageBps,
		GasRefill:               p.GasRefill,
	}, nil
}

// resolveSlippageBps validates the requested slippage and converts it to
// basis points, so everything downstream is integer arithmetic.
func resolveSlippageBps(requested float64) (int64, error) {
	if requested == 0 {
		requested = DefaultSlippage
	}
	if requested < MinSlippage || requested > MaxSlippage {
		return 0, fmt.Errorf("%w: %v not in [%v, %v]", ErrInvalidSlippage, requested, MinSlippage, MaxSlippage)
	}
	return int64(math.Round(requested * bpsDenominator)), nil
}

// resolveFeeRateBps applies the precedence rules: named Fee override wins
// over FeeRate, which wins over the gateway default.
func (e *Engine) resolveFeeRateBps(p *Params) (int64, error) {
	rate := e.cfg.DefaultFeeRateBps
	if p.FeeRate != 0 {
		if p.FeeRate < MinFeeRateBps || p.FeeRate > MaxFeeRateBps {
			return 0, fmt.Errorf("%w: feeRate %d not in [%d, %d]", ErrInvalidFeeRate, p.FeeRate, MinFeeRateBps, MaxFeeRateBps)
		}
		rate = p.FeeRate
	}
	if p.Fee != 0 {
		if p.Fee < MinFeeRateBps || p.Fee > MaxFeeRateBps {
			return 0, fmt.Errorf("%w: fee %d not in [%d, %d]", ErrInvalidFeeRate, p.Fee, MinFeeRateBps, MaxFeeRateBps)
		}
		rate = p.Fee
	}
	return rate, nil
}
