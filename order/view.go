package order

import (
	"context"
	"math/big"

	"github.com/bob-collective/gateway-go/catalog"
	"github.com/bob-collective/gateway-go/confirm"
	"github.com/bob-collective/gateway-go/execprobe"
)

// GatewayOrder is the enriched, read-only view of an Order. Everything here
// is computed on read from the order plus collaborator handles; nothing is
// independently persisted.
type GatewayOrder struct {
	Order    *Order
	registry *catalog.Registry
}

func NewGatewayOrder(o *Order, registry *catalog.Registry) *GatewayOrder {
	return &GatewayOrder{Order: o, registry: registry}
}

// TokenAddress is the address of the token the user actually receives: the
// strategy output token once the strategy executed, the base token otherwise.
func (g *GatewayOrder) TokenAddress() string {
	if g.Order.OutputTokenAddress != nil {
		return g.Order.OutputTokenAddress.Hex()
	}
	return g.Order.BaseTokenAddress.Hex()
}

// Token resolves the received token in the catalog, when it is listed there.
func (g *GatewayOrder) Token() (*catalog.Token, bool) {
	if !g.Order.HasStrategy() {
		return nil, false
	}
	sc, err := g.registry.StrategyByAddress(*g.Order.StrategyAddress)
	if err != nil {
		return nil, false
	}
	if g.Order.OutputTokenAddress != nil && sc.OutputToken != nil {
		return sc.OutputToken, true
	}
	return &sc.InputToken, true
}

// TokenAmount is the amount actually received, in the received token's
// smallest unit. Before execution it is the quoted base-token amount.
func (g *GatewayOrder) TokenAmount() *big.Int {
	if g.Order.OutputTokenAmount != nil {
		return new(big.Int).Set(g.Order.OutputTokenAmount)
	}
	return SatsToTokenUnits(g.Order.Satoshis, g.Order.BaseTokenDecimals)
}

// Confirmations is the live confirmation count of the deposit.
func (g *GatewayOrder) Confirmations(ctx context.Context, src confirm.Source, latestHeight int64) (uint64, error) {
	if g.Order.BtcTxId == "" {
		return 0, ErrNoTransactionObserved
	}
	return src.GetConfirmations(ctx, g.Order.BtcTxId, latestHeight)
}

// Status is the live settlement status of the order.
func (g *GatewayOrder) Status(ctx context.Context, resolver *Resolver, src confirm.Source, probe execprobe.Probe) (OrderStatus, error) {
	return resolver.Resolve(ctx, g.Order, src, probe)
}

// Response is the externally reported order shape.
type Response struct {
	GatewayAddress          string `json:"gatewayAddress"`
	BaseTokenAddress        string `json:"baseTokenAddress"`
	Txid                    string `json:"txid"`
	Status                  bool   `json:"status"` // true once executed on the destination chain
	Timestamp               int64  `json:"timestamp"`
	Tokens                  string `json:"tokens"`
	Satoshis                int64  `json:"satoshis"`
	Fee                     int64  `json:"fee"`
	TxProofDifficultyFactor uint64 `json:"txProofDifficultyFactor"`
	StrategyAddress         string `json:"strategyAddress,omitempty"`
	GasRefill               int64  `json:"gasRefill"`
	OutputEthAmount         string `json:"outputEthAmount,omitempty"`
	OutputTokenAddress      string `json:"outputTokenAddress,omitempty"`
	OutputTokenAmount       string `json:"outputTokenAmount,omitempty"`
	TxHash                  string `json:"txHash,omitempty"`
}

// Response materializes the reported view of the order.
func (g *GatewayOrder) Response() Response {
	o := g.Order
	resp := Response{
		GatewayAddress:          o.GatewayAddress.Hex(),
		BaseTokenAddress:        o.BaseTokenAddress.Hex(),
		Txid:                    o.BtcTxId,
		Status:                  o.EvmTxHash != nil,
		Timestamp:               o.CreatedAt.Unix(),
		Tokens:                  g.TokenAmount().String(),
		Satoshis:                o.Satoshis,
		Fee:                     o.Fee,
		TxProofDifficultyFactor: o.TxProofDifficultyFactor,
		GasRefill:               o.GasRefill,
	}
	if o.StrategyAddress != nil {
		resp.StrategyAddress = o.StrategyAddress.Hex()
	}
	if o.OutputEthAmount != nil {
		resp.OutputEthAmount = o.OutputEthAmount.String()
	}
	if o.OutputTokenAddress != nil {
		resp.OutputTokenAddress = o.OutputTokenAddress.Hex()
	}
	if o.OutputTokenAmount != nil {
		resp.OutputTokenAmount = o.OutputTokenAmount.String()
	}
	if o.EvmTxHash != nil {
		resp.TxHash = o.EvmTxHash.Hex()
	}
	return resp
}

// SatsToTokenUnits scales a satoshi amount to a token's smallest unit.
// Bitcoin has 8 decimals; wrapped representations may have more or fewer.
func SatsToTokenUnits(sats int64, decimals int) *big.Int {
	v := big.NewInt(sats)
	switch {
	case decimals > 8:
		exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-8)), nil)
		return v.Mul(v, exp)
	case decimals < 8:
		exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(8-decimals)), nil)
		return v.Div(v, exp)
	default:
		return v
	}
}
