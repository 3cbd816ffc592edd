// Package catalog holds the static reference data the gateway serves
// quotes against: known chains, tokens and strategy contracts.
package catalog

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Well-known chain slugs and ids.
const (
	ChainBitcoin    = "bitcoin"
	ChainBob        = "bob"
	ChainBobSepolia = "bob-sepolia"

	ChainIdBob        int64 = 60808
	ChainIdBobSepolia int64 = 808813
)

type ChainType string

const (
	ChainTypeEvm     ChainType = "evm"
	ChainTypeBitcoin ChainType = "bitcoin"
)

// Chain describes one supported network.
type Chain struct {
	ID                 string    `json:"id"`
	ChainId            int64     `json:"chainId"`
	Slug               string    `json:"slug"`
	Name               string    `json:"name"`
	Type               ChainType `json:"type"`
	SingleChainSwap    bool      `json:"singleChainSwap"`
	SingleChainStaking bool      `json:"singleChainStaking"`
	TxExplorer         string    `json:"txExplorer,omitempty"`
	RpcUrl             string    `json:"rpcUrl,omitempty"`
}

// Token is compatible with the Superchain token list entries.
type Token struct {
	ChainId  int64  `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
}

type IntegrationType string

const (
	IntegrationBridge  IntegrationType = "bridge"
	IntegrationDex     IntegrationType = "dex"
	IntegrationStaking IntegrationType = "staking"
	IntegrationLending IntegrationType = "lending"
)

// Integration is the project behind a strategy contract.
type Integration struct {
	Type         IntegrationType `json:"type"`
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	Logo         string          `json:"logo,omitempty"`
	Monetization bool            `json:"monetization"`
}

type StrategyType string

const (
	StrategyDeposit  StrategyType = "deposit"
	StrategyWithdraw StrategyType = "withdraw"
	StrategyClaim    StrategyType = "claim"
)

// StrategyContract is one staking/lending integration the gateway can
// execute into after a deposit settles.
type StrategyContract struct {
	ID          string       `json:"id"`
	Type        StrategyType `json:"type"`
	Address     string       `json:"address"`
	Method      string       `json:"method"`
	ChainSlug   string       `json:"chain"`
	Integration Integration  `json:"integration"`
	InputToken  Token        `json:"inputToken"`
	OutputToken *Token       `json:"outputToken,omitempty"`
}

// EvmAddress returns the checksummed contract address.
func (sc *StrategyContract) EvmAddress() ethcommon.Address {
	return ethcommon.HexToAddress(sc.Address)
}

// Strategy is the flat summary served to clients.
type Strategy struct {
	StrategyAddress    string `json:"strategyAddress"`
	StrategyName       string `json:"strategyName"`
	StrategyType       string `json:"strategyType"`
	ProjectName        string `json:"projectName"`
	ProjectLogo        string `json:"projectLogo,omitempty"`
	InputTokenAddress  string `json:"inputTokenAddress"`
	OutputTokenAddress string `json:"outputTokenAddress,omitempty"`
}

// Summary flattens a StrategyContract into the client-facing Strategy.
func (sc *StrategyContract) Summary() Strategy {
	s := Strategy{
		StrategyAddress:   sc.Address,
		StrategyName:      sc.ID,
		StrategyType:      string(sc.Integration.Type),
		ProjectName:       sc.Integration.Name,
		ProjectLogo:       sc.Integration.Logo,
		InputTokenAddress: sc.InputToken.Address,
	}
	if sc.OutputToken != nil {
		s.OutputTokenAddress = sc.OutputToken.Address
	}
	return s
}
