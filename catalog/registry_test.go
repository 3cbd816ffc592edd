package catalog

import (
	"os"
	"path/filepath"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

const (
	regWbtcAddr     = "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"
	regStrategyAddr = "0x06cEA150E651236499319d78f92791f0FAe6FE67"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Chains: DefaultChains(),
		Tokens: []Token{
			{ChainId: ChainIdBob, Address: regWbtcAddr, Symbol: "WBTC", Decimals: 8},
			{ChainId: ChainIdBobSepolia, Address: "0x6744baBDf02DCF578EA173A9F0637771A9e1c4d0", Symbol: "WBTC", Decimals: 8},
		},
		Strategies: []StrategyContract{
			{
				ID:        "pell-deposit-unibtc",
				Type:      StrategyDeposit,
				Address:   regStrategyAddr,
				Method:    "deposit",
				ChainSlug: ChainBob,
				Integration: Integration{
					Type: IntegrationStaking,
					Slug: "pell",
					Name: "Pell Network",
				},
				InputToken: Token{ChainId: ChainIdBob, Address: regWbtcAddr, Symbol: "WBTC", Decimals: 8},
			},
		},
	}
}

func TestChainByRef(t *testing.T) {
	r := NewRegistry(testSnapshot())

	bySlug, err := r.ChainByRef("bob")
	assert.NoError(t, err)
	assert.Equal(t, ChainIdBob, bySlug.ChainId)

	byCase, err := r.ChainByRef("  BOB ")
	assert.NoError(t, err)
	assert.Equal(t, bySlug, byCase)

	byId, err := r.ChainByRef("60808")
	assert.NoError(t, err)
	assert.Equal(t, bySlug, byId)

	btc, err := r.ChainByRef("bitcoin")
	assert.NoError(t, err)
	assert.Equal(t, ChainTypeBitcoin, btc.Type)

	_, err = r.ChainByRef("solana")
	assert.ErrorIs(t, err, ErrChainNotFound)
	_, err = r.ChainByRef("1")
	assert.ErrorIs(t, err, ErrChainNotFound)
}

func TestTokenByRef(t *testing.T) {
	r := NewRegistry(testSnapshot())
	bob, err := r.ChainByRef("bob")
	assert.NoError(t, err)

	bySymbol, err := r.TokenByRef(bob, "wbtc")
	assert.NoError(t, err)
	assert.Equal(t, regWbtcAddr, bySymbol.Address)

	byAddr, err := r.TokenByRef(bob, regWbtcAddr)
	assert.NoError(t, err)
	assert.Equal(t, bySymbol, byAddr)

	_, err = r.TokenByRef(bob, "USDC")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// the same symbol on another chain resolves to that chain's address
	sepolia, err := r.ChainByRef(ChainBobSepolia)
	assert.NoError(t, err)
	sepoliaTok, err := r.TokenByRef(sepolia, "WBTC")
	assert.NoError(t, err)
	assert.NotEqual(t, bySymbol.Address, sepoliaTok.Address)
}

func TestTokenByRefBitcoin(t *testing.T) {
	r := NewRegistry(testSnapshot())
	btc, err := r.ChainByRef("bitcoin")
	assert.NoError(t, err)

	tok, err := r.TokenByRef(btc, "btc")
	assert.NoError(t, err)
	assert.Equal(t, "BTC", tok.Symbol)
	assert.Equal(t, 8, tok.Decimals)

	_, err = r.TokenByRef(btc, "WBTC")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestStrategyByAddress(t *testing.T) {
	r := NewRegistry(testSnapshot())

	sc, err := r.StrategyByAddress(ethcommon.HexToAddress(regStrategyAddr))
	assert.NoError(t, err)
	assert.Equal(t, "deposit", sc.Method)

	_, err = r.StrategyByAddress(ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"))
	assert.ErrorIs(t, err, ErrStrategyNotFound)

	summaries := r.Strategies()
	assert.Len(t, summaries, 1)
	assert.Equal(t, regStrategyAddr, summaries[0].StrategyAddress)
	assert.Equal(t, "staking", summaries[0].StrategyType)
}

func TestNilRegistryHasDefaultChains(t *testing.T) {
	r := NewRegistry(nil)

	for _, slug := range []string{ChainBitcoin, ChainBob, ChainBobSepolia} {
		_, err := r.ChainByRef(slug)
		assert.NoError(t, err, slug)
	}
	assert.Empty(t, r.Strategies())
}

func TestReplaceSwapsSnapshot(t *testing.T) {
	r := NewRegistry(testSnapshot())

	next := testSnapshot()
	next.Strategies = nil
	next.Tokens = append(next.Tokens, Token{ChainId: ChainIdBob, Address: "0x05D032ac25d322df992303dCa074EE7392C117b9", Symbol: "USDT", Decimals: 6})
	r.Replace(next)

	assert.Empty(t, r.Strategies())
	bob, err := r.ChainByRef("bob")
	assert.NoError(t, err)
	_, err = r.TokenByRef(bob, "USDT")
	assert.NoError(t, err)
}

func TestLoadSnapshotFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")

	blob := `{
		"tokens": [
			{"chainId": 60808, "address": "` + regWbtcAddr + `", "symbol": "WBTC", "decimals": 8}
		],
		"strategies": []
	}`
	assert.NoError(t, os.WriteFile(path, []byte(blob), 0o600))

	snap, err := LoadSnapshotFile(path)
	assert.NoError(t, err)

	// default chains are merged in when the file omits them
	assert.Len(t, snap.Chains, 3)
	assert.Len(t, snap.Tokens, 1)

	r := NewRegistry(snap)
	bob, err := r.ChainByRef("bob")
	assert.NoError(t, err)
	_, err = r.TokenByRef(bob, "WBTC")
	assert.NoError(t, err)

	_, err = LoadSnapshotFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
