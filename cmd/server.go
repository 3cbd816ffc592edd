// Server = quote engine + order db + settlement poller + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/bob-collective/gateway-go/btcscan"
	"github.com/bob-collective/gateway-go/catalog"
	"github.com/bob-collective/gateway-go/confirm"
	"github.com/bob-collective/gateway-go/database"
	"github.com/bob-collective/gateway-go/execprobe"
	"github.com/bob-collective/gateway-go/lockwatch"
	"github.com/bob-collective/gateway-go/order"
	"github.com/bob-collective/gateway-go/orderdb"
	"github.com/bob-collective/gateway-go/poller"
	"github.com/bob-collective/gateway-go/quote"
	"github.com/bob-collective/gateway-go/reporter"
)

// Default params for the server. More often we don't recommend users to
// tweak those, so we list them here.
const (
	frequencyToPollSettlement = 5 * time.Second
	frequencyToRefreshCatalog = 5 * time.Minute
	frequencyToScanBtcChain   = 10 * time.Second
	frequencyToScanEvmChain   = 10 * time.Second
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type GatewayServerConfig struct {
	// state side
	DbFilePath      string // db file path
	CatalogFilePath string // catalog json file path

	// btc side
	BtcRpcServer   string           // btc rpc server info
	BtcRpcPort     string           // btc rpc server info
	BtcRpcUsername string           // btc rpc server info
	BtcRpcPwd      string           // btc rpc server info
	BtcChainConfig *chaincfg.Params // regtest, testnet, mainnet?

	// evm side
	EvmRpcUrl string // json rpc url of the destination chain

	// chain scanning
	BtcScanStartHeight     int64  // first btc block to scan for deposits
	OffRampContractAddress string // empty disables off-ramp watching
	EvmScanStartBlock      uint64 // first evm block to scan for lock events

	// gateway pricing
	GatewayAddress          string // gateway contract address
	BaseTokenAddress        string // wrapped btc token address
	BaseTokenDecimals       int
	BitcoinDepositAddress   string // address users pay deposits into
	DustThreshold           int64  // satoshis
	DefaultFeeRateBps       int64
	TxProofDifficultyFactor uint64

	// settlement policy
	ExecutionTimeout time.Duration // required, forces Confirmed -> failed

	// http side
	HttpIp      string // eg. 0.0.0.0
	HttpPort    string // eg. 8080
	MetricsPort string // eg. 9090, empty disables metrics
}

// GatewayServer holds the objects that consists of the gateway server.
type GatewayServer struct {
	MyRegistry *catalog.Registry
	MyEngine   *quote.Engine
	MyOrderDB  *orderdb.OrderDB
	MyResolver *order.Resolver
	MySource   *confirm.SequencedSource
	MyProbe    *execprobe.EthProbe
	MyPoller   *poller.Poller
	MyScanner  *btcscan.Scanner
	MyWatcher  *lockwatch.Watcher // nil when no off-ramp contract is configured
	MyReporter *reporter.HttpReporter
}

// NewGatewayServer creates a new gateway server.
// ctx is used for parental context to cancel the poller and refresher loops.
func NewGatewayServer(gsc *GatewayServerConfig, ctx context.Context) (*GatewayServer, error) {
	// 1) catalog registry (+ background refresh)
	var snap *catalog.Snapshot
	if gsc.CatalogFilePath != "" {
		var err error
		snap, err = catalog.LoadSnapshotFile(gsc.CatalogFilePath)
		if err != nil {
			logger.Fatalf("cannot load catalog file %s: %v", gsc.CatalogFilePath, err)
			return nil, err
		}
	}
	myRegistry := catalog.NewRegistry(snap)
	if gsc.CatalogFilePath != "" {
		myRegistry.StartRefresher(ctx, gsc.CatalogFilePath, frequencyToRefreshCatalog)
	}

	// 2) quote engine over the registry
	myEngine := quote.NewEngine(myRegistry, quote.GatewayConfig{
		GatewayAddress:          ethcommon.HexToAddress(gsc.GatewayAddress),
		BaseTokenAddress:        ethcommon.HexToAddress(gsc.BaseTokenAddress),
		BaseTokenDecimals:       gsc.BaseTokenDecimals,
		BitcoinAddress:          gsc.BitcoinDepositAddress,
		DustThreshold:           gsc.DustThreshold,
		DefaultFeeRateBps:       gsc.DefaultFeeRateBps,
		TxProofDifficultyFactor: gsc.TxProofDifficultyFactor,
		BtcChainParams:          gsc.BtcChainConfig,
	})

	// 3) order database
	db, err := database.OpenSQLite(gsc.DbFilePath)
	if err != nil {
		logger.Fatalf("cannot open db file %s: %v", gsc.DbFilePath, err)
		return nil, err
	}
	myOrderDB, err := orderdb.NewOrderDB(db)
	if err != nil {
		logger.Fatalf("cannot create order db: %v", err)
		return nil, err
	}

	// 4) confirmation source against the btc node
	rpcSource, err := confirm.NewRpcSource(&confirm.RpcSourceConfig{
		ServerAddr: gsc.BtcRpcServer,
		Port:       gsc.BtcRpcPort,
		Username:   gsc.BtcRpcUsername,
		Pwd:        gsc.BtcRpcPwd,
	})
	if err != nil {
		logger.Fatalf("cannot connect to btc rpc server with %s:%s: %v", gsc.BtcRpcServer, gsc.BtcRpcPort, err)
		return nil, err
	}
	mySource := confirm.NewSequencedSource(rpcSource)

	// 5) execution probe against the evm node
	myProbe, err := execprobe.NewEthProbe(gsc.EvmRpcUrl, myOrderDB)
	if err != nil {
		logger.Fatalf("cannot connect to evm rpc %s: %v", gsc.EvmRpcUrl, err)
		return nil, err
	}

	// 6) resolver; the execution timeout has no default on purpose
	myResolver, err := order.NewResolver(order.ResolverConfig{
		ExecutionTimeout: gsc.ExecutionTimeout,
	})
	if err != nil {
		logger.Fatalf("cannot create resolver: %v", err)
		return nil, err
	}

	// 7) settlement poller
	myPoller := poller.New(myOrderDB, mySource, myProbe, myResolver, poller.Config{
		Interval:             frequencyToPollSettlement,
		OffRampConfirmations: gsc.TxProofDifficultyFactor,
	})
	go func() {
		if err := myPoller.Start(ctx); err != nil && err != context.Canceled {
			logger.Errorf("poller stopped: %v", err)
		}
	}()

	if gsc.MetricsPort != "" {
		go func() {
			addr := gsc.HttpIp + ":" + gsc.MetricsPort
			if err := http.ListenAndServe(addr, myPoller.MetricsHandler()); err != nil {
				logger.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	// 8) btc deposit scanner against the same btc node
	blockSource, err := btcscan.NewRpcBlockSource(&btcscan.RpcBlockSourceConfig{
		ServerAddr: gsc.BtcRpcServer,
		Port:       gsc.BtcRpcPort,
		Username:   gsc.BtcRpcUsername,
		Pwd:        gsc.BtcRpcPwd,
	})
	if err != nil {
		logger.Fatalf("cannot connect to btc rpc server with %s:%s: %v", gsc.BtcRpcServer, gsc.BtcRpcPort, err)
		return nil, err
	}
	myScanner, err := btcscan.NewScanner(blockSource, myOrderDB, gsc.BitcoinDepositAddress, gsc.BtcChainConfig, gsc.BtcScanStartHeight)
	if err != nil {
		logger.Fatalf("cannot create btc deposit scanner: %v", err)
		return nil, err
	}
	go func() {
		if err := myScanner.Start(ctx, frequencyToScanBtcChain); err != nil && err != context.Canceled {
			logger.Errorf("btc deposit scanner stopped: %v", err)
		}
	}()

	// 9) off-ramp lock watcher, only when a contract is configured
	var myWatcher *lockwatch.Watcher
	if gsc.OffRampContractAddress != "" {
		logSource, err := lockwatch.NewRpcLogSource(gsc.EvmRpcUrl, ethcommon.HexToAddress(gsc.OffRampContractAddress))
		if err != nil {
			logger.Fatalf("cannot connect to evm rpc %s: %v", gsc.EvmRpcUrl, err)
			return nil, err
		}
		myWatcher = lockwatch.NewWatcher(logSource, myOrderDB, gsc.BtcChainConfig, gsc.EvmScanStartBlock)
		go func() {
			if err := myWatcher.Start(ctx, frequencyToScanEvmChain); err != nil && err != context.Canceled {
				logger.Errorf("off-ramp lock watcher stopped: %v", err)
			}
		}()
	}

	// 10) http reporter
	myReporter := reporter.NewHttpReporter(
		gsc.HttpIp,
		gsc.HttpPort,
		myOrderDB,
		myRegistry,
		myResolver,
		mySource,
		myProbe,
	)
	go myReporter.Run()

	// Give it some time to start the http server
	time.Sleep(1 * time.Second)

	return &GatewayServer{
		MyRegistry: myRegistry,
		MyEngine:   myEngine,
		MyOrderDB:  myOrderDB,
		MyResolver: myResolver,
		MySource:   mySource,
		MyProbe:    myProbe,
		MyPoller:   myPoller,
		MyScanner:  myScanner,
		MyWatcher:  myWatcher,
		MyReporter: myReporter,
	}, nil
}

// Create, then start the gateway server and wait.
// Press Ctrl-C to kill the server.
func StartGatewayServerAndWait(gsc *GatewayServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	srv, err := NewGatewayServer(gsc, ctx)
	if err != nil {
		logger.Fatalf("failed to create gateway server: %v", err)
		return
	}

	sig := <-sigCh
	fmt.Printf("Received signal: %v, shutting down...\n", sig)
	cancel()

	srv.MyOrderDB.Close()
	srv.MyProbe.Close()
}

// FileExists reports whether the file is there.
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
