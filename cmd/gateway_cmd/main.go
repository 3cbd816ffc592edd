package main

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"

	"github.com/bob-collective/gateway-go/cmd"
	"github.com/bob-collective/gateway-go/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "GATEWAY_CONFIG"
)

func main() {
	logconfig.ConfigProductionLogger()

	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Gateway server configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Gateway server configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	if !initializeViper(_config_file) {
		return
	}

	// Make the configuration
	gsc := PrepareGatewayServerConfig()
	if gsc == nil {
		fmt.Printf("Error loading gateway server configuration\n")
		return
	}

	fmt.Println("Starting gateway server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartGatewayServerAndWait(gsc)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareGatewayServerConfig reads configuration variables and returns a
// GatewayServerConfig.
func PrepareGatewayServerConfig() *cmd.GatewayServerConfig {

	// *** prepare objects that aren't string type ***

	// Parse the BTC chain config (e.g., "regtest", "testnet", or "mainnet").
	var btcParams *chaincfg.Params
	switch viper.GetString("BTC_CHAIN_CONFIG") {
	case "testnet":
		btcParams = &chaincfg.TestNet3Params
	case "mainnet":
		btcParams = &chaincfg.MainNetParams
	case "regtest":
		btcParams = &chaincfg.RegressionNetParams
	default:
		// default to regtest
		btcParams = &chaincfg.RegressionNetParams
	}

	// The execution timeout must be set explicitly; there is no sane
	// default for "how long until a confirmed deposit counts as failed".
	executionTimeout := viper.GetDuration("EXECUTION_TIMEOUT")
	if executionTimeout <= 0 {
		fmt.Printf("EXECUTION_TIMEOUT must be set (e.g. 24h)\n")
		return nil
	}

	// *** end of preparing objects ***

	return &cmd.GatewayServerConfig{
		// state side
		DbFilePath:      viper.GetString("DB_FILE_PATH"),
		CatalogFilePath: viper.GetString("CATALOG_FILE_PATH"),
		// btc side
		BtcRpcServer:   viper.GetString("BTC_RPC_SERVER"),
		BtcRpcPort:     viper.GetString("BTC_RPC_PORT"),
		BtcRpcUsername: viper.GetString("BTC_RPC_USERNAME"),
		BtcRpcPwd:      viper.GetString("BTC_RPC_PWD"),
		BtcChainConfig: btcParams,
		// evm side
		EvmRpcUrl: viper.GetString("EVM_RPC_URL"),
		// chain scanning
		BtcScanStartHeight:     viper.GetInt64("BTC_SCAN_START_HEIGHT"),
		OffRampContractAddress: viper.GetString("OFFRAMP_CONTRACT_ADDRESS"),
		EvmScanStartBlock:      viper.GetUint64("EVM_SCAN_START_BLOCK"),
		// gateway pricing
		GatewayAddress:          viper.GetString("GATEWAY_ADDRESS"),
		BaseTokenAddress:        viper.GetString("BASE_TOKEN_ADDRESS"),
		BaseTokenDecimals:       viper.GetInt("BASE_TOKEN_DECIMALS"),
		BitcoinDepositAddress:   viper.GetString("BITCOIN_DEPOSIT_ADDRESS"),
		DustThreshold:           viper.GetInt64("DUST_THRESHOLD"),
		DefaultFeeRateBps:       viper.GetInt64("DEFAULT_FEE_RATE_BPS"),
		TxProofDifficultyFactor: uint64(viper.GetInt64("TX_PROOF_DIFFICULTY_FACTOR")),
		// settlement policy
		ExecutionTimeout: executionTimeout,
		// http side
		HttpIp:      viper.GetString("HTTP_IP"),
		HttpPort:    viper.GetString("HTTP_PORT"),
		MetricsPort: viper.GetString("METRICS_PORT"),
	}
}
