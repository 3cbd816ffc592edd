package orderdb

import "strings"

var (
	strZeroBytes32 = strings.Repeat("0", 64)
	strZeroBytes20 = strings.Repeat("0", 40)

	// table that stores the life cycle of an on-ramp order
	ordersTable = `CREATE TABLE IF NOT EXISTS orders (
		uuid CHAR(36) PRIMARY KEY NOT NULL,
		opReturnHash CHAR(64) UNIQUE NOT NULL,
		gatewayAddress CHAR(40) NOT NULL,
		baseTokenAddress CHAR(40) NOT NULL,
		baseTokenDecimals INTEGER NOT NULL,
		userAddress CHAR(40) NOT NULL,
		satoshis BIGINT NOT NULL,
		fee BIGINT NOT NULL,
		gasRefill BIGINT NOT NULL DEFAULT 0,
		bitcoinAddress VARCHAR(62) NOT NULL,
		txProofDifficultyFactor INTEGER NOT NULL,
		strategyAddress CHAR(40),
		maxSlippageBps INTEGER NOT NULL,
		campaignId VARCHAR(64),
		createdAt BIGINT NOT NULL,
		btcTxId CHAR(64),
		confirmedAt BIGINT,
		evmTxHash CHAR(64),
		executed BOOLEAN,
		outputTokenAddress CHAR(40),
		outputTokenAmount VARCHAR(78),
		outputEthAmount VARCHAR(78),
		CONSTRAINT chk_satoshis CHECK (satoshis > 0),
		CONSTRAINT chk_fee CHECK (fee >= 0),
		CONSTRAINT chk_opReturnHash CHECK (opReturnHash != '` + strZeroBytes32 + `'),
		CONSTRAINT chk_userAddress CHECK (userAddress != '` + strZeroBytes20 + `'),
		CONSTRAINT chk_btcTxId CHECK (btcTxId IS NULL OR btcTxId != '` + strZeroBytes32 + `')
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(userAddress);`

	// table that stores off-ramp payout orders; the unique evm lock tx hash
	// doubles as the secondary index for matching lock events
	offRampTable = `CREATE TABLE IF NOT EXISTS offramp_orders (
		requestId CHAR(36) PRIMARY KEY NOT NULL,
		offrampAddress CHAR(40) NOT NULL,
		satoshisToGet BIGINT NOT NULL,
		evmTxHash CHAR(64) UNIQUE NOT NULL,
		btcTxHash CHAR(64),
		userAddress CHAR(40) NOT NULL,
		userBtcAddress VARCHAR(62) NOT NULL,
		amountLocked VARCHAR(78) NOT NULL,
		maxFees VARCHAR(78) NOT NULL,
		token CHAR(40) NOT NULL,
		done BOOLEAN NOT NULL DEFAULT 0,
		createdAt BIGINT NOT NULL,
		CONSTRAINT chk_satoshisToGet CHECK (satoshisToGet > 0),
		CONSTRAINT chk_evmTxHash CHECK (evmTxHash != '` + strZeroBytes32 + `'),
		CONSTRAINT chk_btcTxHash CHECK (btcTxHash IS NULL OR btcTxHash != '` + strZeroBytes32 + `')
	);`

	orderColumns = ` uuid, opReturnHash, gatewayAddress, baseTokenAddress, baseTokenDecimals,
		userAddress, satoshis, fee, gasRefill, bitcoinAddress, txProofDifficultyFactor,
		strategyAddress, maxSlippageBps, campaignId, createdAt, btcTxId, confirmedAt,
		evmTxHash, executed, outputTokenAddress, outputTokenAmount, outputEthAmount `

	offRampColumns = ` requestId, offrampAddress, satoshisToGet, evmTxHash, btcTxHash,
		userAddress, userBtcAddress, amountLocked, maxFees, token, done, createdAt `
)
