// Package orderdb persists on-ramp and off-ramp orders in sqlite. Orders are
// keyed by uuid with secondary lookups by commitment hash (to match incoming
// bitcoin transactions) and by user address (to list).
package orderdb

import (
	"database/sql"
	"errors"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/bob-collective/gateway-go/common"
	"github.com/bob-collective/gateway-go/database"
	"github.com/bob-collective/gateway-go/order"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

type OrderDB struct {
	stmtCache *database.StmtCache
}

func NewOrderDB(db *sql.DB) (*OrderDB, error) {
	if _, err := db.Exec(ordersTable + offRampTable); err != nil {
		return nil, err
	}
	return &OrderDB{stmtCache: database.NewStmtCache(db)}, nil
}

func (d *OrderDB) Close() {
	d.stmtCache.Clear()
}

func (d *OrderDB) InsertOrder(o *order.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := d.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	var strategyHex interface{}
	if o.StrategyAddress != nil {
		strategyHex = addrHex(*o.StrategyAddress)
	}
	var campaign interface{}
	if o.CampaignId != "" {
		campaign = o.CampaignId
	}
	var btcTxId interface{}
	if o.BtcTxId != "" {
		btcTxId = o.BtcTxId
	}
	var confirmedAt interface{}
	if !o.ConfirmedAt.IsZero() {
		confirmedAt = o.ConfirmedAt.Unix()
	}

	_, err = stmt.Exec(
		o.Id.String(),
		hashHex(o.OpReturnHash),
		addrHex(o.GatewayAddress),
		addrHex(o.BaseTokenAddress),
		o.BaseTokenDecimals,
		addrHex(o.UserAddress),
		o.Satoshis,
		o.Fee,
		o.GasRefill,
		o.BitcoinAddress,
		o.TxProofDifficultyFactor,
		strategyHex,
		o.MaxSlippageBps,
		campaign,
		o.CreatedAt.Unix(),
		btcTxId,
		confirmedAt,
		nil, nil, nil, nil, nil,
	)
	return err
}

func (d *OrderDB) GetOrder(id uuid.UUID) (*order.Order, bool, error) {
	return d.getOrderWhere(`uuid = ?`, id.String())
}

// GetOrderByCommitment matches an incoming bitcoin transaction's OP_RETURN
// payload to its order.
func (d *OrderDB) GetOrderByCommitment(opReturnHash ethcommon.Hash) (*order.Order, bool, error) {
	return d.getOrderWhere(`opReturnHash = ?`, hashHex(opReturnHash))
}

func (d *OrderDB) getOrderWhere(where string, arg interface{}) (*order.Order, bool, error) {
	query := `SELECT` + orderColumns + `FROM orders WHERE ` + where
	stmt, err := d.stmtCache.Prepare(query)
	if err != nil {
		return nil, false, err
	}
	o, err := scanOrder(stmt.QueryRow(arg))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

func (d *OrderDB) ListOrdersByUser(user ethcommon.Address) ([]*order.Order, error) {
	return d.listOrdersWhere(`userAddress = ?`, addrHex(user))
}

// ListOpenOrders returns orders whose destination execution has not been
// decided yet; the poller iterates these.
func (d *OrderDB) ListOpenOrders() ([]*order.Order, error) {
	return d.listOrdersWhere(`executed IS NULL`)
}

func (d *OrderDB) listOrdersWhere(where string, args ...interface{}) ([]*order.Order, error) {
	query := `SELECT` + orderColumns + `FROM orders WHERE ` + where + ` ORDER BY createdAt`
	stmt, err := d.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// SetBtcTxId records the observed bitcoin deposit for an order.
func (d *OrderDB) SetBtcTxId(id uuid.UUID, btcTxId string) error {
	return d.execOne(`UPDATE orders SET btcTxId = ? WHERE uuid = ?`, btcTxId, id.String())
}

// SetConfirmedAt records the instant the deposit first reached the
// confirmation threshold. Read-only status derivation counts the execution
// timeout from here.
func (d *OrderDB) SetConfirmedAt(id uuid.UUID, at time.Time) error {
	return d.execOne(`UPDATE orders SET confirmedAt = ? WHERE uuid = ?`, at.Unix(), id.String())
}

// ClearConfirmedAt resets the timeout clock after a reorg drops the deposit
// below the threshold again.
func (d *OrderDB) ClearConfirmedAt(id uuid.UUID) error {
	return d.execOne(`UPDATE orders SET confirmedAt = NULL WHERE uuid = ?`, id.String())
}

// SetEvmTxHash records the relayer-submitted destination transaction.
func (d *OrderDB) SetEvmTxHash(id uuid.UUID, txHash ethcommon.Hash) error {
	return d.execOne(`UPDATE orders SET evmTxHash = ? WHERE uuid = ?`, hashHex(txHash), id.String())
}

// MarkExecuted records the decided destination execution and any realized
// strategy outputs. This is a chain fact, not a cached status.
func (d *OrderDB) MarkExecuted(id uuid.UUID, success bool, outputTokenAddress *ethcommon.Address, outputTokenAmount, outputEthAmount *big.Int) error {
	var outAddr, outAmount, outEth interface{}
	if outputTokenAddress != nil {
		outAddr = addrHex(*outputTokenAddress)
	}
	if outputTokenAmount != nil {
		outAmount = outputTokenAmount.String()
	}
	if outputEthAmount != nil {
		outEth = outputEthAmount.String()
	}
	return d.execOne(
		`UPDATE orders SET executed = ?, outputTokenAddress = ?, outputTokenAmount = ?, outputEthAmount = ? WHERE uuid = ?`,
		success, outAddr, outAmount, outEth, id.String(),
	)
}

// EvmTxHash implements execprobe.TxHashLookup.
func (d *OrderDB) EvmTxHash(orderId uuid.UUID) (ethcommon.Hash, bool, error) {
	stmt, err := d.stmtCache.Prepare(`SELECT evmTxHash FROM orders WHERE uuid = ?`)
	if err != nil {
		return ethcommon.Hash{}, false, err
	}
	var txHash sql.NullString
	if err := stmt.QueryRow(orderId.String()).Scan(&txHash); err != nil {
		if err == sql.ErrNoRows {
			return ethcommon.Hash{}, false, ErrOrderNotFound
		}
		return ethcommon.Hash{}, false, err
	}
	if !txHash.Valid {
		return ethcommon.Hash{}, false, nil
	}
	return common.HexStrToHash(txHash.String), true, nil
}

func (d *OrderDB) execOne(query string, args ...interface{}) error {
	stmt, err := d.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	res, err := stmt.Exec(args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o                                      order.Order
		idStr, opReturnHash                    string
		gatewayAddr, baseTokenAddr, userAddr   string
		strategyAddr, campaign, btcTxId        sql.NullString
		evmTxHash, outAddr, outAmount, outEth  sql.NullString
		executed                               sql.NullBool
		createdAt                              int64
		confirmedAt                            sql.NullInt64
	)
	err := row.Scan(
		&idStr, &opReturnHash, &gatewayAddr, &baseTokenAddr, &o.BaseTokenDecimals,
		&userAddr, &o.Satoshis, &o.Fee, &o.GasRefill, &o.BitcoinAddress, &o.TxProofDifficultyFactor,
		&strategyAddr, &o.MaxSlippageBps, &campaign, &createdAt, &btcTxId, &confirmedAt,
		&evmTxHash, &executed, &outAddr, &outAmount, &outEth,
	)
	if err != nil {
		return nil, err
	}

	o.Id, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	o.OpReturnHash = common.HexStrToHash(opReturnHash)
	o.GatewayAddress = ethcommon.HexToAddress(gatewayAddr)
	o.BaseTokenAddress = ethcommon.HexToAddress(baseTokenAddr)
	o.UserAddress = ethcommon.HexToAddress(userAddr)
	o.CreatedAt = time.Unix(createdAt, 0).UTC()

	if strategyAddr.Valid {
		addr := ethcommon.HexToAddress(strategyAddr.String)
		o.StrategyAddress = &addr
	}
	if campaign.Valid {
		o.CampaignId = campaign.String
	}
	if btcTxId.Valid {
		o.BtcTxId = btcTxId.String
	}
	if confirmedAt.Valid {
		o.ConfirmedAt = time.Unix(confirmedAt.Int64, 0).UTC()
	}
	if evmTxHash.Valid {
		h := common.HexStrToHash(evmTxHash.String)
		o.EvmTxHash = &h
	}
	if outAddr.Valid {
		addr := ethcommon.HexToAddress(outAddr.String)
		o.OutputTokenAddress = &addr
	}
	if outAmount.Valid {
		o.OutputTokenAmount, _ = new(big.Int).SetString(outAmount.String, 10)
	}
	if outEth.Valid {
		o.OutputEthAmount, _ = new(big.Int).SetString(outEth.String, 10)
	}
	return &o, nil
}

func addrHex(addr ethcommon.Address) string {
	return common.ByteSliceToPureHexStr(addr.Bytes())
}

func hashHex(h ethcommon.Hash) string {
	return common.ByteSliceToPureHexStr(h.Bytes())
}
