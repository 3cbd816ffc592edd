package orderdb

import (
	"database/sql"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/bob-collective/gateway-go/common"
	"github.com/bob-collective/gateway-go/offramp"
)

func (d *OrderDB) InsertOffRampOrder(o *offramp.Order) error {
	query := `INSERT INTO offramp_orders (` + offRampColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := d.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	var btcTxHash interface{}
	if o.BtcTxHash != "" {
		btcTxHash = o.BtcTxHash
	}

	_, err = stmt.Exec(
		o.RequestId.String(),
		addrHex(o.OfframpAddress),
		o.SatoshisToGet,
		hashHex(o.EvmTxHash),
		btcTxHash,
		addrHex(o.UserAddress),
		o.UserBtcAddress,
		o.AmountLocked.String(),
		o.MaxFees.String(),
		addrHex(o.Token),
		o.Done,
		o.Timestamp.Unix(),
	)
	return err
}

func (d *OrderDB) GetOffRampOrder(requestId uuid.UUID) (*offramp.Order, bool, error) {
	return d.getOffRampWhere(`requestId = ?`, requestId.String())
}

// GetOffRampOrderByLockTx deduplicates lock events: one EVM lock tx opens at
// most one off-ramp order.
func (d *OrderDB) GetOffRampOrderByLockTx(evmTxHash ethcommon.Hash) (*offramp.Order, bool, error) {
	return d.getOffRampWhere(`evmTxHash = ?`, hashHex(evmTxHash))
}

func (d *OrderDB) getOffRampWhere(where string, arg interface{}) (*offramp.Order, bool, error) {
	query := `SELECT` + offRampColumns + `FROM offramp_orders WHERE ` + where
	stmt, err := d.stmtCache.Prepare(query)
	if err != nil {
		return nil, false, err
	}
	o, err := scanOffRamp(stmt.QueryRow(arg))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

// ListOpenOffRampOrders returns orders not yet paid out and confirmed.
func (d *OrderDB) ListOpenOffRampOrders() ([]*offramp.Order, error) {
	query := `SELECT` + offRampColumns + `FROM offramp_orders WHERE done = 0 ORDER BY createdAt`
	stmt, err := d.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*offramp.Order
	for rows.Next() {
		o, err := scanOffRamp(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// SetOffRampPayout records the broadcast btc payout transaction.
func (d *OrderDB) SetOffRampPayout(requestId uuid.UUID, btcTxId string) error {
	return d.execOne(`UPDATE offramp_orders SET btcTxHash = ? WHERE requestId = ?`, btcTxId, requestId.String())
}

// MarkOffRampDone sets the terminal done flag.
func (d *OrderDB) MarkOffRampDone(requestId uuid.UUID) error {
	return d.execOne(`UPDATE offramp_orders SET done = 1 WHERE requestId = ?`, requestId.String())
}

func scanOffRamp(row rowScanner) (*offramp.Order, error) {
	var (
		o                                  offramp.Order
		idStr, offrampAddr, evmTxHash      string
		userAddr, amountLocked, maxFees    string
		token                              string
		btcTxHash                          sql.NullString
		createdAt                          int64
	)
	err := row.Scan(
		&idStr, &offrampAddr, &o.SatoshisToGet, &evmTxHash, &btcTxHash,
		&userAddr, &o.UserBtcAddress, &amountLocked, &maxFees, &token, &o.Done, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	o.RequestId, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	o.OfframpAddress = ethcommon.HexToAddress(offrampAddr)
	o.EvmTxHash = common.HexStrToHash(evmTxHash)
	o.UserAddress = ethcommon.HexToAddress(userAddr)
	o.Token = ethcommon.HexToAddress(token)
	o.Timestamp = time.Unix(createdAt, 0).UTC()
	if btcTxHash.Valid {
		o.BtcTxHash = btcTxHash.String
	}
	o.AmountLocked, _ = new(big.Int).SetString(amountLocked, 10)
	o.MaxFees, _ = new(big.Int).SetString(maxFees, 10)
	return &o, nil
}
