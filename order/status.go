package order

import (
	"encoding/json"
	"fmt"
)

// StatusKind discriminates the three mutually exclusive order status shapes.
type StatusKind string

const (
	// StatusPending: transaction observed, below the required threshold.
	StatusPending StatusKind = "pending"
	// StatusConfirmed: threshold reached, destination action not verified.
	StatusConfirmed StatusKind = "confirmed"
	// StatusResolved: destination execution observed, outcome known.
	StatusResolved StatusKind = "resolved"
)

// OrderStatus is the single authoritative settlement answer for an order.
// Success is meaningful only when Kind == StatusResolved.
type OrderStatus struct {
	Kind          StatusKind
	Success       bool
	Confirmations uint64
}

func Pending(confirmations uint64) OrderStatus {
	return OrderStatus{Kind: StatusPending, Confirmations: confirmations}
}

func Confirmed(confirmations uint64) OrderStatus {
	return OrderStatus{Kind: StatusConfirmed, Confirmations: confirmations}
}

func Resolved(success bool, confirmations uint64) OrderStatus {
	return OrderStatus{Kind: StatusResolved, Success: success, Confirmations: confirmations}
}

// IsTerminalSuccess reports whether the order has settled for good. A
// terminal success is never regressed, not even by a source-chain reorg.
func (s OrderStatus) IsTerminalSuccess() bool {
	return s.Kind == StatusResolved && s.Success
}

type statusData struct {
	Confirmations uint64 `json:"confirmations"`
}

type statusJSON struct {
	Pending   *bool      `json:"pending,omitempty"`
	Confirmed *bool      `json:"confirmed,omitempty"`
	Success   *bool      `json:"success,omitempty"`
	Data      statusData `json:"data"`
}

// MarshalJSON encodes the status as a union with exactly one discriminator
// key present: {pending:true}, {confirmed:false} or {success:bool}. The
// confirmed key carries false because it reports the destination-side
// execution, which is still outstanding in that state; SDK clients key on
// which field is present, not its value.
func (s OrderStatus) MarshalJSON() ([]byte, error) {
	out := statusJSON{Data: statusData{Confirmations: s.Confirmations}}
	tru := true
	fal := false
	switch s.Kind {
	case StatusPending:
		out.Pending = &tru
	case StatusConfirmed:
		out.Confirmed = &fal
	case StatusResolved:
		success := s.Success
		out.Success = &success
	default:
		return nil, fmt.Errorf("unknown status kind %q", s.Kind)
	}
	return json.Marshal(out)
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var in statusJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch {
	case in.Pending != nil && *in.Pending:
		*s = Pending(in.Data.Confirmations)
	case in.Confirmed != nil:
		*s = Confirmed(in.Data.Confirmations)
	case in.Success != nil:
		*s = Resolved(*in.Success, in.Data.Confirmations)
	default:
		return fmt.Errorf("no status discriminator in %s", string(data))
	}
	return nil
}
