package order

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusJSONShapes(t *testing.T) {
	data, err := json.Marshal(Pending(3))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"pending":true,"data":{"confirmations":3}}`, string(data))

	// the confirmed key reports the destination execution, still outstanding
	data, err = json.Marshal(Confirmed(6))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"confirmed":false,"data":{"confirmations":6}}`, string(data))

	data, err = json.Marshal(Resolved(true, 6))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"confirmations":6}}`, string(data))

	data, err = json.Marshal(Resolved(false, 6))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"data":{"confirmations":6}}`, string(data))
}

func TestStatusJSONRoundTrip(t *testing.T) {
	for _, st := range []OrderStatus{
		Pending(0),
		Confirmed(7),
		Resolved(true, 9),
		Resolved(false, 6),
	} {
		data, err := json.Marshal(st)
		assert.NoError(t, err)
		var back OrderStatus
		assert.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, st, back)
	}
}

func TestStatusUnmarshalRejectsAmbiguous(t *testing.T) {
	var st OrderStatus
	assert.Error(t, json.Unmarshal([]byte(`{"data":{"confirmations":1}}`), &st))
}

func TestIsTerminalSuccess(t *testing.T) {
	assert.True(t, Resolved(true, 6).IsTerminalSuccess())
	assert.False(t, Resolved(false, 6).IsTerminalSuccess())
	assert.False(t, Confirmed(6).IsTerminalSuccess())
	assert.False(t, Pending(1).IsTerminalSuccess())
}
