package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitPrice(v int64) *int64 { return &v }

func newTestOrder(side Side, volume int64) *Order {
	return NewOrder("ord-1", "SIM:BTC/USD", "alpha", side, FillTypeLimit,
		limitPrice(10000), nil, volume, time.Now().UTC())
}

func TestOrderStateTransitions(t *testing.T) {
	o := newTestOrder(SideBuy, 10)
	assert.Equal(t, OrderStateNew, o.State())
	assert.True(t, o.State().Open())

	o.SetState(OrderStatePlaced, "")
	assert.True(t, o.TransitionIfOpen(OrderStatePartFilled, ""))

	o.SetState(OrderStateFilled, "")
	assert.True(t, o.State().Terminal())
	assert.False(t, o.TransitionIfOpen(OrderStateCancelling, "cancel requested"))
	assert.Equal(t, OrderStateFilled, o.State())
}

func TestOrderReduceAndFills(t *testing.T) {
	o := newTestOrder(SideBuy, 10)

	f := NewFill("fill-1", o, time.Now().UTC(), 9900, 4)
	require.NoError(t, o.AddFill(f))
	assert.Equal(t, int64(6), o.Reduce(f.VolumeCount))
	assert.Len(t, o.Fills(), 1)
}

func TestOrderSellSignedVolume(t *testing.T) {
	o := newTestOrder(SideSell, -10)

	f := NewFill("fill-1", o, time.Now().UTC(), 10100, -4)
	require.NoError(t, o.AddFill(f))
	assert.Equal(t, int64(-6), o.Reduce(f.VolumeCount))
}

func TestOrderOverfill(t *testing.T) {
	o := newTestOrder(SideBuy, 5)

	require.NoError(t, o.AddFill(NewFill("fill-1", o, time.Now().UTC(), 9900, 5)))
	err := o.AddFill(NewFill("fill-2", o, time.Now().UTC(), 9900, 1))
	assert.ErrorIs(t, err, ErrOverfill)
	// The anomalous fill is still recorded.
	assert.Len(t, o.Fills(), 2)
}

func TestOrderRecordRoundTrip(t *testing.T) {
	o := newTestOrder(SideBuy, 10)
	o.SetState(OrderStatePartFilled, "")
	o.Reduce(4)

	rec := o.Record()
	assert.Equal(t, int64(6), rec.RemainingCount)
	assert.Equal(t, OrderStatePartFilled, rec.State)

	restored := OrderFromRecord(rec)
	assert.Equal(t, int64(6), restored.Remaining())
	assert.Equal(t, OrderStatePartFilled, restored.State())
	assert.Equal(t, o.ID, restored.ID)
}

func TestSideSign(t *testing.T) {
	assert.Equal(t, int64(1), SideBuy.Sign())
	assert.Equal(t, int64(-1), SideSell.Sign())
	assert.Equal(t, SideSell, SideBuy.Opposite())
}
