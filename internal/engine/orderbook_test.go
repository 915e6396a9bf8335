package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/clock"
	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/events"
)

// --- Setup & helpers ---------------------------------------------------

// fakeClock hands out strictly increasing timestamps and ids without
// touching wall-clock time, so tests stay deterministic.
type fakeClock struct {
	n int64
}

func (c *fakeClock) NowNanos() int64 {
	c.n++
	return c.n
}

func (c *fakeClock) NowUTC() time.Time { return time.Unix(0, c.n).UTC() }

func (c *fakeClock) NewID() string {
	c.n++
	return "trade-" + itoa(c.n)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func newTestBook() *engine.OrderBook {
	b := engine.New("TEST", events.NopSink{}, &fakeClock{})
	b.EnableInvariantChecks()
	return b
}

func limitOrder(id string, side common.Side, price common.Price, qty common.Qty) common.Order {
	return common.Order{ID: id, Symbol: "TEST", Side: side, Price: price, Qty: qty, OrderType: common.Limit}
}

// --- Scenario A — market order sweeps two levels -----------------------

func TestScenarioA_MarketSweepsTwoLevels(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitOrder("s1", common.Sell, 100, 2))
	require.NoError(t, err)
	_, err = b.Submit(limitOrder("s2", common.Sell, 101, 3))
	require.NoError(t, err)

	out, err := b.Submit(common.Order{ID: "m1", Symbol: "TEST", Side: common.Buy, Qty: 4, OrderType: common.Market})
	require.NoError(t, err)

	assert.Equal(t, common.StatusFilled, out.Status)
	require.Len(t, out.Trades, 2)
	assert.Equal(t, common.Price(100), out.Trades[0].Price)
	assert.Equal(t, common.Qty(2), out.Trades[0].Qty)
	assert.Equal(t, common.Price(101), out.Trades[1].Price)
	assert.Equal(t, common.Qty(2), out.Trades[1].Qty)

	bids, asks := b.Depth(5)
	assert.Empty(t, bids)
	require.Len(t, asks, 1)
	assert.Equal(t, common.Price(101), asks[0].Price)
	assert.Equal(t, common.Qty(1), asks[0].Qty)
}

// --- Scenario B — limit rests -------------------------------------------

func TestScenarioB_LimitRests(t *testing.T) {
	b := newTestBook()

	out, err := b.Submit(limitOrder("b1", common.Buy, 99, 5))
	require.NoError(t, err)

	assert.Equal(t, common.StatusResting, out.Status)
	assert.Empty(t, out.Trades)

	bbo := b.Bbo()
	require.Len(t, bbo.Bids, 1)
	assert.Equal(t, common.Price(99), bbo.Bids[0].Price)
	assert.Equal(t, common.Qty(5), bbo.Bids[0].Qty)
	assert.Empty(t, bbo.Asks)
}

// --- Scenario C — IOC partial --------------------------------------------

func TestScenarioC_IOCPartial(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitOrder("s1", common.Sell, 100, 3))
	require.NoError(t, err)

	out, err := b.Submit(common.Order{ID: "i1", Symbol: "TEST", Side: common.Buy, Price: 101, Qty: 5, OrderType: common.IOC})
	require.NoError(t, err)

	assert.Equal(t, common.StatusPartial, out.Status)
	require.Len(t, out.Trades, 1)
	assert.Equal(t, common.Price(100), out.Trades[0].Price)
	assert.Equal(t, common.Qty(3), out.Trades[0].Qty)

	bbo := b.Bbo()
	assert.Empty(t, bbo.Bids, "IOC residual must never rest")
}

// --- Scenario D — FOK reject ----------------------------------------------

func TestScenarioD_FOKReject(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitOrder("s1", common.Sell, 100, 3))
	require.NoError(t, err)

	before := b.RecentTrades(100)

	out, err := b.Submit(common.Order{ID: "f1", Symbol: "TEST", Side: common.Buy, Price: 101, Qty: 5, OrderType: common.FOK})
	require.NoError(t, err)

	assert.Equal(t, common.StatusRejected, out.Status)
	assert.Empty(t, out.Trades)

	bbo := b.Bbo()
	require.Len(t, bbo.Asks, 1)
	assert.Equal(t, common.Price(100), bbo.Asks[0].Price)
	assert.Equal(t, common.Qty(3), bbo.Asks[0].Qty)

	after := b.RecentTrades(100)
	assert.Equal(t, before, after, "FOK reject must not mutate the trade log")
}

func TestFOK_FillsExactlyWhenLiquiditySuffices(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitOrder("s1", common.Sell, 100, 2))
	require.NoError(t, err)
	_, err = b.Submit(limitOrder("s2", common.Sell, 101, 3))
	require.NoError(t, err)

	out, err := b.Submit(common.Order{ID: "f1", Symbol: "TEST", Side: common.Buy, Price: 101, Qty: 5, OrderType: common.FOK})
	require.NoError(t, err)
	assert.Equal(t, common.StatusFilled, out.Status)
	require.Len(t, out.Trades, 2)
}

// --- Scenario E — cancel ---------------------------------------------------

func TestScenarioE_Cancel(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitOrder("x", common.Buy, 100, 1))
	require.NoError(t, err)

	assert.True(t, b.Cancel("x"))
	assert.Empty(t, b.Bbo().Bids)
	assert.False(t, b.Cancel("x"))
}

// --- Scenario F — price-time priority ---------------------------------------

func TestScenarioF_PriceTimePriority(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitOrder("A", common.Sell, 100, 1))
	require.NoError(t, err)
	_, err = b.Submit(limitOrder("B", common.Sell, 100, 1))
	require.NoError(t, err)

	out, err := b.Submit(common.Order{ID: "taker", Symbol: "TEST", Side: common.Buy, Qty: 1, OrderType: common.Market})
	require.NoError(t, err)

	require.Len(t, out.Trades, 1)
	assert.Equal(t, "A", out.Trades[0].MakerOrderID)
}

// --- Universal invariants / edge cases --------------------------------------

func TestMarketOrderNeverRests(t *testing.T) {
	b := newTestBook()
	out, err := b.Submit(common.Order{ID: "m", Symbol: "TEST", Side: common.Buy, Qty: 10, OrderType: common.Market})
	require.NoError(t, err)
	assert.Equal(t, common.StatusUnfilled, out.Status)
	assert.Empty(t, b.Bbo().Bids)
}

func TestCancelUnknownIDIsNoOp(t *testing.T) {
	b := newTestBook()
	assert.False(t, b.Cancel("nope"))
}

func TestZeroQtyRejectedAtBoundary(t *testing.T) {
	b := newTestBook()
	_, err := b.Submit(limitOrder("z", common.Buy, 100, 0))
	assert.ErrorIs(t, err, engine.ErrInvalidOrder)
}

func TestMissingPriceRejectedAtBoundary(t *testing.T) {
	b := newTestBook()
	_, err := b.Submit(common.Order{ID: "p", Symbol: "TEST", Side: common.Buy, Qty: 1, OrderType: common.Limit})
	assert.ErrorIs(t, err, engine.ErrInvalidOrder)
}

func TestDuplicateIDRejectedWhileResting(t *testing.T) {
	b := newTestBook()
	_, err := b.Submit(limitOrder("dup", common.Buy, 100, 1))
	require.NoError(t, err)

	_, err = b.Submit(limitOrder("dup", common.Buy, 99, 1))
	assert.ErrorIs(t, err, engine.ErrInvalidOrder)
}

func TestIDReusableAfterFullyFilled(t *testing.T) {
	b := newTestBook()
	_, err := b.Submit(limitOrder("reuse", common.Sell, 100, 1))
	require.NoError(t, err)
	out, err := b.Submit(common.Order{ID: "taker", Symbol: "TEST", Side: common.Buy, Qty: 1, OrderType: common.Market})
	require.NoError(t, err)
	require.Equal(t, common.StatusFilled, out.Status)

	_, err = b.Submit(limitOrder("reuse", common.Buy, 50, 1))
	assert.NoError(t, err, "an id that has fully exited the book may be reused")
}

func TestConservationAcrossFill(t *testing.T) {
	b := newTestBook()
	_, err := b.Submit(limitOrder("s1", common.Sell, 100, 10))
	require.NoError(t, err)

	out, err := b.Submit(common.Order{ID: "t1", Symbol: "TEST", Side: common.Buy, Qty: 4, OrderType: common.Market})
	require.NoError(t, err)

	var filled common.Qty
	for _, tr := range out.Trades {
		filled += tr.Qty
	}
	assert.Equal(t, common.Qty(4), filled)

	bids, asks := b.Depth(5)
	assert.Empty(t, bids)
	require.Len(t, asks, 1)
	assert.Equal(t, common.Qty(6), asks[0].Qty)
}

func TestBookNeverCrossedAfterResting(t *testing.T) {
	b := newTestBook()
	_, err := b.Submit(limitOrder("bid", common.Buy, 99, 5))
	require.NoError(t, err)
	_, err = b.Submit(limitOrder("ask", common.Sell, 100, 5))
	require.NoError(t, err)

	bbo := b.Bbo()
	require.Len(t, bbo.Bids, 1)
	require.Len(t, bbo.Asks, 1)
	assert.Less(t, int64(bbo.Bids[0].Price), int64(bbo.Asks[0].Price))
}

var _ clock.Clock = (*fakeClock)(nil)
