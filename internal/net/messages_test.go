package net

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/axiomex/clobengine/internal/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeNewOrder(orderType common.OrderType, ticker string, price, qty uint64, side common.Side, username string) []byte {
	buf := make([]byte, BaseMessageHeaderLen+NewOrderMessageHeaderLen+len(username))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	binary.BigEndian.PutUint16(buf[2:4], uint16(orderType))
	tickerBytes := make([]byte, 4)
	copy(tickerBytes, ticker)
	copy(buf[4:8], tickerBytes)
	binary.BigEndian.PutUint64(buf[8:16], price)
	binary.BigEndian.PutUint64(buf[16:24], qty)
	buf[24] = byte(side)
	buf[25] = uint8(len(username))
	copy(buf[26:], username)
	return buf
}

func TestParseMessage_NewOrderRoundTrips(t *testing.T) {
	wire := encodeNewOrder(common.Limit, "AAPL", 100, 10, common.Buy, "alice")

	msg, err := ParseMessage(wire)
	require.NoError(t, err)

	parsed, ok := msg.(NewOrderMessage)
	require.True(t, ok)
	assert.Equal(t, NewOrder, parsed.GetType())
	assert.Equal(t, common.Limit, parsed.OrderType)
	assert.Equal(t, "AAPL", parsed.Ticker)
	assert.Equal(t, common.Price(100), parsed.Price)
	assert.Equal(t, common.Quantity(10), parsed.Quantity)
	assert.Equal(t, common.Buy, parsed.Side)
	assert.Equal(t, "alice", parsed.Username)
}

func TestParseMessage_NewOrderShortTickerIsTrimmed(t *testing.T) {
	wire := encodeNewOrder(common.Market, "GE", 0, 5, common.Sell, "bob")

	msg, err := ParseMessage(wire)
	require.NoError(t, err)
	parsed := msg.(NewOrderMessage)
	assert.Equal(t, "GE", parsed.Ticker, "trailing null padding must not leak into the ticker")
}

func TestParseMessage_NewOrderTooShortErrors(t *testing.T) {
	wire := encodeNewOrder(common.Limit, "AAPL", 100, 10, common.Buy, "alice")
	_, err := ParseMessage(wire[:len(wire)-3])
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestNewOrderMessage_OrderBuildsCorrectOrder(t *testing.T) {
	wire := encodeNewOrder(common.Limit, "AAPL", 100, 10, common.Buy, "alice")
	msg, err := ParseMessage(wire)
	require.NoError(t, err)
	parsed := msg.(NewOrderMessage)

	id := uuid.New()
	now := time.Now()
	order := parsed.Order(id, now)

	assert.Equal(t, id, order.ID)
	assert.Equal(t, "AAPL", order.Symbol)
	assert.Equal(t, common.Buy, order.Side)
	assert.Equal(t, common.Limit, order.Type)
	assert.Equal(t, common.Price(100), order.Price)
	assert.Equal(t, common.Quantity(10), order.OriginalQty)
	assert.Equal(t, common.Quantity(10), order.RemainingQty)
	assert.Equal(t, "alice", order.ClientID)
}

func TestParseMessage_CancelOrderRoundTrips(t *testing.T) {
	id := uuid.New()
	buf := make([]byte, BaseMessageHeaderLen+CancelOrderMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	copy(buf[2:18], id[:])

	msg, err := ParseMessage(buf)
	require.NoError(t, err)
	parsed, ok := msg.(CancelOrderMessage)
	require.True(t, ok)
	assert.Equal(t, id, parsed.OrderID)
}

func TestParseMessage_ModifyOrderRoundTripsPriceAndQuantity(t *testing.T) {
	id := uuid.New()
	buf := make([]byte, BaseMessageHeaderLen+ModifyOrderMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(ModifyOrder))
	copy(buf[2:18], id[:])
	buf[18] = 1
	binary.BigEndian.PutUint64(buf[19:27], 105)
	buf[27] = 1
	binary.BigEndian.PutUint64(buf[28:36], 20)

	msg, err := ParseMessage(buf)
	require.NoError(t, err)
	parsed, ok := msg.(ModifyOrderMessage)
	require.True(t, ok)
	assert.Equal(t, id, parsed.OrderID)
	assert.True(t, parsed.HasPrice)
	assert.Equal(t, common.Price(105), parsed.NewPrice)
	assert.True(t, parsed.HasQuantity)
	assert.Equal(t, common.Quantity(20), parsed.NewQuantity)

	price, qty := parsed.PriceQuantity()
	require.NotNil(t, price)
	require.NotNil(t, qty)
	assert.Equal(t, common.Price(105), *price)
	assert.Equal(t, common.Quantity(20), *qty)
}

func TestModifyOrderMessage_PriceQuantityNilWhenFlagsUnset(t *testing.T) {
	m := ModifyOrderMessage{OrderID: uuid.New()}
	price, qty := m.PriceQuantity()
	assert.Nil(t, price)
	assert.Nil(t, qty)
}

func TestParseMessage_HeartbeatAndLogBook(t *testing.T) {
	hb := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(hb[0:2], uint16(Heartbeat))
	msg, err := ParseMessage(hb)
	require.NoError(t, err)
	assert.Equal(t, Heartbeat, msg.GetType())

	lb := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(lb[0:2], uint16(LogBook))
	msg, err = ParseMessage(lb)
	require.NoError(t, err)
	assert.Equal(t, LogBook, msg.GetType())
}

func TestParseMessage_UnknownTypeErrors(t *testing.T) {
	buf := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], 255)
	_, err := ParseMessage(buf)
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

// TestReport_SerializeFixedHeaderLayout pins what a wire client must assume
// about Report's byte layout; this test exists so a change to Serialize's field order or sizes
// fails here instead of silently corrupting every client in the fleet.
func TestReport_SerializeFixedHeaderLayout(t *testing.T) {
	orderID := uuid.New()
	r := Report{
		MessageType:     ExecutionReport,
		Side:            common.Sell,
		Timestamp:       1700000000,
		Quantity:        42,
		Price:           1234,
		CounterpartyLen: 3,
		ErrStrLen:       2,
		Ticker:          "MSFT",
		OrderID:         orderID,
		Err:             "hi",
		Counterparty:    "bob",
	}

	buf, err := r.Serialize()
	require.NoError(t, err)
	require.Len(t, buf, reportFixedHeaderLen+2+3)

	assert.Equal(t, byte(ExecutionReport), buf[0])
	assert.Equal(t, byte(common.Sell), buf[1])
	assert.Equal(t, uint64(1700000000), binary.BigEndian.Uint64(buf[2:10]))
	assert.Equal(t, uint64(42), binary.BigEndian.Uint64(buf[10:18]))
	assert.Equal(t, uint64(1234), binary.BigEndian.Uint64(buf[18:26]))
	assert.Equal(t, uint16(3), binary.BigEndian.Uint16(buf[26:28]))
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(buf[28:32]))
	assert.Equal(t, "MSFT", string(buf[32:36]))
	gotID, err := uuid.FromBytes(buf[36:52])
	require.NoError(t, err)
	assert.Equal(t, orderID, gotID)
	assert.Equal(t, "hi", string(buf[52:54]))
	assert.Equal(t, "bob", string(buf[54:57]))
}

func TestTradeReportsOwners_ProducesOneReportPerSide(t *testing.T) {
	trade := common.Trade{
		ID:            uuid.New(),
		Symbol:        "AAPL",
		BuyerOrderID:  uuid.New(),
		SellerOrderID: uuid.New(),
		Price:         100,
		Quantity:      10,
		Timestamp:     time.Now(),
	}

	buyerBytes, sellerBytes, err := TradeReportsOwners(trade, "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, byte(ExecutionReport), buyerBytes[0])
	assert.Equal(t, byte(common.Buy), buyerBytes[1])
	assert.Equal(t, byte(ExecutionReport), sellerBytes[0])
	assert.Equal(t, byte(common.Sell), sellerBytes[1])

	buyerCounterpartyLen := binary.BigEndian.Uint16(buyerBytes[26:28])
	assert.Equal(t, "bob", string(buyerBytes[52+binary.BigEndian.Uint32(buyerBytes[28:32]):52+binary.BigEndian.Uint32(buyerBytes[28:32])+uint32(buyerCounterpartyLen)]))
}

func TestEventReportBytes_OrderAddedAndUnsupportedKind(t *testing.T) {
	order := common.Order{
		ID:           uuid.New(),
		Symbol:       "AAPL",
		Side:         common.Buy,
		Price:        100,
		RemainingQty: 5,
		Timestamp:    time.Now(),
	}

	b, ok, err := EventReportBytes(common.NewOrderAddedEvent(&order))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(OrderAddedReport), b[0])

	_, ok, err = EventReportBytes(common.NewBookSnapshotEvent(&common.Snapshot{}))
	require.NoError(t, err)
	assert.False(t, ok, "book snapshots have no wire report representation")
}

func TestErrorReportBytes_EncodesMessage(t *testing.T) {
	b, err := ErrorReportBytes(common.ErrNoLiquidity)
	require.NoError(t, err)
	assert.Equal(t, byte(ErrorReport), b[0])
	errStrLen := binary.BigEndian.Uint32(b[28:32])
	assert.Equal(t, common.ErrNoLiquidity.Error(), string(b[reportFixedHeaderLen:reportFixedHeaderLen+int(errStrLen)]))
}
