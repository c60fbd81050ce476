package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/axiomex/clobengine/internal/common"
	"github.com/google/uuid"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for specified field length")
	ErrInvalidUUID        = errors.New("invalid uuid")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	ModifyOrder
	LogBook
)

type ReportMessageType int

const (
	ExecutionReport ReportMessageType = iota
	OrderAddedReport
	OrderCancelledReport
	OrderModifiedReport
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants.
const (
	BaseMessageHeaderLen = 2

	// OrderType(2) + Ticker(4) + Price(8) + Qty(8) + Side(1) + UsernameLen(1)
	NewOrderMessageHeaderLen = 2 + 4 + 8 + 8 + 1 + 1
	// OrderId(16)
	CancelOrderMessageHeaderLen = 16
	// OrderId(16) + HasPrice(1) + Price(8) + HasQty(1) + Qty(8)
	ModifyOrderMessageHeaderLen = 16 + 1 + 8 + 1 + 8
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func ParseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, errors.New("message too short to contain header")
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case NewOrder:
		return parseNewOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	case ModifyOrder:
		return parseModifyOrder(msg)
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case LogBook:
		return BaseMessage{TypeOf: LogBook}, nil
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

// NewOrderMessage carries everything needed to build a common.Order except
// its id: the server mints that itself from its IDGenerator. A
// price-change modify keeps the order's original id.
type NewOrderMessage struct {
	BaseMessage
	OrderType   common.OrderType // 2 bytes
	Ticker      string           // 4 bytes
	Price       common.Price     // 8 bytes
	Quantity    common.Quantity  // 8 bytes
	Side        common.Side      // 1 byte
	UsernameLen uint8            // 1 byte
	Username    string           // n bytes
}

// Order builds the common.Order this message describes, stamping it with
// the given id and timestamp.
func (o *NewOrderMessage) Order(id uuid.UUID, now time.Time) common.Order {
	return common.Order{
		ID:            id,
		Symbol:        o.Ticker,
		Side:          o.Side,
		Type:          o.OrderType,
		Price:         o.Price,
		OriginalQty:   o.Quantity,
		RemainingQty:  o.Quantity,
		Status:        common.New,
		Timestamp:     now,
		ExchTimestamp: now,
		ClientID:      o.Username,
	}
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	m.OrderType = common.OrderType(binary.BigEndian.Uint16(msg[0:2]))
	m.Ticker = trimNulls(string(msg[2:6]))
	m.Price = common.Price(binary.BigEndian.Uint64(msg[6:14]))
	m.Quantity = common.Quantity(binary.BigEndian.Uint64(msg[14:22]))
	m.Side = common.Side(msg[22])
	m.UsernameLen = uint8(msg[23])

	expectedTotalLen := int(NewOrderMessageHeaderLen) + int(m.UsernameLen)
	if len(msg) < expectedTotalLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Username = string(msg[24 : 24+m.UsernameLen])

	return m, nil
}

type CancelOrderMessage struct {
	BaseMessage
	OrderID uuid.UUID // 16 bytes
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	id, err := uuid.FromBytes(msg[0:16])
	if err != nil {
		return CancelOrderMessage{}, ErrInvalidUUID
	}
	return CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}, OrderID: id}, nil
}

// ModifyOrderMessage carries an optional new price and/or new total
// quantity, matching engine.Modify's *common.Price/*common.Quantity
// signature.
type ModifyOrderMessage struct {
	BaseMessage
	OrderID     uuid.UUID
	HasPrice    bool
	NewPrice    common.Price
	HasQuantity bool
	NewQuantity common.Quantity
}

func parseModifyOrder(msg []byte) (ModifyOrderMessage, error) {
	if len(msg) < ModifyOrderMessageHeaderLen {
		return ModifyOrderMessage{}, ErrMessageTooShort
	}
	id, err := uuid.FromBytes(msg[0:16])
	if err != nil {
		return ModifyOrderMessage{}, ErrInvalidUUID
	}
	m := ModifyOrderMessage{BaseMessage: BaseMessage{TypeOf: ModifyOrder}, OrderID: id}
	m.HasPrice = msg[16] != 0
	m.NewPrice = common.Price(binary.BigEndian.Uint64(msg[17:25]))
	m.HasQuantity = msg[25] != 0
	m.NewQuantity = common.Quantity(binary.BigEndian.Uint64(msg[26:34]))
	return m, nil
}

// PriceQuantity returns the *common.Price/*common.Quantity pair
// engine.Modify expects, nil where the corresponding Has flag is unset.
func (m *ModifyOrderMessage) PriceQuantity() (*common.Price, *common.Quantity) {
	var p *common.Price
	var q *common.Quantity
	if m.HasPrice {
		p = &m.NewPrice
	}
	if m.HasQuantity {
		q = &m.NewQuantity
	}
	return p, q
}

type Report struct {
	MessageType     ReportMessageType // 1 byte
	Side            common.Side       // 1 byte
	Timestamp       uint64            // 8 bytes
	Quantity        common.Quantity   // 8 bytes
	Price           common.Price      // 8 bytes
	CounterpartyLen uint16            // 2 bytes
	ErrStrLen       uint32            // 4 bytes
	Ticker          string            // 4 bytes
	OrderID         uuid.UUID         // 16 bytes
	Err             string            // n bytes
	Counterparty    string            // n bytes
}

const reportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 2 + 4 + 4 + 16

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() ([]byte, error) {
	totalSize := reportFixedHeaderLen + len(r.Err) + len(r.Counterparty)

	buf := make([]byte, totalSize)
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], r.Timestamp)
	binary.BigEndian.PutUint64(buf[10:18], uint64(r.Quantity))
	binary.BigEndian.PutUint64(buf[18:26], uint64(r.Price))
	binary.BigEndian.PutUint16(buf[26:28], r.CounterpartyLen)
	binary.BigEndian.PutUint32(buf[28:32], r.ErrStrLen)

	// Pack strings (Ticker and OrderID) into fixed buffers. copy() ensures
	// we don't panic if Ticker is shorter than 4 bytes.
	copy(buf[32:36], r.Ticker)
	copy(buf[36:52], r.OrderID[:])

	offset := reportFixedHeaderLen
	if r.ErrStrLen > 0 {
		copy(buf[offset:], r.Err)
	}
	offset += int(r.ErrStrLen)
	if r.CounterpartyLen > 0 {
		copy(buf[offset:], r.Counterparty)
	}
	return buf, nil
}

// TradeReportsOwners builds the pair of execution reports addressable
// to the two counterparties of a fill.
func TradeReportsOwners(trade common.Trade, buyerOwner, sellerOwner string) ([]byte, []byte, error) {
	now := uint64(trade.Timestamp.Unix())
	buyer := Report{
		MessageType:     ExecutionReport,
		Side:            common.Buy,
		Timestamp:       now,
		Quantity:        trade.Quantity,
		Price:           trade.Price,
		Ticker:          trade.Symbol,
		OrderID:         trade.BuyerOrderID,
		Counterparty:    sellerOwner,
		CounterpartyLen: uint16(len(sellerOwner)),
	}
	seller := Report{
		MessageType:     ExecutionReport,
		Side:            common.Sell,
		Timestamp:       now,
		Quantity:        trade.Quantity,
		Price:           trade.Price,
		Ticker:          trade.Symbol,
		OrderID:         trade.SellerOrderID,
		Counterparty:    buyerOwner,
		CounterpartyLen: uint16(len(buyerOwner)),
	}

	b1, err := buyer.Serialize()
	if err != nil {
		return nil, nil, err
	}
	b2, err := seller.Serialize()
	if err != nil {
		return nil, nil, err
	}
	return b1, b2, nil
}

// EventReportBytes turns a non-trade common.Event (OrderAdded,
// OrderCancelled, OrderModified) into its wire report. ok is false for event
// kinds with no report representation (e.g. book snapshots, which travel
// over internal/feed instead).
func EventReportBytes(ev common.Event) (report []byte, ok bool, err error) {
	switch ev.Kind {
	case common.EventOrderAdded:
		r := Report{
			MessageType: OrderAddedReport,
			Side:        ev.Order.Side,
			Timestamp:   uint64(ev.Order.Timestamp.Unix()),
			Quantity:    ev.Order.RemainingQty,
			Price:       ev.Order.Price,
			Ticker:      ev.Order.Symbol,
			OrderID:     ev.Order.ID,
		}
		b, err := r.Serialize()
		return b, true, err
	case common.EventOrderCancelled:
		r := Report{
			MessageType: OrderCancelledReport,
			Timestamp:   uint64(time.Now().Unix()),
			Quantity:    ev.CancelledRemainingQty,
			OrderID:     ev.CancelledOrderID,
		}
		b, err := r.Serialize()
		return b, true, err
	case common.EventOrderModified:
		r := Report{
			MessageType: OrderModifiedReport,
			Timestamp:   uint64(time.Now().Unix()),
			OrderID:     ev.ModifiedOrderID,
		}
		if ev.ModifiedNewPrice != nil {
			r.Price = *ev.ModifiedNewPrice
		}
		if ev.ModifiedNewQty != nil {
			r.Quantity = *ev.ModifiedNewQty
		}
		b, err := r.Serialize()
		return b, true, err
	default:
		return nil, false, nil
	}
}

func ErrorReportBytes(err error) ([]byte, error) {
	errStr := fmt.Sprintf("%v", err)
	report := Report{
		MessageType: ErrorReport,
		Timestamp:   uint64(time.Now().Unix()),
		ErrStrLen:   uint32(len(errStr)),
		Err:         errStr,
	}
	return report.Serialize()
}

func trimNulls(s string) string {
	for i, c := range s {
		if c == 0 {
			return s[:i]
		}
	}
	return s
}
