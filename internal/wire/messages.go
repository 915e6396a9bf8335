// Package wire implements the binary TCP protocol collaborator of
// SPEC_FULL.md §6.2, generalized from the teacher's internal/net
// (messages.go + server.go) single-asset-class protocol to the spec's
// limit/market/ioc/fok order types, string symbols, and fixed-point
// Price ticks instead of float64.
package wire

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/google/uuid"

	"fenrir/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
)

// MessageType tags an inbound wire message.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	LogBook
)

// ReportMessageType tags an outbound wire message.
type ReportMessageType uint8

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
)

// BaseMessageHeaderLen is the 2-byte MessageType prefix every inbound
// message carries, matching the teacher's framing.
const BaseMessageHeaderLen = 2

// Message is implemented by every parsed inbound message.
type Message interface {
	GetType() MessageType
}

type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType { return m.TypeOf }

// NewOrderMessage is the wire shape of an order submission. Unlike the
// teacher's version (fixed AssetType + 4-byte Ticker), Symbol and
// Username are length-prefixed strings, since the core now deals in
// arbitrary symbol names rather than one AssetType enum.
type NewOrderMessage struct {
	BaseMessage
	OrderType common.OrderType
	Side      common.Side
	Price     common.Price
	Qty       common.Qty
	Symbol    string
	Username  string
}

// Order builds a core common.Order from the wire message, assigning a
// fresh id the way the teacher's NewOrderMessage.Order() does with
// uuid.New().
func (m *NewOrderMessage) Order() common.Order {
	return common.Order{
		ID:        uuid.New().String(),
		Symbol:    m.Symbol,
		Side:      m.Side,
		Price:     m.Price,
		Qty:       m.Qty,
		OrderType: m.OrderType,
	}
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]
	switch typeOf {
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case LogBook:
		return BaseMessage{TypeOf: LogBook}, nil
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	default:
		return nil, ErrInvalidMessageType
	}
}

// newOrderFixedLen is OrderType(1) + Side(1) + Price(8) + Qty(8) +
// SymbolLen(1) + UsernameLen(1).
const newOrderFixedLen = 1 + 1 + 8 + 8 + 1 + 1

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < newOrderFixedLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	m.OrderType = common.OrderType(msg[0])
	m.Side = common.Side(msg[1])
	m.Price = common.Price(binary.BigEndian.Uint64(msg[2:10]))
	m.Qty = common.Qty(binary.BigEndian.Uint64(msg[10:18]))
	symbolLen := int(msg[18])
	usernameLen := int(msg[19])

	want := newOrderFixedLen + symbolLen + usernameLen
	if len(msg) < want {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	offset := newOrderFixedLen
	m.Symbol = string(msg[offset : offset+symbolLen])
	offset += symbolLen
	m.Username = string(msg[offset : offset+usernameLen])
	return m, nil
}

type CancelOrderMessage struct {
	BaseMessage
	Symbol  string
	OrderID string
}

// cancelOrderFixedLen is SymbolLen(1) + OrderIDLen(1).
const cancelOrderFixedLen = 1 + 1

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < cancelOrderFixedLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	symbolLen := int(msg[0])
	orderIDLen := int(msg[1])

	want := cancelOrderFixedLen + symbolLen + orderIDLen
	if len(msg) < want {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	offset := cancelOrderFixedLen
	m.Symbol = string(msg[offset : offset+symbolLen])
	offset += symbolLen
	m.OrderID = string(msg[offset : offset+orderIDLen])
	return m, nil
}

// Report is an outbound execution/error notification pushed back to the
// client that owns the order, the teacher's Report shape generalized to
// string Symbol/OrderID and Price ticks.
type Report struct {
	MessageType  ReportMessageType
	Side         common.Side
	Timestamp    int64
	Price        common.Price
	Qty          common.Qty
	Symbol       string
	OrderID      string
	Counterparty string
	Err          string
}

// reportFixedLen is Type(1)+Side(1)+Timestamp(8)+Price(8)+Qty(8)+
// SymbolLen(2)+OrderIDLen(2)+CounterpartyLen(2)+ErrLen(4).
const reportFixedLen = 1 + 1 + 8 + 8 + 8 + 2 + 2 + 2 + 4

// Serialize converts the report to its wire form.
func (r *Report) Serialize() []byte {
	total := reportFixedLen + len(r.Symbol) + len(r.OrderID) + len(r.Counterparty) + len(r.Err)
	buf := make([]byte, total)

	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], uint64(r.Timestamp))
	binary.BigEndian.PutUint64(buf[10:18], uint64(r.Price))
	binary.BigEndian.PutUint64(buf[18:26], uint64(r.Qty))
	binary.BigEndian.PutUint16(buf[26:28], uint16(len(r.Symbol)))
	binary.BigEndian.PutUint16(buf[28:30], uint16(len(r.OrderID)))
	binary.BigEndian.PutUint16(buf[30:32], uint16(len(r.Counterparty)))
	binary.BigEndian.PutUint32(buf[32:36], uint32(len(r.Err)))

	offset := reportFixedLen
	offset += copy(buf[offset:], r.Symbol)
	offset += copy(buf[offset:], r.OrderID)
	offset += copy(buf[offset:], r.Counterparty)
	copy(buf[offset:], r.Err)
	return buf
}

func executionReport(symbol string, side common.Side, price common.Price, qty common.Qty, orderID, counterparty string, ts time.Time) []byte {
	r := Report{
		MessageType:  ExecutionReport,
		Side:         side,
		Timestamp:    ts.UnixNano(),
		Price:        price,
		Qty:          qty,
		Symbol:       symbol,
		OrderID:      orderID,
		Counterparty: counterparty,
	}
	return r.Serialize()
}

func errorReport(err error) []byte {
	r := Report{
		MessageType: ErrorReport,
		Timestamp:   time.Now().UnixNano(),
		Err:         err.Error(),
	}
	return r.Serialize()
}
